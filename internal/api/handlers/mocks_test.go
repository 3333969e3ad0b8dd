package handlers

import (
	"context"

	"tradedesk/internal/exchange"
	"tradedesk/internal/models"
	"tradedesk/internal/service"
)

// MockConnectionService - мок сервиса подключений для тестирования handlers.
// Поля-результаты задаются тестом, поля-счетчики проверяются после вызова.
type MockConnectionService struct {
	templates []exchange.Template

	connectRecord   *models.ConnectionRecord
	connectWarnings []string
	connectErr      error
	connectCalls    int
	lastConfig      models.ConnectionConfig

	testResult exchange.TestResult

	listRecords []*models.ConnectionRecord
	listErr     error

	getRecord *models.ConnectionRecord
	getErr    error

	disconnectErr error
	deleteErr     error
	rotateErr     error
	lastRotated   models.Credentials

	balances    []models.Balance
	balancesErr error

	ticker    *models.Ticker
	tickerErr error

	order      *models.Order
	orderErr   error
	lastParams models.OrderParams

	cancelErr error

	statusOrder *models.Order
	statusErr   error
}

var _ service.ConnectionServiceInterface = (*MockConnectionService)(nil)

func (m *MockConnectionService) Templates() []exchange.Template {
	return m.templates
}

func (m *MockConnectionService) Connect(ctx context.Context, cfg models.ConnectionConfig) (*models.ConnectionRecord, []string, error) {
	m.connectCalls++
	m.lastConfig = cfg
	return m.connectRecord, m.connectWarnings, m.connectErr
}

func (m *MockConnectionService) Test(ctx context.Context, cfg models.ConnectionConfig) exchange.TestResult {
	m.lastConfig = cfg
	return m.testResult
}

func (m *MockConnectionService) List(ctx context.Context) ([]*models.ConnectionRecord, error) {
	return m.listRecords, m.listErr
}

func (m *MockConnectionService) Get(ctx context.Context, id string) (*models.ConnectionRecord, error) {
	return m.getRecord, m.getErr
}

func (m *MockConnectionService) Disconnect(ctx context.Context, id string) error {
	return m.disconnectErr
}

func (m *MockConnectionService) Delete(ctx context.Context, id string) error {
	return m.deleteErr
}

func (m *MockConnectionService) RotateCredentials(ctx context.Context, id string, creds models.Credentials) error {
	if m.rotateErr == nil {
		m.lastRotated = creds
	}
	return m.rotateErr
}

func (m *MockConnectionService) GetBalances(ctx context.Context, id string) ([]models.Balance, error) {
	return m.balances, m.balancesErr
}

func (m *MockConnectionService) GetTicker(ctx context.Context, id, symbol string) (*models.Ticker, error) {
	return m.ticker, m.tickerErr
}

func (m *MockConnectionService) PlaceOrder(ctx context.Context, id string, params models.OrderParams) (*models.Order, error) {
	m.lastParams = params
	return m.order, m.orderErr
}

func (m *MockConnectionService) CancelOrder(ctx context.Context, id, orderID string) error {
	return m.cancelErr
}

func (m *MockConnectionService) OrderStatus(ctx context.Context, id, orderID string) (*models.Order, error) {
	return m.statusOrder, m.statusErr
}
