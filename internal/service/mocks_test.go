package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/internal/exchange"
	"tradedesk/internal/models"
	"tradedesk/internal/repository"
)

// ============ Mock ConnectionRepository ============

type MockConnectionRepository struct {
	mu        sync.Mutex
	records   map[string]*models.ConnectionRecord
	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func NewMockConnectionRepository() *MockConnectionRepository {
	return &MockConnectionRepository{
		records: make(map[string]*models.ConnectionRecord),
	}
}

func (m *MockConnectionRepository) Create(conn *models.ConnectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	clone := *conn
	m.records[conn.ID] = &clone
	return nil
}

func (m *MockConnectionRepository) GetByID(id string) (*models.ConnectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	record, ok := m.records[id]
	if !ok {
		return nil, repository.ErrConnectionNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *MockConnectionRepository) GetAll() ([]*models.ConnectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.ConnectionRecord, 0, len(m.records))
	for _, r := range m.records {
		clone := *r
		result = append(result, &clone)
	}
	return result, nil
}

func (m *MockConnectionRepository) Update(conn *models.ConnectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.records[conn.ID]; !ok {
		return repository.ErrConnectionNotFound
	}
	conn.UpdatedAt = time.Now()
	clone := *conn
	m.records[conn.ID] = &clone
	return nil
}

func (m *MockConnectionRepository) UpdateStatus(id, status, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	record, ok := m.records[id]
	if !ok {
		return repository.ErrConnectionNotFound
	}
	record.Status = status
	record.LastError = lastError
	record.UpdatedAt = time.Now()
	return nil
}

func (m *MockConnectionRepository) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.records[id]; !ok {
		return repository.ErrConnectionNotFound
	}
	delete(m.records, id)
	return nil
}

// ============ Mock ConnectionTester ============

type MockTester struct {
	result exchange.TestResult
	calls  int
}

func (m *MockTester) Test(ctx context.Context, cfg models.ConnectionConfig) exchange.TestResult {
	m.calls++
	result := m.result
	result.Provider = cfg.Provider
	if result.Family == "" {
		result.Family = cfg.APIFamily
	}
	return result
}

// ============ Fake exchange.Client ============

type fakeClient struct {
	name       string
	caps       models.Capabilities
	balances   []models.Balance
	balanceErr error
	ticker     *models.Ticker
	tickerErr  error
	order      *models.Order
	orderErr   error
	cancelErr  error

	balanceCalls int
}

func (c *fakeClient) Name() string                     { return c.name }
func (c *fakeClient) Capabilities() models.Capabilities { return c.caps }

func (c *fakeClient) GetBalances(ctx context.Context) ([]models.Balance, error) {
	c.balanceCalls++
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return c.balances, nil
}

func (c *fakeClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	if c.tickerErr != nil {
		return nil, c.tickerErr
	}
	return c.ticker, nil
}

func (c *fakeClient) CreateOrder(ctx context.Context, params models.OrderParams) (*models.Order, error) {
	if c.orderErr != nil {
		return nil, c.orderErr
	}
	return c.order, nil
}

func (c *fakeClient) CancelOrder(ctx context.Context, orderID string) error {
	return c.cancelErr
}

func (c *fakeClient) GetOrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	if c.orderErr != nil {
		return nil, c.orderErr
	}
	return c.order, nil
}

func (c *fakeClient) TestConnection(ctx context.Context) bool {
	return c.balanceErr == nil
}

// ============ Mock DashboardBroadcaster ============

type MockHub struct {
	mu                sync.Mutex
	connectionUpdates []*models.ConnectionRecord
	balanceUpdates    map[string][]models.Balance
}

func NewMockHub() *MockHub {
	return &MockHub{balanceUpdates: make(map[string][]models.Balance)}
}

func (h *MockHub) BroadcastConnectionUpdate(conn *models.ConnectionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connectionUpdates = append(h.connectionUpdates, conn)
}

func (h *MockHub) BroadcastBalanceUpdate(connectionID string, balances []models.Balance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.balanceUpdates[connectionID] = balances
}

func testBalances() []models.Balance {
	return []models.Balance{
		models.NewBalance("BTC", decimal.NewFromFloat(0.5), decimal.Zero),
		models.NewBalance("USDT", decimal.NewFromInt(1000), decimal.NewFromInt(50)),
	}
}
