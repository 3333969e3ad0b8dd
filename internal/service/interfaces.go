package service

import (
	"context"

	"tradedesk/internal/exchange"
	"tradedesk/internal/models"
)

// ConnectionRepositoryInterface определяет интерфейс репозитория подключений
type ConnectionRepositoryInterface interface {
	Create(conn *models.ConnectionRecord) error
	GetByID(id string) (*models.ConnectionRecord, error)
	GetAll() ([]*models.ConnectionRecord, error)
	Update(conn *models.ConnectionRecord) error
	UpdateStatus(id, status, lastError string) error
	Delete(id string) error
}

// ConnectionTesterInterface определяет интерфейс проверки ключей
type ConnectionTesterInterface interface {
	Test(ctx context.Context, cfg models.ConnectionConfig) exchange.TestResult
}

// ClientBuilder собирает клиента биржи из конфигурации.
// В тестах подменяется фейковым клиентом.
type ClientBuilder func(cfg models.ConnectionConfig) (exchange.Client, error)

// DashboardBroadcaster - интерфейс для push-обновлений дашборда
// через WebSocket hub
type DashboardBroadcaster interface {
	BroadcastConnectionUpdate(conn *models.ConnectionRecord)
	BroadcastBalanceUpdate(connectionID string, balances []models.Balance)
}

// ConnectionServiceInterface определяет интерфейс сервиса подключений
// для использования в HTTP handlers (упрощает тестирование)
type ConnectionServiceInterface interface {
	Templates() []exchange.Template
	Connect(ctx context.Context, cfg models.ConnectionConfig) (*models.ConnectionRecord, []string, error)
	Test(ctx context.Context, cfg models.ConnectionConfig) exchange.TestResult
	List(ctx context.Context) ([]*models.ConnectionRecord, error)
	Get(ctx context.Context, id string) (*models.ConnectionRecord, error)
	Disconnect(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	RotateCredentials(ctx context.Context, id string, creds models.Credentials) error
	GetBalances(ctx context.Context, id string) ([]models.Balance, error)
	GetTicker(ctx context.Context, id, symbol string) (*models.Ticker, error)
	PlaceOrder(ctx context.Context, id string, params models.OrderParams) (*models.Order, error)
	CancelOrder(ctx context.Context, id, orderID string) error
	OrderStatus(ctx context.Context, id, orderID string) (*models.Order, error)
}
