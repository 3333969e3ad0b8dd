package exchange

import (
	"context"

	"tradedesk/internal/models"
)

// Client определяет унифицированный контракт для работы с любой биржей.
// Все операции - независимые одиночные REST-вызовы: клиент не держит
// состояния между вызовами кроме собственной конфигурации и подписчика.
type Client interface {
	// Name возвращает имя провайдера
	Name() string

	// Capabilities возвращает матрицу возможностей клиента
	Capabilities() models.Capabilities

	// GetBalances возвращает ненулевые балансы аккаунта.
	// Пустой аккаунт дает пустой срез, не ошибку.
	GetBalances(ctx context.Context) ([]models.Balance, error)

	// GetTicker возвращает текущую цену инструмента
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)

	// CreateOrder размещает ордер. Параметры приходят в нейтральной форме;
	// клиент переводит их в нативные имена полей провайдера.
	CreateOrder(ctx context.Context, params models.OrderParams) (*models.Order, error)

	// CancelOrder отменяет ордер по биржевому идентификатору
	CancelOrder(ctx context.Context, orderID string) error

	// GetOrderStatus возвращает нормализованный снимок ордера
	GetOrderStatus(ctx context.Context, orderID string) (*models.Order, error)

	// TestConnection выполняет дешевую немутирующую проверку (чтение баланса
	// или ping). Никогда не возвращает ошибку - любая ошибка дает false.
	TestConnection(ctx context.Context) bool
}
