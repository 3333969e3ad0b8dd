package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk/internal/models"
)

// PaperClient - симулятор биржи без сетевых вызовов. Балансы и ордера
// хранятся в памяти подключения; рыночные ордера исполняются сразу по
// детерминированной цене, лимитные остаются открытыми до отмены.
type PaperClient struct {
	caps models.Capabilities

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	orders   map[string]*models.Order
}

// Стартовый портфель песочницы
var paperSeedBalances = map[string]string{
	"USDT": "10000",
	"BTC":  "0.5",
	"ETH":  "5",
}

func NewPaperClient(cfg models.ConnectionConfig) *PaperClient {
	balances := make(map[string]decimal.Decimal, len(paperSeedBalances))
	for currency, amount := range paperSeedBalances {
		balances[currency] = decimal.RequireFromString(amount)
	}

	return &PaperClient{
		caps:     ResolveCapabilities(models.ProviderPaper, models.FamilyPaperSim, cfg.Env),
		balances: balances,
		orders:   make(map[string]*models.Order),
	}
}

func (c *PaperClient) Name() string {
	return models.ProviderPaper
}

func (c *PaperClient) Capabilities() models.Capabilities {
	return c.caps
}

func (c *PaperClient) GetBalances(ctx context.Context) ([]models.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	balances := make([]models.Balance, 0, len(c.balances))
	for currency, amount := range c.balances {
		balance := models.NewBalance(currency, amount, decimal.Zero)
		if balance.IsZero() {
			continue
		}
		balances = append(balances, balance)
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Currency < balances[j].Currency })
	return balances, nil
}

func (c *PaperClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &models.Ticker{
		Symbol:    symbol,
		LastPrice: paperPrice(symbol),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (c *PaperClient) CreateOrder(ctx context.Context, params models.OrderParams) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	order := &models.Order{
		ID:              uuid.NewString(),
		Symbol:          params.Symbol,
		Side:            params.Side,
		Type:            params.Type,
		Quantity:        params.Quantity,
		Price:           params.Price,
		Status:          models.OrderStatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.ExchangeOrderID = order.ID

	if params.Type == models.OrderTypeMarket {
		order.Price = paperPrice(params.Symbol)
		order.FilledQty = params.Quantity
		order.Status = models.OrderStatusFilled
	}

	c.orders[order.ID] = order

	snapshot := *order
	return &snapshot, nil
}

func (c *PaperClient) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return &APIError{Provider: models.ProviderPaper, Code: "404", Message: "order not found"}
	}
	if IsTerminalStatus(order.Status) {
		return fmt.Errorf("order %s already %s", orderID, order.Status)
	}

	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	return nil
}

func (c *PaperClient) GetOrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return nil, &APIError{Provider: models.ProviderPaper, Code: "404", Message: "order not found"}
	}

	snapshot := *order
	return &snapshot, nil
}

// TestConnection для песочницы всегда успешен
func (c *PaperClient) TestConnection(ctx context.Context) bool {
	return ctx.Err() == nil
}

// paperPrice возвращает детерминированную цену для символа: хеш строки
// отображается в диапазон, чтобы тесты и повторные вызовы совпадали
func paperPrice(symbol string) decimal.Decimal {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(symbol); i++ {
		h ^= uint64(symbol[i])
		h *= 1099511628211
	}
	cents := int64(h%10_000_000) + 100
	return decimal.New(cents, -2)
}
