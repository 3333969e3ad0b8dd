package exchange

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradedesk/internal/models"
)

// ValidTransitions определяет допустимые переходы между статусами ордера.
// Терминальные статусы (filled, cancelled, rejected, expired) переходов
// не имеют.
var ValidTransitions = map[string][]string{
	models.OrderStatusPending: {models.OrderStatusOpen, models.OrderStatusRejected},
	models.OrderStatusOpen: {
		models.OrderStatusPartiallyFilled,
		models.OrderStatusFilled,
		models.OrderStatusCancelled,
		models.OrderStatusExpired,
	},
	models.OrderStatusPartiallyFilled: {
		models.OrderStatusFilled,
		models.OrderStatusCancelled,
		models.OrderStatusExpired,
	},
	models.OrderStatusFilled:    {},
	models.OrderStatusCancelled: {},
	models.OrderStatusRejected:  {},
	models.OrderStatusExpired:   {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus возвращает true для статусов без дальнейших переходов
func IsTerminalStatus(s string) bool {
	allowed, ok := ValidTransitions[s]
	return ok && len(allowed) == 0
}

// NewLocalOrder создает локальный ордер в статусе pending.
// Статус присваивается до любого удаленного вызова.
func NewLocalOrder(params models.OrderParams) *models.Order {
	now := time.Now()
	return &models.Order{
		ID:        uuid.NewString(),
		Symbol:    params.Symbol,
		Side:      params.Side,
		Type:      params.Type,
		Quantity:  params.Quantity,
		Price:     params.Price,
		Status:    models.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition переводит ордер в новый статус, проверяя допустимость перехода.
// Переход в open без биржевого идентификатора - нарушение контракта.
func Transition(o *models.Order, to string) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("invalid order transition %s -> %s", o.Status, to)
	}
	if to == models.OrderStatusOpen && o.ExchangeOrderID == "" {
		return fmt.Errorf("cannot open order %s without exchange order id", o.ID)
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

// MarkOpen фиксирует успешное удаленное размещение
func MarkOpen(o *models.Order, exchangeOrderID string) error {
	o.ExchangeOrderID = exchangeOrderID
	return Transition(o, models.OrderStatusOpen)
}

// MarkRejected фиксирует отказ размещения. ExchangeOrderID не требуется.
func MarkRejected(o *models.Order, reason string) error {
	o.ErrorMessage = reason
	return Transition(o, models.OrderStatusRejected)
}
