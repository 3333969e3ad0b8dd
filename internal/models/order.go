package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Стороны ордера
const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"
)

// Типы ордера
const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// Статусы ордера.
// Жизненный цикл: pending -> open -> {partially_filled -> filled | cancelled | rejected | expired}.
// Терминальные статусы никогда не меняются.
const (
	OrderStatusPending         = "pending"
	OrderStatusOpen            = "open"
	OrderStatusPartiallyFilled = "partially_filled"
	OrderStatusFilled          = "filled"
	OrderStatusCancelled       = "cancelled"
	OrderStatusRejected        = "rejected"
	OrderStatusExpired         = "expired"
)

// OrderParams - нейтральная форма параметров размещения ордера.
// Клиент каждого провайдера переводит ее в нативные имена полей
// и регистр значений.
type OrderParams struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"` // buy, sell
	Type     string          `json:"type"` // market, limit
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price,omitempty"` // обязателен только для limit
}

// Order - локальный ордер с зеркалом удаленного состояния.
// ExchangeOrderID появляется только после подтвержденного размещения:
// статус open без ExchangeOrderID - нарушение контракта.
type Order struct {
	ID              string          `json:"id"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	Symbol          string          `json:"symbol"`
	Side            string          `json:"side"`
	Type            string          `json:"type"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price,omitempty"`
	FilledQty       decimal.Decimal `json:"filled_qty"`
	Status          string          `json:"status"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
