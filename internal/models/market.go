package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance - нормализованный баланс по одной валюте.
// Инвариант: Total = Available + Locked. Каждый маппинг провайдера
// обязан его соблюдать.
type Balance struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	Total     decimal.Decimal `json:"total"`
}

// NewBalance создает баланс с вычисленным Total
func NewBalance(currency string, available, locked decimal.Decimal) Balance {
	return Balance{
		Currency:  currency,
		Available: available,
		Locked:    locked,
		Total:     available.Add(locked),
	}
}

// IsZero возвращает true если по валюте нет средств
func (b Balance) IsZero() bool {
	return b.Total.IsZero()
}

// Ticker - нормализованная информация о текущей цене инструмента
type Ticker struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"last_price"`
	Change24h decimal.Decimal `json:"change_24h"`
	High24h   decimal.Decimal `json:"high_24h"`
	Low24h    decimal.Decimal `json:"low_24h"`
	Volume24h decimal.Decimal `json:"volume_24h"`
	Timestamp time.Time       `json:"timestamp"`
}
