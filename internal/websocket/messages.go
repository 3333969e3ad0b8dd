package websocket

import (
	"tradedesk/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeConnectionUpdate - смена статуса подключения
	// Отправляется при подключении, отключении, ротации ключей и
	// переходах active <-> failed
	MessageTypeConnectionUpdate MessageType = "connectionUpdate"

	// MessageTypeBalanceUpdate - свежие балансы подключения
	// Отправляется после каждого успешного чтения балансов
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"

	// MessageTypeTickerUpdate - цена инструмента
	MessageTypeTickerUpdate MessageType = "tickerUpdate"

	// MessageTypeOrderUpdate - изменение статуса ордера
	MessageTypeOrderUpdate MessageType = "orderUpdate"
)

// ============ Типизированные сообщения (без map[string]interface{}) ============

// ConnectionUpdateMessage - изменение статуса подключения.
// Запись сериализуется без зашифрованных ключей (json:"-" на полях).
type ConnectionUpdateMessage struct {
	Type       string                   `json:"type"`
	Connection *models.ConnectionRecord `json:"connection"`
}

// BalanceUpdateMessage - свежие балансы подключения
type BalanceUpdateMessage struct {
	Type         string           `json:"type"`
	ConnectionID string           `json:"connection_id"`
	Balances     []models.Balance `json:"balances"`
}

// TickerUpdateMessage - обновление цены инструмента
type TickerUpdateMessage struct {
	Type         string         `json:"type"`
	ConnectionID string         `json:"connection_id"`
	Ticker       *models.Ticker `json:"ticker"`
}

// OrderUpdateMessage - изменение статуса ордера
type OrderUpdateMessage struct {
	Type         string        `json:"type"`
	ConnectionID string        `json:"connection_id"`
	Order        *models.Order `json:"order"`
}
