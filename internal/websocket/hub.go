package websocket

import (
	"bytes"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"tradedesk/internal/models"
	"tradedesk/pkg/utils"
)

// sync.Pool для JSON буферов: убирает аллокации при каждом Broadcast

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями дашборда.
// Центральный менеджер broadcast-сообщений: real-time статусы
// подключений, балансы и ордера без polling со стороны frontend.
//
// Типы сообщений:
// - connectionUpdate: смена статуса подключения (active/failed/disabled)
// - balanceUpdate: свежие балансы после успешного чтения
// - tickerUpdate: цена инструмента
// - orderUpdate: изменение статуса ордера
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastConnectionUpdate(record)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Обрабатывает регистрацию, отмену регистрации и broadcast
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			utils.L().WithComponent("websocket").Debug("client connected", zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			utils.L().WithComponent("websocket").Debug("client disconnected", zap.Int("clients", len(h.clients)))

		case message := <-h.broadcast:
			// копируем список клиентов под коротким RLock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// отправляем без блокировки, чтобы не тормозить register/unregister
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// клиент не успевает обрабатывать сообщения
					toRemove = append(toRemove, client)
				}
			}

			// удаляем медленных клиентов под Write Lock
			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				utils.L().WithComponent("websocket").Warn("removed slow clients", zap.Int("removed", len(toRemove)), zap.Int("clients", len(h.clients)))
			}
		}
	}
}

// Broadcast отправляет сообщение всем подключенным клиентам.
// Использует sync.Pool для буферов сериализации.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		utils.L().WithComponent("websocket").Error("broadcast marshal failed", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	// убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// копируем данные, буфер возвращается в пул
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastConnectionUpdate отправляет смену статуса подключения
func (h *Hub) BroadcastConnectionUpdate(conn *models.ConnectionRecord) {
	h.Broadcast(&ConnectionUpdateMessage{
		Type:       string(MessageTypeConnectionUpdate),
		Connection: conn,
	})
}

// BroadcastBalanceUpdate отправляет свежие балансы подключения
func (h *Hub) BroadcastBalanceUpdate(connectionID string, balances []models.Balance) {
	h.Broadcast(&BalanceUpdateMessage{
		Type:         string(MessageTypeBalanceUpdate),
		ConnectionID: connectionID,
		Balances:     balances,
	})
}

// BroadcastTickerUpdate отправляет цену инструмента
func (h *Hub) BroadcastTickerUpdate(connectionID string, ticker *models.Ticker) {
	h.Broadcast(&TickerUpdateMessage{
		Type:         string(MessageTypeTickerUpdate),
		ConnectionID: connectionID,
		Ticker:       ticker,
	})
}

// BroadcastOrderUpdate отправляет изменение статуса ордера
func (h *Hub) BroadcastOrderUpdate(connectionID string, order *models.Order) {
	h.Broadcast(&OrderUpdateMessage{
		Type:         string(MessageTypeOrderUpdate),
		ConnectionID: connectionID,
		Order:        order,
	})
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
