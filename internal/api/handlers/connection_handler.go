package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tradedesk/internal/exchange"
	"tradedesk/internal/models"
	"tradedesk/internal/service"
)

// CreateConnectionRequest - тело запроса для подключения биржи
type CreateConnectionRequest struct {
	Provider   string            `json:"provider"`
	APIFamily  string            `json:"api_family,omitempty"`
	Env        string            `json:"env,omitempty"`
	APIKey     string            `json:"api_key"`
	APISecret  string            `json:"api_secret"`
	Passphrase string            `json:"passphrase,omitempty"` // для Coinbase Exchange
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RotateCredentialsRequest - тело запроса для ротации ключей
type RotateCredentialsRequest struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
}

// CreateOrderRequest - тело запроса для размещения ордера
type CreateOrderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`  // buy, sell
	Type     string `json:"type"`  // market, limit
	Quantity string `json:"quantity"`
	Price    string `json:"price,omitempty"` // обязателен для limit
}

// ConnectionResponse - подключение плюс его статическая матрица возможностей
type ConnectionResponse struct {
	*models.ConnectionRecord
	Capabilities models.Capabilities `json:"capabilities"`
}

// ConnectionHandler отвечает за управление подключениями к биржам
//
// Endpoints:
// - GET /api/v1/exchanges/templates - поддерживаемые комбинации провайдер/семейство
// - POST /api/v1/connections - подключить биржу
// - POST /api/v1/connections/test - пробное подключение без сохранения
// - GET /api/v1/connections - список подключений
// - GET /api/v1/connections/{id} - одно подключение
// - POST /api/v1/connections/{id}/disconnect - отключить (ключи сохраняются)
// - DELETE /api/v1/connections/{id} - удалить вместе с ключами
// - POST /api/v1/connections/{id}/rotate - ротация ключей
// - GET /api/v1/connections/{id}/balances - балансы
// - GET /api/v1/connections/{id}/ticker - цена инструмента
// - POST /api/v1/connections/{id}/orders - разместить ордер
// - GET /api/v1/connections/{id}/orders/{orderId} - статус ордера
// - DELETE /api/v1/connections/{id}/orders/{orderId} - отменить ордер
type ConnectionHandler struct {
	connectionService service.ConnectionServiceInterface
}

// NewConnectionHandler создает новый ConnectionHandler
func NewConnectionHandler(connectionService service.ConnectionServiceInterface) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
	}
}

// GetTemplates возвращает все поддерживаемые комбинации провайдер/семейство
// GET /api/v1/exchanges/templates
//
// Фронтенд строит по этому списку форму подключения: какие поля
// обязательны, какие окружения доступны, что подключение сможет делать.
func (h *ConnectionHandler) GetTemplates(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.connectionService.Templates())
}

// CreateConnection подключает биржу с API ключами
// POST /api/v1/connections
//
// Тело запроса:
//
//	{
//	  "provider": "kraken",
//	  "api_family": "spot",
//	  "env": "prod",
//	  "api_key": "your-api-key",
//	  "api_secret": "your-secret-key",
//	  "passphrase": "optional-passphrase"
//	}
//
// Ключи проверяются пробным подключением до сохранения. Сохраненная
// запись не содержит ключей даже в зашифрованном виде.
//
// Ответы:
// - 201 Created: подключение сохранено
// - 400 Bad Request: некорректные данные
// - 401 Unauthorized: биржа отвергла ключи
// - 502 Bad Gateway: биржа недоступна
func (h *ConnectionHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decodeConnectionConfig(w, r)
	if !ok {
		return
	}

	record, warnings, err := h.connectionService.Connect(r.Context(), cfg)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"connection": newConnectionResponse(record),
		"warnings":   warnings,
	})
}

// TestConnection выполняет пробное подключение без сохранения
// POST /api/v1/connections/test
//
// Тело запроса совпадает с CreateConnection. Ответ всегда 200 OK:
// результат проверки (включая неуспех) - полезные данные, а не ошибка.
func (h *ConnectionHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decodeConnectionConfig(w, r)
	if !ok {
		return
	}

	result := h.connectionService.Test(r.Context(), cfg)
	respondWithJSON(w, http.StatusOK, result)
}

// GetConnections возвращает список всех подключений
// GET /api/v1/connections
func (h *ConnectionHandler) GetConnections(w http.ResponseWriter, r *http.Request) {
	records, err := h.connectionService.List(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list connections", err.Error())
		return
	}

	response := make([]ConnectionResponse, 0, len(records))
	for _, record := range records {
		response = append(response, newConnectionResponse(record))
	}

	respondWithJSON(w, http.StatusOK, response)
}

// GetConnection возвращает одно подключение
// GET /api/v1/connections/{id}
func (h *ConnectionHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := h.connectionService.Get(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newConnectionResponse(record))
}

// DisconnectConnection отключает биржу, сохраняя запись и ключи
// POST /api/v1/connections/{id}/disconnect
//
// Операции по отключенному подключению блокируются до повторного
// подключения через ротацию ключей.
func (h *ConnectionHandler) DisconnectConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.connectionService.Disconnect(r.Context(), id); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Connection disabled",
		"id":      id,
	})
}

// DeleteConnection удаляет подключение вместе с зашифрованными ключами
// DELETE /api/v1/connections/{id}
func (h *ConnectionHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.connectionService.Delete(r.Context(), id); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Connection deleted",
		"id":      id,
	})
}

// RotateCredentials заменяет ключи подключения на новые
// POST /api/v1/connections/{id}/rotate
//
// Новые ключи проверяются пробным подключением; при неуспехе старые
// ключи остаются в силе.
func (h *ConnectionHandler) RotateCredentials(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req RotateCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.APIKey == "" {
		respondWithError(w, http.StatusBadRequest, "API key is required", "")
		return
	}
	if req.APISecret == "" {
		respondWithError(w, http.StatusBadRequest, "API secret is required", "")
		return
	}

	creds := models.Credentials{
		APIKey:        req.APIKey,
		APISecret:     req.APISecret,
		APIPassphrase: req.Passphrase,
	}
	if err := h.connectionService.RotateCredentials(r.Context(), id, creds); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Credentials rotated",
		"id":      id,
	})
}

// GetBalances возвращает ненулевые балансы подключения
// GET /api/v1/connections/{id}/balances
func (h *ConnectionHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	balances, err := h.connectionService.GetBalances(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"connection_id": id,
		"balances":      balances,
	})
}

// GetTicker возвращает цену инструмента
// GET /api/v1/connections/{id}/ticker?symbol=BTC-USD
//
// Символ передается в формате биржи подключения.
func (h *ConnectionHandler) GetTicker(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'symbol' is required", "")
		return
	}

	ticker, err := h.connectionService.GetTicker(r.Context(), id, symbol)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ticker)
}

// CreateOrder размещает ордер через подключение
// POST /api/v1/connections/{id}/orders
//
// Тело запроса:
//
//	{
//	  "symbol": "BTC-USD",
//	  "side": "buy",
//	  "type": "limit",
//	  "quantity": "0.5",
//	  "price": "45000.00"
//	}
//
// Количество и цена передаются строками, чтобы не терять точность
// на float64.
//
// Ответы:
// - 201 Created: ордер принят (статус в теле ответа)
// - 400 Bad Request: некорректные параметры
// - 403 Forbidden: подключение не дает права торговать
// - 502 Bad Gateway: биржа недоступна
func (h *ConnectionHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	params, err := req.toOrderParams()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order parameters", err.Error())
		return
	}

	order, err := h.connectionService.PlaceOrder(r.Context(), id, params)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, order)
}

// GetOrderStatus возвращает актуальный статус ордера
// GET /api/v1/connections/{id}/orders/{orderId}
func (h *ConnectionHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	order, err := h.connectionService.OrderStatus(r.Context(), vars["id"], vars["orderId"])
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, order)
}

// CancelOrder отменяет ордер
// DELETE /api/v1/connections/{id}/orders/{orderId}
func (h *ConnectionHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.connectionService.CancelOrder(r.Context(), vars["id"], vars["orderId"]); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Order cancelled",
		"order_id": vars["orderId"],
	})
}

// decodeConnectionConfig декодирует и валидирует тело CreateConnection/TestConnection
func (h *ConnectionHandler) decodeConnectionConfig(w http.ResponseWriter, r *http.Request) (models.ConnectionConfig, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return models.ConnectionConfig{}, false
	}

	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if req.Provider == "" {
		respondWithError(w, http.StatusBadRequest, "Provider is required", "")
		return models.ConnectionConfig{}, false
	}
	if req.APIKey == "" && req.Provider != models.ProviderPaper {
		respondWithError(w, http.StatusBadRequest, "API key is required", "")
		return models.ConnectionConfig{}, false
	}

	return models.ConnectionConfig{
		Provider:  req.Provider,
		APIFamily: strings.ToLower(strings.TrimSpace(req.APIFamily)),
		Env:       strings.ToLower(strings.TrimSpace(req.Env)),
		Credentials: models.Credentials{
			APIKey:        req.APIKey,
			APISecret:     req.APISecret,
			APIPassphrase: req.Passphrase,
		},
		Metadata: req.Metadata,
	}, true
}

// respondWithServiceError переводит ошибки сервиса в HTTP коды
func (h *ConnectionHandler) respondWithServiceError(w http.ResponseWriter, err error) {
	var validationErr *exchange.ValidationError
	var apiErr *exchange.APIError
	var connErr *exchange.ConnectivityError

	switch {
	case errors.Is(err, service.ErrConnectionNotFound):
		respondWithError(w, http.StatusNotFound, "Connection not found", "")
	case errors.Is(err, service.ErrConnectionDisabled):
		respondWithError(w, http.StatusConflict, "Connection is disabled", "Rotate credentials to re-enable it")
	case errors.Is(err, service.ErrTradingNotAllowed):
		respondWithError(w, http.StatusForbidden, "Trading is not allowed for this connection", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusBadRequest, "Invalid API credentials", "")
	case errors.Is(err, service.ErrConnectionTestFailed):
		respondWithError(w, http.StatusUnauthorized, "Connection test failed", err.Error())
	case errors.Is(err, exchange.ErrUnsupportedProvider):
		respondWithError(w, http.StatusBadRequest, "Unsupported provider or API family", err.Error())
	case errors.Is(err, exchange.ErrUnsupportedOperation):
		respondWithError(w, http.StatusForbidden, "Operation not supported", err.Error())
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, "Validation failed", validationErr.Error())
	case errors.As(err, &apiErr):
		if apiErr.Code == "429" {
			respondWithError(w, http.StatusTooManyRequests, "Rate limited by exchange", apiErr.Error())
			return
		}
		respondWithError(w, http.StatusBadGateway, "Exchange rejected the request", apiErr.Error())
	case errors.As(err, &connErr):
		respondWithError(w, http.StatusBadGateway, "Exchange is unreachable", connErr.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}

// newConnectionResponse дополняет запись статической матрицей возможностей
func newConnectionResponse(record *models.ConnectionRecord) ConnectionResponse {
	return ConnectionResponse{
		ConnectionRecord: record,
		Capabilities:     exchange.ResolveCapabilities(record.Provider, record.APIFamily, record.Env),
	}
}

// toOrderParams переводит строковые количества в decimal
func (req CreateOrderRequest) toOrderParams() (models.OrderParams, error) {
	qty, err := decimalFromString("quantity", req.Quantity)
	if err != nil {
		return models.OrderParams{}, err
	}

	params := models.OrderParams{
		Symbol:   strings.TrimSpace(req.Symbol),
		Side:     strings.ToLower(strings.TrimSpace(req.Side)),
		Type:     strings.ToLower(strings.TrimSpace(req.Type)),
		Quantity: qty,
	}

	if req.Price != "" {
		price, err := decimalFromString("price", req.Price)
		if err != nil {
			return models.OrderParams{}, err
		}
		params.Price = price
	}

	return params, nil
}
