package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/internal/exchange/auth"
	"tradedesk/internal/models"
)

// KrakenClient реализует контракт Client для приватного REST API Kraken.
// Приватные методы живут под /0/private/<Method> и подписываются
// nonce+signature схемой (auth.KrakenSigner).
type KrakenClient struct {
	creds   models.Credentials
	caps    models.Capabilities
	signer  *auth.KrakenSigner
	baseURL string

	httpClient *http.Client
}

// NewKrakenClient создает клиента Kraken из конфигурации подключения
func NewKrakenClient(cfg models.ConnectionConfig) *KrakenClient {
	base, _ := BaseURL(models.ProviderKraken, models.FamilyKrakenSpot, cfg.Env)
	return &KrakenClient{
		creds:      cfg.Credentials,
		caps:       ResolveCapabilities(models.ProviderKraken, models.FamilyKrakenSpot, cfg.Env),
		signer:     auth.NewKrakenSigner(cfg.Credentials.APIKey, cfg.Credentials.APISecret),
		baseURL:    base,
		httpClient: PooledHTTPClient(),
	}
}

func (k *KrakenClient) Name() string {
	return models.ProviderKraken
}

func (k *KrakenClient) Capabilities() models.Capabilities {
	return k.caps
}

// krakenResponse - базовая форма любого ответа Kraken.
// Ошибки приходят массивом строк в 200-ответе.
type krakenResponse struct {
	Error  []string   `json:"error"`
	Result rawMessage `json:"result"`
}

// doPrivate выполняет подписанный POST к приватному методу
func (k *KrakenClient) doPrivate(ctx context.Context, path string, form url.Values) ([]byte, error) {
	r := auth.NewRequest(http.MethodPost, hostOf(k.baseURL), path)
	r.Form = form
	if err := k.signer.Sign(r); err != nil {
		return nil, NewValidationError("apiSecret", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+path, strings.NewReader(r.Form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	copyHeaders(req, r.Header)

	return k.roundTrip(req)
}

// doPublic выполняет неподписанный GET к публичному методу
func (k *KrakenClient) doPublic(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL := k.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	return k.roundTrip(req)
}

func (k *KrakenClient) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Provider: models.ProviderKraken, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Provider: models.ProviderKraken, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Provider: models.ProviderKraken,
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  strings.TrimSpace(string(body)),
		}
	}

	var base krakenResponse
	if err := json.Unmarshal(body, &base); err != nil {
		return nil, &APIError{Provider: models.ProviderKraken, Message: "malformed response: " + err.Error()}
	}
	if len(base.Error) > 0 {
		return nil, &APIError{
			Provider: models.ProviderKraken,
			Code:     base.Error[0],
			Message:  strings.Join(base.Error, "; "),
		}
	}

	return base.Result, nil
}

// GetBalances возвращает ненулевые балансы аккаунта.
// Kraken отдает суммарные остатки по валютам: locked всегда 0.
func (k *KrakenClient) GetBalances(ctx context.Context) (balances []models.Balance, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderKraken, "get_balances", start, err) }(time.Now())

	result, err := k.doPrivate(ctx, "/0/private/Balance", url.Values{})
	if err != nil {
		return nil, err
	}

	var raw map[string]string
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, &APIError{Provider: models.ProviderKraken, Message: "malformed balance response: " + err.Error()}
	}

	balances = make([]models.Balance, 0, len(raw))
	for currency, amountStr := range raw {
		amount, parseErr := decimal.NewFromString(amountStr)
		if parseErr != nil {
			continue
		}
		if amount.IsZero() {
			continue
		}
		balances = append(balances, models.NewBalance(currency, amount, decimal.Zero))
	}
	return balances, nil
}

// GetTicker возвращает текущую цену инструмента через публичный endpoint
func (k *KrakenClient) GetTicker(ctx context.Context, symbol string) (ticker *models.Ticker, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderKraken, "get_ticker", start, err) }(time.Now())

	query := url.Values{}
	query.Set("pair", symbol)

	result, err := k.doPublic(ctx, "/0/public/Ticker", query)
	if err != nil {
		return nil, err
	}

	var raw map[string]struct {
		C []string `json:"c"` // last trade: [price, lot volume]
		H []string `json:"h"` // high: [today, last 24h]
		L []string `json:"l"` // low: [today, last 24h]
		V []string `json:"v"` // volume: [today, last 24h]
		O string   `json:"o"` // today's opening price
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, &APIError{Provider: models.ProviderKraken, Message: "malformed ticker response: " + err.Error()}
	}

	for _, data := range raw {
		last := parseDecimal(index0(data.C))
		open, _ := decimal.NewFromString(data.O)

		return &models.Ticker{
			Symbol:    symbol,
			LastPrice: last,
			Change24h: last.Sub(open),
			High24h:   parseDecimal(index1(data.H)),
			Low24h:    parseDecimal(index1(data.L)),
			Volume24h: parseDecimal(index1(data.V)),
			Timestamp: time.Now().UTC(),
		}, nil
	}

	return nil, &APIError{Provider: models.ProviderKraken, Message: fmt.Sprintf("unknown pair %s", symbol)}
}

// CreateOrder размещает ордер через AddOrder.
// Нейтральные параметры переводятся в нативные имена Kraken:
// side -> type, type -> ordertype, quantity -> volume.
func (k *KrakenClient) CreateOrder(ctx context.Context, params models.OrderParams) (order *models.Order, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderKraken, "create_order", start, err) }(time.Now())

	form := url.Values{}
	form.Set("pair", params.Symbol)
	form.Set("type", params.Side)
	form.Set("ordertype", params.Type)
	form.Set("volume", params.Quantity.String())
	if params.Type == models.OrderTypeLimit {
		form.Set("price", params.Price.String())
	}

	result, err := k.doPrivate(ctx, "/0/private/AddOrder", form)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Txid []string `json:"txid"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderKraken, Message: "malformed order response: " + err.Error()}
	}
	if len(resp.Txid) == 0 {
		return nil, &APIError{Provider: models.ProviderKraken, Message: "order accepted without transaction id"}
	}

	now := time.Now()
	return &models.Order{
		ExchangeOrderID: resp.Txid[0],
		Symbol:          params.Symbol,
		Side:            params.Side,
		Type:            params.Type,
		Quantity:        params.Quantity,
		Price:           params.Price,
		Status:          models.OrderStatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CancelOrder отменяет ордер по биржевому идентификатору
func (k *KrakenClient) CancelOrder(ctx context.Context, orderID string) (err error) {
	defer func(start time.Time) { observeRequest(models.ProviderKraken, "cancel_order", start, err) }(time.Now())

	form := url.Values{}
	form.Set("txid", orderID)

	_, err = k.doPrivate(ctx, "/0/private/CancelOrder", form)
	return err
}

// GetOrderStatus возвращает нормализованный снимок ордера через QueryOrders
func (k *KrakenClient) GetOrderStatus(ctx context.Context, orderID string) (order *models.Order, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderKraken, "get_order_status", start, err) }(time.Now())

	form := url.Values{}
	form.Set("txid", orderID)

	result, err := k.doPrivate(ctx, "/0/private/QueryOrders", form)
	if err != nil {
		return nil, err
	}

	var raw map[string]struct {
		Status  string `json:"status"`
		Vol     string `json:"vol"`
		VolExec string `json:"vol_exec"`
		Descr   struct {
			Pair      string `json:"pair"`
			Type      string `json:"type"`
			Ordertype string `json:"ordertype"`
			Price     string `json:"price"`
		} `json:"descr"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, &APIError{Provider: models.ProviderKraken, Message: "malformed order status response: " + err.Error()}
	}

	info, ok := raw[orderID]
	if !ok {
		return nil, &APIError{Provider: models.ProviderKraken, Message: fmt.Sprintf("order %s not found", orderID)}
	}

	qty := parseDecimal(info.Vol)
	filled := parseDecimal(info.VolExec)

	return &models.Order{
		ExchangeOrderID: orderID,
		Symbol:          info.Descr.Pair,
		Side:            info.Descr.Type,
		Type:            info.Descr.Ordertype,
		Quantity:        qty,
		Price:           parseDecimal(info.Descr.Price),
		FilledQty:       filled,
		Status:          mapKrakenStatus(info.Status, filled),
		UpdatedAt:       time.Now(),
	}, nil
}

// TestConnection выполняет немутирующую проверку через чтение баланса
func (k *KrakenClient) TestConnection(ctx context.Context) bool {
	_, err := k.GetBalances(ctx)
	return err == nil
}

// mapKrakenStatus переводит статус Kraken в нормализованный
func mapKrakenStatus(status string, filled decimal.Decimal) string {
	switch status {
	case "pending", "open":
		if filled.IsPositive() {
			return models.OrderStatusPartiallyFilled
		}
		return models.OrderStatusOpen
	case "closed":
		return models.OrderStatusFilled
	case "canceled":
		return models.OrderStatusCancelled
	case "expired":
		return models.OrderStatusExpired
	default:
		return models.OrderStatusRejected
	}
}

