package exchange

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tradedesk/internal/exchange/auth"
	"tradedesk/internal/models"
)

// BinanceClient реализует контракт Client для Binance-style REST API
// (семейства global и us различаются только базовым URL).
// Приватные запросы подписываются HMAC по query-строке (auth.BinanceSigner).
type BinanceClient struct {
	family  string
	creds   models.Credentials
	caps    models.Capabilities
	signer  *auth.BinanceSigner
	baseURL string

	httpClient *http.Client
}

// NewBinanceClient создает клиента Binance из конфигурации подключения
func NewBinanceClient(cfg models.ConnectionConfig) *BinanceClient {
	family := cfg.APIFamily
	if family == "" {
		family = models.FamilyBinanceGlobal
	}
	base, _ := BaseURL(models.ProviderBinance, family, cfg.Env)
	return &BinanceClient{
		family:     family,
		creds:      cfg.Credentials,
		caps:       ResolveCapabilities(models.ProviderBinance, family, cfg.Env),
		signer:     auth.NewBinanceSigner(cfg.Credentials.APIKey, cfg.Credentials.APISecret),
		baseURL:    base,
		httpClient: PooledHTTPClient(),
	}
}

func (b *BinanceClient) Name() string {
	return models.ProviderBinance
}

func (b *BinanceClient) Capabilities() models.Capabilities {
	return b.caps
}

// doRequest выполняет запрос к Binance API.
// Для signed запросов параметры уходят в query-строке с подписью последней.
func (b *BinanceClient) doRequest(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	r := auth.NewRequest(method, hostOf(b.baseURL), path)
	r.Query = params

	if signed {
		if err := b.signer.Sign(r); err != nil {
			return nil, NewValidationError("apiSecret", err.Error())
		}
	}

	reqURL := b.baseURL + path
	if q := r.EncodedQuery(); q != "" {
		reqURL += "?" + q
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}
	copyHeaders(req, r.Header)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Provider: models.ProviderBinance, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Provider: models.ProviderBinance, Err: err}
	}

	// Binance кладет код ошибки в тело и при не-2xx статусе.
	// В Code уходит код биржи (например -1121); rate limit остается
	// различим по HTTP статусу 429.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiResp struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		code := strconv.Itoa(resp.StatusCode)
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &apiResp) == nil && apiResp.Code != 0 {
			msg = apiResp.Msg
			if resp.StatusCode != http.StatusTooManyRequests {
				code = strconv.Itoa(apiResp.Code)
			}
		}
		return nil, &APIError{Provider: models.ProviderBinance, Code: code, Message: msg}
	}

	return body, nil
}

// GetBalances возвращает ненулевые балансы спотового аккаунта
func (b *BinanceClient) GetBalances(ctx context.Context) (balances []models.Balance, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderBinance, "get_balances", start, err) }(time.Now())

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{}, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderBinance, Message: "malformed account response: " + err.Error()}
	}

	balances = make([]models.Balance, 0, len(resp.Balances))
	for _, entry := range resp.Balances {
		free := parseDecimal(entry.Free)
		locked := parseDecimal(entry.Locked)
		balance := models.NewBalance(entry.Asset, free, locked)
		if balance.IsZero() {
			continue
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// GetTicker возвращает 24h статистику инструмента
func (b *BinanceClient) GetTicker(ctx context.Context, symbol string) (ticker *models.Ticker, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderBinance, "get_ticker", start, err) }(time.Now())

	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/ticker/24hr", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Symbol      string `json:"symbol"`
		LastPrice   string `json:"lastPrice"`
		PriceChange string `json:"priceChange"`
		HighPrice   string `json:"highPrice"`
		LowPrice    string `json:"lowPrice"`
		Volume      string `json:"volume"`
		CloseTime   int64  `json:"closeTime"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderBinance, Message: "malformed ticker response: " + err.Error()}
	}

	return &models.Ticker{
		Symbol:    resp.Symbol,
		LastPrice: parseDecimal(resp.LastPrice),
		Change24h: parseDecimal(resp.PriceChange),
		High24h:   parseDecimal(resp.HighPrice),
		Low24h:    parseDecimal(resp.LowPrice),
		Volume24h: parseDecimal(resp.Volume),
		Timestamp: time.UnixMilli(resp.CloseTime),
	}, nil
}

// CreateOrder размещает ордер. Binance требует UPPERCASE для side и type.
func (b *BinanceClient) CreateOrder(ctx context.Context, params models.OrderParams) (order *models.Order, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderBinance, "create_order", start, err) }(time.Now())

	query := url.Values{}
	query.Set("symbol", params.Symbol)
	query.Set("side", upper(params.Side))
	query.Set("type", upper(params.Type))
	query.Set("quantity", params.Quantity.String())
	if params.Type == models.OrderTypeLimit {
		query.Set("price", params.Price.String())
		query.Set("timeInForce", "GTC")
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/api/v3/order", query, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		OrderID     int64  `json:"orderId"`
		Status      string `json:"status"`
		ExecutedQty string `json:"executedQty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderBinance, Message: "malformed order response: " + err.Error()}
	}

	// Binance требует символ для последующих cancel/status вызовов,
	// поэтому биржевой идентификатор составной: SYMBOL:orderId
	now := time.Now()
	return &models.Order{
		ExchangeOrderID: params.Symbol + ":" + strconv.FormatInt(resp.OrderID, 10),
		Symbol:          params.Symbol,
		Side:            params.Side,
		Type:            params.Type,
		Quantity:        params.Quantity,
		Price:           params.Price,
		FilledQty:       parseDecimal(resp.ExecutedQty),
		Status:          mapBinanceStatus(resp.Status),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CancelOrder отменяет ордер
func (b *BinanceClient) CancelOrder(ctx context.Context, orderID string) (err error) {
	defer func(start time.Time) { observeRequest(models.ProviderBinance, "cancel_order", start, err) }(time.Now())

	// Binance требует символ при отмене; нормализованный контракт несет
	// только orderId, поэтому символ передается составным идентификатором
	// SYMBOL:orderId, как его вернул CreateOrder вызывающей стороне
	symbol, id := splitCompositeOrderID(orderID)

	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	params.Set("orderId", id)

	_, err = b.doRequest(ctx, http.MethodDelete, "/api/v3/order", params, true)
	return err
}

// GetOrderStatus возвращает нормализованный снимок ордера
func (b *BinanceClient) GetOrderStatus(ctx context.Context, orderID string) (order *models.Order, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderBinance, "get_order_status", start, err) }(time.Now())

	symbol, id := splitCompositeOrderID(orderID)

	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	params.Set("orderId", id)

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Symbol      string `json:"symbol"`
		OrderID     int64  `json:"orderId"`
		Side        string `json:"side"`
		Type        string `json:"type"`
		OrigQty     string `json:"origQty"`
		ExecutedQty string `json:"executedQty"`
		Price       string `json:"price"`
		Status      string `json:"status"`
		UpdateTime  int64  `json:"updateTime"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderBinance, Message: "malformed order status response: " + err.Error()}
	}

	return &models.Order{
		ExchangeOrderID: resp.Symbol + ":" + strconv.FormatInt(resp.OrderID, 10),
		Symbol:          resp.Symbol,
		Side:            lower(resp.Side),
		Type:            lower(resp.Type),
		Quantity:        parseDecimal(resp.OrigQty),
		Price:           parseDecimal(resp.Price),
		FilledQty:       parseDecimal(resp.ExecutedQty),
		Status:          mapBinanceStatus(resp.Status),
		UpdatedAt:       time.UnixMilli(resp.UpdateTime),
	}, nil
}

// TestConnection выполняет немутирующую проверку через чтение баланса
func (b *BinanceClient) TestConnection(ctx context.Context) bool {
	_, err := b.GetBalances(ctx)
	return err == nil
}

// mapBinanceStatus переводит статус Binance в нормализованный
func mapBinanceStatus(status string) string {
	switch status {
	case "NEW":
		return models.OrderStatusOpen
	case "PARTIALLY_FILLED":
		return models.OrderStatusPartiallyFilled
	case "FILLED":
		return models.OrderStatusFilled
	case "CANCELED", "PENDING_CANCEL":
		return models.OrderStatusCancelled
	case "REJECTED":
		return models.OrderStatusRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return models.OrderStatusExpired
	default:
		return models.OrderStatusOpen
	}
}
