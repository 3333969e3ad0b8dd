package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk/internal/exchange/auth"
	"tradedesk/internal/models"
)

// CoinbaseClient реализует контракт Client для пяти API-семейств Coinbase.
// Семейства exchange и advanced_trade работают в pro-режиме (размещение
// ордеров поддерживается); app, server_wallet и trade_api - в базовом
// (только балансы и цены, торговые операции дают ErrUnsupportedOperation).
type CoinbaseClient struct {
	family  string
	creds   models.Credentials
	caps    models.Capabilities
	signer  auth.Signer
	baseURL string
	proMode bool

	httpClient *http.Client
}

// NewCoinbaseClient создает клиента Coinbase. Стратегия подписи выбирается
// по семейству: exchange - HMAC с passphrase, advanced_trade/server_wallet/
// trade_api - CDP JWT, app - OAuth (подпись запросов не реализована).
func NewCoinbaseClient(cfg models.ConnectionConfig) (*CoinbaseClient, error) {
	family := cfg.APIFamily
	if family == "" {
		family = DefaultFamily(models.ProviderCoinbase)
	}

	authType, ok := AuthType(models.ProviderCoinbase, family)
	if !ok {
		return nil, fmt.Errorf("%w: coinbase/%s", ErrUnsupportedProvider, family)
	}

	var signer auth.Signer
	switch authType {
	case auth.TypeHMACTimestamp:
		signer = auth.NewCoinbaseHMACSigner(cfg.Credentials.APIKey, cfg.Credentials.APISecret, cfg.Credentials.APIPassphrase)
	case auth.TypeCDPJWT:
		cdp, err := auth.NewCDPSigner(cfg.Credentials.APIKey, cfg.Credentials.APISecret)
		if err != nil {
			return nil, NewValidationError("apiSecret", err.Error())
		}
		signer = cdp
	case auth.TypeOAuth:
		signer = auth.NewOAuthStrategy(cfg.Credentials.APIKey, cfg.Metadata["redirect_uri"], strings.Fields(cfg.Metadata["scopes"]))
	default:
		return nil, fmt.Errorf("%w: coinbase/%s", ErrUnsupportedProvider, family)
	}

	base, _ := BaseURL(models.ProviderCoinbase, family, cfg.Env)
	return &CoinbaseClient{
		family:     family,
		creds:      cfg.Credentials,
		caps:       ResolveCapabilities(models.ProviderCoinbase, family, cfg.Env),
		signer:     signer,
		baseURL:    base,
		proMode:    family == models.FamilyCoinbaseExchange || family == models.FamilyCoinbaseAdvancedTrade,
		httpClient: PooledHTTPClient(),
	}, nil
}

func (c *CoinbaseClient) Name() string {
	return models.ProviderCoinbase
}

func (c *CoinbaseClient) Capabilities() models.Capabilities {
	return c.caps
}

// doRequest выполняет подписанный запрос к Coinbase API
func (c *CoinbaseClient) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	r := auth.NewRequest(method, hostOf(c.baseURL), path)
	r.Query = query

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		r.Body = encoded
	}

	if err := c.signer.Sign(r); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if q := r.EncodedQuery(); q != "" {
		reqURL += "?" + q
	}

	var bodyReader io.Reader
	if r.Body != nil {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	copyHeaders(req, r.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Provider: models.ProviderCoinbase, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Provider: models.ProviderCoinbase, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &apiResp) == nil {
			if apiResp.Message != "" {
				msg = apiResp.Message
			} else if apiResp.Error != "" {
				msg = apiResp.Error
			}
		}
		return nil, &APIError{
			Provider: models.ProviderCoinbase,
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  msg,
		}
	}

	return body, nil
}

// GetBalances возвращает ненулевые балансы. Форма ответа зависит
// от семейства.
func (c *CoinbaseClient) GetBalances(ctx context.Context) (balances []models.Balance, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderCoinbase, "get_balances", start, err) }(time.Now())

	switch c.family {
	case models.FamilyCoinbaseExchange:
		return c.exchangeBalances(ctx)
	case models.FamilyCoinbaseAdvancedTrade:
		return c.brokerageBalances(ctx)
	default:
		return c.appBalances(ctx)
	}
}

func (c *CoinbaseClient) exchangeBalances(ctx context.Context) ([]models.Balance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/accounts", url.Values{}, nil)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Currency  string `json:"currency"`
		Available string `json:"available"`
		Hold      string `json:"hold"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed accounts response: " + err.Error()}
	}

	balances := make([]models.Balance, 0, len(resp))
	for _, acc := range resp {
		balance := models.NewBalance(acc.Currency, parseDecimal(acc.Available), parseDecimal(acc.Hold))
		if balance.IsZero() {
			continue
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

func (c *CoinbaseClient) brokerageBalances(ctx context.Context) ([]models.Balance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/brokerage/accounts", url.Values{}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Accounts []struct {
			Currency         string `json:"currency"`
			AvailableBalance struct {
				Value string `json:"value"`
			} `json:"available_balance"`
			Hold struct {
				Value string `json:"value"`
			} `json:"hold"`
		} `json:"accounts"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed accounts response: " + err.Error()}
	}

	balances := make([]models.Balance, 0, len(resp.Accounts))
	for _, acc := range resp.Accounts {
		balance := models.NewBalance(acc.Currency, parseDecimal(acc.AvailableBalance.Value), parseDecimal(acc.Hold.Value))
		if balance.IsZero() {
			continue
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

func (c *CoinbaseClient) appBalances(ctx context.Context) ([]models.Balance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v2/accounts", url.Values{}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Balance struct {
				Amount   string `json:"amount"`
				Currency string `json:"currency"`
			} `json:"balance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed accounts response: " + err.Error()}
	}

	balances := make([]models.Balance, 0, len(resp.Data))
	for _, acc := range resp.Data {
		balance := models.NewBalance(acc.Balance.Currency, parseDecimal(acc.Balance.Amount), decimal.Zero)
		if balance.IsZero() {
			continue
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// GetTicker возвращает текущую цену инструмента
func (c *CoinbaseClient) GetTicker(ctx context.Context, symbol string) (ticker *models.Ticker, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderCoinbase, "get_ticker", start, err) }(time.Now())

	switch c.family {
	case models.FamilyCoinbaseExchange:
		return c.exchangeTicker(ctx, symbol)
	case models.FamilyCoinbaseAdvancedTrade:
		return c.brokerageTicker(ctx, symbol)
	default:
		return c.spotPrice(ctx, symbol)
	}
}

func (c *CoinbaseClient) exchangeTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/products/"+symbol+"/stats", url.Values{}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Volume string `json:"volume"`
		Last   string `json:"last"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed stats response: " + err.Error()}
	}

	last := parseDecimal(resp.Last)
	return &models.Ticker{
		Symbol:    symbol,
		LastPrice: last,
		Change24h: last.Sub(parseDecimal(resp.Open)),
		High24h:   parseDecimal(resp.High),
		Low24h:    parseDecimal(resp.Low),
		Volume24h: parseDecimal(resp.Volume),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (c *CoinbaseClient) brokerageTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/brokerage/products/"+symbol, url.Values{}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Price                    string `json:"price"`
		PricePercentageChange24h string `json:"price_percentage_change_24h"`
		Volume24h                string `json:"volume_24h"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed product response: " + err.Error()}
	}

	last := parseDecimal(resp.Price)
	// Advanced Trade отдает изменение в процентах; нормализуем в абсолют
	pct := parseDecimal(resp.PricePercentageChange24h)
	change := decimal.Zero
	if !last.IsZero() {
		hundred := decimal.NewFromInt(100)
		change = last.Mul(pct).Div(hundred.Add(pct)).Round(8)
	}

	return &models.Ticker{
		Symbol:    symbol,
		LastPrice: last,
		Change24h: change,
		Volume24h: parseDecimal(resp.Volume24h),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (c *CoinbaseClient) spotPrice(ctx context.Context, symbol string) (*models.Ticker, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v2/prices/"+symbol+"/spot", url.Values{}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed price response: " + err.Error()}
	}

	return &models.Ticker{
		Symbol:    symbol,
		LastPrice: parseDecimal(resp.Data.Amount),
		Timestamp: time.Now().UTC(),
	}, nil
}

// CreateOrder размещает ордер. Базовые семейства (app, server_wallet,
// trade_api) торговлю не поддерживают.
func (c *CoinbaseClient) CreateOrder(ctx context.Context, params models.OrderParams) (order *models.Order, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderCoinbase, "create_order", start, err) }(time.Now())

	if !c.proMode {
		return nil, fmt.Errorf("%w: create order via coinbase/%s", ErrUnsupportedOperation, c.family)
	}

	if c.family == models.FamilyCoinbaseExchange {
		return c.exchangeCreateOrder(ctx, params)
	}
	return c.brokerageCreateOrder(ctx, params)
}

func (c *CoinbaseClient) exchangeCreateOrder(ctx context.Context, params models.OrderParams) (*models.Order, error) {
	payload := map[string]string{
		"product_id": params.Symbol,
		"side":       params.Side,
		"type":       params.Type,
		"size":       params.Quantity.String(),
	}
	if params.Type == models.OrderTypeLimit {
		payload["price"] = params.Price.String()
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/orders", url.Values{}, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed order response: " + err.Error()}
	}

	now := time.Now()
	return &models.Order{
		ExchangeOrderID: resp.ID,
		Symbol:          params.Symbol,
		Side:            params.Side,
		Type:            params.Type,
		Quantity:        params.Quantity,
		Price:           params.Price,
		Status:          mapCoinbaseStatus(resp.Status, decimal.Zero, params.Quantity),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (c *CoinbaseClient) brokerageCreateOrder(ctx context.Context, params models.OrderParams) (*models.Order, error) {
	config := map[string]interface{}{}
	if params.Type == models.OrderTypeLimit {
		config["limit_limit_gtc"] = map[string]string{
			"base_size":   params.Quantity.String(),
			"limit_price": params.Price.String(),
		}
	} else {
		config["market_market_ioc"] = map[string]string{
			"base_size": params.Quantity.String(),
		}
	}

	payload := map[string]interface{}{
		"client_order_id":     uuid.NewString(),
		"product_id":          params.Symbol,
		"side":                upper(params.Side),
		"order_configuration": config,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/api/v3/brokerage/orders", url.Values{}, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success         bool `json:"success"`
		SuccessResponse struct {
			OrderID string `json:"order_id"`
		} `json:"success_response"`
		ErrorResponse struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		} `json:"error_response"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed order response: " + err.Error()}
	}
	if !resp.Success {
		return nil, &APIError{
			Provider: models.ProviderCoinbase,
			Code:     resp.ErrorResponse.Error,
			Message:  resp.ErrorResponse.Message,
		}
	}

	now := time.Now()
	return &models.Order{
		ExchangeOrderID: resp.SuccessResponse.OrderID,
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

// CancelOrder отменяет ордер
func (c *CoinbaseClient) CancelOrder(ctx context.Context, orderID string) (err error) {
	defer func(start time.Time) { observeRequest(models.ProviderCoinbase, "cancel_order", start, err) }(time.Now())

	if !c.proMode {
		return fmt.Errorf("%w: cancel order via coinbase/%s", ErrUnsupportedOperation, c.family)
	}

	if c.family == models.FamilyCoinbaseExchange {
		_, err = c.doRequest(ctx, http.MethodDelete, "/orders/"+orderID, url.Values{}, nil)
		return err
	}

	payload := map[string][]string{"order_ids": {orderID}}
	_, err = c.doRequest(ctx, http.MethodPost, "/api/v3/brokerage/orders/batch_cancel", url.Values{}, payload)
	return err
}

// GetOrderStatus возвращает нормализованный снимок ордера
func (c *CoinbaseClient) GetOrderStatus(ctx context.Context, orderID string) (order *models.Order, err error) {
	defer func(start time.Time) { observeRequest(models.ProviderCoinbase, "get_order_status", start, err) }(time.Now())

	if !c.proMode {
		return nil, fmt.Errorf("%w: order status via coinbase/%s", ErrUnsupportedOperation, c.family)
	}

	if c.family == models.FamilyCoinbaseExchange {
		return c.exchangeOrderStatus(ctx, orderID)
	}
	return c.brokerageOrderStatus(ctx, orderID)
}

func (c *CoinbaseClient) exchangeOrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/orders/"+orderID, url.Values{}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID         string `json:"id"`
		ProductID  string `json:"product_id"`
		Side       string `json:"side"`
		Type       string `json:"type"`
		Size       string `json:"size"`
		FilledSize string `json:"filled_size"`
		Price      string `json:"price"`
		Status     string `json:"status"`
		DoneReason string `json:"done_reason"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed order status response: " + err.Error()}
	}

	qty := parseDecimal(resp.Size)
	filled := parseDecimal(resp.FilledSize)

	status := mapCoinbaseStatus(resp.Status, filled, qty)
	if resp.Status == "done" && resp.DoneReason == "canceled" {
		status = models.OrderStatusCancelled
	}

	return &models.Order{
		ExchangeOrderID: resp.ID,
		Symbol:          resp.ProductID,
		Side:            resp.Side,
		Type:            resp.Type,
		Quantity:        qty,
		Price:           parseDecimal(resp.Price),
		FilledQty:       filled,
		Status:          status,
		UpdatedAt:       time.Now(),
	}, nil
}

func (c *CoinbaseClient) brokerageOrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/brokerage/orders/historical/"+orderID, url.Values{}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Order struct {
			OrderID      string `json:"order_id"`
			ProductID    string `json:"product_id"`
			Side         string `json:"side"`
			Status       string `json:"status"`
			FilledSize   string `json:"filled_size"`
			AverageFill  string `json:"average_filled_price"`
			OrderConfig  map[string]struct {
				BaseSize   string `json:"base_size"`
				LimitPrice string `json:"limit_price"`
			} `json:"order_configuration"`
		} `json:"order"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Provider: models.ProviderCoinbase, Message: "malformed order status response: " + err.Error()}
	}

	var qty, price decimal.Decimal
	orderType := models.OrderTypeMarket
	for kind, cfg := range resp.Order.OrderConfig {
		qty = parseDecimal(cfg.BaseSize)
		if strings.HasPrefix(kind, "limit") {
			orderType = models.OrderTypeLimit
			price = parseDecimal(cfg.LimitPrice)
		}
	}

	filled := parseDecimal(resp.Order.FilledSize)
	return &models.Order{
		ExchangeOrderID: resp.Order.OrderID,
		Symbol:          resp.Order.ProductID,
		Side:            lower(resp.Order.Side),
		Type:            orderType,
		Quantity:        qty,
		Price:           price,
		FilledQty:       filled,
		Status:          mapBrokerageStatus(resp.Order.Status),
		UpdatedAt:       time.Now(),
	}, nil
}

// TestConnection выполняет немутирующую проверку через чтение баланса
func (c *CoinbaseClient) TestConnection(ctx context.Context) bool {
	_, err := c.GetBalances(ctx)
	return err == nil
}

// mapCoinbaseStatus переводит статус Coinbase Exchange в нормализованный
func mapCoinbaseStatus(status string, filled, qty decimal.Decimal) string {
	switch status {
	case "pending", "received":
		return models.OrderStatusOpen
	case "open", "active":
		if filled.IsPositive() && filled.LessThan(qty) {
			return models.OrderStatusPartiallyFilled
		}
		return models.OrderStatusOpen
	case "done", "settled":
		return models.OrderStatusFilled
	case "rejected":
		return models.OrderStatusRejected
	default:
		return models.OrderStatusOpen
	}
}

// mapBrokerageStatus переводит статус Advanced Trade в нормализованный
func mapBrokerageStatus(status string) string {
	switch status {
	case "OPEN", "PENDING", "QUEUED":
		return models.OrderStatusOpen
	case "FILLED":
		return models.OrderStatusFilled
	case "CANCELLED":
		return models.OrderStatusCancelled
	case "EXPIRED":
		return models.OrderStatusExpired
	case "FAILED":
		return models.OrderStatusRejected
	default:
		return models.OrderStatusOpen
	}
}
