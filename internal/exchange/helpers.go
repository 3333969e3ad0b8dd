package exchange

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// hostOf извлекает хост из базового URL (нужен для CDP uri claim)
func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}

// copyHeaders переносит заголовки подписчика в исходящий запрос
func copyHeaders(req *http.Request, h http.Header) {
	for key, values := range h {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
}

// parseDecimal парсит десятичную строку провайдера; мусор дает 0
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func index0(vals []string) string {
	if len(vals) > 0 {
		return vals[0]
	}
	return "0"
}

func index1(vals []string) string {
	if len(vals) > 1 {
		return vals[1]
	}
	return "0"
}

func upper(s string) string { return strings.ToUpper(s) }
func lower(s string) string { return strings.ToLower(s) }

// splitCompositeOrderID разбирает составной идентификатор SYMBOL:orderId.
// Для провайдеров, требующих символ в cancel/status вызовах.
func splitCompositeOrderID(id string) (symbol, orderID string) {
	if idx := strings.IndexByte(id, ':'); idx > 0 {
		return id[:idx], id[idx+1:]
	}
	return "", id
}
