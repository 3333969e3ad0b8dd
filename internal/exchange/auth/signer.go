// Package auth содержит стратегии подписи запросов к биржевым API.
// Одна стратегия на семейство провайдера; выбор стратегии определяется
// исключительно парой (провайдер, семейство), не строковым именем биржи.
package auth

import (
	"net/http"
	"net/url"
)

// Типы стратегий аутентификации, фигурирующие в шаблонах подключений
const (
	TypeHMACQuery     = "hmac_query"      // Binance-style: подпись query-строки
	TypeHMACPathNonce = "hmac_path_nonce" // Kraken-style: path + nonce
	TypeHMACTimestamp = "hmac_timestamp"  // Coinbase legacy: timestamp-заголовки
	TypeCDPJWT        = "cdp_jwt"         // Coinbase CDP: сервисный ключ + JWT
	TypeOAuth         = "oauth"           // Coinbase App: bearer-токен после redirect
	TypeNone          = "none"            // симуляция, без подписи
)

// Request - исходящий запрос до подписи. Signer мутирует заголовки
// и query/form; тело после подписи меняться не должно.
type Request struct {
	Method string
	Host   string // хост без схемы, нужен для CDP uri claim
	Path   string // путь запроса без хоста
	Query  url.Values
	Form   url.Values // form-encoded тело (Kraken)
	Body   []byte     // JSON тело
	Header http.Header

	// RawQuery заполняется подписчиком, когда порядок параметров значим
	// (Binance требует signature последним параметром). Если пусто,
	// клиент использует Query.Encode().
	RawQuery string
}

// NewRequest создает запрос с инициализированными коллекциями
func NewRequest(method, host, path string) *Request {
	return &Request{
		Method: method,
		Host:   host,
		Path:   path,
		Query:  url.Values{},
		Form:   url.Values{},
		Header: http.Header{},
	}
}

// EncodedQuery возвращает итоговую query-строку запроса
func (r *Request) EncodedQuery() string {
	if r.RawQuery != "" {
		return r.RawQuery
	}
	return r.Query.Encode()
}

// Signer - стратегия подписи. Секрет берется из конфигурации подключения
// вызывающей стороны, никогда из разделяемого состояния.
type Signer interface {
	// Sign добавляет к запросу заголовки и/или параметры подписи
	Sign(r *Request) error
}
