package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// CoinbaseHMACSigner подписывает запросы legacy-схемой Coinbase Exchange.
//
// Схема:
//
//	message = timestamp + method + requestPath + body
//	подпись = base64(HMAC-SHA256(base64Decode(secret), message))
//
// Четыре заголовка: CB-ACCESS-KEY, CB-ACCESS-SIGN, CB-ACCESS-TIMESTAMP
// и CB-ACCESS-PASSPHRASE (для семейств, требующих passphrase).
type CoinbaseHMACSigner struct {
	apiKey     string
	apiSecret  string
	passphrase string

	now func() time.Time
}

// NewCoinbaseHMACSigner создает подписчика legacy Coinbase API
func NewCoinbaseHMACSigner(apiKey, apiSecret, passphrase string) *CoinbaseHMACSigner {
	return &CoinbaseHMACSigner{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passphrase: passphrase,
		now:        time.Now,
	}
}

// Sign реализует Signer
func (s *CoinbaseHMACSigner) Sign(r *Request) error {
	secret, err := base64.StdEncoding.DecodeString(s.apiSecret)
	if err != nil {
		return fmt.Errorf("coinbase secret is not valid base64: %w", err)
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)

	// requestPath включает query-строку, если она есть
	requestPath := r.Path
	if q := r.EncodedQuery(); q != "" {
		requestPath += "?" + q
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp + r.Method + requestPath))
	mac.Write(r.Body)

	r.Header.Set("CB-ACCESS-KEY", s.apiKey)
	r.Header.Set("CB-ACCESS-SIGN", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	r.Header.Set("CB-ACCESS-TIMESTAMP", timestamp)
	if s.passphrase != "" {
		r.Header.Set("CB-ACCESS-PASSPHRASE", s.passphrase)
	}
	return nil
}
