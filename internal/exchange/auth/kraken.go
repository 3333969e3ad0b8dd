package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// KrakenSigner подписывает приватные запросы Kraken REST API.
//
// Схема:
//
//	nonce   = миллисекунды (строго возрастающий)
//	message = path + SHA256(nonce + postData)
//	подпись = base64(HMAC-SHA512(base64Decode(secret), message))
//
// Подпись уходит в заголовке API-Sign, ключ - в API-Key.
type KrakenSigner struct {
	apiKey    string
	apiSecret string

	// lastNonce гарантирует уникальность nonce даже при двух вызовах
	// в пределах одной миллисекунды
	lastNonce atomic.Int64

	now func() time.Time
}

// NewKrakenSigner создает подписчика для Kraken-style API
func NewKrakenSigner(apiKey, apiSecret string) *KrakenSigner {
	return &KrakenSigner{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		now:       time.Now,
	}
}

// nextNonce возвращает строго возрастающий nonce.
// Если часы не продвинулись, берется последний nonce + 1.
func (s *KrakenSigner) nextNonce() int64 {
	for {
		candidate := s.now().UnixMilli()
		last := s.lastNonce.Load()
		if candidate <= last {
			candidate = last + 1
		}
		if s.lastNonce.CompareAndSwap(last, candidate) {
			return candidate
		}
	}
}

// Sign реализует Signer. Добавляет nonce в form-тело и вычисляет подпись
// по итоговой postData.
func (s *KrakenSigner) Sign(r *Request) error {
	secret, err := base64.StdEncoding.DecodeString(s.apiSecret)
	if err != nil {
		return fmt.Errorf("kraken secret is not valid base64: %w", err)
	}

	nonce := strconv.FormatInt(s.nextNonce(), 10)
	r.Form.Set("nonce", nonce)
	postData := r.Form.Encode()

	digest := sha256.Sum256([]byte(nonce + postData))

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(r.Path))
	mac.Write(digest[:])

	r.Header.Set("API-Key", s.apiKey)
	r.Header.Set("API-Sign", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return nil
}
