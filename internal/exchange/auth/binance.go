package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// BinanceSigner подписывает запросы HMAC-SHA256 по query-строке.
// Схема: в query добавляется timestamp (мс), по получившейся строке
// считается HMAC-SHA256 hex, результат добавляется параметром signature
// строго последним. Ключ передается статическим заголовком X-MBX-APIKEY.
type BinanceSigner struct {
	apiKey    string
	apiSecret string

	now func() time.Time
}

// NewBinanceSigner создает подписчика для Binance-style API
func NewBinanceSigner(apiKey, apiSecret string) *BinanceSigner {
	return &BinanceSigner{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		now:       time.Now,
	}
}

// Sign реализует Signer
func (s *BinanceSigner) Sign(r *Request) error {
	r.Query.Set("timestamp", strconv.FormatInt(s.now().UnixMilli(), 10))

	payload := r.Query.Encode()
	signature := s.signPayload(payload)

	// signature не входит в подписываемую строку и идет последним параметром
	r.RawQuery = payload + "&signature=" + signature
	r.Header.Set("X-MBX-APIKEY", s.apiKey)
	return nil
}

func (s *BinanceSigner) signPayload(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.apiSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
