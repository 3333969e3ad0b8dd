package auth

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CDPSigner подписывает запросы сервисным ключом Coinbase CDP.
// Ключ идентифицируется иерархическим именем
// organizations/{org_id}/apiKeys/{key_id} в паре с PEM приватным ключом EC.
// Каждый запрос авторизуется короткоживущим JWT (ES256) в Authorization.
type CDPSigner struct {
	keyName    string
	privateKey *ecdsa.PrivateKey

	now func() time.Time
}

// jwtTTL - время жизни токена на один запрос
const jwtTTL = 2 * time.Minute

// NewCDPSigner создает подписчика из имени ключа и PEM приватного ключа.
// Возвращает ошибку если PEM не содержит валидный EC ключ.
func NewCDPSigner(keyName, privateKeyPEM string) (*CDPSigner, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("invalid CDP private key: %w", err)
	}
	return &CDPSigner{
		keyName:    keyName,
		privateKey: key,
		now:        time.Now,
	}, nil
}

// Sign реализует Signer
func (s *CDPSigner) Sign(r *Request) error {
	nowTime := s.now()

	nonce, err := randomNonce()
	if err != nil {
		return err
	}

	claims := jwt.MapClaims{
		"sub": s.keyName,
		"iss": "cdp",
		"nbf": nowTime.Unix(),
		"exp": nowTime.Add(jwtTTL).Unix(),
		"uri": fmt.Sprintf("%s %s%s", r.Method, r.Host, r.Path),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.keyName
	token.Header["nonce"] = nonce

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign CDP token: %w", err)
	}

	r.Header.Set("Authorization", "Bearer "+signed)
	return nil
}

func randomNonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
