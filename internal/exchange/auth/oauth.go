package auth

import (
	"errors"
	"net/url"
	"strings"
)

// ErrOAuthSigningNotImplemented - OAuth-поток не подписывает запросы.
// Отдельный обмен authorization code выдает bearer-токен, который
// потребляется вне этого слоя; здесь строится только authorization URL.
var ErrOAuthSigningNotImplemented = errors.New("oauth strategy does not sign requests: exchange the authorization code for a bearer token first")

// authorizeURL - точка входа OAuth-потока Coinbase
const authorizeURL = "https://login.coinbase.com/oauth2/auth"

// OAuthStrategy - вариант стратегии для семейства Coinbase App.
type OAuthStrategy struct {
	clientID    string
	redirectURI string
	scopes      []string
}

// NewOAuthStrategy создает OAuth-стратегию
func NewOAuthStrategy(clientID, redirectURI string, scopes []string) *OAuthStrategy {
	return &OAuthStrategy{
		clientID:    clientID,
		redirectURI: redirectURI,
		scopes:      scopes,
	}
}

// AuthorizationURL строит URL авторизации с redirect URI и scopes
func (s *OAuthStrategy) AuthorizationURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", s.clientID)
	q.Set("redirect_uri", s.redirectURI)
	if len(s.scopes) > 0 {
		q.Set("scope", strings.Join(s.scopes, " "))
	}
	if state != "" {
		q.Set("state", state)
	}
	return authorizeURL + "?" + q.Encode()
}

// Sign реализует Signer. Возвращает явную ошибку вместо тихого успеха.
func (s *OAuthStrategy) Sign(r *Request) error {
	return ErrOAuthSigningNotImplemented
}
