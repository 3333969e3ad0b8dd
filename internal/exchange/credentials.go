package exchange

import (
	"encoding/base64"
	"strings"

	"tradedesk/internal/exchange/auth"
	"tradedesk/internal/models"
)

// ============ РАЗБОР И ВАЛИДАЦИЯ КЛЮЧЕЙ ============

// SanitizeCredentials убирает пробелы и кавычки, оставшиеся после
// копирования ключей из консолей бирж. Переводы строк внутри PEM
// сохраняются, экранированные \n разворачиваются.
func SanitizeCredentials(creds models.Credentials) models.Credentials {
	return models.Credentials{
		APIKey:        sanitizeField(creds.APIKey),
		APISecret:     sanitizeField(creds.APISecret),
		APIPassphrase: sanitizeField(creds.APIPassphrase),
	}
}

func sanitizeField(value string) string {
	value = trimField(value)
	if strings.Contains(value, `\n`) {
		value = strings.ReplaceAll(value, `\n`, "\n")
	}
	return strings.TrimSpace(value)
}

// trimField убирает пробелы и кавычки без разворачивания \n
func trimField(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, `"'`)
	return strings.TrimSpace(value)
}

// ParseResult - результат разбора вставленного секрета
type ParseResult struct {
	Credentials models.Credentials
	Warnings    []string
}

// ParsePasted распознает форму вставленного значения поля "секрет".
// Если пользователь вставил целиком JSON-файл ключа CDP вида
// {"name": ..., "privateKey": ...}, из него извлекаются оба поля и
// добавляется предупреждение об автоизвлечении.
func ParsePasted(apiKey, apiSecret, passphrase string) ParseResult {
	result := ParseResult{
		Credentials: models.Credentials{
			APIKey:        sanitizeField(apiKey),
			APISecret:     sanitizeField(apiSecret),
			APIPassphrase: sanitizeField(passphrase),
		},
	}

	// JSON разбирается до разворачивания \n: экранирование внутри
	// строковых литералов принадлежит JSON, а не PEM
	secret := trimField(apiSecret)
	if !strings.HasPrefix(secret, "{") {
		return result
	}

	var keyFile struct {
		Name       string `json:"name"`
		PrivateKey string `json:"privateKey"`
	}
	if err := json.Unmarshal([]byte(secret), &keyFile); err != nil {
		result.Warnings = append(result.Warnings, "secret looks like JSON but could not be parsed, stored as-is")
		return result
	}
	if keyFile.PrivateKey == "" {
		result.Warnings = append(result.Warnings, "JSON secret has no privateKey field, stored as-is")
		return result
	}

	result.Credentials.APISecret = sanitizeField(keyFile.PrivateKey)
	result.Warnings = append(result.Warnings, "private key extracted from pasted CDP key file")
	if keyFile.Name != "" {
		if result.Credentials.APIKey != "" && result.Credentials.APIKey != keyFile.Name {
			result.Warnings = append(result.Warnings, "api key replaced by key name from pasted CDP key file")
		}
		result.Credentials.APIKey = keyFile.Name
	}
	return result
}

// ValidateFormat проверяет форму ключей до сетевого вызова. Значения
// ключей в ошибки не попадают
func ValidateFormat(provider, family string, creds models.Credentials) error {
	authType, ok := AuthType(provider, family)
	if !ok {
		return NewValidationError("apiFamily", "unknown provider/family combination")
	}

	// paper не подписывает запросы, ключи не нужны
	if authType != auth.TypeNone && creds.APIKey == "" {
		return NewValidationError("apiKey", "must not be empty")
	}

	switch authType {
	case auth.TypeHMACQuery:
		if len(creds.APISecret) < 16 {
			return NewValidationError("apiSecret", "too short for an HMAC secret")
		}
	case auth.TypeHMACPathNonce:
		if !isBase64(creds.APISecret) {
			return NewValidationError("apiSecret", "must be base64-encoded")
		}
	case auth.TypeHMACTimestamp:
		if !isBase64(creds.APISecret) {
			return NewValidationError("apiSecret", "must be base64-encoded")
		}
		if provider == models.ProviderCoinbase && family == models.FamilyCoinbaseExchange && creds.APIPassphrase == "" {
			return NewValidationError("apiPassphrase", "required for coinbase exchange keys")
		}
	case auth.TypeCDPJWT:
		if !strings.Contains(creds.APISecret, "BEGIN EC PRIVATE KEY") &&
			!strings.Contains(creds.APISecret, "BEGIN PRIVATE KEY") {
			return NewValidationError("apiSecret", "must be a PEM-encoded private key")
		}
	case auth.TypeOAuth:
		// client id достаточно; токены выдает фаза авторизации
	case auth.TypeNone:
		// песочница ключи не проверяет
	}

	return nil
}

func isBase64(value string) bool {
	if value == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(value)
	return err == nil
}
