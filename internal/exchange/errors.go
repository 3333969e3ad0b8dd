package exchange

import (
	"errors"
	"fmt"
)

// Сентинельные ошибки слоя подключений
var (
	// ErrUnsupportedOperation - возможность не предоставлена матрицей
	// для данной пары (провайдер, семейство)
	ErrUnsupportedOperation = errors.New("operation not supported for this provider/api family")

	// ErrUnsupportedProvider - неизвестный провайдер или семейство
	ErrUnsupportedProvider = errors.New("unsupported provider or api family")

	// ErrConnectionTest - тестовый вызов не прошел
	ErrConnectionTest = errors.New("connection test failed")
)

// ValidationError - некорректные или отсутствующие поля credentials,
// либо неподдерживаемая комбинация провайдер/семейство/окружение.
// Всегда обнаруживается до какого-либо сетевого вызова.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError создает ошибку валидации.
// Reason никогда не должен содержать сам секрет.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// APIError - провайдер отклонил запрос. Несет оригинальный код и
// сообщение провайдера (HTTP-статус или код из тела 200-ответа).
type APIError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s api error %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}

// Unwrap возвращает оригинальную ошибку для errors.Is() и errors.As()
func (e *APIError) Unwrap() error {
	return e.Err
}

// ConnectivityError - сеть или таймаут; до провайдера запрос не дошел
// либо ответ не получен вовремя.
type ConnectivityError struct {
	Provider string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s connectivity error: %v", e.Provider, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// IsRateLimited сообщает, отклонил ли провайдер запрос по rate limit.
// Используется предикатами retry на стороне вызывающего.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "429"
}
