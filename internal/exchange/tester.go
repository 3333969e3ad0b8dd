package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradedesk/internal/models"
	"tradedesk/pkg/utils"
)

// TestResult - итог пробного подключения. Секреты в результат
// не попадают.
type TestResult struct {
	OK           bool                `json:"ok"`
	Provider     string              `json:"provider"`
	Family       string              `json:"family"`
	Env          string              `json:"env"`
	Capabilities models.Capabilities `json:"capabilities"`
	Latency      time.Duration       `json:"latency_ns"`
	Warnings     []string            `json:"warnings,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// ConnectionTester проверяет ключи одноразовым клиентом до того, как
// подключение будет сохранено
type ConnectionTester struct {
	timeout time.Duration
	logger  *utils.Logger
}

func NewConnectionTester(timeout time.Duration, logger *utils.Logger) *ConnectionTester {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ConnectionTester{timeout: timeout, logger: logger}
}

// Test нормализует и валидирует ключи, собирает одноразового клиента и
// выполняет немутирующий вызов. Клиент после проверки выбрасывается:
// сохранение подключения происходит только после успешного теста.
func (t *ConnectionTester) Test(ctx context.Context, cfg models.ConnectionConfig) TestResult {
	if cfg.Env == "" {
		cfg.Env = models.EnvProd
	}
	if cfg.APIFamily == "" {
		cfg.APIFamily = DefaultFamily(cfg.Provider)
	}

	result := TestResult{
		Provider:     cfg.Provider,
		Family:       cfg.APIFamily,
		Env:          cfg.Env,
		Capabilities: ResolveCapabilities(cfg.Provider, cfg.APIFamily, cfg.Env),
	}

	parsed := ParsePasted(cfg.Credentials.APIKey, cfg.Credentials.APISecret, cfg.Credentials.APIPassphrase)
	cfg.Credentials = parsed.Credentials
	result.Warnings = parsed.Warnings

	if err := ValidateFormat(cfg.Provider, cfg.APIFamily, cfg.Credentials); err != nil {
		result.Error = err.Error()
		return result
	}

	client, err := Build(cfg)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	testCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	ok := client.TestConnection(testCtx)
	result.Latency = time.Since(start)
	result.OK = ok

	if !ok {
		result.Error = fmt.Errorf("%w: %s/%s", ErrConnectionTest, cfg.Provider, cfg.APIFamily).Error()
		if errors.Is(testCtx.Err(), context.DeadlineExceeded) {
			result.Error = fmt.Sprintf("connection test timed out after %s", t.timeout)
		}
	}

	if t.logger != nil {
		t.logger.WithProvider(cfg.Provider).Info(fmt.Sprintf(
			"connection test finished: family=%s env=%s ok=%v latency=%s",
			cfg.APIFamily, cfg.Env, ok, result.Latency.Round(time.Millisecond),
		))
	}

	return result
}
