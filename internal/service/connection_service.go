package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradedesk/internal/exchange"
	"tradedesk/internal/models"
	"tradedesk/internal/repository"
	"tradedesk/pkg/crypto"
	"tradedesk/pkg/retry"
	"tradedesk/pkg/utils"
)

// Ошибки сервиса
var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrConnectionDisabled   = errors.New("connection is disabled")
	ErrInvalidCredentials   = errors.New("invalid API credentials")
	ErrConnectionTestFailed = errors.New("connection test failed")
	ErrTradingNotAllowed    = errors.New("trading is not allowed for this connection")
)

// ConnectionService - бизнес-логика управления подключениями к биржам.
// Ключи расшифровываются на время одного вызова, клиент собирается
// заново для каждой операции: общего кэша клиентов нет.
type ConnectionService struct {
	repo     ConnectionRepositoryInterface
	codec    *crypto.Codec
	tester   ConnectionTesterInterface
	build    ClientBuilder
	logger   *utils.Logger
	retryCfg retry.Config

	// WebSocket hub для push-обновлений дашборда
	wsHub DashboardBroadcaster
}

// NewConnectionService создает новый экземпляр сервиса
func NewConnectionService(
	repo ConnectionRepositoryInterface,
	codec *crypto.Codec,
	tester ConnectionTesterInterface,
	logger *utils.Logger,
) *ConnectionService {
	cfg := retry.DefaultConfig()
	cfg.RetryIf = isTransient

	return &ConnectionService{
		repo:     repo,
		codec:    codec,
		tester:   tester,
		build:    exchange.Build,
		logger:   logger,
		retryCfg: cfg,
	}
}

// SetWebSocketHub устанавливает hub для broadcast обновлений.
// Вызывается после инициализации Hub в main.go.
func (s *ConnectionService) SetWebSocketHub(hub DashboardBroadcaster) {
	s.wsHub = hub
}

// isTransient - предикат retry: повторяем только сетевые сбои и rate limit
func isTransient(err error) bool {
	var connErr *exchange.ConnectivityError
	return errors.As(err, &connErr) || exchange.IsRateLimited(err)
}

// Templates возвращает поддерживаемые комбинации провайдер/семейство
func (s *ConnectionService) Templates() []exchange.Template {
	return exchange.Templates()
}

// Connect подключает биржу: разбор ключей -> пробный вызов -> шифрование
// -> сохранение. Подключение не сохраняется, пока тест не прошел.
func (s *ConnectionService) Connect(ctx context.Context, cfg models.ConnectionConfig) (*models.ConnectionRecord, []string, error) {
	if cfg.Env == "" {
		cfg.Env = models.EnvProd
	}
	if cfg.APIFamily == "" {
		cfg.APIFamily = exchange.DefaultFamily(cfg.Provider)
	}

	result := s.tester.Test(ctx, cfg)
	if !result.OK {
		return nil, result.Warnings, fmt.Errorf("%w: %s", ErrConnectionTestFailed, result.Error)
	}

	parsed := exchange.ParsePasted(cfg.Credentials.APIKey, cfg.Credentials.APISecret, cfg.Credentials.APIPassphrase)
	record := &models.ConnectionRecord{
		ID:        uuid.NewString(),
		Provider:  cfg.Provider,
		APIFamily: cfg.APIFamily,
		Env:       cfg.Env,
		Status:    models.ConnectionStatusActive,
	}

	if err := s.sealCredentials(record, parsed.Credentials); err != nil {
		return nil, result.Warnings, err
	}

	if err := s.repo.Create(record); err != nil {
		return nil, result.Warnings, err
	}

	s.logger.WithConnection(record.ID).Info("exchange connected",
		zap.String("provider", record.Provider),
		zap.String("api_family", record.APIFamily),
		zap.String("env", record.Env),
	)
	s.broadcastConnection(record)

	return record, result.Warnings, nil
}

// Test выполняет пробное подключение без сохранения
func (s *ConnectionService) Test(ctx context.Context, cfg models.ConnectionConfig) exchange.TestResult {
	return s.tester.Test(ctx, cfg)
}

// List возвращает все подключения (ключи наружу не отдаются)
func (s *ConnectionService) List(ctx context.Context) ([]*models.ConnectionRecord, error) {
	return s.repo.GetAll()
}

// Get возвращает подключение по ID
func (s *ConnectionService) Get(ctx context.Context, id string) (*models.ConnectionRecord, error) {
	return s.getRecord(id)
}

// Disconnect деактивирует подключение, сохраняя запись и ключи
func (s *ConnectionService) Disconnect(ctx context.Context, id string) error {
	record, err := s.getRecord(id)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(id, models.ConnectionStatusDisabled, ""); err != nil {
		return err
	}

	record.Status = models.ConnectionStatusDisabled
	s.logger.WithConnection(id).Info("connection disabled")
	s.broadcastConnection(record)
	return nil
}

// Delete удаляет подключение вместе с зашифрованными ключами
func (s *ConnectionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(id); err != nil {
		return translateRepoErr(err)
	}
	s.logger.WithConnection(id).Info("connection deleted")
	return nil
}

// RotateCredentials заменяет ключи подключения: новые ключи сначала
// проходят пробный вызов, старый шифртекст перезаписывается атомарно
func (s *ConnectionService) RotateCredentials(ctx context.Context, id string, creds models.Credentials) error {
	record, err := s.getRecord(id)
	if err != nil {
		return err
	}

	cfg := models.ConnectionConfig{
		ID:          record.ID,
		Provider:    record.Provider,
		APIFamily:   record.APIFamily,
		Env:         record.Env,
		Credentials: creds,
	}

	result := s.tester.Test(ctx, cfg)
	if !result.OK {
		return fmt.Errorf("%w: %s", ErrConnectionTestFailed, result.Error)
	}

	parsed := exchange.ParsePasted(creds.APIKey, creds.APISecret, creds.APIPassphrase)
	if err := s.sealCredentials(record, parsed.Credentials); err != nil {
		return err
	}

	record.Status = models.ConnectionStatusActive
	record.LastError = ""
	if err := s.repo.Update(record); err != nil {
		return translateRepoErr(err)
	}

	s.logger.WithConnection(id).Info("credentials rotated",
		zap.String("provider", record.Provider),
	)
	s.broadcastConnection(record)
	return nil
}

// GetBalances возвращает балансы подключения
func (s *ConnectionService) GetBalances(ctx context.Context, id string) ([]models.Balance, error) {
	client, record, err := s.clientFor(id)
	if err != nil {
		return nil, err
	}

	balances, err := retry.DoWithResult(ctx, func() ([]models.Balance, error) {
		return client.GetBalances(ctx)
	}, s.retryCfg)
	if err != nil {
		s.markFailure(record, err)
		return nil, err
	}

	s.markHealthy(record)
	if s.wsHub != nil {
		s.wsHub.BroadcastBalanceUpdate(record.ID, balances)
	}
	return balances, nil
}

// GetTicker возвращает текущую цену инструмента через клиент подключения
func (s *ConnectionService) GetTicker(ctx context.Context, id, symbol string) (*models.Ticker, error) {
	client, _, err := s.clientFor(id)
	if err != nil {
		return nil, err
	}

	return retry.DoWithResult(ctx, func() (*models.Ticker, error) {
		return client.GetTicker(ctx, symbol)
	}, s.retryCfg)
}

// PlaceOrder размещает ордер через подключение.
// Гейтинг по матрице возможностей выполняется до сетевого вызова.
func (s *ConnectionService) PlaceOrder(ctx context.Context, id string, params models.OrderParams) (*models.Order, error) {
	client, record, err := s.clientFor(id)
	if err != nil {
		return nil, err
	}

	caps := client.Capabilities()
	if !caps.TradeSpot {
		return nil, fmt.Errorf("%w: %s/%s", ErrTradingNotAllowed, record.Provider, record.APIFamily)
	}

	local := exchange.NewLocalOrder(params)

	placed, err := client.CreateOrder(ctx, params)
	if err != nil {
		if markErr := exchange.MarkRejected(local, err.Error()); markErr != nil {
			s.logger.WithConnection(id).Error("order state transition failed", zap.Error(markErr))
		}
		s.logger.WithConnection(id).Error("order placement failed",
			zap.String("symbol", params.Symbol),
			zap.Error(err),
		)
		return local, err
	}

	switch placed.Status {
	case models.OrderStatusFilled, models.OrderStatusPartiallyFilled:
		// биржа исполнила ордер в момент размещения
		local.ExchangeOrderID = placed.ExchangeOrderID
		local.FilledQty = placed.FilledQty
		local.Price = placed.Price
		if err := exchange.Transition(local, models.OrderStatusOpen); err == nil {
			_ = exchange.Transition(local, placed.Status)
		}
	case models.OrderStatusRejected:
		if err := exchange.MarkRejected(local, "rejected by exchange"); err != nil {
			return local, err
		}
	default:
		if err := exchange.MarkOpen(local, placed.ExchangeOrderID); err != nil {
			return local, err
		}
	}

	s.logger.WithConnection(id).Info("order placed",
		zap.String("symbol", params.Symbol),
		zap.String("side", params.Side),
		zap.String("exchange_order_id", local.ExchangeOrderID),
		zap.String("status", local.Status),
	)
	return local, nil
}

// CancelOrder отменяет ордер по биржевому идентификатору
func (s *ConnectionService) CancelOrder(ctx context.Context, id, orderID string) error {
	client, _, err := s.clientFor(id)
	if err != nil {
		return err
	}
	return client.CancelOrder(ctx, orderID)
}

// OrderStatus возвращает нормализованный снимок ордера
func (s *ConnectionService) OrderStatus(ctx context.Context, id, orderID string) (*models.Order, error) {
	client, _, err := s.clientFor(id)
	if err != nil {
		return nil, err
	}
	return client.GetOrderStatus(ctx, orderID)
}

// clientFor расшифровывает ключи и собирает клиента на один вызов
func (s *ConnectionService) clientFor(id string) (exchange.Client, *models.ConnectionRecord, error) {
	record, err := s.getRecord(id)
	if err != nil {
		return nil, nil, err
	}
	if record.Status == models.ConnectionStatusDisabled {
		return nil, nil, ErrConnectionDisabled
	}

	creds, err := s.openCredentials(record)
	if err != nil {
		return nil, nil, err
	}

	client, err := s.build(models.ConnectionConfig{
		ID:          record.ID,
		Provider:    record.Provider,
		APIFamily:   record.APIFamily,
		Env:         record.Env,
		Credentials: creds,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, record, nil
}

// sealCredentials шифрует ключи в запись
func (s *ConnectionService) sealCredentials(record *models.ConnectionRecord, creds models.Credentials) error {
	apiKey, err := s.codec.Encode(creds.APIKey)
	if err != nil {
		return errors.Join(ErrInvalidCredentials, err)
	}
	apiSecret, err := s.codec.Encode(creds.APISecret)
	if err != nil {
		return errors.Join(ErrInvalidCredentials, err)
	}

	var passphrase string
	if creds.APIPassphrase != "" {
		passphrase, err = s.codec.Encode(creds.APIPassphrase)
		if err != nil {
			return errors.Join(ErrInvalidCredentials, err)
		}
	}

	record.APIKey = apiKey
	record.APISecret = apiSecret
	record.Passphrase = passphrase
	return nil
}

// openCredentials расшифровывает ключи записи
func (s *ConnectionService) openCredentials(record *models.ConnectionRecord) (models.Credentials, error) {
	apiKey, err := s.codec.Decode(record.APIKey)
	if err != nil {
		return models.Credentials{}, errors.Join(ErrInvalidCredentials, err)
	}
	apiSecret, err := s.codec.Decode(record.APISecret)
	if err != nil {
		return models.Credentials{}, errors.Join(ErrInvalidCredentials, err)
	}

	var passphrase string
	if record.Passphrase != "" {
		passphrase, err = s.codec.Decode(record.Passphrase)
		if err != nil {
			return models.Credentials{}, errors.Join(ErrInvalidCredentials, err)
		}
	}

	return models.Credentials{
		APIKey:        apiKey,
		APISecret:     apiSecret,
		APIPassphrase: passphrase,
	}, nil
}

func (s *ConnectionService) getRecord(id string) (*models.ConnectionRecord, error) {
	record, err := s.repo.GetByID(id)
	if err != nil {
		return nil, translateRepoErr(err)
	}
	return record, nil
}

// markFailure переводит подключение в failed после неудачного вызова
func (s *ConnectionService) markFailure(record *models.ConnectionRecord, callErr error) {
	if record.Status == models.ConnectionStatusFailed {
		return
	}
	if err := s.repo.UpdateStatus(record.ID, models.ConnectionStatusFailed, callErr.Error()); err != nil {
		s.logger.WithConnection(record.ID).Error("status update failed", zap.Error(err))
		return
	}
	record.Status = models.ConnectionStatusFailed
	record.LastError = callErr.Error()
	s.broadcastConnection(record)
}

// markHealthy возвращает подключение в active после успешного вызова
func (s *ConnectionService) markHealthy(record *models.ConnectionRecord) {
	if record.Status == models.ConnectionStatusActive {
		return
	}
	if err := s.repo.UpdateStatus(record.ID, models.ConnectionStatusActive, ""); err != nil {
		s.logger.WithConnection(record.ID).Error("status update failed", zap.Error(err))
		return
	}
	record.Status = models.ConnectionStatusActive
	record.LastError = ""
	s.broadcastConnection(record)
}

func (s *ConnectionService) broadcastConnection(record *models.ConnectionRecord) {
	if s.wsHub != nil {
		s.wsHub.BroadcastConnectionUpdate(record)
	}
}

// translateRepoErr переводит сентинельную ошибку репозитория в сервисную
func translateRepoErr(err error) error {
	if errors.Is(err, repository.ErrConnectionNotFound) {
		return ErrConnectionNotFound
	}
	return err
}
