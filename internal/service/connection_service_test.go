package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/internal/exchange"
	"tradedesk/internal/models"
	"tradedesk/pkg/crypto"
	"tradedesk/pkg/retry"
	"tradedesk/pkg/utils"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func newTestService(t *testing.T, repo *MockConnectionRepository, tester *MockTester) *ConnectionService {
	t.Helper()

	codec, err := crypto.NewCodec(testEncryptionKey)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	logger := utils.InitLogger(utils.LogConfig{Level: "error", Format: "console"})
	svc := NewConnectionService(repo, codec, tester, logger)

	// в тестах без задержек между попытками
	cfg := retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	cfg.RetryIf = isTransient
	svc.retryCfg = cfg

	return svc
}

func testConnectionConfig() models.ConnectionConfig {
	return models.ConnectionConfig{
		Provider:  models.ProviderKraken,
		APIFamily: models.FamilyKrakenSpot,
		Env:       models.EnvProd,
		Credentials: models.Credentials{
			APIKey:    "api-key",
			APISecret: "dGVzdC1zZWNyZXQ=",
		},
	}
}

func TestConnectPersistsEncryptedCredentials(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: true}}
	svc := newTestService(t, repo, tester)
	hub := NewMockHub()
	svc.SetWebSocketHub(hub)

	record, warnings, err := svc.Connect(context.Background(), testConnectionConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if tester.calls != 1 {
		t.Errorf("тест ключей должен выполняться ровно один раз, calls = %d", tester.calls)
	}

	if record.Status != models.ConnectionStatusActive {
		t.Errorf("Status = %s, want active", record.Status)
	}
	// в БД уходит только шифртекст
	stored, err := repo.GetByID(record.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.APIKey == "api-key" || stored.APISecret == "dGVzdC1zZWNyZXQ=" {
		t.Error("ключи сохранены открытым текстом")
	}

	// и он расшифровывается обратно
	creds, err := svc.openCredentials(stored)
	if err != nil {
		t.Fatalf("openCredentials: %v", err)
	}
	if creds.APIKey != "api-key" || creds.APISecret != "dGVzdC1zZWNyZXQ=" {
		t.Error("шифртекст не расшифровался в исходные ключи")
	}

	if len(hub.connectionUpdates) != 1 {
		t.Errorf("дашборд должен получить connectionUpdate, получено %d", len(hub.connectionUpdates))
	}
}

// Ничего не сохраняется, пока тест ключей не прошел
func TestConnectFailedTestDoesNotPersist(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: false, Error: "connection test failed: kraken/spot"}}
	svc := newTestService(t, repo, tester)

	_, _, err := svc.Connect(context.Background(), testConnectionConfig())
	if !errors.Is(err, ErrConnectionTestFailed) {
		t.Fatalf("error = %v, want ErrConnectionTestFailed", err)
	}

	all, _ := repo.GetAll()
	if len(all) != 0 {
		t.Errorf("после неудачного теста в БД %d записей, want 0", len(all))
	}
}

func TestDisconnectKeepsRecord(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: true}}
	svc := newTestService(t, repo, tester)

	record, _, err := svc.Connect(context.Background(), testConnectionConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := svc.Disconnect(context.Background(), record.ID); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	stored, err := repo.GetByID(record.ID)
	if err != nil {
		t.Fatalf("запись должна сохраниться: %v", err)
	}
	if stored.Status != models.ConnectionStatusDisabled {
		t.Errorf("Status = %s, want disabled", stored.Status)
	}

	// операции через отключенное подключение запрещены
	if _, err := svc.GetBalances(context.Background(), record.ID); !errors.Is(err, ErrConnectionDisabled) {
		t.Errorf("GetBalances error = %v, want ErrConnectionDisabled", err)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: true}}
	svc := newTestService(t, repo, tester)

	record, _, _ := svc.Connect(context.Background(), testConnectionConfig())

	if err := svc.Delete(context.Background(), record.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(context.Background(), record.ID); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("после удаления error = %v, want ErrConnectionNotFound", err)
	}

	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrConnectionNotFound", err)
	}
}

func TestGetBalancesBroadcastsAndRecovers(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: true}}
	svc := newTestService(t, repo, tester)
	hub := NewMockHub()
	svc.SetWebSocketHub(hub)

	record, _, _ := svc.Connect(context.Background(), testConnectionConfig())

	client := &fakeClient{
		name:     models.ProviderKraken,
		caps:     models.Capabilities{Read: true, TradeSpot: true},
		balances: testBalances(),
	}
	svc.build = func(cfg models.ConnectionConfig) (exchange.Client, error) {
		// клиент собирается из расшифрованных ключей
		if cfg.Credentials.APIKey != "api-key" {
			t.Errorf("клиент получил нерасшифрованный ключ: %q", cfg.Credentials.APIKey)
		}
		return client, nil
	}

	balances, err := svc.GetBalances(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetBalances() error = %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("получено %d балансов", len(balances))
	}
	if _, ok := hub.balanceUpdates[record.ID]; !ok {
		t.Error("дашборд должен получить balanceUpdate")
	}
}

// Сетевые сбои ретраятся, после исчерпания попыток подключение
// помечается failed
func TestGetBalancesTransientFailure(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: true}}
	svc := newTestService(t, repo, tester)

	record, _, _ := svc.Connect(context.Background(), testConnectionConfig())

	client := &fakeClient{
		name:       models.ProviderKraken,
		balanceErr: &exchange.ConnectivityError{Provider: models.ProviderKraken, Err: errors.New("dial tcp: timeout")},
	}
	svc.build = func(cfg models.ConnectionConfig) (exchange.Client, error) { return client, nil }

	_, err := svc.GetBalances(context.Background(), record.ID)
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if client.balanceCalls < 2 {
		t.Errorf("сетевой сбой должен ретраиться, вызовов: %d", client.balanceCalls)
	}

	stored, _ := repo.GetByID(record.ID)
	if stored.Status != models.ConnectionStatusFailed {
		t.Errorf("Status = %s, want failed", stored.Status)
	}
	if stored.LastError == "" {
		t.Error("last_error должен заполняться")
	}
}

// Ошибка API (не сетевая) не ретраится
func TestGetBalancesAPIErrorNotRetried(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: true}}
	svc := newTestService(t, repo, tester)

	record, _, _ := svc.Connect(context.Background(), testConnectionConfig())

	client := &fakeClient{
		name:       models.ProviderKraken,
		balanceErr: &exchange.APIError{Provider: models.ProviderKraken, Code: "EAPI:Invalid key", Message: "Invalid key"},
	}
	svc.build = func(cfg models.ConnectionConfig) (exchange.Client, error) { return client, nil }

	_, err := svc.GetBalances(context.Background(), record.ID)
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if client.balanceCalls != 1 {
		t.Errorf("ошибка авторизации не должна ретраиться, вызовов: %d", client.balanceCalls)
	}
}

func TestPlaceOrderCapabilityGuard(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: true}}
	svc := newTestService(t, repo, tester)

	record, _, _ := svc.Connect(context.Background(), testConnectionConfig())

	client := &fakeClient{
		name: models.ProviderCoinbase,
		caps: models.ReadOnlyCapabilities(),
	}
	svc.build = func(cfg models.ConnectionConfig) (exchange.Client, error) { return client, nil }

	_, err := svc.PlaceOrder(context.Background(), record.ID, models.OrderParams{
		Symbol:   "BTC-USD",
		Side:     models.OrderSideBuy,
		Type:     models.OrderTypeMarket,
		Quantity: decimal.NewFromInt(1),
	})
	if !errors.Is(err, ErrTradingNotAllowed) {
		t.Fatalf("error = %v, want ErrTradingNotAllowed", err)
	}
}

func TestPlaceOrderLifecycle(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: true}}
	svc := newTestService(t, repo, tester)

	record, _, _ := svc.Connect(context.Background(), testConnectionConfig())
	params := models.OrderParams{
		Symbol:   "XBTUSD",
		Side:     models.OrderSideBuy,
		Type:     models.OrderTypeLimit,
		Quantity: decimal.NewFromFloat(0.5),
		Price:    decimal.NewFromInt(50000),
	}

	t.Run("успешное размещение", func(t *testing.T) {
		client := &fakeClient{
			name:  models.ProviderKraken,
			caps:  models.Capabilities{Read: true, TradeSpot: true},
			order: &models.Order{ExchangeOrderID: "OU22CG-KLAF2-FWUDD7", Status: models.OrderStatusOpen},
		}
		svc.build = func(cfg models.ConnectionConfig) (exchange.Client, error) { return client, nil }

		order, err := svc.PlaceOrder(context.Background(), record.ID, params)
		if err != nil {
			t.Fatalf("PlaceOrder() error = %v", err)
		}
		if order.Status != models.OrderStatusOpen {
			t.Errorf("Status = %s, want open", order.Status)
		}
		if order.ExchangeOrderID != "OU22CG-KLAF2-FWUDD7" {
			t.Errorf("ExchangeOrderID = %q", order.ExchangeOrderID)
		}
		if order.ID == "" {
			t.Error("локальный идентификатор должен присваиваться")
		}
	})

	t.Run("отказ биржи", func(t *testing.T) {
		client := &fakeClient{
			name:     models.ProviderKraken,
			caps:     models.Capabilities{Read: true, TradeSpot: true},
			orderErr: &exchange.APIError{Provider: models.ProviderKraken, Code: "EOrder:Insufficient funds", Message: "Insufficient funds"},
		}
		svc.build = func(cfg models.ConnectionConfig) (exchange.Client, error) { return client, nil }

		order, err := svc.PlaceOrder(context.Background(), record.ID, params)
		if err == nil {
			t.Fatal("ожидалась ошибка")
		}
		if order == nil || order.Status != models.OrderStatusRejected {
			t.Errorf("локальный ордер должен перейти в rejected: %+v", order)
		}
		if order.ErrorMessage == "" {
			t.Error("причина отказа должна сохраняться")
		}
	})

	t.Run("мгновенное исполнение", func(t *testing.T) {
		client := &fakeClient{
			name: models.ProviderPaper,
			caps: models.Capabilities{Read: true, TradeSpot: true},
			order: &models.Order{
				ExchangeOrderID: "fill-1",
				Status:          models.OrderStatusFilled,
				FilledQty:       params.Quantity,
				Price:           params.Price,
			},
		}
		svc.build = func(cfg models.ConnectionConfig) (exchange.Client, error) { return client, nil }

		order, err := svc.PlaceOrder(context.Background(), record.ID, params)
		if err != nil {
			t.Fatalf("PlaceOrder() error = %v", err)
		}
		if order.Status != models.OrderStatusFilled {
			t.Errorf("Status = %s, want filled", order.Status)
		}
		if !order.FilledQty.Equal(params.Quantity) {
			t.Errorf("FilledQty = %s", order.FilledQty)
		}
	})
}

func TestRotateCredentials(t *testing.T) {
	repo := NewMockConnectionRepository()
	tester := &MockTester{result: exchange.TestResult{OK: true}}
	svc := newTestService(t, repo, tester)

	record, _, _ := svc.Connect(context.Background(), testConnectionConfig())
	oldStored, _ := repo.GetByID(record.ID)

	newCreds := models.Credentials{APIKey: "new-key", APISecret: "bmV3LXNlY3JldA=="}
	if err := svc.RotateCredentials(context.Background(), record.ID, newCreds); err != nil {
		t.Fatalf("RotateCredentials() error = %v", err)
	}

	stored, _ := repo.GetByID(record.ID)
	if stored.APISecret == oldStored.APISecret {
		t.Error("шифртекст секрета должен смениться после ротации")
	}

	creds, err := svc.openCredentials(stored)
	if err != nil {
		t.Fatalf("openCredentials: %v", err)
	}
	if creds.APIKey != "new-key" {
		t.Errorf("после ротации APIKey = %q", creds.APIKey)
	}

	// новые ключи тоже проходят пробный вызов
	tester.result.OK = false
	tester.result.Error = "bad keys"
	if err := svc.RotateCredentials(context.Background(), record.ID, newCreds); !errors.Is(err, ErrConnectionTestFailed) {
		t.Errorf("error = %v, want ErrConnectionTestFailed", err)
	}
}
