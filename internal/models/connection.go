package models

import "time"

// Провайдеры - поддерживаемые интеграции с централизованными биржами
const (
	ProviderKraken   = "kraken"
	ProviderBinance  = "binance"
	ProviderCoinbase = "coinbase"
	ProviderPaper    = "paper" // симуляция (paper trading), без подписи запросов
)

// API-семейства - отдельные продуктовые поверхности внутри одного провайдера.
// У каждого семейства свой базовый URL, схема аутентификации и набор возможностей.
const (
	FamilyKrakenSpot = "spot"

	FamilyBinanceGlobal = "global"
	FamilyBinanceUS     = "us"

	FamilyCoinbaseExchange      = "exchange"
	FamilyCoinbaseAdvancedTrade = "advanced_trade"
	FamilyCoinbaseApp           = "app"
	FamilyCoinbaseServerWallet  = "server_wallet"
	FamilyCoinbaseTradeAPI      = "trade_api"

	FamilyPaperSim = "sim"
)

// Окружения развертывания для пары (провайдер, семейство)
const (
	EnvProd    = "prod"
	EnvSandbox = "sandbox"
)

// Статусы подключения
const (
	ConnectionStatusActive   = "active"
	ConnectionStatusFailed   = "failed"
	ConnectionStatusDisabled = "disabled" // отключено пользователем, ключи сохранены
)

// Credentials - API ключи одного подключения.
// Принадлежат исключительно своему подключению: никакого глобального
// или разделяемого состояния с секретами не допускается.
type Credentials struct {
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	APIPassphrase string `json:"api_passphrase,omitempty"` // для Coinbase Exchange
}

// ConnectionConfig - конфигурация подключения к бирже.
// Иммутабельна после создания: одна конфигурация всегда отображается
// ровно в один экземпляр конкретного клиента.
type ConnectionConfig struct {
	ID          string            `json:"id"`
	Provider    string            `json:"provider"`
	APIFamily   string            `json:"api_family,omitempty"`
	Env         string            `json:"env"`
	Credentials Credentials       `json:"credentials"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ConnectionRecord представляет строку таблицы connections.
// API ключи хранятся зашифрованными и не возвращаются в JSON.
type ConnectionRecord struct {
	ID         string    `json:"id" db:"id"`
	Provider   string    `json:"provider" db:"provider"`
	APIFamily  string    `json:"api_family" db:"api_family"`
	Env        string    `json:"env" db:"env"`
	APIKey     string    `json:"-" db:"api_key"`     // зашифрован
	APISecret  string    `json:"-" db:"api_secret"`  // зашифрован
	Passphrase string    `json:"-" db:"passphrase"`  // зашифрован, может быть пустым
	Status     string    `json:"status" db:"status"` // active, failed, disabled
	LastError  string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
