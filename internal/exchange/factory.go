package exchange

import (
	"fmt"

	"tradedesk/internal/models"
)

// ============ ФАБРИКА КЛИЕНТОВ ============

// Build создает клиента биржи по каноничной конфигурации подключения.
// Пустое семейство заменяется семейством провайдера по умолчанию,
// пустое окружение - prod.
func Build(cfg models.ConnectionConfig) (Client, error) {
	if cfg.Env == "" {
		cfg.Env = models.EnvProd
	}
	if cfg.APIFamily == "" {
		cfg.APIFamily = DefaultFamily(cfg.Provider)
	}
	if !IsKnownFamily(cfg.Provider, cfg.APIFamily) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedProvider, cfg.Provider, cfg.APIFamily)
	}

	switch cfg.Provider {
	case models.ProviderKraken:
		return NewKrakenClient(cfg), nil
	case models.ProviderBinance:
		return NewBinanceClient(cfg), nil
	case models.ProviderCoinbase:
		return NewCoinbaseClient(cfg)
	case models.ProviderPaper:
		return NewPaperClient(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// legacyNames отображает исторические имена бирж из ранних версий
// дашборда в пару (провайдер, семейство)
var legacyNames = map[string]struct {
	provider string
	family   string
}{
	"kraken":                  {models.ProviderKraken, models.FamilyKrakenSpot},
	"binance":                 {models.ProviderBinance, models.FamilyBinanceGlobal},
	"binance_us":              {models.ProviderBinance, models.FamilyBinanceUS},
	"coinbase":                {models.ProviderCoinbase, ""},
	"coinbase_exchange":       {models.ProviderCoinbase, models.FamilyCoinbaseExchange},
	"coinbase_advanced_trade": {models.ProviderCoinbase, models.FamilyCoinbaseAdvancedTrade},
	"coinbase_app":            {models.ProviderCoinbase, models.FamilyCoinbaseApp},
	"coinbase_server_wallet":  {models.ProviderCoinbase, models.FamilyCoinbaseServerWallet},
	"coinbase_trade_api":      {models.ProviderCoinbase, models.FamilyCoinbaseTradeAPI},
	"paper":                   {models.ProviderPaper, models.FamilyPaperSim},
}

// BuildLegacy создает клиента по строковому имени биржи из старого API.
// Для имени "coinbase" семейство берется из coinbaseFamily (или по
// умолчанию), флаг isTestnet транслируется в окружение sandbox.
func BuildLegacy(exchangeName string, creds models.Credentials, isTestnet bool, coinbaseFamily string) (Client, error) {
	entry, ok := legacyNames[exchangeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, exchangeName)
	}

	family := entry.family
	if family == "" {
		family = coinbaseFamily
	}

	env := models.EnvProd
	if isTestnet {
		env = models.EnvSandbox
	}

	return Build(models.ConnectionConfig{
		Provider:    entry.provider,
		APIFamily:   family,
		Env:         env,
		Credentials: creds,
	})
}

// LegacyExchangeNames возвращает поддерживаемые исторические имена
func LegacyExchangeNames() []string {
	names := make([]string, 0, len(legacyNames))
	for name := range legacyNames {
		names = append(names, name)
	}
	return names
}
