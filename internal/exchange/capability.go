package exchange

import (
	"sort"

	"tradedesk/internal/exchange/auth"
	"tradedesk/internal/models"
)

// familyKey идентифицирует продуктовую поверхность провайдера
type familyKey struct {
	provider string
	family   string
}

// familyInfo - статическое описание одной пары (провайдер, семейство).
// Единственный источник истины для UI-гейтинга и guard'ов размещения
// ордеров; возможности никогда не пересчитываются по месту вызова.
type familyInfo struct {
	caps           models.Capabilities
	authType       string
	baseURLs       map[string]string // env -> базовый URL
	requiredFields []string
	proMode        bool // для Coinbase: поддерживается ли размещение ордеров
}

// Матрица возможностей фиксирована для семейства: окружение меняет только
// базовый URL и набор доступных env в шаблонах, но никогда саму матрицу.
var familyTable = map[familyKey]familyInfo{
	{models.ProviderKraken, models.FamilyKrakenSpot}: {
		caps:     models.Capabilities{Read: true, TradeSpot: true, Withdraw: true},
		authType: auth.TypeHMACPathNonce,
		baseURLs: map[string]string{
			// Публичного sandbox у Kraken spot нет
			models.EnvProd: "https://api.kraken.com",
		},
		requiredFields: []string{"apiKey", "apiSecret"},
	},
	{models.ProviderBinance, models.FamilyBinanceGlobal}: {
		caps:     models.Capabilities{Read: true, TradeSpot: true, Withdraw: true},
		authType: auth.TypeHMACQuery,
		baseURLs: map[string]string{
			models.EnvProd:    "https://api.binance.com",
			models.EnvSandbox: "https://testnet.binance.vision",
		},
		requiredFields: []string{"apiKey", "apiSecret"},
	},
	{models.ProviderBinance, models.FamilyBinanceUS}: {
		caps:     models.Capabilities{Read: true, TradeSpot: true, Withdraw: true},
		authType: auth.TypeHMACQuery,
		baseURLs: map[string]string{
			models.EnvProd:    "https://api.binance.us",
			models.EnvSandbox: "https://testnet.binance.vision",
		},
		requiredFields: []string{"apiKey", "apiSecret"},
	},
	{models.ProviderCoinbase, models.FamilyCoinbaseExchange}: {
		caps:     models.Capabilities{Read: true, TradeSpot: true, Withdraw: true},
		authType: auth.TypeHMACTimestamp,
		baseURLs: map[string]string{
			models.EnvProd:    "https://api.exchange.coinbase.com",
			models.EnvSandbox: "https://api-public.sandbox.exchange.coinbase.com",
		},
		requiredFields: []string{"apiKey", "apiSecret", "apiPassphrase"},
		proMode:        true,
	},
	{models.ProviderCoinbase, models.FamilyCoinbaseAdvancedTrade}: {
		caps:     models.Capabilities{Read: true, TradeSpot: true},
		authType: auth.TypeCDPJWT,
		baseURLs: map[string]string{
			models.EnvProd:    "https://api.coinbase.com",
			models.EnvSandbox: "https://api-sandbox.coinbase.com",
		},
		requiredFields: []string{"apiKey", "apiSecret"},
		proMode:        true,
	},
	{models.ProviderCoinbase, models.FamilyCoinbaseApp}: {
		caps:     models.Capabilities{Read: true},
		authType: auth.TypeOAuth,
		baseURLs: map[string]string{
			models.EnvProd: "https://api.coinbase.com",
		},
		requiredFields: []string{"apiKey"},
	},
	{models.ProviderCoinbase, models.FamilyCoinbaseServerWallet}: {
		caps:     models.Capabilities{Read: true, Onchain: true},
		authType: auth.TypeCDPJWT,
		baseURLs: map[string]string{
			models.EnvProd: "https://api.cdp.coinbase.com",
		},
		requiredFields: []string{"apiKey", "apiSecret"},
	},
	{models.ProviderCoinbase, models.FamilyCoinbaseTradeAPI}: {
		caps:     models.Capabilities{Read: true},
		authType: auth.TypeCDPJWT,
		baseURLs: map[string]string{
			models.EnvProd: "https://api.cdp.coinbase.com",
		},
		requiredFields: []string{"apiKey", "apiSecret"},
	},
	{models.ProviderPaper, models.FamilyPaperSim}: {
		caps:     models.Capabilities{Read: true, TradeSpot: true},
		authType: auth.TypeNone,
		baseURLs: map[string]string{
			models.EnvProd:    "",
			models.EnvSandbox: "",
		},
		requiredFields: nil,
	},
}

// defaultFamilies - семейство по умолчанию, когда конфигурация его не задает
var defaultFamilies = map[string]string{
	models.ProviderKraken:   models.FamilyKrakenSpot,
	models.ProviderBinance:  models.FamilyBinanceGlobal,
	models.ProviderCoinbase: models.FamilyCoinbaseAdvancedTrade,
	models.ProviderPaper:    models.FamilyPaperSim,
}

// DefaultFamily возвращает семейство по умолчанию для провайдера
func DefaultFamily(provider string) string {
	return defaultFamilies[provider]
}

// ResolveCapabilities - чистая тотальная функция (провайдер, семейство,
// окружение) -> матрица. Для неизвестных комбинаций возвращает самую
// ограничительную матрицу вместо ошибки. Окружение на матрицу не влияет.
func ResolveCapabilities(provider, family, env string) models.Capabilities {
	if family == "" {
		family = DefaultFamily(provider)
	}
	info, ok := familyTable[familyKey{provider, family}]
	if !ok {
		return models.ReadOnlyCapabilities()
	}
	return info.caps
}

// BaseURL возвращает базовый URL для тройки (провайдер, семейство, окружение).
// Для семейства без sandbox запрос sandbox дает prod URL.
func BaseURL(provider, family, env string) (string, bool) {
	info, ok := familyTable[familyKey{provider, family}]
	if !ok {
		return "", false
	}
	if u, ok := info.baseURLs[env]; ok {
		return u, true
	}
	u, ok := info.baseURLs[models.EnvProd]
	return u, ok
}

// AuthType возвращает тип стратегии подписи для пары (провайдер, семейство)
func AuthType(provider, family string) (string, bool) {
	info, ok := familyTable[familyKey{provider, family}]
	if !ok {
		return "", false
	}
	return info.authType, true
}

// IsKnownFamily сообщает, описана ли пара в статической таблице
func IsKnownFamily(provider, family string) bool {
	_, ok := familyTable[familyKey{provider, family}]
	return ok
}

// Template - строка read-only перечисления поддерживаемых комбинаций.
// Используется UI для рендеринга форм подключения.
type Template struct {
	Provider       string              `json:"provider"`
	APIFamily      string              `json:"api_family"`
	Envs           []string            `json:"envs"`
	AuthType       string              `json:"auth_type"`
	RequiredFields []string            `json:"required_fields"`
	Capabilities   models.Capabilities `json:"capabilities"`
}

// Templates возвращает все поддерживаемые комбинации в стабильном порядке
func Templates() []Template {
	out := make([]Template, 0, len(familyTable))
	for key, info := range familyTable {
		envs := make([]string, 0, len(info.baseURLs))
		for env := range info.baseURLs {
			envs = append(envs, env)
		}
		sort.Strings(envs)

		out = append(out, Template{
			Provider:       key.provider,
			APIFamily:      key.family,
			Envs:           envs,
			AuthType:       info.authType,
			RequiredFields: info.requiredFields,
			Capabilities:   info.caps,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].APIFamily < out[j].APIFamily
	})
	return out
}
