package models

// Capabilities - матрица возможностей для пары (провайдер, семейство).
// Все поля всегда заполнены (нет частичных/неопределенных значений).
// Матрица выводится из статической таблицы и никогда не редактируется вручную.
type Capabilities struct {
	Read             bool `json:"read"`
	TradeSpot        bool `json:"trade_spot"`
	TradeDerivatives bool `json:"trade_derivatives"`
	Withdraw         bool `json:"withdraw"`
	Onchain          bool `json:"onchain"`
}

// ReadOnlyCapabilities возвращает самую ограничительную матрицу.
// Используется для неизвестных комбинаций (провайдер, семейство).
func ReadOnlyCapabilities() Capabilities {
	return Capabilities{Read: true}
}
