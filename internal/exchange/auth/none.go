package auth

// NoneSigner - стратегия без подписи для провайдера симуляции
type NoneSigner struct{}

// NewNoneSigner создает no-op подписчика
func NewNoneSigner() *NoneSigner {
	return &NoneSigner{}
}

// Sign реализует Signer и не меняет запрос
func (s *NoneSigner) Sign(r *Request) error {
	return nil
}
