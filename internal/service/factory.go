package service

import (
	"log/slog"

	"beacon.app/feedback/internal/queue"
	"beacon.app/feedback/internal/store"
)

type Services struct {
	stores        *store.Stores
	txRunner      TxRunner
	authenticator PasswordAuthenticator
	producer      queue.Producer
	logger        *slog.Logger
}

func NewServices(stores *store.Stores, txRunner TxRunner, authenticator PasswordAuthenticator, producer queue.Producer, logger *slog.Logger) *Services {
	return &Services{
		stores:        stores,
		txRunner:      txRunner,
		authenticator: authenticator,
		producer:      producer,
		logger:        logger,
	}
}

func (s *Services) Apps() AppService {
	return NewAppService(s.stores.Apps())
}

func (s *Services) Auth() AuthService {
	return NewAuthService(s.stores.Users(), s.stores.Sessions(), s.authenticator)
}

func (s *Services) Intake() IntakeService {
	return NewIntakeService(s.txRunner, s.Auth(), s.producer, s.logger)
}
