package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beacon.app/feedback/internal/model"
	"beacon.app/feedback/internal/store"
)

var ErrInvalidAppToken = errors.New("invalid app token")

type AppService interface {
	Authenticate(ctx context.Context, token string) (*model.App, error)
	Config(app *model.App) model.AppConfig
}

type appService struct {
	appStore store.AppStore
}

func NewAppService(appStore store.AppStore) AppService {
	return &appService{appStore: appStore}
}

// Authenticate resolves the app that owns token.
func (s *appService) Authenticate(ctx context.Context, token string) (*model.App, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAppToken
	}

	app, err := s.appStore.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidAppToken
		}
		return nil, fmt.Errorf("getting app: %w", err)
	}
	return app, nil
}

func (s *appService) Config(app *model.App) model.AppConfig {
	return model.AppConfig{ForceAuth: app.ForceAuth}
}
