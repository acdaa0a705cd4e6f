package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"beacon.app/feedback/internal/apiclient"
	"beacon.app/feedback/internal/model"
)

const (
	configPath = "/api/v1/config"
	loginPath  = "/api/v1/auth/login"
	logoutPath = "/api/v1/auth/logout"
)

// Store keeps the session between runs.
type Store interface {
	Session() (sessionID string, expiresAt time.Time)
	SaveSession(sessionID string, expiresAt time.Time, email string) error
	ClearSession() error
}

type API interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
}

type LoginResult struct {
	SessionID string     `json:"session_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
}

// Manager answers the session gate from the last fetched app config and the
// stored session.
type Manager struct {
	api    API
	store  Store
	logger *slog.Logger
	now    func() time.Time

	config atomic.Pointer[model.AppConfig]
}

func NewManager(api API, store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{api: api, store: store, logger: logger, now: time.Now}
}

// CurrentConfig returns the last fetched config, or nil before the first
// successful Refresh.
func (m *Manager) CurrentConfig() *model.AppConfig {
	cfg := m.config.Load()
	if cfg == nil {
		return nil
	}
	snapshot := *cfg
	return &snapshot
}

func (m *Manager) HasActiveSession() bool {
	return m.SessionID() != ""
}

// SessionID returns the stored session if it has not expired.
func (m *Manager) SessionID() string {
	id, expiresAt := m.store.Session()
	if id == "" {
		return ""
	}
	if !expiresAt.IsZero() && !m.now().Before(expiresAt) {
		return ""
	}
	return id
}

// Refresh fetches the app config. On failure the previous snapshot is kept.
func (m *Manager) Refresh(ctx context.Context) error {
	var cfg model.AppConfig
	if err := m.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: configPath}, &cfg); err != nil {
		return fmt.Errorf("fetching app config: %w", err)
	}
	m.config.Store(&cfg)
	m.logger.DebugContext(ctx, "app config refreshed", "force_auth", cfg.ForceAuth)
	return nil
}

func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	var result LoginResult
	err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Body: map[string]string{
			"email":    email,
			"password": password,
		},
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if result.SessionID == "" {
		return nil, fmt.Errorf("logging in: empty session in response")
	}

	if err := m.store.SaveSession(result.SessionID, result.ExpiresAt, result.User.Email); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	m.logger.InfoContext(ctx, "logged in", "user_id", result.User.ID, "expires_at", result.ExpiresAt)
	return &result, nil
}

// Logout revokes the session on the server and forgets it locally. The local
// session is cleared even when the server cannot be reached.
func (m *Manager) Logout(ctx context.Context) error {
	if id, _ := m.store.Session(); id != "" {
		err := m.api.Do(ctx, apiclient.Request{
			Method:    http.MethodPost,
			Path:      logoutPath,
			SessionID: id,
		}, nil)
		if err != nil && !apiclient.IsUnauthorized(err) {
			m.logger.WarnContext(ctx, "remote logout failed", "error", err)
		}
	}

	if err := m.store.ClearSession(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
