package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/workos/workos-go/v6/pkg/usermanagement"

	"beacon.app/feedback/common/id"
	"beacon.app/feedback/core/config"
	"beacon.app/feedback/internal/model"
	"beacon.app/feedback/internal/store"
)

const sessionTTL = 7 * 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionExpired     = errors.New("session expired")
)

// PasswordAuthenticator checks an email and password against the identity
// provider.
type PasswordAuthenticator interface {
	AuthenticateWithPassword(ctx context.Context, email, password string) (usermanagement.User, error)
}

type workOSAuthenticator struct {
	clientID string
}

func NewWorkOSAuthenticator(cfg config.WorkOSConfig) PasswordAuthenticator {
	usermanagement.SetAPIKey(cfg.APIKey)
	return &workOSAuthenticator{clientID: cfg.ClientID}
}

func (a *workOSAuthenticator) AuthenticateWithPassword(ctx context.Context, email, password string) (usermanagement.User, error) {
	resp, err := usermanagement.AuthenticateWithPassword(ctx, usermanagement.AuthenticateWithPasswordOpts{
		ClientID: a.clientID,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return usermanagement.User{}, err
	}
	return resp.User, nil
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	ValidateSession(ctx context.Context, sessionID int64) (*model.User, error)
	Logout(ctx context.Context, sessionID int64) error
}

type authService struct {
	userStore     store.UserStore
	sessionStore  store.SessionStore
	authenticator PasswordAuthenticator
	now           func() time.Time
}

func NewAuthService(userStore store.UserStore, sessionStore store.SessionStore, authenticator PasswordAuthenticator) AuthService {
	return &authService{
		userStore:     userStore,
		sessionStore:  sessionStore,
		authenticator: authenticator,
		now:           time.Now,
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	workosUser, err := s.authenticator.AuthenticateWithPassword(ctx, email, password)
	if err != nil {
		slog.WarnContext(ctx, "password authentication failed", "error", err)
		return nil, nil, ErrInvalidCredentials
	}

	user := &model.User{
		ID:       id.New(),
		Name:     buildUserName(workosUser),
		Email:    workosUser.Email,
		WorkOSID: &workosUser.ID,
	}

	if err := s.userStore.UpsertByWorkOSID(ctx, user); err != nil {
		slog.ErrorContext(ctx, "failed to upsert user",
			"error", err,
			"workos_id", workosUser.ID,
		)
		return nil, nil, fmt.Errorf("upserting user: %w", err)
	}

	session := &model.Session{
		ID:        id.New(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(sessionTTL),
	}

	if err := s.sessionStore.Create(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to create session",
			"error", err,
			"user_id", user.ID,
		)
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}

	slog.InfoContext(ctx, "user authenticated",
		"user_id", user.ID,
		"session_id", session.ID,
	)

	return user, session, nil
}

func (s *authService) ValidateSession(ctx context.Context, sessionID int64) (*model.User, error) {
	session, err := s.sessionStore.GetValid(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	user, err := s.userStore.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return user, nil
}

func (s *authService) Logout(ctx context.Context, sessionID int64) error {
	if err := s.sessionStore.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func buildUserName(user usermanagement.User) string {
	if user.FirstName != "" && user.LastName != "" {
		return user.FirstName + " " + user.LastName
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	if user.LastName != "" {
		return user.LastName
	}
	return user.Email
}
