package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Profile is what the CLI remembers between runs.
type Profile struct {
	APIURL           string
	AppToken         string
	SessionID        string
	SessionExpiresAt time.Time
	UserEmail        string
}

// Store persists a Profile as YAML. BEACON_API_URL and BEACON_APP_TOKEN
// override the file when set.
type Store struct {
	path string

	mu      sync.RWMutex
	profile Profile
}

// DefaultPath is $XDG_CONFIG_HOME/beacon/profile.yaml, falling back to
// ~/.config.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "beacon", "profile.yaml")
}

func Load(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("api_url")
	_ = v.BindEnv("app_token")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading profile %s: %w", path, err)
		}
	}

	p := Profile{
		APIURL:           v.GetString("api_url"),
		AppToken:         v.GetString("app_token"),
		SessionID:        v.GetString("session_id"),
		SessionExpiresAt: v.GetTime("session_expires_at"),
		UserEmail:        v.GetString("user_email"),
	}
	return &Store{path: path, profile: p}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Session returns the stored session id and its expiry.
func (s *Store) Session() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.SessionID, s.profile.SessionExpiresAt
}

func (s *Store) SaveSession(sessionID string, expiresAt time.Time, email string) error {
	s.mu.Lock()
	s.profile.SessionID = sessionID
	s.profile.SessionExpiresAt = expiresAt
	s.profile.UserEmail = email
	p := s.profile
	s.mu.Unlock()
	return s.write(p)
}

func (s *Store) ClearSession() error {
	s.mu.Lock()
	s.profile.SessionID = ""
	s.profile.SessionExpiresAt = time.Time{}
	s.profile.UserEmail = ""
	p := s.profile
	s.mu.Unlock()
	return s.write(p)
}

// SetEndpoint records the API the CLI talks to.
func (s *Store) SetEndpoint(apiURL, appToken string) error {
	s.mu.Lock()
	s.profile.APIURL = apiURL
	s.profile.AppToken = appToken
	p := s.profile
	s.mu.Unlock()
	return s.write(p)
}

func (s *Store) write(p Profile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("mkdir profile dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("api_url", p.APIURL)
	v.Set("app_token", p.AppToken)
	v.Set("session_id", p.SessionID)
	v.Set("user_email", p.UserEmail)
	if !p.SessionExpiresAt.IsZero() {
		v.Set("session_expires_at", p.SessionExpiresAt.UTC().Format(time.RFC3339))
	}

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
