package model

import "time"

// App is a registered application that may send feedback.
type App struct {
	ID            int64     `json:"id"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	APIToken      string    `json:"-"`
	ForceAuth     bool      `json:"force_auth"`
	GitLabProject *string   `json:"gitlab_project,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AppConfig is the remote configuration snapshot a client reads at decision
// time.
type AppConfig struct {
	ForceAuth bool `json:"force_auth"`
}

// Permission names a host capability the client must hold before sending.
type Permission string

const (
	// PermissionNetworkState lets the client read connectivity for device info.
	PermissionNetworkState Permission = "network_state"
)
