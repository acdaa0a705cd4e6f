package permission

import (
	"context"
	"log/slog"
	"sync"

	"beacon.app/feedback/internal/model"
)

// Prompter asks the user for a permission. It may block.
type Prompter interface {
	Prompt(ctx context.Context, p model.Permission) (bool, error)
}

type PrompterFunc func(ctx context.Context, p model.Permission) (bool, error)

func (f PrompterFunc) Prompt(ctx context.Context, p model.Permission) (bool, error) {
	return f(ctx, p)
}

// Always answers every prompt with granted.
func Always(granted bool) Prompter {
	return PrompterFunc(func(context.Context, model.Permission) (bool, error) {
		return granted, nil
	})
}

// Manager remembers granted permissions and prompts for the rest.
type Manager struct {
	prompter Prompter
	logger   *slog.Logger

	mu      sync.RWMutex
	granted map[model.Permission]bool
}

func NewManager(prompter Prompter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		prompter: prompter,
		logger:   logger,
		granted:  make(map[model.Permission]bool),
	}
}

func (m *Manager) IsGranted(p model.Permission) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.granted[p]
}

func (m *Manager) Grant(p model.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.granted[p] = true
}

func (m *Manager) Revoke(p model.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.granted, p)
}

// Request prompts for p on a separate goroutine and calls onResult once. A
// cancelled ctx or a failed prompt counts as denied.
func (m *Manager) Request(ctx context.Context, p model.Permission, onResult func(granted bool)) {
	var once sync.Once
	deliver := func(granted bool) {
		once.Do(func() { onResult(granted) })
	}

	if m.IsGranted(p) {
		go deliver(true)
		return
	}
	if m.prompter == nil {
		m.logger.WarnContext(ctx, "no permission prompter configured, denying", "permission", p)
		go deliver(false)
		return
	}

	answer := make(chan bool, 1)
	go func() {
		granted, err := m.prompter.Prompt(ctx, p)
		if err != nil {
			m.logger.WarnContext(ctx, "permission prompt failed", "permission", p, "error", err)
			granted = false
		}
		answer <- granted
	}()

	go func() {
		select {
		case <-ctx.Done():
			deliver(false)
		case granted := <-answer:
			if granted {
				m.Grant(p)
			}
			deliver(granted)
		}
	}()
}
