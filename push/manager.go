package push

import (
	"errors"

	"github.com/zijiren233/gencontainer/rwmap"
)

var (
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrSessionNotFound      = errors.New("session not found")
)

// Manager tracks named sessions so callers (and the stats endpoint) can
// reach them by key.
type Manager struct {
	sessions rwmap.RWMap[string, *Session]
}

func NewManager() *Manager {
	return &Manager{}
}

// Open creates a session under the given name. The name must be free.
func (m *Manager) Open(name string, cfg Config) (*Session, error) {
	s, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	_, loaded := m.sessions.LoadOrStore(name, s)
	if loaded {
		s.Close()
		return nil, ErrSessionAlreadyExists
	}
	return s, nil
}

func (m *Manager) Get(name string) (*Session, error) {
	s, ok := m.sessions.Load(name)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close removes the session from the registry and tears it down.
func (m *Manager) Close(name string) error {
	s, loaded := m.sessions.LoadAndDelete(name)
	if !loaded {
		return ErrSessionNotFound
	}
	return s.Close()
}

// Range visits every live session. Returning false stops the walk.
func (m *Manager) Range(f func(name string, s *Session) bool) {
	m.sessions.Range(f)
}

// CloseAll tears down every session and empties the registry.
func (m *Manager) CloseAll() {
	m.sessions.Range(func(name string, s *Session) bool {
		m.sessions.Delete(name)
		s.Close()
		return true
	})
}
