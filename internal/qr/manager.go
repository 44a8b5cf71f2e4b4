package qr

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager keeps at most one live QR session per business and remembers the
// latest issued token so HTTP handlers can serve it for display.
type Manager struct {
	issuer *Issuer

	mu       sync.Mutex
	sessions map[string]*Session
	latest   map[string]string
}

// NewManager creates an empty session registry on top of an issuer.
func NewManager(issuer *Issuer) *Manager {
	return &Manager{
		issuer:   issuer,
		sessions: make(map[string]*Session),
		latest:   make(map[string]string),
	}
}

// Start begins a rotating session for a business and returns the first
// token. If a session is already running it is stopped and replaced.
func (m *Manager) Start(businessID string) (string, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[businessID]; ok {
		existing.Stop()
		delete(m.sessions, businessID)
		delete(m.latest, businessID)
	}
	m.mu.Unlock()

	session, err := m.issuer.Start(businessID, func(tok string) {
		m.mu.Lock()
		m.latest[businessID] = tok
		m.mu.Unlock()
	})
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.sessions[businessID] = session
	tok := m.latest[businessID]
	m.mu.Unlock()

	log.Info().Str("business_id", businessID).Msg("QR session started")
	return tok, nil
}

// Stop ends the session for a business. Returns false when no session was
// running.
func (m *Manager) Stop(businessID string) bool {
	m.mu.Lock()
	session, ok := m.sessions[businessID]
	if ok {
		delete(m.sessions, businessID)
		delete(m.latest, businessID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	session.Stop()
	log.Info().Str("business_id", businessID).Msg("QR session stopped")
	return true
}

// CurrentToken returns the most recently issued token for a business.
func (m *Manager) CurrentToken(businessID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.latest[businessID]
	return tok, ok
}

// Shutdown stops every running session. Used on server teardown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.latest = make(map[string]string)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}
