package identity

import (
	"context"
	"sync"

	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
)

// Manager owns one Session per session id and is the single consumer of
// session events.
type Manager struct {
	resolver *Resolver
	store    CredentialStore
	logger   zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(resolver *Resolver, store CredentialStore, logger zerolog.Logger) *Manager {
	return &Manager{
		resolver: resolver,
		store:    store,
		logger:   logger.With().Str("component", "sessions").Logger(),
		sessions: map[string]*Session{},
	}
}

// Run consumes sub until ctx ends or the subscription is cancelled.
func (m *Manager) Run(ctx context.Context, sub *Subscription) error {
	defer sub.Unsubscribe()
	m.logger.Info().Msg("session event consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case ev := <-sub.Events():
			m.Apply(ctx, ev)
		}
	}
}

// Apply routes ev to its session. Signing out drops the session.
func (m *Manager) Apply(ctx context.Context, ev Event) {
	s := m.session(ev.SessionID)
	s.Handle(ctx, ev)
	m.logger.Debug().Str("event", string(ev.Kind)).Str("session_id", ev.SessionID).Bool("resolved", s.Current() != nil).Msg("session event")

	if ev.Kind == SignedOut {
		m.mu.Lock()
		delete(m.sessions, ev.SessionID)
		m.mu.Unlock()
	}
}

// Current returns the identity of a signed-in session, or nil.
func (m *Manager) Current(sessionID string) *models.User {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.Current()
}

func (m *Manager) session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = NewSession(id, m.resolver, m.store, m.logger)
		m.sessions[id] = s
	}
	return s
}
