package identity

import (
	"context"
	"sync"

	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
)

// Session holds the current identity of one signed-in client and keeps its
// credential persisted while it decodes.
type Session struct {
	id       string
	resolver *Resolver
	store    CredentialStore
	logger   zerolog.Logger

	mu      sync.RWMutex
	current *models.User
}

func NewSession(id string, resolver *Resolver, store CredentialStore, logger zerolog.Logger) *Session {
	return &Session{
		id:       id,
		resolver: resolver,
		store:    store,
		logger:   logger.With().Str("session_id", id).Logger(),
	}
}

func (s *Session) key() string {
	if s.id == "" {
		return CredentialKey
	}
	return s.id + ":" + CredentialKey
}

func (s *Session) Current() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Session) set(u *models.User) {
	s.mu.Lock()
	s.current = u
	s.mu.Unlock()
}

// Resolve replaces the current identity. It never fails: an empty or bad
// credential clears both the identity and the persisted credential, and a
// failed lookup leaves the session without an identity.
func (s *Session) Resolve(ctx context.Context, credential string) *models.User {
	if credential == "" {
		s.clear(ctx)
		return nil
	}

	claims, err := s.resolver.Decode(credential)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding credential")
		s.clear(ctx)
		return nil
	}

	if err := s.store.Set(ctx, s.key(), credential); err != nil {
		s.logger.Error().Err(err).Msg("persist credential")
	}

	user, err := s.resolver.Lookup(ctx, claims)
	if err != nil {
		s.set(nil)
		return nil
	}
	s.set(user)
	return user
}

// Init resolves the persisted credential, or fallback when nothing is stored.
func (s *Session) Init(ctx context.Context, fallback string) *models.User {
	credential, ok, err := s.store.Get(ctx, s.key())
	if err != nil {
		s.logger.Error().Err(err).Msg("load credential")
	}
	if !ok || credential == "" {
		credential = fallback
	}
	return s.Resolve(ctx, credential)
}

// Handle applies a session-change event.
func (s *Session) Handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case SignedIn:
		if ev.Credential != "" {
			s.Resolve(ctx, ev.Credential)
		}
	case SignedOut:
		s.Resolve(ctx, "")
	}
}

func (s *Session) clear(ctx context.Context) {
	if err := s.store.Delete(ctx, s.key()); err != nil {
		s.logger.Error().Err(err).Msg("remove credential")
	}
	s.set(nil)
}
