// Package session owns the authenticated session: an injected provider,
// a pull accessor, a push change subscription and sign-out. Every workflow
// takes the session as explicit input; nothing reads ambient globals.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aura-detect/aura/internal/models"
	"github.com/aura-detect/aura/internal/supabase"
)

// Provider is the identity-provider boundary the store depends on.
type Provider interface {
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Store caches the current session, persists it across process restarts and
// notifies subscribers on every change. It has exactly one mutator path;
// everything else is a read-only subscriber.
type Store struct {
	provider    Provider
	persistPath string
	logger      *slog.Logger

	mu           sync.Mutex
	current      *models.Session
	listeners    map[int]func(*models.Session)
	nextListener int
}

// NewStore creates a store and restores any persisted session. A corrupt or
// unreadable session file is treated as signed out, never as a fatal error.
func NewStore(provider Provider, persistPath string, logger *slog.Logger) *Store {
	s := &Store{
		provider:    provider,
		persistPath: persistPath,
		logger:      logger,
		listeners:   make(map[int]func(*models.Session)),
	}
	s.current = s.restore()
	return s
}

// Current returns the session, refreshing it first when the access token has
// expired. Any failure to establish a session yields nil: the caller falls
// back to the unauthenticated view.
func (s *Store) Current(ctx context.Context) *models.Session {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	if !sess.Expired() {
		return sess
	}
	if sess.RefreshToken == "" {
		return nil
	}

	refreshed, err := s.provider.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		var provErr *supabase.ProviderError
		if errors.As(err, &provErr) && provErr.StatusCode >= 400 && provErr.StatusCode < 500 {
			// The refresh token was rejected, not misplaced. The session is gone.
			s.logger.Info("refresh token rejected, clearing session", "status", provErr.StatusCode)
			s.Clear()
			return nil
		}
		// Network trouble: fail closed for this call, keep the stored
		// credentials so a later attempt can still succeed.
		s.logger.Warn("session refresh failed", "error", err)
		return nil
	}

	enrichFromToken(refreshed)
	s.set(refreshed)
	return refreshed
}

// SetSession installs a freshly issued session (sign-in) and notifies
// subscribers.
func (s *Store) SetSession(sess *models.Session) {
	if sess != nil {
		enrichFromToken(sess)
	}
	s.set(sess)
}

// OnChange registers a listener invoked on sign-in, sign-out and token
// refresh. The returned handle must be called on teardown so listeners do
// not leak across remounts.
func (s *Store) OnChange(fn func(*models.Session)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SignOut revokes the session with the provider and clears the local copy.
// Dependent state (profile, history, results) is the caller's to clear; the
// store does not cascade.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()

	var revokeErr error
	if sess != nil && sess.AccessToken != "" {
		if err := s.provider.SignOut(ctx, sess.AccessToken); err != nil {
			// Local sign-out proceeds regardless; the token will expire.
			s.logger.Warn("remote sign-out failed", "error", err)
			revokeErr = err
		}
	}
	s.Clear()
	return revokeErr
}

// Clear drops the local session without contacting the provider.
func (s *Store) Clear() {
	s.set(nil)
}

func (s *Store) set(sess *models.Session) {
	s.mu.Lock()
	s.current = sess
	fns := make([]func(*models.Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.persist(sess)
	// Listeners run outside the lock so they may call back into the store.
	for _, fn := range fns {
		fn(sess)
	}
}

func (s *Store) restore() *models.Session {
	if s.persistPath == "" {
		return nil
	}
	data, err := os.ReadFile(s.persistPath)
	if err != nil {
		return nil
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn("discarding corrupt session file", "path", s.persistPath)
		return nil
	}
	if sess.AccessToken == "" {
		return nil
	}
	enrichFromToken(&sess)
	return &sess
}

func (s *Store) persist(sess *models.Session) {
	if s.persistPath == "" {
		return
	}
	if sess == nil {
		if err := os.Remove(s.persistPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove session file", "error", err)
		}
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.persistPath), 0o700); err != nil {
		s.logger.Warn("failed to create session directory", "error", err)
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	if err := os.WriteFile(s.persistPath, data, 0o600); err != nil {
		s.logger.Warn("failed to persist session", "error", err)
	}
}
