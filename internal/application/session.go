package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gleb165/commentsync/internal/domain/model"
	"github.com/gleb165/commentsync/internal/domain/port/driven"
)

// SessionManager owns login, registration, and logout, and keeps the durable
// credential cache in step with the in-memory store.
type SessionManager struct {
	store *CredentialStore
	auth  driven.AuthAPI
	cache driven.CredentialCache
}

// NewSessionManager creates a SessionManager. cache may be nil when durable
// persistence is not configured.
func NewSessionManager(store *CredentialStore, auth driven.AuthAPI, cache driven.CredentialCache) *SessionManager {
	return &SessionManager{store: store, auth: auth, cache: cache}
}

// Hydrate loads a persisted session into the credential store. Called once at
// startup; an empty cache is not an error.
func (s *SessionManager) Hydrate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	sess, err := s.cache.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("loading persisted session: %w", err)
	}
	if sess == nil {
		return nil
	}
	s.store.Swap(sess.Credential, sess.Identity)
	slog.Info("session restored from cache", "authenticated", sess.Identity != nil)
	return nil
}

// Login exchanges credentials for a session and persists it.
func (s *SessionManager) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	sess, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.store.Swap(sess.Credential, sess.Identity)
	s.persist(ctx)
	return sess.Identity, nil
}

// Register creates an account and, when the server issues tokens with the
// response, installs them as the current session.
func (s *SessionManager) Register(ctx context.Context, reg model.Registration) (*model.Identity, error) {
	sess, err := s.auth.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	if !sess.Credential.IsZero() {
		s.store.Swap(sess.Credential, sess.Identity)
		s.persist(ctx)
	}
	return sess.Identity, nil
}

// Logout clears in-memory and durable session state.
func (s *SessionManager) Logout(ctx context.Context) {
	s.store.Clear()
	if s.cache != nil {
		if err := s.cache.ClearSession(ctx); err != nil {
			slog.Error("clearing persisted session failed", "error", err)
		}
	}
}

// Captcha fetches a fresh captcha challenge for registration or guest posts.
func (s *SessionManager) Captcha(ctx context.Context) (*model.Captcha, error) {
	return s.auth.Captcha(ctx)
}

// Identity returns the authenticated identity, or nil when anonymous.
func (s *SessionManager) Identity() *model.Identity {
	return s.store.Identity()
}

func (s *SessionManager) persist(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveSession(ctx, s.store.Session()); err != nil {
		slog.Error("persisting session failed", "error", err)
	}
}
