package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gleb165/commentsync/internal/domain/model"
	"github.com/gleb165/commentsync/internal/domain/port/driven"
)

// refreshSkew is the remaining-lifetime threshold below which an access token
// is renewed before use. Covers request latency and modest clock drift.
const refreshSkew = 30 * time.Second

// refreshAttempt is a single in-flight refresh shared by every caller that
// discovers a stale token while it is outstanding. Exactly one refresh call
// reaches the server no matter how many callers race.
type refreshAttempt struct {
	done   chan struct{}
	access string
	err    error
}

// TokenManager decides whether the current access token is usable, renews it
// against the refresh endpoint, and invalidates the session on irrecoverable
// failure. A rejected refresh is terminal: the store and cache are cleared
// rather than retried, since silent retry against an invalid refresh token
// would only mask a logged-out state.
type TokenManager struct {
	store *CredentialStore
	auth  driven.AuthAPI
	cache driven.CredentialCache

	flightMu sync.Mutex
	inflight *refreshAttempt

	// OnSessionExpired, when set, is invoked after a terminal refresh failure
	// has cleared the session. Callers use it to reset UI state.
	OnSessionExpired func()
}

// NewTokenManager creates a TokenManager. cache may be nil when durable
// persistence is not configured.
func NewTokenManager(store *CredentialStore, auth driven.AuthAPI, cache driven.CredentialCache) *TokenManager {
	return &TokenManager{store: store, auth: auth, cache: cache}
}

// EnsureFreshAccess returns an access token safe to attach to an outbound
// request. An absent token is returned as-is (the caller proceeds
// unauthenticated). A token expiring within refreshSkew is renewed first,
// blocking the caller; an unparseable token is treated as already expired.
func (m *TokenManager) EnsureFreshAccess(ctx context.Context) (string, error) {
	cred := m.store.Get()
	if cred.AccessToken == "" {
		return "", nil
	}
	if remainingLifetime(cred.AccessToken, time.Now()) >= refreshSkew {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		// Nothing to renew with; let the server decide whether the token
		// is still acceptable.
		return cred.AccessToken, nil
	}
	return m.refresh(ctx)
}

// HandleUnauthorized performs one refresh attempt after a request was
// rejected despite a passing pre-flight check (server-side clock skew or
// revocation). previousAccess is the token the rejected request carried; when
// a concurrent caller already refreshed past it, the newer token is returned
// without another refresh call. A failed attempt clears the session and
// returns ErrAuthExpired.
func (m *TokenManager) HandleUnauthorized(ctx context.Context, previousAccess string) (string, error) {
	cred := m.store.Get()
	if cred.AccessToken != "" && cred.AccessToken != previousAccess {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		m.terminate(ctx)
		return "", model.ErrAuthExpired
	}
	return m.refresh(ctx)
}

// refresh funnels all callers through a single in-flight attempt.
func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	m.flightMu.Lock()
	if attempt := m.inflight; attempt != nil {
		m.flightMu.Unlock()
		select {
		case <-attempt.done:
			return attempt.access, attempt.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	attempt := &refreshAttempt{done: make(chan struct{})}
	m.inflight = attempt
	m.flightMu.Unlock()

	attempt.access, attempt.err = m.doRefresh(ctx)
	close(attempt.done)

	m.flightMu.Lock()
	m.inflight = nil
	m.flightMu.Unlock()

	return attempt.access, attempt.err
}

// doRefresh performs the actual refresh call and the atomic credential swap.
func (m *TokenManager) doRefresh(ctx context.Context) (string, error) {
	cred := m.store.Get()
	if cred.RefreshToken == "" {
		m.terminate(ctx)
		return "", model.ErrAuthExpired
	}

	renewed, err := m.auth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if model.IsConnectivity(err) {
			// The server never saw the refresh; the session may still be
			// valid, so keep it and surface the transport failure.
			return "", err
		}
		slog.Warn("credential refresh rejected, terminating session", "error", err)
		m.terminate(ctx)
		return "", model.ErrAuthExpired
	}

	next := model.Credential{
		AccessToken:  renewed.AccessToken,
		RefreshToken: cred.RefreshToken,
	}
	if renewed.RefreshToken != "" {
		next.RefreshToken = renewed.RefreshToken
	}
	m.store.SwapCredential(next)
	m.persist(ctx)

	slog.Debug("access token renewed")
	return next.AccessToken, nil
}

// terminate clears in-memory and durable session state and notifies the
// session-expired hook.
func (m *TokenManager) terminate(ctx context.Context) {
	m.store.Clear()
	if m.cache != nil {
		if err := m.cache.ClearSession(ctx); err != nil {
			slog.Error("clearing persisted session failed", "error", err)
		}
	}
	if m.OnSessionExpired != nil {
		m.OnSessionExpired()
	}
}

// persist writes the current session through to the durable cache.
func (m *TokenManager) persist(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.SaveSession(ctx, m.store.Session()); err != nil {
		slog.Error("persisting refreshed session failed", "error", err)
	}
}

// remainingLifetime returns how long the token's exp claim is still valid.
// The claim is read without signature verification -- the server remains the
// authority; the client only schedules renewal. Any parse failure yields
// zero, treating the token as expired.
func remainingLifetime(token string, now time.Time) time.Duration {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	remaining := exp.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
