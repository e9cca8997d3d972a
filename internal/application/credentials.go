package application

import (
	"sync"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// CredentialStore holds the current credential pair and authenticated
// identity. It is a pure state holder: no I/O, no token inspection. It is the
// only piece of state mutated from multiple call sites (pre-flight refresh,
// refresh-on-401, login, logout), so every mutation is a single atomic swap
// under the lock -- never a field-by-field update a concurrent reader could
// observe half-applied.
type CredentialStore struct {
	mu       sync.RWMutex
	cred     model.Credential
	identity *model.Identity
}

// NewCredentialStore creates an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// Get returns a copy of the current credential pair.
func (s *CredentialStore) Get() model.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Identity returns the authenticated identity, or nil when anonymous.
func (s *CredentialStore) Identity() *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	ident := *s.identity
	return &ident
}

// Swap replaces the credential pair and identity in one atomic update.
func (s *CredentialStore) Swap(cred model.Credential, identity *model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.identity = identity
}

// SwapCredential replaces the credential pair, keeping the current identity.
// Used by refresh, which renews tokens without re-authenticating.
func (s *CredentialStore) SwapCredential(cred model.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
}

// Clear drops the credential pair and identity.
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = model.Credential{}
	s.identity = nil
}

// Session returns the full session snapshot.
func (s *CredentialStore) Session() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := model.Session{Credential: s.cred}
	if s.identity != nil {
		ident := *s.identity
		sess.Identity = &ident
	}
	return sess
}
