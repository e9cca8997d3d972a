package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// sessionAuthAPI returns scripted login/register sessions.
type sessionAuthAPI struct {
	loginSession    *model.Session
	loginErr        error
	registerSession *model.Session
}

func (a *sessionAuthAPI) Login(context.Context, string, string) (*model.Session, error) {
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return a.loginSession, nil
}

func (a *sessionAuthAPI) Register(context.Context, model.Registration) (*model.Session, error) {
	return a.registerSession, nil
}

func (a *sessionAuthAPI) Refresh(context.Context, string) (*model.Credential, error) {
	return nil, model.ErrAuthExpired
}

func (a *sessionAuthAPI) Captcha(context.Context) (*model.Captcha, error) {
	return &model.Captcha{Key: "k", ImageURL: "/captcha/k.png"}, nil
}

func TestSessionManager_LoginInstallsAndPersists(t *testing.T) {
	store := NewCredentialStore()
	cache := &memCache{}
	auth := &sessionAuthAPI{loginSession: &model.Session{
		Credential: model.Credential{AccessToken: "access", RefreshToken: "refresh"},
		Identity:   &model.Identity{ID: "1", Username: "alice"},
	}}

	mgr := NewSessionManager(store, auth, cache)
	identity, err := mgr.Login(context.Background(), "alice@example.com", "pw")

	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, "access", store.Get().AccessToken)
	assert.Equal(t, 1, cache.saves)
}

func TestSessionManager_LoginFailureLeavesStoreEmpty(t *testing.T) {
	store := NewCredentialStore()
	auth := &sessionAuthAPI{loginErr: &model.ValidationError{
		Fields: map[string][]string{"email": {"invalid credentials"}},
	}}

	mgr := NewSessionManager(store, auth, &memCache{})
	_, err := mgr.Login(context.Background(), "alice@example.com", "wrong")

	require.Error(t, err)
	assert.True(t, store.Get().IsZero())
}

func TestSessionManager_RegisterWithTokens(t *testing.T) {
	store := NewCredentialStore()
	cache := &memCache{}
	auth := &sessionAuthAPI{registerSession: &model.Session{
		Credential: model.Credential{AccessToken: "access", RefreshToken: "refresh"},
		Identity:   &model.Identity{ID: "2", Username: "bob"},
	}}

	mgr := NewSessionManager(store, auth, cache)
	identity, err := mgr.Register(context.Background(), model.Registration{Username: "bob"})

	require.NoError(t, err)
	assert.Equal(t, "bob", identity.Username)
	assert.Equal(t, "access", store.Get().AccessToken)
	assert.Equal(t, 1, cache.saves)
}

func TestSessionManager_RegisterWithoutTokens(t *testing.T) {
	store := NewCredentialStore()
	cache := &memCache{}
	auth := &sessionAuthAPI{registerSession: &model.Session{
		Identity: &model.Identity{ID: "2", Username: "bob"},
	}}

	mgr := NewSessionManager(store, auth, cache)
	identity, err := mgr.Register(context.Background(), model.Registration{Username: "bob"})

	require.NoError(t, err)
	assert.Equal(t, "bob", identity.Username)
	assert.True(t, store.Get().IsZero(), "no credential installed when the server issues none")
	assert.Equal(t, 0, cache.saves)
}

func TestSessionManager_HydrateRestoresSession(t *testing.T) {
	store := NewCredentialStore()
	cache := &memCache{session: &model.Session{
		Credential: model.Credential{AccessToken: "cached-access", RefreshToken: "cached-refresh"},
		Identity:   &model.Identity{ID: "1", Username: "alice"},
	}}

	mgr := NewSessionManager(store, &sessionAuthAPI{}, cache)
	require.NoError(t, mgr.Hydrate(context.Background()))

	assert.Equal(t, "cached-access", store.Get().AccessToken)
	require.NotNil(t, mgr.Identity())
	assert.Equal(t, "alice", mgr.Identity().Username)
}

func TestSessionManager_HydrateEmptyCache(t *testing.T) {
	store := NewCredentialStore()

	mgr := NewSessionManager(store, &sessionAuthAPI{}, &memCache{})
	require.NoError(t, mgr.Hydrate(context.Background()))

	assert.True(t, store.Get().IsZero())
	assert.Nil(t, mgr.Identity())
}

func TestSessionManager_Logout(t *testing.T) {
	store := NewCredentialStore()
	store.Swap(
		model.Credential{AccessToken: "access", RefreshToken: "refresh"},
		&model.Identity{ID: "1", Username: "alice"},
	)
	cache := &memCache{session: &model.Session{}}

	mgr := NewSessionManager(store, &sessionAuthAPI{}, cache)
	mgr.Logout(context.Background())

	assert.True(t, store.Get().IsZero())
	assert.Nil(t, mgr.Identity())
	assert.Equal(t, 1, cache.clears)
}

func TestSanitizeCommentText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"allowed tags kept", "<strong>bold</strong> and <i>italic</i>", "<strong>bold</strong> and <i>italic</i>"},
		{"code kept", "<code>x := 1</code>", "<code>x := 1</code>"},
		{"anchor attrs filtered", `<a href="https://example.com" onclick="evil()">link</a>`, `<a href="https://example.com">link</a>`},
		{"script stripped", `before<script>alert(1)</script>after`, "beforeafter"},
		{"div unwrapped", "<div>text</div>", "text"},
		{"plain text unchanged", "just text", "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeCommentText(tt.in))
		})
	}
}
