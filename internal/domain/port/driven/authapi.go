package driven

import (
	"context"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// AuthAPI defines the driven port for the authentication endpoints.
// Implementations dispatch without the authenticated request gateway: the
// refresh call in particular must never trigger a recursive token check.
type AuthAPI interface {
	// Login exchanges an email/password pair for a credential and identity.
	Login(ctx context.Context, email, password string) (*model.Session, error)
	// Register creates a new account and returns its initial session.
	Register(ctx context.Context, reg model.Registration) (*model.Session, error)
	// Refresh exchanges a refresh token for a new access token. The returned
	// credential's RefreshToken is empty unless the server rotated it.
	Refresh(ctx context.Context, refreshToken string) (*model.Credential, error)
	// Captcha fetches a new captcha challenge.
	Captcha(ctx context.Context) (*model.Captcha, error)
}
