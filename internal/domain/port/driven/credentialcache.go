package driven

import (
	"context"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// CredentialCache is the durable store for the session surviving process
// restarts. Writes replace the whole session atomically; a reader never
// observes a half-written credential pair.
type CredentialCache interface {
	// LoadSession returns the persisted session, or nil when none is stored.
	LoadSession(ctx context.Context) (*model.Session, error)
	// SaveSession replaces the persisted session in a single transaction.
	SaveSession(ctx context.Context, session model.Session) error
	// ClearSession removes all persisted session state.
	ClearSession(ctx context.Context) error
}
