package driven

import (
	"context"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// CommentAPI defines the driven port for the remote comment service.
// Implementations must return fully normalized nodes: missing counts default
// to zero, missing reactions to none, missing avatars to the placeholder, and
// attachment/reply slices are never nil.
type CommentAPI interface {
	// FetchPage retrieves one page of root comments under the given sort key.
	FetchPage(ctx context.Context, page int, sort model.SortKey) (*model.FeedPage, error)
	// FetchComment retrieves a single comment by id, without replies.
	FetchComment(ctx context.Context, id string) (*model.CommentNode, error)
	// FetchReplies retrieves the direct replies of a comment, one level deep,
	// in server order.
	FetchReplies(ctx context.Context, id string) ([]model.CommentNode, error)
	// CreateComment posts a new root comment. Drafts with attachments are sent
	// as multipart, otherwise as JSON.
	CreateComment(ctx context.Context, draft model.CommentDraft) (*model.CommentNode, error)
	// CreateReply posts a reply under the given parent comment.
	CreateReply(ctx context.Context, parentID string, draft model.CommentDraft) (*model.CommentNode, error)
	// Like records an upvote reaction for the calling user.
	Like(ctx context.Context, id string) error
	// Unlike records a downvote (or like withdrawal) for the calling user.
	Unlike(ctx context.Context, id string) error
}
