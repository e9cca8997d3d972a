package application

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/gleb165/commentsync/internal/domain/model"
	"github.com/gleb165/commentsync/internal/domain/port/driven"
)

// ThreadLoader materializes a root comment and its full recursive reply tree
// from the one-level replies endpoint. Sibling subtrees are fetched
// concurrently but reassembled in server order before the caller observes the
// tree; a caller never sees a partially ordered intermediate.
//
// The tree is expanded breadth-first over an explicit frontier rather than by
// call-stack recursion, so a pathological deep or wide thread cannot exhaust
// the stack. Concurrency per level is bounded.
type ThreadLoader struct {
	api         driven.CommentAPI
	concurrency int
}

// NewThreadLoader creates a ThreadLoader issuing at most concurrency reply
// fetches at a time (minimum 1).
func NewThreadLoader(api driven.CommentAPI, concurrency int) *ThreadLoader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ThreadLoader{api: api, concurrency: concurrency}
}

// LoadThread fetches the comment by id and fully materializes its reply tree.
// A failed root fetch fails the whole operation; a failed reply-subtree fetch
// degrades that subtree to empty so one flaky branch does not abort the
// thread.
func (l *ThreadLoader) LoadThread(ctx context.Context, id string) (*model.CommentNode, error) {
	root, err := l.api.FetchComment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("thread %s unavailable: %w", id, err)
	}

	node := root.Clone()
	frontier := []*model.CommentNode{&node}

	for len(frontier) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.concurrency)

		for _, parent := range frontier {
			g.Go(func() error {
				parent.Replies = l.fetchLevel(gctx, parent.ID)
				return nil
			})
		}
		// Workers never return errors; Wait only joins them.
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []*model.CommentNode
		for _, parent := range frontier {
			for i := range parent.Replies {
				next = append(next, &parent.Replies[i])
			}
		}
		frontier = next
	}

	return &node, nil
}

// LoadReplies fetches one level of replies for the given comment, in server
// order. Exposed for incremental expansion.
func (l *ThreadLoader) LoadReplies(ctx context.Context, id string) ([]model.CommentNode, error) {
	return l.api.FetchReplies(ctx, id)
}

// fetchLevel fetches the direct replies of parentID, downgrading failure to
// an empty level.
func (l *ThreadLoader) fetchLevel(ctx context.Context, parentID string) []model.CommentNode {
	replies, err := l.api.FetchReplies(ctx, parentID)
	if err != nil {
		slog.Error("reply fetch failed, treating subtree as empty",
			"parent_id", parentID,
			"error", err,
		)
		return []model.CommentNode{}
	}
	if replies == nil {
		replies = []model.CommentNode{}
	}
	return replies
}
