package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gleb165/commentsync/internal/domain/model"
	"github.com/gleb165/commentsync/internal/domain/port/driven"
)

// ThreadState describes the thread view lifecycle.
type ThreadState string

const (
	ThreadIdle    ThreadState = "idle"
	ThreadLoading ThreadState = "loading"
	ThreadReady   ThreadState = "ready"
	ThreadError   ThreadState = "error"
)

// ThreadSnapshot is an immutable view of the currently open thread.
type ThreadSnapshot struct {
	State ThreadState
	ID    string
	Root  *model.CommentNode
	Err   error
}

// ThreadViewer manages the currently open thread: it loads the snapshot,
// subscribes the thread-scope push source, and reconciles reply_created
// events into a fresh snapshot. Every load and subscription is tagged with a
// generation; results arriving after the viewer moved on are discarded, so a
// stray late fetch can never be applied to a tree no longer displayed.
type ThreadViewer struct {
	loader *ThreadLoader
	api    driven.CommentAPI
	push   driven.PushSource

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	snap   ThreadSnapshot
}

// NewThreadViewer creates a ThreadViewer.
func NewThreadViewer(loader *ThreadLoader, api driven.CommentAPI, push driven.PushSource) *ThreadViewer {
	return &ThreadViewer{
		loader: loader,
		api:    api,
		push:   push,
		snap:   ThreadSnapshot{State: ThreadIdle},
	}
}

// Open switches the viewer to the given thread. Any in-flight work for a
// previously open thread is canceled and its late results dropped. The load
// and the push subscription run in the background; Snapshot reflects
// progress.
func (v *ThreadViewer) Open(ctx context.Context, id string) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	if v.cancel != nil {
		v.cancel()
	}
	threadCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.snap = ThreadSnapshot{State: ThreadLoading, ID: id}
	v.mu.Unlock()

	go v.run(threadCtx, gen, id)
}

// Close tears down the current thread view and its push subscription.
func (v *ThreadViewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.snap = ThreadSnapshot{State: ThreadIdle}
}

// Snapshot returns the current thread view. The returned tree is a deep copy.
func (v *ThreadViewer) Snapshot() ThreadSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	snap := v.snap
	if snap.Root != nil {
		root := snap.Root.Clone()
		snap.Root = &root
	}
	return snap
}

// React posts a like or unlike for a comment in the open thread, then
// re-fetches the whole thread: the server-computed count and reaction state
// are the sources of truth, so no optimistic local mutation is applied.
func (v *ThreadViewer) React(ctx context.Context, commentID string, up bool) error {
	var err error
	if up {
		err = v.api.Like(ctx, commentID)
	} else {
		err = v.api.Unlike(ctx, commentID)
	}
	if err != nil {
		return err
	}

	v.mu.Lock()
	gen, id := v.gen, v.snap.ID
	v.mu.Unlock()
	if id != "" {
		v.reload(ctx, gen, id)
	}
	return nil
}

// PostReply submits a reply under parentID and re-fetches the thread. The
// reply text is sanitized before submission.
func (v *ThreadViewer) PostReply(ctx context.Context, parentID string, draft model.CommentDraft) (*model.CommentNode, error) {
	draft.Text = SanitizeCommentText(draft.Text)
	created, err := v.api.CreateReply(ctx, parentID, draft)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	gen, id := v.gen, v.snap.ID
	v.mu.Unlock()
	if id != "" {
		v.reload(ctx, gen, id)
	}
	return created, nil
}

// run performs the initial load and then consumes thread-scope push events
// until the thread context is canceled.
func (v *ThreadViewer) run(ctx context.Context, gen uint64, id string) {
	v.reload(ctx, gen, id)

	events, err := v.push.SubscribeThread(ctx, id)
	if err != nil {
		slog.Error("thread push subscription failed", "thread_id", id, "error", err)
		return
	}
	for ev := range events {
		if ev.Type != model.PushReplyCreated {
			continue
		}
		v.applyReply(gen, ev.Comment)
	}
}

// reload fetches a fresh snapshot and installs it if the generation still
// matches the open thread.
func (v *ThreadViewer) reload(ctx context.Context, gen uint64, id string) {
	root, err := v.loader.LoadThread(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		slog.Debug("discarding stale thread load", "thread_id", id)
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		v.snap = ThreadSnapshot{State: ThreadError, ID: id, Err: err}
		return
	}
	v.snap = ThreadSnapshot{State: ThreadReady, ID: id, Root: root}
}

// applyReply merges a pushed reply into the snapshot by rebuilding the path
// from the root to its parent. Duplicate ids (the poster's own refetch racing
// the push event) and replies for unknown parents are dropped.
func (v *ThreadViewer) applyReply(gen uint64, reply model.CommentNode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen || v.snap.State != ThreadReady || v.snap.Root == nil {
		return
	}
	if v.snap.Root.ContainsID(reply.ID) {
		return
	}
	if reply.ParentID == "" {
		return
	}

	next, inserted := insertReply(*v.snap.Root, reply)
	if !inserted {
		slog.Debug("dropping reply for parent outside open thread",
			"reply_id", reply.ID,
			"parent_id", reply.ParentID,
		)
		return
	}
	v.snap.Root = &next
}

// insertReply returns a copy of root with reply appended under its parent.
// Only the path from the root to the parent is rebuilt; untouched subtrees
// are shared.
func insertReply(root model.CommentNode, reply model.CommentNode) (model.CommentNode, bool) {
	if root.ID == reply.ParentID {
		replies := make([]model.CommentNode, 0, len(root.Replies)+1)
		replies = append(replies, root.Replies...)
		replies = append(replies, reply)
		root.Replies = replies
		return root, true
	}
	for i := range root.Replies {
		child, ok := insertReply(root.Replies[i], reply)
		if ok {
			replies := make([]model.CommentNode, len(root.Replies))
			copy(replies, root.Replies)
			replies[i] = child
			root.Replies = replies
			return root, true
		}
	}
	return root, false
}
