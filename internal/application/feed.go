package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gleb165/commentsync/internal/domain/model"
	"github.com/gleb165/commentsync/internal/domain/port/driven"
)

// FeedState describes the feed lifecycle.
type FeedState string

const (
	FeedIdle    FeedState = "idle"
	FeedLoading FeedState = "loading"
	FeedReady   FeedState = "ready"
	FeedError   FeedState = "error"
)

// FeedSnapshot is an immutable view of the root-comment feed.
type FeedSnapshot struct {
	State      FeedState
	Sort       model.SortKey
	Page       int
	TotalCount int
	Comments   []model.CommentNode
	Err        error
}

// Commands and internal events consumed by the feed loop. All state mutation
// happens inside the single loop goroutine; the push channel's messages enter
// the same queue instead of touching state from their own control path.
type (
	sortCmd    struct{ sort model.SortKey }
	pageCmd    struct{ page int }
	moreCmd    struct{}
	refreshCmd struct{}
	pushCmd    struct{ ev model.PushEvent }
	fetchDone  struct {
		gen    uint64
		page   *model.FeedPage
		append bool
		err    error
	}
)

// FeedSynchronizer maintains the ordered, paginated root-comment list and
// reconciles push-delivered creation events into it without duplicates or
// ordering violations.
//
// State machine: Idle -> Loading on start or sort change (resetting to page
// 1); Loading -> Ready on success, replacing the visible page wholesale;
// Loading -> Error on failure, leaving the prior Ready data on screen.
// Append mode (LoadMore) only ever extends with pages fetched under the same
// sort key; any sort change discards the accumulation.
type FeedSynchronizer struct {
	api      driven.CommentAPI
	push     driven.PushSource
	pageSize int

	commands chan any

	// Loop-owned state. Only the Start goroutine reads or writes these.
	gen         uint64
	state       FeedState
	sort        model.SortKey
	basePage    int
	pagesLoaded int
	comments    []model.CommentNode
	total       int
	lastErr     error

	mu   sync.RWMutex
	snap FeedSnapshot
}

// NewFeedSynchronizer creates a FeedSynchronizer for the given page size.
func NewFeedSynchronizer(api driven.CommentAPI, push driven.PushSource, pageSize int) *FeedSynchronizer {
	if pageSize < 1 {
		pageSize = 25
	}
	return &FeedSynchronizer{
		api:      api,
		push:     push,
		pageSize: pageSize,
		commands: make(chan any, 64),
		state:    FeedIdle,
		sort:     model.DefaultSortKey,
		basePage: 1,
		snap:     FeedSnapshot{State: FeedIdle, Sort: model.DefaultSortKey, Page: 1, Comments: []model.CommentNode{}},
	}
}

// Start runs the feed loop until the context is canceled. It subscribes the
// feed-scope push source and issues the initial page load.
func (s *FeedSynchronizer) Start(ctx context.Context) {
	var pushEvents <-chan model.PushEvent
	if s.push != nil {
		ch, err := s.push.SubscribeFeed(ctx)
		if err != nil {
			slog.Error("feed push subscription failed", "error", err)
		} else {
			pushEvents = ch
		}
	}

	s.startFetch(ctx, 1, s.sort, false)

	for {
		select {
		case <-ctx.Done():
			slog.Info("feed synchronizer stopped")
			return
		case cmd := <-s.commands:
			s.handle(ctx, cmd)
		case ev, ok := <-pushEvents:
			if !ok {
				pushEvents = nil
				continue
			}
			s.handle(ctx, pushCmd{ev: ev})
		}
	}
}

// SetSort switches the active sort key, resetting to page 1 and discarding
// any pages accumulated in append mode.
func (s *FeedSynchronizer) SetSort(field model.SortField, order model.SortOrder) {
	s.commands <- sortCmd{sort: model.SortKey{Field: field, Order: order}}
}

// SetPage navigates to the given page under the current sort key.
func (s *FeedSynchronizer) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.commands <- pageCmd{page: page}
}

// LoadMore extends the visible list with the next page fetched under the
// current sort key.
func (s *FeedSynchronizer) LoadMore() {
	s.commands <- moreCmd{}
}

// Refresh re-fetches the current page configuration.
func (s *FeedSynchronizer) Refresh() {
	s.commands <- refreshCmd{}
}

// React posts a like or unlike for a root comment through the gateway, then
// re-fetches the current page. The server-computed count and reaction state
// are the sources of truth; no optimistic local mutation is applied.
func (s *FeedSynchronizer) React(ctx context.Context, commentID string, up bool) error {
	var err error
	if up {
		err = s.api.Like(ctx, commentID)
	} else {
		err = s.api.Unlike(ctx, commentID)
	}
	if err != nil {
		return err
	}
	s.Refresh()
	return nil
}

// PostComment submits a new root comment and resets the feed to page 1 under
// the default sort so the author sees their comment. The text is sanitized
// before submission.
func (s *FeedSynchronizer) PostComment(ctx context.Context, draft model.CommentDraft) (*model.CommentNode, error) {
	draft.Text = SanitizeCommentText(draft.Text)
	created, err := s.api.CreateComment(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.SetSort(model.SortByCreated, model.SortDescending)
	return created, nil
}

// Snapshot returns the current feed view. The comment slice is a deep copy.
func (s *FeedSynchronizer) Snapshot() FeedSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Comments = model.CloneNodes(s.snap.Comments)
	return snap
}

// handle applies one command inside the loop goroutine.
func (s *FeedSynchronizer) handle(ctx context.Context, cmd any) {
	switch c := cmd.(type) {
	case sortCmd:
		s.sort = c.sort
		s.basePage = 1
		s.pagesLoaded = 0
		s.startFetch(ctx, 1, s.sort, false)
	case pageCmd:
		s.basePage = c.page
		s.pagesLoaded = 0
		s.startFetch(ctx, c.page, s.sort, false)
	case moreCmd:
		if s.state != FeedReady || s.pagesLoaded == 0 {
			return
		}
		s.startFetch(ctx, s.basePage+s.pagesLoaded, s.sort, true)
	case refreshCmd:
		s.pagesLoaded = 0
		s.startFetch(ctx, s.basePage, s.sort, false)
	case fetchDone:
		s.applyFetch(c)
	case pushCmd:
		s.applyPush(c.ev)
	}
}

// startFetch transitions to Loading and launches the page fetch, tagged with
// a generation so a stale result arriving after a newer intent is discarded.
func (s *FeedSynchronizer) startFetch(ctx context.Context, page int, sort model.SortKey, appendMode bool) {
	s.gen++
	gen := s.gen
	s.state = FeedLoading
	s.publish()

	go func() {
		fetched, err := s.api.FetchPage(ctx, page, sort)
		select {
		case s.commands <- fetchDone{gen: gen, page: fetched, append: appendMode, err: err}:
		case <-ctx.Done():
		}
	}()
}

// applyFetch installs a completed page fetch.
func (s *FeedSynchronizer) applyFetch(done fetchDone) {
	if done.gen != s.gen {
		slog.Debug("discarding stale feed fetch")
		return
	}
	if done.err != nil {
		// Prior Ready data stays visible; only the state flips.
		s.state = FeedError
		s.lastErr = done.err
		slog.Error("feed page fetch failed", "error", done.err)
		s.publish()
		return
	}

	s.state = FeedReady
	s.lastErr = nil
	s.total = done.page.TotalCount
	if done.append {
		s.comments = append(s.comments, done.page.Comments...)
		s.pagesLoaded++
	} else {
		s.comments = done.page.Comments
		s.pagesLoaded = 1
	}
	s.publish()
}

// applyPush merges a feed-scope push event. The total count always
// increments exactly once; the visible list is only touched when the active
// sort is creation-time descending and the first page is displayed, since
// prepending under any other configuration would contradict the declared
// ordering.
func (s *FeedSynchronizer) applyPush(ev model.PushEvent) {
	if ev.Type != model.PushCommentCreated {
		return
	}

	s.total++

	eligible := s.sort == model.DefaultSortKey && s.basePage == 1 && s.state == FeedReady
	if eligible && !s.containsComment(ev.Comment.ID) {
		next := make([]model.CommentNode, 0, len(s.comments)+1)
		next = append(next, ev.Comment)
		next = append(next, s.comments...)
		if limit := s.pageSize * s.pagesLoaded; len(next) > limit {
			next = next[:limit]
		}
		s.comments = next
	}
	s.publish()
}

// containsComment reports whether id is already on the visible page.
func (s *FeedSynchronizer) containsComment(id string) bool {
	for _, c := range s.comments {
		if c.ID == id {
			return true
		}
	}
	return false
}

// publish copies loop-owned state into the read-side snapshot. The comment
// slice is copied so later loop-side appends cannot touch a published
// backing array.
func (s *FeedSynchronizer) publish() {
	comments := make([]model.CommentNode, len(s.comments))
	copy(comments, s.comments)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = FeedSnapshot{
		State:      s.state,
		Sort:       s.sort,
		Page:       s.basePage,
		TotalCount: s.total,
		Comments:   comments,
		Err:        s.lastErr,
	}
}
