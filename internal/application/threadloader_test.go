package application

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// treeAPI serves a comment tree from an adjacency map. Reply fetches complete
// in randomized order to exercise order preservation, and every fetch is
// recorded.
type treeAPI struct {
	mu       sync.Mutex
	comments map[string]model.CommentNode
	children map[string][]string
	failFor  map[string]bool
	fetched  []string
	jitter   time.Duration
}

func newTreeAPI() *treeAPI {
	return &treeAPI{
		comments: make(map[string]model.CommentNode),
		children: make(map[string][]string),
		failFor:  make(map[string]bool),
	}
}

func (a *treeAPI) add(id, parentID string) {
	a.comments[id] = model.CommentNode{
		ID:          id,
		ParentID:    parentID,
		Text:        "comment " + id,
		Reaction:    model.ReactionNone,
		Attachments: []model.Attachment{},
		Replies:     []model.CommentNode{},
	}
	if parentID != "" {
		a.children[parentID] = append(a.children[parentID], id)
	}
}

func (a *treeAPI) FetchPage(context.Context, int, model.SortKey) (*model.FeedPage, error) {
	return nil, errors.New("not implemented")
}

func (a *treeAPI) FetchComment(_ context.Context, id string) (*model.CommentNode, error) {
	a.mu.Lock()
	c, ok := a.comments[id]
	a.mu.Unlock()
	if !ok {
		return nil, model.ErrNotFound
	}
	c = c.Clone()
	return &c, nil
}

func (a *treeAPI) FetchReplies(_ context.Context, id string) ([]model.CommentNode, error) {
	if a.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(a.jitter))))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetched = append(a.fetched, id)

	if a.failFor[id] {
		return nil, &model.ConnectivityError{Op: "GET replies", Err: errors.New("connection reset")}
	}

	out := make([]model.CommentNode, 0, len(a.children[id]))
	for _, childID := range a.children[id] {
		out = append(out, a.comments[childID].Clone())
	}
	return out, nil
}

func (a *treeAPI) CreateComment(context.Context, model.CommentDraft) (*model.CommentNode, error) {
	return nil, errors.New("not implemented")
}

func (a *treeAPI) CreateReply(context.Context, string, model.CommentDraft) (*model.CommentNode, error) {
	return nil, errors.New("not implemented")
}

func (a *treeAPI) Like(context.Context, string) error   { return nil }
func (a *treeAPI) Unlike(context.Context, string) error { return nil }

// ids extracts the direct-reply id sequence of a node.
func ids(nodes []model.CommentNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestLoadThread_MaterializesFullTree(t *testing.T) {
	api := newTreeAPI()
	api.add("root", "")
	api.add("a", "root")
	api.add("b", "root")
	api.add("a1", "a")
	api.add("a2", "a")
	api.add("b1", "b")
	api.add("a1x", "a1")

	loader := NewThreadLoader(api, 4)
	root, err := loader.LoadThread(context.Background(), "root")

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(root.Replies))
	assert.Equal(t, []string{"a1", "a2"}, ids(root.Replies[0].Replies))
	assert.Equal(t, []string{"b1"}, ids(root.Replies[1].Replies))
	assert.Equal(t, []string{"a1x"}, ids(root.Replies[0].Replies[0].Replies))
	assert.Empty(t, root.Replies[0].Replies[0].Replies[0].Replies)
}

func TestLoadThread_ExactFetchCoverage(t *testing.T) {
	api := newTreeAPI()
	api.add("root", "")
	api.add("a", "root")
	api.add("b", "root")
	api.add("a1", "a")

	loader := NewThreadLoader(api, 2)
	_, err := loader.LoadThread(context.Background(), "root")

	require.NoError(t, err)
	// One reply fetch per discovered node, no repeats.
	assert.ElementsMatch(t, []string{"root", "a", "b", "a1"}, api.fetched)
}

func TestLoadThread_OrderPreservedUnderConcurrency(t *testing.T) {
	api := newTreeAPI()
	api.add("root", "")
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8"} {
		api.add(id, "root")
	}
	api.jitter = 3 * time.Millisecond

	loader := NewThreadLoader(api, 8)

	// Randomized completion order must never leak into the assembled tree.
	for i := 0; i < 5; i++ {
		root, err := loader.LoadThread(context.Background(), "root")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8"}, ids(root.Replies))
	}
}

func TestLoadThread_RootFetchFailure(t *testing.T) {
	api := newTreeAPI()

	loader := NewThreadLoader(api, 2)
	_, err := loader.LoadThread(context.Background(), "missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLoadThread_SubtreeFailureDegradesToEmpty(t *testing.T) {
	api := newTreeAPI()
	api.add("root", "")
	api.add("a", "root")
	api.add("b", "root")
	api.add("a1", "a")
	api.failFor["a"] = true

	loader := NewThreadLoader(api, 2)
	root, err := loader.LoadThread(context.Background(), "root")

	require.NoError(t, err, "one flaky branch must not abort the thread")
	assert.Equal(t, []string{"a", "b"}, ids(root.Replies))
	assert.Empty(t, root.Replies[0].Replies, "failed subtree degraded to empty")
}

func TestLoadThread_Canceled(t *testing.T) {
	api := newTreeAPI()
	api.add("root", "")
	api.add("a", "root")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewThreadLoader(api, 2)
	_, err := loader.LoadThread(ctx, "root")

	// The root fetch may succeed before the cancellation check, but the
	// loader must not return a tree under a canceled context.
	require.Error(t, err)
}

func TestLoadReplies_Passthrough(t *testing.T) {
	api := newTreeAPI()
	api.add("root", "")
	api.add("a", "root")

	loader := NewThreadLoader(api, 2)
	replies, err := loader.LoadReplies(context.Background(), "root")

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(replies))
}
