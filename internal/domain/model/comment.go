package model

import "time"

// ReactionState is the caller's reaction to a comment as reported by the server.
type ReactionState string

const (
	ReactionNone     ReactionState = "none"
	ReactionLiked    ReactionState = "liked"
	ReactionDisliked ReactionState = "disliked"
)

// AttachmentKind classifies a comment attachment.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment is a server-supplied file attached to a comment. Immutable.
type Attachment struct {
	ID          string
	Kind        AttachmentKind
	URI         string
	DisplayName string
}

// CommentNode is one comment plus its materialized reply subtree. Trees are
// immutable snapshots: reconciliation produces a new tree rather than mutating
// nodes in place, so consumers can rely on reference identity for change
// detection. A node with no replies carries an empty slice, never nil.
type CommentNode struct {
	ID          string
	ParentID    string
	AuthorLabel string
	AuthorEmail string
	AvatarURL   string
	CreatedAt   time.Time
	Text        string
	Attachments []Attachment
	LikeCount   int
	Reaction    ReactionState
	Replies     []CommentNode
}

// Clone returns a deep copy of the node and its entire reply subtree.
func (n CommentNode) Clone() CommentNode {
	out := n
	out.Attachments = make([]Attachment, len(n.Attachments))
	copy(out.Attachments, n.Attachments)
	out.Replies = CloneNodes(n.Replies)
	return out
}

// ContainsID reports whether id appears anywhere in the tree rooted at n.
func (n CommentNode) ContainsID(id string) bool {
	if n.ID == id {
		return true
	}
	for _, r := range n.Replies {
		if r.ContainsID(id) {
			return true
		}
	}
	return false
}

// CloneNodes deep-copies a slice of comment trees. A nil input yields an
// empty, non-nil slice.
func CloneNodes(nodes []CommentNode) []CommentNode {
	out := make([]CommentNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Clone())
	}
	return out
}

// SortField names a feed ordering column understood by the comment API.
type SortField string

const (
	SortByCreated  SortField = "created"
	SortByUsername SortField = "username"
	SortByEmail    SortField = "email"
)

// SortOrder is the ordering direction.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// SortKey is the {field, direction} pair a feed page was fetched under.
type SortKey struct {
	Field SortField
	Order SortOrder
}

// DefaultSortKey is creation time, newest first -- the only ordering under
// which push-delivered comments may be merged into a live page.
var DefaultSortKey = SortKey{Field: SortByCreated, Order: SortDescending}

// FeedPage is one page of root comments together with the total root-comment
// count and the sort key it was fetched under. The sequence order is
// consistent with Sort at the moment of fetch.
type FeedPage struct {
	Comments   []CommentNode
	TotalCount int
	Page       int
	Sort       SortKey
}
