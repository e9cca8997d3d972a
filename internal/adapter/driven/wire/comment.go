// Package wire holds the comment service's JSON wire types and their
// normalization into domain models. Shared by the REST client and the push
// channel adapter, which receive the same comment payload shape.
package wire

import (
	"path"
	"time"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// defaultAvatar is substituted for a missing author avatar so downstream
// logic never branches on absence.
const defaultAvatar = "/default-avatar.png"

// Author is the nested author payload on a comment.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// Attachment is the wire shape of a comment attachment.
type Attachment struct {
	ID             string `json:"id"`
	File           string `json:"file"`
	AttachmentType string `json:"attachment_type"`
}

// Comment is the wire shape of a comment as returned by every comment
// endpoint and carried inside push envelopes. Optional fields are pointers
// so absence is distinguishable from zero values.
type Comment struct {
	ID          string       `json:"id"`
	Parent      string       `json:"parent"`
	AuthorName  string       `json:"author_name"`
	GuestName   string       `json:"guest_name"`
	AuthorEmail string       `json:"author_email"`
	GuestEmail  string       `json:"guest_email"`
	Author      *Author      `json:"author"`
	Created     time.Time    `json:"created"`
	Text        string       `json:"text"`
	LikesCount  *int         `json:"likes_count"`
	Liked       *bool        `json:"liked"`
	Attachments []Attachment `json:"attachments"`
}

// Page is the wire shape of the paginated feed endpoint.
type Page struct {
	Results []Comment `json:"results"`
	Count   int       `json:"count"`
}

// Envelope is a push channel message. Type values other than
// comment_created and reply_created are ignored by the consumer.
type Envelope struct {
	Type    string   `json:"type"`
	Comment *Comment `json:"comment"`
}

// ToNode normalizes a wire comment into a domain node: missing counts
// default to zero, a missing reaction to none, a missing avatar to the
// placeholder, and attachment/reply slices are always non-nil.
func (c Comment) ToNode() model.CommentNode {
	label := c.AuthorName
	if label == "" {
		label = c.GuestName
	}

	email := c.AuthorEmail
	if email == "" {
		email = c.GuestEmail
	}

	avatar := defaultAvatar
	if c.Author != nil && c.Author.Avatar != "" {
		avatar = c.Author.Avatar
	}

	likes := 0
	if c.LikesCount != nil {
		likes = *c.LikesCount
	}

	reaction := model.ReactionNone
	if c.Liked != nil {
		if *c.Liked {
			reaction = model.ReactionLiked
		} else {
			reaction = model.ReactionDisliked
		}
	}

	attachments := make([]model.Attachment, 0, len(c.Attachments))
	for _, a := range c.Attachments {
		attachments = append(attachments, a.toAttachment())
	}

	return model.CommentNode{
		ID:          c.ID,
		ParentID:    c.Parent,
		AuthorLabel: label,
		AuthorEmail: email,
		AvatarURL:   avatar,
		CreatedAt:   c.Created,
		Text:        c.Text,
		Attachments: attachments,
		LikeCount:   likes,
		Reaction:    reaction,
		Replies:     []model.CommentNode{},
	}
}

func (a Attachment) toAttachment() model.Attachment {
	kind := model.AttachmentDocument
	if a.AttachmentType == "image" {
		kind = model.AttachmentImage
	}
	return model.Attachment{
		ID:          a.ID,
		Kind:        kind,
		URI:         a.File,
		DisplayName: path.Base(a.File),
	}
}

// ToNodes normalizes a slice of wire comments preserving order.
func ToNodes(comments []Comment) []model.CommentNode {
	nodes := make([]model.CommentNode, 0, len(comments))
	for _, c := range comments {
		nodes = append(nodes, c.ToNode())
	}
	return nodes
}
