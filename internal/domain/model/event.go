package model

// PushEventType identifies a push channel message. Unrecognized types are
// dropped by the push adapter before they reach any consumer.
type PushEventType string

const (
	PushCommentCreated PushEventType = "comment_created"
	PushReplyCreated   PushEventType = "reply_created"
)

// PushEvent is a typed creation event delivered over the push channel.
type PushEvent struct {
	Type    PushEventType
	Comment CommentNode
}
