package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gleb165/commentsync/internal/application"
	"github.com/gleb165/commentsync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// Validation errors keep their per-field structure so the caller can surface
// them on the originating form.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation failed",
			Fields: ve.Fields,
		})
	case errors.Is(err, model.ErrAuthExpired):
		writeError(w, http.StatusUnauthorized, "session expired")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case model.IsConnectivity(err):
		writeError(w, http.StatusBadGateway, "comment service unreachable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// validationResponse carries per-field messages from a rejected write.
type validationResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
}

// AttachmentResponse is the JSON representation of a comment attachment.
type AttachmentResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	URI         string `json:"uri"`
	DisplayName string `json:"display_name"`
}

// CommentResponse is the JSON representation of a comment and its reply subtree.
type CommentResponse struct {
	ID          string               `json:"id"`
	ParentID    string               `json:"parent_id,omitempty"`
	AuthorLabel string               `json:"author_label"`
	AuthorEmail string               `json:"author_email,omitempty"`
	AvatarURL   string               `json:"avatar_url"`
	CreatedAt   string               `json:"created_at"`
	Text        string               `json:"text"`
	Attachments []AttachmentResponse `json:"attachments"`
	LikeCount   int                  `json:"like_count"`
	Reaction    string               `json:"reaction"`
	Replies     []CommentResponse    `json:"replies"`
}

// FeedResponse is the JSON representation of the feed snapshot.
type FeedResponse struct {
	State      string            `json:"state"`
	SortField  string            `json:"sort_field"`
	SortOrder  string            `json:"sort_order"`
	Page       int               `json:"page"`
	TotalCount int               `json:"total_count"`
	Comments   []CommentResponse `json:"comments"`
	Error      string            `json:"error,omitempty"`
}

// ThreadResponse is the JSON representation of the open-thread snapshot.
type ThreadResponse struct {
	State string           `json:"state"`
	ID    string           `json:"id,omitempty"`
	Root  *CommentResponse `json:"root,omitempty"`
	Error string           `json:"error,omitempty"`
}

// IdentityResponse is the JSON representation of the authenticated user.
type IdentityResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// SessionResponse reports whether a session is active and for whom.
type SessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *IdentityResponse `json:"user,omitempty"`
}

// CaptchaResponse is the JSON representation of a captcha challenge.
type CaptchaResponse struct {
	Key      string `json:"key"`
	ImageURL string `json:"image_url"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// SetSortRequest is the JSON body for the feed sort endpoint.
type SetSortRequest struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// SetPageRequest is the JSON body for the feed page endpoint.
type SetPageRequest struct {
	Page int `json:"page"`
}

// OpenThreadRequest is the JSON body for the thread open endpoint.
type OpenThreadRequest struct {
	ID string `json:"id"`
}

// ReactRequest is the JSON body for the react endpoint.
type ReactRequest struct {
	Direction string `json:"direction"`
}

// LoginRequest is the JSON body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the JSON body for the register endpoint.
type RegisterRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	CaptchaKey   string `json:"captcha_key"`
	CaptchaValue string `json:"captcha_value"`
}

// PostCommentRequest is the JSON body for the comment and reply endpoints.
// Attachment uploads go through the multipart form variant instead.
type PostCommentRequest struct {
	Text         string `json:"text"`
	GuestName    string `json:"guest_name"`
	GuestEmail   string `json:"guest_email"`
	CaptchaKey   string `json:"captcha_key"`
	CaptchaValue string `json:"captcha_value"`
}

func (r PostCommentRequest) toDraft() model.CommentDraft {
	return model.CommentDraft{
		Text:         r.Text,
		GuestName:    r.GuestName,
		GuestEmail:   r.GuestEmail,
		CaptchaKey:   r.CaptchaKey,
		CaptchaValue: r.CaptchaValue,
	}
}

// toCommentResponse converts a domain CommentNode to its JSON representation.
func toCommentResponse(n model.CommentNode) CommentResponse {
	attachments := make([]AttachmentResponse, 0, len(n.Attachments))
	for _, a := range n.Attachments {
		attachments = append(attachments, AttachmentResponse{
			ID:          a.ID,
			Kind:        string(a.Kind),
			URI:         a.URI,
			DisplayName: a.DisplayName,
		})
	}

	replies := make([]CommentResponse, 0, len(n.Replies))
	for _, r := range n.Replies {
		replies = append(replies, toCommentResponse(r))
	}

	return CommentResponse{
		ID:          n.ID,
		ParentID:    n.ParentID,
		AuthorLabel: n.AuthorLabel,
		AuthorEmail: n.AuthorEmail,
		AvatarURL:   n.AvatarURL,
		CreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339),
		Text:        n.Text,
		Attachments: attachments,
		LikeCount:   n.LikeCount,
		Reaction:    string(n.Reaction),
		Replies:     replies,
	}
}

// toFeedResponse converts a feed snapshot to its JSON representation.
func toFeedResponse(snap application.FeedSnapshot) FeedResponse {
	comments := make([]CommentResponse, 0, len(snap.Comments))
	for _, c := range snap.Comments {
		comments = append(comments, toCommentResponse(c))
	}

	resp := FeedResponse{
		State:      string(snap.State),
		SortField:  string(snap.Sort.Field),
		SortOrder:  string(snap.Sort.Order),
		Page:       snap.Page,
		TotalCount: snap.TotalCount,
		Comments:   comments,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return resp
}

// toThreadResponse converts a thread snapshot to its JSON representation.
func toThreadResponse(snap application.ThreadSnapshot) ThreadResponse {
	resp := ThreadResponse{
		State: string(snap.State),
		ID:    snap.ID,
	}
	if snap.Root != nil {
		root := toCommentResponse(*snap.Root)
		resp.Root = &root
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return resp
}

// toIdentityResponse converts a domain Identity to its JSON representation.
func toIdentityResponse(id model.Identity) IdentityResponse {
	return IdentityResponse{
		ID:       id.ID,
		Username: id.Username,
		Email:    id.Email,
		Avatar:   id.Avatar,
	}
}
