package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gleb165/commentsync/internal/adapter/driven/wire"
	"github.com/gleb165/commentsync/internal/domain/model"
	"github.com/gleb165/commentsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommentAPI = (*Client)(nil)

// Attachment limits enforced before upload, mirroring the server's rules.
const (
	maxImageBytes    = 10 << 20  // 10 MiB
	maxDocumentBytes = 100 << 10 // 100 KiB
)

// Client implements the CommentAPI port over the authenticated gateway.
type Client struct {
	gw *Gateway
}

// NewClient creates a comment API client routed through gw.
func NewClient(gw *Gateway) *Client {
	return &Client{gw: gw}
}

// FetchPage retrieves one page of root comments under the given sort key.
func (c *Client) FetchPage(ctx context.Context, page int, sort model.SortKey) (*model.FeedPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("sort_by", string(sort.Field))
	q.Set("order", string(sort.Order))

	resp, err := c.gw.Do(ctx, &Request{Method: http.MethodGet, Path: "/comments/", Query: q})
	if err != nil {
		return nil, err
	}

	var wp wire.Page
	if err := decodeJSON(resp, &wp); err != nil {
		return nil, fmt.Errorf("fetching feed page %d: %w", page, err)
	}

	return &model.FeedPage{
		Comments:   wire.ToNodes(wp.Results),
		TotalCount: wp.Count,
		Page:       page,
		Sort:       sort,
	}, nil
}

// FetchComment retrieves a single comment by id, without replies.
func (c *Client) FetchComment(ctx context.Context, id string) (*model.CommentNode, error) {
	resp, err := c.gw.Do(ctx, &Request{Method: http.MethodGet, Path: "/comments/" + id + "/"})
	if err != nil {
		return nil, err
	}

	var wc wire.Comment
	if err := decodeJSON(resp, &wc); err != nil {
		return nil, fmt.Errorf("fetching comment %s: %w", id, err)
	}

	node := wc.ToNode()
	return &node, nil
}

// FetchReplies retrieves the direct replies of a comment in server order.
func (c *Client) FetchReplies(ctx context.Context, id string) ([]model.CommentNode, error) {
	resp, err := c.gw.Do(ctx, &Request{Method: http.MethodGet, Path: "/comments/" + id + "/replies/"})
	if err != nil {
		return nil, err
	}

	var replies []wire.Comment
	if err := decodeJSON(resp, &replies); err != nil {
		return nil, fmt.Errorf("fetching replies of %s: %w", id, err)
	}
	return wire.ToNodes(replies), nil
}

// CreateComment posts a new root comment.
func (c *Client) CreateComment(ctx context.Context, draft model.CommentDraft) (*model.CommentNode, error) {
	return c.post(ctx, "/comments/", draft)
}

// CreateReply posts a reply under the given parent.
func (c *Client) CreateReply(ctx context.Context, parentID string, draft model.CommentDraft) (*model.CommentNode, error) {
	return c.post(ctx, "/comments/"+parentID+"/replies/", draft)
}

// Like records an upvote for the calling user.
func (c *Client) Like(ctx context.Context, id string) error {
	resp, err := c.gw.Do(ctx, &Request{Method: http.MethodPost, Path: "/comments/" + id + "/like/"})
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil); err != nil {
		return fmt.Errorf("liking comment %s: %w", id, err)
	}
	return nil
}

// Unlike withdraws a like (or records a downvote) for the calling user.
func (c *Client) Unlike(ctx context.Context, id string) error {
	resp, err := c.gw.Do(ctx, &Request{Method: http.MethodPost, Path: "/comments/" + id + "/unlike/"})
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil); err != nil {
		return fmt.Errorf("unliking comment %s: %w", id, err)
	}
	return nil
}

// post submits a draft as JSON, or as multipart when attachments are staged.
func (c *Client) post(ctx context.Context, p string, draft model.CommentDraft) (*model.CommentNode, error) {
	if err := validateAttachments(draft.Attachments); err != nil {
		return nil, err
	}

	req := &Request{Method: http.MethodPost, Path: p}
	if draft.HasAttachments() {
		req.Multipart = &MultipartPayload{
			Fields: draftFields(draft),
			Files:  draft.Attachments,
		}
	} else {
		req.JSON = newDraftBody(draft)
	}

	resp, err := c.gw.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var wc wire.Comment
	if err := decodeJSON(resp, &wc); err != nil {
		return nil, fmt.Errorf("posting comment: %w", err)
	}
	node := wc.ToNode()
	return &node, nil
}

// draftBody is the JSON shape of a comment draft; empty optional fields are
// omitted so the server applies guest validation only when they matter.
type draftBody struct {
	Text         string `json:"text"`
	GuestName    string `json:"guest_name,omitempty"`
	GuestEmail   string `json:"guest_email,omitempty"`
	CaptchaKey   string `json:"captcha_key,omitempty"`
	CaptchaValue string `json:"captcha_value,omitempty"`
}

func newDraftBody(draft model.CommentDraft) draftBody {
	return draftBody{
		Text:         draft.Text,
		GuestName:    draft.GuestName,
		GuestEmail:   draft.GuestEmail,
		CaptchaKey:   draft.CaptchaKey,
		CaptchaValue: draft.CaptchaValue,
	}
}

func draftFields(draft model.CommentDraft) map[string]string {
	fields := map[string]string{"text": draft.Text}
	if draft.GuestName != "" {
		fields["guest_name"] = draft.GuestName
	}
	if draft.GuestEmail != "" {
		fields["guest_email"] = draft.GuestEmail
	}
	if draft.CaptchaKey != "" {
		fields["captcha_key"] = draft.CaptchaKey
		fields["captcha_value"] = draft.CaptchaValue
	}
	return fields
}

// validateAttachments rejects files the server would refuse, before paying
// for the upload: images up to 10 MiB in JPEG/PNG/GIF, text documents up to
// 100 KiB with a .txt name.
func validateAttachments(files []model.AttachmentUpload) error {
	for _, f := range files {
		if strings.HasPrefix(f.ContentType, "image/") {
			if len(f.Data) > maxImageBytes {
				return validationFailure("files", fmt.Sprintf("image %q is too large", f.FileName))
			}
			switch f.ContentType {
			case "image/jpeg", "image/png", "image/gif":
			default:
				return validationFailure("files", fmt.Sprintf("image %q must be JPG, GIF, or PNG", f.FileName))
			}
			continue
		}
		if !strings.HasSuffix(strings.ToLower(f.FileName), ".txt") {
			return validationFailure("files", fmt.Sprintf("document %q must be a .txt file", f.FileName))
		}
		if len(f.Data) > maxDocumentBytes {
			return validationFailure("files", fmt.Sprintf("document %q is too large (max 100kb)", f.FileName))
		}
	}
	return nil
}

func validationFailure(field, msg string) error {
	return &model.ValidationError{Fields: map[string][]string{field: {msg}}}
}
