package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gleb165/commentsync/internal/domain/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw, err := NewGatewayWithClient(srv.Client(), srv.URL, nil)
	require.NoError(t, err)
	return NewClient(gw)
}

func TestFetchPage_NormalizesWirePayload(t *testing.T) {
	body := `{
		"count": 42,
		"results": [
			{
				"id": "1",
				"author_name": "alice",
				"author_email": "alice@example.com",
				"author": {"id": "7", "username": "alice", "avatar": "/avatars/alice.png"},
				"created": "2026-06-01T12:00:00Z",
				"text": "hello",
				"likes_count": 3,
				"liked": true,
				"attachments": [
					{"id": "a1", "file": "/media/attachments/pic.png", "attachment_type": "image"},
					{"id": "a2", "file": "/media/attachments/notes.txt", "attachment_type": "file"}
				]
			},
			{
				"id": "2",
				"guest_name": "visitor",
				"guest_email": "visitor@example.com",
				"created": "2026-06-01T11:00:00Z",
				"text": "hi",
				"liked": false
			},
			{
				"id": "3",
				"guest_name": "anon",
				"created": "2026-06-01T10:00:00Z",
				"text": "hey"
			}
		]
	}`
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})

	page, err := client.FetchPage(context.Background(), 1, model.DefaultSortKey)

	require.NoError(t, err)
	assert.Equal(t, 42, page.TotalCount)
	require.Len(t, page.Comments, 3)

	authored := page.Comments[0]
	assert.Equal(t, "alice", authored.AuthorLabel)
	assert.Equal(t, "alice@example.com", authored.AuthorEmail)
	assert.Equal(t, "/avatars/alice.png", authored.AvatarURL)
	assert.Equal(t, 3, authored.LikeCount)
	assert.Equal(t, model.ReactionLiked, authored.Reaction)
	require.Len(t, authored.Attachments, 2)
	assert.Equal(t, model.AttachmentImage, authored.Attachments[0].Kind)
	assert.Equal(t, "pic.png", authored.Attachments[0].DisplayName)
	assert.Equal(t, model.AttachmentDocument, authored.Attachments[1].Kind)

	guest := page.Comments[1]
	assert.Equal(t, "visitor", guest.AuthorLabel, "guest name used when no account author")
	assert.Equal(t, "visitor@example.com", guest.AuthorEmail)
	assert.Equal(t, "/default-avatar.png", guest.AvatarURL, "placeholder avatar substituted")
	assert.Equal(t, model.ReactionDisliked, guest.Reaction, "liked=false maps to disliked")
	assert.Empty(t, guest.Attachments)
	assert.NotNil(t, guest.Attachments, "attachment slice never nil")

	bare := page.Comments[2]
	assert.Equal(t, 0, bare.LikeCount, "missing count defaults to zero")
	assert.Equal(t, model.ReactionNone, bare.Reaction, "missing liked maps to none")
	assert.NotNil(t, bare.Replies)
}

func TestFetchComment_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchComment(context.Background(), "999")

	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreateComment_SendsJSONDraft(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"10","text":"posted","created":"2026-06-01T12:00:00Z"}`)
	})

	node, err := client.CreateComment(context.Background(), model.CommentDraft{
		Text:         "posted",
		GuestName:    "visitor",
		GuestEmail:   "visitor@example.com",
		CaptchaKey:   "ck",
		CaptchaValue: "cv",
	})

	require.NoError(t, err)
	assert.Equal(t, "10", node.ID)
	assert.Equal(t, "posted", gotBody["text"])
	assert.Equal(t, "visitor", gotBody["guest_name"])
	assert.Equal(t, "ck", gotBody["captcha_key"])
}

func TestCreateComment_OmitsEmptyGuestFields(t *testing.T) {
	var raw string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		raw = string(data)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"10","text":"posted","created":"2026-06-01T12:00:00Z"}`)
	})

	_, err := client.CreateComment(context.Background(), model.CommentDraft{Text: "posted"})

	require.NoError(t, err)
	assert.NotContains(t, raw, "guest_name", "empty guest fields omitted")
	assert.NotContains(t, raw, "captcha_key")
}

func TestCreateComment_MultipartWithAttachments(t *testing.T) {
	var (
		gotContentType string
		gotText        string
		gotFiles       []string
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotText = r.FormValue("text")
		for _, fh := range r.MultipartForm.File["files"] {
			gotFiles = append(gotFiles, fh.Filename)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"11","text":"with files","created":"2026-06-01T12:00:00Z"}`)
	})

	_, err := client.CreateComment(context.Background(), model.CommentDraft{
		Text: "with files",
		Attachments: []model.AttachmentUpload{
			{FileName: "pic.png", ContentType: "image/png", Data: []byte{0x89, 0x50}},
			{FileName: "notes.txt", ContentType: "text/plain", Data: []byte("hi")},
		},
	})

	require.NoError(t, err)
	mediaType, _, _ := mime.ParseMediaType(gotContentType)
	assert.Equal(t, "multipart/form-data", mediaType)
	assert.Equal(t, "with files", gotText)
	assert.Equal(t, []string{"pic.png", "notes.txt"}, gotFiles)
}

func TestCreateComment_ValidationErrorParsed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"text":["This field is required."],"guest_email":"Enter a valid email address."}`)
	})

	_, err := client.CreateComment(context.Background(), model.CommentDraft{Text: "x"})

	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"This field is required."}, ve.Fields["text"])
	assert.Equal(t, []string{"Enter a valid email address."}, ve.Fields["guest_email"], "single-string field values accepted")
}

func TestValidateAttachments(t *testing.T) {
	tests := []struct {
		name    string
		file    model.AttachmentUpload
		wantErr string
	}{
		{
			name: "png accepted",
			file: model.AttachmentUpload{FileName: "a.png", ContentType: "image/png", Data: make([]byte, 1024)},
		},
		{
			name:    "oversized image rejected",
			file:    model.AttachmentUpload{FileName: "big.jpg", ContentType: "image/jpeg", Data: make([]byte, maxImageBytes+1)},
			wantErr: "too large",
		},
		{
			name:    "webp rejected",
			file:    model.AttachmentUpload{FileName: "a.webp", ContentType: "image/webp", Data: make([]byte, 16)},
			wantErr: "must be JPG, GIF, or PNG",
		},
		{
			name: "txt accepted",
			file: model.AttachmentUpload{FileName: "notes.TXT", ContentType: "text/plain", Data: make([]byte, 1024)},
		},
		{
			name:    "non-txt document rejected",
			file:    model.AttachmentUpload{FileName: "doc.pdf", ContentType: "application/pdf", Data: make([]byte, 16)},
			wantErr: "must be a .txt file",
		},
		{
			name:    "oversized document rejected",
			file:    model.AttachmentUpload{FileName: "notes.txt", ContentType: "text/plain", Data: make([]byte, maxDocumentBytes+1)},
			wantErr: "too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAttachments([]model.AttachmentUpload{tt.file})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr))
		})
	}
}

func TestLike_PostsToLikeEndpoint(t *testing.T) {
	var gotPath, gotMethod string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.Like(context.Background(), "5"))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/comments/5/like/", gotPath)
}

func TestUnlike_PostsToUnlikeEndpoint(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.Unlike(context.Background(), "5"))

	assert.Equal(t, "/comments/5/unlike/", gotPath)
}
