package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gleb165/commentsync/internal/application"
	"github.com/gleb165/commentsync/internal/domain/model"
)

var (
	errMultipart    = errors.New("invalid multipart form")
	errTextRequired = errors.New("text is required")
)

// maxUploadBytes bounds a multipart comment submission. The comment service
// enforces its own per-file limits; this only protects the local process.
const maxUploadBytes = 64 << 20

// Handler is the HTTP driving adapter that exposes feed and thread snapshots
// and accepts user intents over a local JSON API.
type Handler struct {
	feed    *application.FeedSynchronizer
	thread  *application.ThreadViewer
	session *application.SessionManager
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	feed *application.FeedSynchronizer,
	thread *application.ThreadViewer,
	session *application.SessionManager,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		feed:    feed,
		thread:  thread,
		session: session,
		logger:  logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/feed", h.GetFeed)
	mux.HandleFunc("POST /api/feed/sort", h.SetSort)
	mux.HandleFunc("POST /api/feed/page", h.SetPage)
	mux.HandleFunc("POST /api/feed/more", h.LoadMore)
	mux.HandleFunc("POST /api/feed/refresh", h.RefreshFeed)

	mux.HandleFunc("GET /api/thread/{id}", h.GetThread)
	mux.HandleFunc("POST /api/thread/open", h.OpenThread)
	mux.HandleFunc("POST /api/thread/close", h.CloseThread)

	mux.HandleFunc("POST /api/comments", h.PostComment)
	mux.HandleFunc("POST /api/comments/{id}/replies", h.PostReply)
	mux.HandleFunc("POST /api/comments/{id}/react", h.React)

	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/captcha", h.Captcha)
	mux.HandleFunc("GET /api/auth/session", h.GetSession)

	mux.HandleFunc("GET /healthz", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// GetFeed returns the current feed snapshot.
func (h *Handler) GetFeed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toFeedResponse(h.feed.Snapshot()))
}

// SetSort switches the feed ordering. The change is applied asynchronously;
// the returned snapshot reflects the loading transition once picked up.
func (h *Handler) SetSort(w http.ResponseWriter, r *http.Request) {
	var req SetSortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	field, ok := parseSortField(req.Field)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid sort field: expected created, username, or email")
		return
	}
	order, ok := parseSortOrder(req.Order)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid sort order: expected asc or desc")
		return
	}

	h.feed.SetSort(field, order)
	writeJSON(w, http.StatusAccepted, toFeedResponse(h.feed.Snapshot()))
}

// SetPage navigates the feed to the given page under the current sort.
func (h *Handler) SetPage(w http.ResponseWriter, r *http.Request) {
	var req SetPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Page < 1 {
		writeError(w, http.StatusBadRequest, "page must be at least 1")
		return
	}

	h.feed.SetPage(req.Page)
	writeJSON(w, http.StatusAccepted, toFeedResponse(h.feed.Snapshot()))
}

// LoadMore appends the next page to the feed accumulation.
func (h *Handler) LoadMore(w http.ResponseWriter, _ *http.Request) {
	h.feed.LoadMore()
	writeJSON(w, http.StatusAccepted, toFeedResponse(h.feed.Snapshot()))
}

// RefreshFeed refetches the visible feed page.
func (h *Handler) RefreshFeed(w http.ResponseWriter, _ *http.Request) {
	h.feed.Refresh()
	writeJSON(w, http.StatusAccepted, toFeedResponse(h.feed.Snapshot()))
}

// GetThread returns the open-thread snapshot. The thread must have been
// opened first; snapshots for other threads are not kept.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	snap := h.thread.Snapshot()
	if snap.State == application.ThreadIdle || snap.ID != id {
		writeError(w, http.StatusNotFound, "thread not open")
		return
	}

	writeJSON(w, http.StatusOK, toThreadResponse(snap))
}

// OpenThread makes the given thread the active one and starts loading it.
func (h *Handler) OpenThread(w http.ResponseWriter, r *http.Request) {
	var req OpenThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "thread id is required")
		return
	}

	// Background context: the load and push subscription must outlive this
	// request. They are canceled by the next Open or Close.
	h.thread.Open(context.Background(), req.ID)
	writeJSON(w, http.StatusAccepted, toThreadResponse(h.thread.Snapshot()))
}

// CloseThread closes the active thread and cancels its in-flight work.
func (h *Handler) CloseThread(w http.ResponseWriter, _ *http.Request) {
	h.thread.Close()
	w.WriteHeader(http.StatusNoContent)
}

// PostComment creates a new root comment. Accepts a JSON body, or a
// multipart form when the submission carries file attachments.
func (h *Handler) PostComment(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	created, err := h.feed.PostComment(r.Context(), draft)
	if err != nil {
		h.logger.Error("failed to post comment", "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(*created))
}

// PostReply creates a reply under the given comment.
func (h *Handler) PostReply(w http.ResponseWriter, r *http.Request) {
	parentID := r.PathValue("id")

	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	created, err := h.thread.PostReply(r.Context(), parentID, draft)
	if err != nil {
		h.logger.Error("failed to post reply", "parent", parentID, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(*created))
}

// React toggles a like on the given comment. The intent is routed to the
// open thread when the comment belongs to it, otherwise to the feed.
func (h *Handler) React(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ReactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var up bool
	switch req.Direction {
	case "like":
		up = true
	case "unlike":
		up = false
	default:
		writeError(w, http.StatusBadRequest, "invalid direction: expected like or unlike")
		return
	}

	snap := h.thread.Snapshot()
	inThread := snap.State == application.ThreadReady && snap.Root != nil && snap.Root.ContainsID(id)

	var err error
	if inThread {
		err = h.thread.React(r.Context(), id, up)
	} else {
		err = h.feed.React(r.Context(), id, up)
	}
	if err != nil {
		h.logger.Error("failed to react", "comment", id, "direction", req.Direction, "error", err)
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Login exchanges credentials for a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	identity, err := h.session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("login failed", "error", err)
		writeDomainError(w, err)
		return
	}

	resp := SessionResponse{Authenticated: true}
	if identity != nil {
		user := toIdentityResponse(*identity)
		resp.User = &user
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register creates a new account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := h.session.Register(r.Context(), model.Registration{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CaptchaKey:   req.CaptchaKey,
		CaptchaValue: req.CaptchaValue,
	})
	if err != nil {
		h.logger.Error("registration failed", "error", err)
		writeDomainError(w, err)
		return
	}

	resp := SessionResponse{Authenticated: true}
	if identity != nil {
		user := toIdentityResponse(*identity)
		resp.User = &user
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Logout clears the in-memory and persisted session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Captcha fetches a fresh captcha challenge from the comment service.
func (h *Handler) Captcha(w http.ResponseWriter, r *http.Request) {
	captcha, err := h.session.Captcha(r.Context())
	if err != nil {
		h.logger.Error("captcha fetch failed", "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CaptchaResponse{Key: captcha.Key, ImageURL: captcha.ImageURL})
}

// GetSession reports the current authentication state.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	resp := SessionResponse{}
	if identity := h.session.Identity(); identity != nil {
		user := toIdentityResponse(*identity)
		resp.Authenticated = true
		resp.User = &user
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeDraft reads a comment draft from either a JSON body or a multipart
// form with file attachments. Writes the error response itself on failure.
func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (model.CommentDraft, bool) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if contentType == "multipart/form-data" {
		draft, err := decodeMultipartDraft(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return model.CommentDraft{}, false
		}
		return draft, true
	}

	var req PostCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return model.CommentDraft{}, false
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return model.CommentDraft{}, false
	}
	return req.toDraft(), true
}

// decodeMultipartDraft reads form fields plus attached files from a
// multipart submission.
func decodeMultipartDraft(r *http.Request) (model.CommentDraft, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return model.CommentDraft{}, errMultipart
	}

	draft := model.CommentDraft{
		Text:         r.FormValue("text"),
		GuestName:    r.FormValue("guest_name"),
		GuestEmail:   r.FormValue("guest_email"),
		CaptchaKey:   r.FormValue("captcha_key"),
		CaptchaValue: r.FormValue("captcha_value"),
	}
	if strings.TrimSpace(draft.Text) == "" {
		return model.CommentDraft{}, errTextRequired
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			file, err := header.Open()
			if err != nil {
				return model.CommentDraft{}, errMultipart
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return model.CommentDraft{}, errMultipart
			}
			draft.Attachments = append(draft.Attachments, model.AttachmentUpload{
				FileName:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}

	return draft, nil
}

// parseSortField validates a sort field name from the request body.
func parseSortField(s string) (model.SortField, bool) {
	switch model.SortField(s) {
	case model.SortByCreated, model.SortByUsername, model.SortByEmail:
		return model.SortField(s), true
	}
	return "", false
}

// parseSortOrder validates a sort order from the request body.
func parseSortOrder(s string) (model.SortOrder, bool) {
	switch model.SortOrder(s) {
	case model.SortAscending, model.SortDescending:
		return model.SortOrder(s), true
	}
	return "", false
}
