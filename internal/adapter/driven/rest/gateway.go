// Package rest implements the CommentAPI and AuthAPI ports against the
// comment service's REST endpoints, routed through an authenticated request
// gateway.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// csrfCookieName is the cookie the server sets for non-auth state mutation;
// its value is echoed back in the request header.
const (
	csrfCookieName = "csrftoken"
	csrfHeader     = "X-CSRFToken"
)

// TokenSource supplies a fresh access token before dispatch and resolves an
// authentication rejection after it.
type TokenSource interface {
	EnsureFreshAccess(ctx context.Context) (string, error)
	HandleUnauthorized(ctx context.Context, previousAccess string) (string, error)
}

// Request is a gateway request. The body is declarative (JSON value or
// multipart payload) rather than a reader so the gateway can re-materialize
// it for the single retry after a credential refresh.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	JSON      any
	Multipart *MultipartPayload
}

// MultipartPayload is a multipart form body: text fields plus file parts
// under the "files" field.
type MultipartPayload struct {
	Fields map[string]string
	Files  []model.AttachmentUpload
}

// Gateway wraps every outbound call to the comment service. Before dispatch
// it consults the token source and attaches the bearer header; on an
// authentication-rejected response it performs one refresh-and-retry. All
// other statuses pass through unmodified -- non-auth errors are the caller's
// responsibility.
type Gateway struct {
	base   *url.URL
	client *http.Client
	tokens TokenSource
}

// NewGateway creates a Gateway for the given API base URL. The transport
// stack is an in-memory ETag cache over the default transport, with a cookie
// jar so server-set CSRF cookies survive across calls.
func NewGateway(baseURL string, tokens TokenSource) (*Gateway, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Gateway{
		base: base,
		client: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Jar:       jar,
			Timeout:   30 * time.Second,
		},
		tokens: tokens,
	}, nil
}

// NewGatewayWithClient creates a Gateway over a caller-supplied http.Client.
// Intended for tests injecting an httptest server.
func NewGatewayWithClient(client *http.Client, baseURL string, tokens TokenSource) (*Gateway, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		client.Jar = jar
	}
	return &Gateway{base: base, client: client, tokens: tokens}, nil
}

// Do dispatches the request with a fresh credential attached. On a 401 it
// asks the token source to resolve the rejection and re-dispatches the
// identical request exactly once; if resolution fails, the original rejected
// response is returned to the caller with the session already cleared.
// Transport-level failures surface as ConnectivityError.
func (g *Gateway) Do(ctx context.Context, req *Request) (*http.Response, error) {
	var access string
	if g.tokens != nil {
		var err error
		access, err = g.tokens.EnsureFreshAccess(ctx)
		if err != nil {
			return nil, err
		}
	}

	resp, err := g.dispatch(ctx, req, access)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || g.tokens == nil {
		return resp, nil
	}

	renewed, err := g.tokens.HandleUnauthorized(ctx, access)
	if err != nil || renewed == "" || renewed == access {
		// Terminal: hand the original rejection back, no further retries.
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()

	return g.dispatch(ctx, req, renewed)
}

// dispatch materializes and sends the request once.
func (g *Gateway) dispatch(ctx context.Context, req *Request, access string) (*http.Response, error) {
	httpReq, err := g.build(ctx, req, access)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &model.ConnectivityError{
			Op:  req.Method + " " + req.Path,
			Err: err,
		}
	}
	return resp, nil
}

// build constructs a fresh http.Request, re-encoding the body each time so a
// retry never re-reads a consumed reader.
func (g *Gateway) build(ctx context.Context, req *Request, access string) (*http.Request, error) {
	u := g.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	contentType := "application/json"

	switch {
	case req.Multipart != nil:
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for field, value := range req.Multipart.Fields {
			if err := w.WriteField(field, value); err != nil {
				return nil, fmt.Errorf("writing multipart field %q: %w", field, err)
			}
		}
		for _, f := range req.Multipart.Files {
			part, err := w.CreateFormFile("files", f.FileName)
			if err != nil {
				return nil, fmt.Errorf("creating multipart file part: %w", err)
			}
			if _, err := part.Write(f.Data); err != nil {
				return nil, fmt.Errorf("writing multipart file %q: %w", f.FileName, err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("closing multipart body: %w", err)
		}
		body = buf
		contentType = w.FormDataContentType()
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	if access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		if token := g.csrfToken(); token != "" {
			httpReq.Header.Set(csrfHeader, token)
		}
	}

	return httpReq, nil
}

// csrfToken reads the server-set CSRF cookie from the jar.
func (g *Gateway) csrfToken() string {
	for _, c := range g.client.Jar.Cookies(g.base) {
		if c.Name == csrfCookieName {
			return c.Value
		}
	}
	return ""
}
