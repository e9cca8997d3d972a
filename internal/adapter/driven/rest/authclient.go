package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gleb165/commentsync/internal/domain/model"
	"github.com/gleb165/commentsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuthAPI = (*AuthClient)(nil)

// AuthClient implements the AuthAPI port. It deliberately bypasses the
// authenticated gateway: the refresh endpoint must never trigger a recursive
// pre-flight token check, and login/register/captcha are anonymous by nature.
type AuthClient struct {
	base   *url.URL
	client *http.Client
}

// NewAuthClient creates an AuthClient for the given API base URL.
func NewAuthClient(baseURL string) (*AuthClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return &AuthClient{
		base:   base,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// NewAuthClientWithHTTPClient creates an AuthClient over a caller-supplied
// http.Client. Intended for tests injecting an httptest server.
func NewAuthClientWithHTTPClient(client *http.Client, baseURL string) (*AuthClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return &AuthClient{base: base, client: client}, nil
}

// sessionDTO covers both the login response ({access, refresh, user}) and
// the register response ({token, refresh, user}).
type sessionDTO struct {
	Access  string          `json:"access"`
	Token   string          `json:"token"`
	Refresh string          `json:"refresh"`
	User    *model.Identity `json:"user"`
}

func (d sessionDTO) toSession() *model.Session {
	access := d.Access
	if access == "" {
		access = d.Token
	}
	return &model.Session{
		Credential: model.Credential{AccessToken: access, RefreshToken: d.Refresh},
		Identity:   d.User,
	}
}

// Login exchanges an email/password pair for a session.
func (a *AuthClient) Login(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]string{"email": email, "password": password}

	var dto sessionDTO
	if err := a.post(ctx, "/auth/login/", body, &dto); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return dto.toSession(), nil
}

// Register creates a new account, solving the captcha challenge.
func (a *AuthClient) Register(ctx context.Context, reg model.Registration) (*model.Session, error) {
	body := map[string]string{
		"username":      reg.Username,
		"email":         reg.Email,
		"password":      reg.Password,
		"first_name":    reg.FirstName,
		"last_name":     reg.LastName,
		"captcha_key":   reg.CaptchaKey,
		"captcha_value": reg.CaptchaValue,
	}

	var dto sessionDTO
	if err := a.post(ctx, "/auth/register/", body, &dto); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return dto.toSession(), nil
}

// Refresh exchanges the refresh token for a new access token. The returned
// credential's RefreshToken is empty unless the server rotated it.
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*model.Credential, error) {
	body := map[string]string{"refresh": refreshToken}

	var dto struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := a.post(ctx, "/auth/refresh/", body, &dto); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return &model.Credential{AccessToken: dto.Access, RefreshToken: dto.Refresh}, nil
}

// Captcha fetches a new captcha challenge.
func (a *AuthClient) Captcha(ctx context.Context) (*model.Captcha, error) {
	u := a.base.JoinPath("/captcha/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building captcha request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &model.ConnectivityError{Op: "GET /captcha/", Err: err}
	}

	var dto struct {
		Key      string `json:"key"`
		ImageURL string `json:"image_url"`
	}
	if err := decodeJSON(resp, &dto); err != nil {
		return nil, fmt.Errorf("captcha: %w", err)
	}
	return &model.Captcha{Key: dto.Key, ImageURL: dto.ImageURL}, nil
}

// post sends a JSON body and decodes the JSON response.
func (a *AuthClient) post(ctx context.Context, p string, body any, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding body: %w", err)
	}

	u := a.base.JoinPath(p)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &model.ConnectivityError{Op: "POST " + p, Err: err}
	}
	return decodeJSON(resp, v)
}
