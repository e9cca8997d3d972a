// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	APIBaseURL       string
	WSURL            string
	ListenAddr       string
	DBPath           string
	PageSize         int
	FetchConcurrency int
	// EncryptionKey is the 32-byte AES-256 key for the credential cache,
	// or nil when sessions are stored in plaintext.
	EncryptionKey []byte
}

// Load reads configuration from environment variables and returns a validated
// Config. COMMENTSYNC_API_BASE_URL is required. COMMENTSYNC_WS_URL defaults to
// the base URL with the scheme switched to ws/wss. Optional variables with
// defaults: COMMENTSYNC_LISTEN_ADDR (127.0.0.1:8080), COMMENTSYNC_DB_PATH
// (commentsync.db), COMMENTSYNC_PAGE_SIZE (25), COMMENTSYNC_FETCH_CONCURRENCY
// (8). COMMENTSYNC_ENCRYPTION_KEY, when set, must be 64 hex chars (32 bytes).
func Load() (*Config, error) {
	baseURL := os.Getenv("COMMENTSYNC_API_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("COMMENTSYNC_API_BASE_URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("COMMENTSYNC_API_BASE_URL is not a valid URL %q: %w", baseURL, err)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	wsURL := os.Getenv("COMMENTSYNC_WS_URL")
	if wsURL == "" {
		derived, err := deriveWSURL(baseURL)
		if err != nil {
			return nil, err
		}
		wsURL = derived
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("COMMENTSYNC_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "commentsync.db"
	if v, ok := os.LookupEnv("COMMENTSYNC_DB_PATH"); ok {
		dbPath = v
	}

	pageSize := 25
	if v, ok := os.LookupEnv("COMMENTSYNC_PAGE_SIZE"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("COMMENTSYNC_PAGE_SIZE has invalid value %q", v)
		}
		pageSize = parsed
	}

	concurrency := 8
	if v, ok := os.LookupEnv("COMMENTSYNC_FETCH_CONCURRENCY"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("COMMENTSYNC_FETCH_CONCURRENCY has invalid value %q", v)
		}
		concurrency = parsed
	}

	var key []byte
	if v, ok := os.LookupEnv("COMMENTSYNC_ENCRYPTION_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("COMMENTSYNC_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("COMMENTSYNC_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		key = decoded
	}

	return &Config{
		APIBaseURL:       baseURL,
		WSURL:            wsURL,
		ListenAddr:       listenAddr,
		DBPath:           dbPath,
		PageSize:         pageSize,
		FetchConcurrency: concurrency,
		EncryptionKey:    key,
	}, nil
}

// deriveWSURL maps http -> ws and https -> wss on the API base URL.
func deriveWSURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("deriving websocket URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("cannot derive websocket URL from scheme %q, set COMMENTSYNC_WS_URL", u.Scheme)
	}
	return u.String(), nil
}
