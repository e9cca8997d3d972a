package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gleb165/commentsync/internal/domain/model"
	"github.com/gleb165/commentsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialCache = (*SessionRepo)(nil)

// Session row keys.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyIdentity     = "identity"
)

// SessionRepo is the SQLite implementation of the CredentialCache port.
// The whole session is replaced in one transaction so a reader can never
// observe a half-updated credential pair, even across a crash. Values are
// encrypted with AES-256-GCM when a key is configured.
type SessionRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil stores values in plaintext.
}

// NewSessionRepo creates a SessionRepo. key must be 32 bytes for AES-256-GCM,
// or nil to store values unencrypted.
func NewSessionRepo(db *DB, key []byte) *SessionRepo {
	return &SessionRepo{db: db, key: key}
}

// SaveSession replaces the persisted session atomically.
func (r *SessionRepo) SaveSession(ctx context.Context, session model.Session) error {
	rows := map[string]string{
		keyAccessToken:  session.Credential.AccessToken,
		keyRefreshToken: session.Credential.RefreshToken,
	}
	if session.Identity != nil {
		data, err := json.Marshal(session.Identity)
		if err != nil {
			return fmt.Errorf("encode identity: %w", err)
		}
		rows[keyIdentity] = string(data)
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear previous session: %w", err)
	}

	const insert = `INSERT INTO session (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	for key, value := range rows {
		stored, err := r.encrypt(value)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, key, stored); err != nil {
			return fmt.Errorf("save session key %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session save: %w", err)
	}
	return nil
}

// LoadSession returns the persisted session, or nil when none is stored.
func (r *SessionRepo) LoadSession(ctx context.Context) (*model.Session, error) {
	const query = `SELECT key, value FROM session`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 3)
	for rows.Next() {
		var key, stored string
		if err := rows.Scan(&key, &stored); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		plain, err := r.decrypt(stored)
		if err != nil {
			return nil, fmt.Errorf("decrypt session key %q: %w", key, err)
		}
		values[key] = plain
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	session := &model.Session{
		Credential: model.Credential{
			AccessToken:  values[keyAccessToken],
			RefreshToken: values[keyRefreshToken],
		},
	}
	if raw, ok := values[keyIdentity]; ok && raw != "" {
		var identity model.Identity
		if err := json.Unmarshal([]byte(raw), &identity); err != nil {
			return nil, fmt.Errorf("decode identity: %w", err)
		}
		session.Identity = &identity
	}
	return session, nil
}

// ClearSession removes all persisted session state.
func (r *SessionRepo) ClearSession(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext with AES-256-GCM and returns base64 of
// nonce || ciphertext || tag. Pass-through when no key is configured.
func (r *SessionRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return plaintext, nil
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt reverses encrypt. Pass-through when no key is configured.
func (r *SessionRepo) decrypt(stored string) (string, error) {
	if r.key == nil {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
