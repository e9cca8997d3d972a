package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// maxErrorBody caps how much of an error response is read for diagnostics.
const maxErrorBody = 4096

// statusToError maps a non-2xx response to the client error taxonomy:
// 401 is terminal auth loss (the gateway has already spent its one retry),
// 400 carries field-level validation errors, 404 is not-found, everything
// else a generic status error.
func statusToError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return model.ErrAuthExpired
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusBadRequest:
		if ve := parseValidationError(body); ve != nil {
			return ve
		}
	}
	return &model.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// parseValidationError decodes the server's field-error object, where each
// value is either a string or an array of strings. Returns nil when the body
// is not that shape.
func parseValidationError(body []byte) *model.ValidationError {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return nil
	}

	fields := make(map[string][]string, len(raw))
	for field, msg := range raw {
		var many []string
		if err := json.Unmarshal(msg, &many); err == nil {
			fields[field] = many
			continue
		}
		var one string
		if err := json.Unmarshal(msg, &one); err == nil {
			fields[field] = []string{one}
			continue
		}
		fields[field] = []string{string(msg)}
	}
	return &model.ValidationError{Fields: fields}
}

// decodeJSON consumes the response: on 2xx it decodes the body into v (which
// may be nil to discard); otherwise it maps the status to an error.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusToError(resp)
	}
	if v == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
