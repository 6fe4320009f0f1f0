package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jamesainslie/drive/pkg/drive/types"
)

// APIError is a non-2xx response. Message is the server's own text.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
}

// ServerMessage returns the message as the server sent it.
func (e *APIError) ServerMessage() string {
	return e.Message
}

// Unwrap maps well-known statuses onto the shared error kinds.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusUnauthorized:
		return types.ErrUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return types.ErrValidation
	default:
		return nil
	}
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// errorEnvelope is {"error": {"message": ..., "statusCode": ...}}.
// Some endpoints answer with a bare string in "error", or a top-level "message".
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type errorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil {
		var body errorBody
		var text string
		switch {
		case json.Unmarshal(env.Error, &body) == nil && body.Message != "":
			apiErr.Message = body.Message
			if body.StatusCode != 0 {
				apiErr.StatusCode = body.StatusCode
			}
		case json.Unmarshal(env.Error, &text) == nil && text != "":
			apiErr.Message = text
		case env.Message != "":
			apiErr.Message = env.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
