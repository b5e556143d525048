package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches any StatusError carrying HTTP 401.
	ErrUnauthorized = errors.New("not authenticated")

	// ErrProtectedAdmin is returned before any request is made when a call
	// would deactivate or delete the built-in admin account.
	ErrProtectedAdmin = errors.New("the built-in admin account cannot be deactivated or deleted")
)

// StatusError is a non-2xx response. Detail is the server's own message and
// is meant to be shown to the user as-is.
type StatusError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Detail)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// NetworkError means no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// FormatError means a response arrived but was not the JSON we expected.
type FormatError struct {
	Op          string
	ContentType string
	Err         error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response (%s): %v", e.Op, e.ContentType, e.Err)
	}
	return fmt.Sprintf("%s: response is not JSON (%s)", e.Op, e.ContentType)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IsTransient reports failures where cached data is an acceptable substitute.
func IsTransient(err error) bool {
	var ne *NetworkError
	var fe *FormatError
	return errors.As(err, &ne) || errors.As(err, &fe)
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return se.Detail
	case errors.Is(err, ErrProtectedAdmin):
		return ErrProtectedAdmin.Error()
	case IsTransient(err):
		return "Failed to reach the server, please try again later"
	default:
		return err.Error()
	}
}

// parseDetail extracts the message from an error body. The server answers
// {"detail": "..."} for business errors and {"detail": [{"msg": ...}]} for
// validation failures.
func parseDetail(status int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 {
			var s string
			if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
				return s
			}
			var items []struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(payload.Detail, &items) == nil && len(items) > 0 {
				msgs := make([]string, 0, len(items))
				for _, it := range items {
					if it.Msg != "" {
						msgs = append(msgs, it.Msg)
					}
				}
				if len(msgs) > 0 {
					return strings.Join(msgs, "; ")
				}
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(status)
}
