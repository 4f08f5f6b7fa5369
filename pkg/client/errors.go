package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrCanceled is returned when the caller canceled a request before it settled.
// A canceled request never yields a result and must not update caller state.
var ErrCanceled = errors.New("request canceled")

// APIError is returned for any non-2xx response other than 422.
type APIError struct {
	Method string
	URL    string
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("api error (%d %s): %s %s", e.Status, http.StatusText(e.Status), e.Method, e.URL)
	}
	return fmt.Sprintf("api error (%d %s): %s %s: %s", e.Status, http.StatusText(e.Status), e.Method, e.URL, body)
}

// ValidationIssue is one entry of a 422 response's detail list.
type ValidationIssue struct {
	// Loc is the path to the failing field, e.g. ["body", "name"] or ["query", "agent"].
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// Field returns the last element of Loc, which names the failing field.
func (v ValidationIssue) Field() string {
	if len(v.Loc) == 0 {
		return ""
	}
	return fmt.Sprint(v.Loc[len(v.Loc)-1])
}

// Location renders Loc as a dotted path.
func (v ValidationIssue) Location() string {
	parts := make([]string, len(v.Loc))
	for i, p := range v.Loc {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ".")
}

// ValidationError is returned when the service responds 422.
type ValidationError struct {
	Method string
	URL    string
	Detail []ValidationIssue
	// Body is kept when the payload could not be decoded as a detail list.
	Body []byte
}

func (e *ValidationError) Error() string {
	if len(e.Detail) == 0 {
		return fmt.Sprintf("validation error: %s %s: %s", e.Method, e.URL, strings.TrimSpace(string(e.Body)))
	}
	msgs := make([]string, len(e.Detail))
	for i, d := range e.Detail {
		msgs[i] = d.Location() + ": " + d.Msg
	}
	return fmt.Sprintf("validation error: %s %s: %s", e.Method, e.URL, strings.Join(msgs, "; "))
}

// FieldErrors maps each failing field name to its message. When a field fails
// more than once the first message wins.
func (e *ValidationError) FieldErrors() map[string]string {
	out := make(map[string]string, len(e.Detail))
	for _, d := range e.Detail {
		f := d.Field()
		if _, ok := out[f]; !ok {
			out[f] = d.Msg
		}
	}
	return out
}

// AsValidation returns the ValidationError wrapped in err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		return api.Status
	}
	if _, ok := AsValidation(err); ok {
		return http.StatusUnprocessableEntity
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
