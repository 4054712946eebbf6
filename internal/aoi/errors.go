package aoi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound matches any NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// NetworkError is a transport-level failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError is a non-2xx response attributable to the backend.
type BackendError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
}

// NotFoundError is a 404 for a specific resource.
type NotFoundError struct {
	Op       string
	Resource string
	ID       string
	Detail   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %q not found", e.Op, e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError is input rejected either locally before submission or by the backend.
// Local rejections carry Problems; backend rejections carry StatusCode and Detail.
type ValidationError struct {
	Op         string
	Problems   []FieldError
	StatusCode int
	Detail     string
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s %s", p.Field, p.Reason))
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: invalid input", e.Op)
	}
	return fmt.Sprintf("%s: invalid input: %s", e.Op, strings.Join(parts, "; "))
}

// Local reports whether the rejection happened before any network call.
func (e *ValidationError) Local() bool { return e.StatusCode == 0 }

// SchemaError is a response whose shape does not match the expected contract.
type SchemaError struct {
	Op  string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// problems accumulates FieldErrors and turns them into a *ValidationError.
type problems []FieldError

func (p *problems) add(field, reason string) {
	*p = append(*p, FieldError{Field: field, Reason: reason})
}

func (p problems) err(op string) error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Op: op, Problems: p}
}
