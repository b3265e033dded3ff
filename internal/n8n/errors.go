package n8n

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNoToken short-circuits calls made without an access token.
	ErrNoToken = errors.New("access token required")
	// ErrNotFound matches *Error values carrying HTTP 404.
	ErrNotFound = errors.New("webhook not found")
	// ErrUnauthorized matches *Error values carrying HTTP 401 or 403.
	ErrUnauthorized = errors.New("webhook rejected credentials")
)

type Kind int

const (
	KindNetwork Kind = iota
	KindTimeout
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified webhook failure.
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, truncate(e.Body, 200))
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindStatus && e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.Kind == KindStatus && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
	}
	return false
}

func classifyTransport(op string, err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

func statusError(op string, code int, body string) *Error {
	return &Error{
		Op:         op,
		Kind:       KindStatus,
		StatusCode: code,
		Body:       body,
		Err:        fmt.Errorf("%s failed: HTTP %d", op, code),
	}
}

// IsTimeout reports whether err is a webhook deadline failure.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTimeout
}

// IsNetwork reports whether err is a transport failure other than a timeout.
func IsNetwork(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNetwork && !errors.Is(err, context.Canceled)
}

// IsRetryable reports whether a retry could plausibly succeed.
func IsRetryable(err error) bool {
	return IsTimeout(err) || IsNetwork(err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
