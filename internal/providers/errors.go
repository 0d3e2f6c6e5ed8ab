package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a failed completion call.
type Kind int

const (
	KindUnknown Kind = iota
	RateLimited
	Timeout
	TransientServiceError
	InvalidRequest
	// Cancelled is assigned by callers when a call was never made or its
	// retries were abandoned because the run was cancelled.
	Cancelled
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	RateLimited:           "rate_limited",
	Timeout:               "timeout",
	TransientServiceError: "transient",
	InvalidRequest:        "invalid_request",
	Cancelled:             "cancelled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "ratelimited", "rate-limited":
		s = "rate_limited"
	case "transient_service_error", "transientserviceerror", "server_error":
		s = "transient"
	case "invalid", "invalidrequest":
		s = "invalid_request"
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown error kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Error is returned by every provider on a failed call.
type Error struct {
	Kind     Kind
	Provider string
	// Status is the HTTP status code, or 0 if no response was received.
	Status int
	// RetryAfter is the delay the server asked for, if any.
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(e.Provider)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.Status)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(truncate(e.Message, 300))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies any error returned from a Completer.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return KindUnknown
}

// RetryAfterOf returns the server-requested delay carried by err, or 0.
func RetryAfterOf(err error) time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// IsAuthError checks if an error is an authentication failure.
func IsAuthError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status == http.StatusUnauthorized || pe.Status == http.StatusForbidden
	}
	return false
}

// statusError maps a non-2xx response to an *Error.
func statusError(provider string, status int, header http.Header, body []byte) *Error {
	e := &Error{Provider: provider, Status: status, Message: strings.TrimSpace(string(body))}
	switch {
	case status == http.StatusTooManyRequests:
		e.Kind = RateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = Timeout
	case status >= 500:
		e.Kind = TransientServiceError
	default:
		e.Kind = InvalidRequest
	}
	if header != nil {
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
	}
	if e.RetryAfter == 0 {
		e.RetryAfter = retryAfterFromMessage(e.Message)
	}
	return e
}

// transportError maps a failure to get any response at all.
func transportError(provider string, err error) *Error {
	kind := TransientServiceError
	switch KindOf(err) {
	case Timeout:
		kind = Timeout
	case Cancelled:
		kind = Cancelled
	}
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// malformed reports a 2xx response that could not be used.
func malformed(provider, message string, err error) *Error {
	return &Error{Kind: TransientServiceError, Provider: provider, Message: message, Err: err}
}

func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

var retryAfterPattern = regexp.MustCompile(`(?i)(?:please )?retry after (\d+)`)

// retryAfterFromMessage extracts "Please retry after N seconds" style hints
// that some services put in the error body instead of a header.
func retryAfterFromMessage(msg string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// rateLimitInContent detects a rate-limit notice returned as the completion
// text of a successful response.
func rateLimitInContent(provider, content string) *Error {
	if !strings.Contains(strings.ToLower(content), "exceeded token rate limit") {
		return nil
	}
	return &Error{
		Kind:       RateLimited,
		Provider:   provider,
		Message:    content,
		RetryAfter: retryAfterFromMessage(content),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
