package n8n

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/replatform-mcp/internal/resilience"
)

// DefaultMaxQueryLength is the longest query accepted, in characters.
const DefaultMaxQueryLength = 10000

// Failure classes reported by the client. Use errors.Is to test for them.
var (
	ErrEmptyQuery        = errors.New("query is empty")
	ErrQueryTooLong      = errors.New("query too long")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrServer            = errors.New("server error")
	ErrHTTPStatus        = errors.New("unexpected http status")
	ErrNotJSON           = errors.New("response is not json")
	ErrMalformedResponse = errors.New("malformed response")
	ErrTimeout           = errors.New("request timed out")
	ErrNetwork           = errors.New("network error")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	Kind   error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Status)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// TooLongError reports a query over the length limit.
type TooLongError struct {
	Max int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("%s (max %d characters)", ErrQueryTooLong, e.Max)
}

func (e *TooLongError) Unwrap() error { return ErrQueryTooLong }

// TimeoutError reports a request that outlived the client timeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %s", ErrTimeout, e.After)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// ValidateQuery rejects blank queries and queries longer than maxLen
// characters. A non-positive maxLen uses DefaultMaxQueryLength.
func ValidateQuery(query string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxQueryLength
	}
	if isBlank(query) {
		return ErrEmptyQuery
	}
	if utf8.RuneCountInString(query) > maxLen {
		return &TooLongError{Max: maxLen}
	}
	return nil
}

// Describe turns a client error into the message shown to tool callers.
func Describe(err error) string {
	var tooLong *TooLongError
	var status *StatusError
	var timeout *TimeoutError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyQuery):
		return "Query cannot be empty"
	case errors.As(err, &tooLong):
		return fmt.Sprintf("Query too long (max %d characters)", tooLong.Max)
	case errors.Is(err, ErrUnauthorized):
		return "Authentication failed. Please check credentials."
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded. Please try again later."
	case errors.Is(err, ErrServer) && errors.As(err, &status):
		return fmt.Sprintf("Server error (%d). Please try again later.", status.Code)
	case errors.Is(err, ErrHTTPStatus) && errors.As(err, &status):
		return fmt.Sprintf("HTTP error %d: %s", status.Code, status.Status)
	case errors.Is(err, ErrNotJSON):
		return "Invalid response format. Expected JSON."
	case errors.Is(err, ErrMalformedResponse):
		return "Invalid JSON response structure"
	case errors.As(err, &timeout):
		return fmt.Sprintf("Request timeout after %d seconds", int(timeout.After.Seconds()))
	case errors.Is(err, ErrTimeout):
		return "Request timeout"
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your connection."
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "Service temporarily unavailable. Please try again later."
	default:
		return err.Error()
	}
}

// tripsBreaker reports whether err says the remote side is unhealthy.
// Caller mistakes and throttling do not count.
func tripsBreaker(err error) bool {
	return errors.Is(err, ErrServer) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork)
}
