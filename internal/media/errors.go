package media

import (
	"fmt"
	"strings"
	"time"
)

// FailureKind classifies why a fetch failed.
type FailureKind int

const (
	UnknownError FailureKind = iota
	PrivateContent
	ContentMissing
	LoginRequired
	ConnectionError
	RateLimited
	EmptyResult
)

func (k FailureKind) String() string {
	switch k {
	case PrivateContent:
		return "private_content"
	case ContentMissing:
		return "content_missing"
	case LoginRequired:
		return "login_required"
	case ConnectionError:
		return "connection_error"
	case RateLimited:
		return "rate_limited"
	case EmptyResult:
		return "empty_result"
	default:
		return "unknown_error"
	}
}

// Retryable reports whether a later attempt can succeed without the content
// itself changing.
func (k FailureKind) Retryable() bool {
	return k == RateLimited
}

// FetchError is the typed failure returned by Fetcher.Fetch.
type FetchError struct {
	Kind FailureKind
	// Detail is technical context for logs and the download record; it is
	// never shown to users.
	Detail     string
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

func fail(kind FailureKind, err error, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// kindFromMessage maps the error text of the resolution API to a kind.
func kindFromMessage(msg string) (FailureKind, bool) {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "private"):
		return PrivateContent, true
	case strings.Contains(m, "login") || strings.Contains(m, "log in") || strings.Contains(m, "sign in"):
		return LoginRequired, true
	case strings.Contains(m, "rate limit") || strings.Contains(m, "too many"):
		return RateLimited, true
	case strings.Contains(m, "not found") || strings.Contains(m, "deleted") ||
		strings.Contains(m, "unavailable") || strings.Contains(m, "does not exist"):
		return ContentMissing, true
	default:
		return UnknownError, false
	}
}
