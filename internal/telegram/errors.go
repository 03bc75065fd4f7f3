package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-telegram/bot"
)

// ErrorKind is the closed set of platform failures the rest of the bot
// branches on.
type ErrorKind int

const (
	// KindGeneric is any failure not covered by a more specific kind.
	KindGeneric ErrorKind = iota
	// KindNotFound means the user or message addressed does not exist.
	KindNotFound
	// KindChatNotFound means the chat itself is unknown to the bot.
	KindChatNotFound
	// KindForbidden means the bot lacks access (blocked, kicked, no rights).
	KindForbidden
	// KindRateLimited means the platform asked us to back off.
	KindRateLimited
	// KindNetwork covers transport failures and timeouts.
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindChatNotFound:
		return "chat_not_found"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	default:
		return "generic"
	}
}

// Error is returned by every Client method.
type Error struct {
	Op         string
	Kind       ErrorKind
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindRateLimited {
		return fmt.Sprintf("telegram %s: %s (retry after %s): %v", e.Op, e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("telegram %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a Client error, or KindGeneric for anything else.
func KindOf(err error) ErrorKind {
	var tgErr *Error
	if errors.As(err, &tgErr) {
		return tgErr.Kind
	}
	return KindGeneric
}

// RetryAfterOf returns the back-off requested by a rate-limited error.
func RetryAfterOf(err error) time.Duration {
	var tgErr *Error
	if errors.As(err, &tgErr) {
		return tgErr.RetryAfter
	}
	return 0
}

var (
	notFoundDescriptions = []string{
		"user not found",
		"member not found",
		"participant_id_invalid",
		"message to edit not found",
		"message not found",
	}
	forbiddenDescriptions = []string{
		"member list is inaccessible",
		"not enough rights",
		"need administrator rights",
		"bot was kicked",
		"bot is not a member",
	}
)

// classify maps a go-telegram/bot error onto an ErrorKind. It is the only
// place that inspects platform error text.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	out := &Error{Op: op, Kind: KindGeneric, Err: err}

	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		out.Kind = KindRateLimited
		out.RetryAfter = time.Duration(tooMany.RetryAfter) * time.Second
		return out
	}

	desc := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, bot.ErrorForbidden):
		out.Kind = KindForbidden
	case strings.Contains(desc, "chat not found"):
		out.Kind = KindChatNotFound
	case errors.Is(err, bot.ErrorNotFound) || containsAny(desc, notFoundDescriptions):
		out.Kind = KindNotFound
	case errors.Is(err, bot.ErrorBadRequest) && containsAny(desc, forbiddenDescriptions):
		out.Kind = KindForbidden
	case isNetworkError(err):
		out.Kind = KindNetwork
	}
	return out
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
