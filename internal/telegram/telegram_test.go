package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		want  ErrorKind
		retry time.Duration
	}{
		{"rate limited", &bot.TooManyRequestsError{Message: "Too Many Requests", RetryAfter: 7}, KindRateLimited, 7 * time.Second},
		{"chat not found", fmt.Errorf("%w, %s", bot.ErrorBadRequest, "Bad Request: chat not found"), KindChatNotFound, 0},
		{"user not found", fmt.Errorf("%w, %s", bot.ErrorBadRequest, "Bad Request: user not found"), KindNotFound, 0},
		{"forbidden", fmt.Errorf("%w, %s", bot.ErrorForbidden, "Forbidden: bot was blocked by the user"), KindForbidden, 0},
		{"member list inaccessible", fmt.Errorf("%w, %s", bot.ErrorBadRequest, "Bad Request: member list is inaccessible"), KindForbidden, 0},
		{"network", fmt.Errorf("error call api, %w", timeoutErr{}), KindNetwork, 0},
		{"deadline", context.DeadlineExceeded, KindNetwork, 0},
		{"other bad request", fmt.Errorf("%w, %s", bot.ErrorBadRequest, "Bad Request: file is too big"), KindGeneric, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := classify("op", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.Equal(t, tt.retry, RetryAfterOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classify("op", nil))
	assert.Equal(t, KindGeneric, KindOf(errors.New("plain")))
}

func TestChatRef(t *testing.T) {
	t.Parallel()

	ref, err := ChatRef("-1001234567890")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), ref)

	ref, err = ChatRef("@mychannel")
	require.NoError(t, err)
	assert.Equal(t, "@mychannel", ref)

	for _, bad := range []string{"", "@", "mychannel", "https://t.me/mychannel"} {
		_, err := ChatRef(bad)
		assert.Error(t, err, "channel %q", bad)
	}
}

func TestApplyMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	mw := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				calls = append(calls, name)
				next(ctx, b, u)
			}
		}
	}
	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) {
		calls = append(calls, "handler")
	}, []bot.Middleware{mw("outer"), mw("inner")})

	h(context.Background(), nil, &models.Update{})
	assert.Equal(t, []string{"outer", "inner", "handler"}, calls)
}

// newFakeAPI serves Bot API methods from responses keyed by method name.
func newFakeAPI(t *testing.T, responses map[string]string) Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		body, ok := responses[method]
		if !ok {
			body = `{"ok":false,"error_code":400,"description":"Bad Request: unexpected method"}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New("123456:TEST", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return NewClient(b)
}

func TestBotClientGetChatMember(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(t, map[string]string{
		"getChatMember": `{"ok":true,"result":{"status":"restricted","is_member":true,"user":{"id":5,"is_bot":false,"first_name":"A"}}}`,
	})
	m, err := client.GetChatMember(context.Background(), int64(-100), 5)
	require.NoError(t, err)
	assert.Equal(t, models.ChatMemberTypeRestricted, m.Status)
	assert.True(t, m.IsMember)
}

func TestBotClientErrors(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(t, map[string]string{
		"getChatMember": `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`,
		"sendMessage":   `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`,
	})

	_, err := client.GetChatMember(context.Background(), "@missing", 5)
	assert.Equal(t, KindChatNotFound, KindOf(err))

	_, err = client.SendMessage(context.Background(), 1, "hi", nil)
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, 3*time.Second, RetryAfterOf(err))

	err = client.SendMediaGroup(context.Background(), 1, []Upload{{Filename: "a.jpg", Data: strings.NewReader("x")}})
	assert.Error(t, err, "a single item is not a media group")
}
