package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/telegram"
	"github.com/edgard/reelbot/internal/telegram/telegramtest"
)

const (
	adminID = int64(1)
	userID  = int64(42)
)

func newTestOracle(t *testing.T, channel string) (*Oracle, *telegramtest.Fake) {
	t.Helper()
	fake := telegramtest.New()
	o := NewOracle(fake,
		config.TelegramConfig{ChannelID: channel, AdminUserIDs: []int64{adminID}},
		config.MembershipConfig{Timeout: time.Second, MaxRetryWait: 20 * time.Millisecond},
		nil)
	o.retryDelay = 0
	return o, fake
}

func rateLimited(after time.Duration) error {
	return &telegram.Error{Op: "getChatMember", Kind: telegram.KindRateLimited, RetryAfter: after, Err: errors.New("429")}
}

func TestStatusPasses(t *testing.T) {
	t.Parallel()

	passing := map[Status]bool{
		Member: true, AdminOverride: true, Unconfigured: true,
		NotMember: false, ConfigError: false, PlatformError: false,
	}
	for status, want := range passing {
		assert.Equal(t, want, status.Passes(), status.String())
	}
}

func TestCheckShortCircuits(t *testing.T) {
	t.Parallel()

	t.Run("unconfigured channel", func(t *testing.T) {
		t.Parallel()
		o, fake := newTestOracle(t, "")
		assert.Equal(t, Unconfigured, o.Check(context.Background(), userID))
		assert.Empty(t, fake.Calls())
	})

	t.Run("admin override", func(t *testing.T) {
		t.Parallel()
		o, fake := newTestOracle(t, "@chan")
		assert.Equal(t, AdminOverride, o.Check(context.Background(), adminID))
		assert.Empty(t, fake.Calls(telegramtest.OpGetChatMember))
	})

	t.Run("malformed channel alerts operators once", func(t *testing.T) {
		t.Parallel()
		o, fake := newTestOracle(t, "not a channel")
		assert.Equal(t, ConfigError, o.Check(context.Background(), userID))
		assert.Equal(t, ConfigError, o.Check(context.Background(), userID))
		assert.Empty(t, fake.Calls(telegramtest.OpGetChatMember))

		alerts := fake.Calls(telegramtest.OpSendMessage)
		require.Len(t, alerts, 1)
		assert.Equal(t, adminID, alerts[0].ChatID)
	})
}

func TestCheckRoles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   models.ChatMemberType
		isMember bool
		want     Status
	}{
		{"creator", models.ChatMemberTypeOwner, false, Member},
		{"administrator", models.ChatMemberTypeAdministrator, false, Member},
		{"member", models.ChatMemberTypeMember, false, Member},
		{"restricted member", models.ChatMemberTypeRestricted, true, Member},
		{"restricted non member", models.ChatMemberTypeRestricted, false, NotMember},
		{"left", models.ChatMemberTypeLeft, false, NotMember},
		{"kicked", models.ChatMemberTypeBanned, false, NotMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o, fake := newTestOracle(t, "-100123")
			fake.SetMember(userID, tt.status, tt.isMember)
			assert.Equal(t, tt.want, o.Check(context.Background(), userID))
			assert.Len(t, fake.Calls(telegramtest.OpGetChatMember), 1)
		})
	}
}

func TestCheckErrors(t *testing.T) {
	t.Parallel()

	t.Run("user not found is not a member", func(t *testing.T) {
		t.Parallel()
		o, _ := newTestOracle(t, "@chan")
		assert.Equal(t, NotMember, o.Check(context.Background(), userID))
	})

	t.Run("chat not found is a config error", func(t *testing.T) {
		t.Parallel()
		o, fake := newTestOracle(t, "@chan")
		fake.QueueError(telegramtest.OpGetChatMember,
			&telegram.Error{Kind: telegram.KindChatNotFound, Err: errors.New("chat not found")})
		assert.Equal(t, ConfigError, o.Check(context.Background(), userID))
		assert.Len(t, fake.Calls(telegramtest.OpGetChatMember), 1, "config errors are not retried")
		assert.Len(t, fake.Calls(telegramtest.OpSendMessage), 1)
	})

	t.Run("rate limit is retried once", func(t *testing.T) {
		t.Parallel()
		o, fake := newTestOracle(t, "@chan")
		fake.SetMember(userID, models.ChatMemberTypeMember, false)
		fake.QueueError(telegramtest.OpGetChatMember, rateLimited(time.Hour))

		start := time.Now()
		assert.Equal(t, Member, o.Check(context.Background(), userID))
		assert.Less(t, time.Since(start), time.Second, "retry wait is capped")
		assert.Len(t, fake.Calls(telegramtest.OpGetChatMember), 2)
	})

	t.Run("second rate limit is a platform error", func(t *testing.T) {
		t.Parallel()
		o, fake := newTestOracle(t, "@chan")
		fake.SetMember(userID, models.ChatMemberTypeMember, false)
		fake.QueueError(telegramtest.OpGetChatMember, rateLimited(time.Millisecond))
		fake.QueueError(telegramtest.OpGetChatMember, rateLimited(time.Millisecond))

		assert.Equal(t, PlatformError, o.Check(context.Background(), userID))
		assert.Len(t, fake.Calls(telegramtest.OpGetChatMember), 2)
	})

	t.Run("network error then success", func(t *testing.T) {
		t.Parallel()
		o, fake := newTestOracle(t, "@chan")
		fake.SetMember(userID, models.ChatMemberTypeLeft, false)
		fake.QueueError(telegramtest.OpGetChatMember,
			&telegram.Error{Kind: telegram.KindNetwork, Err: context.DeadlineExceeded})
		assert.Equal(t, NotMember, o.Check(context.Background(), userID))
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		t.Parallel()
		o, fake := newTestOracle(t, "@chan")
		fake.QueueError(telegramtest.OpGetChatMember, rateLimited(time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Equal(t, PlatformError, o.Check(ctx, userID))
		assert.Len(t, fake.Calls(telegramtest.OpGetChatMember), 1)
	})
}
