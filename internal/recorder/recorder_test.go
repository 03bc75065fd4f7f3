package recorder_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/recorder"
)

func TestRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := database.NewDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil)

	_, _, err = store.EnsureUser(ctx, database.Profile{TelegramUserID: 3})
	require.NoError(t, err)

	rec := recorder.New(store, time.Second, nil)
	rec.Record(ctx, 3, "https://instagram.com/p/A/", "photo", true, "ignored on success")
	rec.Record(ctx, 3, "https://instagram.com/p/B/", "", false, strings.Repeat("x", 2000))

	// cancelled contexts still produce a record
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	rec.Record(cancelled, 3, "https://instagram.com/p/C/", "", false, "private_content")

	// unknown users are logged, not surfaced
	rec.Record(ctx, 999, "https://instagram.com/p/D/", "", false, "")

	downloads, err := store.ListUserDownloads(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, downloads, 3)

	byURL := map[string]database.Download{}
	for _, d := range downloads {
		byURL[d.ContentURL] = d
	}
	assert.Equal(t, database.StatusSuccess, byURL["https://instagram.com/p/A/"].Status)
	assert.Empty(t, byURL["https://instagram.com/p/A/"].ErrorMessage)
	assert.Len(t, byURL["https://instagram.com/p/B/"].ErrorMessage, 500)
	assert.Equal(t, database.StatusFailed, byURL["https://instagram.com/p/C/"].Status)

	user, err := store.GetUserByTelegramID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.DownloadCount)
}
