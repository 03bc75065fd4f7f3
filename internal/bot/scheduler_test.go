package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/reelbot/internal/bot/tasks"
	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/logger"
)

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"enabled":     {Enabled: true, Schedule: "0 0 4 * * *"},
		"disabled":    {Enabled: false, Schedule: "0 0 4 * * *"},
		"unscheduled": {Enabled: true},
		"unknown":     {Enabled: true, Schedule: "0 0 4 * * *"},
		"bad_cron":    {Enabled: true, Schedule: "not a cron"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"enabled":     noop,
		"disabled":    noop,
		"unscheduled": noop,
		"bad_cron":    noop,
	}

	s, err := NewScheduler(logger.Discard(), cfg, taskMap)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start is rejected")
	assert.Equal(t, []string{"enabled"}, s.Jobs())

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop(), "stopping twice is a no-op")
}

func TestSchedulerWithoutTasks(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Empty(t, s.Jobs())
	require.NoError(t, s.Stop())
}
