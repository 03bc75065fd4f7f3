package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgard/reelbot/internal/pipeline"
)

// staleAfter is how old a download directory must be before the sweep removes
// it. Live runs never last this long because of the handler timeout.
const staleAfter = time.Hour

// newTempSweepTask removes download directories left behind by runs that
// never reached their cleanup, e.g. after a crash.
func newTempSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", TempSweep)

	return func(ctx context.Context) error {
		root := deps.Config.Media.TempDir
		if root == "" {
			root = os.TempDir()
		}

		maxAge := staleAfter
		if ht := deps.Config.Bot.HandlerTimeout; 2*ht > maxAge {
			maxAge = 2 * ht
		}

		removed, err := sweepTempDirs(ctx, root, time.Now().Add(-maxAge))
		if err != nil {
			log.ErrorContext(ctx, "Temp sweep failed", "dir", root, "removed", removed, "error", err)
			return fmt.Errorf("temp sweep: %w", err)
		}
		if removed > 0 {
			log.InfoContext(ctx, "Removed stale download directories", "dir", root, "removed", removed)
		} else {
			log.DebugContext(ctx, "No stale download directories", "dir", root)
		}
		return nil
	}
}

// sweepTempDirs deletes pipeline directories under root modified before cutoff.
func sweepTempDirs(ctx context.Context, root string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	var (
		removed int
		errs    []error
	)
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !e.IsDir() || !strings.HasPrefix(e.Name(), pipeline.TempDirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
