package database

import (
	"context"
	"fmt"
	"time"
)

// CounterVisitors counts requests to the public stats endpoint.
const CounterVisitors = "visitors"

// IncrementCounter adds one to the named counter, creating it at 1, and
// returns the new value.
func (s *sqlxStore) IncrementCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.GetContext(ctx, &value, `
        INSERT INTO counters (name, value, updated_at) VALUES (?, 1, ?)
        ON CONFLICT (name) DO UPDATE SET value = value + 1, updated_at = excluded.updated_at
        RETURNING value;
    `, name, time.Now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error incrementing counter", "name", name, "error", err)
		return 0, fmt.Errorf("failed to increment counter %q: %w", name, err)
	}
	return value, nil
}
