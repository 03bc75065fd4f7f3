package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, telegram_user_id, first_name, last_name, username, joined_at, last_active_at,
        is_subscribed, is_banned, ban_reason, download_count, last_download_at`

func getUserTx(ctx context.Context, q sqlx.QueryerContext, telegramUserID int64) (*User, error) {
	var user User
	err := sqlx.GetContext(ctx, q, &user,
		`SELECT `+userColumns+` FROM users WHERE telegram_user_id = ?;`, telegramUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", telegramUserID, err)
	}
	return &user, nil
}

// EnsureUser creates or refreshes the user in a single transaction.
func (s *sqlxStore) EnsureUser(ctx context.Context, p Profile) (*User, bool, error) {
	if p.TelegramUserID == 0 {
		return nil, false, errors.New("profile must have a non-zero telegram_user_id")
	}

	var (
		user    *User
		created bool
	)
	err := s.inTx(ctx, "ensure user", func(tx *sqlx.Tx) error {
		now := time.Now().UTC()

		existing, err := getUserTx(ctx, tx, p.TelegramUserID)
		switch {
		case errors.Is(err, ErrUserNotFound):
			_, err = tx.ExecContext(ctx, `
                INSERT INTO users (telegram_user_id, first_name, last_name, username, joined_at, last_active_at)
                VALUES (?, ?, ?, ?, ?, ?);
            `, p.TelegramUserID, p.FirstName, p.LastName, p.Username, now, now)
			if err != nil {
				return fmt.Errorf("failed to create user %d: %w", p.TelegramUserID, err)
			}
			created = true
		case err != nil:
			return err
		default:
			_, err = tx.ExecContext(ctx, `
                UPDATE users SET first_name = ?, last_name = ?, username = ?, last_active_at = ?
                WHERE id = ?;
            `, p.FirstName, p.LastName, p.Username, now, existing.ID)
			if err != nil {
				return fmt.Errorf("failed to refresh user %d: %w", p.TelegramUserID, err)
			}
		}

		user, err = getUserTx(ctx, tx, p.TelegramUserID)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error ensuring user", "telegram_user_id", p.TelegramUserID, "error", err)
		return nil, false, err
	}

	if created {
		s.logger.InfoContext(ctx, "New user registered", "telegram_user_id", p.TelegramUserID, "username", p.Username)
	}
	return user, created, nil
}

// GetUserByTelegramID returns the user or ErrUserNotFound.
func (s *sqlxStore) GetUserByTelegramID(ctx context.Context, telegramUserID int64) (*User, error) {
	return getUserTx(ctx, s.db, telegramUserID)
}

// UpdateUser runs mutate against the current row and persists the result.
func (s *sqlxStore) UpdateUser(ctx context.Context, telegramUserID int64, mutate func(u *User) bool) (*User, error) {
	var user *User
	err := s.inTx(ctx, "update user", func(tx *sqlx.Tx) error {
		var err error
		user, err = getUserTx(ctx, tx, telegramUserID)
		if err != nil {
			return err
		}
		if !mutate(user) {
			return nil
		}
		_, err = tx.NamedExecContext(ctx, `
            UPDATE users SET is_subscribed = :is_subscribed, is_banned = :is_banned, ban_reason = :ban_reason
            WHERE id = :id;
        `, user)
		if err != nil {
			return fmt.Errorf("failed to update user %d: %w", telegramUserID, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "Error updating user", "telegram_user_id", telegramUserID, "error", err)
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns a page of users, newest first.
func (s *sqlxStore) ListUsers(ctx context.Context, offset, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 20
	} else if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	users := []User{}
	err := s.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY joined_at DESC, id DESC LIMIT ? OFFSET ?;`, limit, offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing users", "offset", offset, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListRecipientIDs returns the Telegram ids of all users that are not banned.
func (s *sqlxStore) ListRecipientIDs(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT telegram_user_id FROM users WHERE is_banned = 0 ORDER BY id;`); err != nil {
		s.logger.ErrorContext(ctx, "Error listing broadcast recipients", "error", err)
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return ids, nil
}
