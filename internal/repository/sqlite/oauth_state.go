package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/sakif/devpulse/internal/model"
)

// CreateState stores a pending OAuth state.
func (db *DB) CreateState(ctx context.Context, state *model.OAuthState) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO oauth_states (state, account_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		state.State,
		state.AccountID,
		state.CreatedAt.UnixMilli(),
		state.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting oauth state: %w", err)
	}
	return nil
}

// TakeState deletes the state row and returns what it held.
//
// DELETE ... RETURNING is a single statement, so two concurrent callers can
// never both receive the row: the loser sees sql.ErrNoRows.
func (db *DB) TakeState(ctx context.Context, state string) (mo.Option[*model.OAuthState], error) {
	var (
		s                    model.OAuthState
		createdAt, expiresAt int64
	)

	err := db.conn.QueryRowContext(ctx,
		`DELETE FROM oauth_states WHERE state = ?
		 RETURNING state, account_id, created_at, expires_at`,
		state,
	).Scan(&s.State, &s.AccountID, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*model.OAuthState](), nil
		}
		return mo.None[*model.OAuthState](), fmt.Errorf("sqlite: taking oauth state: %w", err)
	}

	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return mo.Some(&s), nil
}

// DeleteExpiredStates removes every state that expired before now.
func (db *DB) DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired oauth states: %w", err)
	}
	return res.RowsAffected()
}
