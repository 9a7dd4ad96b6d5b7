package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/samber/mo"

	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/model"
)

const accountColumns = `id, email, full_name, password_hash,
	github_id, github_username, github_avatar_url, github_access_token, github_linked_at,
	is_active, is_verified, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateAccount inserts a new account, generating its ID and timestamps.
//
// A UNIQUE violation on email becomes apperror.DuplicateEmail; on github_id it
// becomes apperror.GitHubAlreadyLinked. Both are how a lost race between two
// concurrent registrations surfaces.
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	var (
		githubID          sql.NullInt64
		githubUsername    sql.NullString
		githubAvatarURL   sql.NullString
		githubAccessToken sql.NullString
		githubLinkedAt    sql.NullTime
	)
	if gh := account.GitHub; gh != nil {
		githubID = sql.NullInt64{Int64: gh.ID, Valid: true}
		githubUsername = sql.NullString{String: gh.Username, Valid: true}
		githubAvatarURL = sql.NullString{String: gh.AvatarURL, Valid: true}
		githubAccessToken = sql.NullString{String: gh.AccessToken, Valid: true}
		githubLinkedAt = sql.NullTime{Time: gh.LinkedAt.UTC(), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.FullName,
		account.PasswordHash,
		githubID,
		githubUsername,
		githubAvatarURL,
		githubAccessToken,
		githubLinkedAt,
		account.IsActive,
		account.IsVerified,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err, "accounts.email"):
			return apperror.DuplicateEmail(account.Email)
		case isUniqueViolation(err, "accounts.github_id"):
			return apperror.GitHubAlreadyLinked("this GitHub account is already linked to another account")
		}
		return fmt.Errorf("sqlite: inserting account: %w", err)
	}

	return nil
}

// GetAccountByID retrieves an account by its internal ID.
// Returns apperror.ErrNotFound if no account exists with that ID.
func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}
	return account, nil
}

// FindAccountByEmail looks up an account by email (case-insensitive).
func (db *DB) FindAccountByEmail(ctx context.Context, email string) (mo.Option[*model.Account], error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*model.Account](), nil
		}
		return mo.None[*model.Account](), fmt.Errorf("sqlite: finding account by email: %w", err)
	}
	return mo.Some(account), nil
}

// FindAccountByGitHubID looks up the account linked to a GitHub user ID.
func (db *DB) FindAccountByGitHubID(ctx context.Context, githubID int64) (mo.Option[*model.Account], error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE github_id = ?`, githubID)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*model.Account](), nil
		}
		return mo.None[*model.Account](), fmt.Errorf("sqlite: finding account by github_id %d: %w", githubID, err)
	}
	return mo.Some(account), nil
}

// LinkGitHub writes the GitHub identity columns of an account.
func (db *DB) LinkGitHub(ctx context.Context, accountID string, identity model.GitHubIdentity) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE accounts
		 SET github_id = ?, github_username = ?, github_avatar_url = ?,
		     github_access_token = ?, github_linked_at = ?, updated_at = ?
		 WHERE id = ?`,
		identity.ID,
		identity.Username,
		identity.AvatarURL,
		identity.AccessToken,
		identity.LinkedAt.UTC(),
		time.Now().UTC(),
		accountID,
	)
	if err != nil {
		if isUniqueViolation(err, "accounts.github_id") {
			return apperror.GitHubAlreadyLinked("this GitHub account is already linked to another account")
		}
		return fmt.Errorf("sqlite: linking github to account %s: %w", accountID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("account", accountID)
	}
	return nil
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		a                 model.Account
		githubID          sql.NullInt64
		githubUsername    sql.NullString
		githubAvatarURL   sql.NullString
		githubAccessToken sql.NullString
		githubLinkedAt    sql.NullTime
	)

	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.FullName,
		&a.PasswordHash,
		&githubID,
		&githubUsername,
		&githubAvatarURL,
		&githubAccessToken,
		&githubLinkedAt,
		&a.IsActive,
		&a.IsVerified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if githubID.Valid {
		a.GitHub = &model.GitHubIdentity{
			ID:          githubID.Int64,
			Username:    githubUsername.String,
			AvatarURL:   githubAvatarURL.String,
			AccessToken: githubAccessToken.String,
			LinkedAt:    githubLinkedAt.Time,
		}
	}

	return &a, nil
}
