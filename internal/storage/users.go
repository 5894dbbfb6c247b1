package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/masterlist/internal/models"
)

// GetUser returns the operator with the given name, or nil if it does not exist.
func (r *Repository) GetUser(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT username, pw_hash FROM users WHERE username = ?`, username,
	).Scan(&u.Username, &u.PwHash)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// SetPasswordHash replaces the stored hash only if it still equals expected,
// so two concurrent first logins cannot both claim a placeholder account.
func (r *Repository) SetPasswordHash(ctx context.Context, username, expected, hash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET pw_hash = ? WHERE username = ? AND pw_hash = ?`, hash, username, expected)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// AddUser creates an operator account with a placeholder password.
func (r *Repository) AddUser(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, pw_hash, created_at) VALUES (?, ?, ?) ON CONFLICT(username) DO NOTHING`,
		username, PlaceholderHash, time.Now().Unix())
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserExists
	}

	return nil
}

// LatestEULA returns the highest version of the EULA for lang, or nil if none is stored.
func (r *Repository) LatestEULA(ctx context.Context, lang string) (*models.EULA, error) {
	var e models.EULA
	err := r.db.QueryRowContext(ctx,
		`SELECT lang, contents, version FROM eulas WHERE lang = ? ORDER BY version DESC LIMIT 1`, lang,
	).Scan(&e.Lang, &e.Contents, &e.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// PutEULA stores a new EULA version.
func (r *Repository) PutEULA(ctx context.Context, e models.EULA) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO eulas (lang, contents, version, created_at) VALUES (?, ?, ?, ?)`,
		e.Lang, e.Contents, e.Version, time.Now().Unix())
	return err
}
