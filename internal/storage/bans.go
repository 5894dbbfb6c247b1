package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/woozymasta/masterlist/internal/models"
)

const banColumns = `id, identifier, reason, banned_on, unban_date`

// FindBans returns every ban row stored for any of the given identifiers.
func (r *Repository) FindBans(ctx context.Context, identifiers []string) ([]models.Ban, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(identifiers)), ",")
	args := make([]any, len(identifiers))
	for i, id := range identifiers {
		args[i] = id
	}

	query := `SELECT ` + banColumns + ` FROM bans WHERE identifier IN (` + placeholders + `) ORDER BY banned_on DESC`

	return r.queryBans(ctx, query, args...)
}

// InsertBan stores a ban issued at bannedOn. A nil unbanDate makes it permanent.
func (r *Repository) InsertBan(ctx context.Context, identifier, reason string, bannedOn time.Time, unbanDate *time.Time) (bool, error) {
	var unban sql.NullInt64
	if unbanDate != nil {
		unban = sql.NullInt64{Int64: unbanDate.Unix(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bans (identifier, reason, banned_on, unban_date) VALUES (?, ?, ?, ?)`,
		identifier, reason, bannedOn.Unix(), unban,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// DeleteBan removes the ban with the given row id and reports whether a row was deleted.
func (r *Repository) DeleteBan(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bans WHERE id = ?`, id)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// RecentBans lists the newest bans first.
func (r *Repository) RecentBans(ctx context.Context, limit int) ([]models.Ban, error) {
	return r.queryBans(ctx,
		`SELECT `+banColumns+` FROM bans ORDER BY banned_on DESC, id DESC LIMIT ?`, limit)
}

// SearchBans lists every ban for one identifier, newest first.
func (r *Repository) SearchBans(ctx context.Context, identifier string) ([]models.Ban, error) {
	return r.queryBans(ctx,
		`SELECT `+banColumns+` FROM bans WHERE identifier = ? ORDER BY banned_on DESC, id DESC`, identifier)
}

// PruneExpiredBans deletes temporary bans whose unban date is before now.
func (r *Repository) PruneExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bans WHERE unban_date IS NOT NULL AND unban_date != 0 AND unban_date < ?`, now.Unix())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r *Repository) queryBans(ctx context.Context, query string, args ...any) ([]models.Ban, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var bans []models.Ban
	for rows.Next() {
		var (
			b        models.Ban
			bannedOn int64
			unban    sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.Identifier, &b.Reason, &bannedOn, &unban); err != nil {
			return nil, err
		}

		b.BannedOn = time.Unix(bannedOn, 0).UTC()
		if unban.Valid {
			t := time.Unix(unban.Int64, 0).UTC()
			b.UnbanDate = &t
		}
		bans = append(bans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bans, nil
}
