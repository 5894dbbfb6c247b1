// Package bans decides whether a connecting player is banned and manages ban records.
package bans

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterlist/internal/clock"
	"github.com/woozymasta/masterlist/internal/models"
)

// Reason texts returned to game servers.
const (
	DefaultReason  = "You have been banned!"
	InternalReason = "An internal error occurred"
	KickedReason   = "Kicked from server"
)

var (
	// ErrUnbanInPast rejects bans that would already be expired when inserted.
	ErrUnbanInPast = errors.New("ban expiry date is in the past")

	// ErrInvalidIdentifier is returned for identifiers that are neither a numeric id nor an IP.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrNoStore is returned when no ban store is configured.
	ErrNoStore = errors.New("ban store unavailable")

	// ErrNotRecorded is returned when the store accepted an insert but changed nothing.
	ErrNotRecorded = errors.New("ban was not recorded")
)

// Store is the persistence behind the checker. Implementations must use parameterized queries.
type Store interface {
	FindBans(ctx context.Context, identifiers []string) ([]models.Ban, error)
	InsertBan(ctx context.Context, identifier, reason string, bannedOn time.Time, unbanDate *time.Time) (bool, error)
	DeleteBan(ctx context.Context, id int64) (bool, error)
	RecentBans(ctx context.Context, limit int) ([]models.Ban, error)
	SearchBans(ctx context.Context, identifier string) ([]models.Ban, error)
}

// Verdict is the outcome of a ban check.
type Verdict struct {
	Reason string
	Banned bool
}

// NotBanned is the verdict for players with no active ban.
var NotBanned = Verdict{}

// Banned builds a positive verdict, substituting the default text for an empty reason.
func Banned(reason string) Verdict {
	if reason == "" {
		reason = DefaultReason
	}

	return Verdict{Banned: true, Reason: reason}
}

// Checker applies ban policy on top of a Store.
type Checker struct {
	store      Store
	clock      clock.Clock
	failClosed bool
}

// New creates a Checker. failClosed makes storage errors count as banned.
func New(store Store, failClosed bool, c clock.Clock) *Checker {
	if c == nil {
		c = clock.New()
	}

	return &Checker{store: store, failClosed: failClosed, clock: c}
}

func (c *Checker) onFailure(err error) Verdict {
	log.Error().Err(err).Bool("fail_closed", c.failClosed).Msg("Ban lookup failed")

	if c.failClosed {
		return Banned(InternalReason)
	}

	return NotBanned
}

// Check looks up every ban row for the player's id and IP. The most recently
// issued row decides: it bans unless it carries an unban date that already passed.
func (c *Checker) Check(ctx context.Context, ids models.BanIdentifiers) Verdict {
	if ids.ID == nil && ids.IP == nil {
		log.Debug().Msg("No ip or id provided as an identifier")
		return NotBanned
	}

	keys := make([]string, 0, 2)
	if ids.ID != nil {
		keys = append(keys, strconv.FormatUint(*ids.ID, 10))
	}
	if ids.IP != nil {
		if ip, ok := normalizeIP(*ids.IP); ok {
			keys = append(keys, ip)
		} else {
			log.Debug().Str("ip", *ids.IP).Msg("Ignoring unparsable IP identifier")
		}
	}
	if len(keys) == 0 {
		return NotBanned
	}

	if c.store == nil {
		return c.onFailure(ErrNoStore)
	}

	rows, err := c.store.FindBans(ctx, keys)
	if err != nil {
		return c.onFailure(err)
	}

	if len(rows) == 0 {
		log.Trace().Strs("identifiers", keys).Msg("Identifier is not banned")
		return NotBanned
	}

	now := c.clock.Now()
	return decide(rows, now)
}

// decide sorts rows newest first and lets the newest issue date govern. Rows that
// share the newest date are all considered so a duplicate insert cannot hide a ban.
func decide(rows []models.Ban, now time.Time) Verdict {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].BannedOn.After(rows[j].BannedOn)
	})

	newest := rows[0].BannedOn
	for _, row := range rows {
		if !row.BannedOn.Equal(newest) {
			break
		}

		switch {
		case row.UnbanDate == nil || row.UnbanDate.Unix() == 0:
			log.Debug().
				Str("identifier", row.Identifier).
				Time("banned_on", row.BannedOn).
				Msg("Identifier has an active ban with no expiry")
			return Banned(row.Reason)

		case !row.UnbanDate.Before(now):
			log.Debug().
				Str("identifier", row.Identifier).
				Time("unban_date", *row.UnbanDate).
				Msg("Identifier has an active ban")
			return Banned(row.Reason)
		}
	}

	return NotBanned
}

// BanIdentifier stores a ban. unbanAt is a unix second; nil means permanent.
func (c *Checker) BanIdentifier(ctx context.Context, identifier, reason string, unbanAt *int64) error {
	id, ok := NormalizeIdentifier(identifier)
	if !ok {
		return ErrInvalidIdentifier
	}

	now := c.clock.Now()

	var unban *time.Time
	if unbanAt != nil {
		t := time.Unix(*unbanAt, 0).UTC()
		if !t.After(now) {
			log.Debug().Str("identifier", id).Msg("Rejecting ban request for ban expiry being in the past")
			return ErrUnbanInPast
		}
		unban = &t
	}

	if c.store == nil {
		return ErrNoStore
	}

	inserted, err := c.store.InsertBan(ctx, id, reason, now, unban)
	if err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	if !inserted {
		return ErrNotRecorded
	}

	log.Info().Str("identifier", id).Str("reason", reason).Msg("Identifier banned")
	return nil
}

// Unban deletes a ban row. It reports false without error when the row does not exist.
func (c *Checker) Unban(ctx context.Context, rowID int64) (bool, error) {
	if c.store == nil {
		return false, ErrNoStore
	}

	deleted, err := c.store.DeleteBan(ctx, rowID)
	if err != nil {
		return false, fmt.Errorf("delete ban %d: %w", rowID, err)
	}

	if deleted {
		log.Info().Int64("ban_id", rowID).Msg("Ban removed")
	}

	return deleted, nil
}

// MostRecentBans lists the newest bans, at most limit rows.
func (c *Checker) MostRecentBans(ctx context.Context, limit int) ([]models.Ban, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}

	switch {
	case limit <= 0:
		limit = 50
	case limit > 1000:
		limit = 1000
	}

	return c.store.RecentBans(ctx, limit)
}

// SearchBan lists all bans stored for one identifier.
func (c *Checker) SearchBan(ctx context.Context, identifier string) ([]models.Ban, error) {
	id, ok := NormalizeIdentifier(identifier)
	if !ok {
		return nil, ErrInvalidIdentifier
	}
	if c.store == nil {
		return nil, ErrNoStore
	}

	return c.store.SearchBans(ctx, id)
}

// NormalizeIdentifier turns a user supplied identifier into its stored form:
// numeric ids as decimal, IPs as IPv4-mapped IPv6.
func NormalizeIdentifier(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return strconv.FormatUint(n, 10), true
	}

	return normalizeIP(s)
}

func normalizeIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}

	return netip.AddrFrom16(addr.WithZone("").As16()).String(), true
}
