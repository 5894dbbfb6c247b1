// Package auth verifies operator credentials for the admin API.
package auth

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterlist/internal/models"
	"github.com/woozymasta/masterlist/internal/storage"
)

const (
	cacheSize = 128
	cacheTTL  = 5 * time.Minute
)

// UserStore is the subset of the repository the authenticator needs.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
	SetPasswordHash(ctx context.Context, username, expected, hash string) (bool, error)
}

// Authenticator checks operator credentials against the users table.
type Authenticator struct {
	store UserStore
	cache *expirable.LRU[uint64, struct{}]
}

// New creates an Authenticator backed by store.
func New(store UserStore) *Authenticator {
	return &Authenticator{
		store: store,
		cache: expirable.NewLRU[uint64, struct{}](cacheSize, nil, cacheTTL),
	}
}

// Verify reports whether the credentials belong to an operator. An account that
// still holds the placeholder hash adopts the first password presented for it.
func (a *Authenticator) Verify(ctx context.Context, username, password string) bool {
	if username == "" || password == "" {
		return false
	}

	key := credentialKey(username, password)
	if _, ok := a.cache.Get(key); ok {
		return true
	}

	user, err := a.store.GetUser(ctx, username)
	if err != nil {
		log.Error().Err(err).Str("user", username).Msg("Failed to load operator")
		return false
	}
	if user == nil {
		log.Debug().Str("user", username).Msg("Unknown operator")
		return false
	}

	if user.PwHash == storage.PlaceholderHash {
		if !a.claim(ctx, username, password) {
			return false
		}
		a.cache.Add(key, struct{}{})
		return true
	}

	ok, err := VerifyPassword(password, user.PwHash)
	if err != nil {
		log.Error().Err(err).Str("user", username).Msg("Stored password hash is unusable")
		return false
	}
	if !ok {
		log.Debug().Str("user", username).Msg("Operator password mismatch")
		return false
	}

	a.cache.Add(key, struct{}{})
	return true
}

func (a *Authenticator) claim(ctx context.Context, username, password string) bool {
	hash, err := HashPassword(password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash operator password")
		return false
	}

	ok, err := a.store.SetPasswordHash(ctx, username, storage.PlaceholderHash, hash)
	if err != nil {
		log.Error().Err(err).Str("user", username).Msg("Failed to store operator password")
		return false
	}
	if !ok {
		// Another login claimed the account first.
		return false
	}

	log.Info().Str("user", username).Msg("Operator password set on first login")
	return true
}

func credentialKey(username, password string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(username)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(password)

	return d.Sum64()
}
