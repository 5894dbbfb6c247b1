// Package maintenance provides one-shot database tasks run from the command line.
package maintenance

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterlist/internal/config"
	"github.com/woozymasta/masterlist/internal/models"
	"github.com/woozymasta/masterlist/internal/storage"
)

// Store is the part of the repository maintenance tasks use.
type Store interface {
	PruneExpiredBans(ctx context.Context, now time.Time) (int64, error)
	AddUser(ctx context.Context, username string) error
	LatestEULA(ctx context.Context, lang string) (*models.EULA, error)
	PutEULA(ctx context.Context, e models.EULA) error
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store Store) bool {
	ran := false

	if cfg.Storage.AddUser != "" {
		ran = true
		addUser(ctx, store, cfg.Storage.AddUser)
	}

	if cfg.Storage.PutEULA != "" {
		ran = true
		if err := putEULA(ctx, store, cfg.Storage.PutEULA, cfg.Storage.EULALang); err != nil {
			log.Error().Err(err).Str("file", cfg.Storage.PutEULA).Msg("Failed to store EULA")
		}
	}

	if cfg.Storage.PruneExpired {
		ran = true
		pruneExpired(ctx, store)
	}

	return ran
}

func addUser(ctx context.Context, store Store, username string) {
	logCtx := log.With().Str("user", username).Logger()

	err := store.AddUser(ctx, username)
	switch {
	case errors.Is(err, storage.ErrUserExists):
		logCtx.Warn().Msg("Operator already exists")
	case err != nil:
		logCtx.Error().Err(err).Msg("Failed to add operator")
	default:
		logCtx.Info().Msg("Operator added, the first login sets the password")
	}
}

func pruneExpired(ctx context.Context, store Store) {
	log.Info().Msg("Pruning expired bans...")

	count, err := store.PruneExpiredBans(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to prune bans")
		return
	}

	log.Info().Int64("deleted", count).Msg("Prune finished")
}

// putEULA stores the file contents as the version after the latest one for lang.
func putEULA(ctx context.Context, store Store, path, lang string) error {
	if lang == "" {
		lang = "english"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	contents := strings.TrimSpace(string(data))
	if contents == "" {
		return errors.New("EULA file is empty")
	}

	latest, err := store.LatestEULA(ctx, lang)
	if err != nil {
		return err
	}

	next := models.EULA{Lang: lang, Contents: contents, Version: 1}
	if latest != nil {
		next.Version = latest.Version + 1
	}

	if err := store.PutEULA(ctx, next); err != nil {
		return err
	}

	log.Info().Str("lang", lang).Int("version", next.Version).Msg("EULA stored")
	return nil
}
