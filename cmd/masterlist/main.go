// main is the entry point of the masterlist service.
// It initializes the configuration, logger, database, GeoIP provider, server registry and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterlist/internal/auth"
	"github.com/woozymasta/masterlist/internal/bans"
	"github.com/woozymasta/masterlist/internal/config"
	"github.com/woozymasta/masterlist/internal/fake"
	"github.com/woozymasta/masterlist/internal/geoip"
	"github.com/woozymasta/masterlist/internal/logger"
	"github.com/woozymasta/masterlist/internal/maintenance"
	"github.com/woozymasta/masterlist/internal/registry"
	"github.com/woozymasta/masterlist/internal/server"
	"github.com/woozymasta/masterlist/internal/storage"
	"github.com/woozymasta/masterlist/internal/validator"
)

func main() {
	cfg := config.Parse()

	closeLog := logger.Setup(cfg.Logger)
	defer closeLog()
	log.Info().Msg("Starting masterlist service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// TLS material is checked before anything else starts
	if cfg.TLSEnabled() {
		for _, path := range []string{cfg.Server.TLSCert, cfg.Server.TLSKey} {
			if _, err := os.Stat(path); err != nil {
				log.Fatal().Err(err).Str("path", path).Msg("TLS material is missing")
			}
		}
	}

	// Database
	store, err := storage.New(ctx, cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// data generation or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateBans(ctx, store, cfg.Storage.GenerateCount)
		return
	} else if maintenance.Run(ctx, cfg, store) {
		return
	}

	// GeoIP
	regOpts := []registry.Option{}
	if !cfg.GeoIP.Disable {
		if geoProvider := openGeoIP(ctx, cfg.GeoIP); geoProvider != nil {
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
			regOpts = append(regOpts, registry.WithRegion(geoProvider.Region))
		}
	}

	// Registry and its sweep task
	reg := registry.New(registry.Config{
		Timeout:       cfg.Registry.ServerTimeout,
		SweepInterval: cfg.Registry.SweepInterval,
		MaxQuiescence: cfg.Registry.MaxQuiescence,
	}, regOpts...)

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		reg.Run(ctx)
	}()

	connValidator, err := validator.New(validator.Options{
		Mode:       cfg.Validation.Mode,
		Retries:    cfg.Validation.RetryCount,
		BufferSize: cfg.Validation.BufferSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize connection validator")
	}

	srvHandler := server.New(cfg, server.Deps{
		Registry:  reg,
		Bans:      bans.New(store, !cfg.Bans.FailOpen, nil),
		EULAs:     store,
		Auth:      auth.New(store),
		Validator: connValidator,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srvHandler.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("address", cfg.Server.Address).
			Bool("tls", cfg.TLSEnabled()).
			Str("validation", cfg.Validation.Mode).
			Msg("Server listening")

		var err error
		if cfg.TLSEnabled() {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	stop()

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	srvHandler.Stop()
	<-sweepDone

	log.Info().Msg("Server exited")
}

// openGeoIP refreshes and opens the GeoIP database. It returns nil when region
// lookup is unavailable; the service runs without regions in that case.
func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	provider, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open GeoIP database, region detection disabled")
		return nil
	}

	return provider
}
