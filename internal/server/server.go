// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"net/http"

	"github.com/woozymasta/masterlist/internal/config"
	"github.com/woozymasta/masterlist/internal/policy"
	"github.com/woozymasta/masterlist/internal/validator"
)

const defaultBulkWorkers = 8

// New creates a new Server instance from the configuration and its dependencies.
func New(cfg *config.Config, deps Deps) *Server {
	v := deps.Validator
	if v == nil {
		v = validator.Noop{}
	}

	return &Server{
		registry:  deps.Registry,
		bans:      deps.Bans,
		eulas:     deps.EULAs,
		auth:      deps.Auth,
		validator: v,
		policy: policy.New(policy.Config{
			CheckName:          !cfg.Policy.SkipNameCheck,
			MinNameLength:      cfg.Policy.MinNameLength,
			MaxNameLength:      cfg.Policy.MaxNameLength,
			AllowedChars:       cfg.Policy.AllowedChars,
			AllowedChecksums:   cfg.Policy.AllowedChecksums,
			AllowedSDKVersions: cfg.Policy.AllowedSDKVersions,
		}),

		maxBody:         cfg.Server.MaxBodySize,
		trustProxy:      cfg.Server.TrustProxy,
		validateTimeout: cfg.Validation.ListenTimeout,
		hardLimitCount:  cfg.RateLimit.HardLimitCount,
		hardLimitWin:    cfg.RateLimit.HardLimitWin,
		bulkWorkers:     defaultBulkWorkers,

		shutdown: make(chan struct{}),
	}
}

// Stop signals background goroutines to exit and waits for them.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdown) })
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	limit := s.RateLimitMiddleware

	mux.Handle("POST /servers/add", limit(http.HandlerFunc(s.handleAddServer)))
	mux.Handle("POST /servers", limit(http.HandlerFunc(s.handleListServers)))
	mux.Handle("POST /servers/byToken", limit(http.HandlerFunc(s.handleServerByToken)))
	mux.Handle("POST /banlist/isBanned", limit(http.HandlerFunc(s.handleIsBanned)))
	mux.Handle("POST /banlist/bulkCheck", limit(http.HandlerFunc(s.handleBulkCheck)))
	mux.Handle("POST /eula", limit(http.HandlerFunc(s.handleEULA)))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))

	admin := func(h http.HandlerFunc) http.Handler {
		return limit(BasicAuthMiddleware(s.auth, h))
	}

	mux.Handle("GET /panel/version", admin(s.handlePanelVersion))
	mux.Handle("GET /panel/servers", admin(s.handlePanelServers))
	mux.Handle("GET /panel/server/{uid}", admin(s.handlePanelServer))
	mux.Handle("GET /panel/bans", admin(s.handlePanelBans))
	mux.Handle("POST /panel/ban", admin(s.handlePanelBan))
	mux.Handle("POST /panel/ban_search", admin(s.handlePanelBanSearch))
	mux.Handle("POST /panel/unban", admin(s.handlePanelUnban))
	mux.Handle("POST /panel/kick", admin(s.handlePanelKick))

	return s.LoggingMiddleware(mux)
}
