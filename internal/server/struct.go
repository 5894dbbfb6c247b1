package server

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/masterlist/internal/bans"
	"github.com/woozymasta/masterlist/internal/models"
	"github.com/woozymasta/masterlist/internal/policy"
	"github.com/woozymasta/masterlist/internal/registry"
	"github.com/woozymasta/masterlist/internal/validator"
)

// EULAStore serves the latest end user license agreement.
type EULAStore interface {
	LatestEULA(ctx context.Context, lang string) (*models.EULA, error)
}

// Verifier checks operator credentials for the admin API.
type Verifier interface {
	Verify(ctx context.Context, username, password string) bool
}

// Deps bundles the components the HTTP layer dispatches to.
type Deps struct {
	Registry  *registry.Registry
	Bans      *bans.Checker
	EULAs     EULAStore
	Auth      Verifier
	Validator validator.Validator
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests.
type Server struct {
	// registry is the in-memory server list shared by all handlers.
	registry *registry.Registry

	// bans decides whether players are banned and manages ban records.
	bans *bans.Checker

	// eulas provides the license agreement served on /eula. It can be nil.
	eulas EULAStore

	// auth verifies Basic credentials on the admin API.
	auth Verifier

	// validator probes an announced server before it is listed.
	validator validator.Validator

	// policy rejects announces with out-of-policy fields before any probe.
	policy *policy.Policy

	// limiter holds the per-IP token buckets shared by all rate limited routes.
	limiter *ipLimiter

	// limiterOnce creates limiter and starts its cleanup goroutine on first use.
	limiterOnce sync.Once

	// shutdown is closed to stop background goroutines such as the rate limiter cleanup.
	shutdown chan struct{}

	// stopOnce guards shutdown against double close.
	stopOnce sync.Once

	// wg waits for background goroutines on Stop.
	wg sync.WaitGroup

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// validateTimeout bounds a single connection validation attempt.
	validateTimeout time.Duration

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// bulkWorkers caps concurrent ban lookups of a single bulk check.
	bulkWorkers int

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}
