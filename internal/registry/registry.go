// Package registry keeps the in-memory list of announced game servers.
//
// Entries live in one of two partitions, public or hidden, each guarded by its own
// read/write lock. No operation ever holds both partition locks at once. Entries
// expire on their own: a re-announce renews them, an add scan evicts expired
// neighbours and a background sweep removes whatever is left.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterlist/internal/clock"
	"github.com/woozymasta/masterlist/internal/models"
	"github.com/woozymasta/masterlist/internal/uid"
)

// ErrClock is returned when the current time cannot be read. No state is changed.
var ErrClock = clock.ErrUnavailable

// RegionFunc resolves a region label for a source IP. It is called outside any lock.
type RegionFunc func(ip string) string

// Config holds registry timing options.
type Config struct {
	// Timeout is how long an entry lives without a renewing announce.
	Timeout time.Duration

	// SweepInterval is the tick of the background sweep task.
	SweepInterval time.Duration

	// MaxQuiescence forces a sweep even if no reader asked for one.
	MaxQuiescence time.Duration
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithGenerator replaces the identifier generator.
func WithGenerator(g *uid.Generator) Option {
	return func(r *Registry) { r.uids = g }
}

// WithRegion sets the region resolver used for new and renewed entries.
func WithRegion(fn RegionFunc) Option {
	return func(r *Registry) { r.region = fn }
}

type partition struct {
	entries []models.Entry
	mu      sync.RWMutex
	hidden  bool
}

// Registry is the shared server list. Create it with New and pass it by pointer.
type Registry struct {
	clock  clock.Clock
	uids   *uid.Generator
	region RegionFunc

	public partition
	hidden partition

	// owners maps every live uid to the partition holding it (true = hidden).
	// It is only locked while at most one partition lock is held.
	owners   map[string]bool
	ownersMu sync.Mutex

	// scrub is set by readers that observed a stale entry.
	scrub atomic.Bool

	// lastSweep is the unix second of the last completed sweep.
	lastSweep atomic.Int64

	timeout       int64
	sweepInterval time.Duration
	maxQuiescence time.Duration
}

// New creates an empty registry.
func New(cfg Config, opts ...Option) *Registry {
	r := &Registry{
		clock:         clock.New(),
		uids:          uid.New(),
		owners:        make(map[string]bool),
		timeout:       int64(cfg.Timeout / time.Second),
		sweepInterval: cfg.SweepInterval,
		maxQuiescence: cfg.MaxQuiescence,
	}
	r.hidden.hidden = true

	for _, opt := range opts {
		opt(r)
	}

	if r.sweepInterval <= 0 {
		r.sweepInterval = 2 * time.Second
	}
	if r.maxQuiescence <= 0 {
		r.maxQuiescence = 30 * time.Minute
	}
	if now, err := clock.UnixNow(r.clock); err == nil {
		r.lastSweep.Store(now)
	}

	return r
}

func (r *Registry) partitionFor(hidden bool) *partition {
	if hidden {
		return &r.hidden
	}

	return &r.public
}

// AddOrRenew registers a new server or renews the entry whose uid matches the announce.
// sourceIP is the observed network origin and overrides any IP in the payload.
func (r *Registry) AddOrRenew(a models.Announce, sourceIP string) (models.HostInfo, error) {
	now, err := clock.UnixNow(r.clock)
	if err != nil {
		return models.HostInfo{}, fmt.Errorf("add server: %w", err)
	}

	srv := a.Server
	srv.IP = sourceIP
	expiry := now + r.timeout

	var region string
	if r.region != nil {
		region = r.region(sourceIP)
	}

	if a.UID != "" {
		r.leavePartition(a.UID, srv.Hidden)
	}

	p := r.partitionFor(srv.Hidden)
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []int
	for i := range p.entries {
		e := &p.entries[i]
		if a.UID != "" && e.Internal.UID == a.UID {
			e.Server = srv
			e.Internal.Expiry = expiry
			e.Internal.TimeStamp = a.TimeStamp
			if region != "" {
				e.Internal.Region = region
			}

			log.Trace().
				Str("uid", e.Internal.UID).
				Str("ip", srv.IP).
				Uint16("port", srv.Port).
				Msg("Server renewed")

			return hostInfo(e), nil
		}

		if e.Internal.Expiry < now {
			expired = append(expired, i)
		}
	}

	var token string
	if srv.Hidden {
		t, err := uuid.NewRandom()
		if err != nil {
			return models.HostInfo{}, fmt.Errorf("add server: token: %w", err)
		}
		token = t.String()
	}

	id, err := r.claimUID(a.UID, srv, p.hidden)
	if err != nil {
		return models.HostInfo{}, fmt.Errorf("add server: %w", err)
	}

	// Highest index first so swap-removal never moves a pending index.
	for i := len(expired) - 1; i >= 0; i-- {
		r.swapRemove(p, expired[i])
	}
	if len(expired) > 0 {
		log.Debug().
			Int("count", len(expired)).
			Bool("hidden", p.hidden).
			Msg("Evicted expired servers during add")
	}

	p.entries = append(p.entries, models.Entry{
		Server: srv,
		Internal: models.Internal{
			UID:       id,
			Region:    region,
			Token:     token,
			Expiry:    expiry,
			TimeStamp: a.TimeStamp,
		},
		Players:  []models.Player{},
		KickList: []uint64{},
	})

	e := &p.entries[len(p.entries)-1]
	log.Debug().
		Str("uid", id).
		Str("ip", srv.IP).
		Uint16("port", srv.Port).
		Bool("hidden", srv.Hidden).
		Msg("Server registered")

	return hostInfo(e), nil
}

// leavePartition removes the entry with the given uid from the partition opposite
// to hidden, so a server that flips visibility keeps its uid. Only the opposite
// partition is locked, and it is released before the caller locks its own.
func (r *Registry) leavePartition(id string, hidden bool) {
	r.ownersMu.Lock()
	owner, ok := r.owners[id]
	r.ownersMu.Unlock()
	if !ok || owner == hidden {
		return
	}

	other := r.partitionFor(owner)
	other.mu.Lock()
	defer other.mu.Unlock()

	for i := range other.entries {
		if other.entries[i].Internal.UID == id {
			r.swapRemove(other, i)
			log.Debug().
				Str("uid", id).
				Bool("hidden", hidden).
				Msg("Server moved between partitions")
			return
		}
	}
}

// claimUID records the uid of a new entry in the owner index. The caller supplied
// uid is kept unless it is empty or still owned by the other partition, in which
// case a fresh one is generated. Must be called with the partition write lock held.
func (r *Registry) claimUID(requested string, srv models.Server, hidden bool) (string, error) {
	if requested != "" {
		r.ownersMu.Lock()
		owner, taken := r.owners[requested]
		if !taken || owner == hidden {
			r.owners[requested] = hidden
			r.ownersMu.Unlock()
			return requested, nil
		}
		r.ownersMu.Unlock()
	}

	id, err := r.uids.New(srv.IP, srv.Port, srv.Key)
	if err != nil {
		return "", err
	}

	r.ownersMu.Lock()
	r.owners[id] = hidden
	r.ownersMu.Unlock()

	return id, nil
}

// swapRemove drops entry i by moving the last entry into its slot.
// Must be called with the partition write lock held.
func (r *Registry) swapRemove(p *partition, i int) {
	id := p.entries[i].Internal.UID
	last := len(p.entries) - 1
	p.entries[i] = p.entries[last]
	p.entries[last] = models.Entry{}
	p.entries = p.entries[:last]

	r.release(id, p.hidden)
}

// release removes uid from the owner index if the given partition still owns it.
func (r *Registry) release(id string, hidden bool) {
	r.ownersMu.Lock()
	if owner, ok := r.owners[id]; ok && owner == hidden {
		delete(r.owners, id)
	}
	r.ownersMu.Unlock()
}

func hostInfo(e *models.Entry) models.HostInfo {
	info := models.HostInfo{
		IP:   e.Server.IP,
		Port: e.Server.Port,
		UID:  e.Internal.UID,
	}
	if e.Internal.Token != "" {
		token := e.Internal.Token
		info.Token = &token
	}

	return info
}
