package registry

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterlist/internal/clock"
	"github.com/woozymasta/masterlist/internal/models"
)

// RequestScrub asks the background task to sweep on its next tick.
func (r *Registry) RequestScrub() {
	r.scrub.Store(true)
}

// Sweep removes every entry whose expiry is not in the future.
// Partitions are locked one after the other, never together.
func (r *Registry) Sweep() int {
	now, err := clock.UnixNow(r.clock)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep server list")
		return 0
	}

	removed := r.retainLive(&r.public, now) + r.retainLive(&r.hidden, now)

	r.scrub.Store(false)
	r.lastSweep.Store(now)

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Swept expired servers")
	}

	return removed
}

func (r *Registry) retainLive(p *partition, now int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.entries[:0]
	removed := 0
	for _, e := range p.entries {
		if e.Internal.Expiry > now {
			kept = append(kept, e)
			continue
		}
		r.release(e.Internal.UID, p.hidden)
		removed++
	}

	for i := len(kept); i < len(p.entries); i++ {
		p.entries[i] = models.Entry{}
	}
	p.entries = kept

	return removed
}

// Run ticks every sweep interval until ctx is done. It sweeps when a reader asked
// for it or when the maximum quiescence interval passed since the last sweep.
func (r *Registry) Run(ctx context.Context) {
	ticker := r.clock.Ticker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.sweepDue() {
				r.Sweep()
			}
		}
	}
}

func (r *Registry) sweepDue() bool {
	if r.scrub.Load() {
		return true
	}

	now, err := clock.UnixNow(r.clock)
	if err != nil {
		return false
	}

	return now-r.lastSweep.Load() >= int64(r.maxQuiescence.Seconds())
}
