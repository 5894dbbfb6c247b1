package registry

import (
	"github.com/woozymasta/masterlist/internal/clock"
	"github.com/woozymasta/masterlist/internal/models"
)

// PublicSnapshot returns copies of all live public entries.
// Observing an expired entry requests a background sweep.
func (r *Registry) PublicSnapshot() []models.Entry {
	return r.snapshot(&r.public)
}

// HiddenSnapshot returns copies of all live hidden entries.
func (r *Registry) HiddenSnapshot() []models.Entry {
	return r.snapshot(&r.hidden)
}

func (r *Registry) snapshot(p *partition) []models.Entry {
	// A failed clock read disables filtering rather than hiding every server.
	now, err := clock.UnixNow(r.clock)
	if err != nil {
		now = 0
	}

	stale := false

	p.mu.RLock()
	out := make([]models.Entry, 0, len(p.entries))
	for i := range p.entries {
		if now != 0 && p.entries[i].Internal.Expiry < now {
			stale = true
			continue
		}
		out = append(out, p.entries[i].Clone())
	}
	p.mu.RUnlock()

	if stale {
		r.RequestScrub()
	}

	return out
}

// LookupByToken finds a live hidden entry by its access token.
func (r *Registry) LookupByToken(token string) (models.Entry, bool) {
	if token == "" {
		return models.Entry{}, false
	}

	now, err := clock.UnixNow(r.clock)
	if err != nil {
		now = 0
	}

	r.hidden.mu.RLock()
	defer r.hidden.mu.RUnlock()

	for i := range r.hidden.entries {
		e := &r.hidden.entries[i]
		if e.Internal.Token != token {
			continue
		}
		if now != 0 && e.Internal.Expiry < now {
			r.RequestScrub()
			return models.Entry{}, false
		}

		return e.Clone(), true
	}

	return models.Entry{}, false
}

// LookupByUID finds an entry by uid in either partition.
func (r *Registry) LookupByUID(id string) (models.Entry, bool) {
	var (
		out   models.Entry
		found bool
	)

	r.withEntry(id, false, func(e *models.Entry) {
		out = e.Clone()
		found = true
	})

	return out, found
}

// Exists reports whether a server with the given uid is registered.
func (r *Registry) Exists(id string) bool {
	_, ok := r.LookupByUID(id)
	return ok
}

// UpdateKickList replaces the pending kick list of the entry with the given uid.
func (r *Registry) UpdateKickList(id string, playerIDs []uint64) bool {
	kicks := make([]uint64, len(playerIDs))
	copy(kicks, playerIDs)

	return r.withEntry(id, true, func(e *models.Entry) {
		e.KickList = kicks
	})
}

// RecordPlayers replaces the connected player list of an entry and drains its
// pending kick list, returning the drained ids.
func (r *Registry) RecordPlayers(id string, players []models.Player) ([]uint64, bool) {
	list := make([]models.Player, len(players))
	copy(list, players)

	var kicked []uint64
	ok := r.withEntry(id, true, func(e *models.Entry) {
		e.Players = list
		kicked = e.KickList
		e.KickList = []uint64{}
	})

	return kicked, ok
}

// Len returns the number of physically present entries, expired or not.
func (r *Registry) Len() int {
	r.public.mu.RLock()
	n := len(r.public.entries)
	r.public.mu.RUnlock()

	r.hidden.mu.RLock()
	n += len(r.hidden.entries)
	r.hidden.mu.RUnlock()

	return n
}

// withEntry runs fn on the entry with the given uid under the owning partition's
// lock (exclusive if write is set). It returns false if no entry matches.
func (r *Registry) withEntry(id string, write bool, fn func(*models.Entry)) bool {
	if id == "" {
		return false
	}

	r.ownersMu.Lock()
	hidden, ok := r.owners[id]
	r.ownersMu.Unlock()
	if !ok {
		return false
	}

	p := r.partitionFor(hidden)
	if write {
		p.mu.Lock()
		defer p.mu.Unlock()
	} else {
		p.mu.RLock()
		defer p.mu.RUnlock()
	}

	for i := range p.entries {
		if p.entries[i].Internal.UID == id {
			fn(&p.entries[i])
			return true
		}
	}

	return false
}
