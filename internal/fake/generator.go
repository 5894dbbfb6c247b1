// Package fake provides utilities for generating random ban records for testing and development purposes.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// BanWriter stores ban rows.
type BanWriter interface {
	InsertBan(ctx context.Context, identifier, reason string, bannedOn time.Time, unbanDate *time.Time) (bool, error)
}

var reasons = []string{"", "Cheating", "Aimbot", "Griefing", "Toxic chat", "Ban evasion", "Exploiting"}

// GenerateBans inserts count randomized bans: numeric player ids and IPv4-mapped
// addresses, about a third of them temporary and some of those already expired.
// It returns the number of rows written.
func GenerateBans(ctx context.Context, store BanWriter, count int) int {
	written := 0

	for i := 0; i < count; i++ {
		var identifier string
		if rand.Float32() < 0.6 {
			identifier = fmt.Sprintf("%d", 1_000_000+rand.Int63n(1_000_000_000))
		} else {
			identifier = fmt.Sprintf("::ffff:%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255))
		}

		now := time.Now()
		bannedOn := now.Add(-time.Duration(rand.Intn(14*24)) * time.Hour)

		var unban *time.Time
		if rand.Float32() < 0.3 {
			// Between one week ago and three weeks ahead
			t := now.Add(time.Duration(rand.Intn(28*24)-7*24) * time.Hour)
			unban = &t
		}

		ok, err := store.InsertBan(ctx, identifier, reasons[rand.Intn(len(reasons))], bannedOn, unban)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake ban")
			continue
		}
		if ok {
			written++
		}
	}

	log.Info().Int("count", written).Msg("Fake bans generated")
	return written
}
