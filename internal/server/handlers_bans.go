package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterlist/internal/bans"
	"github.com/woozymasta/masterlist/internal/models"
	"github.com/woozymasta/masterlist/internal/vars"
	"golang.org/x/sync/errgroup"
)

const eulaLanguage = "english"

// handleIsBanned checks a single player for a listed server.
func (s *Server) handleIsBanned(w http.ResponseWriter, r *http.Request) {
	var ids models.BanIdentifiers
	if !s.decodeJSON(w, r, &ids) {
		return
	}

	if ids.UID == nil || !s.registry.Exists(*ids.UID) {
		writeError(w, http.StatusUnauthorized, "Unlisted Server")
		return
	}

	verdict := s.bans.Check(r.Context(), ids)

	resp := models.Response{Success: true, Banned: &verdict.Banned}
	if verdict.Banned {
		resp.Reason = &verdict.Reason
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBulkCheck records the connected players of a listed server, drains its
// pending kicks and reports every kicked or banned player.
func (s *Server) handleBulkCheck(w http.ResponseWriter, r *http.Request) {
	var req models.BulkCheckRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	players := make([]models.Player, len(req.Players))
	for i, p := range req.Players {
		players[i] = models.Player{IP: p.IP, UID: p.ID}
	}

	kicked, ok := s.registry.RecordPlayers(req.UID, players)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unlisted Server")
		return
	}

	out := make([]models.BanIdentifiers, 0, len(kicked))
	for _, id := range kicked {
		reason := bans.KickedReason
		out = append(out, models.BanIdentifiers{ID: &id, Reason: &reason})
	}

	verdicts := make([]bans.Verdict, len(req.Players))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.bulkWorkers)
	for i := range req.Players {
		g.Go(func() error {
			verdicts[i] = s.bans.Check(ctx, req.Players[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, v := range verdicts {
		if !v.Banned {
			continue
		}
		player := req.Players[i]
		reason := v.Reason
		player.Reason = &reason
		out = append(out, player)
	}

	if len(kicked) > 0 || len(out) > len(kicked) {
		log.Info().
			Str("uid", req.UID).
			Int("players", len(req.Players)).
			Int("kicked", len(kicked)).
			Int("banned", len(out)-len(kicked)).
			Msg("Bulk check reported players")
	}

	writeJSON(w, http.StatusOK, models.Response{Success: true, BannedPlayers: &out})
}

// handleEULA returns the latest English EULA, or an empty record when none is stored.
func (s *Server) handleEULA(w http.ResponseWriter, r *http.Request) {
	eula := models.EULA{}

	if s.eulas != nil {
		latest, err := s.eulas.LatestEULA(r.Context(), eulaLanguage)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load EULA")
		} else if latest != nil {
			eula = *latest
		}
	}

	writeJSON(w, http.StatusOK, models.Response{Success: true, Data: &eula})
}

// handleVersion returns build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Ver())
}
