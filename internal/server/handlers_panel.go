package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterlist/internal/bans"
	"github.com/woozymasta/masterlist/internal/models"
	"github.com/woozymasta/masterlist/internal/vars"
)

// handlePanelVersion returns full build information including repository and license.
func (s *Server) handlePanelVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// handlePanelServers lists both partitions including registry metadata.
func (s *Server) handlePanelServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.ServerList{
		Public: s.registry.PublicSnapshot(),
		Hidden: s.registry.HiddenSnapshot(),
	})
}

// handlePanelServer returns one entry with its players and pending kicks.
func (s *Server) handlePanelServer(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.registry.LookupByUID(r.PathValue("uid"))
	if !ok {
		writeError(w, http.StatusNotFound, "Server not found")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handlePanelBans lists the most recent bans. Query params: ?limit=50
func (s *Server) handlePanelBans(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	list, err := s.bans.MostRecentBans(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list bans")
		writeError(w, http.StatusInternalServerError, "Failed to list bans")
		return
	}

	writeBans(w, list)
}

// handlePanelBan bans an identifier, optionally until a unix timestamp.
func (s *Server) handlePanelBan(w http.ResponseWriter, r *http.Request) {
	var req models.BanRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "No identifier specified")
		return
	}

	err := s.bans.BanIdentifier(r.Context(), req.Identifier, req.Reason, req.UnbanTimestamp)
	switch {
	case err == nil:
		writeSuccess(w)
	case errors.Is(err, bans.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "Invalid Identifier")
	case errors.Is(err, bans.ErrUnbanInPast):
		writeError(w, http.StatusBadRequest, "Unban date is in the past")
	default:
		log.Error().Err(err).Str("identifier", req.Identifier).Msg("Failed to ban identifier")
		writeError(w, http.StatusInternalServerError, "Failed to ban identifier")
	}
}

// handlePanelBanSearch lists every ban stored for one identifier.
func (s *Server) handlePanelBanSearch(w http.ResponseWriter, r *http.Request) {
	var req models.BanSearchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	list, err := s.bans.SearchBan(r.Context(), req.Identifier)
	switch {
	case errors.Is(err, bans.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "Invalid Identifier")
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to search bans")
		writeError(w, http.StatusInternalServerError, "Failed to search bans")
		return
	}

	writeBans(w, list)
}

// handlePanelUnban deletes a ban row by id.
func (s *Server) handlePanelUnban(w http.ResponseWriter, r *http.Request) {
	var req models.UnbanRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	deleted, err := s.bans.Unban(r.Context(), req.Key)
	if err != nil {
		log.Error().Err(err).Int64("ban_id", req.Key).Msg("Failed to unban")
		writeError(w, http.StatusInternalServerError, "Failed to unban")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Ban not found")
		return
	}

	writeSuccess(w)
}

// handlePanelKick queues players to be kicked on the server's next bulk check.
func (s *Server) handlePanelKick(w http.ResponseWriter, r *http.Request) {
	var req models.KickRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if !s.registry.UpdateKickList(req.ServerUID, req.PlayerUIDs) {
		writeError(w, http.StatusNotFound, "Could not find server")
		return
	}

	log.Info().
		Str("uid", req.ServerUID).
		Int("players", len(req.PlayerUIDs)).
		Msg("Kick list updated")

	writeSuccess(w)
}

func writeBans(w http.ResponseWriter, list []models.Ban) {
	if list == nil {
		list = []models.Ban{}
	}

	writeJSON(w, http.StatusOK, list)
}
