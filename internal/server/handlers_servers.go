package server

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterlist/internal/models"
)

// handleAddServer registers or renews an announced server.
// The observed source IP replaces whatever address the payload carries.
func (s *Server) handleAddServer(w http.ResponseWriter, r *http.Request) {
	var announce models.Announce
	if !s.decodeJSON(w, r, &announce) {
		return
	}

	ip := GetRealIP(r, s.trustProxy)
	logCtx := log.With().
		Str("ip", ip).
		Str("uid", announce.UID).
		Str("name", announce.Server.Name).
		Uint16("port", announce.Server.Port).
		Logger()

	if err := s.policy.Check(announce.Server); err != nil {
		logCtx.Debug().Err(err).Msg("Server field validation error")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.reachable(r.Context(), ip, announce.Server) {
		writeError(w, http.StatusNotAcceptable,
			"Unable to communicate, please forward your ports and check if the server is publicly accessible")
		return
	}

	host, err := s.registry.AddOrRenew(announce, ip)
	if err != nil {
		logCtx.Error().Err(err).Msg("Failed to add server to server list")
		writeError(w, http.StatusInternalServerError, "Failed to add server to server list")
		return
	}

	writeJSON(w, http.StatusOK, models.Response{Success: true, Host: &host})
}

// reachable runs the connection validator. Validator errors count as unreachable.
func (s *Server) reachable(ctx context.Context, ip string, srv models.Server) bool {
	addr := net.JoinHostPort(ip, strconv.Itoa(int(srv.Port)))

	ok, err := s.validator.Validate(ctx, addr, srv.Key, s.validateTimeout)
	if err != nil {
		log.Debug().Err(err).Str("addr", addr).Msg("Connection validation unavailable")
		return false
	}

	return ok
}

// handleListServers returns every live public server.
func (s *Server) handleListServers(w http.ResponseWriter, _ *http.Request) {
	entries := s.registry.PublicSnapshot()

	servers := make([]models.Server, 0, len(entries))
	for i := range entries {
		servers = append(servers, entries[i].Server.Public())
	}

	writeJSON(w, http.StatusOK, models.Response{Success: true, Servers: &servers})
}

// handleServerByToken returns a hidden server addressed by its access token.
func (s *Server) handleServerByToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	entry, ok := s.registry.LookupByToken(req.Token)
	if !ok {
		writeError(w, http.StatusNotFound, "Server not found")
		return
	}

	srv := entry.Server.Public()
	writeJSON(w, http.StatusOK, models.Response{Success: true, Server: &srv})
}
