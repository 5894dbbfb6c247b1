package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/masterlist/internal/auth"
	"github.com/woozymasta/masterlist/internal/bans"
	"github.com/woozymasta/masterlist/internal/clock"
	"github.com/woozymasta/masterlist/internal/config"
	"github.com/woozymasta/masterlist/internal/models"
	"github.com/woozymasta/masterlist/internal/registry"
	"github.com/woozymasta/masterlist/internal/storage"
	"github.com/woozymasta/masterlist/internal/vars"
)

const (
	clientIP = "192.0.2.10"
	operator = "admin"
	password = "correct horse"
)

type stubValidator struct{ ok bool }

func (v stubValidator) Validate(context.Context, string, string, time.Duration) (bool, error) {
	return v.ok, nil
}

type harness struct {
	srv     *Server
	handler http.Handler
	reg     *registry.Registry
	clock   *clock.Mock
}

func newHarness(t *testing.T, mutate func(*config.Config, *Deps)) *harness {
	t.Helper()

	cfg, err := config.ParseArgs([]string{"--rate-limit-hard-count", "1000"})
	require.NoError(t, err)

	repo, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.AddUser(context.Background(), operator))

	mock := clock.NewMock(1_700_000_000)
	reg := registry.New(registry.Config{Timeout: cfg.Registry.ServerTimeout}, registry.WithClock(mock))

	deps := Deps{
		Registry:  reg,
		Bans:      bans.New(repo, true, nil),
		EULAs:     repo,
		Auth:      auth.New(repo),
		Validator: stubValidator{ok: true},
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	s := New(cfg, deps)
	t.Cleanup(s.Stop)

	return &harness{srv: s, handler: s.Run(), reg: reg, clock: mock}
}

func (h *harness) do(t *testing.T, method, path string, body any, admin bool) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = clientIP + ":40000"
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.SetBasicAuth(operator, password)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)

	return rec, out
}

func announce(uid, name string, hidden bool) map[string]any {
	return map[string]any{
		"uid":       uid,
		"timeStamp": 1,
		"server": map[string]any{
			"name":        name,
			"map":         "mp_box",
			"playlist":    "tdm",
			"maxPlayers":  "16",
			"playerCount": "3",
			"ip":          "203.0.113.99",
			"port":        37015,
			"key":         "pubkey",
			"checksum":    "123",
			"version":     "v1",
			"hidden":      hidden,
		},
	}
}

func TestAddAndListServers(t *testing.T) {
	h := newHarness(t, nil)

	rec, body := h.do(t, http.MethodPost, "/servers/add", announce("srv1", "My Server", false), false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])

	host := body["host"].(map[string]any)
	assert.Equal(t, "srv1", host["uid"])
	assert.Equal(t, clientIP, host["ip"])
	assert.NotContains(t, host, "token")

	rec, body = h.do(t, http.MethodPost, "/servers", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	servers := body["servers"].([]any)
	require.Len(t, servers, 1)
	srv := servers[0].(map[string]any)
	assert.Equal(t, "My Server", srv["name"])
	assert.Equal(t, clientIP, srv["ip"])
	assert.NotContains(t, srv, "checksum")
	assert.NotContains(t, srv, "version")
	assert.NotContains(t, srv, "hidden")
}

func TestListServers_Empty(t *testing.T) {
	h := newHarness(t, nil)

	rec, _ := h.do(t, http.MethodPost, "/servers", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"servers":[]}`, rec.Body.String())
}

func TestAddServer_PolicyRejects(t *testing.T) {
	h := newHarness(t, nil)

	rec, body := h.do(t, http.MethodPost, "/servers/add", announce("srv1", "x", false), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "length")
	assert.Zero(t, h.reg.Len())
}

func TestAddServer_Unreachable(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, d *Deps) {
		d.Validator = stubValidator{ok: false}
	})

	rec, _ := h.do(t, http.MethodPost, "/servers/add", announce("srv1", "My Server", false), false)
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
	assert.Zero(t, h.reg.Len())
}

func TestAddServer_InvalidJSON(t *testing.T) {
	h := newHarness(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/servers/add", bytes.NewBufferString("{"))
	req.RemoteAddr = clientIP + ":1"
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHiddenServerByToken(t *testing.T) {
	h := newHarness(t, nil)

	rec, body := h.do(t, http.MethodPost, "/servers/add", announce("", "Secret Srv", true), false)
	require.Equal(t, http.StatusOK, rec.Code)
	token := body["host"].(map[string]any)["token"].(string)
	require.NotEmpty(t, token)

	_, body = h.do(t, http.MethodPost, "/servers", nil, false)
	assert.Empty(t, body["servers"])

	rec, body = h.do(t, http.MethodPost, "/servers/byToken", map[string]string{"token": token}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Secret Srv", body["server"].(map[string]any)["name"])

	rec, _ = h.do(t, http.MethodPost, "/servers/byToken", map[string]string{"token": "nope"}, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h.clock.Add(31 * time.Second)
	rec, _ = h.do(t, http.MethodPost, "/servers/byToken", map[string]string{"token": token}, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIsBanned(t *testing.T) {
	h := newHarness(t, nil)

	rec, _ := h.do(t, http.MethodPost, "/banlist/isBanned", map[string]any{"id": 42, "uid": "srv1"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/servers/add", announce("srv1", "My Server", false), false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := h.do(t, http.MethodPost, "/banlist/isBanned", map[string]any{"id": 42, "uid": "srv1"}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["banned"])
	assert.NotContains(t, body, "reason")

	rec, _ = h.do(t, http.MethodPost, "/panel/ban", map[string]any{"identifier": "42", "reason": "aimbot"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, body = h.do(t, http.MethodPost, "/banlist/isBanned", map[string]any{"id": 42, "uid": "srv1"}, false)
	assert.Equal(t, true, body["banned"])
	assert.Equal(t, "aimbot", body["reason"])
}

func TestBulkCheck(t *testing.T) {
	h := newHarness(t, nil)

	rec, _ := h.do(t, http.MethodPost, "/servers/add", announce("srv1", "My Server", false), false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/panel/ban", map[string]any{"identifier": "10.0.0.5"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/panel/kick", models.KickRequest{ServerUID: "srv1", PlayerUIDs: []uint64{7}}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	req := map[string]any{
		"uid": "srv1",
		"players": []map[string]any{
			{"id": 7},
			{"id": 8, "ip": "10.0.0.5"},
			{"id": 9, "ip": "10.0.0.6"},
		},
	}

	rec, body := h.do(t, http.MethodPost, "/banlist/bulkCheck", req, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	reported := body["bannedPlayers"].([]any)
	require.Len(t, reported, 2)
	kicked := reported[0].(map[string]any)
	assert.EqualValues(t, 7, kicked["id"])
	assert.Equal(t, bans.KickedReason, kicked["reason"])
	banned := reported[1].(map[string]any)
	assert.EqualValues(t, 8, banned["id"])
	assert.Equal(t, bans.DefaultReason, banned["reason"])
	assert.NotContains(t, banned, "ip")

	entry, ok := h.reg.LookupByUID("srv1")
	require.True(t, ok)
	assert.Len(t, entry.Players, 3)
	assert.Empty(t, entry.KickList)

	_, body = h.do(t, http.MethodPost, "/banlist/bulkCheck", map[string]any{"uid": "srv1", "players": []any{}}, false)
	assert.Empty(t, body["bannedPlayers"])

	rec, _ = h.do(t, http.MethodPost, "/banlist/bulkCheck", map[string]any{"uid": "ghost"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEULA_Empty(t *testing.T) {
	h := newHarness(t, nil)

	rec, body := h.do(t, http.MethodPost, "/eula", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 0, data["version"])
}

func TestVersion(t *testing.T) {
	h := newHarness(t, nil)

	rec, body := h.do(t, http.MethodGet, "/api/version", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, vars.Version, body["version"])
	assert.NotContains(t, body, "license")

	rec, _ = h.do(t, http.MethodGet, "/panel/version", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = h.do(t, http.MethodGet, "/panel/version", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, vars.License, body["license"])
	assert.Equal(t, vars.URL, body["url"])
	assert.Equal(t, vars.Name, body["name"])
}

func TestPanel_RequiresAuth(t *testing.T) {
	h := newHarness(t, nil)

	rec, _ := h.do(t, http.MethodGet, "/panel/servers", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec, _ = h.do(t, http.MethodGet, "/panel/servers", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPanel_ServersAndLookup(t *testing.T) {
	h := newHarness(t, nil)

	h.do(t, http.MethodPost, "/servers/add", announce("pub", "Public One", false), false)
	h.do(t, http.MethodPost, "/servers/add", announce("hid", "Hidden One", true), false)

	rec, body := h.do(t, http.MethodGet, "/panel/servers", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["public"], 1)
	assert.Len(t, body["hidden"], 1)

	rec, body = h.do(t, http.MethodGet, "/panel/server/hid", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["internal"].(map[string]any)["token"])

	rec, _ = h.do(t, http.MethodGet, "/panel/server/none", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPanel_BanLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	rec, _ := h.do(t, http.MethodPost, "/panel/ban", map[string]any{"identifier": ""}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/panel/ban", map[string]any{"identifier": "player-one"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	past := time.Now().Add(-time.Hour).Unix()
	rec, _ = h.do(t, http.MethodPost, "/panel/ban", map[string]any{"identifier": "5", "unban_timestamp": past}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/panel/ban", map[string]any{"identifier": "1.2.3.4", "reason": "spam"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/panel/ban_search", map[string]any{"identifier": "1.2.3.4"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []models.Ban
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "::ffff:1.2.3.4", found[0].Identifier)

	rec, _ = h.do(t, http.MethodGet, "/panel/bans?limit=10", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var recent []models.Ban
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	assert.Len(t, recent, 1)

	rec, _ = h.do(t, http.MethodPost, "/panel/unban", map[string]any{"key": found[0].ID}, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/panel/unban", map[string]any{"key": found[0].ID}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/panel/bans", nil, true)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestPanel_KickUnknownServer(t *testing.T) {
	h := newHarness(t, nil)

	rec, _ := h.do(t, http.MethodPost, "/panel/kick", models.KickRequest{ServerUID: "ghost"}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *Deps) {
		cfg.RateLimit.HardLimitCount = 2
		cfg.RateLimit.HardLimitWin = time.Hour
	})

	for i := 0; i < 2; i++ {
		rec, _ := h.do(t, http.MethodPost, "/servers", nil, false)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, _ := h.do(t, http.MethodPost, "/eula", nil, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.1:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	assert.Equal(t, "198.51.100.1", GetRealIP(req, false))
	assert.Equal(t, "203.0.113.5", GetRealIP(req, true))

	req.Header.Set("CF-Connecting-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", GetRealIP(req, true))
}
