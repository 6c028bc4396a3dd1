package api

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerwire/peerwire/pkg/client"
	"github.com/peerwire/peerwire/pkg/identity"
	"github.com/peerwire/peerwire/pkg/server"
	"github.com/peerwire/peerwire/pkg/transport"
)

func startRelay(t *testing.T) *server.Server {
	t.Helper()

	listener, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	config := server.DefaultConfig()
	config.Listener = listener
	config.Identity = identity.Static("SV:AP:00:00:00:01")

	relay := server.New(config)
	require.NoError(t, relay.Start())
	t.Cleanup(func() { relay.Stop() })
	return relay
}

func connectClient(t *testing.T, relay *server.Server, name, mac string) *client.Client {
	t.Helper()

	addr := relay.Addr().(*net.TCPAddr)

	config := client.DefaultConfig()
	config.Host = "127.0.0.1"
	config.Port = addr.Port
	config.Name = name
	config.Identity = identity.Static(mac)
	config.ConnectTimeout = 2 * time.Second

	c := client.New(config)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { c.Close("test done") })
	return c
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, nil)

	w := doJSON(t, api.Router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientsEndpoint(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, nil)

	connectClient(t, relay, "alice", "AP:00:00:00:00:01")

	w := doJSON(t, api.Router(), http.MethodGet, "/api/v1/clients", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool         `json:"success"`
		Data    []ClientInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "alice", resp.Data[0].Name)
	assert.Equal(t, "AP:00:00:00:00:01", resp.Data[0].MAC)
}

func TestBanLifecycle(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, nil)

	w := doJSON(t, api.Router(), http.MethodPost, "/api/v1/bans", map[string]any{
		"macs": []string{"AP:00:00:00:00:02"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"AP:00:00:00:00:02"}, relay.Banned())

	w = doJSON(t, api.Router(), http.MethodGet, "/api/v1/bans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "AP:00:00:00:00:02")

	w = doJSON(t, api.Router(), http.MethodDelete, "/api/v1/bans", map[string]any{
		"macs": []string{"AP:00:00:00:00:02"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, relay.Banned())
}

func TestBanRequiresMACs(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, nil)

	w := doJSON(t, api.Router(), http.MethodPost, "/api/v1/bans", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKickUnknownClient(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, nil)

	w := doJSON(t, api.Router(), http.MethodPost, "/api/v1/clients/kick", map[string]any{
		"target": "nobody",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBroadcastEndpoint(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, nil)

	connectClient(t, relay, "alice", "AP:00:00:00:00:03")
	connectClient(t, relay, "bob", "AP:00:00:00:00:04")

	w := doJSON(t, api.Router(), http.MethodPost, "/api/v1/messages/broadcast", map[string]any{
		"texts": map[string]string{"motd": "welcome"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Delivered int `json:"delivered"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Delivered)
}

func TestRedirectUnknownTarget(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, nil)

	// No match is not an error, just zero deliveries.
	w := doJSON(t, api.Router(), http.MethodPost, "/api/v1/messages/redirect", map[string]any{
		"target": "nobody",
		"texts":  map[string]string{"note": "hi"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Delivered int `json:"delivered"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.Delivered)
}

func TestBroadcastRejectsEmptyPayload(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, nil)

	w := doJSON(t, api.Router(), http.MethodPost, "/api/v1/messages/broadcast", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIKeyGuard(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, &Config{
		APIKeys: map[string]bool{"secret": true},
	})

	w := doJSON(t, api.Router(), http.MethodGet, "/api/v1/clients", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	relay := startRelay(t)
	api := NewServer(relay, nil)

	w := doJSON(t, api.Router(), http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "connected_clients")
	assert.Contains(t, w.Body.String(), "SV:AP:00:00:00:01")
}
