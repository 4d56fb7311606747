package server

import (
	"context"
	"encoding/json"
	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"match-relay/config"
	"match-relay/presence"
	"match-relay/protocol"
	"match-relay/registry"
	"match-relay/relay"
	"match-relay/session"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubStore struct {
	tokens map[string]session.Identity
}

func (s *stubStore) Validate(_ context.Context, token string) (*session.Identity, error) {
	identity, ok := s.tokens[token]
	if !ok {
		return nil, session.ErrInvalidToken
	}
	return &identity, nil
}

type testEnv struct {
	server   *Server
	registry *registry.Registry
	tracker  *presence.Tracker
	httpSrv  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		ListenAddr:     ":0",
		AuthApiRoot:    "stub",
		PingInterval:   30 * time.Second,
		MaxConnections: 64,
	}

	sessions := &stubStore{tokens: map[string]session.Identity{
		"alice-token": {UserId: 1, DisplayName: "alice"},
		"bob-token":   {UserId: 2, DisplayName: "bob"},
	}}

	clk := clock.New()
	reg := registry.New(clk)
	tracker := presence.NewTracker()
	engine := relay.NewEngine(reg, cfg.PingInterval, clk)

	srv := New(cfg, sessions, reg, engine, tracker)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	return &testEnv{
		server:   srv,
		registry: reg,
		tracker:  tracker,
		httpSrv:  httpSrv,
	}
}

func (env *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(env.httpSrv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// readUntilKind skips unrelated frames (keepalives, earlier handshake
// signals) until one of the wanted kind arrives.
func readUntilKind(t *testing.T, conn *websocket.Conn, kind string) []byte {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "connection closed while waiting for %q", kind)

		var envelope struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Type == kind {
			return data
		}
	}
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestMatchEndpointFullExchange(t *testing.T) {
	env := newTestEnv(t)

	host := env.dial(t, "/ws/match/m1?token=alice-token")
	var hostAssign protocol.AssignMessage
	require.NoError(t, json.Unmarshal(readUntilKind(t, host, protocol.KindAssign), &hostAssign))
	assert.True(t, hostAssign.Host)

	guest := env.dial(t, "/ws/match/m1?token=bob-token")
	var guestAssign protocol.AssignMessage
	require.NoError(t, json.Unmarshal(readUntilKind(t, guest, protocol.KindAssign), &guestAssign))
	assert.False(t, guestAssign.Host)
	assert.Equal(t, "alice", guestAssign.OpponentName)

	var opponent protocol.OpponentMessage
	require.NoError(t, json.Unmarshal(readUntilKind(t, host, protocol.KindOpponent), &opponent))
	assert.Equal(t, "bob", opponent.Name)

	sendFrame(t, host, `{"type":"ready"}`)
	sendFrame(t, guest, `{"type":"ready"}`)

	readUntilKind(t, host, protocol.KindGameStart)
	readUntilKind(t, guest, protocol.KindGameStart)

	// Gameplay frames cross the relay untouched.
	payload := `{"type":"paddleMove","y":17.25,"seq":3}`
	sendFrame(t, host, payload)
	relayed := readUntilKind(t, guest, "paddleMove")
	assert.Equal(t, payload, string(relayed))

	// Host walks away; guest learns why and the match disappears.
	require.NoError(t, host.Close())

	readUntilKind(t, guest, protocol.KindOpponentDisconnected)
	var cleanup protocol.CleanupMessage
	require.NoError(t, json.Unmarshal(readUntilKind(t, guest, protocol.KindCleanup), &cleanup))
	assert.Equal(t, protocol.CleanupReasonOpponentLeft, cleanup.Reason)

	require.Eventually(t, func() bool {
		return env.registry.ActiveMatches() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMatchEndpointClosesOnBadToken(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t, "/ws/match/m1?token=bogus")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "rejected connection must be closed without any message")
	assert.Equal(t, 0, env.registry.ActiveMatches())
}

func TestPresenceEndpointAnswersPingAndTracksUser(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t, "/ws/presence?token=alice-token")

	require.Eventually(t, func() bool {
		return env.tracker.IsOnline(1)
	}, 2*time.Second, 10*time.Millisecond)

	sendFrame(t, conn, `{"type":"ping"}`)
	readUntilKind(t, conn, protocol.KindPong)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return !env.tracker.IsOnline(1)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPresenceEndpointSupersedesOlderConnection(t *testing.T) {
	env := newTestEnv(t)

	first := env.dial(t, "/ws/presence?token=alice-token")
	second := env.dial(t, "/ws/presence?token=alice-token")

	// The first connection gets force-closed by its replacement.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	// The user stays online through the newer connection.
	sendFrame(t, second, `{"type":"ping"}`)
	readUntilKind(t, second, protocol.KindPong)
	assert.True(t, env.tracker.IsOnline(1))
}

func TestStatusRoute(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.httpSrv.URL + "/")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Status        string `json:"status"`
		ActiveMatches int    `json:"activeMatches"`
		OnlineUsers   int    `json:"onlineUsers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "running", status.Status)
	assert.Zero(t, status.ActiveMatches)
}
