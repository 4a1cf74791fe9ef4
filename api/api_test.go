package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewServerWithVersion(0, "v1.2.3")
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "v1.2.3", body["version"])
}

func TestCORSPreflight(t *testing.T) {
	server := NewServer(0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/health", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

// dialWS connects a websocket client to a test server.
func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn
}

// readUntil reads frames until one matches the predicate.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(ServerMessage) bool) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if pred(msg) {
			return msg
		}
	}
}

func TestWebSocketSession(t *testing.T) {
	server := NewServer(0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer func() { _ = conn.Close() }()

	// Load a small program and run it to completion.
	src := "LOADN R1, #3\nLOADN R2, #4\nADD R0, R1, R2\nHALT"
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "load", Source: src}))
	readUntil(t, conn, func(m ServerMessage) bool { return m.Event == "loaded" })

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "run"}))
	halted := readUntil(t, conn, func(m ServerMessage) bool { return m.Event == "halted" })

	require.NotNil(t, halted.State)
	assert.Equal(t, uint16(7), halted.State.Registers[0])
	assert.Equal(t, "halted", halted.State.State)
}

func TestWebSocketStep(t *testing.T) {
	server := NewServer(0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "load", Source: "LOADN R0, #5\nHALT"}))
	readUntil(t, conn, func(m ServerMessage) bool { return m.Event == "loaded" })

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "step"}))
	stepped := readUntil(t, conn, func(m ServerMessage) bool { return m.Event == "stepped" })

	require.NotNil(t, stepped.State)
	assert.Equal(t, uint16(5), stepped.State.Registers[0])
	assert.Equal(t, 2, stepped.State.PC)
}

func TestWebSocketAssemblyError(t *testing.T) {
	server := NewServer(0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "load", Source: "LOADN SP, #5"}))
	msg := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == "error" })
	assert.NotEmpty(t, msg.Error)
}

func TestWebSocketSnapshot(t *testing.T) {
	server := NewServer(0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "snapshot"}))
	msg := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == "state" })

	require.NotNil(t, msg.State)
	assert.Equal(t, 0, msg.State.PC)
	assert.Equal(t, "running", msg.State.State)
}

func TestWebSocketUnknownMessage(t *testing.T) {
	server := NewServer(0)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "bogus"}))
	msg := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == "error" })
	assert.Contains(t, msg.Error, "unknown message type")
}
