package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microgrid/internal/types"
)

func dialHub(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readTick(t *testing.T, conn *websocket.Conn) types.DispatchResult {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var res types.DispatchResult
	require.NoError(t, json.Unmarshal(msg, &res))
	return res
}

func TestHub_BroadcastsTicks(t *testing.T) {
	hub := NewHub([]string{"*"}, testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dialHub(t, srv, nil)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	tick := sampleTick()
	require.NoError(t, hub.Publish(context.Background(), tick))

	got := readTick(t, conn)
	assert.Equal(t, tick.TickID, got.TickID)
	assert.Equal(t, tick.Battery.SoCPercent, got.Battery.SoCPercent)
}

func TestHub_NewClientReceivesLatestTick(t *testing.T) {
	hub := NewHub([]string{"*"}, testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	tick := sampleTick()
	require.NoError(t, hub.Publish(context.Background(), tick))

	conn := dialHub(t, srv, nil)
	assert.Equal(t, tick.TickID, readTick(t, conn).TickID)
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	hub := NewHub([]string{"https://ops.campus.edu"}, testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dialHub(t, srv, http.Header{"Origin": {"https://ops.campus.edu"}})
	assert.NotNil(t, conn)
}

func TestHub_ClientDisconnectIsCleanedUp(t *testing.T) {
	hub := NewHub([]string{"*"}, testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv, nil)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub([]string{"*"}, testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	dialHub(t, srv, nil)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Clients())
}
