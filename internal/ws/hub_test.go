package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jtq-dev/opslens/internal/store"
	wsHub "github.com/jtq-dev/opslens/internal/ws"
)

// startHub serves the hub over a test HTTP server and returns the ws:// URL.
func startHub(t *testing.T) (string, *wsHub.Hub) {
	t.Helper()

	hub := wsHub.New()
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients: got %d, want %d", hub.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastsRunCreated(t *testing.T) {
	wsURL, hub := startHub(t)
	conn := dial(t, wsURL)
	waitForClients(t, hub, 1)

	run := store.Run{
		ID:          "r1",
		Host:        "web-01",
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		ArchiveName: "web-01.tar.gz",
		HealthScore: 85,
	}
	hub.RunCreated(run)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var msg wsHub.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v (raw %s)", err, raw)
	}
	if msg.Event != "run_created" {
		t.Errorf("event: got %q, want run_created", msg.Event)
	}
	if msg.Run.ID != "r1" || msg.Run.HealthScore != 85 {
		t.Errorf("run: got %+v", msg.Run)
	}
}

func TestHub_MultipleClients(t *testing.T) {
	wsURL, hub := startHub(t)
	c1 := dial(t, wsURL)
	c2 := dial(t, wsURL)
	waitForClients(t, hub, 2)

	hub.RunCreated(store.Run{ID: "r2", Host: "h"})

	for i, conn := range []*websocket.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Errorf("client %d: ReadMessage: %v", i, err)
		}
	}
}

func TestHub_BroadcastWithNoClients(t *testing.T) {
	_, hub := startHub(t)
	// Must not panic or block.
	hub.RunCreated(store.Run{ID: "r3"})
	if hub.Count() != 0 {
		t.Errorf("Count: got %d, want 0", hub.Count())
	}
}
