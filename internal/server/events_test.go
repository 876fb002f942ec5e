package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Registration happens during the upgrade handshake; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func TestHubPublishBeforeRunDrops(t *testing.T) {
	h := NewHub()
	// Must not block or panic when nothing is running.
	h.Publish("miss abc")
	if n := h.ClientCount(); n != 0 {
		t.Errorf("ClientCount: got %d, want 0", n)
	}
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	conn := dialHub(t, h)

	h.Publish("write 0123abcd")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}
	if string(msg) != "write 0123abcd" {
		t.Errorf("message: got %q", msg)
	}
}

func TestHubStopClosesClients(t *testing.T) {
	h := NewHub()
	go h.Run()

	dialHub(t, h)

	h.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("clients not released on Stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
