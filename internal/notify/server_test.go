package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestStateEndpoint(t *testing.T) {
	log := quietLogger()
	hub := NewHub(log)
	srv := NewServer(":0", hub, func() interface{} {
		return map[string]string{"status": "Connected (ZeBLE-01)"}
	}, log)

	ts := httptest.NewServer(srv.httpSrv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer resp.Body.Close()

	var state map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state["status"] != "Connected (ZeBLE-01)" {
		t.Errorf("status = %q", state["status"])
	}
}

func TestDataReceivedBroadcast(t *testing.T) {
	log := quietLogger()
	hub := NewHub(log)
	srv := NewServer(":0", hub, func() interface{} { return nil }, log)

	ts := httptest.NewServer(srv.httpSrv.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The hub registers the client on the server goroutine; give it a beat.
	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.NotifyDataReceived("AA:BB:CC:DD:EE:FF", "42.3C")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != "data_received" {
		t.Errorf("event type = %q, want data_received", event.Type)
	}
	payload, ok := event.Payload.(map[string]interface{})
	if !ok || payload["body"] != "42.3C" {
		t.Errorf("payload = %v, want body 42.3C", event.Payload)
	}
}
