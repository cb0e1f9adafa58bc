package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc, *httptest.Server) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("room"))
		if !hub.Register(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, cancel, srv
}

func dial(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesOnlyRoom(t *testing.T) {
	hub, _, srv := startHub(t)
	spring := dial(t, srv, "spring-hack")
	autumn := dial(t, srv, "autumn-hack")
	waitFor(t, func() bool { return hub.ClientCount("spring-hack") == 1 && hub.ClientCount("autumn-hack") == 1 })

	hub.BroadcastToRoom("spring-hack", Message{Type: "team.created", Payload: map[string]int{"team_id": 3}, RoomID: "spring-hack"})

	_ = spring.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := spring.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("message is not JSON: %v", err)
	}
	if got.Type != "team.created" || got.RoomID != "spring-hack" {
		t.Fatalf("message = %+v", got)
	}

	_ = autumn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := autumn.ReadMessage(); err == nil {
		t.Fatal("other room received the broadcast")
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, _, srv := startHub(t)
	conn := dial(t, srv, "spring-hack")
	waitFor(t, func() bool { return hub.ClientCount("spring-hack") == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount("spring-hack") == 0 })
}

func TestShutdownDisconnectsClients(t *testing.T) {
	hub, cancel, srv := startHub(t)
	conn := dial(t, srv, "spring-hack")
	waitFor(t, func() bool { return hub.ClientCount("spring-hack") == 1 })

	cancel()
	<-hub.done

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still open after shutdown")
	}
	if hub.ClientCount("spring-hack") != 0 {
		t.Fatal("rooms should be empty after shutdown")
	}
	if hub.Register(NewClient(hub, nil, "late")) {
		t.Fatal("Register after shutdown should report false")
	}
	hub.Unregister(NewClient(hub, nil, "late"))
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub(nil)
	hub.BroadcastToRoom("nobody", Message{Type: "noop"})
}
