package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSink struct {
	mu     sync.Mutex
	name   string
	events []Event
	err    error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("down")}
	ok := &recordingSink{name: "ok"}
	d := NewDispatcher(discard, 8, 2, failing, ok)

	for i := 1; i <= 3; i++ {
		d.Publish(Event{Type: TeamCreated, EventID: i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for ok.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if ok.count() != 3 || failing.count() != 3 {
		t.Fatalf("delivered ok=%d failing=%d, want 3 each", ok.count(), failing.count())
	}
	for _, ev := range ok.events {
		if ev.OccurredAt.IsZero() {
			t.Fatal("Publish should stamp OccurredAt")
		}
	}
}

func TestDispatcherDrainsOnShutdown(t *testing.T) {
	sink := &recordingSink{name: "ok"}
	d := NewDispatcher(discard, 16, 1, sink)
	for i := 0; i < 10; i++ {
		d.Publish(Event{Type: TeamMemberJoined})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sink.count() != 10 {
		t.Fatalf("delivered %d events, want all 10", sink.count())
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher(discard, 1, 1)
	d.Publish(Event{Type: TeamCreated})
	d.Publish(Event{Type: TeamDissolved})

	if len(d.queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(d.queue))
	}
	if ev := <-d.queue; ev.Type != TeamCreated {
		t.Fatalf("queued %s, want the first event kept", ev.Type)
	}
}

func TestWebhookSink(t *testing.T) {
	var (
		gotType string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("X-Event-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		if gotBody["event_slug"] == "fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, srv.Client())
	teamID := 4
	err := sink.Deliver(context.Background(), Event{
		Type: TeamCreated, EventID: 1, EventSlug: "spring-hack", TeamID: &teamID, Email: "secret@example.com",
	})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if gotType != string(TeamCreated) {
		t.Fatalf("X-Event-Type = %q", gotType)
	}
	if gotBody["team_id"] != float64(4) {
		t.Fatalf("body = %v, want team_id 4", gotBody)
	}
	if _, leaked := gotBody["email"]; leaked {
		t.Fatal("email must not be posted")
	}

	if err := sink.Deliver(context.Background(), Event{Type: TeamCreated, EventSlug: "fail"}); err == nil {
		t.Fatal("Deliver() succeeded on 502, want error")
	}
}

func TestEmailSink(t *testing.T) {
	type sent struct{ to, subject, body string }
	var mails []sent
	sink := NewEmailSink(SMTPConfig{From: "noreply@example.com"})
	sink.send = func(to, subject, body string) error {
		mails = append(mails, sent{to, subject, body})
		return nil
	}

	events := []Event{
		{Type: AttendeeRegistered, EventSlug: "spring-hack", AttendeeName: "Ada", Email: "ada@example.com"},
		{Type: AttendeeRegistered, EventSlug: "spring-hack"},
		{Type: TeamCreated, EventSlug: "spring-hack", Email: "ada@example.com"},
	}
	for _, ev := range events {
		if err := sink.Deliver(context.Background(), ev); err != nil {
			t.Fatalf("Deliver(%s) error = %v", ev.Type, err)
		}
	}

	if len(mails) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mails))
	}
	if mails[0].to != "ada@example.com" || mails[0].subject != "You're registered for spring-hack" {
		t.Fatalf("mail = %+v", mails[0])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Deliver(ctx, events[0]); !errors.Is(err, context.Canceled) {
		t.Fatalf("Deliver() with cancelled ctx = %v, want context.Canceled", err)
	}
}

type roomRecorder struct {
	rooms    []string
	messages []interface{}
}

func (r *roomRecorder) BroadcastToRoom(room string, message interface{}) {
	r.rooms = append(r.rooms, room)
	r.messages = append(r.messages, message)
}

func TestHubSink(t *testing.T) {
	hub := &roomRecorder{}
	sink := NewHubSink(hub)

	if err := sink.Deliver(context.Background(), Event{Type: TeamCreated}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(hub.rooms) != 0 {
		t.Fatal("events without a slug should not be broadcast")
	}

	if err := sink.Deliver(context.Background(), Event{Type: SubmissionSubmitted, EventSlug: "spring-hack"}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(hub.rooms) != 1 || hub.rooms[0] != "spring-hack" {
		t.Fatalf("rooms = %v", hub.rooms)
	}
	msg, ok := hub.messages[0].(liveMessage)
	if !ok || msg.Type != string(SubmissionSubmitted) || msg.RoomID != "spring-hack" {
		t.Fatalf("message = %#v", hub.messages[0])
	}
}

func TestNopPublisher(t *testing.T) {
	Nop.Publish(Event{Type: TeamCreated})
}
