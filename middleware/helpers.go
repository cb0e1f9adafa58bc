package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Dosada05/event-participation/models"
)

type contextKey string

const (
	eventContextKey   contextKey = "event"
	sessionContextKey contextKey = "session"
)

// WithEvent stores the event resolved from the {slug} path parameter.
func WithEvent(ctx context.Context, event *models.Event) context.Context {
	return context.WithValue(ctx, eventContextKey, event)
}

// EventFromContext returns the event resolved by ResolveEvent, or nil.
func EventFromContext(ctx context.Context) *models.Event {
	event, _ := ctx.Value(eventContextKey).(*models.Event)
	return event
}

func WithSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext returns the verified attendee session, or nil for
// anonymous requests.
func SessionFromContext(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionContextKey).(*models.Session)
	return session
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
