package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/event-participation/services"
	"github.com/go-chi/chi/v5"
)

// statusForKind mirrors the handler error mapping for the few kinds
// middleware can produce.
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ResolveEvent loads the event named by the {slug} URL parameter into the
// request context. With requireVisible set, unpublished or private events
// are reported as not found.
func ResolveEvent(events services.EventService, requireVisible bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			event, err := events.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
			if err != nil {
				kind := services.KindOf(err)
				if kind == services.KindInternal {
					logger.ErrorContext(r.Context(), "failed to resolve event", slog.Any("error", err))
				}
				writeError(w, statusForKind(kind), services.PublicMessage(err))
				return
			}
			if requireVisible && !event.Visible() {
				writeError(w, http.StatusNotFound, services.ErrEventNotFound.Message)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithEvent(r.Context(), event)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(token), nil
}

// RequireAttendee rejects requests without a valid bearer token issued for
// the event in context. It must run after ResolveEvent.
func RequireAttendee(auth services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, services.ErrAuthRequired.Message)
				return
			}
			session, err := auth.Authenticate(token, EventFromContext(r.Context()))
			if err != nil {
				writeError(w, http.StatusUnauthorized, services.PublicMessage(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// OptionalAttendee attaches a session when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAttendee(auth services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			session, err := auth.Authenticate(token, EventFromContext(r.Context()))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}
