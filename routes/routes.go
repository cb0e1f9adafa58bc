package routes

import (
	"log/slog"
	"net/http"

	_ "github.com/Dosada05/event-participation/docs"
	"github.com/Dosada05/event-participation/handlers"
	"github.com/Dosada05/event-participation/middleware"
	"github.com/Dosada05/event-participation/services"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Dependencies groups everything the router wires together.
type Dependencies struct {
	Logger         *slog.Logger
	AllowedOrigins []string

	EventService services.EventService
	AuthService  services.AuthService

	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	Attendees  *handlers.AttendeeHandler
	Teams      *handlers.TeamHandler
	Submission *handlers.SubmissionHandler
	Live       *handlers.LiveHandler
}

func SetupRoutes(router chi.Router, deps Dependencies) {
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.Tracing)
	router.Use(middleware.Metrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", deps.Health.Health)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	requireAttendee := middleware.RequireAttendee(deps.AuthService)
	optionalAttendee := middleware.OptionalAttendee(deps.AuthService)

	router.Route("/events/public/{slug}", func(r chi.Router) {
		// Login must keep working for events that were unpublished after
		// registration, so auth resolves hidden events too.
		r.Group(func(r chi.Router) {
			r.Use(middleware.ResolveEvent(deps.EventService, false, deps.Logger))
			r.Post("/auth", deps.Auth.Authenticate)
			r.With(requireAttendee).Get("/auth", deps.Auth.Session)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.ResolveEvent(deps.EventService, true, deps.Logger))

			r.Get("/attendees", deps.Attendees.ListAttendees)
			r.With(requireAttendee).Patch("/attendees", deps.Attendees.UpdateProfile)

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", deps.Teams.ListTeams)

				r.Group(func(r chi.Router) {
					r.Use(requireAttendee)
					r.Post("/", deps.Teams.CreateTeam)
					r.Post("/join-with-code", deps.Teams.JoinWithCode)
					r.Post("/accept-invite", deps.Teams.AcceptInvite)
					r.Patch("/{teamId}", deps.Teams.UpdateTeam)
					r.Post("/{teamId}", deps.Teams.TeamAction)
					r.Post("/{teamId}/invites", deps.Teams.CreateInvite)
					r.Get("/{teamId}/invites", deps.Teams.ListInvites)
				})

				r.With(optionalAttendee).Get("/{teamId}", deps.Teams.GetTeam)
			})

			r.Route("/submissions", func(r chi.Router) {
				r.With(optionalAttendee).Get("/", deps.Submission.ListSubmissions)
				r.With(optionalAttendee).Get("/{id}", deps.Submission.GetSubmission)

				r.Group(func(r chi.Router) {
					r.Use(requireAttendee)
					r.Post("/", deps.Submission.CreateSubmission)
					r.Post("/upload", deps.Submission.UploadAttachment)
					r.Patch("/{id}", deps.Submission.UpdateSubmission)
					r.Delete("/{id}", deps.Submission.DeleteSubmission)
				})
			})

			r.Get("/live", deps.Live.ServeLive)
		})
	})
}
