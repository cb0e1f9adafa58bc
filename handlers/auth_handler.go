package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/event-participation/middleware"
	"github.com/Dosada05/event-participation/services"
)

const (
	actionRegister = "register"
	actionLogin    = "login"
)

type AuthHandler struct {
	authService services.AuthService
	responder
}

func NewAuthHandler(authService services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, responder: responder{logger: logger}}
}

// authRequest carries both register and login fields; login ignores the
// profile part.
type authRequest struct {
	Action string `json:"action"`
	services.RegisterInput
}

// Authenticate godoc
// @Summary Register or log in as an event attendee
// @Tags auth
// @Accept json
// @Produce json
// @Param slug path string true "Event slug"
// @Success 200 {object} services.AuthResult "Logged in"
// @Success 201 {object} services.AuthResult "Registered"
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /events/public/{slug}/auth [post]
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var input authRequest
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	event := middleware.EventFromContext(r.Context())

	switch input.Action {
	case actionRegister:
		result, err := h.authService.Register(r.Context(), event, input.RegisterInput)
		if err != nil {
			h.mapServiceErrorToHTTP(w, r, err)
			return
		}
		h.ok(w, r, http.StatusCreated, result)
	case actionLogin:
		result, err := h.authService.Login(r.Context(), event, services.LoginInput{
			Email:    input.Email,
			Password: input.Password,
		})
		if err != nil {
			h.mapServiceErrorToHTTP(w, r, err)
			return
		}
		h.ok(w, r, http.StatusOK, result)
	default:
		h.mapServiceErrorToHTTP(w, r, services.ErrUnknownAction)
	}
}

// Session godoc
// @Summary Current attendee, event and team membership
// @Tags auth
// @Produce json
// @Param slug path string true "Event slug"
// @Success 200 {object} services.SessionView
// @Failure 401 {object} map[string]string
// @Security BearerAuth
// @Router /events/public/{slug}/auth [get]
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.authService.GetSession(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, view)
}
