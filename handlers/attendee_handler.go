package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/event-participation/middleware"
	"github.com/Dosada05/event-participation/services"
	"github.com/Dosada05/event-participation/utils"
)

type AttendeeHandler struct {
	attendeeService services.AttendeeService
	responder
}

func NewAttendeeHandler(attendeeService services.AttendeeService, logger *slog.Logger) *AttendeeHandler {
	return &AttendeeHandler{attendeeService: attendeeService, responder: responder{logger: logger}}
}

// ListAttendees godoc
// @Summary Attendee directory
// @Tags attendees
// @Produce json
// @Param slug path string true "Event slug"
// @Param looking_for_team query bool false "Only attendees looking for a team"
// @Param skills query string false "Comma separated skills, any of"
// @Success 200 {object} map[string]interface{}
// @Router /events/public/{slug}/attendees [get]
func (h *AttendeeHandler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	looking, err := optionalBool(r, "looking_for_team")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	filter := services.AttendeeFilter{
		LookingForTeam: looking,
		Skills:         utils.SplitCSV(r.URL.Query().Get("skills")),
	}

	attendees, err := h.attendeeService.ListAttendees(r.Context(), middleware.EventFromContext(r.Context()), filter)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"attendees": attendees})
}

func (h *AttendeeHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input services.UpdateProfileInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	attendee, err := h.attendeeService.UpdateProfile(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"attendee": attendee})
}
