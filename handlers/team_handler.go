package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/event-participation/middleware"
	"github.com/Dosada05/event-participation/services"
)

const (
	actionJoin  = "join"
	actionLeave = "leave"
)

type TeamHandler struct {
	teamService   services.TeamService
	inviteService services.InviteService
	responder
}

func NewTeamHandler(teamService services.TeamService, inviteService services.InviteService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{
		teamService:   teamService,
		inviteService: inviteService,
		responder:     responder{logger: logger},
	}
}

// ListTeams godoc
// @Summary Teams of an event
// @Tags teams
// @Produce json
// @Param slug path string true "Event slug"
// @Param looking_for_members query bool false "Filter by looking_for_members"
// @Success 200 {object} map[string]interface{}
// @Router /events/public/{slug}/teams [get]
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	looking, err := optionalBool(r, "looking_for_members")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	teams, err := h.teamService.ListTeams(r.Context(), middleware.EventFromContext(r.Context()), services.TeamFilter{LookingForMembers: looking})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"teams": teams})
}

// CreateTeam godoc
// @Summary Create a team led by the caller
// @Tags teams
// @Accept json
// @Produce json
// @Param slug path string true "Event slug"
// @Param input body services.CreateTeamInput true "Team"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "Already in a team or name taken"
// @Security BearerAuth
// @Router /events/public/{slug}/teams [post]
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTeamInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	team, err := h.teamService.CreateTeam(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusCreated, jsonResponse{"team": team})
}

func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamId")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	team, err := h.teamService.GetTeam(ctx, middleware.EventFromContext(ctx), teamID, middleware.SessionFromContext(ctx))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"team": team})
}

// UpdateTeam godoc
// @Summary Update a team (leader only)
// @Tags teams
// @Accept json
// @Produce json
// @Param slug path string true "Event slug"
// @Param teamId path int true "Team ID"
// @Param input body services.UpdateTeamInput true "Changes"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /events/public/{slug}/teams/{teamId} [patch]
func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamId")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	var input services.UpdateTeamInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	team, err := h.teamService.UpdateTeam(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), teamID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"team": team})
}

// TeamAction godoc
// @Summary Join an open team or leave the caller's team
// @Tags teams
// @Accept json
// @Produce json
// @Param slug path string true "Event slug"
// @Param teamId path int true "Team ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Not joinable, full or not a member"
// @Failure 409 {object} map[string]string "Already in a team"
// @Security BearerAuth
// @Router /events/public/{slug}/teams/{teamId} [post]
func (h *TeamHandler) TeamAction(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamId")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	var input struct {
		Action string `json:"action"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	event := middleware.EventFromContext(ctx)
	session := middleware.SessionFromContext(ctx)

	switch input.Action {
	case actionJoin:
		team, err := h.teamService.JoinOpen(ctx, event, session, teamID)
		if err != nil {
			h.mapServiceErrorToHTTP(w, r, err)
			return
		}
		h.ok(w, r, http.StatusOK, jsonResponse{"message": "Joined team", "team": team})
	case actionLeave:
		result, err := h.teamService.Leave(ctx, event, session, teamID)
		if err != nil {
			h.mapServiceErrorToHTTP(w, r, err)
			return
		}
		h.ok(w, r, http.StatusOK, jsonResponse{"message": "Left team", "result": result})
	default:
		h.mapServiceErrorToHTTP(w, r, services.ErrUnknownAction)
	}
}

func (h *TeamHandler) JoinWithCode(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code string `json:"code"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	team, err := h.teamService.JoinByCode(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), input.Code)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"message": "Joined team", "team": team})
}

func (h *TeamHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamId")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	invite, err := h.inviteService.CreateInvite(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), teamID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.ok(w, r, http.StatusCreated, jsonResponse{
		"invite": map[string]interface{}{
			"team_id":    invite.TeamID,
			"expires_at": invite.ExpiresAt,
		},
		"invite_token": invite.Token,
	})
}

func (h *TeamHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamId")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	invites, err := h.inviteService.ListTeamInvites(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), teamID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"invites": invites})
}

func (h *TeamHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token string `json:"token"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	team, err := h.inviteService.AcceptInvite(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), input.Token)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"message": "Successfully joined team", "team": team})
}
