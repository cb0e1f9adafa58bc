package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/event-participation/handlers"
	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/realtime"
	"github.com/Dosada05/event-participation/routes"
	"github.com/Dosada05/event-participation/services"
	"github.com/go-chi/chi/v5"
)

const goodToken = "good-token"

var (
	visibleEvent = &models.Event{ID: 1, Slug: "spring-hack", IsPublic: true, IsPublished: true}
	hiddenEvent  = &models.Event{ID: 2, Slug: "draft-hack", IsPublic: true, IsPublished: false}
)

type stubEvents struct{}

func (stubEvents) GetBySlug(_ context.Context, slug string) (*models.Event, error) {
	switch slug {
	case visibleEvent.Slug:
		return visibleEvent, nil
	case hiddenEvent.Slug:
		return hiddenEvent, nil
	case "broken":
		return nil, errors.New("connection refused")
	}
	return nil, services.ErrEventNotFound
}

// The stubs embed the service interfaces so each test only supplies the
// methods it exercises.
type stubAuth struct {
	services.AuthService
	register func(event *models.Event, input services.RegisterInput) (*services.AuthResult, error)
	login    func(event *models.Event, input services.LoginInput) (*services.AuthResult, error)
}

func (s stubAuth) Authenticate(token string, event *models.Event) (*models.Session, error) {
	if token != goodToken {
		return nil, services.ErrInvalidToken
	}
	return &models.Session{AttendeeID: 42, EventID: event.ID}, nil
}

func (s stubAuth) Register(_ context.Context, event *models.Event, input services.RegisterInput) (*services.AuthResult, error) {
	return s.register(event, input)
}

func (s stubAuth) Login(_ context.Context, event *models.Event, input services.LoginInput) (*services.AuthResult, error) {
	return s.login(event, input)
}

func (s stubAuth) GetSession(_ context.Context, event *models.Event, session *models.Session) (*services.SessionView, error) {
	return &services.SessionView{Attendee: &models.Attendee{ID: session.AttendeeID}, Event: event}, nil
}

type stubTeams struct {
	services.TeamService
	create   func(session *models.Session, input services.CreateTeamInput) (*models.Team, error)
	joinOpen func(session *models.Session, teamID int) (*models.Team, error)
	leave    func(session *models.Session, teamID int) (*services.LeaveResult, error)
	list     func(filter services.TeamFilter) ([]*models.Team, error)
	get      func(teamID int, session *models.Session) (*models.Team, error)
}

func (s stubTeams) CreateTeam(_ context.Context, _ *models.Event, session *models.Session, input services.CreateTeamInput) (*models.Team, error) {
	return s.create(session, input)
}

func (s stubTeams) JoinOpen(_ context.Context, _ *models.Event, session *models.Session, teamID int) (*models.Team, error) {
	return s.joinOpen(session, teamID)
}

func (s stubTeams) Leave(_ context.Context, _ *models.Event, session *models.Session, teamID int) (*services.LeaveResult, error) {
	return s.leave(session, teamID)
}

func (s stubTeams) ListTeams(_ context.Context, _ *models.Event, filter services.TeamFilter) ([]*models.Team, error) {
	return s.list(filter)
}

func (s stubTeams) GetTeam(_ context.Context, _ *models.Event, teamID int, session *models.Session) (*models.Team, error) {
	return s.get(teamID, session)
}

type stubInvites struct {
	services.InviteService
	create func(session *models.Session, teamID int) (*models.Invite, error)
	accept func(session *models.Session, token string) (*models.Team, error)
}

func (s stubInvites) CreateInvite(_ context.Context, _ *models.Event, session *models.Session, teamID int) (*models.Invite, error) {
	return s.create(session, teamID)
}

func (s stubInvites) AcceptInvite(_ context.Context, _ *models.Event, session *models.Session, token string) (*models.Team, error) {
	return s.accept(session, token)
}

type stubSubmissions struct {
	services.SubmissionService
	update func(session *models.Session, id int, input services.SubmissionInput, action string) (*models.Submission, error)
	remove func(session *models.Session, id int) error
	list   func(session *models.Session) ([]*models.Submission, error)
}

func (s stubSubmissions) UpdateSubmission(_ context.Context, _ *models.Event, session *models.Session, id int, input services.SubmissionInput, action string) (*models.Submission, error) {
	return s.update(session, id, input, action)
}

func (s stubSubmissions) DeleteSubmission(_ context.Context, _ *models.Event, session *models.Session, id int) error {
	return s.remove(session, id)
}

func (s stubSubmissions) ListSubmissions(_ context.Context, _ *models.Event, session *models.Session) ([]*models.Submission, error) {
	return s.list(session)
}

type stubUploads struct {
	upload func(file services.FileUpload) (*services.UploadedFile, error)
}

func (s stubUploads) UploadAttachment(_ context.Context, _ *models.Event, _ *models.Session, file services.FileUpload) (*services.UploadedFile, error) {
	return s.upload(file)
}

type stubAttendees struct {
	services.AttendeeService
	list func(filter services.AttendeeFilter) ([]*models.Attendee, error)
}

func (s stubAttendees) ListAttendees(_ context.Context, _ *models.Event, filter services.AttendeeFilter) ([]*models.Attendee, error) {
	return s.list(filter)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

type fixture struct {
	auth        stubAuth
	teams       stubTeams
	invites     stubInvites
	submissions stubSubmissions
	uploads     stubUploads
	attendees   stubAttendees
	pinger      stubPinger
}

func (f fixture) server(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Dependencies{
		Logger:       logger,
		EventService: stubEvents{},
		AuthService:  f.auth,
		Health:       handlers.NewHealthHandler(f.pinger, logger),
		Auth:         handlers.NewAuthHandler(f.auth, logger),
		Attendees:    handlers.NewAttendeeHandler(f.attendees, logger),
		Teams:        handlers.NewTeamHandler(f.teams, f.invites, logger),
		Submission:   handlers.NewSubmissionHandler(f.submissions, f.uploads, logger),
		Live:         handlers.NewLiveHandler(realtime.NewHub(logger), nil, logger),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return send(t, req)
}

func send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("decode %s %s response: %v", req.Method, req.URL.Path, err)
	}
	return resp.StatusCode, payload
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"up", nil, http.StatusOK, "ok"},
		{"down", errors.New("no route to host"), http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fixture{pinger: stubPinger{err: tt.err}}.server(t)
			status, body := do(t, srv, http.MethodGet, "/health", "", "")
			if status != tt.wantStatus || body["status"] != tt.wantBody {
				t.Fatalf("got %d %v, want %d %q", status, body, tt.wantStatus, tt.wantBody)
			}
		})
	}
}

func TestEventResolution(t *testing.T) {
	f := fixture{
		teams: stubTeams{list: func(services.TeamFilter) ([]*models.Team, error) { return []*models.Team{}, nil }},
		auth: stubAuth{login: func(event *models.Event, _ services.LoginInput) (*services.AuthResult, error) {
			return &services.AuthResult{Token: "t", Attendee: &models.Attendee{EventID: event.ID}}, nil
		}},
	}
	srv := f.server(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"unknown slug", http.MethodGet, "/events/public/nope/teams", "", http.StatusNotFound, "Event not found"},
		{"hidden event", http.MethodGet, "/events/public/draft-hack/teams", "", http.StatusNotFound, "Event not found"},
		{"lookup failure", http.MethodGet, "/events/public/broken/teams", "", http.StatusInternalServerError, services.PublicMessage(errors.New("x"))},
		{"visible event", http.MethodGet, "/events/public/spring-hack/teams", "", http.StatusOK, ""},
		{"login on hidden event", http.MethodPost, "/events/public/draft-hack/auth", `{"action":"login","email":"a@b.co","password":"x"}`, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, "", tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", status, tt.wantStatus, body)
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Fatalf("error = %v, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestAuthenticateActions(t *testing.T) {
	var registered services.RegisterInput
	f := fixture{auth: stubAuth{
		register: func(_ *models.Event, input services.RegisterInput) (*services.AuthResult, error) {
			registered = input
			return &services.AuthResult{Token: "new", Attendee: &models.Attendee{ID: 1, Name: input.Name}}, nil
		},
		login: func(*models.Event, services.LoginInput) (*services.AuthResult, error) {
			return nil, services.ErrInvalidCredentials
		},
	}}
	srv := f.server(t)
	path := "/events/public/spring-hack/auth"

	status, body := do(t, srv, http.MethodPost, path, "", `{"action":"register","email":"ada@example.com","password":"long-enough","name":"Ada","skills":["Go"]}`)
	if status != http.StatusCreated || body["token"] != "new" {
		t.Fatalf("register = %d %v, want 201 with token", status, body)
	}
	if registered.Name != "Ada" || len(registered.Skills) != 1 {
		t.Fatalf("registered input = %+v", registered)
	}

	status, body = do(t, srv, http.MethodPost, path, "", `{"action":"login","email":"ada@example.com","password":"nope"}`)
	if status != http.StatusUnauthorized || body["error"] != services.ErrInvalidCredentials.Message {
		t.Fatalf("login = %d %v, want 401 invalid credentials", status, body)
	}

	status, body = do(t, srv, http.MethodPost, path, "", `{"action":"reset"}`)
	if status != http.StatusBadRequest || body["error"] != services.ErrUnknownAction.Message {
		t.Fatalf("unknown action = %d %v, want 400", status, body)
	}

	status, _ = do(t, srv, http.MethodPost, path, "", `{"action":"login","admin":true}`)
	if status != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", status)
	}

	status, body = do(t, srv, http.MethodGet, path, goodToken, "")
	if status != http.StatusOK || body["attendee"] == nil {
		t.Fatalf("session = %d %v, want 200 with attendee", status, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := fixture{}.server(t)

	tests := []struct {
		name      string
		token     string
		wantError string
	}{
		{"missing", "", services.ErrAuthRequired.Message},
		{"invalid", "forged", services.ErrInvalidToken.Message},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, http.MethodPost, "/events/public/spring-hack/teams", tt.token, `{"name":"A"}`)
			if status != http.StatusUnauthorized || body["error"] != tt.wantError {
				t.Fatalf("got %d %v, want 401 %q", status, body, tt.wantError)
			}
		})
	}
}

func TestCreateTeamEndpoint(t *testing.T) {
	f := fixture{teams: stubTeams{create: func(session *models.Session, input services.CreateTeamInput) (*models.Team, error) {
		if input.Name == "Taken" {
			return nil, services.ErrTeamNameTaken
		}
		return &models.Team{ID: 9, Name: input.Name, CreatedBy: session.AttendeeID}, nil
	}}}
	srv := f.server(t)
	path := "/events/public/spring-hack/teams"

	status, body := do(t, srv, http.MethodPost, path, goodToken, `{"name":"Rocket","join_type":"code"}`)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %v)", status, body)
	}
	team := body["team"].(map[string]any)
	if team["name"] != "Rocket" || team["created_by"] != float64(42) {
		t.Fatalf("team = %v", team)
	}

	status, body = do(t, srv, http.MethodPost, path, goodToken, `{"name":"Taken"}`)
	if status != http.StatusConflict || body["error"] != services.ErrTeamNameTaken.Message {
		t.Fatalf("got %d %v, want 409 name taken", status, body)
	}

	status, _ = do(t, srv, http.MethodPost, path, goodToken, `{"name":`)
	if status != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", status)
	}
}

func TestTeamActionEndpoint(t *testing.T) {
	f := fixture{teams: stubTeams{
		joinOpen: func(_ *models.Session, teamID int) (*models.Team, error) {
			if teamID == 2 {
				return nil, services.ErrTeamFull
			}
			return &models.Team{ID: teamID}, nil
		},
		leave: func(_ *models.Session, teamID int) (*services.LeaveResult, error) {
			return &services.LeaveResult{TeamID: teamID, TeamDissolved: true}, nil
		},
	}}
	srv := f.server(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"join", "/events/public/spring-hack/teams/1", `{"action":"join"}`, http.StatusOK, "Joined team"},
		{"join full", "/events/public/spring-hack/teams/2", `{"action":"join"}`, http.StatusBadRequest, ""},
		{"leave", "/events/public/spring-hack/teams/1", `{"action":"leave"}`, http.StatusOK, "Left team"},
		{"unknown", "/events/public/spring-hack/teams/1", `{"action":"explode"}`, http.StatusBadRequest, ""},
		{"bad id", "/events/public/spring-hack/teams/abc", `{"action":"join"}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, http.MethodPost, tt.path, goodToken, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", status, tt.wantStatus, body)
			}
			if tt.wantMsg != "" && body["message"] != tt.wantMsg {
				t.Fatalf("message = %v, want %q", body["message"], tt.wantMsg)
			}
		})
	}
}

func TestListTeamsQuery(t *testing.T) {
	var got services.TeamFilter
	f := fixture{teams: stubTeams{list: func(filter services.TeamFilter) ([]*models.Team, error) {
		got = filter
		return []*models.Team{{ID: 1}}, nil
	}}}
	srv := f.server(t)

	status, body := do(t, srv, http.MethodGet, "/events/public/spring-hack/teams?looking_for_members=true", "", "")
	if status != http.StatusOK || len(body["teams"].([]any)) != 1 {
		t.Fatalf("got %d %v, want 200 with one team", status, body)
	}
	if got.LookingForMembers == nil || !*got.LookingForMembers {
		t.Fatalf("filter = %+v, want looking_for_members=true", got)
	}

	status, _ = do(t, srv, http.MethodGet, "/events/public/spring-hack/teams?looking_for_members=maybe", "", "")
	if status != http.StatusBadRequest {
		t.Fatalf("bad flag status = %d, want 400", status)
	}
}

func TestGetTeamPassesOptionalSession(t *testing.T) {
	var sessions []*models.Session
	f := fixture{teams: stubTeams{get: func(teamID int, session *models.Session) (*models.Team, error) {
		sessions = append(sessions, session)
		return &models.Team{ID: teamID}, nil
	}}}
	srv := f.server(t)

	for _, token := range []string{"", "forged", goodToken} {
		if status, body := do(t, srv, http.MethodGet, "/events/public/spring-hack/teams/5", token, ""); status != http.StatusOK {
			t.Fatalf("token %q: status = %d (body %v)", token, status, body)
		}
	}
	if sessions[0] != nil || sessions[1] != nil {
		t.Fatal("missing or invalid token should be anonymous")
	}
	if sessions[2] == nil || sessions[2].AttendeeID != 42 {
		t.Fatalf("session = %+v, want attendee 42", sessions[2])
	}
}

func TestInviteEndpoints(t *testing.T) {
	f := fixture{invites: stubInvites{
		create: func(_ *models.Session, teamID int) (*models.Invite, error) {
			return &models.Invite{ID: 3, TeamID: teamID, Token: "abc123"}, nil
		},
		accept: func(_ *models.Session, token string) (*models.Team, error) {
			if token != "abc123" {
				return nil, services.ErrInviteNotFound
			}
			return &models.Team{ID: 7}, nil
		},
	}}
	srv := f.server(t)

	status, body := do(t, srv, http.MethodPost, "/events/public/spring-hack/teams/7/invites", goodToken, "")
	if status != http.StatusCreated || body["invite_token"] != "abc123" {
		t.Fatalf("create invite = %d %v", status, body)
	}
	if invite := body["invite"].(map[string]any); invite["team_id"] != float64(7) {
		t.Fatalf("invite = %v, want team 7", invite)
	}

	status, body = do(t, srv, http.MethodPost, "/events/public/spring-hack/teams/accept-invite", goodToken, `{"token":"abc123"}`)
	if status != http.StatusOK || body["message"] != "Successfully joined team" {
		t.Fatalf("accept = %d %v", status, body)
	}

	status, _ = do(t, srv, http.MethodPost, "/events/public/spring-hack/teams/accept-invite", goodToken, `{"token":"zzz"}`)
	if status != http.StatusNotFound {
		t.Fatalf("accept unknown status = %d, want 404", status)
	}
}

func TestSubmissionEndpoints(t *testing.T) {
	var (
		gotAction string
		gotInput  services.SubmissionInput
	)
	f := fixture{submissions: stubSubmissions{
		update: func(_ *models.Session, id int, input services.SubmissionInput, action string) (*models.Submission, error) {
			gotAction, gotInput = action, input
			return &models.Submission{ID: id, Status: models.SubmissionSubmitted}, nil
		},
		remove: func(_ *models.Session, id int) error {
			if id == 2 {
				return services.ErrOnlyDraftDeletable
			}
			return nil
		},
		list: func(*models.Session) ([]*models.Submission, error) {
			return nil, errors.New("database is on fire")
		},
	}}
	srv := f.server(t)
	base := "/events/public/spring-hack/submissions"

	status, body := do(t, srv, http.MethodPatch, base+"/1", goodToken, `{"action":"submit","title":"Bot"}`)
	if status != http.StatusOK {
		t.Fatalf("submit status = %d (body %v)", status, body)
	}
	if gotAction != services.ActionSubmit || gotInput.Title == nil || *gotInput.Title != "Bot" {
		t.Fatalf("service got action %q input %+v", gotAction, gotInput)
	}

	status, body = do(t, srv, http.MethodDelete, base+"/1", goodToken, "")
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("delete = %d %v", status, body)
	}
	status, _ = do(t, srv, http.MethodDelete, base+"/2", goodToken, "")
	if status != http.StatusBadRequest {
		t.Fatalf("delete submitted status = %d, want 400", status)
	}

	status, body = do(t, srv, http.MethodGet, base, "", "")
	if status != http.StatusInternalServerError {
		t.Fatalf("list status = %d, want 500", status)
	}
	if msg, _ := body["error"].(string); strings.Contains(msg, "fire") {
		t.Fatalf("internal error leaked: %q", msg)
	}
}

func multipartRequest(t *testing.T, url, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+goodToken)
	return req
}

func TestUploadEndpoint(t *testing.T) {
	var received services.FileUpload
	f := fixture{uploads: stubUploads{upload: func(file services.FileUpload) (*services.UploadedFile, error) {
		received = file
		data, err := io.ReadAll(file.Reader)
		if err != nil {
			return nil, err
		}
		return &services.UploadedFile{URL: "https://files.example.com/x", Name: file.Name, Size: int64(len(data)), Type: "text/plain"}, nil
	}}}
	srv := f.server(t)
	url := srv.URL + "/events/public/spring-hack/submissions/upload"

	status, body := send(t, multipartRequest(t, url, "file", "notes.txt", []byte("hello")))
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %v)", status, body)
	}
	if body["url"] != "https://files.example.com/x" || body["size"] != float64(5) {
		t.Fatalf("body = %v", body)
	}
	if received.Name != "notes.txt" || received.Size != 5 {
		t.Fatalf("service got %+v", received)
	}

	status, body = send(t, multipartRequest(t, url, "", "", nil))
	if status != http.StatusBadRequest || body["error"] != services.ErrFileRequired.Message {
		t.Fatalf("missing file = %d %v, want 400 file required", status, body)
	}
}

func TestListAttendeesQuery(t *testing.T) {
	var got services.AttendeeFilter
	f := fixture{attendees: stubAttendees{list: func(filter services.AttendeeFilter) ([]*models.Attendee, error) {
		got = filter
		return []*models.Attendee{}, nil
	}}}
	srv := f.server(t)

	status, body := do(t, srv, http.MethodGet, "/events/public/spring-hack/attendees?skills=go,%20react,,&looking_for_team=false", "", "")
	if status != http.StatusOK || body["attendees"] == nil {
		t.Fatalf("got %d %v", status, body)
	}
	if len(got.Skills) != 2 || got.Skills[1] != "react" {
		t.Fatalf("skills = %q, want [go react]", got.Skills)
	}
	if got.LookingForTeam == nil || *got.LookingForTeam {
		t.Fatalf("LookingForTeam = %v, want false", got.LookingForTeam)
	}
}
