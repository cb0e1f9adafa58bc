package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/notify"
	"github.com/Dosada05/event-participation/repositories"
	"github.com/Dosada05/event-participation/telemetry"
	"github.com/Dosada05/event-participation/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// joinCodeAttempts bounds retries when a generated join code collides.
const joinCodeAttempts = 3

type TeamService interface {
	CreateTeam(ctx context.Context, event *models.Event, session *models.Session, input CreateTeamInput) (*models.Team, error)
	JoinOpen(ctx context.Context, event *models.Event, session *models.Session, teamID int) (*models.Team, error)
	JoinByCode(ctx context.Context, event *models.Event, session *models.Session, code string) (*models.Team, error)
	Leave(ctx context.Context, event *models.Event, session *models.Session, teamID int) (*LeaveResult, error)
	UpdateTeam(ctx context.Context, event *models.Event, session *models.Session, teamID int, input UpdateTeamInput) (*models.Team, error)
	ListTeams(ctx context.Context, event *models.Event, filter TeamFilter) ([]*models.Team, error)
	// GetTeam discloses the join code only to active members of the team.
	// session may be nil.
	GetTeam(ctx context.Context, event *models.Event, teamID int, session *models.Session) (*models.Team, error)
}

type CreateTeamInput struct {
	Name              string          `json:"name"`
	Description       *string         `json:"description"`
	SkillsNeeded      []string        `json:"skills_needed"`
	JoinType          models.JoinType `json:"join_type"`
	MaxMembers        *int            `json:"max_members"`
	LookingForMembers *bool           `json:"looking_for_members"`
	LogoURL           *string         `json:"logo_url"`
}

// UpdateTeamInput holds optional changes; nil fields are left untouched.
type UpdateTeamInput struct {
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	SkillsNeeded      *[]string        `json:"skills_needed"`
	JoinType          *models.JoinType `json:"join_type"`
	RegenerateCode    bool             `json:"regenerate_code"`
	MaxMembers        *int             `json:"max_members"`
	LookingForMembers *bool            `json:"looking_for_members"`
	LogoURL           *string          `json:"logo_url"`
}

type TeamFilter struct {
	LookingForMembers *bool
}

type LeaveResult struct {
	TeamID        int  `json:"team_id"`
	TeamDissolved bool `json:"team_dissolved"`
	NewLeaderID   *int `json:"new_leader_id,omitempty"`
}

// teamStore bundles the repositories shared by every membership mutation.
type teamStore struct {
	tx          repositories.Transactor
	teams       repositories.TeamRepository
	memberships repositories.MembershipRepository
	attendees   repositories.AttendeeRepository
}

// ensureNoActiveTeam fails with ErrAlreadyInTeam when attendeeID holds an
// active membership anywhere.
func (ts teamStore) ensureNoActiveTeam(ctx context.Context, exec repositories.SQLExecutor, attendeeID int) error {
	_, err := ts.memberships.GetActiveByAttendee(ctx, exec, attendeeID)
	switch {
	case err == nil:
		return ErrAlreadyInTeam
	case errors.Is(err, repositories.ErrMembershipNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check active membership: %w", err)
	}
}

// admit adds attendeeID as a member of a team whose row is already locked
// by exec. Capacity is checked against the active count under that lock.
func (ts teamStore) admit(ctx context.Context, exec repositories.SQLExecutor, team *models.Team, attendeeID int) error {
	count, err := ts.memberships.CountActive(ctx, exec, team.ID)
	if err != nil {
		return err
	}
	if count >= team.MaxMembers {
		return ErrTeamFull
	}

	// The first member of a team emptied by its last leaver takes the lead.
	role := models.RoleMember
	if count == 0 {
		role = models.RoleLeader
	}
	membership := &models.TeamMembership{TeamID: team.ID, AttendeeID: attendeeID, Role: role}
	if err := ts.memberships.Activate(ctx, exec, membership); err != nil {
		if errors.Is(err, repositories.ErrActiveMembershipExists) {
			return ErrAlreadyInTeam
		}
		return fmt.Errorf("failed to add team member: %w", err)
	}
	if err := ts.attendees.SetLookingForTeam(ctx, exec, attendeeID, false); err != nil {
		return fmt.Errorf("failed to update attendee: %w", err)
	}
	return nil
}

// lockEventTeam locks the team row and hides teams of other events.
func (ts teamStore) lockEventTeam(ctx context.Context, exec repositories.SQLExecutor, event *models.Event, teamID int) (*models.Team, error) {
	team, err := ts.teams.LockByID(ctx, exec, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if team.EventID != event.ID {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

// detail loads active members of the team and fills the derived fields.
func (ts teamStore) detail(ctx context.Context, team *models.Team) (*models.Team, error) {
	members, err := ts.memberships.ListActiveByTeams(ctx, nil, []int{team.ID})
	if err != nil {
		return nil, err
	}
	team.Members = members
	team.MemberCount = len(members)
	return team, nil
}

// validMaxMembers bounds an explicit capacity by the event's team_size_max
// when the event sets one.
func validMaxMembers(event *models.Event, n int) bool {
	if n < 1 {
		return false
	}
	limit := event.Requirements.TeamSizeMax
	return limit == nil || n <= *limit
}

type teamService struct {
	store       teamStore
	submissions repositories.SubmissionRepository
	publisher   notify.Publisher
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	newCode     func() (string, error)
}

func NewTeamService(
	tx repositories.Transactor,
	teamRepo repositories.TeamRepository,
	membershipRepo repositories.MembershipRepository,
	attendeeRepo repositories.AttendeeRepository,
	submissionRepo repositories.SubmissionRepository,
	publisher notify.Publisher,
	logger *slog.Logger,
) TeamService {
	if publisher == nil {
		publisher = notify.Nop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &teamService{
		store: teamStore{
			tx:          tx,
			teams:       teamRepo,
			memberships: membershipRepo,
			attendees:   attendeeRepo,
		},
		submissions: submissionRepo,
		publisher:   publisher,
		logger:      logger,
		tracer:      telemetry.Tracer("teams"),
		now:         time.Now,
		newCode:     utils.GenerateJoinCode,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, event *models.Event, session *models.Session, input CreateTeamInput) (team *models.Team, err error) {
	ctx, span := s.tracer.Start(ctx, "TeamService.CreateTeam")
	defer func() { recordTeamOp("create", err); span.End() }()

	if err := sessionFor(event, session); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	joinType := input.JoinType
	if joinType == "" {
		joinType = models.JoinTypeOpen
	}
	if !joinType.Valid() {
		return nil, ErrInvalidJoinType
	}

	maxMembers := event.Requirements.MaxTeamSize()
	if input.MaxMembers != nil {
		maxMembers = *input.MaxMembers
		if !validMaxMembers(event, maxMembers) {
			return nil, ErrInvalidMaxMembers
		}
	}

	lookingForMembers := true
	if input.LookingForMembers != nil {
		lookingForMembers = *input.LookingForMembers
	}

	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		team = &models.Team{
			EventID:           event.ID,
			Name:              name,
			Description:       trimmedOrNil(input.Description),
			SkillsNeeded:      utils.CleanStrings(input.SkillsNeeded),
			MaxMembers:        maxMembers,
			JoinType:          joinType,
			LookingForMembers: lookingForMembers,
			LogoURL:           trimmedOrNil(input.LogoURL),
			CreatedBy:         session.AttendeeID,
		}
		if joinType == models.JoinTypeCode {
			code, codeErr := s.newCode()
			if codeErr != nil {
				return nil, codeErr
			}
			team.JoinCode = &code
		}

		err = s.store.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			if err := s.store.ensureNoActiveTeam(ctx, exec, session.AttendeeID); err != nil {
				return err
			}
			if err := s.store.teams.Create(ctx, exec, team); err != nil {
				return err
			}
			leader := &models.TeamMembership{TeamID: team.ID, AttendeeID: session.AttendeeID, Role: models.RoleLeader}
			if err := s.store.memberships.Activate(ctx, exec, leader); err != nil {
				if errors.Is(err, repositories.ErrActiveMembershipExists) {
					return ErrAlreadyInTeam
				}
				return fmt.Errorf("failed to add team leader: %w", err)
			}
			return s.store.attendees.SetLookingForTeam(ctx, exec, session.AttendeeID, false)
		})
		if errors.Is(err, repositories.ErrTeamJoinCodeConflict) {
			s.logger.WarnContext(ctx, "join code collision, retrying", slog.Int("attempt", attempt+1))
			continue
		}
		break
	}
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameTaken
		case errors.Is(err, repositories.ErrTeamJoinCodeConflict):
			return nil, fmt.Errorf("failed to generate a unique join code after %d attempts: %w", joinCodeAttempts, err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("team.id", team.ID))
	s.publisher.Publish(teamEvent(notify.TeamCreated, event, session.AttendeeID, team.ID, map[string]any{
		"name":      team.Name,
		"join_type": team.JoinType,
	}))

	return s.store.detail(ctx, team)
}

func (s *teamService) JoinOpen(ctx context.Context, event *models.Event, session *models.Session, teamID int) (team *models.Team, err error) {
	ctx, span := s.tracer.Start(ctx, "TeamService.JoinOpen", trace.WithAttributes(attribute.Int("team.id", teamID)))
	defer func() { recordTeamOp("join", err); span.End() }()

	if err := sessionFor(event, session); err != nil {
		return nil, err
	}

	err = s.store.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.store.ensureNoActiveTeam(ctx, exec, session.AttendeeID); err != nil {
			return err
		}
		locked, err := s.store.lockEventTeam(ctx, exec, event, teamID)
		if err != nil {
			return err
		}
		if !locked.IsOpen() {
			return ErrTeamNotJoinable
		}
		team = locked
		return s.store.admit(ctx, exec, locked, session.AttendeeID)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(teamEvent(notify.TeamMemberJoined, event, session.AttendeeID, team.ID, nil))
	return s.store.detail(ctx, team)
}

func (s *teamService) JoinByCode(ctx context.Context, event *models.Event, session *models.Session, code string) (team *models.Team, err error) {
	ctx, span := s.tracer.Start(ctx, "TeamService.JoinByCode")
	defer func() { recordTeamOp("join_code", err); span.End() }()

	if err := sessionFor(event, session); err != nil {
		return nil, err
	}
	code = utils.NormalizeJoinCode(code)
	if code == "" {
		return nil, ErrJoinCodeRequired
	}

	err = s.store.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.store.ensureNoActiveTeam(ctx, exec, session.AttendeeID); err != nil {
			return err
		}
		locked, err := s.store.teams.LockByJoinCode(ctx, exec, event.ID, code)
		if err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return ErrInvalidJoinCode
			}
			return err
		}
		team = locked
		return s.store.admit(ctx, exec, locked, session.AttendeeID)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(teamEvent(notify.TeamMemberJoined, event, session.AttendeeID, team.ID, nil))
	return s.store.detail(ctx, team)
}

// Leave marks the caller's membership left. A departing leader hands over
// to the earliest-joined remaining member; a team left empty is deleted.
func (s *teamService) Leave(ctx context.Context, event *models.Event, session *models.Session, teamID int) (result *LeaveResult, err error) {
	ctx, span := s.tracer.Start(ctx, "TeamService.Leave", trace.WithAttributes(attribute.Int("team.id", teamID)))
	defer func() { recordTeamOp("leave", err); span.End() }()

	if err := sessionFor(event, session); err != nil {
		return nil, err
	}

	result = &LeaveResult{TeamID: teamID}
	err = s.store.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.store.lockEventTeam(ctx, exec, event, teamID); err != nil {
			return err
		}

		membership, err := s.store.memberships.GetActive(ctx, exec, teamID, session.AttendeeID)
		if err != nil {
			if errors.Is(err, repositories.ErrMembershipNotFound) {
				return ErrNotTeamMember
			}
			return err
		}

		if err := s.store.memberships.MarkLeft(ctx, exec, membership.ID, s.now().UTC()); err != nil {
			return err
		}

		remaining, err := s.store.memberships.ListActiveByTeams(ctx, exec, []int{teamID})
		if err != nil {
			return err
		}
		switch {
		case len(remaining) == 0:
			dissolved, err := s.dissolve(ctx, exec, event, teamID)
			if err != nil {
				return err
			}
			result.TeamDissolved = dissolved
		case membership.Role == models.RoleLeader:
			successor := remaining[0]
			if err := s.store.memberships.SetRole(ctx, exec, successor.ID, models.RoleLeader); err != nil {
				return err
			}
			result.NewLeaderID = intPtr(successor.AttendeeID)
		}

		return s.store.attendees.SetLookingForTeam(ctx, exec, session.AttendeeID, true)
	})
	if err != nil {
		return nil, err
	}

	data := map[string]any{}
	if result.NewLeaderID != nil {
		data["new_leader_id"] = *result.NewLeaderID
	}
	s.publisher.Publish(teamEvent(notify.TeamMemberLeft, event, session.AttendeeID, teamID, data))
	if result.TeamDissolved {
		s.publisher.Publish(teamEvent(notify.TeamDissolved, event, session.AttendeeID, teamID, nil))
	}
	return result, nil
}

// dissolve deletes an emptied team together with its draft submission. A
// team whose project was already submitted keeps its row, without members,
// so the project stays attributed to it.
func (s *teamService) dissolve(ctx context.Context, exec repositories.SQLExecutor, event *models.Event, teamID int) (bool, error) {
	submission, err := s.submissions.GetByTeam(ctx, exec, event.ID, teamID)
	switch {
	case errors.Is(err, repositories.ErrSubmissionNotFound):
	case err != nil:
		return false, fmt.Errorf("failed to load team submission: %w", err)
	case !submission.IsDraft():
		return false, nil
	default:
		if err := s.submissions.DeleteDraft(ctx, exec, submission.ID); err != nil {
			return false, fmt.Errorf("failed to delete team draft: %w", err)
		}
	}

	if err := s.store.teams.Delete(ctx, exec, teamID); err != nil {
		if errors.Is(err, repositories.ErrTeamHasSubmission) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *teamService) UpdateTeam(ctx context.Context, event *models.Event, session *models.Session, teamID int, input UpdateTeamInput) (team *models.Team, err error) {
	ctx, span := s.tracer.Start(ctx, "TeamService.UpdateTeam", trace.WithAttributes(attribute.Int("team.id", teamID)))
	defer func() { recordTeamOp("update", err); span.End() }()

	if err := sessionFor(event, session); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		err = s.store.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			locked, err := s.store.lockEventTeam(ctx, exec, event, teamID)
			if err != nil {
				return err
			}
			membership, err := s.store.memberships.GetActive(ctx, exec, teamID, session.AttendeeID)
			if err != nil {
				if errors.Is(err, repositories.ErrMembershipNotFound) {
					return ErrNotTeamLeader
				}
				return err
			}
			if !membership.IsLeader() {
				return ErrNotTeamLeader
			}

			if err := s.applyTeamUpdate(ctx, exec, event, locked, input); err != nil {
				return err
			}
			team = locked
			return s.store.teams.Update(ctx, exec, locked)
		})
		if errors.Is(err, repositories.ErrTeamJoinCodeConflict) {
			continue
		}
		break
	}
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameTaken
		case errors.Is(err, repositories.ErrTeamJoinCodeConflict):
			return nil, fmt.Errorf("failed to generate a unique join code after %d attempts: %w", joinCodeAttempts, err)
		}
		return nil, err
	}
	return s.store.detail(ctx, team)
}

func (s *teamService) applyTeamUpdate(ctx context.Context, exec repositories.SQLExecutor, event *models.Event, team *models.Team, input UpdateTeamInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return ErrTeamNameRequired
		}
		team.Name = name
	}
	if input.Description != nil {
		team.Description = trimmedOrNil(input.Description)
	}
	if input.SkillsNeeded != nil {
		team.SkillsNeeded = utils.CleanStrings(*input.SkillsNeeded)
	}
	if input.LookingForMembers != nil {
		team.LookingForMembers = *input.LookingForMembers
	}
	if input.LogoURL != nil {
		team.LogoURL = trimmedOrNil(input.LogoURL)
	}

	if input.JoinType != nil {
		if !input.JoinType.Valid() {
			return ErrInvalidJoinType
		}
		team.JoinType = *input.JoinType
	}
	needsCode := team.JoinType == models.JoinTypeCode && (team.JoinCode == nil || input.RegenerateCode)
	switch {
	case team.JoinType != models.JoinTypeCode:
		if input.RegenerateCode {
			return ErrNoJoinCode
		}
		team.JoinCode = nil
	case needsCode:
		code, err := s.newCode()
		if err != nil {
			return err
		}
		team.JoinCode = &code
	}

	if input.MaxMembers != nil {
		maxMembers := *input.MaxMembers
		if !validMaxMembers(event, maxMembers) {
			return ErrInvalidMaxMembers
		}
		count, err := s.store.memberships.CountActive(ctx, exec, team.ID)
		if err != nil {
			return err
		}
		if maxMembers < count {
			return ErrMaxMembersBelowCount
		}
		team.MaxMembers = maxMembers
	}
	return nil
}

func (s *teamService) ListTeams(ctx context.Context, event *models.Event, filter TeamFilter) ([]*models.Team, error) {
	teams, err := s.store.teams.ListByEvent(ctx, event.ID, repositories.TeamFilter{LookingForMembers: filter.LookingForMembers})
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return teams, nil
	}

	ids := make([]int, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	members, err := s.store.memberships.ListActiveByTeams(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	byTeam := make(map[int][]*models.TeamMembership, len(teams))
	for _, m := range members {
		byTeam[m.TeamID] = append(byTeam[m.TeamID], m)
	}
	for _, t := range teams {
		t.Members = byTeam[t.ID]
		if t.Members == nil {
			t.Members = []*models.TeamMembership{}
		}
		t.MemberCount = len(t.Members)
		t.JoinCode = nil
	}
	return teams, nil
}

func (s *teamService) GetTeam(ctx context.Context, event *models.Event, teamID int, session *models.Session) (*models.Team, error) {
	var (
		team    *models.Team
		members []*models.TeamMembership
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.store.teams.GetByID(gctx, teamID)
		if err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return ErrTeamNotFound
			}
			return err
		}
		team = t
		return nil
	})
	g.Go(func() error {
		m, err := s.store.memberships.ListActiveByTeams(gctx, nil, []int{teamID})
		if err != nil {
			return err
		}
		members = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if team.EventID != event.ID {
		return nil, ErrTeamNotFound
	}

	team.Members = members
	team.MemberCount = len(members)

	isMember := false
	if session != nil && session.EventID == event.ID {
		for _, m := range members {
			if m.AttendeeID == session.AttendeeID {
				isMember = true
				break
			}
		}
	}
	if !isMember {
		team.JoinCode = nil
	}
	return team, nil
}
