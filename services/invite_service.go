package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/notify"
	"github.com/Dosada05/event-participation/repositories"
)

const (
	inviteTokenLength = 16 // bytes, 32 hex characters
	inviteDuration    = 7 * 24 * time.Hour
	inviteAttempts    = 3
)

type InviteService interface {
	CreateInvite(ctx context.Context, event *models.Event, session *models.Session, teamID int) (*models.Invite, error)
	ListTeamInvites(ctx context.Context, event *models.Event, session *models.Session, teamID int) ([]*models.Invite, error)
	// AcceptInvite joins the invite's team under the usual capacity and
	// one-team rules, whatever the team's join type, and consumes the invite.
	AcceptInvite(ctx context.Context, event *models.Event, session *models.Session, token string) (*models.Team, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type inviteService struct {
	store      teamStore
	inviteRepo repositories.InviteRepository
	publisher  notify.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewInviteService(
	tx repositories.Transactor,
	inviteRepo repositories.InviteRepository,
	teamRepo repositories.TeamRepository,
	membershipRepo repositories.MembershipRepository,
	attendeeRepo repositories.AttendeeRepository,
	publisher notify.Publisher,
	logger *slog.Logger,
) InviteService {
	if publisher == nil {
		publisher = notify.Nop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &inviteService{
		store: teamStore{
			tx:          tx,
			teams:       teamRepo,
			memberships: membershipRepo,
			attendees:   attendeeRepo,
		},
		inviteRepo: inviteRepo,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// requireLeader loads the team and checks that the caller leads it.
func (s *inviteService) requireLeader(ctx context.Context, event *models.Event, session *models.Session, teamID int) (*models.Team, error) {
	team, err := s.store.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}
	if team.EventID != event.ID {
		return nil, ErrTeamNotFound
	}

	membership, err := s.store.memberships.GetActive(ctx, nil, teamID, session.AttendeeID)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return nil, ErrNotTeamLeader
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if !membership.IsLeader() {
		return nil, ErrNotTeamLeader
	}
	return team, nil
}

func (s *inviteService) CreateInvite(ctx context.Context, event *models.Event, session *models.Session, teamID int) (*models.Invite, error) {
	if err := sessionFor(event, session); err != nil {
		return nil, err
	}
	if _, err := s.requireLeader(ctx, event, session, teamID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < inviteAttempts; attempt++ {
		token, err := generateSecureToken(inviteTokenLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite token: %w", err)
		}

		invite := &models.Invite{
			TeamID:    teamID,
			Token:     token,
			CreatedBy: session.AttendeeID,
			ExpiresAt: s.now().UTC().Add(inviteDuration),
		}

		err = s.inviteRepo.Create(ctx, invite)
		switch {
		case err == nil:
			return invite, nil
		case errors.Is(err, repositories.ErrInviteTokenConflict):
			continue
		case errors.Is(err, repositories.ErrInviteTeamInvalid):
			return nil, ErrTeamNotFound
		default:
			return nil, fmt.Errorf("failed to create invite: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to generate unique invite token after %d attempts", inviteAttempts)
}

func (s *inviteService) ListTeamInvites(ctx context.Context, event *models.Event, session *models.Session, teamID int) ([]*models.Invite, error) {
	if err := sessionFor(event, session); err != nil {
		return nil, err
	}
	if _, err := s.requireLeader(ctx, event, session, teamID); err != nil {
		return nil, err
	}

	invites, err := s.inviteRepo.ListByTeamID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}

	now := s.now()
	active := make([]*models.Invite, 0, len(invites))
	for _, invite := range invites {
		if !invite.Expired(now) {
			active = append(active, invite)
		}
	}
	return active, nil
}

func (s *inviteService) AcceptInvite(ctx context.Context, event *models.Event, session *models.Session, token string) (team *models.Team, err error) {
	defer func() { recordTeamOp("accept_invite", err) }()

	if err := sessionFor(event, session); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInviteTokenRequired
	}

	err = s.store.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.store.ensureNoActiveTeam(ctx, exec, session.AttendeeID); err != nil {
			return err
		}

		invite, err := s.inviteRepo.GetByToken(ctx, exec, token)
		if err != nil {
			if errors.Is(err, repositories.ErrInviteNotFound) {
				return ErrInviteNotFound
			}
			return err
		}
		if invite.Expired(s.now()) {
			return ErrInviteExpired
		}

		locked, err := s.store.lockEventTeam(ctx, exec, event, invite.TeamID)
		if err != nil {
			if errors.Is(err, ErrTeamNotFound) {
				return ErrInviteNotFound
			}
			return err
		}
		// Consumed under the team lock: a concurrent accept of the same
		// token finds nothing left to delete.
		if err := s.inviteRepo.Delete(ctx, exec, invite.ID); err != nil {
			if errors.Is(err, repositories.ErrInviteNotFound) {
				return ErrInviteNotFound
			}
			return err
		}
		if err := s.store.admit(ctx, exec, locked, session.AttendeeID); err != nil {
			return err
		}
		team = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(teamEvent(notify.TeamMemberJoined, event, session.AttendeeID, team.ID, map[string]any{"via": "invite"}))
	return s.store.detail(ctx, team)
}

func (s *inviteService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.inviteRepo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired invites", slog.Int64("count", n))
	}
	return n, nil
}
