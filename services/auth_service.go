package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/event-participation/metrics"
	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/notify"
	"github.com/Dosada05/event-participation/repositories"
	"github.com/Dosada05/event-participation/utils"
)

type AuthService interface {
	Register(ctx context.Context, event *models.Event, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, event *models.Event, input LoginInput) (*AuthResult, error)
	// Authenticate verifies token and checks it was issued for event.
	Authenticate(token string, event *models.Event) (*models.Session, error)
	GetSession(ctx context.Context, event *models.Event, session *models.Session) (*SessionView, error)
}

type RegisterInput struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Name        string   `json:"name"`
	Company     *string  `json:"company"`
	JobTitle    *string  `json:"job_title"`
	Skills      []string `json:"skills"`
	Bio         *string  `json:"bio"`
	LinkedInURL *string  `json:"linkedin_url"`
	GitHubURL   *string  `json:"github_url"`
	WebsiteURL  *string  `json:"website_url"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	Attendee  *models.Attendee `json:"attendee"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type SessionView struct {
	Attendee   *models.Attendee       `json:"attendee"`
	Event      *models.Event          `json:"event"`
	Membership *models.TeamMembership `json:"membership,omitempty"`
	Team       *models.Team           `json:"team,omitempty"`
	ExpiresAt  time.Time              `json:"expires_at"`
}

type authService struct {
	attendeeRepo   repositories.AttendeeRepository
	membershipRepo repositories.MembershipRepository
	teamRepo       repositories.TeamRepository
	tokens         TokenIssuer
	publisher      notify.Publisher
	logger         *slog.Logger
	now            func() time.Time
}

func NewAuthService(
	attendeeRepo repositories.AttendeeRepository,
	membershipRepo repositories.MembershipRepository,
	teamRepo repositories.TeamRepository,
	tokens TokenIssuer,
	publisher notify.Publisher,
	logger *slog.Logger,
) AuthService {
	if publisher == nil {
		publisher = notify.Nop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		attendeeRepo:   attendeeRepo,
		membershipRepo: membershipRepo,
		teamRepo:       teamRepo,
		tokens:         tokens,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *authService) Register(ctx context.Context, event *models.Event, input RegisterInput) (*AuthResult, error) {
	if !event.Visible() {
		return nil, ErrEventNotOpen
	}

	name := strings.TrimSpace(input.Name)
	email := utils.NormalizeEmail(input.Email)
	switch {
	case name == "":
		return nil, ErrNameRequired
	case email == "":
		return nil, ErrEmailRequired
	case !utils.IsValidEmail(email):
		return nil, ErrInvalidEmail
	case input.Password == "":
		return nil, ErrPasswordRequired
	case len(input.Password) < utils.MinPasswordLength:
		return nil, ErrPasswordTooShort
	}

	if _, err := s.attendeeRepo.GetByEmail(ctx, event.ID, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrAttendeeNotFound) {
		return nil, fmt.Errorf("failed to check attendee email: %w", err)
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	attendee := &models.Attendee{
		EventID:        event.ID,
		Email:          email,
		Name:           name,
		Company:        trimmedOrNil(input.Company),
		JobTitle:       trimmedOrNil(input.JobTitle),
		Skills:         utils.CleanStrings(input.Skills),
		Bio:            trimmedOrNil(input.Bio),
		LinkedInURL:    trimmedOrNil(input.LinkedInURL),
		GitHubURL:      trimmedOrNil(input.GitHubURL),
		WebsiteURL:     trimmedOrNil(input.WebsiteURL),
		LookingForTeam: true,
		PasswordHash:   &hash,
		Status:         models.AttendeeStatusConfirmed,
	}

	if err := s.attendeeRepo.Create(ctx, attendee); err != nil {
		switch {
		case errors.Is(err, repositories.ErrAttendeeEmailConflict):
			return nil, ErrEmailTaken
		case errors.Is(err, repositories.ErrAttendeeEventInvalid):
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to create attendee: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(attendee.ID, event.ID)
	if err != nil {
		return nil, err
	}

	metrics.Registrations.Inc()
	s.publisher.Publish(notify.Event{
		Type:         notify.AttendeeRegistered,
		EventID:      event.ID,
		EventSlug:    event.Slug,
		AttendeeID:   attendee.ID,
		AttendeeName: attendee.Name,
		Email:        attendee.Email,
	})

	attendee.PasswordHash = nil
	return &AuthResult{Attendee: attendee, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *authService) Login(ctx context.Context, event *models.Event, input LoginInput) (*AuthResult, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	attendee, err := s.attendeeRepo.GetByEmail(ctx, event.ID, email)
	if err != nil {
		if errors.Is(err, repositories.ErrAttendeeNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find attendee by email: %w", err)
	}
	if attendee.PasswordHash == nil || *attendee.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(input.Password, *attendee.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.attendeeRepo.TouchLastLogin(ctx, attendee.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	attendee.LastLoginAt = &now

	token, expiresAt, err := s.tokens.Issue(attendee.ID, event.ID)
	if err != nil {
		return nil, err
	}

	attendee.PasswordHash = nil
	return &AuthResult{Attendee: attendee, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *authService) Authenticate(token string, event *models.Event) (*models.Session, error) {
	session, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if err := sessionFor(event, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *authService) GetSession(ctx context.Context, event *models.Event, session *models.Session) (*SessionView, error) {
	if err := sessionFor(event, session); err != nil {
		return nil, err
	}

	attendee, err := s.attendeeRepo.GetByID(ctx, session.AttendeeID)
	if err != nil {
		if errors.Is(err, repositories.ErrAttendeeNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load attendee: %w", err)
	}
	if attendee.EventID != event.ID {
		return nil, ErrTokenEventMismatch
	}
	attendee.PasswordHash = nil

	view := &SessionView{Attendee: attendee, Event: event, ExpiresAt: session.ExpiresAt}

	membership, err := s.membershipRepo.GetActiveByAttendee(ctx, nil, attendee.ID)
	switch {
	case err == nil:
		view.Membership = membership
		team, teamErr := s.teamRepo.GetByID(ctx, membership.TeamID)
		if teamErr != nil && !errors.Is(teamErr, repositories.ErrTeamNotFound) {
			return nil, fmt.Errorf("failed to load team: %w", teamErr)
		}
		view.Team = team
	case !errors.Is(err, repositories.ErrMembershipNotFound):
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}

	return view, nil
}
