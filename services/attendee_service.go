package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/repositories"
	"github.com/Dosada05/event-participation/utils"
)

type AttendeeService interface {
	ListAttendees(ctx context.Context, event *models.Event, filter AttendeeFilter) ([]*models.Attendee, error)
	UpdateProfile(ctx context.Context, event *models.Event, session *models.Session, input UpdateProfileInput) (*models.Attendee, error)
}

// AttendeeFilter narrows the directory. Skills match when any requested
// skill is a case-insensitive substring of any attendee skill.
type AttendeeFilter struct {
	LookingForTeam *bool
	Skills         []string
}

type UpdateProfileInput struct {
	Name           *string   `json:"name"`
	Company        *string   `json:"company"`
	JobTitle       *string   `json:"job_title"`
	Skills         *[]string `json:"skills"`
	Bio            *string   `json:"bio"`
	LinkedInURL    *string   `json:"linkedin_url"`
	GitHubURL      *string   `json:"github_url"`
	WebsiteURL     *string   `json:"website_url"`
	LookingForTeam *bool     `json:"looking_for_team"`
}

type attendeeService struct {
	attendeeRepo repositories.AttendeeRepository
}

func NewAttendeeService(attendeeRepo repositories.AttendeeRepository) AttendeeService {
	return &attendeeService{attendeeRepo: attendeeRepo}
}

func matchesAnySkill(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		w = strings.ToLower(w)
		for _, h := range have {
			if strings.Contains(strings.ToLower(h), w) {
				return true
			}
		}
	}
	return false
}

func (s *attendeeService) ListAttendees(ctx context.Context, event *models.Event, filter AttendeeFilter) ([]*models.Attendee, error) {
	status := models.AttendeeStatusConfirmed
	attendees, err := s.attendeeRepo.ListByEvent(ctx, event.ID, repositories.AttendeeFilter{
		Status:         &status,
		LookingForTeam: filter.LookingForTeam,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}

	skills := utils.CleanStrings(filter.Skills)
	result := make([]*models.Attendee, 0, len(attendees))
	for _, a := range attendees {
		if !matchesAnySkill(a.Skills, skills) {
			continue
		}
		result = append(result, a.Public())
	}
	return result, nil
}

func (s *attendeeService) UpdateProfile(ctx context.Context, event *models.Event, session *models.Session, input UpdateProfileInput) (*models.Attendee, error) {
	if err := sessionFor(event, session); err != nil {
		return nil, err
	}

	attendee, err := s.attendeeRepo.GetByID(ctx, session.AttendeeID)
	if err != nil {
		if errors.Is(err, repositories.ErrAttendeeNotFound) {
			return nil, ErrAttendeeNotFound
		}
		return nil, fmt.Errorf("failed to get attendee: %w", err)
	}
	if attendee.EventID != event.ID {
		return nil, ErrTokenEventMismatch
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		attendee.Name = name
	}
	set := func(dst **string, src *string) {
		if src != nil {
			*dst = trimmedOrNil(src)
		}
	}
	set(&attendee.Company, input.Company)
	set(&attendee.JobTitle, input.JobTitle)
	set(&attendee.Bio, input.Bio)
	set(&attendee.LinkedInURL, input.LinkedInURL)
	set(&attendee.GitHubURL, input.GitHubURL)
	set(&attendee.WebsiteURL, input.WebsiteURL)
	if input.Skills != nil {
		attendee.Skills = utils.CleanStrings(*input.Skills)
	}
	if input.LookingForTeam != nil {
		attendee.LookingForTeam = *input.LookingForTeam
	}

	if err := s.attendeeRepo.UpdateProfile(ctx, attendee); err != nil {
		if errors.Is(err, repositories.ErrAttendeeNotFound) {
			return nil, ErrAttendeeNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	attendee.PasswordHash = nil
	return attendee, nil
}
