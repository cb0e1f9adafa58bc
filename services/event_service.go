package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/repositories"
)

type EventService interface {
	// GetBySlug returns the event regardless of visibility.
	GetBySlug(ctx context.Context, slug string) (*models.Event, error)
}

type eventService struct {
	eventRepo repositories.EventRepository
}

func NewEventService(eventRepo repositories.EventRepository) EventService {
	return &eventService{eventRepo: eventRepo}
}

func (s *eventService) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrEventNotFound
	}
	event, err := s.eventRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %q: %w", slug, err)
	}
	return event, nil
}
