package services

import (
	"strings"

	"github.com/Dosada05/event-participation/metrics"
	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/notify"
)

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// trimmedOrNil trims s and returns nil for blank input.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// sessionFor confirms that session was issued for event.
func sessionFor(event *models.Event, session *models.Session) error {
	if session == nil {
		return ErrAuthRequired
	}
	if event == nil || session.EventID != event.ID {
		return ErrTokenEventMismatch
	}
	return nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}

func recordTeamOp(op string, err error) {
	metrics.TeamOperations.WithLabelValues(op, outcomeLabel(err)).Inc()
}

func recordSubmissionOp(op string, err error) {
	metrics.SubmissionOperations.WithLabelValues(op, outcomeLabel(err)).Inc()
}

func intPtr(v int) *int {
	return &v
}

func teamEvent(typ notify.EventType, event *models.Event, attendeeID, teamID int, data map[string]any) notify.Event {
	return notify.Event{
		Type:       typ,
		EventID:    event.ID,
		EventSlug:  event.Slug,
		AttendeeID: attendeeID,
		TeamID:     intPtr(teamID),
		Data:       data,
	}
}
