package notify

import "time"

type EventType string

const (
	AttendeeRegistered  EventType = "attendee.registered"
	TeamCreated         EventType = "team.created"
	TeamMemberJoined    EventType = "team.member_joined"
	TeamMemberLeft      EventType = "team.member_left"
	TeamDissolved       EventType = "team.dissolved"
	SubmissionSubmitted EventType = "submission.submitted"
)

// Event is a side-channel notification about a committed change.
// Email is only consumed by the email sink and never broadcast.
type Event struct {
	Type         EventType      `json:"type"`
	EventID      int            `json:"event_id"`
	EventSlug    string         `json:"event_slug"`
	AttendeeID   int            `json:"attendee_id,omitempty"`
	AttendeeName string         `json:"attendee_name,omitempty"`
	Email        string         `json:"-"`
	TeamID       *int           `json:"team_id,omitempty"`
	SubmissionID *int           `json:"submission_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// Publisher accepts events without blocking the caller. Delivery is best
// effort.
type Publisher interface {
	Publish(ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// Nop discards every event.
var Nop Publisher = nopPublisher{}
