package models

import "time"

type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionAccepted  SubmissionStatus = "accepted"
	SubmissionWinner    SubmissionStatus = "winner"
	SubmissionRejected  SubmissionStatus = "rejected"
)

// PubliclyVisible reports whether anyone may see a submission in this state.
func (s SubmissionStatus) PubliclyVisible() bool {
	switch s {
	case SubmissionSubmitted, SubmissionAccepted, SubmissionWinner:
		return true
	}
	return false
}

// Submission is owned by exactly one of TeamID or AttendeeID.
type Submission struct {
	ID              int              `json:"id" db:"id"`
	EventID         int              `json:"event_id" db:"event_id"`
	TeamID          *int             `json:"team_id,omitempty" db:"team_id"`
	AttendeeID      *int             `json:"attendee_id,omitempty" db:"attendee_id"`
	CreatedBy       int              `json:"created_by" db:"created_by"`
	Title           string           `json:"title" db:"title"`
	Tagline         *string          `json:"tagline,omitempty" db:"tagline"`
	Description     *string          `json:"description,omitempty" db:"description"`
	RepositoryURL   *string          `json:"repository_url,omitempty" db:"repository_url"`
	DemoURL         *string          `json:"demo_url,omitempty" db:"demo_url"`
	VideoURL        *string          `json:"video_url,omitempty" db:"video_url"`
	PresentationURL *string          `json:"presentation_url,omitempty" db:"presentation_url"`
	ThumbnailURL    *string          `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	TechStack       []string         `json:"tech_stack" db:"tech_stack"`
	Status          SubmissionStatus `json:"status" db:"status"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty" db:"submitted_at"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`

	Files []SubmissionFile `json:"files" db:"-"`
	Team  *Team            `json:"team,omitempty" db:"-"`
}

func (s *Submission) IsTeamOwned() bool {
	return s.TeamID != nil
}

func (s *Submission) IsDraft() bool {
	return s.Status == SubmissionDraft
}

type SubmissionFile struct {
	ID           int       `json:"id" db:"id"`
	SubmissionID int       `json:"submission_id" db:"submission_id"`
	Name         string    `json:"name" db:"name"`
	URL          string    `json:"url" db:"url"`
	SizeBytes    int64     `json:"size" db:"size_bytes"`
	ContentType  string    `json:"type" db:"content_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
