package models

import "time"

type AttendeeStatus string

const (
	AttendeeStatusConfirmed AttendeeStatus = "confirmed"
)

// Attendee is a person registered for exactly one event.
type Attendee struct {
	ID             int            `json:"id" db:"id"`
	EventID        int            `json:"event_id" db:"event_id"`
	Email          string         `json:"email,omitempty" db:"email"`
	Name           string         `json:"name" db:"name"`
	Company        *string        `json:"company,omitempty" db:"company"`
	JobTitle       *string        `json:"job_title,omitempty" db:"job_title"`
	Skills         []string       `json:"skills" db:"skills"`
	Bio            *string        `json:"bio,omitempty" db:"bio"`
	LinkedInURL    *string        `json:"linkedin_url,omitempty" db:"linkedin_url"`
	GitHubURL      *string        `json:"github_url,omitempty" db:"github_url"`
	WebsiteURL     *string        `json:"website_url,omitempty" db:"website_url"`
	LookingForTeam bool           `json:"looking_for_team" db:"looking_for_team"`
	PasswordHash   *string        `json:"-" db:"password_hash"`
	Status         AttendeeStatus `json:"status" db:"status"`
	LastLoginAt    *time.Time     `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Public returns a copy safe for the directory: no email, no credential.
func (a *Attendee) Public() *Attendee {
	cp := *a
	cp.Email = ""
	cp.PasswordHash = nil
	cp.LastLoginAt = nil
	return &cp
}

// Session is the resolved content of a verified bearer token.
type Session struct {
	AttendeeID int       `json:"attendee_id"`
	EventID    int       `json:"event_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}
