package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTeamSizeMin = 1
	DefaultTeamSizeMax = 5
)

// Event is owned by the organization side; this service only reads it.
type Event struct {
	ID           int               `json:"id" db:"id"`
	TenantID     int               `json:"-" db:"tenant_id"`
	Slug         string            `json:"slug" db:"slug"`
	Name         string            `json:"name" db:"name"`
	IsPublic     bool              `json:"is_public" db:"is_public"`
	IsPublished  bool              `json:"is_published" db:"is_published"`
	Requirements EventRequirements `json:"requirements" db:"requirements"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

// Visible reports whether attendees may self-register for the event.
func (e *Event) Visible() bool {
	return e.IsPublic && e.IsPublished
}

// EventRequirements is the typed view of the per-event policy document
// stored as JSONB. Unknown keys are preserved in Extra.
type EventRequirements struct {
	TeamSizeMin        *int       `json:"team_size_min,omitempty"`
	TeamSizeMax        *int       `json:"team_size_max,omitempty"`
	SubmissionDeadline *time.Time `json:"submission_deadline,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// MinTeamSize returns team_size_min or DefaultTeamSizeMin.
func (r EventRequirements) MinTeamSize() int {
	if r.TeamSizeMin == nil || *r.TeamSizeMin < 1 {
		return DefaultTeamSizeMin
	}
	return *r.TeamSizeMin
}

// MaxTeamSize returns team_size_max or DefaultTeamSizeMax.
func (r EventRequirements) MaxTeamSize() int {
	if r.TeamSizeMax == nil || *r.TeamSizeMax < 1 {
		return DefaultTeamSizeMax
	}
	return *r.TeamSizeMax
}

// RequiresTeam is true when solo submissions are not allowed.
func (r EventRequirements) RequiresTeam() bool {
	return r.MinTeamSize() > 1
}

// DeadlinePassed reports whether the submission deadline is set and before now.
func (r EventRequirements) DeadlinePassed(now time.Time) bool {
	return r.SubmissionDeadline != nil && now.After(*r.SubmissionDeadline)
}

func (r *EventRequirements) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = EventRequirements{}
	for key, value := range raw {
		var err error
		switch key {
		case "team_size_min":
			r.TeamSizeMin, err = decodeLooseInt(value)
		case "team_size_max":
			r.TeamSizeMax, err = decodeLooseInt(value)
		case "submission_deadline":
			r.SubmissionDeadline, err = decodeDeadline(value)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = value
		}
		if err != nil {
			return fmt.Errorf("requirements.%s: %w", key, err)
		}
	}
	return nil
}

func (r EventRequirements) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+3)
	for key, value := range r.Extra {
		out[key] = value
	}
	if r.TeamSizeMin != nil {
		out["team_size_min"] = *r.TeamSizeMin
	}
	if r.TeamSizeMax != nil {
		out["team_size_max"] = *r.TeamSizeMax
	}
	if r.SubmissionDeadline != nil {
		out["submission_deadline"] = r.SubmissionDeadline.UTC().Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// Scan implements sql.Scanner for the JSONB column.
func (r *EventRequirements) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = EventRequirements{}
		return nil
	case []byte:
		if len(v) == 0 {
			*r = EventRequirements{}
			return nil
		}
		return r.UnmarshalJSON(v)
	case string:
		return r.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported requirements type %T", src)
	}
}

// Value implements driver.Valuer.
func (r EventRequirements) Value() (driver.Value, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Operators type numbers into free-form forms, so "4" and 4 are both accepted.
func decodeLooseInt(raw json.RawMessage) (*int, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		n = json.Number(s)
	}
	i, err := n.Int64()
	if err != nil {
		return nil, err
	}
	v := int(i)
	return &v, nil
}

func decodeDeadline(raw json.RawMessage) (*time.Time, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("unrecognized time format")
}
