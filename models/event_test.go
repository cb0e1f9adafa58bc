package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventRequirementsUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantMin  int
		wantMax  int
		deadline string
		wantErr  bool
	}{
		{"empty", `{}`, DefaultTeamSizeMin, DefaultTeamSizeMax, "", false},
		{"numbers", `{"team_size_min":2,"team_size_max":4}`, 2, 4, "", false},
		{"numeric strings", `{"team_size_min":"3","team_size_max":"6"}`, 3, 6, "", false},
		{"nulls and blanks", `{"team_size_min":null,"team_size_max":"","submission_deadline":""}`, DefaultTeamSizeMin, DefaultTeamSizeMax, "", false},
		{"non positive falls back", `{"team_size_min":0,"team_size_max":-1}`, DefaultTeamSizeMin, DefaultTeamSizeMax, "", false},
		{"rfc3339 deadline", `{"submission_deadline":"2024-05-01T18:00:00+02:00"}`, 1, 5, "2024-05-01T16:00:00Z", false},
		{"form deadline", `{"submission_deadline":"2024-05-01T18:00"}`, 1, 5, "2024-05-01T18:00:00Z", false},
		{"date deadline", `{"submission_deadline":"2024-05-01"}`, 1, 5, "2024-05-01T00:00:00Z", false},
		{"bad size", `{"team_size_max":"lots"}`, 0, 0, "", true},
		{"bad deadline", `{"submission_deadline":"next friday"}`, 0, 0, "", true},
		{"not an object", `[1,2]`, 0, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r EventRequirements
			err := json.Unmarshal([]byte(tt.raw), &r)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Unmarshal(%s) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.raw, err)
			}
			if r.MinTeamSize() != tt.wantMin || r.MaxTeamSize() != tt.wantMax {
				t.Fatalf("sizes = %d..%d, want %d..%d", r.MinTeamSize(), r.MaxTeamSize(), tt.wantMin, tt.wantMax)
			}
			switch {
			case tt.deadline == "" && r.SubmissionDeadline != nil:
				t.Fatalf("deadline = %v, want none", r.SubmissionDeadline)
			case tt.deadline != "":
				if r.SubmissionDeadline == nil {
					t.Fatalf("deadline missing, want %s", tt.deadline)
				}
				if got := r.SubmissionDeadline.UTC().Format(time.RFC3339); got != tt.deadline {
					t.Fatalf("deadline = %s, want %s", got, tt.deadline)
				}
			}
		})
	}
}

func TestEventRequirementsRoundTripKeepsUnknownKeys(t *testing.T) {
	var r EventRequirements
	if err := r.Scan([]byte(`{"team_size_max":"4","theme":"climate","prizes":[1,2]}`)); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	value, err := r.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var back map[string]any
	if err := json.Unmarshal([]byte(value.(string)), &back); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	if back["theme"] != "climate" || back["team_size_max"] != float64(4) {
		t.Fatalf("stored = %v, want theme kept and size normalized", back)
	}
	if _, ok := back["team_size_min"]; ok {
		t.Fatal("unset team_size_min should not be written")
	}
}

func TestEventRequirementsScan(t *testing.T) {
	for _, src := range []any{nil, []byte{}, "{}"} {
		var r EventRequirements
		if err := r.Scan(src); err != nil {
			t.Fatalf("Scan(%#v) error = %v", src, err)
		}
		if r.TeamSizeMin != nil || r.TeamSizeMax != nil || r.SubmissionDeadline != nil {
			t.Fatalf("Scan(%#v) = %+v, want zero", src, r)
		}
	}

	var r EventRequirements
	if err := r.Scan(42); err == nil {
		t.Fatal("Scan(int) succeeded, want error")
	}
}

func TestRequirementsPolicy(t *testing.T) {
	deadline := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	two := 2
	r := EventRequirements{TeamSizeMin: &two, SubmissionDeadline: &deadline}

	if !r.RequiresTeam() {
		t.Fatal("min size 2 should require a team")
	}
	if (EventRequirements{}).RequiresTeam() {
		t.Fatal("default requirements should allow solo submissions")
	}
	if r.DeadlinePassed(deadline) {
		t.Fatal("deadline is inclusive")
	}
	if !r.DeadlinePassed(deadline.Add(time.Second)) {
		t.Fatal("deadline should have passed a second later")
	}
	if (EventRequirements{}).DeadlinePassed(time.Now()) {
		t.Fatal("no deadline never passes")
	}
}

func TestSubmissionStatusVisibility(t *testing.T) {
	tests := map[SubmissionStatus]bool{
		SubmissionDraft:     false,
		SubmissionSubmitted: true,
		SubmissionAccepted:  true,
		SubmissionWinner:    true,
		SubmissionRejected:  false,
	}
	for status, want := range tests {
		if got := status.PubliclyVisible(); got != want {
			t.Fatalf("%s.PubliclyVisible() = %v, want %v", status, got, want)
		}
	}
}

func TestEventVisible(t *testing.T) {
	tests := []struct {
		public, published, want bool
	}{
		{true, true, true},
		{true, false, false},
		{false, true, false},
	}
	for _, tt := range tests {
		e := &Event{IsPublic: tt.public, IsPublished: tt.published}
		if e.Visible() != tt.want {
			t.Fatalf("Visible(public=%v, published=%v) = %v", tt.public, tt.published, e.Visible())
		}
	}
}
