package models

import "time"

type JoinType string

const (
	JoinTypeOpen       JoinType = "open"
	JoinTypeCode       JoinType = "code"
	JoinTypeInviteOnly JoinType = "invite_only"
)

func (t JoinType) Valid() bool {
	switch t {
	case JoinTypeOpen, JoinTypeCode, JoinTypeInviteOnly:
		return true
	}
	return false
}

type MemberRole string

const (
	RoleLeader MemberRole = "leader"
	RoleMember MemberRole = "member"
)

type MembershipStatus string

const (
	MembershipActive MembershipStatus = "active"
	MembershipLeft   MembershipStatus = "left"
)

type Team struct {
	ID                int       `json:"id" db:"id"`
	EventID           int       `json:"event_id" db:"event_id"`
	Name              string    `json:"name" db:"name"`
	Description       *string   `json:"description,omitempty" db:"description"`
	SkillsNeeded      []string  `json:"skills_needed" db:"skills_needed"`
	MaxMembers        int       `json:"max_members" db:"max_members"`
	JoinType          JoinType  `json:"join_type" db:"join_type"`
	JoinCode          *string   `json:"join_code,omitempty" db:"join_code"`
	LookingForMembers bool      `json:"looking_for_members" db:"looking_for_members"`
	LogoURL           *string   `json:"logo_url,omitempty" db:"logo_url"`
	CreatedBy         int       `json:"created_by" db:"created_by"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`

	MemberCount int               `json:"member_count" db:"-"`
	Members     []*TeamMembership `json:"members,omitempty" db:"-"`
}

// IsOpen reports whether anyone may join without a code or invite.
func (t *Team) IsOpen() bool {
	return t.JoinType == JoinTypeOpen
}

// TeamMembership links an attendee to a team. Only active rows count toward
// capacity and leadership.
type TeamMembership struct {
	ID         int              `json:"id" db:"id"`
	TeamID     int              `json:"team_id" db:"team_id"`
	AttendeeID int              `json:"attendee_id" db:"attendee_id"`
	Role       MemberRole       `json:"role" db:"role"`
	Status     MembershipStatus `json:"status" db:"status"`
	JoinedAt   time.Time        `json:"joined_at" db:"joined_at"`
	LeftAt     *time.Time       `json:"left_at,omitempty" db:"left_at"`

	Attendee *Attendee `json:"attendee,omitempty" db:"-"`
}

func (m *TeamMembership) IsLeader() bool {
	return m.Role == RoleLeader && m.Status == MembershipActive
}
