package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/event-participation/models"
	"github.com/lib/pq"
)

var (
	ErrMembershipNotFound     = errors.New("team membership not found")
	ErrActiveMembershipExists = errors.New("attendee already has an active team membership")
	ErrTeamLeaderExists       = errors.New("team already has an active leader")
	ErrMembershipTeamInvalid  = errors.New("membership team conflict or invalid")
)

type MembershipRepository interface {
	// Activate inserts an active membership, or reactivates a previous one
	// for the same (team, attendee) pair.
	Activate(ctx context.Context, exec SQLExecutor, m *models.TeamMembership) error
	GetActiveByAttendee(ctx context.Context, exec SQLExecutor, attendeeID int) (*models.TeamMembership, error)
	GetActive(ctx context.Context, exec SQLExecutor, teamID, attendeeID int) (*models.TeamMembership, error)
	CountActive(ctx context.Context, exec SQLExecutor, teamID int) (int, error)
	// ListActiveByTeams returns active memberships with attendee summaries,
	// ordered by joined_at then id.
	ListActiveByTeams(ctx context.Context, exec SQLExecutor, teamIDs []int) ([]*models.TeamMembership, error)
	SetRole(ctx context.Context, exec SQLExecutor, id int, role models.MemberRole) error
	MarkLeft(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
}

type postgresMembershipRepository struct {
	db *sql.DB
}

func NewPostgresMembershipRepository(db *sql.DB) MembershipRepository {
	return &postgresMembershipRepository{db: db}
}

func (r *postgresMembershipRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const selectMembershipSQL = `
	SELECT id, team_id, attendee_id, role, status, joined_at, left_at
	FROM team_memberships`

func scanMembership(row rowScanner, m *models.TeamMembership) error {
	return row.Scan(&m.ID, &m.TeamID, &m.AttendeeID, &m.Role, &m.Status, &m.JoinedAt, &m.LeftAt)
}

func (r *postgresMembershipRepository) Activate(ctx context.Context, exec SQLExecutor, m *models.TeamMembership) error {
	query := `
		INSERT INTO team_memberships (team_id, attendee_id, role, status, joined_at)
		VALUES ($1, $2, $3, 'active', NOW())
		ON CONFLICT (team_id, attendee_id) DO UPDATE
			SET role = EXCLUDED.role, status = 'active', joined_at = NOW(), left_at = NULL
			WHERE team_memberships.status = 'left'
		RETURNING id, status, joined_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, m.TeamID, m.AttendeeID, m.Role).
		Scan(&m.ID, &m.Status, &m.JoinedAt)
	if err != nil {
		// The conflicting row is still active, so the update was skipped.
		if errors.Is(err, sql.ErrNoRows) {
			return ErrActiveMembershipExists
		}
		switch code, constraint := pqViolation(err); code {
		case pqUniqueViolation:
			switch constraint {
			case "team_memberships_one_active_per_attendee":
				return ErrActiveMembershipExists
			case "team_memberships_one_leader_per_team":
				return ErrTeamLeaderExists
			}
		case pqForeignKeyViolation:
			if constraint == "team_memberships_team_id_fkey" {
				return ErrMembershipTeamInvalid
			}
		}
		return fmt.Errorf("failed to activate membership: %w", err)
	}
	m.LeftAt = nil
	return nil
}

func (r *postgresMembershipRepository) GetActiveByAttendee(ctx context.Context, exec SQLExecutor, attendeeID int) (*models.TeamMembership, error) {
	return r.findOne(ctx, exec, selectMembershipSQL+` WHERE attendee_id = $1 AND status = 'active'`, attendeeID)
}

func (r *postgresMembershipRepository) GetActive(ctx context.Context, exec SQLExecutor, teamID, attendeeID int) (*models.TeamMembership, error) {
	return r.findOne(ctx, exec, selectMembershipSQL+` WHERE team_id = $1 AND attendee_id = $2 AND status = 'active'`, teamID, attendeeID)
}

func (r *postgresMembershipRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.TeamMembership, error) {
	var m models.TeamMembership
	if err := scanMembership(r.getExecutor(exec).QueryRowContext(ctx, query, args...), &m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

func (r *postgresMembershipRepository) CountActive(ctx context.Context, exec SQLExecutor, teamID int) (int, error) {
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_memberships WHERE team_id = $1 AND status = 'active'`,
		teamID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active members: %w", err)
	}
	return count, nil
}

func (r *postgresMembershipRepository) ListActiveByTeams(ctx context.Context, exec SQLExecutor, teamIDs []int) ([]*models.TeamMembership, error) {
	if len(teamIDs) == 0 {
		return []*models.TeamMembership{}, nil
	}

	ids := make([]int64, len(teamIDs))
	for i, id := range teamIDs {
		ids[i] = int64(id)
	}

	query := `
		SELECT m.id, m.team_id, m.attendee_id, m.role, m.status, m.joined_at, m.left_at,
		       a.name, a.job_title, a.skills
		FROM team_memberships m
		JOIN attendees a ON a.id = m.attendee_id
		WHERE m.team_id = ANY($1) AND m.status = 'active'
		ORDER BY m.team_id, m.joined_at ASC, m.id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	memberships := make([]*models.TeamMembership, 0)
	for rows.Next() {
		var m models.TeamMembership
		a := &models.Attendee{}
		if err := rows.Scan(
			&m.ID, &m.TeamID, &m.AttendeeID, &m.Role, &m.Status, &m.JoinedAt, &m.LeftAt,
			&a.Name, &a.JobTitle, pq.Array(&a.Skills),
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		a.ID = m.AttendeeID
		m.Attendee = a
		memberships = append(memberships, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating membership rows: %w", err)
	}
	return memberships, nil
}

func (r *postgresMembershipRepository) SetRole(ctx context.Context, exec SQLExecutor, id int, role models.MemberRole) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE team_memberships SET role = $1 WHERE id = $2 AND status = 'active'`,
		role, id,
	)
	if err != nil {
		if code, constraint := pqViolation(err); code == pqUniqueViolation && constraint == "team_memberships_one_leader_per_team" {
			return ErrTeamLeaderExists
		}
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) MarkLeft(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE team_memberships SET status = 'left', left_at = $1 WHERE id = $2 AND status = 'active'`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark membership left: %w", err)
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}
