package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/event-participation/models"
	"github.com/lib/pq"
)

var (
	ErrAttendeeNotFound      = errors.New("attendee not found")
	ErrAttendeeEmailConflict = errors.New("attendee email conflict")
	ErrAttendeeEventInvalid  = errors.New("attendee event conflict or invalid")
)

// AttendeeFilter narrows ListByEvent. Nil fields are not applied.
type AttendeeFilter struct {
	Status         *models.AttendeeStatus
	LookingForTeam *bool
}

type AttendeeRepository interface {
	Create(ctx context.Context, attendee *models.Attendee) error
	GetByID(ctx context.Context, id int) (*models.Attendee, error)
	GetByEmail(ctx context.Context, eventID int, email string) (*models.Attendee, error)
	UpdateProfile(ctx context.Context, attendee *models.Attendee) error
	TouchLastLogin(ctx context.Context, id int, at time.Time) error
	SetLookingForTeam(ctx context.Context, exec SQLExecutor, id int, looking bool) error
	ListByEvent(ctx context.Context, eventID int, filter AttendeeFilter) ([]*models.Attendee, error)
}

type postgresAttendeeRepository struct {
	db *sql.DB
}

func NewPostgresAttendeeRepository(db *sql.DB) AttendeeRepository {
	return &postgresAttendeeRepository{db: db}
}

const selectAttendeeSQL = `
	SELECT id, event_id, email, name, company, job_title, skills, bio,
	       linkedin_url, github_url, website_url, looking_for_team, password_hash,
	       status, last_login_at, created_at, updated_at
	FROM attendees`

func scanAttendee(row rowScanner, a *models.Attendee) error {
	return row.Scan(
		&a.ID,
		&a.EventID,
		&a.Email,
		&a.Name,
		&a.Company,
		&a.JobTitle,
		pq.Array(&a.Skills),
		&a.Bio,
		&a.LinkedInURL,
		&a.GitHubURL,
		&a.WebsiteURL,
		&a.LookingForTeam,
		&a.PasswordHash,
		&a.Status,
		&a.LastLoginAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
}

func (r *postgresAttendeeRepository) Create(ctx context.Context, a *models.Attendee) error {
	query := `
		INSERT INTO attendees (event_id, email, name, company, job_title, skills, bio,
		                       linkedin_url, github_url, website_url, looking_for_team,
		                       password_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		a.EventID,
		a.Email,
		a.Name,
		a.Company,
		a.JobTitle,
		pq.Array(nullableSlice(a.Skills)),
		a.Bio,
		a.LinkedInURL,
		a.GitHubURL,
		a.WebsiteURL,
		a.LookingForTeam,
		a.PasswordHash,
		a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		switch code, constraint := pqViolation(err); code {
		case pqUniqueViolation:
			if constraint == "attendees_event_email_key" {
				return ErrAttendeeEmailConflict
			}
		case pqForeignKeyViolation:
			if constraint == "attendees_event_id_fkey" {
				return ErrAttendeeEventInvalid
			}
		}
		return fmt.Errorf("failed to create attendee: %w", err)
	}
	return nil
}

func (r *postgresAttendeeRepository) GetByID(ctx context.Context, id int) (*models.Attendee, error) {
	return r.findOne(ctx, selectAttendeeSQL+` WHERE id = $1`, id)
}

func (r *postgresAttendeeRepository) GetByEmail(ctx context.Context, eventID int, email string) (*models.Attendee, error) {
	return r.findOne(ctx, selectAttendeeSQL+` WHERE event_id = $1 AND LOWER(email) = LOWER($2)`, eventID, email)
}

func (r *postgresAttendeeRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Attendee, error) {
	var a models.Attendee
	if err := scanAttendee(r.db.QueryRowContext(ctx, query, args...), &a); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendeeNotFound
		}
		return nil, fmt.Errorf("failed to get attendee: %w", err)
	}
	return &a, nil
}

func (r *postgresAttendeeRepository) UpdateProfile(ctx context.Context, a *models.Attendee) error {
	query := `
		UPDATE attendees SET
			name = $1,
			company = $2,
			job_title = $3,
			skills = $4,
			bio = $5,
			linkedin_url = $6,
			github_url = $7,
			website_url = $8,
			looking_for_team = $9,
			updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		a.Name,
		a.Company,
		a.JobTitle,
		pq.Array(nullableSlice(a.Skills)),
		a.Bio,
		a.LinkedInURL,
		a.GitHubURL,
		a.WebsiteURL,
		a.LookingForTeam,
		a.ID,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAttendeeNotFound
		}
		return fmt.Errorf("failed to update attendee profile: %w", err)
	}
	return nil
}

func (r *postgresAttendeeRepository) TouchLastLogin(ctx context.Context, id int, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE attendees SET last_login_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return checkAffectedRows(result, ErrAttendeeNotFound)
}

func (r *postgresAttendeeRepository) SetLookingForTeam(ctx context.Context, exec SQLExecutor, id int, looking bool) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx,
		`UPDATE attendees SET looking_for_team = $1, updated_at = NOW() WHERE id = $2`,
		looking, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update looking_for_team: %w", err)
	}
	return checkAffectedRows(result, ErrAttendeeNotFound)
}

func (r *postgresAttendeeRepository) ListByEvent(ctx context.Context, eventID int, filter AttendeeFilter) ([]*models.Attendee, error) {
	var queryBuilder strings.Builder
	args := []interface{}{eventID}

	queryBuilder.WriteString(selectAttendeeSQL)
	queryBuilder.WriteString(" WHERE event_id = $1")

	if filter.Status != nil {
		args = append(args, *filter.Status)
		queryBuilder.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	if filter.LookingForTeam != nil {
		args = append(args, *filter.LookingForTeam)
		queryBuilder.WriteString(fmt.Sprintf(" AND looking_for_team = $%d", len(args)))
	}
	queryBuilder.WriteString(" ORDER BY created_at ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	defer rows.Close()

	attendees := make([]*models.Attendee, 0)
	for rows.Next() {
		var a models.Attendee
		if err := scanAttendee(rows, &a); err != nil {
			return nil, fmt.Errorf("failed to scan attendee row: %w", err)
		}
		attendees = append(attendees, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendee rows: %w", err)
	}
	return attendees, nil
}
