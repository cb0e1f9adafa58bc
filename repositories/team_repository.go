package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/event-participation/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound         = errors.New("team not found")
	ErrTeamNameConflict     = errors.New("team name conflict")
	ErrTeamJoinCodeConflict = errors.New("team join code conflict")
	ErrTeamJoinCodeInvalid  = errors.New("team join code does not match join type")
	ErrTeamHasSubmission    = errors.New("team still owns a submission")
)

type TeamFilter struct {
	LookingForMembers *bool
}

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	// LockByID and LockByJoinCode take a row lock held until exec's
	// transaction ends; concurrent joins on the same team serialize here.
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	LockByJoinCode(ctx context.Context, exec SQLExecutor, eventID int, code string) (*models.Team, error)
	Update(ctx context.Context, exec SQLExecutor, team *models.Team) error
	// Delete fails with ErrTeamHasSubmission while a submission references
	// the team.
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	ListByEvent(ctx context.Context, eventID int, filter TeamFilter) ([]*models.Team, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const selectTeamSQL = `
	SELECT id, event_id, name, description, skills_needed, max_members, join_type,
	       join_code, looking_for_members, logo_url, created_by, created_at, updated_at
	FROM teams`

func scanTeam(row rowScanner, t *models.Team) error {
	return row.Scan(
		&t.ID,
		&t.EventID,
		&t.Name,
		&t.Description,
		pq.Array(&t.SkillsNeeded),
		&t.MaxMembers,
		&t.JoinType,
		&t.JoinCode,
		&t.LookingForMembers,
		&t.LogoURL,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

func mapTeamWriteError(err error) error {
	switch code, constraint := pqViolation(err); code {
	case pqUniqueViolation:
		switch constraint {
		case "teams_event_name_key":
			return ErrTeamNameConflict
		case "teams_event_join_code_key":
			return ErrTeamJoinCodeConflict
		}
	case pqCheckViolation:
		if constraint == "chk_team_join_code" {
			return ErrTeamJoinCodeInvalid
		}
	}
	return err
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Team) error {
	query := `
		INSERT INTO teams (event_id, name, description, skills_needed, max_members, join_type,
		                   join_code, looking_for_members, logo_url, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.EventID,
		t.Name,
		t.Description,
		pq.Array(nullableSlice(t.SkillsNeeded)),
		t.MaxMembers,
		t.JoinType,
		t.JoinCode,
		t.LookingForMembers,
		t.LogoURL,
		t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if mapped := mapTeamWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	return r.findOne(ctx, r.db, selectTeamSQL+` WHERE id = $1`, id)
}

func (r *postgresTeamRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	return r.findOne(ctx, r.getExecutor(exec), selectTeamSQL+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresTeamRepository) LockByJoinCode(ctx context.Context, exec SQLExecutor, eventID int, code string) (*models.Team, error) {
	query := selectTeamSQL + ` WHERE event_id = $1 AND join_type = 'code' AND join_code = UPPER($2) FOR UPDATE`
	return r.findOne(ctx, r.getExecutor(exec), query, eventID, code)
}

func (r *postgresTeamRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Team, error) {
	var t models.Team
	if err := scanTeam(exec.QueryRowContext(ctx, query, args...), &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &t, nil
}

func (r *postgresTeamRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Team) error {
	query := `
		UPDATE teams SET
			name = $1,
			description = $2,
			skills_needed = $3,
			max_members = $4,
			join_type = $5,
			join_code = $6,
			looking_for_members = $7,
			logo_url = $8,
			updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.Name,
		t.Description,
		pq.Array(nullableSlice(t.SkillsNeeded)),
		t.MaxMembers,
		t.JoinType,
		t.JoinCode,
		t.LookingForMembers,
		t.LogoURL,
		t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTeamNotFound
		}
		if mapped := mapTeamWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		if code, _ := pqViolation(err); code == pqForeignKeyViolation {
			return ErrTeamHasSubmission
		}
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) ListByEvent(ctx context.Context, eventID int, filter TeamFilter) ([]*models.Team, error) {
	var queryBuilder strings.Builder
	args := []interface{}{eventID}

	queryBuilder.WriteString(selectTeamSQL)
	queryBuilder.WriteString(" WHERE event_id = $1")
	if filter.LookingForMembers != nil {
		args = append(args, *filter.LookingForMembers)
		queryBuilder.WriteString(fmt.Sprintf(" AND looking_for_members = $%d", len(args)))
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		var t models.Team
		if err := scanTeam(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		teams = append(teams, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team rows: %w", err)
	}
	return teams, nil
}
