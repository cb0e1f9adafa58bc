package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/event-participation/models"
)

var (
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteTokenConflict = errors.New("invite token conflict")
	ErrInviteTeamInvalid   = errors.New("invite team conflict or invalid")
)

type InviteRepository interface {
	// Create expects ExpiresAt to be set by the caller.
	Create(ctx context.Context, invite *models.Invite) error
	// GetByToken returns the invite whether or not it has expired.
	GetByToken(ctx context.Context, exec SQLExecutor, token string) (*models.Invite, error)
	ListByTeamID(ctx context.Context, teamID int) ([]*models.Invite, error)
	// Delete reports ErrInviteNotFound when the invite is already gone.
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type postgresInviteRepository struct {
	db *sql.DB
}

func NewPostgresInviteRepository(db *sql.DB) InviteRepository {
	return &postgresInviteRepository{db: db}
}

func (r *postgresInviteRepository) Create(ctx context.Context, invite *models.Invite) error {
	query := `
		INSERT INTO team_invites (team_id, token, created_by, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		invite.TeamID,
		invite.Token,
		invite.CreatedBy,
		invite.ExpiresAt,
	).Scan(&invite.ID, &invite.CreatedAt)

	if err != nil {
		switch code, constraint := pqViolation(err); code {
		case pqUniqueViolation:
			if constraint == "team_invites_token_key" {
				return ErrInviteTokenConflict
			}
		case pqForeignKeyViolation:
			if constraint == "team_invites_team_id_fkey" {
				return ErrInviteTeamInvalid
			}
		}
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (r *postgresInviteRepository) GetByToken(ctx context.Context, exec SQLExecutor, token string) (*models.Invite, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT id, team_id, token, created_by, expires_at, created_at
		FROM team_invites
		WHERE token = $1`

	invite := &models.Invite{}
	err := exec.QueryRowContext(ctx, query, token).Scan(
		&invite.ID,
		&invite.TeamID,
		&invite.Token,
		&invite.CreatedBy,
		&invite.ExpiresAt,
		&invite.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return invite, nil
}

func (r *postgresInviteRepository) ListByTeamID(ctx context.Context, teamID int) ([]*models.Invite, error) {
	query := `
		SELECT id, team_id, token, created_by, expires_at, created_at
		FROM team_invites
		WHERE team_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	invites := make([]*models.Invite, 0)
	for rows.Next() {
		var invite models.Invite
		if scanErr := rows.Scan(
			&invite.ID,
			&invite.TeamID,
			&invite.Token,
			&invite.CreatedBy,
			&invite.ExpiresAt,
			&invite.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan invite row: %w", scanErr)
		}
		invites = append(invites, &invite)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite rows: %w", err)
	}
	return invites, nil
}

func (r *postgresInviteRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `DELETE FROM team_invites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	return checkAffectedRows(result, ErrInviteNotFound)
}

func (r *postgresInviteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM team_invites WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}
	return result.RowsAffected()
}
