package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/event-participation/models"
)

var ErrEventNotFound = errors.New("event not found")

// EventRepository is read-only: events are managed by the organization side.
type EventRepository interface {
	GetBySlug(ctx context.Context, slug string) (*models.Event, error)
	GetByID(ctx context.Context, id int) (*models.Event, error)
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

const selectEventSQL = `
	SELECT id, tenant_id, slug, name, is_public, is_published, requirements, created_at
	FROM events`

func (r *postgresEventRepository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return r.findOne(ctx, selectEventSQL+` WHERE slug = $1`, slug)
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	return r.findOne(ctx, selectEventSQL+` WHERE id = $1`, id)
}

func (r *postgresEventRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Event, error) {
	var e models.Event
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&e.ID,
		&e.TenantID,
		&e.Slug,
		&e.Name,
		&e.IsPublic,
		&e.IsPublished,
		&e.Requirements,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}
