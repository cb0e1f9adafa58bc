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
	ErrSubmissionNotFound      = errors.New("submission not found")
	ErrSubmissionNotDraft      = errors.New("submission is not a draft")
	ErrTeamSubmissionExists    = errors.New("team already has a submission")
	ErrSoloSubmissionExists    = errors.New("attendee already has a solo submission")
	ErrSubmissionOwnerInvalid  = errors.New("submission must have exactly one owner")
	ErrSubmissionParentInvalid = errors.New("submission event, team or attendee invalid")
)

// SubmissionViewer identifies whose drafts are visible in addition to the
// public ones. Zero value sees public rows only.
type SubmissionViewer struct {
	AttendeeID *int
	TeamID     *int
}

type SubmissionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, submission *models.Submission) error
	GetByID(ctx context.Context, id int) (*models.Submission, error)
	GetByTeam(ctx context.Context, exec SQLExecutor, eventID, teamID int) (*models.Submission, error)
	GetSolo(ctx context.Context, exec SQLExecutor, eventID, attendeeID int) (*models.Submission, error)
	// UpdateDraft and Submit only touch rows still in draft and return
	// ErrSubmissionNotDraft otherwise.
	UpdateDraft(ctx context.Context, exec SQLExecutor, submission *models.Submission) error
	Submit(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
	DeleteDraft(ctx context.Context, exec SQLExecutor, id int) error
	ListVisible(ctx context.Context, eventID int, viewer SubmissionViewer) ([]*models.Submission, error)
	AddFiles(ctx context.Context, exec SQLExecutor, submissionID int, files []models.SubmissionFile) ([]models.SubmissionFile, error)
	ListFiles(ctx context.Context, submissionIDs []int) ([]models.SubmissionFile, error)
}

type postgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &postgresSubmissionRepository{db: db}
}

func (r *postgresSubmissionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const selectSubmissionSQL = `
	SELECT s.id, s.event_id, s.team_id, s.attendee_id, s.created_by, s.title, s.tagline,
	       s.description, s.repository_url, s.demo_url, s.video_url, s.presentation_url,
	       s.thumbnail_url, s.tech_stack, s.status, s.submitted_at, s.created_at, s.updated_at,
	       t.name
	FROM submissions s
	LEFT JOIN teams t ON t.id = s.team_id`

func scanSubmission(row rowScanner, s *models.Submission) error {
	var teamName sql.NullString
	err := row.Scan(
		&s.ID,
		&s.EventID,
		&s.TeamID,
		&s.AttendeeID,
		&s.CreatedBy,
		&s.Title,
		&s.Tagline,
		&s.Description,
		&s.RepositoryURL,
		&s.DemoURL,
		&s.VideoURL,
		&s.PresentationURL,
		&s.ThumbnailURL,
		pq.Array(&s.TechStack),
		&s.Status,
		&s.SubmittedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
		&teamName,
	)
	if err != nil {
		return err
	}
	if s.TeamID != nil && teamName.Valid {
		s.Team = &models.Team{ID: *s.TeamID, EventID: s.EventID, Name: teamName.String}
	}
	s.Files = []models.SubmissionFile{}
	return nil
}

func (r *postgresSubmissionRepository) Create(ctx context.Context, exec SQLExecutor, s *models.Submission) error {
	query := `
		INSERT INTO submissions (event_id, team_id, attendee_id, created_by, title, tagline,
		                         description, repository_url, demo_url, video_url,
		                         presentation_url, thumbnail_url, tech_stack, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'draft')
		RETURNING id, status, created_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		s.EventID,
		s.TeamID,
		s.AttendeeID,
		s.CreatedBy,
		s.Title,
		s.Tagline,
		s.Description,
		s.RepositoryURL,
		s.DemoURL,
		s.VideoURL,
		s.PresentationURL,
		s.ThumbnailURL,
		pq.Array(nullableSlice(s.TechStack)),
	).Scan(&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		switch code, constraint := pqViolation(err); code {
		case pqUniqueViolation:
			switch constraint {
			case "submissions_one_per_team":
				return ErrTeamSubmissionExists
			case "submissions_one_solo_per_attendee":
				return ErrSoloSubmissionExists
			}
		case pqCheckViolation:
			if constraint == "chk_submission_owner" {
				return ErrSubmissionOwnerInvalid
			}
		case pqForeignKeyViolation:
			return ErrSubmissionParentInvalid
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *postgresSubmissionRepository) GetByID(ctx context.Context, id int) (*models.Submission, error) {
	return r.findOne(ctx, r.db, selectSubmissionSQL+` WHERE s.id = $1`, id)
}

func (r *postgresSubmissionRepository) GetByTeam(ctx context.Context, exec SQLExecutor, eventID, teamID int) (*models.Submission, error) {
	return r.findOne(ctx, r.getExecutor(exec), selectSubmissionSQL+` WHERE s.event_id = $1 AND s.team_id = $2`, eventID, teamID)
}

func (r *postgresSubmissionRepository) GetSolo(ctx context.Context, exec SQLExecutor, eventID, attendeeID int) (*models.Submission, error) {
	query := selectSubmissionSQL + ` WHERE s.event_id = $1 AND s.attendee_id = $2 AND s.team_id IS NULL`
	return r.findOne(ctx, r.getExecutor(exec), query, eventID, attendeeID)
}

func (r *postgresSubmissionRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Submission, error) {
	var s models.Submission
	if err := scanSubmission(exec.QueryRowContext(ctx, query, args...), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &s, nil
}

func (r *postgresSubmissionRepository) UpdateDraft(ctx context.Context, exec SQLExecutor, s *models.Submission) error {
	query := `
		UPDATE submissions SET
			title = $1,
			tagline = $2,
			description = $3,
			repository_url = $4,
			demo_url = $5,
			video_url = $6,
			presentation_url = $7,
			thumbnail_url = $8,
			tech_stack = $9,
			updated_at = NOW()
		WHERE id = $10 AND status = 'draft'
		RETURNING updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		s.Title,
		s.Tagline,
		s.Description,
		s.RepositoryURL,
		s.DemoURL,
		s.VideoURL,
		s.PresentationURL,
		s.ThumbnailURL,
		pq.Array(nullableSlice(s.TechStack)),
		s.ID,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSubmissionNotDraft
		}
		return fmt.Errorf("failed to update submission: %w", err)
	}
	return nil
}

func (r *postgresSubmissionRepository) Submit(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `
		UPDATE submissions SET status = 'submitted', submitted_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'draft'`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to submit submission: %w", err)
	}
	return checkAffectedRows(result, ErrSubmissionNotDraft)
}

func (r *postgresSubmissionRepository) DeleteDraft(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM submissions WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	return checkAffectedRows(result, ErrSubmissionNotDraft)
}

func (r *postgresSubmissionRepository) ListVisible(ctx context.Context, eventID int, viewer SubmissionViewer) ([]*models.Submission, error) {
	query := selectSubmissionSQL + `
		WHERE s.event_id = $1
		  AND (s.status IN ('submitted', 'accepted', 'winner')
		       OR (s.team_id IS NULL AND s.attendee_id = $2)
		       OR s.team_id = $3)
		ORDER BY s.created_at DESC, s.id DESC`

	rows, err := r.db.QueryContext(ctx, query, eventID, viewer.AttendeeID, viewer.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]*models.Submission, 0)
	for rows.Next() {
		var s models.Submission
		if err := scanSubmission(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		submissions = append(submissions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submission rows: %w", err)
	}
	return submissions, nil
}

func (r *postgresSubmissionRepository) AddFiles(ctx context.Context, exec SQLExecutor, submissionID int, files []models.SubmissionFile) ([]models.SubmissionFile, error) {
	query := `
		INSERT INTO submission_files (submission_id, name, url, size_bytes, content_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	executor := r.getExecutor(exec)
	added := make([]models.SubmissionFile, 0, len(files))
	for _, f := range files {
		f.SubmissionID = submissionID
		if err := executor.QueryRowContext(ctx, query,
			submissionID, f.Name, f.URL, f.SizeBytes, f.ContentType,
		).Scan(&f.ID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to add submission file: %w", err)
		}
		added = append(added, f)
	}
	return added, nil
}

func (r *postgresSubmissionRepository) ListFiles(ctx context.Context, submissionIDs []int) ([]models.SubmissionFile, error) {
	if len(submissionIDs) == 0 {
		return []models.SubmissionFile{}, nil
	}
	ids := make([]int64, len(submissionIDs))
	for i, id := range submissionIDs {
		ids[i] = int64(id)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, submission_id, name, url, size_bytes, content_type, created_at
		FROM submission_files
		WHERE submission_id = ANY($1)
		ORDER BY submission_id, id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission files: %w", err)
	}
	defer rows.Close()

	files := make([]models.SubmissionFile, 0)
	for rows.Next() {
		var f models.SubmissionFile
		if err := rows.Scan(&f.ID, &f.SubmissionID, &f.Name, &f.URL, &f.SizeBytes, &f.ContentType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submission file rows: %w", err)
	}
	return files, nil
}
