package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/notify"
	"github.com/Dosada05/event-participation/repositories"
	"github.com/Dosada05/event-participation/telemetry"
	"github.com/Dosada05/event-participation/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	ActionEdit   = ""
	ActionSubmit = "submit"
)

type SubmissionService interface {
	CreateSubmission(ctx context.Context, event *models.Event, session *models.Session, input SubmissionInput) (*models.Submission, error)
	// UpdateSubmission edits a draft; with action "submit" it also moves the
	// draft to submitted.
	UpdateSubmission(ctx context.Context, event *models.Event, session *models.Session, id int, input SubmissionInput, action string) (*models.Submission, error)
	DeleteSubmission(ctx context.Context, event *models.Event, session *models.Session, id int) error
	// ListSubmissions returns the public submissions plus the caller's own
	// drafts. session may be nil.
	ListSubmissions(ctx context.Context, event *models.Event, session *models.Session) ([]*models.Submission, error)
	GetSubmission(ctx context.Context, event *models.Event, id int, session *models.Session) (*models.Submission, error)
}

// SubmissionInput carries optional fields; nil leaves a field unchanged.
type SubmissionInput struct {
	Title           *string                 `json:"title"`
	Tagline         *string                 `json:"tagline"`
	Description     *string                 `json:"description"`
	RepositoryURL   *string                 `json:"repository_url"`
	DemoURL         *string                 `json:"demo_url"`
	VideoURL        *string                 `json:"video_url"`
	PresentationURL *string                 `json:"presentation_url"`
	ThumbnailURL    *string                 `json:"thumbnail_url"`
	TechStack       *[]string               `json:"tech_stack"`
	Files           []models.SubmissionFile `json:"files"`
}

func (in SubmissionInput) hasFieldChanges() bool {
	return in.Title != nil || in.Tagline != nil || in.Description != nil ||
		in.RepositoryURL != nil || in.DemoURL != nil || in.VideoURL != nil ||
		in.PresentationURL != nil || in.ThumbnailURL != nil || in.TechStack != nil
}

// apply copies the set fields onto s. Optional text fields set to blank are
// cleared.
func (in SubmissionInput) apply(s *models.Submission) {
	if in.Title != nil {
		s.Title = strings.TrimSpace(*in.Title)
	}
	set := func(dst **string, src *string) {
		if src != nil {
			*dst = trimmedOrNil(src)
		}
	}
	set(&s.Tagline, in.Tagline)
	set(&s.Description, in.Description)
	set(&s.RepositoryURL, in.RepositoryURL)
	set(&s.DemoURL, in.DemoURL)
	set(&s.VideoURL, in.VideoURL)
	set(&s.PresentationURL, in.PresentationURL)
	set(&s.ThumbnailURL, in.ThumbnailURL)
	if in.TechStack != nil {
		s.TechStack = utils.CleanStrings(*in.TechStack)
	}
}

func cleanFiles(files []models.SubmissionFile) ([]models.SubmissionFile, error) {
	cleaned := make([]models.SubmissionFile, 0, len(files))
	for _, f := range files {
		f.Name = strings.TrimSpace(f.Name)
		f.URL = strings.TrimSpace(f.URL)
		if f.URL == "" || f.Name == "" {
			return nil, BadRequest("Each file needs a name and a url")
		}
		if f.SizeBytes < 0 || f.SizeBytes > MaxAttachmentSize {
			return nil, ErrFileTooLarge
		}
		cleaned = append(cleaned, f)
	}
	return cleaned, nil
}

type submissionService struct {
	tx             repositories.Transactor
	submissionRepo repositories.SubmissionRepository
	membershipRepo repositories.MembershipRepository
	publisher      notify.Publisher
	logger         *slog.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

func NewSubmissionService(
	tx repositories.Transactor,
	submissionRepo repositories.SubmissionRepository,
	membershipRepo repositories.MembershipRepository,
	publisher notify.Publisher,
	logger *slog.Logger,
) SubmissionService {
	if publisher == nil {
		publisher = notify.Nop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &submissionService{
		tx:             tx,
		submissionRepo: submissionRepo,
		membershipRepo: membershipRepo,
		publisher:      publisher,
		logger:         logger,
		tracer:         telemetry.Tracer("submissions"),
		now:            time.Now,
	}
}

// activeTeamID returns the caller's active team, or nil without one.
func (s *submissionService) activeTeamID(ctx context.Context, exec repositories.SQLExecutor, attendeeID int) (*int, error) {
	membership, err := s.membershipRepo.GetActiveByAttendee(ctx, exec, attendeeID)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active membership: %w", err)
	}
	return intPtr(membership.TeamID), nil
}

func (s *submissionService) CreateSubmission(ctx context.Context, event *models.Event, session *models.Session, input SubmissionInput) (submission *models.Submission, err error) {
	ctx, span := s.tracer.Start(ctx, "SubmissionService.CreateSubmission")
	defer func() { recordSubmissionOp("create", err); span.End() }()

	if err := sessionFor(event, session); err != nil {
		return nil, err
	}
	files, err := cleanFiles(input.Files)
	if err != nil {
		return nil, err
	}

	submission = &models.Submission{
		EventID:   event.ID,
		CreatedBy: session.AttendeeID,
		TechStack: []string{},
	}
	input.apply(submission)

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if event.Requirements.RequiresTeam() {
			teamID, err := s.activeTeamID(ctx, exec, session.AttendeeID)
			if err != nil {
				return err
			}
			if teamID == nil {
				return ErrTeamRequired
			}
			if _, err := s.submissionRepo.GetByTeam(ctx, exec, event.ID, *teamID); err == nil {
				return ErrTeamSubmissionExists
			} else if !errors.Is(err, repositories.ErrSubmissionNotFound) {
				return err
			}
			submission.TeamID = teamID
		} else {
			if _, err := s.submissionRepo.GetSolo(ctx, exec, event.ID, session.AttendeeID); err == nil {
				return ErrSoloSubmissionExists
			} else if !errors.Is(err, repositories.ErrSubmissionNotFound) {
				return err
			}
			submission.AttendeeID = intPtr(session.AttendeeID)
		}

		if err := s.submissionRepo.Create(ctx, exec, submission); err != nil {
			switch {
			case errors.Is(err, repositories.ErrTeamSubmissionExists):
				return ErrTeamSubmissionExists
			case errors.Is(err, repositories.ErrSoloSubmissionExists):
				return ErrSoloSubmissionExists
			case errors.Is(err, repositories.ErrSubmissionParentInvalid):
				return ErrTeamNotFound
			}
			return err
		}

		added, err := s.submissionRepo.AddFiles(ctx, exec, submission.ID, files)
		if err != nil {
			return err
		}
		submission.Files = added
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("submission.id", submission.ID), attribute.Bool("submission.team", submission.IsTeamOwned()))
	return submission, nil
}

// canEdit reports whether the caller owns the submission directly or through
// an active team membership.
func (s *submissionService) canEdit(ctx context.Context, submission *models.Submission, attendeeID int) (bool, error) {
	if !submission.IsTeamOwned() {
		return submission.AttendeeID != nil && *submission.AttendeeID == attendeeID, nil
	}
	_, err := s.membershipRepo.GetActive(ctx, nil, *submission.TeamID, attendeeID)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return true, nil
}

func (s *submissionService) canDelete(ctx context.Context, submission *models.Submission, attendeeID int) (bool, error) {
	if !submission.IsTeamOwned() {
		return submission.AttendeeID != nil && *submission.AttendeeID == attendeeID, nil
	}
	membership, err := s.membershipRepo.GetActive(ctx, nil, *submission.TeamID, attendeeID)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return membership.IsLeader(), nil
}

func (s *submissionService) loadForEvent(ctx context.Context, event *models.Event, id int) (*models.Submission, error) {
	submission, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	if submission.EventID != event.ID {
		return nil, ErrSubmissionNotFound
	}
	return submission, nil
}

func (s *submissionService) UpdateSubmission(ctx context.Context, event *models.Event, session *models.Session, id int, input SubmissionInput, action string) (submission *models.Submission, err error) {
	op := "update"
	if action == ActionSubmit {
		op = "submit"
	}
	ctx, span := s.tracer.Start(ctx, "SubmissionService.UpdateSubmission", trace.WithAttributes(
		attribute.Int("submission.id", id),
		attribute.String("submission.action", op),
	))
	defer func() { recordSubmissionOp(op, err); span.End() }()

	if err := sessionFor(event, session); err != nil {
		return nil, err
	}
	if action != ActionEdit && action != ActionSubmit {
		return nil, ErrUnknownAction
	}
	files, err := cleanFiles(input.Files)
	if err != nil {
		return nil, err
	}

	submission, err = s.loadForEvent(ctx, event, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canEdit(ctx, submission, session.AttendeeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubmissionForbidden
	}

	now := s.now().UTC()
	if action == ActionSubmit {
		if !submission.IsDraft() {
			return nil, ErrAlreadySubmitted
		}
		input.apply(submission)
		if submission.Title == "" {
			return nil, ErrTitleRequired
		}
		if event.Requirements.DeadlinePassed(now) {
			return nil, ErrDeadlinePassed
		}
	} else {
		if !submission.IsDraft() {
			return nil, ErrSubmissionLocked
		}
		input.apply(submission)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if input.hasFieldChanges() {
			if err := s.submissionRepo.UpdateDraft(ctx, exec, submission); err != nil {
				if errors.Is(err, repositories.ErrSubmissionNotDraft) {
					if action == ActionSubmit {
						return ErrAlreadySubmitted
					}
					return ErrSubmissionLocked
				}
				return err
			}
		}
		if _, err := s.submissionRepo.AddFiles(ctx, exec, submission.ID, files); err != nil {
			return err
		}
		if action == ActionSubmit {
			if err := s.submissionRepo.Submit(ctx, exec, submission.ID, now); err != nil {
				if errors.Is(err, repositories.ErrSubmissionNotDraft) {
					return ErrAlreadySubmitted
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if action == ActionSubmit {
		ev := notify.Event{
			Type:         notify.SubmissionSubmitted,
			EventID:      event.ID,
			EventSlug:    event.Slug,
			AttendeeID:   session.AttendeeID,
			TeamID:       submission.TeamID,
			SubmissionID: intPtr(submission.ID),
			Data:         map[string]any{"title": submission.Title},
		}
		s.publisher.Publish(ev)
	}

	return s.GetSubmission(ctx, event, submission.ID, session)
}

func (s *submissionService) DeleteSubmission(ctx context.Context, event *models.Event, session *models.Session, id int) (err error) {
	defer func() { recordSubmissionOp("delete", err) }()

	if err := sessionFor(event, session); err != nil {
		return err
	}
	submission, err := s.loadForEvent(ctx, event, id)
	if err != nil {
		return err
	}
	ok, err := s.canDelete(ctx, submission, session.AttendeeID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSubmissionDeleteForbidden
	}
	if !submission.IsDraft() {
		return ErrOnlyDraftDeletable
	}

	if err := s.submissionRepo.DeleteDraft(ctx, nil, submission.ID); err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotDraft) {
			// Gone or no longer a draft; a concurrent delete looks the same.
			if _, getErr := s.submissionRepo.GetByID(ctx, submission.ID); errors.Is(getErr, repositories.ErrSubmissionNotFound) {
				return ErrSubmissionNotFound
			}
			return ErrOnlyDraftDeletable
		}
		return err
	}
	return nil
}

// viewerFor resolves whose drafts the caller may see. Sessions for another
// event see public rows only.
func (s *submissionService) viewerFor(ctx context.Context, event *models.Event, session *models.Session) (repositories.SubmissionViewer, error) {
	var viewer repositories.SubmissionViewer
	if session == nil || session.EventID != event.ID {
		return viewer, nil
	}
	teamID, err := s.activeTeamID(ctx, nil, session.AttendeeID)
	if err != nil {
		return viewer, err
	}
	viewer.AttendeeID = intPtr(session.AttendeeID)
	viewer.TeamID = teamID
	return viewer, nil
}

func (s *submissionService) attachFiles(ctx context.Context, submissions []*models.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	ids := make([]int, len(submissions))
	byID := make(map[int]*models.Submission, len(submissions))
	for i, sub := range submissions {
		ids[i] = sub.ID
		byID[sub.ID] = sub
		if sub.Files == nil {
			sub.Files = []models.SubmissionFile{}
		}
	}
	files, err := s.submissionRepo.ListFiles(ctx, ids)
	if err != nil {
		return err
	}
	for _, f := range files {
		if sub, ok := byID[f.SubmissionID]; ok {
			sub.Files = append(sub.Files, f)
		}
	}
	return nil
}

func (s *submissionService) ListSubmissions(ctx context.Context, event *models.Event, session *models.Session) ([]*models.Submission, error) {
	viewer, err := s.viewerFor(ctx, event, session)
	if err != nil {
		return nil, err
	}
	submissions, err := s.submissionRepo.ListVisible(ctx, event.ID, viewer)
	if err != nil {
		return nil, err
	}
	if err := s.attachFiles(ctx, submissions); err != nil {
		return nil, err
	}
	return submissions, nil
}

func (s *submissionService) GetSubmission(ctx context.Context, event *models.Event, id int, session *models.Session) (*models.Submission, error) {
	submission, err := s.loadForEvent(ctx, event, id)
	if err != nil {
		return nil, err
	}

	if !submission.Status.PubliclyVisible() {
		viewer, err := s.viewerFor(ctx, event, session)
		if err != nil {
			return nil, err
		}
		var owns bool
		if submission.IsTeamOwned() {
			owns = viewer.TeamID != nil && *viewer.TeamID == *submission.TeamID
		} else {
			owns = viewer.AttendeeID != nil && submission.AttendeeID != nil && *viewer.AttendeeID == *submission.AttendeeID
		}
		if !owns {
			return nil, ErrSubmissionNotFound
		}
	}

	if err := s.attachFiles(ctx, []*models.Submission{submission}); err != nil {
		return nil, err
	}
	return submission, nil
}
