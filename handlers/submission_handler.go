package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/event-participation/middleware"
	"github.com/Dosada05/event-participation/services"
)

// multipartOverhead leaves room for boundaries and headers around the file.
const multipartOverhead = 1 << 20

type SubmissionHandler struct {
	submissionService services.SubmissionService
	uploadService     services.UploadService
	responder
}

func NewSubmissionHandler(submissionService services.SubmissionService, uploadService services.UploadService, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		uploadService:     uploadService,
		responder:         responder{logger: logger},
	}
}

// ListSubmissions godoc
// @Summary Public submissions plus the caller's drafts
// @Tags submissions
// @Produce json
// @Param slug path string true "Event slug"
// @Success 200 {object} map[string]interface{}
// @Router /events/public/{slug}/submissions [get]
func (h *SubmissionHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	submissions, err := h.submissionService.ListSubmissions(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"submissions": submissions})
}

// CreateSubmission godoc
// @Summary Start a draft submission for the caller or the caller's team
// @Tags submissions
// @Accept json
// @Produce json
// @Param slug path string true "Event slug"
// @Param input body services.SubmissionInput true "Draft fields"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /events/public/{slug}/submissions [post]
func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var input services.SubmissionInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	submission, err := h.submissionService.CreateSubmission(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusCreated, jsonResponse{"submission": submission})
}

func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	submission, err := h.submissionService.GetSubmission(ctx, middleware.EventFromContext(ctx), id, middleware.SessionFromContext(ctx))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"submission": submission})
}

// UpdateSubmission godoc
// @Summary Edit a draft, or submit it with action "submit"
// @Tags submissions
// @Accept json
// @Produce json
// @Param slug path string true "Event slug"
// @Param id path int true "Submission ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /events/public/{slug}/submissions/{id} [patch]
func (h *SubmissionHandler) UpdateSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	var input struct {
		Action string `json:"action"`
		services.SubmissionInput
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	submission, err := h.submissionService.UpdateSubmission(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), id, input.SubmissionInput, input.Action)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"submission": submission})
}

func (h *SubmissionHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	if err := h.submissionService.DeleteSubmission(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), id); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"success": true})
}

// UploadAttachment godoc
// @Summary Upload a submission attachment
// @Tags submissions
// @Accept multipart/form-data
// @Produce json
// @Param slug path string true "Event slug"
// @Param file formData file true "Attachment, at most 10MB"
// @Success 201 {object} services.UploadedFile
// @Failure 400 {object} map[string]string "Missing, too large or disallowed file"
// @Security BearerAuth
// @Router /events/public/{slug}/submissions/upload [post]
func (h *SubmissionHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAttachmentSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesError *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesError):
			h.mapServiceErrorToHTTP(w, r, services.ErrFileTooLarge)
		case errors.Is(err, http.ErrMissingFile):
			h.mapServiceErrorToHTTP(w, r, services.ErrFileRequired)
		default:
			h.badRequestResponse(w, r, err)
		}
		return
	}
	defer file.Close()

	ctx := r.Context()
	uploaded, err := h.uploadService.UploadAttachment(ctx, middleware.EventFromContext(ctx), middleware.SessionFromContext(ctx), services.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusCreated, uploaded)
}
