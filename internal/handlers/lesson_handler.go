package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/esllessons/backend/internal/models"
	"github.com/esllessons/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LessonService is the interface that wraps methods for lesson business logic.
type LessonService interface {
	// Method ListSummaries retrieve id, title and creation time of all lessons, newest first.
	//
	// If some error will occur during data retrieve, the error will be returned together with "nil" value.
	ListSummaries(ctx context.Context) ([]models.LessonListItem, error)
	// Method GetByID retrieve a lesson with its HTML content.
	//
	// If the lesson doesn't exist, an error containing "not found" will be returned.
	GetByID(ctx context.Context, id int64) (*models.Lesson, error)
	// Method Upload convert a DOCX upload and store it as a new lesson.
	//
	// Returns services.ErrUnsupportedFile or services.ErrEmptyFile for rejected files and
	// services.ErrConversionFailed when the document cannot be converted.
	Upload(ctx context.Context, fileName string, data []byte) (int64, error)
	// Method OpenOriginal return the lesson and a reader of its original uploaded file.
	//
	// The caller must close the reader.
	OpenOriginal(ctx context.Context, id int64) (*models.Lesson, io.ReadCloser, error)
}

// LessonHandler handles HTTP requests for lessons
type LessonHandler struct {
	BaseHandler
	service       LessonService
	maxUploadSize int64
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(svc LessonService, maxUploadSize int64, logger *zap.Logger) *LessonHandler {
	return &LessonHandler{
		BaseHandler:   BaseHandler{Logger: logger},
		service:       svc,
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRoutes registers all lesson handler routes
func (h *LessonHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/lessons", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Upload)
		r.Get("/{id}", h.GetByID)
		r.Get("/{id}/original", h.DownloadOriginal)
	})
}

// List handles GET /api/v1/lessons
// @Summary List lessons
// @Description Get id, title and creation time of all lessons, newest first
// @Tags lessons
// @Produce json
// @Success 200 {array} models.LessonListItem
// @Failure 500 {object} map[string]string
// @Router /api/v1/lessons [get]
func (h *LessonHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListSummaries(r.Context())
	if err != nil {
		h.Logger.Error("failed to list lessons", zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, "failed to get lessons")
		return
	}

	h.RespondJSON(w, http.StatusOK, items)
}

// GetByID handles GET /api/v1/lessons/{id}
// @Summary Get lesson
// @Description Get a lesson with its rendered HTML content
// @Tags lessons
// @Produce json
// @Param id path int true "Lesson ID"
// @Param If-None-Match header string false "ETag of a cached copy"
// @Success 200 {object} models.Lesson
// @Success 304 "Not modified"
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/lessons/{id} [get]
func (h *LessonHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	lesson, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			h.RespondError(w, http.StatusNotFound, "lesson not found")
			return
		}
		h.Logger.Error("failed to get lesson", zap.Error(err), zap.Int64("id", id))
		h.RespondError(w, http.StatusInternalServerError, "failed to get lesson")
		return
	}

	if lesson.ContentHash != "" {
		etag := fmt.Sprintf("%q", lesson.ContentHash)
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	h.RespondJSON(w, http.StatusOK, lesson)
}

// Upload handles POST /api/v1/lessons
// @Summary Upload lesson
// @Description Convert a DOCX file to HTML and store it as a new lesson
// @Tags lessons
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "DOCX lesson"
// @Success 201 {object} models.CreateLessonResponse
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/lessons [post]
func (h *LessonHandler) Upload(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := readUpload(r, h.maxUploadSize)
	if err != nil {
		var upErr *uploadError
		if errors.As(err, &upErr) {
			h.Logger.Info("rejected lesson upload", zap.Error(err))
			h.RespondError(w, upErr.status, upErr.message)
			return
		}
		h.RespondError(w, http.StatusBadRequest, "failed to parse request")
		return
	}

	id, err := h.service.Upload(r.Context(), fileName, data)
	if err != nil {
		status, message := uploadErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("failed to upload lesson", zap.Error(err))
		}
		h.RespondError(w, status, message)
		return
	}

	h.RespondJSON(w, http.StatusCreated, models.CreateLessonResponse{ID: id})
}

func uploadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrUnsupportedFile),
		errors.Is(err, services.ErrEmptyFile),
		strings.Contains(err.Error(), "file name is required"):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrConversionFailed):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// DownloadOriginal handles GET /api/v1/lessons/{id}/original
// @Summary Download original lesson file
// @Description Download the DOCX file the lesson was created from
// @Tags lessons
// @Produce application/octet-stream
// @Param id path int true "Lesson ID"
// @Success 200 "File content"
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/lessons/{id}/original [get]
func (h *LessonHandler) DownloadOriginal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	lesson, reader, err := h.service.OpenOriginal(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			h.RespondError(w, http.StatusNotFound, "file not found")
			return
		}
		h.Logger.Error("failed to open original file", zap.Error(err), zap.Int64("id", id))
		h.RespondError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", lesson.OriginalFile))

	if _, err := io.Copy(w, reader); err != nil {
		h.Logger.Error("failed to copy file to response", zap.Error(err))
	}
}

func (h *LessonHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.RespondError(w, http.StatusBadRequest, "invalid lesson id")
		return 0, false
	}
	return id, true
}
