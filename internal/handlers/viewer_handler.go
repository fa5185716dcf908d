package handlers

import (
	"errors"
	"net/http"

	"github.com/esllessons/backend/internal/highlight"
	"github.com/esllessons/backend/internal/models"
	"github.com/esllessons/backend/internal/services"
	"github.com/esllessons/backend/internal/viewer"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionCookieName is the cookie carrying the viewer session id
const SessionCookieName = "esl_session"

// SessionStore is the interface that wraps access to viewer sessions.
type SessionStore interface {
	// Method GetOrCreate return the session with the given id.
	//
	// When no such session exists a new one is created and the boolean result is true.
	GetOrCreate(id string) (*viewer.Session, bool)
}

// ViewerHandler handles HTTP requests of the lesson viewer page
type ViewerHandler struct {
	BaseHandler
	sessions      SessionStore
	maxUploadSize int64
	secureCookie  bool
}

// NewViewerHandler creates a new viewer handler
func NewViewerHandler(sessions SessionStore, maxUploadSize int64, secureCookie bool, logger *zap.Logger) *ViewerHandler {
	return &ViewerHandler{
		BaseHandler:   BaseHandler{Logger: logger},
		sessions:      sessions,
		maxUploadSize: maxUploadSize,
		secureCookie:  secureCookie,
	}
}

// RegisterRoutes registers all viewer handler routes
func (h *ViewerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/viewer", func(r chi.Router) {
		r.Get("/", h.GetState)
		r.Post("/load", h.Load)
		r.Put("/lesson", h.SelectLesson)
		r.Put("/language", h.SetLanguage)
		r.Post("/upload", h.Upload)
		r.Post("/selection", h.Select)
		r.Delete("/selection", h.Dismiss)
		r.Post("/analysis", h.Analyze)
		r.Delete("/popup", h.ClosePopup)
	})
}

// session resolves the session of the request cookie, creating one when needed
func (h *ViewerHandler) session(w http.ResponseWriter, r *http.Request) *viewer.Session {
	var id string
	if c, err := r.Cookie(SessionCookieName); err == nil {
		id = c.Value
	}

	s, created := h.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

// respondState writes the state, or maps err to an error response
func (h *ViewerHandler) respondState(w http.ResponseWriter, state models.ViewerState, err error) {
	if err == nil {
		h.RespondJSON(w, http.StatusOK, state)
		return
	}

	switch {
	case errors.Is(err, viewer.ErrBusy):
		h.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, viewer.ErrLessonNotFound):
		h.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, highlight.ErrInvalidSelection):
		h.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrEmptySelection),
		errors.Is(err, services.ErrInvalidAnalysisType),
		errors.Is(err, services.ErrInvalidLanguage):
		h.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.Logger.Error("viewer request failed", zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// GetState handles GET /api/v1/viewer
// @Summary Get viewer state
// @Description Get the state of the viewer session bound to the session cookie
// @Tags viewer
// @Produce json
// @Success 200 {object} models.ViewerState
// @Router /api/v1/viewer [get]
func (h *ViewerHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, h.session(w, r).State(), nil)
}

// Load handles POST /api/v1/viewer/load
// @Summary Load lessons
// @Description Reload the lesson list and show the first lesson
// @Tags viewer
// @Produce json
// @Success 200 {object} models.ViewerState
// @Failure 409 {object} map[string]string
// @Router /api/v1/viewer/load [post]
func (h *ViewerHandler) Load(w http.ResponseWriter, r *http.Request) {
	state, err := h.session(w, r).Load(r.Context())
	h.respondState(w, state, err)
}

// SelectLesson handles PUT /api/v1/viewer/lesson
// @Summary Select lesson
// @Description Show a lesson from the loaded list
// @Tags viewer
// @Accept json
// @Produce json
// @Param request body models.SelectLessonRequest true "Lesson ID"
// @Success 200 {object} models.ViewerState
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/viewer/lesson [put]
func (h *ViewerHandler) SelectLesson(w http.ResponseWriter, r *http.Request) {
	var req models.SelectLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.session(w, r).SelectLesson(req.ID)
	h.respondState(w, state, err)
}

// SetLanguage handles PUT /api/v1/viewer/language
// @Summary Set translation language
// @Description Set the language explanations are translated to; empty disables translation
// @Tags viewer
// @Accept json
// @Produce json
// @Param request body models.SetLanguageRequest true "Language (empty, Cantonese, Japanese)"
// @Success 200 {object} models.ViewerState
// @Failure 400 {object} map[string]string
// @Router /api/v1/viewer/language [put]
func (h *ViewerHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req models.SetLanguageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.session(w, r).SetTargetLanguage(req.Language)
	h.respondState(w, state, err)
}

// Upload handles POST /api/v1/viewer/upload
// @Summary Upload lesson from the viewer
// @Description Upload a DOCX lesson and show it; conversion or storage failures are reported in errorMessage
// @Tags viewer
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "DOCX lesson"
// @Success 200 {object} models.ViewerState
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Router /api/v1/viewer/upload [post]
func (h *ViewerHandler) Upload(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)

	fileName, data, err := readUpload(r, h.maxUploadSize)
	if err != nil {
		var upErr *uploadError
		if errors.As(err, &upErr) {
			h.RespondError(w, upErr.status, upErr.message)
			return
		}
		h.RespondError(w, http.StatusBadRequest, "failed to parse request")
		return
	}

	state, err := s.Upload(r.Context(), fileName, data)
	h.respondState(w, state, err)
}

// Select handles POST /api/v1/viewer/selection
// @Summary Select text
// @Description Highlight a text span of the shown lesson and open the analysis popup
// @Tags viewer
// @Accept json
// @Produce json
// @Param request body models.Selection true "Text node indexes and UTF-16 offsets"
// @Success 200 {object} models.ViewerState
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/viewer/selection [post]
func (h *ViewerHandler) Select(w http.ResponseWriter, r *http.Request) {
	var sel models.Selection
	if err := decodeJSON(r, &sel); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.session(w, r).Select(sel)
	h.respondState(w, state, err)
}

// Dismiss handles DELETE /api/v1/viewer/selection
// @Summary Dismiss selection
// @Description Remove the highlight and close the popup
// @Tags viewer
// @Produce json
// @Success 200 {object} models.ViewerState
// @Router /api/v1/viewer/selection [delete]
func (h *ViewerHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, h.session(w, r).Dismiss(), nil)
}

// Analyze handles POST /api/v1/viewer/analysis
// @Summary Analyze selection
// @Description Explain the selected text; API failures are reported in errorMessage
// @Tags viewer
// @Accept json
// @Produce json
// @Param request body models.ViewerAnalysisRequest true "Analysis type (definition, grammar, sentence_structure)"
// @Success 200 {object} models.ViewerState
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/viewer/analysis [post]
func (h *ViewerHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.ViewerAnalysisRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.session(w, r).Analyze(r.Context(), req.Type)
	h.respondState(w, state, err)
}

// ClosePopup handles DELETE /api/v1/viewer/popup
// @Summary Close popup
// @Description Close the analysis popup, keeping the highlight
// @Tags viewer
// @Produce json
// @Success 200 {object} models.ViewerState
// @Router /api/v1/viewer/popup [delete]
func (h *ViewerHandler) ClosePopup(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, h.session(w, r).ClosePopup(), nil)
}
