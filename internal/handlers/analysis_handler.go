package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/esllessons/backend/internal/gemini"
	"github.com/esllessons/backend/internal/models"
	"github.com/esllessons/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AnalysisService is the interface that wraps explanation requests for a text span.
type AnalysisService interface {
	// Method Analyze request an explanation of "text" from the generative model.
	//
	// Returns services.ErrEmptySelection, services.ErrInvalidAnalysisType or services.ErrInvalidLanguage for rejected input.
	// API failures are wrapped so the message reported by the API can be recovered.
	Analyze(ctx context.Context, text string, analysisType models.AnalysisType, language models.TargetLanguage) (string, error)
}

// AnalysisHandler handles stateless analysis requests
type AnalysisHandler struct {
	BaseHandler
	service AnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(svc AnalysisService, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     svc,
	}
}

// RegisterRoutes registers all analysis handler routes
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/analysis", h.Analyze)
}

// Analyze handles POST /api/v1/analysis
// @Summary Analyze text
// @Description Get a definition, grammar explanation or sentence structure analysis of a text, optionally translated
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body models.AnalysisRequest true "Text, analysis type (definition, grammar, sentence_structure) and language (empty, Cantonese, Japanese)"
// @Success 200 {object} models.AnalysisResponse
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/analysis [post]
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Analyze(r.Context(), req.Text, req.Type, req.Language)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptySelection),
			errors.Is(err, services.ErrInvalidAnalysisType),
			errors.Is(err, services.ErrInvalidLanguage):
			h.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			message := "Analysis failed: " + err.Error()
			var apiErr *gemini.APIError
			if errors.As(err, &apiErr) {
				message = "Analysis failed: " + apiErr.Error()
			}
			h.RespondError(w, http.StatusBadGateway, message)
		}
		return
	}

	h.RespondJSON(w, http.StatusOK, models.AnalysisResponse{Result: result})
}
