package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/esllessons/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const staticPrefix = "/static"

type analysisButton struct {
	Value models.AnalysisType
	Label string
}

type languageOption struct {
	Value models.TargetLanguage
	Label string
}

type pageData struct {
	Title         string
	StaticPrefix  string
	Languages     []languageOption
	AnalysisTypes []analysisButton
}

// PageHandler serves the lesson viewer page and its static assets
type PageHandler struct {
	BaseHandler
	page   *template.Template
	static fs.FS
}

// NewPageHandler creates a new page handler.
// templates must contain index.html, static holds the files served under /static.
func NewPageHandler(templates fs.FS, static fs.FS, logger *zap.Logger) (*PageHandler, error) {
	page, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	sub, err := fs.Sub(static, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}

	return &PageHandler{
		BaseHandler: BaseHandler{Logger: logger},
		page:        page,
		static:      sub,
	}, nil
}

// RegisterRoutes registers the page and static asset routes
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Index)
	r.Handle(staticPrefix+"/*", http.StripPrefix(staticPrefix, http.FileServer(http.FS(h.static))))
}

// Index handles GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:        "ESL Lesson Viewer",
		StaticPrefix: staticPrefix,
		Languages: []languageOption{
			{Value: models.TargetLanguageCantonese, Label: "Cantonese (廣東話)"},
			{Value: models.TargetLanguageJapanese, Label: "Japanese (日本語)"},
		},
		AnalysisTypes: []analysisButton{
			{Value: models.AnalysisTypeDefinition, Label: "Definition"},
			{Value: models.AnalysisTypeGrammar, Label: "Grammar"},
			{Value: models.AnalysisTypeSentenceStructure, Label: "Sentence Structure"},
		},
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		h.Logger.Error("failed to render page", zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, "failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.Warn("failed to write page", zap.Error(err))
	}
}
