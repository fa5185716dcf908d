package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/esllessons/backend/web"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPageFS() fstest.MapFS {
	return fstest.MapFS{
		"templates/index.html": {Data: []byte(`<title>{{.Title}}</title><script src="{{.StaticPrefix}}/app.js"></script>{{range .AnalysisTypes}}<button data-analysis="{{.Value}}">{{.Label}}</button>{{end}}{{range .Languages}}<option value="{{.Value}}">{{.Label}}</option>{{end}}`)},
		"static/app.js":        {Data: []byte(`console.log("viewer")`)},
	}
}

func TestPageHandler(t *testing.T) {
	fsys := testPageFS()
	h, err := NewPageHandler(fsys, fsys, zap.NewNop())
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	t.Run("index", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		body := w.Body.String()
		assert.Contains(t, body, `<script src="/static/app.js">`)
		assert.Contains(t, body, `data-analysis="sentence_structure"`)
		assert.Contains(t, body, `<option value="Cantonese">Cantonese (廣東話)</option>`)
		assert.Contains(t, body, `<option value="Japanese">Japanese (日本語)</option>`)
	})

	t.Run("static asset", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `console.log("viewer")`, w.Body.String())
	})

	t.Run("missing asset", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/missing.js", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPageHandler_EmbeddedPage(t *testing.T) {
	h, err := NewPageHandler(web.TemplatesFS, web.StaticFS, zap.NewNop())
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<option value="">-- Choose a Lesson --</option>`)
	assert.Contains(t, body, `<option value="Japanese">Japanese (日本語)</option>`)
	assert.Contains(t, body, `id="language-notice"`)
	assert.Contains(t, body, `id="upload-input"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "function setBusy(on)")
}

func TestNewPageHandler_MissingTemplate(t *testing.T) {
	fsys := fstest.MapFS{"static/app.js": {Data: []byte("x")}}

	_, err := NewPageHandler(fsys, fsys, zap.NewNop())
	assert.Error(t, err)
}

// mockPinger is a mock implementation of Pinger
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		expectedStatus int
	}{
		{name: "healthy", expectedStatus: http.StatusOK},
		{name: "database down", pingErr: errors.New("connection refused"), expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(&mockPinger{err: tt.pingErr}, zap.NewNop()).RegisterRoutes(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
