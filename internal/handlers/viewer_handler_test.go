package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/esllessons/backend/internal/config"
	"github.com/esllessons/backend/internal/models"
	"github.com/esllessons/backend/internal/viewer"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubLessonSource is a stub implementation of viewer.LessonSource
type stubLessonSource struct {
	lessons   []models.Lesson
	uploadErr error
}

func (s *stubLessonSource) List(ctx context.Context) ([]models.Lesson, error) {
	return s.lessons, nil
}

func (s *stubLessonSource) Upload(ctx context.Context, fileName string, data []byte) (int64, error) {
	if s.uploadErr != nil {
		return 0, s.uploadErr
	}
	id := int64(len(s.lessons) + 1)
	s.lessons = append([]models.Lesson{{ID: id, Title: fileName, Content: "<p>" + string(data) + "</p>"}}, s.lessons...)
	return id, nil
}

// stubAnalyzer is a stub implementation of viewer.Analyzer
type stubAnalyzer struct {
	result string
	err    error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, text string, analysisType models.AnalysisType, language models.TargetLanguage) (string, error) {
	return s.result, s.err
}

type viewerClient struct {
	t      *testing.T
	router chi.Router
	cookie *http.Cookie
}

func newViewerClient(t *testing.T, src *stubLessonSource, an *stubAnalyzer) *viewerClient {
	t.Helper()

	manager := viewer.NewManager(src, an, config.SessionConfig{TTL: time.Hour, MaxKeys: 10}, zap.NewNop())
	r := chi.NewRouter()
	NewViewerHandler(manager, 1024, false, zap.NewNop()).RegisterRoutes(r)
	return &viewerClient{t: t, router: r}
}

// do sends a request with the session cookie and returns the recorder
func (c *viewerClient) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *viewerClient) send(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()

	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.Name == SessionCookieName {
			c.cookie = ck
		}
	}
	return w
}

func (c *viewerClient) state(w *httptest.ResponseRecorder) models.ViewerState {
	c.t.Helper()

	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	var state models.ViewerState
	require.NoError(c.t, json.NewDecoder(w.Body).Decode(&state))
	return state
}

func viewerLessons() []models.Lesson {
	return []models.Lesson{
		{ID: 2, Title: "Newest", Content: "<p>The quick fox</p>"},
		{ID: 1, Title: "Older", Content: "<p>Hello world</p>"},
	}
}

func TestViewerHandler_SessionCookie(t *testing.T) {
	c := newViewerClient(t, &stubLessonSource{}, &stubAnalyzer{})

	c.state(c.do(http.MethodGet, "/api/v1/viewer", ""))
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)
	assert.Equal(t, "/", c.cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, c.cookie.SameSite)
	first := c.cookie.Value

	w := c.do(http.MethodGet, "/api/v1/viewer", "")
	c.state(w)
	assert.Empty(t, w.Result().Cookies(), "existing session should not be reissued")
	assert.Equal(t, first, c.cookie.Value)
}

func TestViewerHandler_LoadAndSelectLesson(t *testing.T) {
	c := newViewerClient(t, &stubLessonSource{lessons: viewerLessons()}, &stubAnalyzer{})

	state := c.state(c.do(http.MethodPost, "/api/v1/viewer/load", ""))
	assert.Len(t, state.Lessons, 2)
	assert.Equal(t, int64(2), state.SelectedLessonID)
	assert.Equal(t, "<p>The quick fox</p>", state.Content)
	assert.False(t, state.Busy)

	state = c.state(c.do(http.MethodPut, "/api/v1/viewer/lesson", `{"id":1}`))
	assert.Equal(t, int64(1), state.SelectedLessonID)
	assert.Equal(t, "<p>Hello world</p>", state.Content)

	w := c.do(http.MethodPut, "/api/v1/viewer/lesson", `{"id":42}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(http.MethodPut, "/api/v1/viewer/lesson", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewerHandler_SetLanguage(t *testing.T) {
	c := newViewerClient(t, &stubLessonSource{}, &stubAnalyzer{})

	state := c.state(c.do(http.MethodPut, "/api/v1/viewer/language", `{"language":"Cantonese"}`))
	assert.Equal(t, models.TargetLanguageCantonese, state.TargetLanguage)

	w := c.do(http.MethodPut, "/api/v1/viewer/language", `{"language":"French"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewerHandler_SelectionAndAnalysis(t *testing.T) {
	c := newViewerClient(t, &stubLessonSource{lessons: viewerLessons()}, &stubAnalyzer{result: "moving fast"})
	c.state(c.do(http.MethodPost, "/api/v1/viewer/load", ""))

	state := c.state(c.do(http.MethodPost, "/api/v1/viewer/selection", `{"node":0,"endNode":0,"start":4,"end":9}`))
	assert.True(t, state.PopupOpen)
	assert.Equal(t, "quick", state.SelectedText)
	assert.Equal(t, `<p>The <span class="highlight">quick</span> fox</p>`, state.Content)

	state = c.state(c.do(http.MethodPost, "/api/v1/viewer/analysis", `{"type":"definition"}`))
	assert.Equal(t, "moving fast", state.AnalysisResult)
	assert.Empty(t, state.ErrorMessage)
	assert.False(t, state.Busy)

	state = c.state(c.do(http.MethodDelete, "/api/v1/viewer/popup", ""))
	assert.False(t, state.PopupOpen)
	assert.Empty(t, state.AnalysisResult)
	assert.Contains(t, state.Content, "highlight")

	state = c.state(c.do(http.MethodDelete, "/api/v1/viewer/selection", ""))
	assert.Equal(t, "<p>The quick fox</p>", state.Content)
}

func TestViewerHandler_Select_Errors(t *testing.T) {
	c := newViewerClient(t, &stubLessonSource{lessons: viewerLessons()}, &stubAnalyzer{})
	c.state(c.do(http.MethodPost, "/api/v1/viewer/load", ""))

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{name: "invalid body", body: `{"node":`, expectedStatus: http.StatusBadRequest},
		{name: "node out of range", body: `{"node":5,"endNode":5,"start":0,"end":1}`, expectedStatus: http.StatusUnprocessableEntity},
		{name: "spans nodes", body: `{"node":0,"endNode":1,"start":0,"end":1}`, expectedStatus: http.StatusUnprocessableEntity},
		{name: "collapsed", body: `{"node":0,"endNode":0,"start":3,"end":3}`, expectedStatus: http.StatusUnprocessableEntity},
		{name: "whitespace only", body: `{"node":0,"endNode":0,"start":3,"end":4}`, expectedStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := c.do(http.MethodPost, "/api/v1/viewer/selection", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestViewerHandler_Analyze_Errors(t *testing.T) {
	t.Run("no selection", func(t *testing.T) {
		c := newViewerClient(t, &stubLessonSource{lessons: viewerLessons()}, &stubAnalyzer{})
		c.state(c.do(http.MethodPost, "/api/v1/viewer/load", ""))

		w := c.do(http.MethodPost, "/api/v1/viewer/analysis", `{"type":"grammar"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid type", func(t *testing.T) {
		c := newViewerClient(t, &stubLessonSource{lessons: viewerLessons()}, &stubAnalyzer{})

		w := c.do(http.MethodPost, "/api/v1/viewer/analysis", `{"type":"summary"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("api failure is reported in state", func(t *testing.T) {
		c := newViewerClient(t, &stubLessonSource{lessons: viewerLessons()}, &stubAnalyzer{err: errors.New("quota exceeded")})
		c.state(c.do(http.MethodPost, "/api/v1/viewer/load", ""))
		c.state(c.do(http.MethodPost, "/api/v1/viewer/selection", `{"node":0,"endNode":0,"start":4,"end":9}`))

		state := c.state(c.do(http.MethodPost, "/api/v1/viewer/analysis", `{"type":"grammar"}`))
		assert.Equal(t, "Analysis failed: quota exceeded", state.ErrorMessage)
		assert.Empty(t, state.AnalysisResult)
	})
}

func TestViewerHandler_Upload(t *testing.T) {
	t.Run("success shows uploaded lesson", func(t *testing.T) {
		c := newViewerClient(t, &stubLessonSource{lessons: viewerLessons()}, &stubAnalyzer{})
		c.state(c.do(http.MethodPost, "/api/v1/viewer/load", ""))

		body, contentType := multipartBody(t, "file", "unit.docx", []byte("new lesson"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/viewer/upload", body)
		req.Header.Set("Content-Type", contentType)

		state := c.state(c.send(req))
		assert.Len(t, state.Lessons, 3)
		assert.Equal(t, int64(3), state.SelectedLessonID)
		assert.Equal(t, "<p>new lesson</p>", state.Content)
	})

	t.Run("failure is reported in state", func(t *testing.T) {
		c := newViewerClient(t, &stubLessonSource{uploadErr: errors.New("cloud save failed: denied")}, &stubAnalyzer{})

		body, contentType := multipartBody(t, "file", "unit.docx", []byte("new lesson"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/viewer/upload", body)
		req.Header.Set("Content-Type", contentType)

		state := c.state(c.send(req))
		assert.Equal(t, "cloud save failed: denied", state.ErrorMessage)
	})

	t.Run("missing file", func(t *testing.T) {
		c := newViewerClient(t, &stubLessonSource{}, &stubAnalyzer{})

		body, contentType := multipartBody(t, "document", "unit.docx", []byte("new lesson"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/viewer/upload", body)
		req.Header.Set("Content-Type", contentType)

		w := c.send(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
