package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/esllessons/backend/internal/models"
	"github.com/esllessons/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockLessonService is a mock implementation of LessonService
type mockLessonService struct {
	items      []models.LessonListItem
	lesson     *models.Lesson
	original   string
	uploadID   int64
	listErr    error
	getErr     error
	uploadErr  error
	openErr    error
	uploadName string
	uploadData []byte
}

func (m *mockLessonService) ListSummaries(ctx context.Context) ([]models.LessonListItem, error) {
	return m.items, m.listErr
}

func (m *mockLessonService) GetByID(ctx context.Context, id int64) (*models.Lesson, error) {
	return m.lesson, m.getErr
}

func (m *mockLessonService) Upload(ctx context.Context, fileName string, data []byte) (int64, error) {
	m.uploadName = fileName
	m.uploadData = data
	return m.uploadID, m.uploadErr
}

func (m *mockLessonService) OpenOriginal(ctx context.Context, id int64) (*models.Lesson, io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, nil, m.openErr
	}
	return m.lesson, io.NopCloser(strings.NewReader(m.original)), nil
}

func newLessonRouter(svc LessonService, maxUploadSize int64) chi.Router {
	r := chi.NewRouter()
	NewLessonHandler(svc, maxUploadSize, zap.NewNop()).RegisterRoutes(r)
	return r
}

// multipartBody builds a multipart form with one file field
func multipartBody(t *testing.T, field, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body["error"]
}

func TestLessonHandler_List(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		svc            *mockLessonService
		expectedStatus int
		expectedCount  int
	}{
		{
			name: "success",
			svc: &mockLessonService{items: []models.LessonListItem{
				{ID: 2, Title: "Unit 2", CreatedAt: created},
				{ID: 1, Title: "Unit 1", CreatedAt: created},
			}},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:           "empty list",
			svc:            &mockLessonService{items: []models.LessonListItem{}},
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:           "service error",
			svc:            &mockLessonService{listErr: errors.New("db down")},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons", nil)
			w := httptest.NewRecorder()

			newLessonRouter(tt.svc, 1024).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var items []models.LessonListItem
				require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
				assert.Len(t, items, tt.expectedCount)
			}
		})
	}
}

func TestLessonHandler_GetByID(t *testing.T) {
	lesson := &models.Lesson{ID: 3, Title: "Unit 3", Content: "<p>x</p>", ContentHash: "abc"}

	tests := []struct {
		name           string
		path           string
		ifNoneMatch    string
		svc            *mockLessonService
		expectedStatus int
	}{
		{
			name:           "success",
			path:           "/api/v1/lessons/3",
			svc:            &mockLessonService{lesson: lesson},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "not modified",
			path:           "/api/v1/lessons/3",
			ifNoneMatch:    `"abc"`,
			svc:            &mockLessonService{lesson: lesson},
			expectedStatus: http.StatusNotModified,
		},
		{
			name:           "stale etag",
			path:           "/api/v1/lessons/3",
			ifNoneMatch:    `"old"`,
			svc:            &mockLessonService{lesson: lesson},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid id",
			path:           "/api/v1/lessons/abc",
			svc:            &mockLessonService{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "zero id",
			path:           "/api/v1/lessons/0",
			svc:            &mockLessonService{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not found",
			path:           "/api/v1/lessons/9",
			svc:            &mockLessonService{getErr: fmt.Errorf("lesson not found")},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "service error",
			path:           "/api/v1/lessons/9",
			svc:            &mockLessonService{getErr: errors.New("db down")},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.ifNoneMatch != "" {
				req.Header.Set("If-None-Match", tt.ifNoneMatch)
			}
			w := httptest.NewRecorder()

			newLessonRouter(tt.svc, 1024).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, `"abc"`, w.Header().Get("ETag"))
				var got models.Lesson
				require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
				assert.Equal(t, lesson.Content, got.Content)
			}
		})
	}
}

func TestLessonHandler_Upload(t *testing.T) {
	tests := []struct {
		name           string
		field          string
		data           []byte
		maxSize        int64
		svc            *mockLessonService
		expectedStatus int
		errorContains  string
	}{
		{
			name:           "success",
			field:          "file",
			data:           []byte("docx bytes"),
			maxSize:        1024,
			svc:            &mockLessonService{uploadID: 5},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing file field",
			field:          "other",
			data:           []byte("docx bytes"),
			maxSize:        1024,
			svc:            &mockLessonService{},
			expectedStatus: http.StatusBadRequest,
			errorContains:  "file is required",
		},
		{
			name:           "file too large",
			field:          "file",
			data:           bytes.Repeat([]byte("x"), 2048),
			maxSize:        1024,
			svc:            &mockLessonService{},
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:           "unsupported file",
			field:          "file",
			data:           []byte("docx bytes"),
			maxSize:        1024,
			svc:            &mockLessonService{uploadErr: fmt.Errorf("%w: .pdf", services.ErrUnsupportedFile)},
			expectedStatus: http.StatusBadRequest,
			errorContains:  ".pdf",
		},
		{
			name:           "empty file",
			field:          "file",
			data:           []byte("docx bytes"),
			maxSize:        1024,
			svc:            &mockLessonService{uploadErr: services.ErrEmptyFile},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "conversion failed",
			field:          "file",
			data:           []byte("docx bytes"),
			maxSize:        1024,
			svc:            &mockLessonService{uploadErr: fmt.Errorf("%w: broken", services.ErrConversionFailed)},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "cloud save failed",
			field:          "file",
			data:           []byte("docx bytes"),
			maxSize:        1024,
			svc:            &mockLessonService{uploadErr: errors.New("cloud save failed: bucket missing")},
			expectedStatus: http.StatusInternalServerError,
			errorContains:  "cloud save failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.field, "unit.docx", tt.data)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/lessons", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()

			newLessonRouter(tt.svc, tt.maxSize).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusCreated {
				var resp models.CreateLessonResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, int64(5), resp.ID)
				assert.Equal(t, "unit.docx", tt.svc.uploadName)
				assert.Equal(t, tt.data, tt.svc.uploadData)
				return
			}
			if tt.errorContains != "" {
				assert.Contains(t, decodeError(t, w), tt.errorContains)
			}
		})
	}
}

func TestLessonHandler_Upload_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lessons", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	newLessonRouter(&mockLessonService{}, 1024).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "failed to parse request", decodeError(t, w))
}

func TestLessonHandler_DownloadOriginal(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &mockLessonService{
			lesson:   &models.Lesson{ID: 3, OriginalFile: "unit 3.docx"},
			original: "docx bytes",
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons/3/original", nil)
		w := httptest.NewRecorder()

		newLessonRouter(svc, 1024).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="unit 3.docx"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "docx bytes", w.Body.String())
	})

	t.Run("not found", func(t *testing.T) {
		svc := &mockLessonService{openErr: errors.New("original file not found")}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons/3/original", nil)
		w := httptest.NewRecorder()

		newLessonRouter(svc, 1024).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("store error", func(t *testing.T) {
		svc := &mockLessonService{openErr: errors.New("failed to open object: timeout")}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons/3/original", nil)
		w := httptest.NewRecorder()

		newLessonRouter(svc, 1024).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
