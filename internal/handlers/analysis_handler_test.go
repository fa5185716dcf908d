package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/esllessons/backend/internal/gemini"
	"github.com/esllessons/backend/internal/models"
	"github.com/esllessons/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockAnalysisService is a mock implementation of AnalysisService
type mockAnalysisService struct {
	result       string
	err          error
	text         string
	analysisType models.AnalysisType
	language     models.TargetLanguage
}

func (m *mockAnalysisService) Analyze(ctx context.Context, text string, analysisType models.AnalysisType, language models.TargetLanguage) (string, error) {
	m.text = text
	m.analysisType = analysisType
	m.language = language
	return m.result, m.err
}

func TestAnalysisHandler_Analyze(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		svc            *mockAnalysisService
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "success",
			body:           `{"text":"quick","type":"definition","language":"Japanese"}`,
			svc:            &mockAnalysisService{result: "fast"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid body",
			body:           `{"text":`,
			svc:            &mockAnalysisService{},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name:           "empty text",
			body:           `{"text":" ","type":"definition"}`,
			svc:            &mockAnalysisService{err: services.ErrEmptySelection},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "no text selected",
		},
		{
			name:           "invalid type",
			body:           `{"text":"quick","type":"summary"}`,
			svc:            &mockAnalysisService{err: fmt.Errorf("%w: summary", services.ErrInvalidAnalysisType)},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid language",
			body:           `{"text":"quick","type":"grammar","language":"French"}`,
			svc:            &mockAnalysisService{err: fmt.Errorf("%w: French", services.ErrInvalidLanguage)},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "api failure",
			body: `{"text":"quick","type":"grammar"}`,
			svc: &mockAnalysisService{err: fmt.Errorf("failed to generate analysis: %w",
				&gemini.APIError{StatusCode: http.StatusTooManyRequests, Message: "Resource has been exhausted"})},
			expectedStatus: http.StatusBadGateway,
			expectedError:  "Analysis failed: Resource has been exhausted",
		},
		{
			name:           "other failure",
			body:           `{"text":"quick","type":"grammar"}`,
			svc:            &mockAnalysisService{err: errors.New("connection refused")},
			expectedStatus: http.StatusBadGateway,
			expectedError:  "Analysis failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewAnalysisHandler(tt.svc, zap.NewNop()).RegisterRoutes(r)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var resp models.AnalysisResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "fast", resp.Result)
				assert.Equal(t, "quick", tt.svc.text)
				assert.Equal(t, models.AnalysisTypeDefinition, tt.svc.analysisType)
				assert.Equal(t, models.TargetLanguageJapanese, tt.svc.language)
				return
			}
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeError(t, w))
			}
		})
	}
}
