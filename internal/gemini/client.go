// Package gemini is a minimal client for the Gemini generateContent REST endpoint
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/esllessons/backend/internal/config"
	"go.uber.org/zap"
)

const (
	maxResponseSize = 8 << 20
	apiKeyHeader    = "x-goog-api-key"
)

// ErrEmptyResponse is returned when the API answers without any candidate text
var ErrEmptyResponse = errors.New("empty response from generative model")

// APIError is a non-2xx answer of the API
type APIError struct {
	StatusCode int
	Code       int
	Status     string
	Message    string
}

// Error returns the message reported by the server
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPStatusCode returns the HTTP status of the failed response
func (e *APIError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// Client sends single generateContent requests
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	logger     *zap.Logger
}

// NewClient creates a new Gemini client
func NewClient(cfg config.GeminiConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateContent sends the prompt and returns the text of the first candidate
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = transportError(err)
		c.logger.Error("gemini request failed", zap.String("model", c.model), zap.Error(err))
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("gemini response",
		zap.String("model", c.model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp errorResponse
		if json.Unmarshal(raw, &errResp) == nil {
			apiErr.Code = errResp.Error.Code
			apiErr.Status = errResp.Error.Status
			apiErr.Message = errResp.Error.Message
		}
		c.logger.Warn("gemini returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("api_status", apiErr.Status),
			zap.String("message", apiErr.Message),
		)
		return "", apiErr
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	return out.Candidates[0].Content.Parts[0].Text, nil
}

// transportError drops the request URL from client errors so they can be shown to users
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("request timed out: %w", urlErr.Err)
		}
		return urlErr.Err
	}
	return err
}
