package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const uploadFormField = "file"

// BaseHandler provides common handler functionality
type BaseHandler struct {
	Logger *zap.Logger
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends an error JSON response
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into v
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// uploadError is a rejected multipart upload with the response status to use
type uploadError struct {
	status  int
	message string
	err     error
}

func (e *uploadError) Error() string {
	return e.message
}

func (e *uploadError) Unwrap() error {
	return e.err
}

// readUpload reads the "file" field of a multipart request
func readUpload(r *http.Request, maxSize int64) (string, []byte, error) {
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: "request body too large", err: err}
		}
		return "", nil, &uploadError{status: http.StatusBadRequest, message: "failed to parse request", err: err}
	}

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		return "", nil, &uploadError{status: http.StatusBadRequest, message: "file is required", err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return "", nil, &uploadError{status: http.StatusBadRequest, message: "failed to read file", err: err}
	}
	if int64(len(data)) > maxSize {
		return "", nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: "file too large"}
	}

	return header.Filename, data, nil
}
