package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/esllessons/backend/internal/compression"
	"github.com/esllessons/backend/internal/models"
	"github.com/esllessons/backend/internal/storage"
	"go.uber.org/zap"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var (
	// ErrUnsupportedFile is returned for uploads whose extension the converter does not accept
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrEmptyFile is returned for uploads without content
	ErrEmptyFile = errors.New("file is empty")
	// ErrConversionFailed is returned when the uploaded document cannot be converted to HTML
	ErrConversionFailed = errors.New("document conversion failed")
)

// LessonRepository is the interface that wraps methods for Lessons table data access
type LessonRepository interface {
	// Method GetAll retrieve all lessons with their HTML content, newest first.
	//
	// If some error will occur during data retrieve, the error will be returned together with "nil" value.
	GetAll(ctx context.Context) ([]models.Lesson, error)
	// Method GetSummaries retrieve id, title and creation time of all lessons, newest first.
	//
	// Please reference GetAll method for more information about error values.
	GetSummaries(ctx context.Context) ([]models.LessonListItem, error)
	// Method GetByID retrieve a lesson by its ID.
	//
	// If the lesson doesn't exist, an error containing "not found" will be returned.
	GetByID(ctx context.Context, id int64) (*models.Lesson, error)
	// Method Create insert a new lesson inside a transaction.
	//
	// "afterInsert" is called with the assigned id before the transaction is committed and returns the object store path of the original file.
	// If "afterInsert" returns an error the insert is rolled back and the error is returned.
	// On success the ID and OriginalPath fields of "lesson" are populated.
	Create(ctx context.Context, lesson *models.Lesson, afterInsert func(ctx context.Context, id int64) (string, error)) error
}

// DocumentConverter is the interface that wraps conversion of uploaded documents to HTML
type DocumentConverter interface {
	// Method Convert convert the document buffer to an HTML fragment.
	//
	// The same input always produces the same output.
	Convert(ctx context.Context, data []byte) (string, error)
	// Method Name return the converter name used in logs.
	Name() string
	// Method SupportedExtensions return lowercase file extensions (with the leading dot) accepted by Convert.
	SupportedExtensions() []string
}

// ObjectStore is the interface that wraps storage of original uploaded files
type ObjectStore interface {
	// Method Put store "body" under "key". "size" may be -1 when unknown.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Method Open return a reader of the object stored under "key".
	//
	// If the object doesn't exist, an error containing "not found" will be returned.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Method Delete remove the object stored under "key". A missing object is not an error.
	Delete(ctx context.Context, key string) error
}

type lessonService struct {
	repo         LessonRepository
	converter    DocumentConverter
	store        ObjectStore
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewLessonService creates a new lesson service
func NewLessonService(repo LessonRepository, converter DocumentConverter, store ObjectStore, storeTimeout time.Duration, logger *zap.Logger) *lessonService {
	return &lessonService{
		repo:         repo,
		converter:    converter,
		store:        store,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// List retrieves all lessons with content, newest first
func (s *lessonService) List(ctx context.Context) ([]models.Lesson, error) {
	lessons, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to get lessons", zap.Error(err))
		return nil, fmt.Errorf("failed to get lessons: %w", err)
	}
	return lessons, nil
}

// ListSummaries retrieves the lesson list without content
func (s *lessonService) ListSummaries(ctx context.Context) ([]models.LessonListItem, error) {
	items, err := s.repo.GetSummaries(ctx)
	if err != nil {
		s.logger.Error("failed to get lesson summaries", zap.Error(err))
		return nil, fmt.Errorf("failed to get lessons: %w", err)
	}
	if items == nil {
		items = []models.LessonListItem{}
	}
	return items, nil
}

// GetByID retrieves a lesson by its ID
func (s *lessonService) GetByID(ctx context.Context, id int64) (*models.Lesson, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid lesson id")
	}

	lesson, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get lesson by id", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return lesson, nil
}

// Upload converts a DOCX upload, stores the lesson and its original file, and returns the new lesson id.
//
// The title is the file name without its extension.
// The original file is stored under lessons/{id}/{fileName}; when that fails no lesson is created.
func (s *lessonService) Upload(ctx context.Context, fileName string, data []byte) (int64, error) {
	name := storage.CleanFileName(fileName)
	if name == "" {
		return 0, fmt.Errorf("file name is required")
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(s.converter.SupportedExtensions(), ext) {
		return 0, fmt.Errorf("%w: %s, must be one of %s", ErrUnsupportedFile, name, strings.Join(s.converter.SupportedExtensions(), ", "))
	}
	if len(data) == 0 {
		return 0, ErrEmptyFile
	}

	content, err := s.converter.Convert(ctx, data)
	if err != nil {
		s.logger.Warn("failed to convert document",
			zap.String("converter", s.converter.Name()),
			zap.String("file", name),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	title := strings.TrimSpace(name[:len(name)-len(ext)])
	if title == "" {
		title = name
	}

	lesson := &models.Lesson{
		Title:        title,
		Content:      content,
		ContentHash:  compression.ContentHash([]byte(content)),
		OriginalFile: name,
		CreatedAt:    time.Now().UTC(),
	}

	var storedKey string
	err = s.repo.Create(ctx, lesson, func(ctx context.Context, id int64) (string, error) {
		key := storage.LessonKey(id, name)

		putCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()

		if err := s.store.Put(putCtx, key, bytes.NewReader(data), int64(len(data)), docxContentType); err != nil {
			return "", fmt.Errorf("failed to store original file: %w", err)
		}
		storedKey = key
		return key, nil
	})
	if err != nil {
		s.logger.Error("failed to save lesson", zap.String("file", name), zap.Error(err))
		if storedKey != "" {
			s.removeOriginal(ctx, storedKey)
		}
		return 0, fmt.Errorf("cloud save failed: %w", err)
	}

	s.logger.Info("lesson uploaded",
		zap.Int64("id", lesson.ID),
		zap.String("title", lesson.Title),
		zap.Int("size", len(data)),
		zap.String("path", lesson.OriginalPath),
	)

	return lesson.ID, nil
}

// removeOriginal deletes an original file whose lesson row was rolled back
func (s *lessonService) removeOriginal(ctx context.Context, key string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	if err := s.store.Delete(delCtx, key); err != nil {
		s.logger.Error("failed to remove orphaned original file", zap.String("path", key), zap.Error(err))
		return
	}
	s.logger.Info("removed orphaned original file", zap.String("path", key))
}

// OpenOriginal returns the lesson and a reader of its original uploaded file
func (s *lessonService) OpenOriginal(ctx context.Context, id int64) (*models.Lesson, io.ReadCloser, error) {
	lesson, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if lesson.OriginalPath == "" {
		return nil, nil, fmt.Errorf("original file not found")
	}

	rc, err := s.store.Open(ctx, lesson.OriginalPath)
	if err != nil {
		s.logger.Error("failed to open original file", zap.Int64("id", id), zap.Error(err))
		return nil, nil, fmt.Errorf("failed to open original file: %w", err)
	}
	return lesson, rc, nil
}
