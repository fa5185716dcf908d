package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/esllessons/backend/internal/compression"
	"github.com/esllessons/backend/internal/models"
	"go.uber.org/zap"
)

type lessonRepository struct {
	db         *sql.DB
	compressor compression.Compressor
	logger     *zap.Logger
}

// NewLessonRepository creates a new instance of the LessonRepository interface
func NewLessonRepository(db *sql.DB, compressor compression.Compressor, logger *zap.Logger) *lessonRepository {
	return &lessonRepository{
		db:         db,
		compressor: compressor,
		logger:     logger,
	}
}

const lessonColumns = `id, title, content, content_hash, original_file, original_path, created_at`

// GetAll retrieves all lessons with decompressed content, newest first
func (r *lessonRepository) GetAll(ctx context.Context) ([]models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query lessons", zap.Error(err))
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var lessons []models.Lesson
	for rows.Next() {
		lesson, err := r.scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, *lesson)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return lessons, nil
}

// GetSummaries retrieves id, title and creation time of all lessons, newest first
func (r *lessonRepository) GetSummaries(ctx context.Context) ([]models.LessonListItem, error) {
	query := `
		SELECT id, title, created_at
		FROM lessons
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query lesson summaries", zap.Error(err))
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var items []models.LessonListItem
	for rows.Next() {
		var item models.LessonListItem
		if err := rows.Scan(&item.ID, &item.Title, &item.CreatedAt); err != nil {
			r.logger.Error("failed to scan lesson summary", zap.Error(err))
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// GetByID retrieves a single lesson by its id
func (r *lessonRepository) GetByID(ctx context.Context, id int64) (*models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE id = ?
	`

	lesson, err := r.scanLesson(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lesson not found")
		}
		return nil, err
	}

	return lesson, nil
}

// Create inserts the lesson inside a transaction.
// afterInsert receives the assigned id and returns the object store path of the original file;
// when it fails the insert is rolled back.
// On success lesson.ID and lesson.OriginalPath are populated.
func (r *lessonRepository) Create(ctx context.Context, lesson *models.Lesson, afterInsert func(ctx context.Context, id int64) (string, error)) error {
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}

	content, err := r.compressor.Compress([]byte(lesson.Content))
	if err != nil {
		return fmt.Errorf("failed to compress lesson content: %w", err)
	}
	if lesson.ContentHash == "" {
		lesson.ContentHash = compression.ContentHash([]byte(lesson.Content))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Warn("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	query := `
		INSERT INTO lessons (title, content, content_hash, original_file, original_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query, lesson.Title, content, lesson.ContentHash, lesson.OriginalFile, "", lesson.CreatedAt)
	if err != nil {
		r.logger.Error("failed to insert lesson", zap.Error(err))
		return fmt.Errorf("failed to insert lesson: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get lesson id: %w", err)
	}

	if afterInsert != nil {
		var path string
		path, err = afterInsert(ctx, id)
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `UPDATE lessons SET original_path = ? WHERE id = ?`, path, id); err != nil {
			r.logger.Error("failed to set original path", zap.Error(err))
			return fmt.Errorf("failed to set original path: %w", err)
		}
		lesson.OriginalPath = path
	}

	if err = tx.Commit(); err != nil {
		r.logger.Error("failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	lesson.ID = id
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *lessonRepository) scanLesson(row rowScanner) (*models.Lesson, error) {
	var lesson models.Lesson
	var content []byte
	if err := row.Scan(&lesson.ID, &lesson.Title, &content, &lesson.ContentHash,
		&lesson.OriginalFile, &lesson.OriginalPath, &lesson.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		r.logger.Error("failed to scan lesson", zap.Error(err))
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}

	html, err := r.compressor.Decompress(content)
	if err != nil {
		r.logger.Error("failed to decompress lesson content", zap.Int64("lesson_id", lesson.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to decompress lesson %d: %w", lesson.ID, err)
	}
	lesson.Content = string(html)

	return &lesson, nil
}
