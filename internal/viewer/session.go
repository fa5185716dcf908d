// Package viewer holds the lesson viewer state of each browser session
package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/esllessons/backend/internal/gemini"
	"github.com/esllessons/backend/internal/highlight"
	"github.com/esllessons/backend/internal/models"
	"github.com/esllessons/backend/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const loadFailedMessage = "Failed to load lessons from cloud"

var (
	// ErrBusy is returned when an upload or analysis of the session is still outstanding
	ErrBusy = errors.New("another request is in progress")
	// ErrLessonNotFound is returned when selecting a lesson that is not in the loaded list
	ErrLessonNotFound = errors.New("lesson not found")
)

// LessonSource is the interface that wraps lesson loading and intake used by the viewer
type LessonSource interface {
	// Method List retrieve all lessons with content, newest first.
	List(ctx context.Context) ([]models.Lesson, error)
	// Method Upload convert and store a DOCX upload and return the new lesson id.
	//
	// The returned error message is shown to the user as is.
	Upload(ctx context.Context, fileName string, data []byte) (int64, error)
}

// Analyzer is the interface that wraps explanation requests for selected text
type Analyzer interface {
	// Method Analyze request an explanation of "text".
	//
	// Unknown analysis types and languages are rejected before any request is sent.
	Analyze(ctx context.Context, text string, analysisType models.AnalysisType, language models.TargetLanguage) (string, error)
}

// Session is the viewer state of one browser session.
// At most one upload or analysis runs at a time; a second one is rejected with ErrBusy.
type Session struct {
	ID string

	lessonSource LessonSource
	analyzer     Analyzer
	logger       *zap.Logger

	inflight *semaphore.Weighted

	mu             sync.Mutex
	lessons        []models.Lesson
	selectedID     int64
	doc            *highlight.Document
	rawContent     string
	selectedText   string
	analysisResult string
	errorMessage   string
	language       models.TargetLanguage
	busy           bool
}

func newSession(id string, lessonSource LessonSource, analyzer Analyzer, logger *zap.Logger) *Session {
	return &Session{
		ID:           id,
		lessonSource: lessonSource,
		analyzer:     analyzer,
		logger:       logger.With(zap.String("session_id", id)),
		inflight:     semaphore.NewWeighted(1),
	}
}

// State returns a snapshot of the session
func (s *Session) State() models.ViewerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() models.ViewerState {
	items := make([]models.LessonListItem, 0, len(s.lessons))
	for i := range s.lessons {
		items = append(items, s.lessons[i].ListItem())
	}

	content := s.rawContent
	if s.doc != nil {
		content = s.doc.HTML()
	}

	return models.ViewerState{
		Lessons:          items,
		SelectedLessonID: s.selectedID,
		Content:          content,
		SelectedText:     s.selectedText,
		AnalysisResult:   s.analysisResult,
		ErrorMessage:     s.errorMessage,
		TargetLanguage:   s.language,
		PopupOpen:        s.selectedText != "",
		Busy:             s.busy,
	}
}

// acquire marks the session busy or reports ErrBusy
func (s *Session) acquire() error {
	if !s.inflight.TryAcquire(1) {
		return ErrBusy
	}
	s.mu.Lock()
	s.busy = true
	s.mu.Unlock()
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
	s.inflight.Release(1)
}

// exclusive runs fn while the session is busy.
// The slot is released before returning so snapshots taken afterwards are not busy.
func (s *Session) exclusive(fn func()) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	fn()
	return nil
}

// Load reloads the lesson list and shows the newest lesson
func (s *Session) Load(ctx context.Context) (models.ViewerState, error) {
	err := s.exclusive(func() {
		s.reload(ctx, 0)
	})
	return s.State(), err
}

// reload fetches the lessons and selects preferID, or the first lesson when it is absent
func (s *Session) reload(ctx context.Context, preferID int64) {
	lessons, err := s.lessonSource.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to load lessons", zap.Error(err))
		s.errorMessage = loadFailedMessage
		return
	}

	s.lessons = lessons
	if len(lessons) == 0 {
		s.selectedID = 0
		s.doc = nil
		s.rawContent = ""
		s.closePopupLocked()
		return
	}

	id := lessons[0].ID
	if preferID != 0 && s.indexOfLocked(preferID) >= 0 {
		id = preferID
	}
	s.showLocked(s.indexOfLocked(id))
}

func (s *Session) indexOfLocked(id int64) int {
	for i := range s.lessons {
		if s.lessons[i].ID == id {
			return i
		}
	}
	return -1
}

// showLocked displays the lesson at index i and closes the popup
func (s *Session) showLocked(i int) {
	lesson := s.lessons[i]
	s.selectedID = lesson.ID
	s.rawContent = lesson.Content

	doc, err := highlight.Parse(lesson.Content)
	if err != nil {
		s.logger.Warn("failed to parse lesson content", zap.Int64("lesson_id", lesson.ID), zap.Error(err))
		doc = nil
	}
	s.doc = doc
	s.closePopupLocked()
}

// SelectLesson shows the lesson with the given id
func (s *Session) SelectLesson(id int64) (models.ViewerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(id)
	if i < 0 {
		return s.stateLocked(), fmt.Errorf("%w: %d", ErrLessonNotFound, id)
	}
	s.showLocked(i)
	return s.stateLocked(), nil
}

// SetTargetLanguage sets the translation language of later analyses
func (s *Session) SetTargetLanguage(language models.TargetLanguage) (models.ViewerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !language.IsValid() {
		return s.stateLocked(), fmt.Errorf("%w: %s", services.ErrInvalidLanguage, language)
	}
	s.language = language
	return s.stateLocked(), nil
}

// Upload stores a DOCX lesson, reloads the list and shows the uploaded lesson.
// Failures are reported through the error message of the state.
func (s *Session) Upload(ctx context.Context, fileName string, data []byte) (models.ViewerState, error) {
	err := s.exclusive(func() {
		s.mu.Lock()
		s.errorMessage = ""
		s.mu.Unlock()

		id, err := s.lessonSource.Upload(ctx, fileName, data)
		if err != nil {
			s.logger.Warn("lesson upload failed", zap.String("file", fileName), zap.Error(err))
			s.mu.Lock()
			s.errorMessage = err.Error()
			s.mu.Unlock()
			return
		}

		s.reload(ctx, id)
	})
	return s.State(), err
}

// Select highlights a selection inside the shown lesson and opens the popup for it.
// Invalid selections return highlight.ErrInvalidSelection and leave the state untouched.
func (s *Session) Select(sel models.Selection) (models.ViewerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return s.stateLocked(), fmt.Errorf("%w: no lesson shown", highlight.ErrInvalidSelection)
	}

	r, err := s.doc.Resolve(sel)
	if err != nil {
		return s.stateLocked(), err
	}
	if strings.TrimSpace(r.Text()) == "" {
		return s.stateLocked(), fmt.Errorf("%w: empty selection", highlight.ErrInvalidSelection)
	}

	err = s.markLocked(r)
	return s.stateLocked(), err
}

// markLocked moves the highlight to r.
// When the new mark cannot be placed the previous one is already gone, so the popup closes too.
func (s *Session) markLocked(r *highlight.Range) error {
	if err := s.doc.Clear(r); err != nil {
		s.logger.Warn("failed to remove previous highlight", zap.Error(err))
	}

	text, err := s.doc.Mark(r)
	if err != nil {
		s.logger.Warn("failed to highlight selection", zap.Error(err))
		s.closePopupLocked()
		return err
	}

	s.selectedText = text
	s.analysisResult = ""
	return nil
}

// Analyze requests an explanation of the selected text.
// Without selected text nothing is sent. API failures are reported through the error message of the state.
// A result that arrives after the selection changed is dropped.
func (s *Session) Analyze(ctx context.Context, analysisType models.AnalysisType) (models.ViewerState, error) {
	if !analysisType.IsValid() {
		return s.State(), fmt.Errorf("%w: %s", services.ErrInvalidAnalysisType, analysisType)
	}

	s.mu.Lock()
	text := s.selectedText
	language := s.language
	s.mu.Unlock()

	if text == "" {
		return s.State(), services.ErrEmptySelection
	}

	err := s.exclusive(func() {
		s.mu.Lock()
		s.errorMessage = ""
		s.analysisResult = ""
		s.mu.Unlock()

		result, err := s.analyzer.Analyze(ctx, text, analysisType, language)

		s.mu.Lock()
		defer s.mu.Unlock()

		if err != nil {
			s.errorMessage = "Analysis failed: " + failureMessage(err)
			return
		}
		if s.selectedText != text {
			s.logger.Debug("dropping analysis for a stale selection")
			return
		}
		s.analysisResult = result
	})
	return s.State(), err
}

// failureMessage extracts the message reported by the generative API when there is one
func failureMessage(err error) string {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

// ClosePopup resets the analysis result and the selected text
func (s *Session) ClosePopup() models.ViewerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closePopupLocked()
	return s.stateLocked()
}

func (s *Session) closePopupLocked() {
	s.analysisResult = ""
	s.selectedText = ""
}

// Dismiss removes the highlight and closes the popup
func (s *Session) Dismiss() models.ViewerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc != nil {
		if err := s.doc.Clear(); err != nil {
			s.logger.Warn("failed to remove highlight", zap.Error(err))
		}
	}
	s.closePopupLocked()
	return s.stateLocked()
}
