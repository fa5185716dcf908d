package models

import "time"

// Lesson represents an uploaded lesson with its rendered HTML content
type Lesson struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	ContentHash  string    `json:"contentHash"`
	OriginalFile string    `json:"originalFile"`
	OriginalPath string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LessonListItem represents a lesson in list responses and the lesson selector
type LessonListItem struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListItem returns the list representation of the lesson
func (l *Lesson) ListItem() LessonListItem {
	return LessonListItem{
		ID:        l.ID,
		Title:     l.Title,
		CreatedAt: l.CreatedAt,
	}
}

// CreateLessonResponse represents a response to a lesson upload
type CreateLessonResponse struct {
	ID int64 `json:"id"`
}
