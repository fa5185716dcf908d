package models

// Selection addresses a text span inside rendered lesson content.
// Node and EndNode are zero-based indexes of text nodes in document order,
// Start and End are offsets in UTF-16 code units as reported by browser ranges.
type Selection struct {
	Node    int `json:"node"`
	EndNode int `json:"endNode"`
	Start   int `json:"start"`
	End     int `json:"end"`
}

// ViewerState is a snapshot of one browser session of the lesson viewer
type ViewerState struct {
	Lessons          []LessonListItem `json:"lessons"`
	SelectedLessonID int64            `json:"selectedLessonId,omitempty"`
	Content          string           `json:"content"`
	SelectedText     string           `json:"selectedText"`
	AnalysisResult   string           `json:"analysisResult"`
	ErrorMessage     string           `json:"errorMessage"`
	TargetLanguage   TargetLanguage   `json:"targetLanguage"`
	PopupOpen        bool             `json:"popupOpen"`
	Busy             bool             `json:"busy"`
}

// SelectLessonRequest represents a lesson selector change
type SelectLessonRequest struct {
	ID int64 `json:"id"`
}

// SetLanguageRequest represents a language selector change
type SetLanguageRequest struct {
	Language TargetLanguage `json:"language"`
}

// ViewerAnalysisRequest represents a popup button press
type ViewerAnalysisRequest struct {
	Type AnalysisType `json:"type"`
}
