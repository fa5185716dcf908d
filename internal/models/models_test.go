package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisType_IsValid(t *testing.T) {
	assert.True(t, AnalysisTypeDefinition.IsValid())
	assert.True(t, AnalysisTypeGrammar.IsValid())
	assert.True(t, AnalysisTypeSentenceStructure.IsValid())
	assert.False(t, AnalysisType("summary").IsValid())
	assert.False(t, AnalysisType("").IsValid())
}

func TestTargetLanguage_IsValid(t *testing.T) {
	assert.True(t, TargetLanguageNone.IsValid())
	assert.True(t, TargetLanguageCantonese.IsValid())
	assert.True(t, TargetLanguageJapanese.IsValid())
	assert.False(t, TargetLanguage("French").IsValid())
	assert.False(t, TargetLanguage("japanese").IsValid())
}

func TestLesson_ListItem(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	lesson := &Lesson{ID: 7, Title: "Unit 1", Content: "<p>x</p>", CreatedAt: created}

	assert.Equal(t, LessonListItem{ID: 7, Title: "Unit 1", CreatedAt: created}, lesson.ListItem())
}
