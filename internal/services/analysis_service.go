package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/esllessons/backend/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrEmptySelection is returned when there is no text to analyze
	ErrEmptySelection = errors.New("no text selected")
	// ErrInvalidAnalysisType is returned for unknown analysis types
	ErrInvalidAnalysisType = errors.New("invalid analysis type")
	// ErrInvalidLanguage is returned for unsupported target languages
	ErrInvalidLanguage = errors.New("invalid target language")
)

var promptTemplates = map[models.AnalysisType]string{
	models.AnalysisTypeDefinition:        `Define "%s" concisely in simple English, place brackets around the words you are defining`,
	models.AnalysisTypeGrammar:           `Explain the grammar in: "%s" using simple terms`,
	models.AnalysisTypeSentenceStructure: `Analyze the sentence structure of: "%s" simply`,
}

const translationRules = `1. Never include the word "translation" in the response
2. Keep bracketed terms in English: (Example) → (Example)
3. Provide direct translation after colon: (Example): *翻訳*
4. No pronunciation guides
5. No introductory phrases like "Here is..."
6. Maintain original definition structure`

// ContentGenerator is the interface that wraps a single request to a generative language model
type ContentGenerator interface {
	// Method GenerateContent send the prompt and return the generated text.
	//
	// API failures are returned as errors whose message is the one reported by the API.
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// BuildPrompt builds the model prompt for the selected text.
//
// The text is inserted verbatim. With a target language the translation instructions are appended.
func BuildPrompt(text string, analysisType models.AnalysisType, language models.TargetLanguage) (string, error) {
	tmpl, ok := promptTemplates[analysisType]
	if !ok {
		return "", fmt.Errorf("%w: %s, must be 'definition', 'grammar' or 'sentence_structure'", ErrInvalidAnalysisType, analysisType)
	}
	if !language.IsValid() {
		return "", fmt.Errorf("%w: %s, must be empty, 'Cantonese' or 'Japanese'", ErrInvalidLanguage, language)
	}

	prompt := fmt.Sprintf(tmpl, text)
	if language != models.TargetLanguageNone {
		prompt += fmt.Sprintf(". Then translate the explanation to %s using simple terms. Follow these rules strictly:\n%s", language, translationRules)
	}
	return prompt, nil
}

type analysisService struct {
	generator ContentGenerator
	logger    *zap.Logger
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(generator ContentGenerator, logger *zap.Logger) *analysisService {
	return &analysisService{
		generator: generator,
		logger:    logger,
	}
}

// Analyze requests an explanation of the selected text
func (s *analysisService) Analyze(ctx context.Context, text string, analysisType models.AnalysisType, language models.TargetLanguage) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptySelection
	}

	prompt, err := BuildPrompt(text, analysisType, language)
	if err != nil {
		return "", err
	}

	result, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		s.logger.Error("failed to generate analysis",
			zap.String("type", string(analysisType)),
			zap.String("language", string(language)),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to generate analysis: %w", err)
	}

	s.logger.Debug("analysis generated",
		zap.String("type", string(analysisType)),
		zap.Int("text_length", len(text)),
		zap.Int("result_length", len(result)),
	)
	return result, nil
}
