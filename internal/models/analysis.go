package models

// AnalysisType represents one of the fixed analysis request categories
type AnalysisType string

const (
	AnalysisTypeDefinition        AnalysisType = "definition"
	AnalysisTypeGrammar           AnalysisType = "grammar"
	AnalysisTypeSentenceStructure AnalysisType = "sentence_structure"
)

// IsValid reports whether the analysis type is one of the known categories
func (t AnalysisType) IsValid() bool {
	switch t {
	case AnalysisTypeDefinition, AnalysisTypeGrammar, AnalysisTypeSentenceStructure:
		return true
	default:
		return false
	}
}

// TargetLanguage represents the language an explanation is translated to.
// The empty value means no translation.
type TargetLanguage string

const (
	TargetLanguageNone      TargetLanguage = ""
	TargetLanguageCantonese TargetLanguage = "Cantonese"
	TargetLanguageJapanese  TargetLanguage = "Japanese"
)

// IsValid reports whether the target language is supported
func (l TargetLanguage) IsValid() bool {
	switch l {
	case TargetLanguageNone, TargetLanguageCantonese, TargetLanguageJapanese:
		return true
	default:
		return false
	}
}

// AnalysisRequest represents a stateless analysis request
type AnalysisRequest struct {
	Text     string         `json:"text"`
	Type     AnalysisType   `json:"type"`
	Language TargetLanguage `json:"language"`
}

// AnalysisResponse represents the generated explanation
type AnalysisResponse struct {
	Result string `json:"result"`
}
