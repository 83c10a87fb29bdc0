package types

// MatchInput carries the two texts a compatibility analysis runs on
type MatchInput struct {
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
}

// TokenUsage captures token counts reported by the model for one call
type TokenUsage struct {
	InputTokens  int32 `json:"inputTokens"`
	OutputTokens int32 `json:"outputTokens"`
	TotalTokens  int32 `json:"totalTokens"`
}

// ModelResponse is the raw model output for one analysis call.
// Text is uninterpreted; parsing it is the caller's concern.
type ModelResponse struct {
	Text  string     `json:"text"`
	Model string     `json:"model"`
	Usage TokenUsage `json:"usage"`
}

// ContactInfo holds contact identifiers the model claims to have found
type ContactInfo struct {
	Emails       []string `json:"emails"`
	PhoneNumbers []string `json:"phone_numbers"`
}

// ModelReport is the structured part of a model response, as far as it
// could be recovered. Score is nil when the response carried no usable
// number in range.
type ModelReport struct {
	Score           *int        `json:"ats_score,omitempty"`
	MissingKeywords []string    `json:"missing_keywords,omitempty"`
	Feedback        string      `json:"feedback,omitempty"`
	ExtractedSkills []string    `json:"extracted_skills,omitempty"`
	Contact         ContactInfo `json:"contact_info"`
}

// AnalysisResult is the outcome of one resume-vs-job-description analysis.
// MatchScore is nil when the model produced no recognizable 0-100 score.
// ContactEmail and ContactPhone are empty when nothing matched.
type AnalysisResult struct {
	MatchScore      *int       `json:"matchScore,omitempty"`
	FeedbackText    string     `json:"feedbackText"`
	MissingKeywords []string   `json:"missingKeywords"`
	ExtractedSkills []string   `json:"extractedSkills,omitempty"`
	ContactEmail    string     `json:"contactEmail,omitempty"`
	ContactPhone    string     `json:"contactPhone,omitempty"`
	ResumeChars     int        `json:"resumeChars"`
	Model           string     `json:"model,omitempty"`
	Usage           TokenUsage `json:"usage"`
}

// ExtractionResult is the outcome of a standalone text extraction
type ExtractionResult struct {
	Text  string `json:"text"`
	Chars int    `json:"chars"`
	Pages int    `json:"pages"`
}

// KeywordReport is the outcome of a local keyword derivation, with the
// missing set and highlighted resume present only when a resume was given
type KeywordReport struct {
	Keywords          []string `json:"keywords"`
	MissingKeywords   []string `json:"missingKeywords,omitempty"`
	HighlightedResume string   `json:"highlightedResume,omitempty"`
}
