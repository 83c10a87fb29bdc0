package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"resumatch/internal/types"
)

// Formatter renders one data type in one output format.
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// formatterKey addresses a formatter by output format and data type.
type formatterKey struct {
	format   string
	dataType string
}

// Registry routes values to the formatter registered for their
// concrete type, falling back to the "any" formatter of the requested format.
type Registry struct {
	byKey map[formatterKey]Formatter
}

// NewRegistry returns a registry with the built-in formatters in place.
func NewRegistry() *Registry {
	fr := &Registry{byKey: make(map[formatterKey]Formatter)}

	fr.Register("json", "any", &JSONFormatter{})
	fr.Register("text", "AnalysisResult", &AnalysisTextFormatter{})
	fr.Register("markdown", "AnalysisResult", &AnalysisMarkdownFormatter{})
	fr.Register("text", "ExtractionResult", &ExtractionTextFormatter{})
	fr.Register("markdown", "ExtractionResult", &ExtractionMarkdownFormatter{})
	fr.Register("text", "KeywordReport", &KeywordTextFormatter{})
	fr.Register("markdown", "KeywordReport", &KeywordMarkdownFormatter{})

	return fr
}

// Register adds or replaces the formatter for a format and data type.
func (fr *Registry) Register(format, dataType string, formatter Formatter) {
	fr.byKey[formatterKey{format, dataType}] = formatter
}

// Format renders data in the requested format.
func (fr *Registry) Format(data any, format string) (string, error) {
	dataType := dataTypeOf(data)

	if f, ok := fr.byKey[formatterKey{format, dataType}]; ok {
		return f.Format(data)
	}
	if f, ok := fr.byKey[formatterKey{format, "any"}]; ok {
		return f.Format(data)
	}
	return "", fmt.Errorf("no formatter found for %s output of %s data", format, dataType)
}

// SupportedFormats lists the distinct output formats that have at least
// one formatter registered, in no particular order.
func (fr *Registry) SupportedFormats() []string {
	seen := make(map[string]bool)
	var formats []string
	for key := range fr.byKey {
		if !seen[key.format] {
			seen[key.format] = true
			formats = append(formats, key.format)
		}
	}
	return formats
}

func dataTypeOf(data any) string {
	if _, ok := asAnalysisResult(data); ok {
		return "AnalysisResult"
	}
	if _, ok := asExtractionResult(data); ok {
		return "ExtractionResult"
	}
	if _, ok := asKeywordReport(data); ok {
		return "KeywordReport"
	}
	return "any"
}

func asAnalysisResult(data any) (*types.AnalysisResult, bool) {
	switch v := data.(type) {
	case *types.AnalysisResult:
		return v, true
	case types.AnalysisResult:
		return &v, true
	}
	return nil, false
}

func asExtractionResult(data any) (*types.ExtractionResult, bool) {
	switch v := data.(type) {
	case *types.ExtractionResult:
		return v, true
	case types.ExtractionResult:
		return &v, true
	}
	return nil, false
}

func asKeywordReport(data any) (*types.KeywordReport, bool) {
	switch v := data.(type) {
	case *types.KeywordReport:
		return v, true
	case types.KeywordReport:
		return &v, true
	}
	return nil, false
}

// writeBullets renders items as a dash list.
func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// JSONFormatter renders any value as indented JSON.
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// AnalysisTextFormatter renders a match analysis as plain text.
type AnalysisTextFormatter struct{}

func (atf *AnalysisTextFormatter) Format(data any) (string, error) {
	result, ok := asAnalysisResult(data)
	if !ok {
		return "", fmt.Errorf("expected AnalysisResult, got %T", data)
	}

	var b strings.Builder

	b.WriteString("=== RESUME MATCH ANALYSIS ===\n\n")
	if result.MatchScore != nil {
		fmt.Fprintf(&b, "Match Score: %d/100\n\n", *result.MatchScore)
	} else {
		b.WriteString("Match Score: not available\n\n")
	}

	if result.FeedbackText != "" {
		b.WriteString("Feedback:\n")
		b.WriteString(result.FeedbackText)
		b.WriteString("\n\n")
	}

	if len(result.MissingKeywords) > 0 {
		b.WriteString("Missing Keywords:\n")
		writeBullets(&b, result.MissingKeywords)
		b.WriteString("\n")
	}

	if len(result.ExtractedSkills) > 0 {
		b.WriteString("Extracted Skills:\n")
		writeBullets(&b, result.ExtractedSkills)
		b.WriteString("\n")
	}

	if result.ContactEmail != "" || result.ContactPhone != "" {
		b.WriteString("Contact:\n")
		if result.ContactEmail != "" {
			fmt.Fprintf(&b, "  Email: %s\n", result.ContactEmail)
		}
		if result.ContactPhone != "" {
			fmt.Fprintf(&b, "  Phone: %s\n", result.ContactPhone)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Resume: %d characters analyzed\n", result.ResumeChars)
	if result.Model != "" {
		fmt.Fprintf(&b, "Model: %s (%d tokens)\n", result.Model, result.Usage.TotalTokens)
	}

	return b.String(), nil
}

func (atf *AnalysisTextFormatter) SupportedType() string {
	return "AnalysisResult"
}

// AnalysisMarkdownFormatter renders a match analysis as markdown.
type AnalysisMarkdownFormatter struct{}

func (amf *AnalysisMarkdownFormatter) Format(data any) (string, error) {
	result, ok := asAnalysisResult(data)
	if !ok {
		return "", fmt.Errorf("expected AnalysisResult, got %T", data)
	}

	var b strings.Builder

	b.WriteString("# Resume Match Analysis\n\n")
	if result.MatchScore != nil {
		fmt.Fprintf(&b, "**Match Score:** %d/100\n\n", *result.MatchScore)
	} else {
		b.WriteString("**Match Score:** not available\n\n")
	}

	if result.FeedbackText != "" {
		b.WriteString("## Feedback\n\n")
		b.WriteString(result.FeedbackText)
		b.WriteString("\n\n")
	}

	if len(result.MissingKeywords) > 0 {
		b.WriteString("## Missing Keywords\n\n")
		writeBullets(&b, result.MissingKeywords)
		b.WriteString("\n")
	}

	if len(result.ExtractedSkills) > 0 {
		b.WriteString("## Extracted Skills\n\n")
		writeBullets(&b, result.ExtractedSkills)
		b.WriteString("\n")
	}

	if result.ContactEmail != "" || result.ContactPhone != "" {
		b.WriteString("## Contact\n\n")
		if result.ContactEmail != "" {
			fmt.Fprintf(&b, "- **Email:** %s\n", result.ContactEmail)
		}
		if result.ContactPhone != "" {
			fmt.Fprintf(&b, "- **Phone:** %s\n", result.ContactPhone)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Analyzed %d resume characters", result.ResumeChars)
	if result.Model != "" {
		fmt.Fprintf(&b, " with %s (%d tokens)", result.Model, result.Usage.TotalTokens)
	}
	b.WriteString(".\n")

	return b.String(), nil
}

func (amf *AnalysisMarkdownFormatter) SupportedType() string {
	return "AnalysisResult"
}

// ExtractionTextFormatter renders extracted resume text as plain text.
type ExtractionTextFormatter struct{}

func (etf *ExtractionTextFormatter) Format(data any) (string, error) {
	result, ok := asExtractionResult(data)
	if !ok {
		return "", fmt.Errorf("expected ExtractionResult, got %T", data)
	}

	var b strings.Builder
	b.WriteString("=== EXTRACTED TEXT ===\n\n")
	b.WriteString(result.Text)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "(%d characters from %d page(s))\n", result.Chars, result.Pages)

	return b.String(), nil
}

func (etf *ExtractionTextFormatter) SupportedType() string {
	return "ExtractionResult"
}

// ExtractionMarkdownFormatter renders extracted resume text as markdown.
type ExtractionMarkdownFormatter struct{}

func (emf *ExtractionMarkdownFormatter) Format(data any) (string, error) {
	result, ok := asExtractionResult(data)
	if !ok {
		return "", fmt.Errorf("expected ExtractionResult, got %T", data)
	}

	var b strings.Builder
	b.WriteString("# Extracted Resume Text\n\n")
	b.WriteString(result.Text)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "*%d characters from %d page(s)*\n", result.Chars, result.Pages)

	return b.String(), nil
}

func (emf *ExtractionMarkdownFormatter) SupportedType() string {
	return "ExtractionResult"
}

// KeywordTextFormatter renders a keyword report as plain text.
type KeywordTextFormatter struct{}

func (ktf *KeywordTextFormatter) Format(data any) (string, error) {
	result, ok := asKeywordReport(data)
	if !ok {
		return "", fmt.Errorf("expected KeywordReport, got %T", data)
	}

	var b strings.Builder

	b.WriteString("=== JOB KEYWORDS ===\n\n")
	if len(result.Keywords) > 0 {
		writeBullets(&b, result.Keywords)
	} else {
		b.WriteString("No keywords derived.\n")
	}
	b.WriteString("\n")

	if result.MissingKeywords != nil {
		b.WriteString("=== MISSING FROM RESUME ===\n\n")
		if len(result.MissingKeywords) > 0 {
			writeBullets(&b, result.MissingKeywords)
		} else {
			b.WriteString("The resume covers every derived keyword.\n")
		}
		b.WriteString("\n")
	}

	if result.HighlightedResume != "" {
		b.WriteString("=== HIGHLIGHTED RESUME ===\n\n")
		b.WriteString(result.HighlightedResume)
		b.WriteString("\n")
	}

	return b.String(), nil
}

func (ktf *KeywordTextFormatter) SupportedType() string {
	return "KeywordReport"
}

// KeywordMarkdownFormatter renders a keyword report as markdown.
type KeywordMarkdownFormatter struct{}

func (kmf *KeywordMarkdownFormatter) Format(data any) (string, error) {
	result, ok := asKeywordReport(data)
	if !ok {
		return "", fmt.Errorf("expected KeywordReport, got %T", data)
	}

	var b strings.Builder

	b.WriteString("# Job Keywords\n\n")
	if len(result.Keywords) > 0 {
		writeBullets(&b, result.Keywords)
	} else {
		b.WriteString("No keywords derived.\n")
	}
	b.WriteString("\n")

	if result.MissingKeywords != nil {
		b.WriteString("## Missing From Resume\n\n")
		if len(result.MissingKeywords) > 0 {
			writeBullets(&b, result.MissingKeywords)
		} else {
			b.WriteString("The resume covers every derived keyword.\n")
		}
		b.WriteString("\n")
	}

	if result.HighlightedResume != "" {
		b.WriteString("## Highlighted Resume\n\n")
		b.WriteString(result.HighlightedResume)
		b.WriteString("\n")
	}

	return b.String(), nil
}

func (kmf *KeywordMarkdownFormatter) SupportedType() string {
	return "KeywordReport"
}

// DefaultRegistry is the registry the CLI and server render through.
var DefaultRegistry = NewRegistry()
