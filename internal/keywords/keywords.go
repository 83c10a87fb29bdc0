package keywords

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"resumatch/internal/types"
)

// DefaultMinWordLength drops tokens too short to act as keywords
const DefaultMinWordLength = 3

// stopwords are common words excluded from keyword derivation
var stopwords = map[string]struct{}{
	"the": {}, "in": {}, "with": {}, "and": {}, "or": {}, "for": {},
	"to": {}, "of": {}, "a": {}, "an": {}, "is": {}, "on": {},
	"by": {}, "as": {}, "at": {}, "from": {}, "that": {}, "be": {},
	"are": {}, "was": {}, "were": {}, "which": {}, "this": {},
	"it": {}, "has": {}, "have": {}, "will": {}, "can": {}, "should": {},
	"into": {}, "but": {}, "such": {}, "their": {}, "up": {}, "over": {},
	"about": {}, "not": {}, "it's": {}, "so": {}, "if": {}, "no": {}, "etc": {},
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Deriver derives job-description keywords locally, without any model call
type Deriver struct {
	minWordLength int
	stopwords     map[string]struct{}
}

// NewDeriver creates a deriver. Non-positive minWordLength selects the
// default; extraStopwords extend the built-in stopword set.
func NewDeriver(minWordLength int, extraStopwords []string) *Deriver {
	if minWordLength <= 0 {
		minWordLength = DefaultMinWordLength
	}
	words := make(map[string]struct{}, len(stopwords)+len(extraStopwords))
	for w := range stopwords {
		words[w] = struct{}{}
	}
	for _, w := range extraStopwords {
		words[strings.ToLower(w)] = struct{}{}
	}
	return &Deriver{minWordLength: minWordLength, stopwords: words}
}

// Extract returns the unique keywords of a job description, lowercased and
// sorted, with stopwords and short tokens dropped
func (d *Deriver) Extract(jobDescription string) []string {
	seen := make(map[string]struct{})
	for _, token := range tokens(jobDescription) {
		if _, stop := d.stopwords[token]; stop {
			continue
		}
		if utf8.RuneCountInString(token) < d.minWordLength {
			continue
		}
		seen[token] = struct{}{}
	}

	result := make([]string, 0, len(seen))
	for token := range seen {
		result = append(result, token)
	}
	sort.Strings(result)
	return result
}

// Missing returns the job-description keywords that never occur in the
// resume text. With zero overlap it equals the full extracted keyword set.
func (d *Deriver) Missing(jobDescription, resumeText string) []string {
	present := make(map[string]struct{})
	for _, token := range tokens(resumeText) {
		present[token] = struct{}{}
	}

	var missing []string
	for _, keyword := range d.Extract(jobDescription) {
		if _, ok := present[keyword]; !ok {
			missing = append(missing, keyword)
		}
	}
	return missing
}

// Highlight wraps every whole-word occurrence of a job-description keyword
// in the resume text with markdown emphasis markers. The text is returned
// unchanged when the job description yields no keywords.
func (d *Deriver) Highlight(resumeText, jobDescription string) string {
	keywords := d.Extract(jobDescription)
	if len(keywords) == 0 {
		return resumeText
	}

	quoted := make([]string, len(keywords))
	for i, keyword := range keywords {
		quoted[i] = regexp.QuoteMeta(keyword)
	}
	pattern, err := regexp.Compile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return resumeText
	}
	return pattern.ReplaceAllString(resumeText, "**${1}**")
}

// Report bundles derivation results for one job description, with the
// missing set and highlighted text present only when a resume was given
func (d *Deriver) Report(jobDescription, resumeText string) *types.KeywordReport {
	report := &types.KeywordReport{Keywords: d.Extract(jobDescription)}
	if resumeText != "" {
		missing := d.Missing(jobDescription, resumeText)
		if missing == nil {
			// A non-nil empty set records that the comparison ran
			missing = []string{}
		}
		report.MissingKeywords = missing
		report.HighlightedResume = d.Highlight(resumeText, jobDescription)
	}
	return report
}

func tokens(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}
