package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"resumatch/internal/errors"
	"resumatch/internal/types"
)

// rawPreviewLimit caps how much raw model text travels in error context
const rawPreviewLimit = 500

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	scorePattern = regexp.MustCompile(`\b(\d{1,3})\b`)
)

// scoreKeys are the field names models use for the match score, in
// priority order
var scoreKeys = []string{"ats_score", "match_score", "score"}

// Report recovers the structured part of a model response. Markdown fences
// are stripped and the JSON object is cut from first { to last } before
// field extraction; a response without a JSON object falls back to scanning
// for a bare 0-100 integer. Individual absent fields are not errors; a
// response yielding no usable field at all is a parse error carrying a
// preview of the raw text.
func Report(raw string) (*types.ModelReport, error) {
	cleaned := stripFences(raw)
	report := &types.ModelReport{}

	if jsonText, ok := extractObject(cleaned); ok {
		report.Score = scoreFromJSON(jsonText)
		report.MissingKeywords = stringList(jsonText, "missing_keywords")
		report.Feedback = strings.TrimSpace(gjson.Get(jsonText, "feedback").String())
		report.ExtractedSkills = stringList(jsonText, "extracted_skills")
		report.Contact = types.ContactInfo{
			Emails:       stringList(jsonText, "contact_info.emails"),
			PhoneNumbers: stringList(jsonText, "contact_info.phone_numbers"),
		}
	} else {
		report.Score = scoreFromText(cleaned)
	}

	if report.Score == nil && report.Feedback == "" &&
		len(report.MissingKeywords) == 0 && len(report.ExtractedSkills) == 0 {
		return nil, errors.NewParseError(errors.ErrCodeResponseNoFields,
			"model response contained no usable fields", nil).
			WithContext("raw_response", Preview(raw))
	}

	return report, nil
}

// Email returns the first email-like substring of text, empty when none
// matches. Absence is not an error.
func Email(text string) string {
	return emailPattern.FindString(text)
}

// Phone returns the first phone-like substring of text, empty when none
// matches. An optional +country prefix and -/./space separators are
// accepted; nothing beyond the pattern is validated.
func Phone(text string) string {
	return phonePattern.FindString(text)
}

// Preview truncates raw model text for error context and logging
func Preview(raw string) string {
	if len(raw) <= rawPreviewLimit {
		return raw
	}
	return raw[:rawPreviewLimit] + "..."
}

func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func scoreFromJSON(jsonText string) *int {
	for _, key := range scoreKeys {
		value := gjson.Get(jsonText, key)
		switch value.Type {
		case gjson.Number:
			return scoreInRange(int(value.Int()))
		case gjson.String:
			if n, err := strconv.Atoi(strings.TrimSpace(value.String())); err == nil {
				return scoreInRange(n)
			}
		}
	}
	return nil
}

func scoreFromText(text string) *int {
	if matches := scorePattern.FindStringSubmatch(text); matches != nil {
		if n, err := strconv.Atoi(matches[1]); err == nil {
			return scoreInRange(n)
		}
	}
	return nil
}

// scoreInRange accepts only 0-100; anything else is an absent score
func scoreInRange(n int) *int {
	if n < 0 || n > 100 {
		return nil
	}
	return &n
}

func stringList(jsonText, path string) []string {
	value := gjson.Get(jsonText, path)
	if !value.IsArray() {
		return nil
	}
	var items []string
	for _, element := range value.Array() {
		if s := strings.TrimSpace(element.String()); s != "" {
			items = append(items, s)
		}
	}
	return items
}
