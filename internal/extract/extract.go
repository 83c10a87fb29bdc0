package extract

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"resumatch/internal/errors"
	"resumatch/internal/types"
)

// DefaultMaxBytes bounds resume uploads; larger documents are rejected unread
const DefaultMaxBytes = 10 << 20

// headerWindow is how far into the file the %PDF marker may sit
const headerWindow = 1024

// Extractor turns resume PDF bytes into plain text
type Extractor struct {
	maxBytes     int64
	minTextChars int
}

// NewExtractor creates an extractor. Non-positive maxBytes or minTextChars
// select the defaults (10 MiB, any non-empty text).
func NewExtractor(maxBytes int64, minTextChars int) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if minTextChars <= 0 {
		minTextChars = 1
	}
	return &Extractor{maxBytes: maxBytes, minTextChars: minTextChars}
}

// Text returns the concatenated visible text of every page in order
func (e *Extractor) Text(data []byte) (string, error) {
	result, err := e.Extract(data)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// Extract walks the document page by page, normalizes each page's
// whitespace, and joins pages with a single space. It fails with an
// extraction error when the bytes are not a valid PDF or no page yields
// text (image-only documents; there is no OCR fallback).
func (e *Extractor) Extract(data []byte) (*types.ExtractionResult, error) {
	if len(data) == 0 {
		return nil, errors.NewExtractionError(errors.ErrCodePDFInvalid, "empty document", nil)
	}
	if int64(len(data)) > e.maxBytes {
		return nil, errors.NewExtractionError(errors.ErrCodePDFTooLarge, "document exceeds size limit", nil).
			WithContext("size_bytes", len(data)).
			WithContext("limit_bytes", e.maxBytes)
	}

	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	if !bytes.Contains(window, []byte("%PDF-")) {
		return nil, errors.NewExtractionError(errors.ErrCodePDFInvalid, "missing PDF header", nil)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewExtractionError(errors.ErrCodePDFInvalid, "failed to parse PDF", err)
	}

	var pages []string
	var lastErr error
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			lastErr = err
			continue
		}
		// Collapse whitespace runs within a page before joining
		if fields := strings.Fields(pageText); len(fields) > 0 {
			pages = append(pages, strings.Join(fields, " "))
		}
	}

	text := strings.Join(pages, " ")
	if len(text) < e.minTextChars {
		return nil, errors.NewExtractionError(errors.ErrCodePDFNoText,
			"document has no extractable text layer", lastErr).
			WithContext("pages", numPages)
	}

	return &types.ExtractionResult{Text: text, Chars: len(text), Pages: numPages}, nil
}
