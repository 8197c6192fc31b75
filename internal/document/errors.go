package document

import (
	"errors"
	"fmt"
)

// Public failure kinds of Extractor.Extract. Every error it returns matches
// exactly one of these with errors.Is; the underlying cause is wrapped too.
var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrDocumentParse     = errors.New("document parse failed")
	ErrExtractionTimeout = errors.New("extraction timed out")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrEngineUnavailable = errors.New("engine unavailable")
)

var kinds = []error{
	ErrMalformedInput,
	ErrDocumentParse,
	ErrExtractionTimeout,
	ErrEngineUnavailable,
	ErrExtractionFailed,
}

// Kind returns the public failure kind of err, or nil when err is not an
// extraction error.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName is a short stable label for a failure kind, used in logs,
// records and job state.
func KindName(err error) string {
	switch Kind(err) {
	case ErrMalformedInput:
		return "malformed_input"
	case ErrDocumentParse:
		return "document_parse"
	case ErrExtractionTimeout:
		return "timeout"
	case ErrEngineUnavailable:
		return "engine_unavailable"
	case ErrExtractionFailed:
		return "extraction_failed"
	default:
		return ""
	}
}

// Stages reported in page warnings.
const (
	StageText   = "text"
	StageRender = "render"
	StageOCR    = "ocr"
)

// PageWarning is a recoverable failure confined to one page or image. It is
// logged and surfaced in Content.Warnings, never returned as an error.
// Page is 1-based; zero means the warning is not tied to a page.
type PageWarning struct {
	Stage string
	Page  int
	Err   error
}

func (w PageWarning) String() string {
	if w.Page == 0 {
		return fmt.Sprintf("%s: %v", w.Stage, w.Err)
	}
	return fmt.Sprintf("%s page %d: %v", w.Stage, w.Page, w.Err)
}
