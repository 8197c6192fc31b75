package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/docchat/pkg/datauri"
	"github.com/nikhilbhutani/docchat/pkg/langdetect"
)

const (
	// DefaultSparseThreshold is the rune count below which the native text
	// layer is treated as missing and the OCR fallback runs.
	DefaultSparseThreshold = 10
	DefaultTimeout         = 2 * time.Minute
	DefaultConcurrency     = 2

	MIMETypePDF = "application/pdf"
)

type Config struct {
	SparseThreshold int
	Timeout         time.Duration // zero disables the budget
}

func DefaultConfig() Config {
	return Config{SparseThreshold: DefaultSparseThreshold, Timeout: DefaultTimeout}
}

// Extractor turns an encoded PDF into Content: native text first, and a
// render plus OCR pass only when the text layer is sparse.
type Extractor struct {
	parser   Parser
	renderer PageRenderer
	ocr      OCREngine
	registry *EngineRegistry
	cfg      Config
	logger   *slog.Logger
}

// NewExtractor wires the pipeline. renderer and ocr may be nil, in which case
// sparse documents return their native result with a warning. When registry
// is nil every non-nil engine is treated as available.
func NewExtractor(parser Parser, renderer PageRenderer, ocr OCREngine, registry *EngineRegistry, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if parser == nil {
		parser = PDFParser{}
	}
	if cfg.SparseThreshold <= 0 {
		cfg.SparseThreshold = DefaultSparseThreshold
	}
	if registry == nil {
		registry = NewEngineRegistry(logger)
		registry.Register(EngineParser, nil)
		registry.Register(EngineRenderer, configuredProbe(renderer != nil))
		registry.Register(EngineOCR, configuredProbe(ocr != nil))
	}
	return &Extractor{
		parser:   parser,
		renderer: renderer,
		ocr:      ocr,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

func configuredProbe(ok bool) ProbeFunc {
	if ok {
		return nil
	}
	return func() error { return errors.New("not configured") }
}

func (e *Extractor) Registry() *EngineRegistry { return e.registry }

// Extract decodes a "data:application/pdf;base64,..." string and extracts its
// content. Every error matches exactly one of the package's Err kinds.
func (e *Extractor) Extract(ctx context.Context, dataURI string) (*Content, error) {
	return e.guard(ctx, func(ctx context.Context) (*Content, error) {
		file, err := datauri.Decode(dataURI)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		if file.MIMEType != MIMETypePDF {
			return nil, fmt.Errorf("%w: unsupported MIME type %q", ErrMalformedInput, file.MIMEType)
		}
		return e.run(ctx, file.Data)
	})
}

// ExtractPDF extracts already decoded PDF bytes.
func (e *Extractor) ExtractPDF(ctx context.Context, data []byte) (*Content, error) {
	return e.guard(ctx, func(ctx context.Context) (*Content, error) {
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: empty document", ErrMalformedInput)
		}
		return e.run(ctx, data)
	})
}

// guard applies the time budget, converts panics, and maps every error onto
// one public kind.
func (e *Extractor) guard(ctx context.Context, fn func(context.Context) (*Content, error)) (content *Content, err error) {
	start := time.Now()
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = fmt.Errorf("%w: panic: %v", ErrExtractionFailed, r)
		}
		if err != nil {
			e.logger.Error("extraction failed",
				"kind", KindName(err),
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
		}
	}()

	content, err = fn(ctx)
	if err == nil {
		return content, nil
	}
	switch {
	case Kind(err) != nil:
		return nil, err
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %w", ErrExtractionTimeout, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
}

func (e *Extractor) run(ctx context.Context, data []byte) (*Content, error) {
	start := time.Now()

	if err := e.registry.Require(EngineParser); err != nil {
		return nil, err
	}
	doc, err := e.parser.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentParse, err)
	}
	defer doc.Close()

	pageCount := doc.NumPages()
	var warnings []PageWarning

	var buf strings.Builder
	for n := 1; n <= pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n > 1 {
			buf.WriteByte('\n')
		}
		text, err := pageText(doc, n)
		if err != nil {
			w := PageWarning{Stage: StageText, Page: n, Err: err}
			e.logger.Warn("page text extraction failed", "page", n, "error", err)
			warnings = append(warnings, w)
			continue
		}
		buf.WriteString(text)
	}
	text := strings.TrimSpace(buf.String())
	info := doc.Info()

	sparse := utf8.RuneCountInString(text) < e.cfg.SparseThreshold

	var fb fallbackResult
	if sparse {
		fb, err = e.fallback(ctx, data, pageCount)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, fb.warnings...)
	}

	language := langdetect.Detect(strings.TrimSpace(text + " " + fb.ocrText))

	content := assemble(text, fb.images, fb.ocrText, info.Title, info.Author, pageCount, language, sparse, fb.ocrUsed, warnings)
	e.logger.Info("extraction complete",
		"pages", pageCount,
		"language", language,
		"sparse", sparse,
		"images", len(fb.images),
		"ocr_used", fb.ocrUsed,
		"warnings", len(warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// pageText confines a backend panic to the page that raised it.
func pageText(doc Document, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: panic: %v", n, r)
		}
	}()
	return doc.PageText(n)
}

type fallbackResult struct {
	images   [][]byte
	ocrText  string
	ocrUsed  bool
	warnings []PageWarning
}

// fallback renders and OCRs a sparse document. Missing engines and per-page
// failures degrade to warnings; only context errors are returned.
func (e *Extractor) fallback(ctx context.Context, data []byte, pageCount int) (fallbackResult, error) {
	var res fallbackResult

	if e.renderer == nil {
		res.warn(e.logger, PageWarning{Stage: StageRender, Err: fmt.Errorf("%w: renderer not configured", ErrEngineUnavailable)})
		return res, nil
	}
	if err := e.registry.Require(EngineRenderer); err != nil {
		res.warn(e.logger, PageWarning{Stage: StageRender, Err: err})
		return res, nil
	}

	images, warnings, err := e.renderer.RenderPages(ctx, data, pageCount)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.warn(e.logger, PageWarning{Stage: StageRender, Err: err})
		return res, nil
	}
	res.images = images
	res.warnings = append(res.warnings, warnings...)
	if len(images) == 0 {
		return res, nil
	}

	if e.ocr == nil {
		res.warn(e.logger, PageWarning{Stage: StageOCR, Err: fmt.Errorf("%w: OCR not configured", ErrEngineUnavailable)})
		return res, nil
	}
	if err := e.registry.Require(EngineOCR); err != nil {
		res.warn(e.logger, PageWarning{Stage: StageOCR, Err: err})
		return res, nil
	}

	res.ocrUsed = true
	text, warnings, err := e.ocr.Recognize(ctx, images)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.warn(e.logger, PageWarning{Stage: StageOCR, Err: err})
		return res, nil
	}
	res.ocrText = strings.TrimSpace(text)
	res.warnings = append(res.warnings, warnings...)
	return res, nil
}

func (r *fallbackResult) warn(logger *slog.Logger, w PageWarning) {
	logger.Warn("OCR fallback degraded", "stage", w.Stage, "error", w.Err)
	r.warnings = append(r.warnings, w)
}

// assemble is the only place HasImages and IsScanned are derived.
func assemble(text string, images [][]byte, ocrText, title, author string, pageCount int, language string, sparse, ocrUsed bool, warnings []PageWarning) *Content {
	if images == nil {
		images = [][]byte{}
	}
	var notes []string
	for _, w := range warnings {
		notes = append(notes, w.String())
	}
	return &Content{
		Text:    text,
		Images:  images,
		OCRText: ocrText,
		Metadata: Metadata{
			PageCount: pageCount,
			Title:     title,
			Author:    author,
			Language:  language,
			HasImages: len(images) > 0,
			IsScanned: sparse && len(images) > 0,
			OCRUsed:   ocrUsed,
		},
		Warnings: notes,
	}
}
