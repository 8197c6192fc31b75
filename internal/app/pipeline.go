// Package app assembles the extraction pipeline and the services built on it
// from configuration. The API server, the worker and the CLI share it.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/docchat/internal/chat"
	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/multimodal"
	"github.com/nikhilbhutani/docchat/internal/summarize"
)

type Pipeline struct {
	Extractor *document.Extractor
	// Recognizer is the single-image OCR backend, nil when OCR is off.
	Recognizer document.ImageRecognizer
}

// NewPipeline builds the extractor selected by cfg. gw is only needed for
// the vision OCR engine and may be nil otherwise. Engine probes run lazily on
// first use.
func NewPipeline(cfg *config.Config, gw llm.Gateway, runner document.Runner, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = document.ExecRunner{Logger: logger}
	}

	parser, err := document.NewParser(cfg.Extraction.Parser)
	if err != nil {
		return nil, err
	}

	registry := document.NewEngineRegistry(logger)
	registry.Register(document.EngineParser, nil)

	var renderer document.PageRenderer
	switch cfg.Extraction.Renderer {
	case "fitz":
		renderer = &document.Renderer{
			Rasterizer:  document.FitzRasterizer{},
			Encoder:     document.PNGEncoder{},
			Scale:       cfg.Extraction.RenderScale,
			Concurrency: cfg.Extraction.Concurrency,
			Logger:      logger,
		}
		registry.Register(document.EngineRenderer, nil)
	case "poppler":
		renderer = &document.Renderer{
			Rasterizer:  document.PopplerRasterizer{Runner: runner, Binary: cfg.Extraction.PdftoppmPath},
			Encoder:     document.PNGEncoder{},
			Scale:       cfg.Extraction.RenderScale,
			Concurrency: cfg.Extraction.Concurrency,
			Logger:      logger,
		}
		registry.Register(document.EngineRenderer, document.BinaryProbe(runner, cfg.Extraction.PdftoppmPath))
	case "none":
		registry.Register(document.EngineRenderer, disabled)
	default:
		return nil, fmt.Errorf("unknown renderer %q", cfg.Extraction.Renderer)
	}

	var recognizer document.ImageRecognizer
	switch cfg.OCR.Engine {
	case "tesseract":
		recognizer = document.Tesseract{
			Runner:      runner,
			Binary:      cfg.OCR.TesseractPath,
			Languages:   cfg.OCR.Languages,
			TessdataDir: cfg.OCR.TessdataDir,
			PSM:         cfg.OCR.PSM,
			OEM:         cfg.OCR.OEM,
		}
		registry.Register(document.EngineOCR, document.BinaryProbe(runner, cfg.OCR.TesseractPath))
	case "vision":
		if gw == nil {
			return nil, errors.New("vision OCR needs an LLM gateway")
		}
		vision := multimodal.NewVisionOCR(gw, cfg.OCR.VisionProvider, cfg.OCR.VisionModel)
		recognizer = vision
		registry.Register(document.EngineOCR, vision.Available)
	case "none":
		registry.Register(document.EngineOCR, disabled)
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.OCR.Engine)
	}

	var ocr document.OCREngine
	if recognizer != nil {
		ocr = &document.OCR{Recognizer: recognizer, Concurrency: cfg.Extraction.Concurrency, Logger: logger}
	}

	extractor := document.NewExtractor(parser, renderer, ocr, registry, document.Config{
		SparseThreshold: cfg.Extraction.SparseThreshold,
		Timeout:         cfg.Extraction.Timeout,
	}, logger)

	return &Pipeline{Extractor: extractor, Recognizer: recognizer}, nil
}

func disabled() error { return errors.New("disabled by configuration") }

func NewSummarizer(cfg config.ChatConfig, gw llm.Gateway, logger *slog.Logger) *summarize.Summarizer {
	return summarize.New(gw, summarize.Options{
		MaxTokens:    cfg.SummaryMaxTokens,
		ChunkTokens:  cfg.ChunkTokens,
		ChunkOverlap: cfg.ChunkOverlap,
		Temperature:  0.2,
	}, logger)
}

func NewChat(cfg config.ChatConfig, gw llm.Gateway, docs chat.Extractor, s chat.Summarizer, logger *slog.Logger) *chat.Service {
	return chat.NewService(gw, docs, s, chat.Options{
		MaxHistory:  cfg.MaxHistory,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		RawPDF:      cfg.RawPDFMode,
	}, logger)
}
