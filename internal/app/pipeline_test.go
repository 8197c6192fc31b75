package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm/llmtest"
	"github.com/nikhilbhutani/docchat/internal/multimodal"
)

type pathRunner struct {
	installed map[string]bool
}

func (r pathRunner) Run(context.Context, io.Reader, string, ...string) ([]byte, []byte, error) {
	return nil, nil, errors.New("not runnable in tests")
}

func (r pathRunner) LookPath(name string) (string, error) {
	if r.installed[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func baseConfig() *config.Config {
	return &config.Config{
		Extraction: config.ExtractionConfig{
			Parser:          "ledongthuc",
			Renderer:        "poppler",
			PdftoppmPath:    "pdftoppm",
			SparseThreshold: 10,
			RenderScale:     1.5,
			Timeout:         time.Minute,
			Concurrency:     2,
		},
		OCR: config.OCRConfig{Engine: "tesseract", TesseractPath: "tesseract"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPipelineProbesBinaries(t *testing.T) {
	runner := pathRunner{installed: map[string]bool{"tesseract": true}}

	p, err := NewPipeline(baseConfig(), nil, runner, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}

	status := p.Extractor.Registry().Status()
	want := map[string]bool{"parser": true, "renderer": false, "ocr": true}
	for engine, ok := range want {
		if status[engine] != ok {
			t.Errorf("%s available = %v, want %v", engine, status[engine], ok)
		}
	}
	if _, ok := p.Recognizer.(document.Tesseract); !ok {
		t.Errorf("recognizer = %T, want document.Tesseract", p.Recognizer)
	}
}

func TestNewPipelineDisabledEngines(t *testing.T) {
	cfg := baseConfig()
	cfg.Extraction.Renderer = "none"
	cfg.OCR.Engine = "none"

	p, err := NewPipeline(cfg, nil, pathRunner{}, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}
	if p.Recognizer != nil {
		t.Errorf("recognizer = %T, want nil", p.Recognizer)
	}
	reg := p.Extractor.Registry()
	if reg.IsAvailable(document.EngineRenderer) || reg.IsAvailable(document.EngineOCR) {
		t.Error("disabled engines should be unavailable")
	}
	if !reg.IsAvailable(document.EngineParser) {
		t.Error("parser should be available")
	}
}

func TestNewPipelineVision(t *testing.T) {
	cfg := baseConfig()
	cfg.Extraction.Renderer = "fitz"
	cfg.OCR.Engine = "vision"

	if _, err := NewPipeline(cfg, nil, pathRunner{}, discardLogger()); err == nil {
		t.Error("vision OCR without a gateway should fail")
	}

	gw := &llmtest.Gateway{Accept: map[string]string{"image/png": "openai"}}
	p, err := NewPipeline(cfg, gw, pathRunner{}, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}
	if _, ok := p.Recognizer.(*multimodal.VisionOCR); !ok {
		t.Errorf("recognizer = %T, want *multimodal.VisionOCR", p.Recognizer)
	}
	if !p.Extractor.Registry().IsAvailable(document.EngineOCR) {
		t.Error("vision OCR should be available when a provider accepts images")
	}
}

func TestNewPipelineRejectsUnknownBackends(t *testing.T) {
	tests := map[string]func(*config.Config){
		"parser":   func(c *config.Config) { c.Extraction.Parser = "pdfium" },
		"renderer": func(c *config.Config) { c.Extraction.Renderer = "ghostscript" },
		"ocr":      func(c *config.Config) { c.OCR.Engine = "easyocr" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(cfg)
			if _, err := NewPipeline(cfg, nil, pathRunner{}, discardLogger()); err == nil {
				t.Error("expected error")
			}
		})
	}
}
