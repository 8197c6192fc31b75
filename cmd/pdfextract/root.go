package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docchat/internal/config"
)

type rootOptions struct {
	verbose   bool
	parser    string
	renderer  string
	ocr       string
	languages string
	threshold int
	timeout   time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pdfextract",
		Short:         "Extract text, page images and metadata from PDF files",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	f := cmd.PersistentFlags()
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline progress to stderr")
	f.StringVar(&opts.parser, "parser", "", "text parser backend: ledongthuc or fitz")
	f.StringVar(&opts.renderer, "renderer", "", "page renderer: fitz, poppler or none")
	f.StringVar(&opts.ocr, "ocr", "", "OCR engine: tesseract, vision or none")
	f.StringVar(&opts.languages, "lang", "", "tesseract language bundle, e.g. eng+deu")
	f.IntVar(&opts.threshold, "threshold", 0, "rune count below which the text layer counts as sparse")
	f.DurationVar(&opts.timeout, "timeout", 0, "extraction time budget")

	cmd.AddCommand(newExtractCmd(opts), newSummarizeCmd(opts))
	return cmd
}

// load reads the environment configuration and applies flag overrides.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if o.parser != "" {
		cfg.Extraction.Parser = o.parser
	}
	if o.renderer != "" {
		cfg.Extraction.Renderer = o.renderer
	}
	if o.ocr != "" {
		cfg.OCR.Engine = o.ocr
	}
	if o.languages != "" {
		cfg.OCR.Languages = o.languages
	}
	if o.threshold > 0 {
		cfg.Extraction.SparseThreshold = o.threshold
	}
	if o.timeout > 0 {
		cfg.Extraction.Timeout = o.timeout
	}
	return cfg, logger, nil
}
