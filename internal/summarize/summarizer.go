// Package summarize produces document summaries with the LLM gateway, either
// from extracted text or by handing the raw file to a model that reads it.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/prompt"
	"github.com/nikhilbhutani/docchat/pkg/chunker"
	"github.com/nikhilbhutani/docchat/pkg/datauri"
	"github.com/nikhilbhutani/docchat/pkg/tokenizer"
)

var (
	ErrNoText      = errors.New("document has no text to summarize")
	ErrEmpty       = errors.New("model returned an empty summary")
	ErrUnsupported = errors.New("no provider accepts this file type")
)

// maxMergeRounds bounds how many times partial summaries are re-chunked.
const maxMergeRounds = 3

type Options struct {
	MaxTokens    int // per model response
	ChunkTokens  int
	ChunkOverlap int
	Concurrency  int
	Temperature  float64
}

func DefaultOptions() Options {
	return Options{MaxTokens: 1024, ChunkTokens: 3000, ChunkOverlap: 200, Concurrency: 3, Temperature: 0.2}
}

type Summarizer struct {
	gateway llm.Gateway
	opts    Options
	logger  *slog.Logger
}

func New(gw llm.Gateway, opts Options, logger *slog.Logger) *Summarizer {
	def := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.ChunkTokens <= 0 {
		opts.ChunkTokens = def.ChunkTokens
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{gateway: gw, opts: opts, logger: logger}
}

// Summarize summarizes extracted content in its detected language. Long text
// is split into chunks that are summarized independently and then merged.
func (s *Summarizer) Summarize(ctx context.Context, c *document.Content) (string, error) {
	text := strings.TrimSpace(c.CombinedText())
	if text == "" {
		return "", ErrNoText
	}
	lang := LanguageName(c.Metadata.Language)

	if tokenizer.CountTokens(text) <= s.opts.ChunkTokens {
		vars := map[string]string{
			"text":         text,
			"languageName": lang,
			"title":        c.Metadata.Title,
		}
		if c.Metadata.IsScanned {
			vars["scanned"] = "yes"
		}
		return s.complete(ctx, prompt.MustRender(prompt.SummarizeDocument, vars))
	}

	return s.summarizeLong(ctx, text, lang)
}

func (s *Summarizer) summarizeLong(ctx context.Context, text, lang string) (string, error) {
	for round := 0; ; round++ {
		chunks := chunker.Split(text, chunker.Options{MaxTokens: s.opts.ChunkTokens, Overlap: s.opts.ChunkOverlap})
		s.logger.Debug("summarizing in chunks", "chunks", len(chunks), "round", round)

		partials, err := s.summarizeChunks(ctx, chunks, lang)
		if err != nil {
			return "", err
		}

		joined := strings.Join(partials, "\n\n")
		if tokenizer.CountTokens(joined) <= s.opts.ChunkTokens || round+1 >= maxMergeRounds {
			joined = tokenizer.Truncate(joined, s.opts.ChunkTokens)
			return s.complete(ctx, prompt.MustRender(prompt.MergeSummaries, map[string]string{
				"summaries":    joined,
				"languageName": lang,
			}))
		}
		text = joined
	}
}

func (s *Summarizer) summarizeChunks(ctx context.Context, chunks []chunker.Chunk, lang string) ([]string, error) {
	out := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			summary, err := s.complete(gctx, prompt.MustRender(prompt.SummarizeChunk, map[string]string{
				"part":         strconv.Itoa(i + 1),
				"total":        strconv.Itoa(len(chunks)),
				"languageName": lang,
				"text":         c.Content,
			}))
			if err != nil {
				return fmt.Errorf("summarize part %d: %w", i+1, err)
			}
			out[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Summarizer) complete(ctx context.Context, content string) (string, error) {
	resp, err := s.gateway.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: content}},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", ErrEmpty
	}
	return summary, nil
}

// SummarizeFile sends the file itself to a provider that reads the MIME type
// natively (PDF documents or images).
func (s *Summarizer) SummarizeFile(ctx context.Context, f datauri.File) (string, error) {
	provider, ok := s.gateway.ProviderFor(f.MIMEType)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, f.MIMEType)
	}

	resp, err := s.gateway.Chat(ctx, llm.ChatRequest{
		Provider: provider,
		Messages: []llm.Message{{
			Role:        llm.RoleUser,
			Content:     prompt.SummarizeAttachment,
			Attachments: []llm.Attachment{{MIMEType: f.MIMEType, Data: f.Data}},
		}},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("summarize file: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", ErrEmpty
	}
	return summary, nil
}

var languageNames = map[string]string{
	"en": "English",
	"te": "Telugu",
	"hi": "Hindi",
	"ar": "Arabic",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"ru": "Russian",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
}

// LanguageName maps a detected language code to its English name.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return languageNames["en"]
}
