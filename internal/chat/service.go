// Package chat answers user messages with the conversation history and an
// optional attached file folded into the prompt.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/prompt"
	"github.com/nikhilbhutani/docchat/pkg/datauri"
	"github.com/nikhilbhutani/docchat/pkg/langdetect"
	"github.com/nikhilbhutani/docchat/pkg/textextract"
	"github.com/nikhilbhutani/docchat/pkg/tokenizer"
)

var ErrEmptyMessage = errors.New("message is required")

type Turn struct {
	User string `json:"user"`
	AI   string `json:"ai"`
}

// File is an attachment as sent by the client: a base64 data URI and the
// original file name.
type File struct {
	Data string `json:"data"`
	Name string `json:"name"`
}

type Request struct {
	Message     string `json:"message"`
	ChatHistory []Turn `json:"chatHistory,omitempty"`
	File        *File  `json:"file,omitempty"`
	FileSummary string `json:"fileSummary,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
}

type Response struct {
	Response    string `json:"response"`
	FileSummary string `json:"fileSummary,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
}

// Extractor turns a PDF data URI into content.
type Extractor interface {
	Extract(ctx context.Context, dataURI, source string) (*document.Content, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, c *document.Content) (string, error)
	SummarizeFile(ctx context.Context, f datauri.File) (string, error)
}

type Options struct {
	MaxHistory  int
	Temperature float64
	MaxTokens   int
	// TextBudget caps the tokens of a text attachment passed to the summarizer.
	TextBudget int
	// RawPDF sends PDFs to a provider that reads them natively before trying
	// extraction.
	RawPDF bool
}

type Service struct {
	gateway    llm.Gateway
	extractor  Extractor
	summarizer Summarizer
	opts       Options
	logger     *slog.Logger
}

// NewService builds the chat flow. extractor and summarizer may be nil, in
// which case attached files are only acknowledged by name.
func NewService(gw llm.Gateway, extractor Extractor, summarizer Summarizer, opts Options, logger *slog.Logger) *Service {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 20
	}
	if opts.TextBudget <= 0 {
		opts.TextBudget = 12000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gateway: gw, extractor: extractor, summarizer: summarizer, opts: opts, logger: logger}
}

// Respond returns the model's reply to req.
func (s *Service) Respond(ctx context.Context, req Request) (*Response, error) {
	chatReq, summary, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := s.gateway.Chat(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return &Response{
		Response:    strings.TrimSpace(resp.Content),
		FileSummary: summary,
		Provider:    resp.Provider,
		Model:       resp.Model,
	}, nil
}

// RespondStream streams the reply. The returned summary is the file summary
// used for the turn so clients can send it back with later messages.
func (s *Service) RespondStream(ctx context.Context, req Request) (<-chan llm.StreamChunk, string, error) {
	chatReq, summary, err := s.build(ctx, req)
	if err != nil {
		return nil, "", err
	}
	chatReq.Stream = true
	ch, err := s.gateway.ChatStream(ctx, chatReq)
	if err != nil {
		return nil, "", fmt.Errorf("chat stream: %w", err)
	}
	return ch, summary, nil
}

func (s *Service) build(ctx context.Context, req Request) (llm.ChatRequest, string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return llm.ChatRequest{}, "", ErrEmptyMessage
	}

	att := s.describeFile(ctx, req)

	provider := req.Provider
	if provider == "" && att.provider != "" {
		provider = att.provider
	}

	messages := make([]llm.Message, 0, 2*len(req.ChatHistory)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: prompt.ChatSystem})
	for _, t := range recent(req.ChatHistory, s.opts.MaxHistory) {
		if t.User != "" {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: t.User})
		}
		if t.AI != "" {
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: t.AI})
		}
	}
	messages = append(messages, llm.Message{
		Role: llm.RoleUser,
		Content: prompt.MustRender(prompt.ChatTurn, map[string]string{
			"fileSummary": att.summary,
			"message":     req.Message,
		}),
		Attachments: att.attachments,
	})

	return llm.ChatRequest{
		Provider:    provider,
		Model:       req.Model,
		Messages:    messages,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	}, att.summary, nil
}

func recent(history []Turn, n int) []Turn {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

type fileContext struct {
	summary     string
	attachments []llm.Attachment
	provider    string
}

// describeFile derives what the model is told about the attached file. It
// never fails: anything that goes wrong degrades to naming the file.
func (s *Service) describeFile(ctx context.Context, req Request) fileContext {
	if req.File == nil || req.FileSummary != "" {
		return fileContext{summary: req.FileSummary}
	}

	name := req.File.Name
	if name == "" {
		name = "attachment"
	}
	fallback := fileContext{summary: fmt.Sprintf("The user attached a file named %s.", name)}
	logger := s.logger.With("file", name)

	f, err := datauri.Decode(req.File.Data)
	if err != nil {
		logger.Warn("attached file is not a data URI", "error", err)
		return fallback
	}
	logger = logger.With("mime_type", f.MIMEType, "bytes", len(f.Data))

	switch {
	case f.MIMEType == document.MIMETypePDF:
		summary, err := s.summarizePDF(ctx, req.File.Data, f)
		if err != nil {
			logger.Warn("summarize PDF attachment failed", "error", err, "kind", document.KindName(err))
			return fallback
		}
		return fileContext{summary: summary}

	case strings.HasPrefix(f.MIMEType, "image/"):
		provider, ok := s.gateway.ProviderFor(f.MIMEType)
		if !ok {
			logger.Warn("no provider accepts image attachment")
			return fallback
		}
		fallback.attachments = []llm.Attachment{{MIMEType: f.MIMEType, Data: f.Data, Name: name}}
		fallback.provider = provider
		return fallback

	default:
		summary, err := s.summarizeText(ctx, f)
		if err != nil {
			logger.Warn("summarize attachment failed", "error", err)
			return fallback
		}
		return fileContext{summary: summary}
	}
}

func (s *Service) summarizePDF(ctx context.Context, dataURI string, f datauri.File) (string, error) {
	if s.summarizer == nil {
		return "", errors.New("no summarizer configured")
	}
	if s.opts.RawPDF {
		summary, err := s.summarizer.SummarizeFile(ctx, f)
		if err == nil {
			return summary, nil
		}
		s.logger.Debug("raw PDF summary unavailable, extracting text", "error", err)
	}
	if s.extractor == nil {
		return "", errors.New("no extractor configured")
	}
	content, err := s.extractor.Extract(ctx, dataURI, models.SourceChat)
	if err != nil {
		return "", err
	}
	return s.summarizer.Summarize(ctx, content)
}

func (s *Service) summarizeText(ctx context.Context, f datauri.File) (string, error) {
	if s.summarizer == nil {
		return "", errors.New("no summarizer configured")
	}
	extracted, err := textextract.Extract(f.Data, f.MIMEType)
	if err != nil {
		return "", err
	}
	text := tokenizer.Truncate(strings.TrimSpace(extracted.Content), s.opts.TextBudget)
	return s.summarizer.Summarize(ctx, &document.Content{
		Text:     text,
		Images:   [][]byte{},
		Metadata: document.Metadata{Language: langdetect.Detect(text)},
	})
}
