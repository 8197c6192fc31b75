// Package llmtest provides an in-memory llm.Gateway for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nikhilbhutani/docchat/internal/llm"
)

// Gateway answers every request with Reply (or the result of Respond when
// set) and records the requests it saw. It is safe for concurrent use.
type Gateway struct {
	Reply   string
	Err     error
	Respond func(req llm.ChatRequest) (string, error)
	Accept  map[string]string // MIME type -> provider name

	mu       sync.Mutex
	requests []llm.ChatRequest
}

func (g *Gateway) record(req llm.ChatRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
}

func (g *Gateway) answer(req llm.ChatRequest) (string, error) {
	g.record(req)
	if g.Err != nil {
		return "", g.Err
	}
	if g.Respond != nil {
		return g.Respond(req)
	}
	return g.Reply, nil
}

// Requests returns a copy of the recorded requests.
func (g *Gateway) Requests() []llm.ChatRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.ChatRequest(nil), g.requests...)
}

func (g *Gateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	text, err := g.answer(req)
	if err != nil {
		return nil, err
	}
	return &llm.ChatResponse{Provider: "fake", Model: req.Model, Content: text}, nil
}

// ChatStream emits the reply word by word.
func (g *Gateway) ChatStream(_ context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	text, err := g.answer(req)
	if err != nil {
		return nil, err
	}
	words := strings.SplitAfter(text, " ")
	ch := make(chan llm.StreamChunk, len(words)+1)
	for _, w := range words {
		if w != "" {
			ch <- llm.StreamChunk{Content: w}
		}
	}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (g *Gateway) Provider(name string) (llm.Provider, error) {
	return nil, errors.New("llmtest: no providers")
}

func (g *Gateway) ProviderFor(mimeType string) (string, bool) {
	name, ok := g.Accept[mimeType]
	return name, ok
}

func (g *Gateway) ListModels() []llm.ModelInfo {
	return []llm.ModelInfo{{Provider: "fake", Model: "fake-1", Default: true}}
}
