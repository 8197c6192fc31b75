package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nikhilbhutani/docchat/internal/config"
)

type fakeProvider struct {
	name     string
	accepts  map[string]bool
	failures int // calls that fail before succeeding; negative fails forever
	calls    int
	lastReq  ChatRequest
}

func (f *fakeProvider) ChatCompletion(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.failures < 0 || f.calls <= f.failures {
		return nil, errors.New("upstream 500")
	}
	return &ChatResponse{Provider: f.name, Model: req.Model, Content: "reply from " + f.name}, nil
}

func (f *fakeProvider) ChatCompletionStream(_ context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	f.calls++
	f.lastReq = req
	if f.failures < 0 {
		return nil, errors.New("stream refused")
	}
	ch := make(chan StreamChunk, 3)
	ch <- StreamChunk{Content: "hel"}
	ch <- StreamChunk{Content: "lo"}
	ch <- StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) Accepts(mime string) bool { return f.accepts[mime] }
func (f *fakeProvider) Name() string             { return f.name }
func (f *fakeProvider) Models() []string         { return []string{f.name + "-small", f.name + "-large"} }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGatewayRetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{name: "openai", failures: 2}
	gw := NewGatewayWithProviders(config.LLMConfig{DefaultProvider: "openai", MaxRetries: 2}, quietLogger(), p)

	resp, err := gw.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
	if resp.Model != "openai-small" {
		t.Errorf("Model = %q, want provider default", resp.Model)
	}
}

func TestGatewayFallback(t *testing.T) {
	primary := &fakeProvider{name: "openai", failures: -1}
	fallback := &fakeProvider{name: "anthropic"}
	cfg := config.LLMConfig{DefaultProvider: "openai", FallbackProvider: "anthropic", AnthropicModel: "claude-x"}
	gw := NewGatewayWithProviders(cfg, quietLogger(), primary, fallback)

	resp, err := gw.Chat(context.Background(), ChatRequest{Model: "gpt-4o", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Provider != "anthropic" {
		t.Errorf("Provider = %q, want anthropic", resp.Provider)
	}
	if fallback.lastReq.Model != "claude-x" {
		t.Errorf("fallback model = %q, want claude-x", fallback.lastReq.Model)
	}
	if primary.lastReq.Model != "gpt-4o" {
		t.Errorf("primary model = %q, want gpt-4o", primary.lastReq.Model)
	}
}

func TestGatewayStreamFallback(t *testing.T) {
	primary := &fakeProvider{name: "openai", failures: -1}
	fallback := &fakeProvider{name: "ollama"}
	gw := NewGatewayWithProviders(config.LLMConfig{DefaultProvider: "openai", FallbackProvider: "ollama"}, quietLogger(), primary, fallback)

	ch, err := gw.ChatStream(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}
	text, err := Collect(ch)
	if err != nil || text != "hello" {
		t.Errorf("Collect() = %q, %v", text, err)
	}
	if !fallback.lastReq.Stream {
		t.Error("stream flag not set")
	}
}

func TestGatewayProviderFor(t *testing.T) {
	openai := &fakeProvider{name: "openai", accepts: map[string]bool{"image/png": true}}
	anthropic := &fakeProvider{name: "anthropic", accepts: map[string]bool{"image/png": true, "application/pdf": true}}
	gw := NewGatewayWithProviders(config.LLMConfig{DefaultProvider: "openai"}, quietLogger(), openai, anthropic)

	tests := []struct {
		mime string
		want string
		ok   bool
	}{
		{"image/png", "openai", true},
		{"application/pdf", "anthropic", true},
		{"audio/wav", "", false},
	}
	for _, tt := range tests {
		got, ok := gw.ProviderFor(tt.mime)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ProviderFor(%q) = %q, %v; want %q, %v", tt.mime, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGatewayDefaultsToConfiguredProvider(t *testing.T) {
	gw := NewGatewayWithProviders(config.LLMConfig{DefaultProvider: "openai"}, quietLogger(), &fakeProvider{name: "ollama"})
	resp, err := gw.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", resp.Provider)
	}

	var defaults int
	for _, m := range gw.ListModels() {
		if m.Default {
			defaults++
		}
	}
	if defaults != 1 {
		t.Errorf("ListModels() has %d defaults, want 1", defaults)
	}
}

func TestOllamaSendsImages(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaChatResp{
			Message:         ollamaMessage{Role: RoleAssistant, Content: "a cat"},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       3,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL + "/")
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Model: "llava",
		Messages: []Message{{
			Role:        RoleUser,
			Content:     "what is this?",
			Attachments: []Attachment{{MIMEType: "image/png", Data: []byte{1, 2, 3}}, {MIMEType: "application/pdf", Data: []byte("%PDF")}},
		}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error: %v", err)
	}
	if resp.Content != "a cat" || resp.TotalTokens != 15 {
		t.Errorf("resp = %+v", resp)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Images) != 1 || got.Messages[0].Images[0] != "AQID" {
		t.Errorf("request messages = %+v", got.Messages)
	}
}

func TestCalculateCost(t *testing.T) {
	if got := CalculateCost("gpt-4o-mini", 1000, 1000); math.Abs(got-0.00075) > 1e-12 {
		t.Errorf("CalculateCost() = %v", got)
	}
	if got := CalculateCost("llama3", 1000, 1000); got != 0 {
		t.Errorf("CalculateCost(local) = %v", got)
	}
}
