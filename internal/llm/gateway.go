package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nikhilbhutani/docchat/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	models           map[string]string
	defaultProvider  string
	fallbackProvider string
	maxRetries       int
	backoff          time.Duration
	logger           *slog.Logger
}

// NewGateway builds providers for every configured API key or URL.
func NewGateway(cfg config.LLMConfig, logger *slog.Logger) Gateway {
	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}
	return NewGatewayWithProviders(cfg, logger, providers...)
}

// NewGatewayWithProviders routes across the given providers using cfg for
// default/fallback selection, models and retries.
func NewGatewayWithProviders(cfg config.LLMConfig, logger *slog.Logger, providers ...Provider) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		models:           map[string]string{"openai": cfg.OpenAIModel, "anthropic": cfg.AnthropicModel, "ollama": cfg.OllamaModel},
		defaultProvider:  cfg.DefaultProvider,
		fallbackProvider: cfg.FallbackProvider,
		maxRetries:       cfg.MaxRetries,
		backoff:          cfg.RetryBackoff,
		logger:           logger,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	if _, ok := g.providers[g.defaultProvider]; !ok {
		if names := g.names(); len(names) > 0 {
			g.defaultProvider = names[0]
		}
	}
	return g
}

func (g *gateway) names() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) ProviderFor(mimeType string) (string, bool) {
	candidates := append([]string{g.defaultProvider, g.fallbackProvider}, g.names()...)
	for _, name := range candidates {
		if p, ok := g.providers[name]; ok && p.Accepts(mimeType) {
			return name, true
		}
	}
	return "", false
}

// modelFor picks the model for a provider. A model named in the request only
// applies to the provider it was meant for.
func (g *gateway) modelFor(providerName string, req ChatRequest, requested string) string {
	if req.Model != "" && providerName == requested {
		return req.Model
	}
	if m := g.models[providerName]; m != "" {
		return m
	}
	if p, ok := g.providers[providerName]; ok && len(p.Models()) > 0 {
		return p.Models()[0]
	}
	return req.Model
}

func (g *gateway) primary(req ChatRequest) string {
	if req.Provider != "" {
		return req.Provider
	}
	return g.defaultProvider
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := g.primary(req)

	resp, err := g.chatWithRetry(ctx, providerName, req, providerName)
	if err != nil && ctx.Err() == nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		g.logger.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.chatWithRetry(ctx, g.fallbackProvider, req, providerName)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest, requested string) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}
	req.Model = g.modelFor(providerName, req, requested)

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * g.backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			g.logger.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

// ChatStream opens a stream on the primary provider, falling back when the
// stream cannot be opened. Errors after the first chunk are delivered on the
// channel.
func (g *gateway) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	providerName := g.primary(req)

	ch, err := g.openStream(ctx, providerName, req, providerName)
	if err != nil && ctx.Err() == nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		g.logger.Warn("primary provider stream failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.openStream(ctx, g.fallbackProvider, req, providerName)
	}
	return ch, err
}

func (g *gateway) openStream(ctx context.Context, providerName string, req ChatRequest, requested string) (<-chan StreamChunk, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}
	req.Model = g.modelFor(providerName, req, requested)
	req.Stream = true
	return p.ChatCompletionStream(ctx, req)
}

func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, name := range g.names() {
		p := g.providers[name]
		def := g.modelFor(name, ChatRequest{}, "")
		for _, m := range p.Models() {
			models = append(models, ModelInfo{
				Provider: name,
				Model:    m,
				Default:  name == g.defaultProvider && m == def,
			})
		}
	}
	return models
}

// Collect drains a stream into a single string.
func Collect(ch <-chan StreamChunk) (string, error) {
	var out []byte
	for chunk := range ch {
		if chunk.Error != nil {
			return string(out), chunk.Error
		}
		out = append(out, chunk.Content...)
	}
	return string(out), nil
}
