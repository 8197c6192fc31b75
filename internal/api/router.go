package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/docchat/internal/api/handlers"
	"github.com/nikhilbhutani/docchat/internal/api/middleware"
	"github.com/nikhilbhutani/docchat/internal/auth"
	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm"
)

// Deps are the services the API is built from. Optional ones may be nil:
// without Jobs/Queue the async extraction endpoints answer 503, without
// Extractions the listing does, and nil pingers are left out of /readyz.
type Deps struct {
	Config      *config.Config
	Logger      *slog.Logger
	Gateway     llm.Gateway
	Docs        handlers.Extractor
	Engines     *document.EngineRegistry
	Chat        handlers.ChatResponder
	Summarizer  handlers.Summarizer
	OCR         document.ImageRecognizer
	Jobs        handlers.JobStore
	Queue       handlers.Enqueuer
	Extractions handlers.ExtractionLister
	DB          handlers.Pinger
	Redis       handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	deps Deps
	rl   *middleware.RateLimiter
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Router{mux: chi.NewRouter(), deps: deps}
}

// Close releases background resources held by middleware.
func (rt *Router) Close() {
	if rt.rl != nil {
		rt.rl.Close()
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	cfg := rt.deps.Config
	logger := rt.deps.Logger

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	if cfg.Server.RateLimitRPS > 0 {
		rt.rl = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		r.Use(rt.rl.Limit)
	}

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis, rt.deps.Engines)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	jwt := auth.NewJWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Required)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jwt.Authenticate)
		r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

		chatH := handlers.NewChatHandler(rt.deps.Chat, cfg.Server.CORSOrigins, logger)
		r.Route("/chat", func(r chi.Router) {
			r.Post("/", chatH.Chat)
			r.Post("/stream", chatH.ChatStream)
			r.Get("/ws", chatH.Websocket)
		})

		extractH := handlers.NewExtractHandler(rt.deps.Docs, rt.deps.Jobs, rt.deps.Queue, logger)
		r.Route("/extract", func(r chi.Router) {
			r.Post("/", extractH.Extract)
			r.Post("/jobs", extractH.CreateJob)
			r.Get("/jobs/{id}", extractH.GetJob)
		})

		summarizeH := handlers.NewSummarizeHandler(rt.deps.Docs, rt.deps.Summarizer)
		r.Post("/summarize", summarizeH.Summarize)

		ocrH := handlers.NewOCRHandler(rt.deps.OCR)
		r.Post("/ocr", ocrH.Recognize)

		extractionsH := handlers.NewExtractionsHandler(rt.deps.Extractions)
		r.Get("/extractions", extractionsH.List)

		modelsH := handlers.NewModelsHandler(rt.deps.Gateway)
		r.Get("/models", modelsH.List)
	})

	return r
}
