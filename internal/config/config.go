package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	LLM        LLMConfig
	Extraction ExtractionConfig
	OCR        OCRConfig
	Chat       ChatConfig
	Queue      QueueConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	CORSOrigins     []string
	RateLimitRPS    float64 // per client; zero disables limiting
	RateLimitBurst  int
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL              string // empty disables extraction records
	MaxConns         int
	MinConns         int
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	StatementTimeout time.Duration // zero leaves the server default
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration // extracted content
	JobTTL   time.Duration // async job state
}

type AuthConfig struct {
	JWTSecret string
	Required  bool // reject requests without a valid bearer token
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	FallbackProvider string
	OpenAIModel      string
	AnthropicModel   string
	OllamaModel      string
	MaxRetries       int
	RetryBackoff     time.Duration
}

type ExtractionConfig struct {
	Parser          string // ledongthuc | fitz
	Renderer        string // fitz | poppler | none
	PdftoppmPath    string
	SparseThreshold int
	RenderScale     float64
	Timeout         time.Duration
	Concurrency     int
}

type OCRConfig struct {
	Engine         string // tesseract | vision | none
	TesseractPath  string
	Languages      string
	TessdataDir    string
	PSM            int
	OEM            int
	VisionProvider string
	VisionModel    string
}

type ChatConfig struct {
	MaxHistory       int
	Temperature      float64
	MaxTokens        int
	SummaryMaxTokens int
	ChunkTokens      int
	ChunkOverlap     int
	RawPDFMode       bool // send PDFs to the model as attachments instead of extracting
}

type QueueConfig struct {
	Concurrency int
}

// Load reads configuration from the environment, after loading a .env file
// when one is present (ENV_FILE overrides the path).
func Load() (*Config, error) {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	rps, err := getEnvFloat("RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	burst, err := getEnvInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	maxBody, err := getEnvInt("MAX_BODY_BYTES", 50<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_BODY_BYTES: %w", err)
	}
	shutdown, err := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}
	connLifetime, err := getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONN_LIFETIME: %w", err)
	}
	connIdle, err := getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONN_IDLE_TIME: %w", err)
	}
	stmtTimeout, err := getEnvDuration("DB_STATEMENT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_STATEMENT_TIMEOUT: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cacheTTL, err := getEnvDuration("CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	jobTTL, err := getEnvDuration("JOB_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TTL: %w", err)
	}

	authRequired, err := getEnvBool("AUTH_REQUIRED", false)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_REQUIRED: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}
	retryBackoff, err := getEnvDuration("LLM_RETRY_BACKOFF", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_RETRY_BACKOFF: %w", err)
	}

	threshold, err := getEnvInt("EXTRACT_SPARSE_THRESHOLD", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACT_SPARSE_THRESHOLD: %w", err)
	}
	scale, err := getEnvFloat("EXTRACT_RENDER_SCALE", 1.5)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACT_RENDER_SCALE: %w", err)
	}
	extractTimeout, err := getEnvDuration("EXTRACT_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACT_TIMEOUT: %w", err)
	}
	extractConc, err := getEnvInt("EXTRACT_CONCURRENCY", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACT_CONCURRENCY: %w", err)
	}

	psm, err := getEnvInt("OCR_PSM", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_PSM: %w", err)
	}
	oem, err := getEnvInt("OCR_OEM", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_OEM: %w", err)
	}

	maxHistory, err := getEnvInt("CHAT_MAX_HISTORY", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_MAX_HISTORY: %w", err)
	}
	temperature, err := getEnvFloat("CHAT_TEMPERATURE", 0.7)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_TEMPERATURE: %w", err)
	}
	chatMaxTokens, err := getEnvInt("CHAT_MAX_TOKENS", 2048)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_MAX_TOKENS: %w", err)
	}
	summaryMaxTokens, err := getEnvInt("SUMMARY_MAX_TOKENS", 1024)
	if err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_MAX_TOKENS: %w", err)
	}
	chunkTokens, err := getEnvInt("SUMMARY_CHUNK_TOKENS", 3000)
	if err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_CHUNK_TOKENS: %w", err)
	}
	chunkOverlap, err := getEnvInt("SUMMARY_CHUNK_OVERLAP", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_CHUNK_OVERLAP: %w", err)
	}
	rawPDF, err := getEnvBool("CHAT_RAW_PDF", false)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_RAW_PDF: %w", err)
	}

	queueConc, err := getEnvInt("QUEUE_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_CONCURRENCY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            port,
			CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"*"}),
			RateLimitRPS:    rps,
			RateLimitBurst:  burst,
			MaxBodyBytes:    int64(maxBody),
			ShutdownTimeout: shutdown,
		},
		Database: DatabaseConfig{
			URL:              getEnv("DATABASE_URL", ""),
			MaxConns:         maxConns,
			MinConns:         minConns,
			MaxConnLifetime:  connLifetime,
			MaxConnIdleTime:  connIdle,
			StatementTimeout: stmtTimeout,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			CacheTTL: cacheTTL,
			JobTTL:   jobTTL,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Required:  authRequired,
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			OllamaModel:      getEnv("OLLAMA_MODEL", "llama3"),
			MaxRetries:       maxRetries,
			RetryBackoff:     retryBackoff,
		},
		Extraction: ExtractionConfig{
			Parser:          getEnv("EXTRACT_PARSER", "ledongthuc"),
			Renderer:        getEnv("EXTRACT_RENDERER", "fitz"),
			PdftoppmPath:    getEnv("PDFTOPPM_PATH", "pdftoppm"),
			SparseThreshold: threshold,
			RenderScale:     scale,
			Timeout:         extractTimeout,
			Concurrency:     extractConc,
		},
		OCR: OCRConfig{
			Engine:         getEnv("OCR_ENGINE", "tesseract"),
			TesseractPath:  getEnv("TESSERACT_PATH", "tesseract"),
			Languages:      getEnv("OCR_LANGUAGES", "eng+tel+hin+ara+chi_sim+chi_tra+jpn+kor+rus+spa+fra+deu"),
			TessdataDir:    getEnv("TESSDATA_DIR", ""),
			PSM:            psm,
			OEM:            oem,
			VisionProvider: getEnv("OCR_VISION_PROVIDER", ""),
			VisionModel:    getEnv("OCR_VISION_MODEL", ""),
		},
		Chat: ChatConfig{
			MaxHistory:       maxHistory,
			Temperature:      temperature,
			MaxTokens:        chatMaxTokens,
			SummaryMaxTokens: summaryMaxTokens,
			ChunkTokens:      chunkTokens,
			ChunkOverlap:     chunkOverlap,
			RawPDFMode:       rawPDF,
		},
		Queue: QueueConfig{
			Concurrency: queueConc,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string
	if c.LLM.OpenAIKey == "" && c.LLM.AnthropicKey == "" && c.LLM.OllamaURL == "" {
		problems = append(problems, "one of OPENAI_API_KEY, ANTHROPIC_API_KEY or OLLAMA_URL is required")
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required when AUTH_REQUIRED is set")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		problems = append(problems, "DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if c.Extraction.SparseThreshold < 1 {
		problems = append(problems, "EXTRACT_SPARSE_THRESHOLD must be positive")
	}
	if c.Extraction.RenderScale <= 0 {
		problems = append(problems, "EXTRACT_RENDER_SCALE must be positive")
	}
	switch c.Extraction.Renderer {
	case "fitz", "poppler", "none":
	default:
		problems = append(problems, fmt.Sprintf("unknown EXTRACT_RENDERER %q", c.Extraction.Renderer))
	}
	switch c.OCR.Engine {
	case "tesseract", "vision", "none":
	default:
		problems = append(problems, fmt.Sprintf("unknown OCR_ENGINE %q", c.OCR.Engine))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
