package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docchat/internal/auth"
	"github.com/nikhilbhutani/docchat/internal/cache"
	"github.com/nikhilbhutani/docchat/internal/chat"
	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm/llmtest"
	"github.com/nikhilbhutani/docchat/internal/queue"
	"github.com/nikhilbhutani/docchat/pkg/datauri"
)

type fakeDocs struct {
	content *document.Content
	err     error
}

func (f *fakeDocs) Extract(_ context.Context, dataURI, _ string) (*document.Content, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	payloads []queue.ExtractPayload
	err      error
}

func (q *fakeQueue) EnqueueExtract(_ context.Context, p queue.ExtractPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, p)
	return q.err
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(_ context.Context, c *document.Content) (string, error) {
	return "summary of " + c.Text, nil
}

func (fakeSummarizer) SummarizeFile(_ context.Context, f datauri.File) (string, error) {
	return "raw summary of " + f.MIMEType, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{CORSOrigins: []string{"*"}, MaxBodyBytes: 1 << 20},
		Auth:   config.AuthConfig{JWTSecret: "secret"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJobCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewCache(client, time.Hour, time.Hour)
}

func newTestServer(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Config == nil {
		deps.Config = testConfig()
	}
	deps.Logger = discardLogger()
	if deps.Gateway == nil {
		deps.Gateway = &llmtest.Gateway{Reply: "hello from the model"}
	}
	if deps.Chat == nil {
		deps.Chat = chat.NewService(deps.Gateway, nil, nil, chat.Options{}, discardLogger())
	}
	if deps.Docs == nil {
		deps.Docs = &fakeDocs{content: &document.Content{Text: "text", Images: [][]byte{}}}
	}
	if deps.Summarizer == nil {
		deps.Summarizer = fakeSummarizer{}
	}
	rt := NewRouter(deps)
	t.Cleanup(rt.Close)
	return rt.Setup()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	engines := document.NewEngineRegistry(discardLogger())
	engines.Register(document.EngineParser, nil)
	engines.Register(document.EngineOCR, func() error { return errors.New("tesseract not found") })

	h := newTestServer(t, Deps{Engines: engines})

	if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, body %s", rec.Code, rec.Body)
	}
	var body struct {
		Engines map[string]bool `json:"engines"`
	}
	decode(t, rec, &body)
	if !body.Engines["parser"] || body.Engines["ocr"] {
		t.Errorf("engines = %v", body.Engines)
	}

	engines = document.NewEngineRegistry(discardLogger())
	engines.Register(document.EngineParser, func() error { return errors.New("broken") })
	h = newTestServer(t, Deps{Engines: engines})
	if rec := do(t, h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz without parser status = %d, want 503", rec.Code)
	}
}

func TestExtractStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("%w: bad", document.ErrMalformedInput), http.StatusBadRequest, "malformed_input"},
		{fmt.Errorf("%w: bad", document.ErrDocumentParse), http.StatusUnprocessableEntity, "document_parse"},
		{fmt.Errorf("%w: slow", document.ErrExtractionTimeout), http.StatusGatewayTimeout, "timeout"},
		{fmt.Errorf("%w: parser", document.ErrEngineUnavailable), http.StatusServiceUnavailable, "engine_unavailable"},
		{fmt.Errorf("%w: panic", document.ErrExtractionFailed), http.StatusInternalServerError, "extraction_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			h := newTestServer(t, Deps{Docs: &fakeDocs{err: tt.err}})
			rec := do(t, h, http.MethodPost, "/api/v1/extract", map[string]string{"data": "x"})
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["kind"] != tt.kind {
				t.Errorf("kind = %q, want %q", body["kind"], tt.kind)
			}
		})
	}
}

func TestExtractImages(t *testing.T) {
	content := &document.Content{
		Text:     "scan",
		Images:   [][]byte{{1, 2}},
		Metadata: document.Metadata{PageCount: 1, HasImages: true},
	}
	h := newTestServer(t, Deps{Docs: &fakeDocs{content: content}})

	var full document.Content
	decode(t, do(t, h, http.MethodPost, "/api/v1/extract", map[string]string{"data": "x"}), &full)
	if len(full.Images) != 1 {
		t.Errorf("images = %d, want 1", len(full.Images))
	}

	var slim document.Content
	decode(t, do(t, h, http.MethodPost, "/api/v1/extract?images=false", map[string]string{"data": "x"}), &slim)
	if len(slim.Images) != 0 || !slim.Metadata.HasImages {
		t.Errorf("slim content = %+v", slim)
	}
	if len(content.Images) != 1 {
		t.Error("dropping images must not mutate the extracted content")
	}
}

func TestExtractJobs(t *testing.T) {
	jobs := newJobCache(t)
	q := &fakeQueue{}
	h := newTestServer(t, Deps{Jobs: jobs, Queue: q})
	pdf := datauri.Encode("application/pdf", []byte("%PDF-1.4"))

	rec := do(t, h, http.MethodPost, "/api/v1/extract/jobs", map[string]string{"data": pdf})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var created map[string]string
	decode(t, rec, &created)
	if created["status"] != cache.JobPending || created["id"] == "" {
		t.Errorf("created = %v", created)
	}
	if len(q.payloads) != 1 || q.payloads[0].JobID != created["id"] || q.payloads[0].DataURI != pdf {
		t.Errorf("enqueued = %+v", q.payloads)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/extract/jobs/"+created["id"], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var job cache.Job
	decode(t, rec, &job)
	if job.Status != cache.JobPending {
		t.Errorf("job status = %q", job.Status)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/extract/jobs/4b7e2a8e-3c1f-4d7a-9d6e-2f1b0c9a8e7d", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/extract/jobs/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}

	png := datauri.Encode("image/png", []byte{1})
	if rec := do(t, h, http.MethodPost, "/api/v1/extract/jobs", map[string]string{"data": png}); rec.Code != http.StatusBadRequest {
		t.Errorf("non-PDF status = %d, want 400", rec.Code)
	}
}

func TestExtractJobsDisabled(t *testing.T) {
	h := newTestServer(t, Deps{})
	rec := do(t, h, http.MethodPost, "/api/v1/extract/jobs", map[string]string{"data": "x"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestChat(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodPost, "/api/v1/chat", chat.Request{
		Message: "hi",
		File:    &chat.File{Data: "garbage", Name: "notes.bin"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp chat.Response
	decode(t, rec, &resp)
	if resp.Response != "hello from the model" {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.FileSummary != "The user attached a file named notes.bin." {
		t.Errorf("file summary = %q", resp.FileSummary)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/chat", chat.Request{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", rec.Code)
	}
}

func TestChatStream(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodPost, "/api/v1/chat/stream", chat.Request{
		Message:     "hi",
		FileSummary: "earlier summary",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	var events []string
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			events = append(events, data)
		}
	}
	if len(events) < 3 {
		t.Fatalf("events = %v", events)
	}
	if events[0] != `{"fileSummary":"earlier summary"}` {
		t.Errorf("first event = %s", events[0])
	}
	if !strings.Contains(events[len(events)-1], `"done":true`) {
		t.Errorf("last event = %s", events[len(events)-1])
	}
}

func TestChatWebsocket(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, Deps{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	var msg map[string]string
	if err := conn.ReadJSON(&msg); err != nil || msg["type"] != "pong" {
		t.Fatalf("ping reply = %v, err %v", msg, err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "chat", "payload": chat.Request{Message: "hi"}}); err != nil {
		t.Fatal(err)
	}
	var text strings.Builder
	for {
		msg = nil
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg["type"] == "done" {
			break
		}
		if msg["type"] != "chunk" {
			t.Fatalf("unexpected message %v", msg)
		}
		text.WriteString(msg["content"])
	}
	if text.String() != "hello from the model" {
		t.Errorf("streamed text = %q", text.String())
	}
}

func TestSummarize(t *testing.T) {
	h := newTestServer(t, Deps{})

	var body map[string]any
	rec := do(t, h, http.MethodPost, "/api/v1/summarize", map[string]string{"data": "x"})
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body["summary"] != "summary of text" {
		t.Errorf("text mode = %d %v", rec.Code, body)
	}

	pdf := datauri.Encode("application/pdf", []byte("%PDF"))
	rec = do(t, h, http.MethodPost, "/api/v1/summarize", map[string]string{"data": pdf, "mode": "raw"})
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body["summary"] != "raw summary of application/pdf" {
		t.Errorf("raw mode = %d %v", rec.Code, body)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/summarize", map[string]string{"data": pdf, "mode": "other"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", rec.Code)
	}
}

func TestOptionalEndpoints(t *testing.T) {
	h := newTestServer(t, Deps{})

	if rec := do(t, h, http.MethodGet, "/api/v1/extractions", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("extractions status = %d, want 503", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/ocr", map[string]string{"data": "x"}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ocr status = %d, want 503", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/models", nil)
	var body struct {
		Models []map[string]any `json:"models"`
	}
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || len(body.Models) != 1 {
		t.Errorf("models = %d %v", rec.Code, body)
	}
}

func TestAuthRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Required = true
	h := newTestServer(t, Deps{Config: cfg})

	if rec := do(t, h, http.MethodGet, "/api/v1/models", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz should not require auth, got %d", rec.Code)
	}

	token, err := auth.Issue("secret", "user-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with token = %d, want 200", rec.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 16
	h := newTestServer(t, Deps{Config: cfg})

	rec := do(t, h, http.MethodPost, "/api/v1/extract", map[string]string{"data": strings.Repeat("A", 64)})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}
