package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nikhilbhutani/docchat/internal/chat"
	"github.com/nikhilbhutani/docchat/internal/llm"
)

type ChatResponder interface {
	Respond(ctx context.Context, req chat.Request) (*chat.Response, error)
	RespondStream(ctx context.Context, req chat.Request) (<-chan llm.StreamChunk, string, error)
}

type ChatHandler struct {
	svc      ChatResponder
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// pongWait bounds the silence tolerated from a websocket client; pings go
	// out every pingPeriod, which must be shorter.
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewChatHandler(svc ChatResponder, allowedOrigins []string, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	allowAll := slices.Contains(allowedOrigins, "*")
	return &ChatHandler{
		svc:        svc,
		logger:     logger,
		pongWait:   wsPongWait,
		pingPeriod: wsPongWait * 9 / 10,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.Respond(r.Context(), req)
	if err != nil {
		writeError(w, chatStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ChatStream answers with server-sent events. The first event carries the
// file summary when there is one; the rest are stream chunks.
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch, summary, err := h.svc.RespondStream(r.Context(), req)
	if err != nil {
		writeError(w, chatStatus(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if summary != "" {
		data, _ := json.Marshal(map[string]string{"fileSummary": summary})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for chunk := range ch {
		if chunk.Error != nil {
			fmt.Fprintf(w, "data: {\"error\":%q}\n\n", chunk.Error.Error())
			flusher.Flush()
			return
		}

		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		if chunk.Done {
			return
		}
	}
}

// Websocket message types.
const (
	wsChat    = "chat"
	wsPing    = "ping"
	wsPong    = "pong"
	wsSummary = "summary"
	wsChunk   = "chunk"
	wsDone    = "done"
	wsError   = "error"
)

type wsRequest struct {
	Type    string       `json:"type"`
	Payload chat.Request `json:"payload"`
}

type wsResponse struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

const (
	wsReadLimit = 32 << 20
	wsPongWait  = 60 * time.Second
	wsWriteWait = 10 * time.Second
)

// wsSession serializes writes; replies, pong messages and errors come from
// different goroutines.
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(msg wsResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(msg)
}

// Websocket serves a chat session: each "chat" message is answered with an
// optional summary message, a sequence of chunks and a done message. The
// connection keeps reading while a reply is produced, so control pings and
// pongs flow during long extractions. One reply runs at a time.
func (h *ChatHandler) Websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.keepAlive(ctx, conn)
	}()

	sess := &wsSession{conn: conn}
	busy := make(chan struct{}, 1)
	for {
		var msg wsRequest
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.pongWait))

		switch msg.Type {
		case wsPing:
			if err := sess.send(wsResponse{Type: wsPong}); err != nil {
				return
			}
		case wsChat:
			select {
			case busy <- struct{}{}:
			default:
				if err := sess.send(wsResponse{Type: wsError, Content: "a reply is already in progress"}); err != nil {
					return
				}
				continue
			}
			wg.Add(1)
			go func(req chat.Request) {
				defer wg.Done()
				defer func() { <-busy }()
				if err := h.streamTo(ctx, sess, req); err != nil {
					h.logger.Warn("websocket write failed", "error", err)
				}
			}(msg.Payload)
		default:
			if err := sess.send(wsResponse{Type: wsError, Content: "unknown message type"}); err != nil {
				return
			}
		}
	}
}

func (h *ChatHandler) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *ChatHandler) streamTo(ctx context.Context, sess *wsSession, req chat.Request) error {
	ch, summary, err := h.svc.RespondStream(ctx, req)
	if err != nil {
		return sess.send(wsResponse{Type: wsError, Content: err.Error()})
	}
	if summary != "" {
		if err := sess.send(wsResponse{Type: wsSummary, Content: summary}); err != nil {
			return err
		}
	}
	for chunk := range ch {
		switch {
		case chunk.Error != nil:
			return sess.send(wsResponse{Type: wsError, Content: chunk.Error.Error()})
		case chunk.Done:
			return sess.send(wsResponse{Type: wsDone})
		case chunk.Content != "":
			if err := sess.send(wsResponse{Type: wsChunk, Content: chunk.Content}); err != nil {
				return err
			}
		}
	}
	return sess.send(wsResponse{Type: wsDone})
}

func chatStatus(err error) int {
	if errors.Is(err, chat.ErrEmptyMessage) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
