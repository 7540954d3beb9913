// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/GriffinCanCode/glyphscan/internal/errors"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/screen"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	"github.com/GriffinCanCode/glyphscan/internal/trace"
)

// Orchestrator is the pipeline the server exposes.
type Orchestrator interface {
	Recognize(ctx context.Context, data []byte) (*recognize.Result, error)
	Refresh(ctx context.Context) (*recognize.Result, error)
	LatestScreen() (screen.Snapshot, uint64)
	WaitScreen(ctx context.Context, after uint64) (screen.Snapshot, uint64, error)
	RecentDialog(n int) []orchestrator.Utterance
	DialogEvents() <-chan orchestrator.Utterance
	SetRecording(enabled bool) error
	Recording() bool
	Stats() orchestrator.Stats
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type ScreenMessage struct {
	Type      string           `json:"type"`
	Version   uint64           `json:"version"`
	Lines     []recognize.Line `json:"lines"`
	Agreement int              `json:"agreement"`
	Truncated bool             `json:"truncated"`
	At        time.Time        `json:"at"`
	Clock     string           `json:"clock,omitempty"`
}

type DialogMessage struct {
	Type  string    `json:"type"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
	Clock string    `json:"clock,omitempty"`
}

type HistoryMessage struct {
	Type       string                   `json:"type"`
	Utterances []orchestrator.Utterance `json:"utterances"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func screenMessage(snap screen.Snapshot, version uint64) ScreenMessage {
	lines := snap.Lines
	if lines == nil {
		lines = []recognize.Line{}
	}
	return ScreenMessage{
		Type:      "screen",
		Version:   version,
		Lines:     lines,
		Agreement: snap.Agreement,
		Truncated: snap.Truncated,
		At:        snap.At,
		Clock:     snap.Clock,
	}
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	orch       Orchestrator
	ips        *ipLimiter
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a new server. Broadcasters run until ctx is done.
func New(ctx context.Context, orch Orchestrator) *Server {
	s := &Server{
		orch:       orch,
		ips:        newIPLimiter(),
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}

	// Start broadcasters
	go s.broadcastDialog(ctx)
	go s.broadcastScreens(ctx)
	go s.ips.cleanupLoop(ctx)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/screen", s.handleScreen)
	mux.HandleFunc("POST /api/screen/refresh", s.ips.limit(s.handleRefresh))
	mux.HandleFunc("GET /api/dialog", s.handleDialog)
	mux.HandleFunc("POST /api/recognize", s.ips.limit(s.handleRecognize))
	mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	app := apperrors.FromCore(err)
	status := app.HTTPStatus()
	if status >= http.StatusInternalServerError {
		trace.Logger(ctx).Error("request failed", "error", err)
	} else {
		trace.Logger(ctx).Debug("request rejected", "error", err)
	}
	writeJSON(w, status, errorBody{Error: app.Message, Code: app.Code.String()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = newRateLimiter(RateLimitMessages, RateLimitWindow)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// Greet with the current state so clients need not wait for a change.
	snap, ver := s.orch.LatestScreen()
	if ver > 0 {
		_ = wsjson.Write(baseCtx, conn, screenMessage(snap, ver))
	}

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Check rate limit
		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, RateLimitedMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "ping":
			_ = wsjson.Write(baseCtx, conn, Message{Type: "pong"})
		case "history":
			_ = wsjson.Write(baseCtx, conn, HistoryMessage{
				Type:       "history",
				Utterances: s.orch.RecentDialog(DefaultDialogCount),
			})
		case "screen":
			snap, ver := s.orch.LatestScreen()
			_ = wsjson.Write(baseCtx, conn, screenMessage(snap, ver))
		}
	}
}

// broadcast writes msg to every connected client.
func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			ctx, cancel := context.WithTimeout(context.Background(), BroadcastWriteTimeout)
			defer cancel()
			_ = wsjson.Write(ctx, c, msg)
		}(conn)
	}
	s.mu.RUnlock()
}

func (s *Server) broadcastDialog(ctx context.Context) {
	events := s.orch.DialogEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-events:
			if !ok {
				return
			}
			s.broadcast(DialogMessage{Type: "dialog", Text: u.Text, At: u.At, Clock: u.Clock.Text})
		}
	}
}

func (s *Server) broadcastScreens(ctx context.Context) {
	_, ver := s.orch.LatestScreen()
	for {
		snap, next, err := s.orch.WaitScreen(ctx, ver)
		if err != nil {
			return
		}
		ver = next
		s.broadcast(screenMessage(snap, ver))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	snap, ver := s.orch.LatestScreen()
	writeJSON(w, http.StatusOK, screenMessage(snap, ver))
}

func (s *Server) handleDialog(w http.ResponseWriter, r *http.Request) {
	n := DefaultDialogCount
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(r.Context(), w, apperrors.Newf(apperrors.InvalidInput, "invalid n %q", v))
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, HistoryMessage{Type: "history", Utterances: s.orch.RecentDialog(n)})
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImageBytes))
	if err != nil {
		writeError(r.Context(), w, apperrors.Wrap(err, apperrors.InvalidInput, "image too large or unreadable"))
		return
	}
	if len(data) == 0 {
		writeError(r.Context(), w, apperrors.New(apperrors.InvalidInput, "empty body"))
		return
	}
	res, err := s.orch.Recognize(r.Context(), data)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Report())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.orch.Refresh(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Report())
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.SetRecording(true); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recording_started"})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.SetRecording(false); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recording_stopped"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Stats())
}
