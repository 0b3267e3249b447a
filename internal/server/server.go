// Package server exposes the chat page and the streaming chat API.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sleuth-ai/sleuth/internal/agent"
	"github.com/sleuth-ai/sleuth/internal/config"
	"github.com/sleuth-ai/sleuth/internal/history"
	"github.com/sleuth-ai/sleuth/internal/logger"
)

//go:embed web
var webFS embed.FS

// fallbackAnswer is shown when the reasoning loop fails outright.
const fallbackAnswer = "I encountered an issue while searching for information. This might be due to tool errors or complexity in the question. Could you try rephrasing your question or selecting different search tools?"

// Processor runs one chat request to completion. Implemented by agent.Agent.
type Processor interface {
	Process(ctx context.Context, req agent.Request) (string, error)
}

// Server routes HTTP traffic to the agent and the history store.
type Server struct {
	cfg   config.Config
	agent Processor
	mux   *http.ServeMux
}

// New builds the server and its routes.
func New(cfg config.Config, proc Processor) *Server {
	s := &Server{cfg: cfg, agent: proc, mux: http.NewServeMux()}

	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		panic("embedded chat page missing: " + err.Error())
	}
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	})
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/models", s.handleModels)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	logger.L.Info("starting server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// chatRequest is the JSON body of POST /api/chat. Optional fields override
// the configured defaults; they come from the settings panel.
type chatRequest struct {
	SessionID   string   `json:"session_id"`
	Message     string   `json:"message"`
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model"`
	Temperature float32  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	MaxTurns    int      `json:"max_turns"`
	Tools       []string `json:"tools"`
}

// sseWriter serializes agent events as server-sent event frames.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: flusher}
}

func (s *sseWriter) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.L.Error("failed to marshal SSE event", "error", err)
		return
	}
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.L.Error("failed to decode chat request", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	// Reject before any upstream call when no credential is available at all.
	if req.APIKey == "" && s.cfg.LLM.APIKey == "" {
		http.Error(w, "missing API key", http.StatusUnauthorized)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	logger.L.Info("chat request", "session_id", req.SessionID, "message", req.Message)

	history.Save(history.Message{
		SessionID: req.SessionID,
		Role:      history.RoleUser,
		Content:   req.Message,
		CreatedAt: time.Now().UTC(),
	})

	sse := newSSEWriter(w)
	sse.send(map[string]string{"type": "session", "session_id": req.SessionID})

	start := time.Now()
	answer, err := s.agent.Process(r.Context(), agent.Request{
		SessionID:   req.SessionID,
		Input:       req.Message,
		APIKey:      req.APIKey,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		MaxTurns:    req.MaxTurns,
		Tools:       req.Tools,
		Emit:        func(ev agent.Event) { sse.send(ev) },
	})
	elapsed := time.Since(start)

	if err != nil {
		logger.L.Error("process error", "error", err, "session_id", req.SessionID)
		sse.send(agent.Event{Type: agent.EventError, Content: fmt.Sprintf("The agent encountered an issue: %v", err)})
		answer = fallbackAnswer
		sse.send(agent.Event{Type: agent.EventAnswer, Content: answer})
	}

	history.Save(history.Message{
		SessionID: req.SessionID,
		Role:      history.RoleAssistant,
		Content:   answer,
		CreatedAt: time.Now().UTC(),
	})

	sse.send(map[string]any{"type": "done", "elapsed_seconds": elapsed.Round(10 * time.Millisecond).Seconds()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	msgs := history.List(sessionID)
	if msgs == nil {
		msgs = []history.Message{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msgs); err != nil {
		logger.L.Error("failed to encode history", "error", err)
	}
}

// modelChoices are the hosted models offered by the settings panel.
var modelChoices = []string{"llama-3.1-8b-instant", "llama-3.3-70b-versatile", "mixtral-8x7b-32768"}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := modelChoices
	if s.cfg.LLM.Model != "" {
		seen := false
		for _, m := range models {
			if m == s.cfg.LLM.Model {
				seen = true
				break
			}
		}
		if !seen {
			models = append([]string{s.cfg.LLM.Model}, models...)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"default": s.cfg.LLM.Model, "models": models}); err != nil {
		logger.L.Error("failed to encode models", "error", err)
	}
}
