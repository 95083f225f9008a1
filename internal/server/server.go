// Package server exposes the assistant over HTTP for browser front-ends.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/agent"
	"github.com/spigell/draft-n-pray/internal/knowledge"
	"github.com/spigell/draft-n-pray/internal/tools"
)

const (
	defaultMaxUpload = 20 << 20
	shutdownTimeout  = 10 * time.Second
)

type Assistant interface {
	Run(ctx context.Context, thread, message string, onEvent func(agent.Event)) (string, error)
	Sessions() *agent.Sessions
}

type KnowledgeBase interface {
	IngestAs(ctx context.Context, path, source string) (*knowledge.Stats, error)
	Stats() (knowledge.Stats, bool)
}

type Options struct {
	Model     string
	Crawler   string
	MaxUpload int64
}

type Server struct {
	assistant Assistant
	kb        KnowledgeBase
	tools     []tools.Info
	opts      Options
	logger    *zap.Logger
}

func New(assistant Assistant, kb KnowledgeBase, toolInfos []tools.Info, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = defaultMaxUpload
	}
	return &Server{assistant: assistant, kb: kb, tools: toolInfos, opts: opts, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.status)
	mux.HandleFunc("POST /api/cv", s.uploadCV)
	mux.HandleFunc("POST /api/chat", s.chat)
	mux.HandleFunc("DELETE /api/chat/{thread}", s.resetChat)
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is done and then shuts the server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusResponse struct {
	Ready   bool             `json:"ready"`
	CV      *knowledge.Stats `json:"cv,omitempty"`
	Model   string           `json:"model,omitempty"`
	Crawler string           `json:"crawler,omitempty"`
	Tools   []tools.Info     `json:"tools"`
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Model: s.opts.Model, Crawler: s.opts.Crawler, Tools: s.tools}
	if stats, ok := s.kb.Stats(); ok {
		resp.Ready = true
		resp.CV = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) uploadCV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read uploaded file: %w", err))
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("only PDF files are supported, got %q", header.Filename))
		return
	}

	tmp, err := os.CreateTemp("", "cv-*.pdf")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusBadRequest, fmt.Errorf("store uploaded file: %w", err))
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	stats, err := s.kb.IngestAs(r.Context(), tmp.Name(), filepath.Base(header.Filename))
	if err != nil {
		s.logger.Warn("cv upload failed", zap.String("filename", header.Filename), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type chatRequest struct {
	ThreadID      string `json:"thread_id"`
	Message       string `json:"message"`
	ShowToolCalls bool   `json:"show_tool_calls"`
}

// chat streams the events of one turn as newline-delimited JSON.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = agent.NewThreadID()
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	send := func(event agent.Event) {
		if err := enc.Encode(event); err != nil {
			s.logger.Debug("write chat event", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	_, err := s.assistant.Run(r.Context(), req.ThreadID, req.Message, func(event agent.Event) {
		if event.Type != agent.EventMessage && !req.ShowToolCalls {
			return
		}
		send(event)
	})
	if err != nil {
		s.logger.Warn("chat turn failed", zap.String("thread_id", req.ThreadID), zap.Error(err))
		send(agent.Event{Type: "error", Thread: req.ThreadID, Error: err.Error()})
	}
}

func (s *Server) resetChat(w http.ResponseWriter, r *http.Request) {
	s.assistant.Sessions().Reset(r.PathValue("thread"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
