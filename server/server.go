// Package server exposes the engine and the memory store over HTTP: JSON
// endpoints, an SSE streaming endpoint, and a websocket chat channel. It
// adapts transport only; all behavior lives in engine and memory.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hollowlabs/revenant/core"
	"github.com/hollowlabs/revenant/engine"
	"github.com/hollowlabs/revenant/memory"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":5051".
	Addr string

	// AuthToken enables bearer-token auth when non-empty.
	AuthToken string

	// AllowedOrigins configures CORS. Empty disables cross-origin access;
	// "*" allows all.
	AllowedOrigins []string

	// RateLimitPerMinute caps requests per client IP. Zero disables.
	RateLimitPerMinute int

	// ReadTimeout and WriteTimeout bound request handling. Write covers
	// streaming responses, so it defaults generously.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP gateway.
type Server struct {
	engine *engine.Engine
	cfg    Config
	http   *http.Server
}

// New creates a server over the given engine.
func New(e *engine.Engine, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":5051"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}

	s := &Server{engine: e, cfg: cfg}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/models", s.handleModels)

	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("POST /api/query/stream", s.handleQueryStream)

	mux.HandleFunc("POST /api/memory/search", s.handleMemorySearch)
	mux.HandleFunc("POST /api/memory/hybrid", s.handleMemoryHybrid)
	mux.HandleFunc("POST /api/memory/store", s.handleMemoryStore)
	mux.HandleFunc("GET /api/memory/stats", s.handleMemoryStats)
	mux.HandleFunc("POST /api/memory/clear", s.handleMemoryClear)
	mux.HandleFunc("POST /api/memory/backup", s.handleMemoryBackup)
	mux.HandleFunc("POST /api/memory/restore", s.handleMemoryRestore)
	mux.HandleFunc("GET /api/memory/item/{key}", s.handleMemoryRetrieve)
	mux.HandleFunc("PUT /api/memory/item/{key}", s.handleMemoryUpdate)
	mux.HandleFunc("DELETE /api/memory/item/{key}", s.handleMemoryDelete)

	mux.HandleFunc("GET /api/tools", s.handleToolList)
	mux.HandleFunc("POST /api/tools/execute", s.handleToolExecute)

	mux.HandleFunc("GET /ws", s.handleWebsocket)

	var rl *rateLimiter
	if s.cfg.RateLimitPerMinute > 0 {
		rl = newRateLimiter(s.cfg.RateLimitPerMinute, time.Minute)
	}

	return chain(mux,
		requestLog,
		securityHeaders,
		corsMiddleware(s.cfg.AllowedOrigins),
		authMiddleware(s.cfg.AuthToken),
		rateLimitMiddleware(rl),
	)
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Printf("[SERVER] Listening on %s", s.cfg.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) store() (memory.Store, error) {
	m := s.engine.Memory()
	if m == nil {
		return nil, errors.New("memory is not configured")
	}
	return m.Store(), nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":   "ok",
		"provider": s.engine.Provider().Name(),
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.engine.HealthCheck(ctx); err != nil {
		status["status"] = "degraded"
		status["provider_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.engine.Provider().ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req core.AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp, err := s.engine.Query(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQueryStream streams the response as server-sent events: one
// "chunk" event per fragment, then a terminal "done" event with metadata.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req core.AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	resp, err := s.engine.QueryStream(r.Context(), &req, func(chunk string) {
		payload, _ := json.Marshal(map[string]string{"content": chunk})
		fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", payload)
		flusher.Flush()
	})
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
		flusher.Flush()
		return
	}

	payload, _ := json.Marshal(resp)
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", payload)
	flusher.Flush()
}

type searchRequest struct {
	Query          string   `json:"query"`
	Limit          int      `json:"limit"`
	Threshold      *float64 `json:"threshold,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var results []memory.SearchResult
	if req.Threshold != nil {
		results, err = store.SemanticSearch(r.Context(), req.Query, *req.Threshold, req.Limit)
	} else {
		results, err = store.Search(r.Context(), req.Query, req.Limit)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleMemoryHybrid(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	weight := memory.DefaultSemanticWeight
	if req.SemanticWeight != nil {
		weight = *req.SemanticWeight
	}
	results, err := store.HybridSearch(r.Context(), req.Query, req.Keywords, weight, req.Limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleMemoryStore(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	var req struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := store.Store(r.Context(), req.Key, req.Value); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"stored": true, "key": req.Key})
}

func (s *Server) handleMemoryRetrieve(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	key := r.PathValue("key")
	value, err := store.Retrieve(r.Context(), key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

func (s *Server) handleMemoryUpdate(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	var req struct {
		Value any `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	key := r.PathValue("key")
	updated, err := store.Update(r.Context(), key, req.Value)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "updated": updated})
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	key := r.PathValue("key")
	deleted, err := store.Delete(r.Context(), key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "deleted": deleted})
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	stats, err := store.Stats(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err := store.Clear(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

func (s *Server) handleMemoryBackup(w http.ResponseWriter, r *http.Request) {
	s.handleMemoryCopy(w, r, func(ctx context.Context, st memory.Store, dir string) error {
		return st.Backup(ctx, dir)
	})
}

func (s *Server) handleMemoryRestore(w http.ResponseWriter, r *http.Request) {
	s.handleMemoryCopy(w, r, func(ctx context.Context, st memory.Store, dir string) error {
		return st.Restore(ctx, dir)
	})
}

func (s *Server) handleMemoryCopy(w http.ResponseWriter, r *http.Request, op func(context.Context, memory.Store, string) error) {
	store, err := s.store()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	var req struct {
		Dir string `json:"dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Dir == "" {
		writeError(w, http.StatusBadRequest, "dir is required")
		return
	}
	if err := op(r.Context(), store, req.Dir); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "dir": req.Dir})
}

func (s *Server) handleToolList(w http.ResponseWriter, r *http.Request) {
	registry := s.engine.Registry()
	if registry == nil {
		writeError(w, http.StatusServiceUnavailable, "tools are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": registry.Definitions()})
}

func (s *Server) handleToolExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tool  string          `json:"tool"`
		Input json.RawMessage `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Tool == "" {
		writeError(w, http.StatusBadRequest, "tool is required")
		return
	}
	result, err := s.engine.ExecuteTool(r.Context(), req.Tool, req.Input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[SERVER] Encode response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinel errors to HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, memory.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, memory.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
