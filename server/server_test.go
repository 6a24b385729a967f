package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hollowlabs/revenant/core"
	"github.com/hollowlabs/revenant/engine"
	"github.com/hollowlabs/revenant/llm"
	"github.com/hollowlabs/revenant/memory"
	"github.com/hollowlabs/revenant/memory/embedder/mock"
	"github.com/hollowlabs/revenant/memory/store/flat"
	"github.com/hollowlabs/revenant/tools"
)

type stubProvider struct{ reply string }

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Chat(ctx context.Context, system string, messages []core.Message) (*llm.Reply, error) {
	return &llm.Reply{Content: s.reply, Model: "stub-model"}, nil
}

func (s *stubProvider) ChatStream(ctx context.Context, system string, messages []core.Message, onChunk func(string)) (*llm.Reply, error) {
	for _, part := range strings.SplitAfter(s.reply, " ") {
		onChunk(part)
	}
	return &llm.Reply{Content: s.reply, Model: "stub-model"}, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) error { return nil }

func (s *stubProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{"stub-model"}, nil
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	store, err := flat.New(flat.Config{
		Dir:      t.TempDir(),
		Embedder: mock.NewWithDimensions(64),
	})
	if err != nil {
		t.Fatalf("flat.New failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, t.TempDir())

	e := engine.New(&stubProvider{reply: "stub reply"},
		engine.WithMemory(memory.NewManager(store, nil)),
		engine.WithRegistry(registry),
	)
	return New(e, cfg)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" || body["provider"] != "stub" {
		t.Errorf("body = %v", body)
	}
}

func TestQueryEndpoint(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()
	rec := doJSON(t, h, http.MethodPost, "/api/query", map[string]any{"query": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["response"] != "stub reply" {
		t.Errorf("response = %v", body["response"])
	}
	if body["session_id"] == "" {
		t.Error("missing session_id")
	}
}

func TestQueryStreamSSE(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()
	rec := doJSON(t, h, http.MethodPost, "/api/query/stream", map[string]any{"query": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "event: chunk") {
		t.Errorf("missing chunk events in %q", out)
	}
	if !strings.Contains(out, "event: done") {
		t.Errorf("missing done event in %q", out)
	}
}

func TestMemoryEndpoints(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/memory/store", map[string]any{
		"key":   "greeting",
		"value": "hello memory endpoint",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("store status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/memory/item/greeting", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve status = %d", rec.Code)
	}
	if decode(t, rec)["value"] != "hello memory endpoint" {
		t.Errorf("retrieve body = %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/memory/search", map[string]any{"query": "hello", "limit": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rec.Code, rec.Body.String())
	}
	if decode(t, rec)["count"].(float64) < 1 {
		t.Error("search found nothing")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/memory/hybrid", map[string]any{
		"query":    "hello",
		"keywords": []string{"memory"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("hybrid status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/memory/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	if decode(t, rec)["total_items"].(float64) != 1 {
		t.Errorf("stats body = %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/memory/item/greeting", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if decode(t, rec)["deleted"] != true {
		t.Errorf("delete body = %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/memory/item/greeting", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("retrieve after delete status = %d", rec.Code)
	}
}

func TestMemorySearchInvalidInput(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()
	rec := doJSON(t, h, http.MethodPost, "/api/memory/search", map[string]any{"query": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank query status = %d", rec.Code)
	}
}

func TestToolEndpoints(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/tools", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tools list status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/tools/execute", map[string]any{
		"tool":  "system_info",
		"input": map[string]any{},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("execute status = %d: %s", rec.Code, rec.Body.String())
	}
	if decode(t, rec)["success"] != true {
		t.Errorf("execute body = %s", rec.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	h := newTestServer(t, Config{AuthToken: "secret"}).Handler()

	// healthz stays open.
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/memory/stats", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/memory/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", rec2.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Config{RateLimitPerMinute: 3}).Handler()

	var last int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/memory/stats", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("4th request status = %d, want 429", last)
	}

	// Other IPs are unaffected.
	req := httptest.NewRequest(http.MethodGet, "/api/memory/stats", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other IP status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, Config{AllowedOrigins: []string{"http://localhost:3000"}}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("allow-origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin received CORS headers")
	}
}

func TestWebsocketChat(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, Config{}).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsMessage{Type: "query", Query: "hello ws"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var sawChunk, sawDone bool
	for !sawDone {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		switch msg.Type {
		case "chunk":
			sawChunk = true
		case "done":
			sawDone = true
			if msg.Response == nil || msg.Response.Response != "stub reply" {
				t.Errorf("done frame = %+v", msg)
			}
		case "error":
			t.Fatalf("error frame: %s", msg.Error)
		}
	}
	if !sawChunk {
		t.Error("no chunk frames received")
	}
}

func TestRequestLogHijack(t *testing.T) {
	// Websocket upgrades hijack the connection; the logging wrapper must
	// pass that capability through to the real response writer.
	srv := httptest.NewServer(requestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("wrapped response writer does not implement http.Hijacker")
			return
		}
		conn, rw, err := hj.Hijack()
		if err != nil {
			t.Errorf("Hijack failed: %v", err)
			return
		}
		defer conn.Close()
		rw.WriteString("HTTP/1.1 204 No Content\r\nConnection: close\r\n\r\n")
		rw.Flush()
	})))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	// Writers without hijack support get an error, not a panic.
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if _, _, err := rec.Hijack(); err == nil {
		t.Error("expected error hijacking a plain recorder")
	}
}

func TestRateLimiterEvictsIdleIPs(t *testing.T) {
	rl := newRateLimiter(10, 20*time.Millisecond)
	rl.allow("10.0.0.1")
	rl.allow("10.0.0.2")

	// Let both entries age out of the window, then trigger a sweep with a
	// hit from a third IP.
	time.Sleep(50 * time.Millisecond)
	rl.allow("10.0.0.3")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.history) != 1 {
		t.Errorf("history holds %d IPs, want 1", len(rl.history))
	}
	if _, ok := rl.history["10.0.0.3"]; !ok {
		t.Error("fresh IP missing from history")
	}
}
