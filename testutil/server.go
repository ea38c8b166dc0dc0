package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// RecordedRequest is one request the mock server saw
type RecordedRequest struct {
	Method string
	Path   string
	Body   string
}

// MockAgentOS is a scriptable stand-in for an AgentOS server. The zero
// value answers health checks, serves an empty catalog, and echoes run
// requests; tests override fields before calling Start.
type MockAgentOS struct {
	// Catalog bodies for the three listing endpoints; empty means "[]"
	AgentsJSON    string
	TeamsJSON     string
	WorkflowsJSON string

	// HealthStatus overrides the /v1/health status code (default 200)
	HealthStatus int

	// ListStatus forces a status code per listing path, e.g. {"/v1/teams": 500}
	ListStatus map[string]int

	// StreamLines are served one SSE data: line each for streaming agent
	// runs. Empty means a two-frame default (content, then content+done).
	StreamLines []string
	// StreamDelay pauses before each line, for watchdog and cancel tests
	StreamDelay time.Duration

	// InvokeJSON overrides the body for non-streaming runs; empty echoes
	// the message back. InvokeStatus overrides the status code.
	InvokeJSON   string
	InvokeStatus int

	mu       sync.Mutex
	requests []RecordedRequest
}

// Start runs the mock server; it shuts down when the test ends
func (m *MockAgentOS) Start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(srv.Close)
	return srv
}

// Requests returns a copy of every request seen so far
func (m *MockAgentOS) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockAgentOS) record(r *http.Request) RecordedRequest {
	body := ""
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
	}
	rec := RecordedRequest{Method: r.Method, Path: r.URL.Path, Body: body}
	m.mu.Lock()
	m.requests = append(m.requests, rec)
	m.mu.Unlock()
	return rec
}

func (m *MockAgentOS) handle(w http.ResponseWriter, r *http.Request) {
	rec := m.record(r)
	path := r.URL.Path

	switch {
	case path == "/v1/health":
		status := m.HealthStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, `{"status":"ok"}`)

	case path == "/v1/agents":
		m.serveList(w, path, m.AgentsJSON)
	case path == "/v1/teams":
		m.serveList(w, path, m.TeamsJSON)
	case path == "/v1/workflows":
		m.serveList(w, path, m.WorkflowsJSON)

	case strings.HasPrefix(path, "/v1/agents/") && strings.HasSuffix(path, "/runs"):
		if isStreamRequest(rec.Body) {
			m.serveStream(w)
			return
		}
		m.serveInvoke(w, rec.Body)

	case (strings.HasPrefix(path, "/v1/teams/") || strings.HasPrefix(path, "/v1/workflows/")) && strings.HasSuffix(path, "/runs"):
		m.serveInvoke(w, rec.Body)

	default:
		http.NotFound(w, r)
	}
}

func (m *MockAgentOS) serveList(w http.ResponseWriter, path, body string) {
	if status, ok := m.ListStatus[path]; ok && status != http.StatusOK {
		http.Error(w, `{"detail":"listing failed"}`, status)
		return
	}
	if body == "" {
		body = "[]"
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprint(w, body)
}

func isStreamRequest(body string) bool {
	var req struct {
		Stream bool `json:"stream"`
	}
	_ = json.Unmarshal([]byte(body), &req)
	return req.Stream
}

func (m *MockAgentOS) serveStream(w http.ResponseWriter) {
	if m.InvokeStatus != 0 && m.InvokeStatus != http.StatusOK {
		http.Error(w, `{"detail":"run failed"}`, m.InvokeStatus)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	lines := m.StreamLines
	if len(lines) == 0 {
		lines = []string{
			`{"content":"hello "}`,
			`{"content":"world","done":true}`,
		}
	}
	for _, line := range lines {
		if m.StreamDelay > 0 {
			time.Sleep(m.StreamDelay)
		}
		_, _ = fmt.Fprintf(w, "data: %s\n\n", line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (m *MockAgentOS) serveInvoke(w http.ResponseWriter, body string) {
	if m.InvokeStatus != 0 && m.InvokeStatus != http.StatusOK {
		http.Error(w, `{"detail":"run failed"}`, m.InvokeStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if m.InvokeJSON != "" {
		_, _ = fmt.Fprint(w, m.InvokeJSON)
		return
	}

	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}
	_ = json.Unmarshal([]byte(body), &req)
	resp := map[string]interface{}{
		"content":    "echo: " + req.Message,
		"session_id": req.SessionID,
		"metrics":    map[string]int{"input_tokens": 3, "output_tokens": 5},
	}
	_ = json.NewEncoder(w).Encode(resp)
}
