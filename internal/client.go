package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Client talks to an AgentOS server. Unary calls (health, catalogs, team
// and workflow runs) get a per-call deadline; streaming runs live as long
// as frames keep arriving, bounded only by the idle watchdog and the
// caller's context.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	idle    time.Duration
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call deadline for unary requests
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithIdleTimeout sets the maximum silence tolerated between stream frames
func WithIdleTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.idle = d }
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No http.Client.Timeout: it would cut streaming responses off.
		// Unary deadlines come from per-call contexts instead.
		http:    &http.Client{},
		timeout: DefaultTimeout,
		idle:    DefaultStreamIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks that the server answers on /v1/health
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Endpoint: "/v1/health", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Endpoint: "/v1/health", StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	return nil
}

// catalogEntry is one row of a catalog listing. Servers differ on whether
// the id arrives as "id" or as the kind-specific field, so both are read.
type catalogEntry struct {
	ID         string `json:"id"`
	AgentID    string `json:"agent_id"`
	TeamID     string `json:"team_id"`
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
}

func (e catalogEntry) targetID() string {
	for _, id := range []string{e.ID, e.AgentID, e.TeamID, e.WorkflowID} {
		if id != "" {
			return id
		}
	}
	return ""
}

// ListAgents fetches the agents the server can run
func (c *Client) ListAgents(ctx context.Context) ([]Target, error) {
	return c.listTargets(ctx, "/v1/agents", TargetAgent)
}

// ListTeams fetches the teams the server can run
func (c *Client) ListTeams(ctx context.Context) ([]Target, error) {
	return c.listTargets(ctx, "/v1/teams", TargetTeam)
}

// ListWorkflows fetches the workflows the server can run
func (c *Client) ListWorkflows(ctx context.Context) ([]Target, error) {
	return c.listTargets(ctx, "/v1/workflows", TargetWorkflow)
}

func (c *Client) listTargets(ctx context.Context, endpoint string, kind TargetKind) ([]Target, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	var entries []catalogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, &APIError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode listing: %w", err)}
	}

	targets := make([]Target, 0, len(entries))
	for _, e := range entries {
		id := e.targetID()
		if id == "" {
			LogDebug("skipping %s entry with no id (name=%q)", kind, e.Name)
			continue
		}
		targets = append(targets, Target{ID: id, Name: e.Name, Kind: kind})
	}
	return targets, nil
}

// FetchCatalog fetches agents, teams, and workflows in parallel. Any one
// failing listing fails the whole fetch, with the endpoint named in the
// returned error.
func (c *Client) FetchCatalog(ctx context.Context) (Catalog, error) {
	var cat Catalog
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agents, err := c.ListAgents(ctx)
		if err != nil {
			return err
		}
		cat.Agents = agents
		return nil
	})
	g.Go(func() error {
		teams, err := c.ListTeams(ctx)
		if err != nil {
			return err
		}
		cat.Teams = teams
		return nil
	})
	g.Go(func() error {
		workflows, err := c.ListWorkflows(ctx)
		if err != nil {
			return err
		}
		cat.Workflows = workflows
		return nil
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// runRequest is the body of a run invocation
type runRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Stream    bool   `json:"stream"`
}

// RunMetrics is the server's own accounting for a run
type RunMetrics struct {
	InputTokens  int   `json:"input_tokens,omitempty"`
	OutputTokens int   `json:"output_tokens,omitempty"`
	DurationMS   int64 `json:"duration_ms,omitempty"`
}

// RunResponse is a complete non-streamed run result
type RunResponse struct {
	Content   string      `json:"content"`
	SessionID string      `json:"session_id,omitempty"`
	Metrics   *RunMetrics `json:"metrics,omitempty"`
}

// RunAgent invokes an agent without streaming
func (c *Client) RunAgent(ctx context.Context, agentID, message, sessionID string) (*RunResponse, error) {
	return c.invoke(ctx, fmt.Sprintf("/v1/agents/%s/runs", agentID), message, sessionID)
}

// RunTeam invokes a team. Teams answer with a single JSON document.
func (c *Client) RunTeam(ctx context.Context, teamID, message, sessionID string) (*RunResponse, error) {
	return c.invoke(ctx, fmt.Sprintf("/v1/teams/%s/runs", teamID), message, sessionID)
}

// RunWorkflow invokes a workflow. Workflows answer like teams do.
func (c *Client) RunWorkflow(ctx context.Context, workflowID, message, sessionID string) (*RunResponse, error) {
	return c.invoke(ctx, fmt.Sprintf("/v1/workflows/%s/runs", workflowID), message, sessionID)
}

func (c *Client) invoke(ctx context.Context, endpoint, message, sessionID string) (*RunResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(runRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: readErrorBody(resp.Body, resp.Status)}
	}

	var result RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &APIError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &result, nil
}

// FrameMetadata classifies a stream frame. Type empty or "content" means
// response text; anything else is an event. Fields beyond type and event_id
// are kept as-is in Extra.
type FrameMetadata struct {
	Type    string                 `json:"type,omitempty"`
	EventID string                 `json:"event_id,omitempty"`
	Extra   map[string]interface{} `json:"-"`
}

// RunFrame is one decoded stream frame
type RunFrame struct {
	Content   string         `json:"content"`
	Done      bool           `json:"done"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  *FrameMetadata `json:"metadata,omitempty"`
	Metrics   *RunMetrics    `json:"metrics,omitempty"`
}

// ParseFrame decodes one frame payload. Decoding is permissive: fields the
// server adds beyond the known ones survive in Metadata.Extra, and type
// mismatches degrade to zero values rather than failing the stream.
func ParseFrame(data []byte) (RunFrame, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return RunFrame{}, fmt.Errorf("failed to parse frame: %w", err)
	}

	frame := RunFrame{
		Content:   getString(raw, "content"),
		Done:      getBool(raw, "done"),
		SessionID: getString(raw, "session_id"),
	}

	if md, ok := raw["metadata"].(map[string]interface{}); ok {
		fm := &FrameMetadata{
			Type:    getString(md, "type"),
			EventID: getString(md, "event_id"),
		}
		extra := make(map[string]interface{})
		for k, v := range md {
			if k == "type" || k == "event_id" {
				continue
			}
			extra[k] = v
		}
		if len(extra) > 0 {
			fm.Extra = extra
		}
		frame.Metadata = fm
	}

	if mt, ok := raw["metrics"].(map[string]interface{}); ok {
		frame.Metrics = &RunMetrics{
			InputTokens:  getInt(mt, "input_tokens"),
			OutputTokens: getInt(mt, "output_tokens"),
			DurationMS:   int64(getInt(mt, "duration_ms")),
		}
	}

	return frame, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func getInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// RunStream is a handle on one streaming agent run. Frames delivers decoded
// frames until the stream ends; after Frames is closed, Err reports how it
// ended (nil for a clean finish). Close abandons the stream early.
type RunStream struct {
	frames chan RunFrame
	body   io.ReadCloser
	idle   time.Duration

	finishOnce sync.Once
	closeOnce  sync.Once
	timedOut   atomic.Bool

	mu  sync.Mutex
	err error
}

// Frames returns the channel of decoded frames
func (s *RunStream) Frames() <-chan RunFrame {
	return s.frames
}

// Err reports the stream's terminal error. Valid once Frames is closed.
func (s *RunStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the stream. The read loop unblocks and Frames closes.
func (s *RunStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

func (s *RunStream) finish(err error) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.frames)
	})
}

// StreamAgentRun starts a streaming agent run. Frames arrive as
// server-sent events, one JSON payload per "data:" line, terminated by a
// done frame or a [DONE] sentinel.
func (c *Client) StreamAgentRun(ctx context.Context, agentID, message, sessionID string) (*RunStream, error) {
	endpoint := fmt.Sprintf("/v1/agents/%s/runs", agentID)

	body, err := json.Marshal(runRequest{Message: message, SessionID: sessionID, Stream: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: readErrorBody(resp.Body, resp.Status)}
	}

	stream := &RunStream{
		frames: make(chan RunFrame, 32),
		body:   resp.Body,
		idle:   c.idle,
	}
	go stream.readLoop(ctx)
	return stream, nil
}

// readLoop pumps SSE lines into the frames channel until the stream ends
func (s *RunStream) readLoop(ctx context.Context) {
	defer func() { _ = s.Close() }()

	var watchdog *time.Timer
	if s.idle > 0 {
		watchdog = time.AfterFunc(s.idle, func() {
			s.timedOut.Store(true)
			_ = s.Close()
		})
		defer watchdog.Stop()
	}

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if watchdog != nil {
			watchdog.Reset(s.idle)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			// Blank separators and SSE comments
			continue
		}
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			s.finish(nil)
			return
		}

		frame, err := ParseFrame([]byte(payload))
		if err != nil {
			LogDebug("dropping malformed frame: %v", err)
			continue
		}

		select {
		case s.frames <- frame:
		case <-ctx.Done():
			s.finish(ctx.Err())
			return
		}

		if frame.Done {
			s.finish(nil)
			return
		}
	}

	err := scanner.Err()
	if s.timedOut.Load() {
		err = fmt.Errorf("no stream activity for %s: %w", s.idle, context.DeadlineExceeded)
	} else if ctx.Err() != nil {
		err = ctx.Err()
	}
	s.finish(err)
}

// readErrorBody extracts a short error message from a failed response
func readErrorBody(r io.Reader, status string) error {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return errors.New(status)
	}
	msg := strings.TrimSpace(string(data))
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Detail != "" {
			msg = payload.Detail
		} else if payload.Error != "" {
			msg = payload.Error
		}
	}
	return errors.New(msg)
}
