package internal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessOptions are the inputs for a one-shot run
type HeadlessOptions struct {
	Prompt    string
	Target    string
	SessionID string
}

// RunResult is the outcome of a one-shot run, shaped for machine-readable
// output
type RunResult struct {
	Success   bool      `json:"success"`
	Content   string    `json:"content,omitempty"`
	Error     string    `json:"error,omitempty"`
	Target    *Target   `json:"target,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Stats     *RunStats `json:"stats,omitempty"`
}

// RunHeadless performs one prompt-in, answer-out run: health check, catalog
// fetch, target resolution, a single dispatch, and nothing else. There are
// no retries; any failed step produces a failed result with guidance and
// the steps after it never run. Elapsed time in the stats is measured
// around the dispatch on this side of the wire.
//
// When opts.SessionID is set the exchange is appended to that stored
// session, resuming it if it already exists on disk. Without it the run is
// ephemeral: a session id is minted for the server call but nothing is
// written.
func RunHeadless(ctx context.Context, cfg Config, client *Client, store *Store, opts HeadlessOptions) *RunResult {
	if err := client.Health(ctx); err != nil {
		return failResult(cfg, fmt.Errorf("server unreachable at %s: %w", cfg.BaseURL, err))
	}

	catalog, err := client.FetchCatalog(ctx)
	if err != nil {
		return failResult(cfg, err)
	}

	target, err := ResolveTarget(opts.Target, catalog)
	if err != nil {
		return failResult(cfg, err)
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	start := time.Now()
	var resp *RunResponse
	switch target.Kind {
	case TargetAgent:
		resp, err = client.RunAgent(ctx, target.ID, opts.Prompt, sessionID)
	case TargetTeam:
		resp, err = client.RunTeam(ctx, target.ID, opts.Prompt, sessionID)
	case TargetWorkflow:
		resp, err = client.RunWorkflow(ctx, target.ID, opts.Prompt, sessionID)
	default:
		err = fmt.Errorf("unknown target kind: %s", target.Kind)
	}
	elapsed := time.Since(start)
	if err != nil {
		return failResult(cfg, err)
	}

	stats := &RunStats{Elapsed: elapsed}
	if resp.Metrics != nil {
		stats.InputTokens = resp.Metrics.InputTokens
		stats.OutputTokens = resp.Metrics.OutputTokens
	}

	result := &RunResult{
		Success:   true,
		Content:   resp.Content,
		Target:    &target,
		SessionID: sessionID,
		Stats:     stats,
	}

	if store != nil && opts.SessionID != "" {
		persistExchange(store, opts.SessionID, target, opts.Prompt, result)
	}

	return result
}

// persistExchange appends the prompt and answer to a stored session. The
// run already succeeded; persistence problems only cost the record of it.
func persistExchange(store *Store, sessionID string, target Target, prompt string, result *RunResult) {
	if err := store.LoadOrNew(sessionID); err != nil {
		LogWarn("failed to resume session %s: %v", sessionID, err)
		return
	}
	store.AddMessage(HistoryItem{
		Type:     ItemUser,
		Text:     prompt,
		Metadata: &ItemMetadata{Target: &target},
	})
	store.AddMessage(HistoryItem{
		Type:     ItemAssistant,
		Text:     result.Content,
		Metadata: &ItemMetadata{Target: &target, Stats: result.Stats},
	})
	if err := store.Flush(); err != nil {
		LogWarn("failed to save session %s: %v", sessionID, err)
	}
}

func failResult(cfg Config, err error) *RunResult {
	kind := ClassifyTransportError(err)
	guidance := ErrorGuidance(kind, cfg.BaseURL)
	return &RunResult{
		Success: false,
		Error:   FormatGuidance(guidance, err),
	}
}
