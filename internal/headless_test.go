package internal

import (
	"context"
	"strings"
	"testing"

	"github.com/iksnae/agentos-chat/testutil"
)

func headlessFixture(t *testing.T) (*testutil.MockAgentOS, Config, *Client) {
	t.Helper()
	mock := &testutil.MockAgentOS{
		AgentsJSON: testutil.CatalogListJSON(testutil.CatalogEntryJSON("payments-agent", "Payments Agent")),
		TeamsJSON:  testutil.CatalogListJSON(testutil.CatalogEntryJSON("research-team", "Research Team")),
	}
	srv := mock.Start(t)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	return mock, cfg, NewClient(srv.URL)
}

func TestRunHeadless_Success(t *testing.T) {
	_, cfg, client := headlessFixture(t)

	result := RunHeadless(context.Background(), cfg, client, nil, HeadlessOptions{
		Prompt: "hello there",
		Target: "payments-agent",
	})

	if !result.Success {
		t.Fatalf("RunHeadless() failed: %s", result.Error)
	}
	if result.Content != "echo: hello there" {
		t.Errorf("Content = %q", result.Content)
	}
	if result.Target == nil || result.Target.ID != "payments-agent" {
		t.Errorf("Target = %+v", result.Target)
	}
	if result.SessionID == "" {
		t.Error("SessionID is empty, want a minted id")
	}
	if result.Stats == nil || result.Stats.OutputTokens != 5 {
		t.Errorf("Stats = %+v, want the server's token counts", result.Stats)
	}
	if result.Stats != nil && result.Stats.Elapsed <= 0 {
		t.Errorf("Stats.Elapsed = %v, want positive", result.Stats.Elapsed)
	}
}

func TestRunHeadless_ResolvesByName(t *testing.T) {
	_, cfg, client := headlessFixture(t)

	result := RunHeadless(context.Background(), cfg, client, nil, HeadlessOptions{
		Prompt: "hi",
		Target: "payments",
	})

	if !result.Success {
		t.Fatalf("RunHeadless() failed: %s", result.Error)
	}
	if result.Target.ID != "payments-agent" {
		t.Errorf("Target.ID = %q, want resolved by name substring", result.Target.ID)
	}
}

func TestRunHeadless_TeamTarget(t *testing.T) {
	mock, cfg, client := headlessFixture(t)

	result := RunHeadless(context.Background(), cfg, client, nil, HeadlessOptions{
		Prompt: "dig into this",
		Target: "research-team",
	})

	if !result.Success {
		t.Fatalf("RunHeadless() failed: %s", result.Error)
	}
	if result.Target.Kind != TargetTeam {
		t.Errorf("Target.Kind = %q, want team", result.Target.Kind)
	}

	// The dispatch went to the team runs endpoint
	var sawTeamRun bool
	for _, req := range mock.Requests() {
		if req.Path == "/v1/teams/research-team/runs" {
			sawTeamRun = true
		}
	}
	if !sawTeamRun {
		t.Error("no request hit the team runs endpoint")
	}
}

func TestRunHeadless_ServerUnreachable(t *testing.T) {
	mock := &testutil.MockAgentOS{}
	srv := mock.Start(t)
	url := srv.URL
	srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = url
	result := RunHeadless(context.Background(), cfg, NewClient(url), nil, HeadlessOptions{
		Prompt: "anyone home?",
		Target: "payments-agent",
	})

	if result.Success {
		t.Fatal("RunHeadless() succeeded against a closed server")
	}
	if !strings.Contains(result.Error, "Cannot connect") {
		t.Errorf("Error = %q, want connection guidance", result.Error)
	}
	if !strings.Contains(result.Error, url) {
		t.Errorf("Error = %q, want the server URL named", result.Error)
	}
}

func TestRunHeadless_TargetNotFound(t *testing.T) {
	_, cfg, client := headlessFixture(t)

	result := RunHeadless(context.Background(), cfg, client, nil, HeadlessOptions{
		Prompt: "hi",
		Target: "no-such-target",
	})

	if result.Success {
		t.Fatal("RunHeadless() succeeded with an unknown target")
	}
	// Guidance plus the underlying not-found error with its candidates
	if !strings.Contains(result.Error, "does not know this target") {
		t.Errorf("Error = %q, want not-found guidance", result.Error)
	}
	if !strings.Contains(result.Error, "payments-agent") {
		t.Errorf("Error = %q, want available targets listed", result.Error)
	}
}

func TestRunHeadless_PersistsWithSessionID(t *testing.T) {
	_, cfg, client := headlessFixture(t)
	dir := testutil.CreateTempDir(t)
	store, err := NewStore(dir, false, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	result := RunHeadless(context.Background(), cfg, client, store, HeadlessOptions{
		Prompt:    "remember this",
		Target:    "payments-agent",
		SessionID: "headless-sess",
	})
	if !result.Success {
		t.Fatalf("RunHeadless() failed: %s", result.Error)
	}
	if result.SessionID != "headless-sess" {
		t.Errorf("SessionID = %q, want the requested id kept", result.SessionID)
	}

	saved, err := store.LoadSessionData("headless-sess")
	if err != nil {
		t.Fatalf("LoadSessionData() error = %v", err)
	}
	if len(saved.Messages) != 2 {
		t.Fatalf("saved session has %d messages, want prompt + answer", len(saved.Messages))
	}
	if saved.Messages[0].Type != ItemUser || saved.Messages[0].Text != "remember this" {
		t.Errorf("first saved item = %v %q", saved.Messages[0].Type, saved.Messages[0].Text)
	}
	if saved.Messages[1].Type != ItemAssistant || !strings.HasPrefix(saved.Messages[1].Text, "echo: ") {
		t.Errorf("second saved item = %v %q", saved.Messages[1].Type, saved.Messages[1].Text)
	}
}

func TestRunHeadless_EphemeralWithoutSessionID(t *testing.T) {
	_, cfg, client := headlessFixture(t)
	dir := testutil.CreateTempDir(t)
	store, err := NewStore(dir, false, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	result := RunHeadless(context.Background(), cfg, client, store, HeadlessOptions{
		Prompt: "fleeting",
		Target: "payments-agent",
	})
	if !result.Success {
		t.Fatalf("RunHeadless() failed: %s", result.Error)
	}

	// No --session means no trace on disk
	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("ephemeral run left %d sessions on disk", len(infos))
	}
}

func TestRunHeadless_ResumesExistingSession(t *testing.T) {
	_, cfg, client := headlessFixture(t)
	dir := testutil.CreateTempDir(t)
	store, err := NewStore(dir, false, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	first := RunHeadless(context.Background(), cfg, client, store, HeadlessOptions{
		Prompt: "first question", Target: "payments-agent", SessionID: "long-running",
	})
	if !first.Success {
		t.Fatalf("first run failed: %s", first.Error)
	}
	second := RunHeadless(context.Background(), cfg, client, store, HeadlessOptions{
		Prompt: "second question", Target: "payments-agent", SessionID: "long-running",
	})
	if !second.Success {
		t.Fatalf("second run failed: %s", second.Error)
	}

	saved, err := store.LoadSessionData("long-running")
	if err != nil {
		t.Fatalf("LoadSessionData() error = %v", err)
	}
	if len(saved.Messages) != 4 {
		t.Errorf("resumed session has %d messages, want 4 across two runs", len(saved.Messages))
	}
}
