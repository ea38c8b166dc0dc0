package internal

import (
	"path/filepath"
	"testing"

	"github.com/iksnae/agentos-chat/testutil"
)

func openTestHistory(t *testing.T, limit int) (*PromptHistory, string) {
	t.Helper()
	path := filepath.Join(testutil.CreateTempDir(t), "history.db")
	hist, err := OpenPromptHistory(path, limit)
	if err != nil {
		t.Fatalf("OpenPromptHistory() error = %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })
	return hist, path
}

func TestPromptHistory_AppendAndRecent(t *testing.T) {
	hist, _ := openTestHistory(t, 100)

	for _, p := range []string{"first", "second", "third"} {
		if err := hist.Append(p, "agent:alpha"); err != nil {
			t.Fatalf("Append(%q) error = %v", p, err)
		}
	}

	got, err := hist.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	want := []string{"third", "second", "first"}
	if len(got) != len(want) {
		t.Fatalf("Recent() returned %d prompts, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Recent()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPromptHistory_RecentCapsAtN(t *testing.T) {
	hist, _ := openTestHistory(t, 100)
	for _, p := range []string{"a", "b", "c", "d"} {
		if err := hist.Append(p, ""); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := hist.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 || got[0] != "d" || got[1] != "c" {
		t.Errorf("Recent(2) = %v, want [d c]", got)
	}
}

func TestPromptHistory_ConsecutiveRepeatsCollapse(t *testing.T) {
	hist, _ := openTestHistory(t, 100)
	for _, p := range []string{"same", "same", "other", "same"} {
		if err := hist.Append(p, ""); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := hist.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	// Only adjacent repeats collapse; the separated "same" stays
	want := []string{"same", "other", "same"}
	if len(got) != len(want) {
		t.Fatalf("Recent() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Recent()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPromptHistory_RetentionLimit(t *testing.T) {
	hist, _ := openTestHistory(t, 5)
	for i := 0; i < 8; i++ {
		if err := hist.Append(string(rune('a'+i)), ""); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := hist.Recent(100)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Recent() returned %d prompts, want the retention limit of 5", len(got))
	}
	if got[0] != "h" || got[4] != "d" {
		t.Errorf("Recent() = %v, want h through d", got)
	}
}

func TestPromptHistory_SurvivesReopen(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := filepath.Join(dir, "history.db")

	hist, err := OpenPromptHistory(path, 100)
	if err != nil {
		t.Fatalf("OpenPromptHistory() error = %v", err)
	}
	if err := hist.Append("persisted prompt", "agent:alpha"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := hist.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenPromptHistory(path, 100)
	if err != nil {
		t.Fatalf("OpenPromptHistory() reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0] != "persisted prompt" {
		t.Errorf("Recent() after reopen = %v", got)
	}
}
