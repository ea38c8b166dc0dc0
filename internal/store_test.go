package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/agentos-chat/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	store, err := NewStore(dir, false, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStore_AddMessage(t *testing.T) {
	store := newTestStore(t)

	first := store.AddMessage(NewItem(ItemUser, "hello"))
	second := store.AddMessage(NewItem(ItemAssistant, "hi there"))

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("AddMessage() ids = %d, %d, want 1, 2", first.ID, second.ID)
	}
	if first.SessionID != store.SessionID() {
		t.Errorf("AddMessage() SessionID = %q, want %q", first.SessionID, store.SessionID())
	}

	messages := store.Messages()
	if len(messages) != 2 {
		t.Fatalf("Messages() returned %d items, want 2", len(messages))
	}
	if messages[0].Text != "hello" || messages[1].Text != "hi there" {
		t.Errorf("Messages() order wrong: %q, %q", messages[0].Text, messages[1].Text)
	}
}

func TestStore_AddMessage_RecordsLastTarget(t *testing.T) {
	store := newTestStore(t)
	target := Target{ID: "helper", Name: "Helper", Kind: TargetAgent}

	store.AddMessage(HistoryItem{
		Type:     ItemUser,
		Text:     "hello",
		Metadata: &ItemMetadata{Target: &target},
	})
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	loaded, err := store.LoadSessionData(store.SessionID())
	if err != nil {
		t.Fatalf("LoadSessionData() error = %v", err)
	}
	if loaded.Metadata.LastTarget != target.Describe() {
		t.Errorf("LastTarget = %q, want %q", loaded.Metadata.LastTarget, target.Describe())
	}
	if loaded.Metadata.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", loaded.Metadata.MessageCount)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	id := store.SessionID()

	store.AddMessage(NewItem(ItemUser, "question"))
	store.AddMessage(NewItem(ItemAssistant, "answer"))
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A fresh store in the same directory can resume the session
	other, err := NewStore(filepath.Dir(store.SessionPath(id)), false, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := other.Load(id); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if other.SessionID() != id {
		t.Errorf("Load() SessionID = %q, want %q", other.SessionID(), id)
	}
	messages := other.Messages()
	if len(messages) != 2 {
		t.Fatalf("Load() returned %d messages, want 2", len(messages))
	}

	// The id counter resumes above the loaded items
	next := other.AddMessage(NewItem(ItemUser, "followup"))
	if next.ID != 3 {
		t.Errorf("AddMessage() after Load id = %d, want 3", next.ID)
	}
}

func TestStore_SaveSkipsEmptySession(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(store.SessionPath(store.SessionID())); !os.IsNotExist(err) {
		t.Error("Save() wrote a file for an empty session")
	}
}

func TestStore_SaveIsAtomic(t *testing.T) {
	store := newTestStore(t)
	store.AddMessage(NewItem(ItemUser, "hello"))
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path := store.SessionPath(store.SessionID())
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Save() did not write session file: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Save() left a temp file behind")
	}

	// The written file is complete, parseable JSON
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}
	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		t.Fatalf("Session file is not valid JSON: %v", err)
	}
	if len(session.Messages) != 1 {
		t.Errorf("Session file has %d messages, want 1", len(session.Messages))
	}
}

func TestStore_DebouncedAutosave(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	store, err := NewStore(dir, true, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		store.AddMessage(NewItem(ItemUser, "burst"))
	}

	path := store.SessionPath(store.SessionID())
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("autosave fired before the debounce window elapsed")
	}

	time.Sleep(300 * time.Millisecond)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("autosave never wrote the session: %v", err)
	}
	var session SessionData
	testutil.JSONUnmarshal(t, data, &session)
	if len(session.Messages) != 5 {
		t.Errorf("autosaved session has %d messages, want all 5", len(session.Messages))
	}
}

func TestStore_FlushCancelsPendingSave(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	store, err := NewStore(dir, true, time.Hour)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	store.AddMessage(NewItem(ItemUser, "hello"))
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if _, err := os.Stat(store.SessionPath(store.SessionID())); err != nil {
		t.Errorf("Flush() did not write immediately: %v", err)
	}
}

func TestStore_NewSession(t *testing.T) {
	store := newTestStore(t)
	oldID := store.SessionID()
	store.AddMessage(NewItem(ItemUser, "hello"))

	newID := store.NewSession("")
	if newID == oldID {
		t.Error("NewSession() kept the old id")
	}
	if len(store.Messages()) != 0 {
		t.Error("NewSession() kept old messages")
	}

	// Ids restart for the fresh session
	item := store.AddMessage(NewItem(ItemUser, "fresh"))
	if item.ID != 1 {
		t.Errorf("AddMessage() after NewSession id = %d, want 1", item.ID)
	}
}

func TestStore_LoadOrNew(t *testing.T) {
	store := newTestStore(t)

	// Missing file starts a fresh session under the requested id
	if err := store.LoadOrNew("brand-new"); err != nil {
		t.Fatalf("LoadOrNew() error = %v", err)
	}
	if store.SessionID() != "brand-new" {
		t.Errorf("LoadOrNew() SessionID = %q, want %q", store.SessionID(), "brand-new")
	}
	if len(store.Messages()) != 0 {
		t.Error("LoadOrNew() of a missing session has messages")
	}

	// Existing file is resumed
	store.AddMessage(NewItem(ItemUser, "hello"))
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := store.LoadOrNew("brand-new"); err != nil {
		t.Fatalf("LoadOrNew() resume error = %v", err)
	}
	if len(store.Messages()) != 1 {
		t.Errorf("LoadOrNew() resumed %d messages, want 1", len(store.Messages()))
	}
}

func TestStore_ListSessions(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testutil.WriteSessionFixture(t, dir, "20250601T120000-aaaa1111", 2, base)
	testutil.WriteSessionFixture(t, dir, "20250602T120000-bbbb2222", 4, base.Add(24*time.Hour))
	testutil.WriteIndexFixture(t, dir, "20250601T120000-aaaa1111", "20250602T120000-bbbb2222")

	store, err := NewStore(dir, false, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}

	if len(infos) != 2 {
		t.Fatalf("ListSessions() returned %d sessions, want 2", len(infos))
	}
	// Newest first: ids sort chronologically
	if infos[0].ID != "20250602T120000-bbbb2222" {
		t.Errorf("ListSessions() first = %q, want newest", infos[0].ID)
	}
	// Counts come from the index
	if infos[0].MessageCount < 0 {
		t.Error("ListSessions() did not enrich from the index")
	}
	if infos[0].LastTarget == "" {
		t.Error("ListSessions() missing LastTarget from index")
	}
}

func TestStore_ListSessions_WithoutIndex(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WriteSessionFixture(t, dir, "20250601T120000-cccc3333", 2, time.Now().UTC())

	store, err := NewStore(dir, false, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}

	if len(infos) != 1 {
		t.Fatalf("ListSessions() returned %d sessions, want 1", len(infos))
	}
	// Without an index entry the count is unknown, not zero
	if infos[0].MessageCount != -1 {
		t.Errorf("ListSessions() MessageCount = %d, want -1", infos[0].MessageCount)
	}
}

func TestStore_SaveUpdatesIndex(t *testing.T) {
	store := newTestStore(t)
	store.AddMessage(NewItem(ItemUser, "hello"))
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	index, err := store.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	if len(index.Sessions) != 1 {
		t.Fatalf("index has %d entries, want 1", len(index.Sessions))
	}
	entry := index.Sessions[0]
	if entry.ID != store.SessionID() {
		t.Errorf("index entry ID = %q, want %q", entry.ID, store.SessionID())
	}
	if entry.MessageCount != 1 {
		t.Errorf("index entry MessageCount = %d, want 1", entry.MessageCount)
	}

	// A second save updates the entry in place rather than duplicating it
	store.AddMessage(NewItem(ItemAssistant, "hi"))
	if err := store.Save(); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	index, err = store.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	if len(index.Sessions) != 1 {
		t.Errorf("index has %d entries after resave, want 1", len(index.Sessions))
	}
	if index.Sessions[0].MessageCount != 2 {
		t.Errorf("index entry MessageCount = %d, want 2", index.Sessions[0].MessageCount)
	}
}

func TestStore_Paths(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	store, err := NewStore(dir, false, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if got := store.SessionPath("abc"); got != filepath.Join(dir, "session_abc.json") {
		t.Errorf("SessionPath() = %q", got)
	}
	if got := store.IndexPath(); got != filepath.Join(dir, "sessions.yaml") {
		t.Errorf("IndexPath() = %q", got)
	}
}

func TestStore_LoadRejectsCorruptFile(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	store, err := NewStore(dir, false, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	path := store.SessionPath("broken")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	err = store.Load("broken")
	if err == nil {
		t.Fatal("Load() accepted a corrupt session file")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("Load() error = %v, want a parse store error", err)
	}
}
