package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Store persists one active session to disk as session_<id>.json and keeps
// a sessions.yaml index beside it for cheap listing. Writes are debounced:
// a burst of appended items produces a single save. Each save writes the
// whole file to a temp name and renames it into place, so readers never see
// a half-written session.
type Store struct {
	mu       sync.Mutex
	dir      string
	session  *SessionData
	nextID   int64
	autosave bool
	debounce time.Duration
	timer    *time.Timer
}

// SessionIndexEntry is one session's line in the sessions.yaml index
type SessionIndexEntry struct {
	ID           string `yaml:"id"`
	MessageCount int    `yaml:"message_count"`
	LastTarget   string `yaml:"last_target,omitempty"`
	CreatedAt    string `yaml:"created_at,omitempty"`
	UpdatedAt    string `yaml:"updated_at,omitempty"`
}

// SessionIndex is the YAML index of all sessions in the directory
type SessionIndex struct {
	Sessions []SessionIndexEntry `yaml:"sessions"`
}

// SessionInfo describes a stored session for listings
type SessionInfo struct {
	ID           string
	Path         string
	MessageCount int
	LastTarget   string
	UpdatedAt    time.Time
}

// NewStore creates a store rooted at dir, beginning a fresh session
func NewStore(dir string, autosave bool, debounce time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StoreError{Op: "mkdir", Path: dir, Err: err}
	}
	return &Store{
		dir:      dir,
		session:  NewSessionData(""),
		nextID:   1,
		autosave: autosave,
		debounce: debounce,
	}, nil
}

// SessionID returns the active session's id
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.ID
}

// Messages returns a copy of the active session's items
func (s *Store) Messages() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryItem, len(s.session.Messages))
	copy(out, s.session.Messages)
	return out
}

// SessionPath returns the file path for a session id
func (s *Store) SessionPath(sessionID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("session_%s.json", sessionID))
}

// IndexPath returns the path of the sessions.yaml index
func (s *Store) IndexPath() string {
	return filepath.Join(s.dir, "sessions.yaml")
}

// AddMessage assigns the item an id, stamps it, appends it to the active
// session, and schedules a save. The returned copy carries the assigned id.
// Persistence problems are logged, never returned: losing a disk write must
// not break the conversation flow.
func (s *Store) AddMessage(item HistoryItem) HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = s.nextID
	s.nextID++
	if item.SessionID == "" {
		item.SessionID = s.session.ID
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}

	s.session.Messages = append(s.session.Messages, item)
	s.session.UpdatedAt = time.Now().UTC()
	s.session.Metadata.MessageCount = len(s.session.Messages)
	if item.Metadata != nil && item.Metadata.Target != nil {
		s.session.Metadata.LastTarget = item.Metadata.Target.Describe()
	}

	s.scheduleSaveLocked()
	return item
}

// SetLastTarget records the most recent target on the session metadata
func (s *Store) SetLastTarget(desc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Metadata.LastTarget = desc
	s.scheduleSaveLocked()
}

// scheduleSaveLocked arms (or re-arms) the debounced save. Callers hold mu.
func (s *Store) scheduleSaveLocked() {
	if !s.autosave {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.Save(); err != nil {
			LogWarn("autosave failed: %v", err)
		}
	})
}

// Save writes the active session and refreshes its index entry
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if len(s.session.Messages) == 0 {
		// Nothing worth a file yet
		return nil
	}

	data, err := json.MarshalIndent(s.session, "", "  ")
	if err != nil {
		return &StoreError{Op: "marshal", Path: s.SessionPath(s.session.ID), Err: err}
	}

	path := s.SessionPath(s.session.ID)
	if err := writeFileAtomic(path, data); err != nil {
		return &StoreError{Op: "write", Path: path, Err: err}
	}

	if err := s.updateIndexLocked(); err != nil {
		// The session file is safe; a stale index only degrades listings
		LogWarn("failed to update session index: %v", err)
	}
	return nil
}

// Flush cancels any pending debounced save and writes immediately
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return s.saveLocked()
}

// Load replaces the active session with one read from disk. The id counter
// resumes above the highest id in the file, so later items keep ascending.
func (s *Store) Load(sessionID string) error {
	path := s.SessionPath(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		return &StoreError{Op: "read", Path: path, Err: err}
	}

	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return &StoreError{Op: "parse", Path: path, Err: err}
	}

	var maxID int64
	for _, m := range session.Messages {
		if m.ID > maxID {
			maxID = m.ID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
	s.nextID = maxID + 1
	return nil
}

// NewSession abandons the in-memory session and starts a fresh one. Files
// already on disk stay where they are. An empty id mints a new one; the new
// session id is returned.
func (s *Store) NewSession(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.session = NewSessionData(sessionID)
	s.nextID = 1
	return s.session.ID
}

// LoadOrNew resumes the session with the given id when its file exists and
// starts a fresh one under that id otherwise
func (s *Store) LoadOrNew(sessionID string) error {
	if sessionID == "" {
		s.NewSession("")
		return nil
	}
	if _, err := os.Stat(s.SessionPath(sessionID)); err == nil {
		return s.Load(sessionID)
	}
	s.NewSession(sessionID)
	return nil
}

// ListSessions returns the stored sessions, most recently created first.
// Session ids sort chronologically, so reverse lexical order is enough.
func (s *Store) ListSessions() ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &StoreError{Op: "list", Path: s.dir, Err: err}
	}

	index := s.loadIndexByID()

	var infos []SessionInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, "session_"), ".json")
		info := SessionInfo{
			ID:           id,
			Path:         filepath.Join(s.dir, name),
			MessageCount: -1,
		}
		if fi, err := entry.Info(); err == nil {
			info.UpdatedAt = fi.ModTime()
		}
		if idx, ok := index[id]; ok {
			info.MessageCount = idx.MessageCount
			info.LastTarget = idx.LastTarget
			if t, err := time.Parse(time.RFC3339, idx.UpdatedAt); err == nil {
				info.UpdatedAt = t
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID > infos[j].ID
	})
	return infos, nil
}

// LoadSessionData reads a stored session without replacing the active one
func (s *Store) LoadSessionData(sessionID string) (*SessionData, error) {
	path := s.SessionPath(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StoreError{Op: "read", Path: path, Err: err}
	}
	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, &StoreError{Op: "parse", Path: path, Err: err}
	}
	return &session, nil
}

// LoadIndex loads the sessions.yaml index
func (s *Store) LoadIndex() (*SessionIndex, error) {
	data, err := os.ReadFile(s.IndexPath())
	if err != nil {
		return nil, err
	}
	var index SessionIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	return &index, nil
}

func (s *Store) loadIndexByID() map[string]SessionIndexEntry {
	byID := make(map[string]SessionIndexEntry)
	index, err := s.LoadIndex()
	if err != nil {
		return byID
	}
	for _, entry := range index.Sessions {
		byID[entry.ID] = entry
	}
	return byID
}

// updateIndexLocked rewrites this session's entry in sessions.yaml
func (s *Store) updateIndexLocked() error {
	index, err := s.LoadIndex()
	if err != nil || index == nil {
		index = &SessionIndex{Sessions: make([]SessionIndexEntry, 0, 1)}
	}

	entry := SessionIndexEntry{
		ID:           s.session.ID,
		MessageCount: len(s.session.Messages),
		LastTarget:   s.session.Metadata.LastTarget,
		CreatedAt:    s.session.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    s.session.UpdatedAt.Format(time.RFC3339),
	}

	found := false
	for i := range index.Sessions {
		if index.Sessions[i].ID == entry.ID {
			index.Sessions[i] = entry
			found = true
			break
		}
	}
	if !found {
		index.Sessions = append(index.Sessions, entry)
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return writeFileAtomic(s.IndexPath(), data)
}

// writeFileAtomic writes data to a temp file in the target's directory and
// renames it over path. Rename within one directory is atomic, so a crash
// mid-write leaves the old file intact rather than a truncated one.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
