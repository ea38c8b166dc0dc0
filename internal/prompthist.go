package internal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// PromptHistory keeps submitted prompts in a small SQLite database so the
// interactive prompt can recall them across runs. Everything here degrades:
// the chat works fine without recall, so callers treat open failures as a
// warning, not an error.
type PromptHistory struct {
	db    *sql.DB
	limit int
}

// OpenPromptHistory opens (creating if needed) the history database at path.
// limit caps how many entries are retained.
func OpenPromptHistory(path string, limit int) (*PromptHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history database ping failed: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS prompt_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt TEXT NOT NULL,
		target TEXT,
		created_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &PromptHistory{db: db, limit: limit}, nil
}

// Append records a submitted prompt and the target it went to
func (h *PromptHistory) Append(prompt, target string) error {
	_, err := h.db.Exec(
		"INSERT INTO prompt_history (prompt, target, created_at) VALUES (?, ?, ?)",
		prompt, target, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record prompt: %w", err)
	}
	return h.trim()
}

// trim drops the oldest rows beyond the retention limit
func (h *PromptHistory) trim() error {
	_, err := h.db.Exec(
		"DELETE FROM prompt_history WHERE id NOT IN (SELECT id FROM prompt_history ORDER BY id DESC LIMIT ?)",
		h.limit,
	)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return nil
}

// Recent returns up to n prompts, newest first, with consecutive repeats
// collapsed so arrow-key recall does not step through the same prompt twice
func (h *PromptHistory) Recent(n int) ([]string, error) {
	rows, err := h.db.Query("SELECT prompt FROM prompt_history ORDER BY id DESC LIMIT ?", h.limit)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prompts []string
	var last string
	for rows.Next() {
		var prompt string
		if err := rows.Scan(&prompt); err != nil {
			return nil, fmt.Errorf("history scan failed: %w", err)
		}
		if prompt == last && len(prompts) > 0 {
			continue
		}
		prompts = append(prompts, prompt)
		last = prompt
		if len(prompts) >= n {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history iteration error: %w", err)
	}
	return prompts, nil
}

// Close closes the database
func (h *PromptHistory) Close() error {
	return h.db.Close()
}
