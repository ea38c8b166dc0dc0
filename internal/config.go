package internal

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default endpoints and tuning values. Flags and environment variables
// override these; nothing reads them after Config is built.
const (
	DefaultBaseURL      = "http://localhost:7777"
	DefaultSessionDir   = "~/.agentos-chat/sessions"
	DefaultTimeout      = 60 * time.Second
	DefaultStreamIdle   = 120 * time.Second
	DefaultInvokeDelay  = 150 * time.Millisecond
	DefaultSaveDebounce = 100 * time.Millisecond
	DefaultHistoryLimit = 500
)

// Config holds every tunable the engine reads. It is built once at process
// start and handed to the components that need it; there is no global
// mutable configuration.
type Config struct {
	BaseURL    string // AgentOS server base URL
	SessionDir string // directory for session files, history.db, sessions.yaml

	RequestTimeout    time.Duration // whole-request budget for non-streaming calls
	StreamIdleTimeout time.Duration // max silence between stream frames
	InvokeDelay       time.Duration // pause before rendering one-shot team/workflow
	// responses, so they read like the streamed ones; zero disables it

	Autosave     bool
	SaveDebounce time.Duration
	HistoryLimit int // prompt history entries kept for recall

	LogFile string // interactive-mode log destination; empty discards
}

// DefaultConfig returns the built-in defaults with environment overrides
// applied (AGENTOS_URL, AGENTOS_SESSION_DIR).
func DefaultConfig() Config {
	return Config{
		BaseURL:           getEnv("AGENTOS_URL", DefaultBaseURL),
		SessionDir:        getEnv("AGENTOS_SESSION_DIR", DefaultSessionDir),
		RequestTimeout:    DefaultTimeout,
		StreamIdleTimeout: DefaultStreamIdle,
		InvokeDelay:       DefaultInvokeDelay,
		Autosave:          true,
		SaveDebounce:      DefaultSaveDebounce,
		HistoryLimit:      DefaultHistoryLimit,
	}
}

// Validate checks the config for values the engine cannot run with
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL %q must use http or https", c.BaseURL)
	}
	if c.SessionDir == "" {
		return fmt.Errorf("session directory is empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.SaveDebounce < 0 {
		return fmt.Errorf("save debounce must not be negative, got %v", c.SaveDebounce)
	}
	if c.InvokeDelay < 0 {
		return fmt.Errorf("invoke delay must not be negative, got %v", c.InvokeDelay)
	}
	return nil
}

// ExpandPath expands a leading ~ or ~/ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// ResolveSessionDir expands the configured session directory and creates it
func (c Config) ResolveSessionDir() (string, error) {
	dir, err := ExpandPath(c.SessionDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}
	return dir, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
