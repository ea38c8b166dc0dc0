package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// StoreError represents errors accessing session files on disk
type StoreError struct {
	Op   string // "read", "write", "parse", "list"
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// APIError represents a failed request to the AgentOS server
type APIError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api error: %s returned %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("api error: %s: %v", e.Endpoint, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NotFoundError represents a target that matched nothing in the catalog
type NotFoundError struct {
	Query      string
	Candidates []Target
}

func (e *NotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("target %q not found: the server reports no agents, teams, or workflows", e.Query)
	}
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, c.Describe())
	}
	return fmt.Sprintf("target %q not found: available targets: %s", e.Query, strings.Join(names, ", "))
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies a failed remote call for user-facing guidance
type ErrorKind int

const (
	ErrKindOther ErrorKind = iota
	ErrKindConnectionRefused
	ErrKindTimeout
	ErrKindNotFound
)

// ClassifyTransportError maps an error from a remote call to an ErrorKind.
// Typed errors are inspected first; the string patterns are a fallback for
// errors that arrive with their type information flattened away.
func ClassifyTransportError(err error) ErrorKind {
	if err == nil {
		return ErrKindOther
	}

	var nf *NotFoundError
	if errors.As(err, &nf) {
		return ErrKindNotFound
	}
	var api *APIError
	if errors.As(err, &api) && api.StatusCode == 404 {
		return ErrKindNotFound
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrKindConnectionRefused
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return ErrKindConnectionRefused
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return ErrKindTimeout
	case strings.Contains(msg, "404"), strings.Contains(msg, "not found"):
		return ErrKindNotFound
	}
	return ErrKindOther
}

// Guidance is the user-facing template for a failed remote call: what went
// wrong, one thing to try, and one command to diagnose with.
type Guidance struct {
	Summary  string
	Fix      string
	Diagnose string
}

// ErrorGuidance returns the guidance template for an error kind
func ErrorGuidance(kind ErrorKind, baseURL string) Guidance {
	healthURL := strings.TrimRight(baseURL, "/") + "/v1/health"
	switch kind {
	case ErrKindConnectionRefused:
		return Guidance{
			Summary:  fmt.Sprintf("Cannot connect to the AgentOS server at %s.", baseURL),
			Fix:      "Make sure the server is running, or point --url at the right address.",
			Diagnose: fmt.Sprintf("curl %s", healthURL),
		}
	case ErrKindTimeout:
		return Guidance{
			Summary:  "The server did not respond in time. It may be busy or still loading a model.",
			Fix:      "Try again in a moment, or raise --timeout for slow targets.",
			Diagnose: fmt.Sprintf("curl %s", healthURL),
		}
	case ErrKindNotFound:
		return Guidance{
			Summary:  "The server does not know this target or endpoint.",
			Fix:      "Run `agentos-chat targets` to see what the server offers.",
			Diagnose: fmt.Sprintf("curl %s/v1/agents", strings.TrimRight(baseURL, "/")),
		}
	default:
		return Guidance{
			Summary:  "The request failed.",
			Fix:      "Re-run with --verbose for the full error.",
			Diagnose: fmt.Sprintf("curl %s", healthURL),
		}
	}
}

// FormatGuidance renders a guidance template plus the underlying error as the
// text of an error history item.
func FormatGuidance(g Guidance, err error) string {
	var b strings.Builder
	b.WriteString(g.Summary)
	if err != nil {
		b.WriteString(fmt.Sprintf("\n  cause: %v", err))
	}
	b.WriteString(fmt.Sprintf("\n  fix: %s", g.Fix))
	b.WriteString(fmt.Sprintf("\n  check: %s", g.Diagnose))
	return b.String()
}
