package internal

import (
	"fmt"
	"strings"
)

// TargetKind is the class of remote entity a message can be sent to
type TargetKind string

const (
	TargetAgent    TargetKind = "agent"
	TargetTeam     TargetKind = "team"
	TargetWorkflow TargetKind = "workflow"
)

// Target identifies one invocable entity on the server
type Target struct {
	ID   string     `json:"id"`
	Name string     `json:"name,omitempty"`
	Kind TargetKind `json:"kind"`
}

// Describe renders a target as kind:id (name), the form used in error
// messages and listings
func (t Target) Describe() string {
	if t.Name == "" {
		return fmt.Sprintf("%s:%s", t.Kind, t.ID)
	}
	return fmt.Sprintf("%s:%s (%s)", t.Kind, t.ID, t.Name)
}

// IsZero reports whether no target has been set
func (t Target) IsZero() bool {
	return t.ID == "" && t.Kind == ""
}

// Catalog holds everything the server can run, one slice per kind
type Catalog struct {
	Agents    []Target
	Teams     []Target
	Workflows []Target
}

// All returns every catalog entry in resolution order: agents, then teams,
// then workflows
func (c Catalog) All() []Target {
	out := make([]Target, 0, len(c.Agents)+len(c.Teams)+len(c.Workflows))
	out = append(out, c.Agents...)
	out = append(out, c.Teams...)
	out = append(out, c.Workflows...)
	return out
}

// Len returns the total number of catalog entries
func (c Catalog) Len() int {
	return len(c.Agents) + len(c.Teams) + len(c.Workflows)
}

// ResolveTarget finds the catalog entry a user-supplied string refers to.
// Exact id matches win outright; otherwise the string is matched
// case-insensitively against names as a substring. Both passes walk agents
// before teams before workflows, so an agent always beats a team with a
// similar name. Misses return a *NotFoundError listing every candidate.
// The catalog is taken fresh from the caller each time; nothing is cached
// here, so a renamed agent never resolves from stale data.
func ResolveTarget(raw string, cat Catalog) (Target, error) {
	query := strings.TrimSpace(raw)
	if query == "" {
		return Target{}, &NotFoundError{Query: raw, Candidates: cat.All()}
	}

	for _, t := range cat.All() {
		if t.ID == query {
			return t, nil
		}
	}

	lower := strings.ToLower(query)
	for _, t := range cat.All() {
		if t.Name != "" && strings.Contains(strings.ToLower(t.Name), lower) {
			return t, nil
		}
	}

	return Target{}, &NotFoundError{Query: query, Candidates: cat.All()}
}
