package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// StreamState is the controller's request lifecycle state
type StreamState int

const (
	StateIdle StreamState = iota
	StateConnecting
	StateResponding
	StateError
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateResponding:
		return "responding"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Submit rejections. These are local guards; none of them reaches the server.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a response is already in flight")
	ErrNoTarget     = errors.New("no target selected")
)

// Dispatcher is the slice of the API client the controller drives
type Dispatcher interface {
	StreamAgentRun(ctx context.Context, agentID, message, sessionID string) (*RunStream, error)
	RunTeam(ctx context.Context, teamID, message, sessionID string) (*RunResponse, error)
	RunWorkflow(ctx context.Context, workflowID, message, sessionID string) (*RunResponse, error)
}

// EventKind discriminates controller events
type EventKind int

const (
	// EventStateChanged reports a lifecycle transition
	EventStateChanged EventKind = iota
	// EventItemAppended reports a finalized item added to the transcript
	EventItemAppended
	// EventPendingUpdated reports new text on the in-flight response;
	// empty text means the pending response was cleared
	EventPendingUpdated
)

// Event is one observable change in the controller
type Event struct {
	Kind    EventKind
	State   StreamState
	Item    HistoryItem
	Pending string
}

// Controller runs the conversation: it owns the request lifecycle, turns
// stream frames into history items, and guarantees at most one request in
// flight. All mutation happens under one mutex, in frame arrival order.
//
// Frames from an abandoned run are fenced off by a generation counter:
// Cancel bumps the generation, and any frame or error carrying a stale
// generation is dropped before it can touch state. A slow frame that was
// already in flight when the user hit cancel can therefore never resurrect
// the pending response.
type Controller struct {
	cfg   Config
	disp  Dispatcher
	store *Store

	mu         sync.Mutex
	state      StreamState
	target     Target
	generation uint64
	cancelRun  context.CancelFunc
	pending    *HistoryItem
	accum      strings.Builder
	startedAt  time.Time

	events chan Event
}

// NewController creates a controller over the given dispatcher and store
func NewController(cfg Config, disp Dispatcher, store *Store) *Controller {
	return &Controller{
		cfg:    cfg,
		disp:   disp,
		store:  store,
		state:  StateIdle,
		events: make(chan Event, 256),
	}
}

// Events returns the controller's event channel. A single consumer is
// expected; when nobody drains it, events are dropped rather than blocking
// the stream.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state
func (c *Controller) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Target returns the currently selected target
func (c *Controller) Target() Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// PendingText returns the accumulated text of the in-flight response
func (c *Controller) PendingText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accum.String()
}

// SetTarget selects where submitted messages go and notes the switch in the
// transcript
func (c *Controller) SetTarget(t Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = t
	c.store.SetLastTarget(t.Describe())
	item := c.store.AddMessage(HistoryItem{
		Type:      ItemInfo,
		Text:      "Now chatting with " + t.Describe(),
		Timestamp: time.Now().UTC(),
		Metadata:  &ItemMetadata{Target: &t},
	})
	c.emitLocked(Event{Kind: EventItemAppended, State: c.state, Item: item})
}

// Submit sends a message to the current target. It rejects locally, without
// a remote call, when the message is blank, a request is already running,
// or no target is set. A previous transport error does not block the next
// submit.
func (c *Controller) Submit(message string) error {
	text := strings.TrimSpace(message)

	c.mu.Lock()
	if text == "" {
		c.mu.Unlock()
		return ErrEmptyMessage
	}
	if c.state == StateConnecting || c.state == StateResponding {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.target.IsZero() {
		c.mu.Unlock()
		return ErrNoTarget
	}

	target := c.target
	sessionID := c.store.SessionID()

	userItem := c.store.AddMessage(HistoryItem{
		Type:      ItemUser,
		Text:      text,
		Timestamp: time.Now().UTC(),
		Metadata:  &ItemMetadata{Target: &target},
	})
	c.emitLocked(Event{Kind: EventItemAppended, State: c.state, Item: userItem})

	pending := NewItem(ItemAssistant, "")
	pending.SessionID = sessionID
	c.pending = &pending
	c.accum.Reset()
	c.startedAt = time.Now()

	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelRun = cancel

	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	go c.run(ctx, gen, target, text, sessionID)
	return nil
}

// Cancel aborts the in-flight request. The run context is canceled, the
// generation fence advances, pending text is discarded, and a cancellation
// note lands in the transcript; all of it completes before Cancel returns.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnecting && c.state != StateResponding {
		return
	}

	c.generation++
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}

	item := c.store.AddMessage(HistoryItem{
		Type:      ItemError,
		Text:      "Response canceled.",
		Timestamp: time.Now().UTC(),
		Metadata:  &ItemMetadata{Canceled: true},
	})
	c.emitLocked(Event{Kind: EventItemAppended, State: c.state, Item: item})

	c.pending = nil
	c.accum.Reset()
	c.emitLocked(Event{Kind: EventPendingUpdated, State: c.state, Pending: ""})
	c.setStateLocked(StateIdle)
}

// ResetSession starts a fresh session, refusing while a request is running.
// The new session id is returned.
func (c *Controller) ResetSession(sessionID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnecting || c.state == StateResponding {
		return "", ErrBusy
	}
	id := c.store.NewSession(sessionID)
	c.pending = nil
	c.accum.Reset()
	c.setStateLocked(StateIdle)
	return id, nil
}

// run executes one request on its own goroutine
func (c *Controller) run(ctx context.Context, gen uint64, target Target, message, sessionID string) {
	switch target.Kind {
	case TargetAgent:
		c.runAgentStream(ctx, gen, target, message, sessionID)
	case TargetTeam:
		resp, err := c.disp.RunTeam(ctx, target.ID, message, sessionID)
		c.applyInvokeResult(ctx, gen, resp, err)
	case TargetWorkflow:
		resp, err := c.disp.RunWorkflow(ctx, target.ID, message, sessionID)
		c.applyInvokeResult(ctx, gen, resp, err)
	default:
		c.failRun(gen, errors.New("unknown target kind: "+string(target.Kind)))
	}
}

func (c *Controller) runAgentStream(ctx context.Context, gen uint64, target Target, message, sessionID string) {
	stream, err := c.disp.StreamAgentRun(ctx, target.ID, message, sessionID)
	if err != nil {
		c.failRun(gen, err)
		return
	}
	defer func() { _ = stream.Close() }()

	for frame := range stream.Frames() {
		c.applyFrame(gen, frame)
	}

	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		c.failRun(gen, err)
		return
	}
	// Streams that end without an explicit done frame still finalize
	c.finalizeRun(gen, nil)
}

// applyInvokeResult feeds a one-shot team/workflow response through the
// same frame path the streaming runs use. Single complete responses would
// otherwise flash into the transcript before the state machine has visibly
// left Connecting, so a short configurable pause smooths them in; zero
// disables the pause.
func (c *Controller) applyInvokeResult(ctx context.Context, gen uint64, resp *RunResponse, err error) {
	if err != nil {
		c.failRun(gen, err)
		return
	}
	if c.cfg.InvokeDelay > 0 {
		select {
		case <-time.After(c.cfg.InvokeDelay):
		case <-ctx.Done():
			return
		}
	}
	c.applyFrame(gen, RunFrame{Content: resp.Content, Done: true, SessionID: resp.SessionID, Metrics: resp.Metrics})
}

// applyFrame folds one frame into the conversation. Stale generations are
// dropped before any mutation.
func (c *Controller) applyFrame(gen uint64, frame RunFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	if c.state == StateConnecting {
		c.setStateLocked(StateResponding)
	}

	eventType := ""
	if frame.Metadata != nil {
		eventType = frame.Metadata.Type
	}

	if itemType, isEvent := ItemTypeForEvent(eventType); isEvent {
		meta := &ItemMetadata{Target: &c.target}
		if frame.Metadata != nil {
			meta.EventID = frame.Metadata.EventID
			meta.Detail = frame.Metadata.Extra
		}
		item := c.store.AddMessage(HistoryItem{
			Type:      itemType,
			Text:      eventText(frame),
			Timestamp: time.Now().UTC(),
			Metadata:  meta,
		})
		c.emitLocked(Event{Kind: EventItemAppended, State: c.state, Item: item})
	} else if frame.Content != "" {
		c.accum.WriteString(frame.Content)
		if c.pending != nil {
			c.pending.Text = c.accum.String()
		}
		c.emitLocked(Event{Kind: EventPendingUpdated, State: c.state, Pending: c.accum.String()})
	}

	if frame.Done {
		c.finalizeLocked(frame.Metrics)
	}
}

// finalizeRun finalizes from outside the frame path (stream ended cleanly
// without a done frame)
func (c *Controller) finalizeRun(gen uint64, metrics *RunMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.finalizeLocked(metrics)
}

// finalizeLocked flushes the accumulated response as the turn's single
// assistant item and returns to Idle. Whitespace-only accumulations leave
// no item. Elapsed time is measured here, submit to finalize; the server's
// own duration metric is not used for it.
func (c *Controller) finalizeLocked(metrics *RunMetrics) {
	if c.pending == nil {
		if c.state != StateIdle {
			c.setStateLocked(StateIdle)
		}
		return
	}

	text := c.accum.String()
	if strings.TrimSpace(text) != "" {
		stats := &RunStats{Elapsed: time.Since(c.startedAt)}
		if metrics != nil {
			stats.InputTokens = metrics.InputTokens
			stats.OutputTokens = metrics.OutputTokens
		}
		target := c.target
		item := c.store.AddMessage(HistoryItem{
			Type:      ItemAssistant,
			Text:      text,
			Timestamp: time.Now().UTC(),
			Metadata:  &ItemMetadata{Target: &target, Stats: stats},
		})
		c.emitLocked(Event{Kind: EventItemAppended, State: c.state, Item: item})
	}

	c.pending = nil
	c.accum.Reset()
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	c.emitLocked(Event{Kind: EventPendingUpdated, State: c.state, Pending: ""})
	c.setStateLocked(StateIdle)
}

// failRun records a transport failure as guidance in the transcript and
// parks the controller in StateError until the next submit
func (c *Controller) failRun(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	kind := ClassifyTransportError(err)
	guidance := ErrorGuidance(kind, c.cfg.BaseURL)
	item := c.store.AddMessage(HistoryItem{
		Type:      ItemError,
		Text:      FormatGuidance(guidance, err),
		Timestamp: time.Now().UTC(),
	})
	c.emitLocked(Event{Kind: EventItemAppended, State: c.state, Item: item})

	c.pending = nil
	c.accum.Reset()
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	c.emitLocked(Event{Kind: EventPendingUpdated, State: c.state, Pending: ""})
	c.setStateLocked(StateError)
}

func (c *Controller) setStateLocked(s StreamState) {
	if c.state == s {
		return
	}
	c.state = s
	c.emitLocked(Event{Kind: EventStateChanged, State: s})
}

// emitLocked delivers an event without ever blocking the frame path
func (c *Controller) emitLocked(ev Event) {
	select {
	case c.events <- ev:
	default:
		LogDebug("dropping controller event (kind=%d, consumer stalled)", ev.Kind)
	}
}

// eventText picks display text for an event frame: explicit content first,
// then the best-known name from the metadata, then the raw type
func eventText(frame RunFrame) string {
	if frame.Content != "" {
		return frame.Content
	}
	if frame.Metadata == nil {
		return ""
	}
	for _, key := range []string{"tool_name", "name", "agent_name", "team_name", "query"} {
		if v, ok := frame.Metadata.Extra[key].(string); ok && v != "" {
			return v
		}
	}
	return frame.Metadata.Type
}
