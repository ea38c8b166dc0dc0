package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages delivered into the update loop

type initDoneMsg struct {
	catalog Catalog
	target  Target
	err     error
}

type catalogMsg struct {
	catalog  Catalog
	announce bool
	err      error
}

type targetResolvedMsg struct {
	target Target
	err    error
}

type promptHistoryMsg struct {
	prompts []string
}

type controllerEventMsg Event

// theme groups the transcript and chrome styles
type theme struct {
	title     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	thinking  lipgloss.Style
	tool      lipgloss.Style
	event     lipgloss.Style
	info      lipgloss.Style
	errText   lipgloss.Style
	timestamp lipgloss.Style
	status    lipgloss.Style
	statusHot lipgloss.Style
	help      lipgloss.Style
	pending   lipgloss.Style
}

func newTheme() theme {
	return theme{
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		thinking:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("243")),
		tool:      lipgloss.NewStyle().Foreground(lipgloss.Color("135")),
		event:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		info:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		errText:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		statusHot: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		help:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		pending:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// Model is the interactive chat UI. It renders the store's transcript plus
// the controller's pending response, and feeds keystrokes back into the
// controller. Local notices (help text, listings) render in the transcript
// but never reach the store.
type Model struct {
	cfg        Config
	client     *Client
	controller *Controller
	store      *Store
	hist       *PromptHistory

	theme theme
	input textinput.Model
	vp    viewport.Model
	spin  spinner.Model

	ready         bool
	width, height int

	catalog     Catalog
	transcript  []HistoryItem
	pendingText string
	state       StreamState
	status      string

	histEntries []string
	histPos     int
	draft       string

	initialTarget string
	quitting      bool
}

// NewModel builds the interactive model. initialTarget, when set, is
// resolved against the catalog during init.
func NewModel(cfg Config, client *Client, controller *Controller, store *Store, hist *PromptHistory, initialTarget string) Model {
	input := textinput.New()
	input.Placeholder = "Type a message, or /help for commands"
	input.Prompt = "> "
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))

	return Model{
		cfg:           cfg,
		client:        client,
		controller:    controller,
		store:         store,
		hist:          hist,
		theme:         newTheme(),
		input:         input,
		spin:          spin,
		state:         StateIdle,
		status:        "connecting to " + cfg.BaseURL,
		histPos:       -1,
		transcript:    store.Messages(),
		initialTarget: initialTarget,
	}
}

// Init starts the spinner, the controller event pump, and the initial
// catalog fetch
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spin.Tick,
		initCmd(m.client, m.cfg, m.initialTarget),
		waitEvent(m.controller.Events()),
	}
	if m.hist != nil {
		cmds = append(cmds, loadHistoryCmd(m.hist))
	}
	return tea.Batch(cmds...)
}

// initCmd checks the server, fetches the catalog, and resolves the startup
// target if one was given
func initCmd(client *Client, cfg Config, initialTarget string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()

		if err := client.Health(ctx); err != nil {
			return initDoneMsg{err: err}
		}
		catalog, err := client.FetchCatalog(ctx)
		if err != nil {
			return initDoneMsg{err: err}
		}

		msg := initDoneMsg{catalog: catalog}
		if initialTarget != "" {
			target, err := ResolveTarget(initialTarget, catalog)
			if err != nil {
				msg.err = err
			} else {
				msg.target = target
			}
		}
		return msg
	}
}

// waitEvent pumps one controller event into the update loop; Update re-arms
// it after each delivery
func waitEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		return controllerEventMsg(<-events)
	}
}

func loadHistoryCmd(hist *PromptHistory) tea.Cmd {
	return func() tea.Msg {
		prompts, err := hist.Recent(DefaultHistoryLimit)
		if err != nil {
			LogDebug("prompt history unavailable: %v", err)
			return promptHistoryMsg{}
		}
		return promptHistoryMsg{prompts: prompts}
	}
}

func fetchCatalogCmd(client *Client, cfg Config, announce bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		catalog, err := client.FetchCatalog(ctx)
		return catalogMsg{catalog: catalog, announce: announce, err: err}
	}
}

func resolveTargetCmd(client *Client, cfg Config, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		catalog, err := client.FetchCatalog(ctx)
		if err != nil {
			return targetResolvedMsg{err: err}
		}
		target, err := ResolveTarget(query, catalog)
		return targetResolvedMsg{target: target, err: err}
	}
}

// Update is the event loop
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 1
		footerHeight := 2
		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.refreshViewport(true)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m.quit()
		case "esc":
			if m.state == StateConnecting || m.state == StateResponding {
				m.controller.Cancel()
				m.status = "canceled"
			}
			return m, nil
		case "enter":
			return m.submitInput()
		case "up":
			m = m.recallOlder()
			return m, nil
		case "down":
			m = m.recallNewer()
			return m, nil
		case "pgup", "pgdown", "home", "end":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		// Keep ticking even while idle so the spinner is live the moment
		// the next run starts
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case controllerEventMsg:
		m = m.applyEvent(Event(msg))
		cmds = append(cmds, waitEvent(m.controller.Events()))
		return m, tea.Batch(cmds...)

	case initDoneMsg:
		if msg.err != nil {
			kind := ClassifyTransportError(msg.err)
			guidance := ErrorGuidance(kind, m.cfg.BaseURL)
			m = m.appendLocal(ItemError, FormatGuidance(guidance, msg.err))
			m.status = "offline - check the server and restart, or /target to retry"
			return m, nil
		}
		m.catalog = msg.catalog
		m.status = fmt.Sprintf("connected · %d targets", msg.catalog.Len())
		if !msg.target.IsZero() {
			m.controller.SetTarget(msg.target)
		} else if m.controller.Target().IsZero() {
			m = m.appendLocal(ItemInfo, fmt.Sprintf("Connected to %s. Pick a target with /target <name> (%d available, /targets to list).",
				m.cfg.BaseURL, msg.catalog.Len()))
		}
		return m, nil

	case catalogMsg:
		if msg.err != nil {
			m.status = "catalog refresh failed"
			m = m.appendLocal(ItemError, fmt.Sprintf("Could not list targets: %v", msg.err))
			return m, nil
		}
		m.catalog = msg.catalog
		if msg.announce {
			m = m.appendLocal(ItemInfo, renderCatalog(msg.catalog))
		}
		return m, nil

	case targetResolvedMsg:
		if msg.err != nil {
			m = m.appendLocal(ItemError, msg.err.Error())
			return m, nil
		}
		m.controller.SetTarget(msg.target)
		return m, nil

	case promptHistoryMsg:
		m.histEntries = msg.prompts
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// applyEvent folds one controller event into the view state
func (m Model) applyEvent(ev Event) Model {
	switch ev.Kind {
	case EventStateChanged:
		m.state = ev.State
		switch ev.State {
		case StateIdle:
			m.status = "ready"
		case StateConnecting:
			m.status = "connecting"
		case StateResponding:
			m.status = "streaming · esc to cancel"
		case StateError:
			m.status = "request failed · just submit again"
		}
	case EventItemAppended:
		m.transcript = append(m.transcript, ev.Item)
		m.refreshViewport(true)
	case EventPendingUpdated:
		m.pendingText = ev.Pending
		m.refreshViewport(true)
	}
	return m
}

// submitInput routes the entered line: slash command or chat message
func (m Model) submitInput() (Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.SetValue("")
		m.histPos = -1
		return m.handleCommand(text)
	}

	err := m.controller.Submit(text)
	switch {
	case err == nil:
		m.input.SetValue("")
		m.histPos = -1
		m.draft = ""
		m.histEntries = append([]string{text}, m.histEntries...)
		if m.hist != nil {
			if herr := m.hist.Append(text, m.controller.Target().Describe()); herr != nil {
				LogDebug("failed to record prompt: %v", herr)
			}
		}
	case err == ErrBusy:
		m.status = "still responding · esc to cancel first"
	case err == ErrNoTarget:
		m.status = "pick a target first: /target <name>"
	case err == ErrEmptyMessage:
		// Nothing to do
	default:
		m.status = err.Error()
	}
	return m, nil
}

// handleCommand executes a slash command
func (m Model) handleCommand(text string) (Model, tea.Cmd) {
	fields := strings.Fields(text)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		return m.appendLocal(ItemInfo, helpText()), nil

	case "/target":
		if len(args) == 0 {
			m.status = "usage: /target <id or name>"
			return m, nil
		}
		m.status = "resolving target"
		return m, resolveTargetCmd(m.client, m.cfg, strings.Join(args, " "))

	case "/targets":
		m.status = "fetching targets"
		return m, fetchCatalogCmd(m.client, m.cfg, true)

	case "/new":
		id, err := m.controller.ResetSession("")
		if err != nil {
			m.status = "finish or cancel the current response first"
			return m, nil
		}
		m.transcript = nil
		m.pendingText = ""
		m.refreshViewport(true)
		return m.appendLocal(ItemInfo, "Started session "+id), nil

	case "/sessions":
		infos, err := m.store.ListSessions()
		if err != nil {
			return m.appendLocal(ItemError, fmt.Sprintf("Could not list sessions: %v", err)), nil
		}
		return m.appendLocal(ItemInfo, renderSessions(infos)), nil

	case "/clear":
		m.transcript = nil
		m.pendingText = ""
		m.refreshViewport(true)
		return m, nil

	case "/quit":
		return m.quit()

	default:
		m.status = fmt.Sprintf("unknown command %s · /help lists commands", cmd)
		return m, nil
	}
}

func (m Model) quit() (Model, tea.Cmd) {
	m.quitting = true
	if err := m.store.Flush(); err != nil {
		LogWarn("failed to save session on exit: %v", err)
	}
	return m, tea.Quit
}

// recallOlder steps back through prompt history
func (m Model) recallOlder() Model {
	if len(m.histEntries) == 0 || m.histPos+1 >= len(m.histEntries) {
		return m
	}
	if m.histPos == -1 {
		m.draft = m.input.Value()
	}
	m.histPos++
	m.input.SetValue(m.histEntries[m.histPos])
	m.input.CursorEnd()
	return m
}

// recallNewer steps forward, landing back on the unsent draft
func (m Model) recallNewer() Model {
	if m.histPos < 0 {
		return m
	}
	m.histPos--
	if m.histPos == -1 {
		m.input.SetValue(m.draft)
	} else {
		m.input.SetValue(m.histEntries[m.histPos])
	}
	m.input.CursorEnd()
	return m
}

// appendLocal adds a view-only notice to the transcript. It is never
// persisted; the store only holds the real conversation.
func (m Model) appendLocal(itemType ItemType, text string) Model {
	m.transcript = append(m.transcript, HistoryItem{
		Type:      itemType,
		Text:      text,
		Timestamp: time.Now(),
	})
	m.refreshViewport(true)
	return m
}

// refreshViewport re-renders the transcript into the viewport
func (m *Model) refreshViewport(toBottom bool) {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.renderTranscript())
	if toBottom {
		m.vp.GotoBottom()
	}
}

// renderTranscript renders every item plus the in-flight response
func (m *Model) renderTranscript() string {
	width := m.vp.Width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	for _, item := range m.transcript {
		b.WriteString(m.renderItem(item, width))
		b.WriteString("\n")
	}
	if m.pendingText != "" {
		block := lipgloss.NewStyle().Width(width).Render(m.theme.pending.Render(m.pendingText + " ▌"))
		b.WriteString(m.theme.assistant.Render(m.theme.timestamp.Render("· ")+"Assistant") + "\n" + block + "\n")
	}
	return b.String()
}

// renderItem renders one transcript entry with its type's styling
func (m *Model) renderItem(item HistoryItem, width int) string {
	ts := m.theme.timestamp.Render(item.Timestamp.Local().Format("15:04"))
	wrap := lipgloss.NewStyle().Width(width)

	switch item.Type {
	case ItemUser:
		return m.theme.user.Render("You "+ts) + "\n" + wrap.Render(item.Text)
	case ItemAssistant:
		body := wrap.Render(m.theme.assistant.Render(item.Text))
		meta := ""
		if item.Metadata != nil && item.Metadata.Stats != nil {
			meta = "\n" + m.theme.timestamp.Render(statsSummary(item.Metadata.Stats))
		}
		return m.theme.info.Render("Assistant "+ts) + "\n" + body + meta
	case ItemThinking:
		return wrap.Render(m.theme.thinking.Render("∴ " + CompactWhitespace(item.Text)))
	case ItemToolStart:
		return wrap.Render(m.theme.tool.Render("⚙ tool: " + FirstLine(item.Text)))
	case ItemToolComplete:
		return wrap.Render(m.theme.tool.Render("⚙ tool done: " + FirstLine(item.Text)))
	case ItemAgentStart, ItemTeamStart:
		return wrap.Render(m.theme.event.Render("→ " + item.Type.Label() + ": " + FirstLine(item.Text)))
	case ItemMemoryUpdate:
		return wrap.Render(m.theme.event.Render("✦ memory updated"))
	case ItemInfo:
		return wrap.Render(m.theme.info.Render(item.Text))
	case ItemError:
		return wrap.Render(m.theme.errText.Render(item.Text))
	default:
		return wrap.Render(item.Text)
	}
}

// View renders the whole screen
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting..."
	}

	target := m.controller.Target()
	targetLabel := "no target"
	if !target.IsZero() {
		targetLabel = target.Describe()
	}
	title := m.theme.title.Render("agentos-chat") + m.theme.status.Render(
		fmt.Sprintf(" · %s · session %s", EllipsizeWidth(targetLabel, 48), m.store.SessionID()))

	status := m.theme.status.Render(m.status)
	if m.state == StateConnecting || m.state == StateResponding {
		status = m.spin.View() + " " + m.theme.statusHot.Render(m.status)
	}

	return title + "\n" + m.vp.View() + "\n" + status + "\n" + m.input.View()
}

func statsSummary(stats *RunStats) string {
	s := stats.Elapsed.Round(10 * time.Millisecond).String()
	if stats.InputTokens > 0 || stats.OutputTokens > 0 {
		s += fmt.Sprintf(" · %d in / %d out", stats.InputTokens, stats.OutputTokens)
	}
	return s
}

func helpText() string {
	return strings.TrimSpace(`Commands:
  /target <name>   switch to an agent, team, or workflow
  /targets         list everything the server offers
  /new             start a fresh session
  /sessions        list stored sessions
  /clear           clear the screen (history stays on disk)
  /quit            save and exit
Keys: enter sends · esc cancels · up/down recall prompts · pgup/pgdn scroll`)
}

// renderCatalog renders the catalog as an indented listing
func renderCatalog(catalog Catalog) string {
	if catalog.Len() == 0 {
		return "The server offers no targets."
	}
	var b strings.Builder
	b.WriteString("Available targets:")
	section := func(label string, targets []Target) {
		if len(targets) == 0 {
			return
		}
		b.WriteString("\n" + label + ":")
		for _, t := range targets {
			b.WriteString("\n  " + t.ID)
			if t.Name != "" {
				b.WriteString("  (" + t.Name + ")")
			}
		}
	}
	section("agents", catalog.Agents)
	section("teams", catalog.Teams)
	section("workflows", catalog.Workflows)
	return b.String()
}

// renderSessions renders stored sessions, newest first
func renderSessions(infos []SessionInfo) string {
	if len(infos) == 0 {
		return "No stored sessions yet."
	}
	var b strings.Builder
	b.WriteString("Stored sessions (newest first):")
	for i, info := range infos {
		if i >= 10 {
			b.WriteString(fmt.Sprintf("\n  ... and %d more", len(infos)-i))
			break
		}
		count := ""
		if info.MessageCount >= 0 {
			count = fmt.Sprintf(" · %d messages", info.MessageCount)
		}
		b.WriteString(fmt.Sprintf("\n  %s%s", info.ID, count))
	}
	b.WriteString("\nResume one with: agentos-chat --session <id>")
	return b.String()
}

// RunTUI starts the interactive chat. Logging moves off the terminal for
// the duration: to cfg.LogFile when set, discarded otherwise.
func RunTUI(cfg Config, client *Client, controller *Controller, store *Store, hist *PromptHistory, initialTarget string) error {
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		SetLogOutput(f)
	} else {
		SetLogOutput(io.Discard)
	}
	defer SetLogOutput(os.Stderr)

	model := NewModel(cfg, client, controller, store, hist, initialTarget)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("interactive session failed: %w", err)
	}
	return store.Flush()
}
