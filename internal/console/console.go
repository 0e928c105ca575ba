// Package console is the operator's input surface: every key typed into it
// is broadcast to the open sessions, except a few hotkeys handled locally.
package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/tcssh/internal/broadcast"
	tcerrors "github.com/timvw/tcssh/internal/errors"
	"github.com/timvw/tcssh/internal/model"
	"github.com/timvw/tcssh/internal/session"
)

// AddFunc resolves, expands and launches more hosts into the running
// session set.
type AddFunc func(ctx context.Context, names []string) ([]session.Session, []tcerrors.Warning, error)

// Console runs the interactive input surface.
type Console struct {
	Orchestrator *session.Orchestrator
	Broadcaster  *broadcast.Broadcaster
	Add          AddFunc
	// Warnings collected before the console started.
	Warnings []tcerrors.Warning
	Theme    Theme
	Title    string
}

type viewMode int

const (
	modeBroadcast viewMode = iota
	modeAddHost
)

// closedMsg reports that the orchestrator has closures to reap.
type closedMsg struct{}

type consoleModel struct {
	ctx    context.Context
	orch   *session.Orchestrator
	bc     *broadcast.Broadcaster
	add    AddFunc
	styles styles
	title  string

	mode  viewMode
	input textinput.Model

	warnings []tcerrors.Warning
	message  string
	sent     int

	width  int
	height int
}

func (c *Console) Run(ctx context.Context) error {
	m := newModel(ctx, c)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func newModel(ctx context.Context, c *Console) *consoleModel {
	ti := textinput.New()
	ti.Placeholder = "hosts, clusters or tags..."
	ti.CharLimit = 1024
	ti.Width = 60

	title := c.Title
	if title == "" {
		title = "tcssh"
	}
	return &consoleModel{
		ctx:      ctx,
		orch:     c.Orchestrator,
		bc:       c.Broadcaster,
		add:      c.Add,
		styles:   newStyles(c.Theme),
		title:    title,
		input:    ti,
		warnings: append([]tcerrors.Warning(nil), c.Warnings...),
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return m.waitForClose()
}

// waitForClose turns the orchestrator's closure signal into a message so
// the registry is only touched from Update.
func (m *consoleModel) waitForClose() tea.Cmd {
	ch := m.orch.Closed()
	return func() tea.Msg {
		<-ch
		return closedMsg{}
	}
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode == modeAddHost {
			return m.handleAddHostKey(msg)
		}
		return m.handleBroadcastKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case closedMsg:
		if removed := m.orch.Reap(); len(removed) > 0 {
			names := make([]string, len(removed))
			for i, s := range removed {
				names[i] = s.Key
			}
			m.message = "Closed " + strings.Join(names, ", ")
		}
		return m, m.waitForClose()
	}
	return m, nil
}

func (m *consoleModel) handleBroadcastKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+q":
		m.orch.CloseAll()
		return m, tea.Quit

	case "alt+a":
		m.mode = modeAddHost
		m.input.Reset()
		m.input.Focus()
		return m, textinput.Blink

	case "alt+n":
		m.bc.SendHostnames()
		m.message = "Sent host names"
		return m, nil
	}

	ev, ok := KeyEvent(msg)
	if !ok {
		return m, nil
	}
	m.bc.Key(ev)
	m.sent++
	return m, nil
}

func (m *consoleModel) handleAddHostKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBroadcast
		m.input.Blur()
		m.message = ""
		return m, nil

	case tea.KeyEnter:
		names := strings.Fields(m.input.Value())
		m.mode = modeBroadcast
		m.input.Blur()
		m.input.Reset()
		if len(names) == 0 || m.add == nil {
			return m, nil
		}
		launched, warnings, err := m.add(m.ctx, names)
		m.warnings = append(m.warnings, warnings...)
		if err != nil {
			m.message = fmt.Sprintf("Add failed: %v", err)
			return m, nil
		}
		m.message = fmt.Sprintf("Added %d session(s)", len(launched))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *consoleModel) View() string {
	var b strings.Builder

	sessions := m.orch.Registry().Sessions()
	open := 0
	for _, s := range sessions {
		if s.State == model.StateOpen {
			open++
		}
	}
	b.WriteString(m.styles.title.Render(m.title))
	b.WriteString(m.styles.dim.Render(fmt.Sprintf("  %d open  %d keys sent  via %s", open, m.sent, m.orch.Surface().Name())))
	b.WriteString("\n")
	b.WriteString(m.styles.header.Render(strings.Repeat("─", m.ruleWidth())))
	b.WriteString("\n")

	if len(sessions) == 0 {
		b.WriteString(m.styles.dim.Render("No open sessions. Press alt+a to add hosts."))
		b.WriteString("\n")
	}
	for _, s := range sessions {
		b.WriteString(m.stateIcon(s.State))
		b.WriteString(" ")
		b.WriteString(m.styles.key.Render(s.Key))
		if target := s.Target.String(); target != s.Key {
			b.WriteString(m.styles.dim.Render("  " + target))
		}
		if s.Target.Origin != "" && s.Target.Origin != s.Target.Address {
			b.WriteString(m.styles.dim.Render("  (" + s.Target.Origin + ")"))
		}
		b.WriteString("\n")
	}

	if len(m.warnings) > 0 {
		b.WriteString("\n")
		for _, w := range m.warnings {
			b.WriteString(m.styles.err.Render("! " + w.String()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.mode == modeAddHost {
		b.WriteString(m.styles.title.Render("Add hosts: "))
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(m.hints([][2]string{{"enter", "launch"}, {"esc", "cancel"}}))
	} else {
		if m.message != "" {
			b.WriteString(m.styles.text.Render(m.message))
			b.WriteString("\n")
		}
		b.WriteString(m.hints([][2]string{{"ctrl+q", "quit"}, {"alt+a", "add hosts"}, {"alt+n", "send host names"}}))
	}
	return b.String()
}

func (m *consoleModel) stateIcon(s model.State) string {
	switch s {
	case model.StateOpen:
		return m.styles.open.Render("●")
	case model.StateLaunching:
		return m.styles.pending.Render("○")
	default:
		return m.styles.dim.Render("×")
	}
}

func (m *consoleModel) hints(pairs [][2]string) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = m.styles.hintKey.Render(p[0]) + " " + m.styles.hintDesc.Render(p[1])
	}
	return strings.Join(parts, "  ")
}

func (m *consoleModel) ruleWidth() int {
	if m.width > 0 {
		return m.width
	}
	return 40
}
