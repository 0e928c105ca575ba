package surface

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/timvw/tcssh/internal/keys"
	"github.com/timvw/tcssh/internal/model"
	"github.com/timvw/tcssh/internal/transport"
)

// DefaultPollInterval is how often the tmux surface checks for closed panes.
const DefaultPollInterval = 500 * time.Millisecond

// Runner executes one tmux command and returns its stdout.
type Runner func(ctx context.Context, args ...string) (string, error)

// Tmux opens every session as a pane of one dedicated tmux window.
type Tmux struct {
	run      Runner
	clock    clockwork.Clock
	interval time.Duration
	name     string
	logger   *log.Logger

	mu     sync.Mutex
	window string
	panes  map[Handle]bool

	closed callbacks
}

// TmuxOption configures a Tmux surface.
type TmuxOption func(*Tmux)

// WithRunner replaces the tmux executable, for tests.
func WithRunner(r Runner) TmuxOption {
	return func(t *Tmux) { t.run = r }
}

// WithClock sets the clock driving the pane watcher.
func WithClock(c clockwork.Clock) TmuxOption {
	return func(t *Tmux) { t.clock = c }
}

// NewTmux creates a tmux surface. The window is created on the first Open.
func NewTmux(opts Options, options ...TmuxOption) *Tmux {
	name := "tcssh"
	if opts.RunID != "" {
		name = "tcssh-" + shortID(opts.RunID)
	}
	t := &Tmux{
		run:      run,
		clock:    clockwork.NewRealClock(),
		interval: DefaultPollInterval,
		name:     name,
		logger:   opts.logger(),
		panes:    map[Handle]bool{},
	}
	for _, o := range options {
		o(t)
	}
	return t
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

// WindowName returns the name of the tmux window holding the sessions.
func (t *Tmux) WindowName() string {
	return t.name
}

// Open starts req.Argv in a new pane. The first pane creates the window in
// the background; later panes split it and the window is re-tiled.
func (t *Tmux) Open(ctx context.Context, req OpenRequest) (Handle, error) {
	if len(req.Argv) == 0 {
		return "", fmt.Errorf("empty command for %s", req.Target)
	}
	shell := transport.ShellQuote(req.Argv) + holdTail(req.AutoClose)

	t.mu.Lock()
	defer t.mu.Unlock()

	var pane string
	if t.window == "" {
		out, err := t.run(ctx, "new-window", "-d", "-P", "-F", "#{window_id} #{pane_id}", "-n", t.name, shell)
		if err != nil {
			return "", fmt.Errorf("tmux new-window: %w", err)
		}
		fields := strings.Fields(out)
		if len(fields) != 2 {
			return "", fmt.Errorf("tmux new-window: unexpected output %q", out)
		}
		t.window, pane = fields[0], fields[1]
	} else {
		out, err := t.run(ctx, "split-window", "-d", "-P", "-F", "#{pane_id}", "-t", t.window, shell)
		if err != nil {
			return "", fmt.Errorf("tmux split-window -t %s: %w", t.window, err)
		}
		pane = strings.TrimSpace(out)
		if _, err := t.run(ctx, "select-layout", "-t", t.window, "tiled"); err != nil {
			t.logger.Debug("tmux select-layout failed", "window", t.window, "error", err)
		}
	}
	if req.Title != "" {
		if _, err := t.run(ctx, "select-pane", "-t", pane, "-T", req.Title); err != nil {
			t.logger.Debug("tmux select-pane title failed", "pane", pane, "error", err)
		}
	}

	h := Handle(pane)
	t.panes[h] = true
	return h, nil
}

// Close kills the pane. The watcher reports the closure.
func (t *Tmux) Close(h Handle) error {
	if _, err := t.run(context.Background(), "kill-pane", "-t", string(h)); err != nil {
		return fmt.Errorf("tmux kill-pane -t %s: %w", h, err)
	}
	return nil
}

// InjectKey sends ev to the pane with send-keys. Literal text goes with -l
// so tmux does not interpret words like "Enter". tmux has no key-up, so
// releases are dropped.
func (t *Tmux) InjectKey(h Handle, ev keys.Event) error {
	if ev.Phase == keys.Release {
		return nil
	}
	t.mu.Lock()
	known := t.panes[h]
	t.mu.Unlock()
	if !known {
		return fmt.Errorf("unknown pane %s", h)
	}

	args := append([]string{"send-keys", "-t", string(h)}, ev.SendKeysArgs()...)
	if _, err := t.run(context.Background(), args...); err != nil {
		return fmt.Errorf("tmux send-keys -t %s: %w", h, err)
	}
	return nil
}

// OnClosed registers fn for pane closure notifications.
func (t *Tmux) OnClosed(fn func(Handle)) {
	t.closed.add(fn)
}

// Watch polls the window until ctx is done and reports panes that have
// exited or been killed.
func (t *Tmux) Watch(ctx context.Context) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.poll(ctx)
		}
	}
}

func (t *Tmux) poll(ctx context.Context) {
	t.mu.Lock()
	window := t.window
	if window == "" || len(t.panes) == 0 {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	panes, err := t.listPanes(ctx, window)
	if err != nil && !strings.Contains(err.Error(), "can't find") {
		t.logger.Debug("tmux list-panes failed", "window", window, "error", err)
		return
	}

	live := map[Handle]bool{}
	for _, p := range panes {
		if !p.Dead {
			live[Handle(p.ID)] = true
		}
	}

	t.mu.Lock()
	var gone []Handle
	for h := range t.panes {
		if !live[h] {
			gone = append(gone, h)
			delete(t.panes, h)
		}
	}
	if len(live) == 0 {
		// the window closes with its last pane
		t.window = ""
	}
	t.mu.Unlock()

	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })
	for _, h := range gone {
		t.closed.fire(h)
	}
}

// listPanes returns the panes of window.
func (t *Tmux) listPanes(ctx context.Context, window string) ([]model.Pane, error) {
	// Format: pane_id\tsession_name:window_index.pane_index\tpane_pid\tpane_dead
	format := "#{pane_id}\t#{session_name}:#{window_index}.#{pane_index}\t#{pane_pid}\t#{pane_dead}"
	out, err := t.run(ctx, "list-panes", "-t", window, "-F", format)
	if err != nil {
		return nil, fmt.Errorf("tmux list-panes -t %s: %w", window, err)
	}

	var panes []model.Pane
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) != 4 {
			continue
		}
		pane, err := parseTarget(parts[1])
		if err != nil {
			continue
		}
		pane.ID = parts[0]
		pane.PID, _ = strconv.Atoi(parts[2])
		pane.Dead = parts[3] == "1"
		panes = append(panes, pane)
	}
	return panes, nil
}

// holdTail keeps the pane open after the transport exits so its last
// output can be read.
func holdTail(autoClose int) string {
	if autoClose > 0 {
		return fmt.Sprintf("; echo; echo 'Sleeping for %d seconds'; sleep %d", autoClose, autoClose)
	}
	return "; echo; echo 'Press RETURN to continue'; read IGNORE"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// run executes a tmux command and returns its stdout.
func run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%w: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}

// parseTarget parses a tmux target string "session:window.pane" into a Pane.
func parseTarget(target string) (model.Pane, error) {
	colonIdx := strings.LastIndex(target, ":")
	if colonIdx < 0 {
		return model.Pane{}, fmt.Errorf("invalid target %q: missing ':'", target)
	}

	session := target[:colonIdx]
	rest := target[colonIdx+1:]

	dotIdx := strings.LastIndex(rest, ".")
	if dotIdx < 0 {
		return model.Pane{}, fmt.Errorf("invalid target %q: missing '.'", target)
	}

	window, err := strconv.Atoi(rest[:dotIdx])
	if err != nil {
		return model.Pane{}, fmt.Errorf("invalid window index in %q: %w", target, err)
	}

	pane, err := strconv.Atoi(rest[dotIdx+1:])
	if err != nil {
		return model.Pane{}, fmt.Errorf("invalid pane index in %q: %w", target, err)
	}

	return model.Pane{
		Target:  target,
		Session: session,
		Window:  window,
		Pane:    pane,
	}, nil
}
