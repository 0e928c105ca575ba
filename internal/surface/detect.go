package surface

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Options carries the settings the surface implementations need.
type Options struct {
	// RunID names the tmux window and the helper socket directory.
	RunID string

	// Terminal is the emulator executable for the terminal surface, with
	// its extra arguments.
	Terminal     string
	TerminalArgs []string
	// Helper is the path of the tcssh executable run inside each terminal.
	Helper string
	// SocketDir holds the per-window key sockets.
	SocketDir string

	Logger *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard)
}

// Detect picks the surface for name "auto": tmux when running inside a
// tmux client, a terminal emulator otherwise.
func Detect(opts Options) (Surface, error) {
	if os.Getenv("TMUX") != "" {
		return NewTmux(opts), nil
	}
	return newTerminal(opts)
}

// FromName creates a Surface by name.
func FromName(name string, opts Options) (Surface, error) {
	switch name {
	case "", "auto":
		return Detect(opts)
	case "tmux":
		return NewTmux(opts), nil
	case "terminal":
		return newTerminal(opts)
	default:
		return nil, fmt.Errorf("unknown surface: %q (supported: auto, tmux, terminal)", name)
	}
}

func newTerminal(opts Options) (Surface, error) {
	t, err := NewTerminal(opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}
