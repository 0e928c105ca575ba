// Package surface abstracts the place a remote session is displayed: a tmux
// pane or a terminal emulator window.
//
// A Surface is pure transport. It opens a window for a command line, injects
// key events into it, and reports when the window goes away. It keeps no
// session bookkeeping of its own; the session registry lives in the caller.
package surface

import (
	"context"
	"sync"

	"github.com/timvw/tcssh/internal/keys"
	"github.com/timvw/tcssh/internal/layout"
	"github.com/timvw/tcssh/internal/model"
)

// Handle identifies one opened window. Handles are never reused within a
// surface.
type Handle string

// OpenRequest describes one window to open.
type OpenRequest struct {
	Target model.LaunchTarget
	// Argv is the transport command line to run in the window.
	Argv  []string
	Title string

	// Cell is the window's slot in the layout grid.
	Cell     layout.Rect
	Geometry layout.Geometry
	// Index is the target's position in the launch batch of Count targets.
	Index int
	Count int

	// AutoClose is the number of seconds to wait after the transport exits
	// before the window closes; 0 waits for RETURN.
	AutoClose int
}

// Surface abstracts window lifecycle operations.
// Implementations exist for tmux and for standalone terminal emulators.
type Surface interface {
	// Name returns the surface name (e.g., "tmux", "terminal").
	Name() string

	// Open spawns a window running req.Argv. An error means nothing was
	// opened for this request.
	Open(ctx context.Context, req OpenRequest) (Handle, error)

	// Close asks the window to go away. The closure is still reported
	// through OnClosed.
	Close(h Handle) error

	// InjectKey delivers one key event to the window.
	InjectKey(h Handle, ev keys.Event) error

	// OnClosed registers fn to be called once per handle when its window
	// closes. fn may be called from any goroutine.
	OnClosed(fn func(Handle))
}

// Watcher is implemented by surfaces that have to poll for window closure.
// Watch blocks until ctx is done.
type Watcher interface {
	Watch(ctx context.Context)
}

// callbacks is the OnClosed registry shared by the implementations.
type callbacks struct {
	mu  sync.Mutex
	fns []func(Handle)
}

func (c *callbacks) add(fn func(Handle)) {
	c.mu.Lock()
	c.fns = append(c.fns, fn)
	c.mu.Unlock()
}

func (c *callbacks) fire(h Handle) {
	c.mu.Lock()
	fns := append([]func(Handle){}, c.fns...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(h)
	}
}
