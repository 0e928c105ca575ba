package session

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	tcerrors "github.com/timvw/tcssh/internal/errors"
	"github.com/timvw/tcssh/internal/layout"
	"github.com/timvw/tcssh/internal/model"
	"github.com/timvw/tcssh/internal/otel"
	"github.com/timvw/tcssh/internal/surface"
	"github.com/timvw/tcssh/internal/transport"
)

// Orchestrator opens one surface window per target and owns the registry.
//
// Launch, Reap and everything reading the registry run on the caller's
// event loop. Closure notifications arrive from surface goroutines and are
// queued until the loop calls Reap.
type Orchestrator struct {
	surface   surface.Surface
	command   transport.Command
	remote    string
	geometry  layout.Geometry
	autoClose int
	title     string
	logger    *log.Logger
	tel       *otel.Telemetry

	registry *Registry

	mu      sync.Mutex
	pending []surface.Handle
	ready   chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRemoteCommand runs cmd on every host instead of a login shell.
func WithRemoteCommand(cmd string) Option {
	return func(o *Orchestrator) { o.remote = cmd }
}

// WithGeometry sets the screen geometry used to place windows.
func WithGeometry(g layout.Geometry) Option {
	return func(o *Orchestrator) { o.geometry = g }
}

// WithAutoClose sets the seconds a window lingers after its transport exits.
func WithAutoClose(seconds int) Option {
	return func(o *Orchestrator) { o.autoClose = seconds }
}

// WithTitle sets the window title prefix.
func WithTitle(prefix string) Option {
	return func(o *Orchestrator) { o.title = prefix }
}

// WithLogger sets the logger used for spawn warnings.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTelemetry sets the span and counter sink.
func WithTelemetry(t *otel.Telemetry) Option {
	return func(o *Orchestrator) { o.tel = t }
}

// New creates an Orchestrator launching cmd on s.
func New(s surface.Surface, cmd transport.Command, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		surface:  s,
		command:  cmd,
		title:    "tcssh",
		logger:   log.New(io.Discard),
		registry: NewRegistry(),
		ready:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	s.OnClosed(o.notify)
	return o
}

// Registry returns the live registry. Callers must not hold on to it
// outside the event loop.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Surface returns the surface sessions are opened on.
func (o *Orchestrator) Surface() surface.Surface {
	return o.surface
}

// Launch opens a window for every target in order. Window placement
// continues the grid after the highest cell still occupied. A target whose
// window cannot be spawned yields a SpawnFailed warning and is left out of
// the registry; the others still launch.
func (o *Orchestrator) Launch(ctx context.Context, targets []model.LaunchTarget) ([]Session, []tcerrors.Warning) {
	o.Reap()

	first := o.registry.nextCell()
	grid := layout.Tile(first+len(targets), o.geometry)

	var launched []Session
	var warnings []tcerrors.Warning
	for i, target := range targets {
		s := o.registry.add(target)
		s.Cell = first + i
		req := surface.OpenRequest{
			Target:    target,
			Argv:      o.command.Argv(target, o.remote),
			Title:     model.Title(o.title, target),
			Geometry:  o.geometry,
			Index:     first + i,
			Count:     len(grid.Cells),
			AutoClose: o.autoClose,
		}
		if req.Index < len(grid.Cells) {
			req.Cell = grid.Cells[req.Index]
		}

		h, err := o.open(ctx, req)
		if err != nil {
			o.registry.drop(s)
			w := tcerrors.Warn(tcerrors.SpawnFailed(target.String(), err))
			o.logger.Warn("session spawn failed", "target", target.String(), "surface", o.surface.Name(), "error", err)
			warnings = append(warnings, w)
			continue
		}
		o.registry.open(s, h)
		o.logger.Debug("session open", "key", s.Key, "handle", h)
		launched = append(launched, *s)
	}
	return launched, warnings
}

func (o *Orchestrator) open(ctx context.Context, req surface.OpenRequest) (surface.Handle, error) {
	ctx, span := o.tel.Start(ctx, "launch")
	defer span.End()
	span.SetAttributes(
		attribute.String("target", req.Target.String()),
		attribute.String("transport", string(req.Target.Transport)),
		attribute.String("surface", o.surface.Name()),
	)

	h, err := o.surface.Open(ctx, req)
	o.metrics().RecordLaunch(ctx, string(req.Target.Transport), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return h, nil
}

// notify queues a closure. It runs on surface goroutines and never blocks.
func (o *Orchestrator) notify(h surface.Handle) {
	o.mu.Lock()
	o.pending = append(o.pending, h)
	o.mu.Unlock()
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

// Closed signals that closures are waiting for Reap.
func (o *Orchestrator) Closed() <-chan struct{} {
	return o.ready
}

// Reap applies queued closures to the registry and returns the sessions
// removed, each in state Closed.
func (o *Orchestrator) Reap() []Session {
	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	var removed []Session
	for _, h := range pending {
		s, ok := o.registry.remove(h)
		if !ok {
			continue
		}
		o.metrics().RecordClosed(context.Background())
		o.logger.Debug("session closed", "key", s.Key, "handle", h)
		removed = append(removed, s)
	}
	return removed
}

// Snapshot returns the Open sessions after applying pending closures.
func (o *Orchestrator) Snapshot() []Session {
	o.Reap()
	return o.registry.Open()
}

// IsOpen reports whether h is still Open after applying pending closures.
func (o *Orchestrator) IsOpen(h surface.Handle) bool {
	o.Reap()
	s, ok := o.registry.Get(h)
	return ok && s.State == model.StateOpen
}

// CloseAll asks every open window to close. Removal still happens through
// the closure notifications.
func (o *Orchestrator) CloseAll() {
	for _, s := range o.Snapshot() {
		if err := o.surface.Close(s.Handle); err != nil {
			o.logger.Debug("close failed", "key", s.Key, "error", err)
		}
	}
}

func (o *Orchestrator) metrics() *otel.Metrics {
	if o.tel == nil {
		return nil
	}
	return o.tel.Metrics
}
