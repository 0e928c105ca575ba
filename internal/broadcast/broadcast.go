// Package broadcast forwards console key events to every open session.
package broadcast

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/timvw/tcssh/internal/keys"
	"github.com/timvw/tcssh/internal/otel"
	"github.com/timvw/tcssh/internal/session"
	"github.com/timvw/tcssh/internal/surface"
)

// Registry is the view of the live sessions a broadcast needs. Both
// methods apply pending closures before answering.
type Registry interface {
	Snapshot() []session.Session
	IsOpen(h surface.Handle) bool
}

// Broadcaster fans key events out to the open sessions. It is synchronous:
// each call returns only after every target has been given the event, so
// successive keystrokes reach each window in order.
type Broadcaster struct {
	registry Registry
	surface  surface.Surface
	logger   *log.Logger
	tel      *otel.Telemetry
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithLogger sets the debug logger for dropped deliveries.
func WithLogger(l *log.Logger) Option {
	return func(b *Broadcaster) { b.logger = l }
}

// WithTelemetry sets the counter sink.
func WithTelemetry(t *otel.Telemetry) Option {
	return func(b *Broadcaster) { b.tel = t }
}

// New creates a Broadcaster delivering through s to the sessions in r.
func New(r Registry, s surface.Surface, opts ...Option) *Broadcaster {
	b := &Broadcaster{registry: r, surface: s, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stroke is a pressed key waiting for its release.
type Stroke struct {
	b       *Broadcaster
	release keys.Event
	targets []surface.Handle
}

// Targets returns the handles the press was delivered to.
func (s *Stroke) Targets() []surface.Handle {
	return s.targets
}

// Press delivers ev as a key-down to every open session and returns the
// stroke whose Release goes to the same sessions.
func (b *Broadcaster) Press(ev keys.Event) *Stroke {
	press, release := keys.Pair(ev)
	open := b.registry.Snapshot()
	st := &Stroke{b: b, release: release, targets: make([]surface.Handle, 0, len(open))}
	for _, s := range open {
		st.targets = append(st.targets, s.Handle)
		b.deliver(s.Handle, press)
	}
	if b.tel != nil {
		b.tel.Metrics.RecordBroadcast(context.Background(), len(st.targets))
	}
	return st
}

// Release delivers the key-up to the sessions that got the press, skipping
// any that closed in between.
func (s *Stroke) Release() {
	for _, h := range s.targets {
		if !s.b.registry.IsOpen(h) {
			continue
		}
		s.b.deliver(h, s.release)
	}
}

// Key delivers a full press/release pair and returns the number of sessions
// it reached.
func (b *Broadcaster) Key(ev keys.Event) int {
	st := b.Press(ev)
	st.Release()
	return len(st.targets)
}

// Text types text into every session, newlines as Enter.
func (b *Broadcaster) Text(text string) {
	for _, ev := range keys.Expand(text) {
		b.Key(ev)
	}
}

// Each sends every open session the events fn returns for it, e.g. its own
// host name.
func (b *Broadcaster) Each(fn func(session.Session) []keys.Event) {
	for _, s := range b.registry.Snapshot() {
		for _, ev := range fn(s) {
			press, release := keys.Pair(ev)
			b.deliver(s.Handle, press)
			if b.registry.IsOpen(s.Handle) {
				b.deliver(s.Handle, release)
			}
		}
	}
}

// SendHostnames types each session's host name into it.
func (b *Broadcaster) SendHostnames() {
	b.Each(func(s session.Session) []keys.Event {
		name := s.Target.Origin
		if name == "" {
			name = s.Target.Address
		}
		return []keys.Event{keys.Literal(name)}
	})
}

// deliver injects ev. A window can close at any moment, so delivery errors
// are expected and only logged at debug level.
func (b *Broadcaster) deliver(h surface.Handle, ev keys.Event) {
	if err := b.surface.InjectKey(h, ev); err != nil {
		b.logger.Debug("key not delivered", "handle", h, "key", ev.String(), "error", err)
	}
}
