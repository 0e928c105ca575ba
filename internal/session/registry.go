// Package session launches remote sessions onto a surface and keeps the live
// registry of them.
package session

import (
	"strconv"

	"github.com/timvw/tcssh/internal/model"
	"github.com/timvw/tcssh/internal/surface"
)

// Session is one launched target.
type Session struct {
	// Key is unique among live sessions: the address, or "address N" when
	// the same address is open more than once.
	Key    string
	Target model.LaunchTarget
	Handle surface.Handle
	State  model.State
	// Cell is the grid position the window was placed at.
	Cell int
}

// Registry holds the live sessions in launch order. It is not safe for
// concurrent use; it belongs to the event loop.
type Registry struct {
	sessions []*Session
	byHandle map[surface.Handle]*Session
	keys     map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byHandle: map[surface.Handle]*Session{},
		keys:     map[string]bool{},
	}
}

// nextCell returns the first grid position after every live session, so
// windows still open keep their places.
func (r *Registry) nextCell() int {
	next := 0
	for _, s := range r.sessions {
		if s.Cell >= next {
			next = s.Cell + 1
		}
	}
	return next
}

// add registers a Launching session for target under a fresh key.
func (r *Registry) add(target model.LaunchTarget) *Session {
	s := &Session{Key: r.uniqueKey(target.Address), Target: target, State: model.StateLaunching}
	r.keys[s.Key] = true
	r.sessions = append(r.sessions, s)
	return s
}

func (r *Registry) uniqueKey(address string) string {
	if !r.keys[address] {
		return address
	}
	for n := 1; ; n++ {
		k := address + " " + strconv.Itoa(n)
		if !r.keys[k] {
			return k
		}
	}
}

// open records the handle and moves s to Open.
func (r *Registry) open(s *Session, h surface.Handle) {
	s.Handle = h
	s.State = model.StateOpen
	r.byHandle[h] = s
}

// drop removes s whatever its state.
func (r *Registry) drop(s *Session) {
	for i, x := range r.sessions {
		if x == s {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			break
		}
	}
	delete(r.keys, s.Key)
	if s.Handle != "" {
		delete(r.byHandle, s.Handle)
	}
}

// remove marks the session behind h Closed and removes it. It reports false
// for unknown handles.
func (r *Registry) remove(h surface.Handle) (Session, bool) {
	s, ok := r.byHandle[h]
	if !ok {
		return Session{}, false
	}
	s.State = model.StateClosed
	r.drop(s)
	return *s, true
}

// Get returns the session behind h.
func (r *Registry) Get(h surface.Handle) (Session, bool) {
	s, ok := r.byHandle[h]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Sessions returns a copy of all live sessions in launch order.
func (r *Registry) Sessions() []Session {
	out := make([]Session, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = *s
	}
	return out
}

// Open returns a copy of the Open sessions in launch order.
func (r *Registry) Open() []Session {
	var out []Session
	for _, s := range r.sessions {
		if s.State == model.StateOpen {
			out = append(out, *s)
		}
	}
	return out
}
