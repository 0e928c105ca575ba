package surface

import (
	"context"
	"fmt"
	"sync"

	"github.com/timvw/tcssh/internal/keys"
)

// Fake is an in-memory Surface. It records every call and lets tests fail
// opens per target and close windows on demand.
type Fake struct {
	mu     sync.Mutex
	next   int
	fail   map[string]error
	opened []OpenRequest
	open   map[Handle]OpenRequest
	keys   map[Handle][]keys.Event
	closes []Handle

	closed callbacks
}

// NewFake creates an empty fake surface.
func NewFake() *Fake {
	return &Fake{
		fail: map[string]error{},
		open: map[Handle]OpenRequest{},
		keys: map[Handle][]keys.Event{},
	}
}

// Name returns "fake".
func (f *Fake) Name() string {
	return "fake"
}

// FailAddress makes every Open for address return err.
func (f *Fake) FailAddress(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[address] = err
}

// Open records req and returns a new handle unless the address is set to
// fail.
func (f *Fake) Open(ctx context.Context, req OpenRequest) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[req.Target.Address]; ok {
		return "", err
	}
	f.next++
	h := Handle(fmt.Sprintf("fake-%d", f.next))
	f.opened = append(f.opened, req)
	f.open[h] = req
	return h, nil
}

// Close closes the window and fires OnClosed synchronously.
func (f *Fake) Close(h Handle) error {
	f.mu.Lock()
	if _, ok := f.open[h]; !ok {
		f.mu.Unlock()
		return fmt.Errorf("unknown window %s", h)
	}
	delete(f.open, h)
	f.closes = append(f.closes, h)
	f.mu.Unlock()

	f.closed.fire(h)
	return nil
}

// InjectKey records ev. Injecting into a closed window is an error.
func (f *Fake) InjectKey(h Handle, ev keys.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.open[h]; !ok {
		return fmt.Errorf("window %s is closed", h)
	}
	f.keys[h] = append(f.keys[h], ev)
	return nil
}

// OnClosed registers fn.
func (f *Fake) OnClosed(fn func(Handle)) {
	f.closed.add(fn)
}

// Opened returns every successful open request in order.
func (f *Fake) Opened() []OpenRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OpenRequest(nil), f.opened...)
}

// Keys returns the events delivered to h.
func (f *Fake) Keys(h Handle) []keys.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]keys.Event(nil), f.keys[h]...)
}

// Closes returns the handles closed so far, in order.
func (f *Fake) Closes() []Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Handle(nil), f.closes...)
}

// IsOpen reports whether h is still open.
func (f *Fake) IsOpen(h Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.open[h]
	return ok
}
