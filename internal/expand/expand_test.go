package expand

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tcerrors "github.com/timvw/tcssh/internal/errors"
	"github.com/timvw/tcssh/internal/hostspec"
	"github.com/timvw/tcssh/internal/model"
)

// fakeLookup answers from a fixed table and counts queries.
type fakeLookup struct {
	mu      sync.Mutex
	answers map[string][]string
	fail    map[string]error
	calls   map[string]int
	total   atomic.Int32
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		answers: map[string][]string{},
		fail:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeLookup) LookupHost(ctx context.Context, host string) ([]string, error) {
	f.total.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[host]++
	if err, ok := f.fail[host]; ok {
		return nil, err
	}
	return f.answers[host], nil
}

func specs(in ...string) []hostspec.HostSpec {
	out := make([]hostspec.HostSpec, len(in))
	for i, s := range in {
		out[i] = hostspec.MustParse(s)
	}
	return out
}

func targetStrings(ts []model.LaunchTarget) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

func TestExpandDisabledMakesNoQueries(t *testing.T) {
	lookup := newFakeLookup()
	lookup.answers["node.example.com"] = []string{"10.0.0.1", "10.0.0.2"}
	e := New(lookup)

	targets, warnings := e.Expand(context.Background(), specs("node.example.com", "root@db:22"), false, model.TransportSSH)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"node.example.com", "root@db:22"}, targetStrings(targets))
	assert.Equal(t, int32(0), lookup.total.Load())
	assert.Equal(t, model.TransportSSH, targets[0].Transport)
}

func TestExpandInlinesAddressesInOrder(t *testing.T) {
	lookup := newFakeLookup()
	lookup.answers["web"] = []string{"10.0.0.1", "10.0.0.2"}
	lookup.answers["db"] = []string{"10.0.1.1"}
	e := New(lookup)

	targets, warnings := e.Expand(context.Background(), specs("first", "admin@web:2222", "db"), true, model.TransportMosh)
	require.Len(t, warnings, 1, "first has no addresses")
	assert.Equal(t,
		[]string{"admin@10.0.0.1:2222", "admin@10.0.0.2:2222", "10.0.1.1"},
		targetStrings(targets))
	assert.Equal(t, "web", targets[0].Origin)
	assert.Equal(t, model.TransportMosh, targets[0].Transport)
}

func TestExpandAddressMatchingTagStaysLiteral(t *testing.T) {
	lookup := newFakeLookup()
	// "careful" is also a tag name elsewhere; expansion output is never re-resolved
	lookup.answers["svc"] = []string{"careful", "10.0.0.9"}
	e := New(lookup)

	targets, _ := e.Expand(context.Background(), specs("svc"), true, model.TransportSSH)
	assert.Equal(t, []string{"careful", "10.0.0.9"}, targetStrings(targets))
	assert.Equal(t, 1, lookup.calls["svc"])
	assert.Equal(t, 0, lookup.calls["careful"])
}

func TestExpandFailureIsPerHost(t *testing.T) {
	lookup := newFakeLookup()
	lookup.answers["a"] = []string{"10.0.0.1"}
	lookup.fail["b"] = errors.New("no such host")
	lookup.answers["c"] = []string{"10.0.0.3"}
	e := New(lookup)

	targets, warnings := e.Expand(context.Background(), specs("a", "b", "c"), true, model.TransportSSH)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.3"}, targetStrings(targets))
	require.Len(t, warnings, 1)
	assert.Equal(t, tcerrors.KindUnresolvedHost, warnings[0].Kind())
	assert.Equal(t, "b", warnings[0].Subject())
	assert.False(t, warnings[0].Err.Fatal())
}

func TestExpandSkipsLiteralAddresses(t *testing.T) {
	lookup := newFakeLookup()
	e := New(lookup)

	targets, warnings := e.Expand(context.Background(), specs("10.1.1.1", "u@[2001:db8::1]:22", "::1"), true, model.TransportSSH)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"10.1.1.1", "u@[2001:db8::1]:22", "::1"}, targetStrings(targets))
	assert.Equal(t, int32(0), lookup.total.Load())
}

func TestExpandDuplicateNamesShareLookup(t *testing.T) {
	lookup := &blockingLookup{release: make(chan struct{}), answer: []string{"10.0.0.1", "10.0.0.2"}}
	e := New(lookup)

	done := make(chan []model.LaunchTarget)
	go func() {
		targets, _ := e.Expand(context.Background(), specs("u1@foo", "u2@foo"), true, model.TransportSSH)
		done <- targets
	}()

	// let both goroutines join the same in-flight query before answering
	require.Eventually(t, func() bool { return lookup.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(lookup.release)

	targets := <-done
	assert.Equal(t, int32(1), lookup.calls.Load())
	assert.Equal(t,
		[]string{"u1@10.0.0.1", "u1@10.0.0.2", "u2@10.0.0.1", "u2@10.0.0.2"},
		targetStrings(targets))
}

type blockingLookup struct {
	release chan struct{}
	answer  []string
	calls   atomic.Int32
}

func (b *blockingLookup) LookupHost(ctx context.Context, host string) ([]string, error) {
	b.calls.Add(1)
	<-b.release
	return b.answer, nil
}

// barrierLookup only answers once n queries are in flight at the same time,
// so it deadlocks unless every query is launched before any is awaited.
type barrierLookup struct {
	n       int
	mu      sync.Mutex
	waiting int
	ready   chan struct{}
}

func (b *barrierLookup) LookupHost(ctx context.Context, host string) ([]string, error) {
	b.mu.Lock()
	b.waiting++
	if b.waiting == b.n {
		close(b.ready)
	}
	b.mu.Unlock()
	select {
	case <-b.ready:
		return []string{"192.0.2.1"}, nil
	case <-time.After(2 * time.Second):
		return nil, errors.New("lookups were not concurrent")
	}
}

func TestExpandLaunchesAllLookupsTogether(t *testing.T) {
	hosts := specs("h1", "h2", "h3", "h4", "h5", "h6", "h7", "h8")
	e := New(&barrierLookup{n: len(hosts), ready: make(chan struct{})})

	targets, warnings := e.Expand(context.Background(), hosts, true, model.TransportSSH)
	assert.Empty(t, warnings)
	require.Len(t, targets, len(hosts))
	for i, target := range targets {
		assert.Equal(t, hosts[i].Host, target.Origin, "order follows the input")
	}
}
