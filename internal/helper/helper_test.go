package helper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/timvw/tcssh/internal/keys"
)

// syncBuffer is a bytes.Buffer safe to read while the pty copy writes.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestRunReportsExitStatus(t *testing.T) {
	out := &syncBuffer{}
	code, err := Run(context.Background(), Options{
		Argv:   []string{"sh", "-c", "echo hello; exit 3"},
		Stdin:  strings.NewReader("\n"),
		Stdout: out,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !strings.Contains(out.String(), "hello") {
		t.Errorf("output %q missing transport output", out.String())
	}
	if !strings.Contains(out.String(), "Press RETURN to continue") {
		t.Errorf("output %q missing hold prompt", out.String())
	}
}

func TestRunMissingCommand(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Argv:   []string{"tcssh-no-such-transport"},
		Stdin:  strings.NewReader(""),
		Stdout: io.Discard,
	})
	if err == nil {
		t.Fatal("expected error for missing executable")
	}

	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestRunAutoClose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	out := &syncBuffer{}
	done := make(chan int, 1)
	go func() {
		code, _ := Run(context.Background(), Options{
			Argv:      []string{"true"},
			AutoClose: 5,
			Stdin:     strings.NewReader(""),
			Stdout:    out,
			Clock:     clock,
		})
		done <- code
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("helper never started sleeping: %v", err)
	}
	if !strings.Contains(out.String(), "Sleeping for 5 seconds") {
		t.Errorf("output %q missing sleep notice", out.String())
	}
	clock.Advance(5 * time.Second)

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("exit code = %d, want 0", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("helper did not exit after auto-close delay")
	}
}

func TestRunInjectedKeys(t *testing.T) {
	socket := shortSocketPath(t)
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), Options{
			Socket: socket,
			Argv:   []string{"sh", "-c", `read line; echo "got:$line"`},
			Stdin:  strings.NewReader(""),
			Stdout: out,
		})
		done <- err
	}()

	waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	})
	for _, ev := range []keys.Event{keys.Literal("hi"), keys.Literal("hi").Release(), keys.Named("Enter")} {
		if err := sendDatagram(socket, ev.Encode()); err != nil {
			t.Fatalf("send datagram: %v", err)
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("transport did not read injected line")
	}
	if !strings.Contains(out.String(), "got:hi") {
		t.Errorf("output %q missing injected line", out.String())
	}
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Errorf("socket %s not removed", socket)
	}
}

func TestListenerDeliversInOrder(t *testing.T) {
	socket := shortSocketPath(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []keys.Event
	l := NewListener(socket, func(ev keys.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	if err := l.Start(ctx); err != nil {
		t.Fatalf("start listener: %v", err)
	}

	want := []keys.Event{keys.Literal("a"), keys.Named("C-c"), keys.Pasted("x\ny")}
	for _, ev := range want {
		if err := sendDatagram(socket, ev.Encode()); err != nil {
			t.Fatalf("send datagram: %v", err)
		}
	}
	// invalid datagrams are dropped
	if err := sendDatagram(socket, []byte{0xff}); err != nil {
		t.Fatalf("send datagram: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	})
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestListenerRejectsOversizedPayload(t *testing.T) {
	socket := shortSocketPath(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	count := 0
	l := NewListener(socket, func(keys.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	l.MaxPayloadBytes = 64
	if err := l.Start(ctx); err != nil {
		t.Fatalf("start listener: %v", err)
	}

	if err := sendDatagram(socket, keys.Literal(strings.Repeat("a", 128)).Encode()); err != nil {
		t.Fatalf("send datagram: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("expected 0 events for oversized payload, got %d", count)
	}
}

func TestListenerRequiresPath(t *testing.T) {
	if err := NewListener("", func(keys.Event) {}).Start(context.Background()); err == nil {
		t.Fatal("expected error for empty socket path")
	}
	if err := NewListener(shortSocketPath(t), nil).Start(context.Background()); err == nil {
		t.Fatal("expected error for nil deliver func")
	}
}

func sendDatagram(socketPath string, payload []byte) error {
	addr, err := net.ResolveUnixAddr("unixgram", socketPath)
	if err != nil {
		return err
	}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(payload)
	return err
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func shortSocketPath(t *testing.T) string {
	t.Helper()
	base := filepath.Join(os.TempDir(), "tcssh-keys")
	if err := os.MkdirAll(base, 0o700); err != nil {
		t.Fatalf("mkdir temp base: %v", err)
	}
	p := filepath.Join(base, fmt.Sprintf("%d-%d.sock", time.Now().UnixNano(), os.Getpid()))
	t.Cleanup(func() {
		_ = os.Remove(p)
	})
	return p
}
