// Package helper runs inside each terminal window. It starts the transport
// under a pty, bridges the window's own keyboard to it, and types key
// events received from the console on a unix socket.
package helper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/jonboulle/clockwork"
	"golang.org/x/term"

	"github.com/timvw/tcssh/internal/keys"
)

// drainTimeout bounds how long output is read after the transport exits.
const drainTimeout = 2 * time.Second

// Options configures one helper run.
type Options struct {
	// Socket is where key events arrive. Empty disables injection.
	Socket string
	// AutoClose is the number of seconds to wait after the transport
	// exits; 0 waits for RETURN.
	AutoClose int
	// Argv is the transport command line.
	Argv []string

	Stdin  io.Reader
	Stdout io.Writer
	Clock  clockwork.Clock
	Logger *log.Logger
}

// Run executes opts.Argv under a pty until it exits, then holds the window
// open, and returns the transport's exit status.
func Run(ctx context.Context, opts Options) (int, error) {
	if len(opts.Argv) == 0 {
		return 0, fmt.Errorf("no command to run")
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	cmd := exec.Command(opts.Argv[0], opts.Argv[1:]...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 0, fmt.Errorf("start %s: %w", opts.Argv[0], err)
	}
	defer ptmx.Close()

	w := &ptyWriter{f: ptmx}

	if tty, ok := opts.Stdin.(*os.File); ok && term.IsTerminal(int(tty.Fd())) {
		restore, err := rawMode(tty, ptmx)
		if err != nil {
			opts.Logger.Debug("raw mode unavailable", "error", err)
		} else {
			defer restore()
		}
	}

	if opts.Socket != "" {
		l := NewListener(opts.Socket, func(ev keys.Event) {
			if b := ev.Bytes(); len(b) > 0 {
				_, _ = w.Write(b)
			}
		})
		if err := l.Start(ctx); err != nil {
			opts.Logger.Warn("key socket unavailable", "socket", opts.Socket, "error", err)
		} else {
			defer l.Close()
		}
	}

	in := readInput(opts.Stdin)
	done := make(chan struct{})
	go forward(in, w, done)

	copied := make(chan struct{})
	go func() {
		_, _ = io.Copy(opts.Stdout, ptmx)
		close(copied)
	}()

	code, err := exitStatus(cmd.Wait())
	close(done)
	select {
	case <-copied:
	case <-time.After(drainTimeout):
		opts.Logger.Debug("pty output still open after exit")
	}
	if err != nil {
		return code, err
	}

	hold(ctx, opts, in)
	return code, nil
}

// ptyWriter serializes writes from the keyboard and the key socket.
type ptyWriter struct {
	mu sync.Mutex
	f  *os.File
}

func (w *ptyWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Write(b)
}

// readInput reads r in the background. The channel closes at EOF.
func readInput(r io.Reader) <-chan []byte {
	ch := make(chan []byte)
	go func() {
		defer close(ch)
		buf := make([]byte, 1024)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				ch <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

func forward(in <-chan []byte, w io.Writer, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case b, ok := <-in:
			if !ok {
				return
			}
			_, _ = w.Write(b)
		}
	}
}

// hold keeps the window up after the transport exits so its last output
// can be read.
func hold(ctx context.Context, opts Options, in <-chan []byte) {
	if opts.AutoClose > 0 {
		fmt.Fprintf(opts.Stdout, "\r\nSleeping for %d seconds\r\n", opts.AutoClose)
		select {
		case <-ctx.Done():
		case <-opts.Clock.After(time.Duration(opts.AutoClose) * time.Second):
		}
		return
	}
	fmt.Fprint(opts.Stdout, "\r\nPress RETURN to continue\r\n")
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-in:
			if !ok || bytes.ContainsAny(b, "\r\n") {
				return
			}
		}
	}
}

// rawMode puts tty in raw mode and keeps the pty size in step with it. The
// returned func restores the terminal.
func rawMode(tty, ptmx *os.File) (func(), error) {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			_ = pty.InheritSize(tty, ptmx)
		}
	}()
	winch <- syscall.SIGWINCH

	state, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		signal.Stop(winch)
		close(winch)
		return nil, err
	}
	return func() {
		signal.Stop(winch)
		close(winch)
		_ = term.Restore(int(tty.Fd()), state)
	}, nil
}

func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
