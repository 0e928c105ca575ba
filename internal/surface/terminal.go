package surface

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/timvw/tcssh/internal/keys"
)

// Terminal opens every session in its own terminal emulator window. The
// window runs "tcssh helper", which owns the transport's pty and accepts key
// events on a unix datagram socket.
type Terminal struct {
	program   string
	args      []string
	helper    string
	socketDir string
	logger    *log.Logger

	mu      sync.Mutex
	next    int
	windows map[Handle]*window

	closed callbacks
}

type window struct {
	cmd    *exec.Cmd
	socket string
}

// NewTerminal creates a terminal surface. The helper defaults to the
// running executable.
func NewTerminal(opts Options) (*Terminal, error) {
	helper := opts.Helper
	if helper == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate tcssh executable: %w", err)
		}
		helper = exe
	}
	program := opts.Terminal
	if program == "" {
		program = "xterm"
	}
	dir := opts.SocketDir
	if dir == "" {
		dir = SocketDir(opts.RunID)
	}
	return &Terminal{
		program:   program,
		args:      opts.TerminalArgs,
		helper:    helper,
		socketDir: dir,
		logger:    opts.logger(),
		windows:   map[Handle]*window{},
	}, nil
}

// Name returns "terminal".
func (t *Terminal) Name() string {
	return "terminal"
}

// Open starts a terminal window at req.Cell running the helper around
// req.Argv. Missing transport or terminal executables fail here rather than
// in a window that flashes and disappears.
func (t *Terminal) Open(ctx context.Context, req OpenRequest) (Handle, error) {
	if len(req.Argv) == 0 {
		return "", fmt.Errorf("empty command for %s", req.Target)
	}
	if _, err := exec.LookPath(req.Argv[0]); err != nil {
		return "", err
	}
	if _, err := exec.LookPath(t.program); err != nil {
		return "", err
	}
	if err := os.MkdirAll(t.socketDir, 0o700); err != nil {
		return "", fmt.Errorf("create socket dir %s: %w", t.socketDir, err)
	}

	t.mu.Lock()
	t.next++
	n := t.next
	t.mu.Unlock()

	h := Handle("term-" + strconv.Itoa(n))
	socket := filepath.Join(t.socketDir, strconv.Itoa(n)+".sock")

	argv := append([]string{}, t.args...)
	if req.Title != "" {
		argv = append(argv, "-T", req.Title)
	}
	if req.Geometry.Cols > 0 {
		argv = append(argv, "-geometry", req.Cell.XGeometry(req.Geometry))
	}
	argv = append(argv, "-e", t.helper, "helper",
		"--socket", socket,
		"--auto-close", strconv.Itoa(req.AutoClose),
		"--")
	argv = append(argv, req.Argv...)

	// the window outlives ctx; it is closed through Close
	cmd := exec.Command(t.program, argv...)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", t.program, err)
	}

	t.mu.Lock()
	t.windows[h] = &window{cmd: cmd, socket: socket}
	t.mu.Unlock()

	go t.wait(h, cmd, socket)
	return h, nil
}

func (t *Terminal) wait(h Handle, cmd *exec.Cmd, socket string) {
	if err := cmd.Wait(); err != nil {
		t.logger.Debug("terminal exited", "handle", h, "error", err)
	}
	t.mu.Lock()
	delete(t.windows, h)
	t.mu.Unlock()
	_ = os.Remove(socket)
	t.closed.fire(h)
}

// Close terminates the window's emulator process.
func (t *Terminal) Close(h Handle) error {
	t.mu.Lock()
	w, ok := t.windows[h]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown window %s", h)
	}
	return w.cmd.Process.Signal(syscall.SIGTERM)
}

// InjectKey writes ev to the window's key socket, one datagram per chunk
// in order. A pty has no key-up, so releases are dropped.
func (t *Terminal) InjectKey(h Handle, ev keys.Event) error {
	if ev.Phase == keys.Release {
		return nil
	}
	t.mu.Lock()
	w, ok := t.windows[h]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown window %s", h)
	}
	for _, chunk := range ev.Chunks() {
		if err := sendDatagram(w.socket, chunk.Encode()); err != nil {
			return err
		}
	}
	return nil
}

// OnClosed registers fn for window exit notifications.
func (t *Terminal) OnClosed(fn func(Handle)) {
	t.closed.add(fn)
}

// SocketDir returns the per-run directory for helper key sockets. Paths are
// kept short because unix socket paths are limited to about 100 bytes.
func SocketDir(runID string) string {
	if runID == "" {
		runID = strconv.Itoa(os.Getpid())
	}
	return filepath.Join(os.TempDir(), "tcssh-"+shortID(runID))
}

func sendDatagram(socketPath string, payload []byte) error {
	if len(payload) >= keys.MaxDatagram {
		return fmt.Errorf("key datagram of %d bytes exceeds %d", len(payload), keys.MaxDatagram-1)
	}
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
