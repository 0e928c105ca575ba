package helper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/timvw/tcssh/internal/keys"
)

const defaultMaxPayloadBytes = keys.MaxDatagram

// Listener receives key events as unix datagrams, one encoded event per
// datagram, and hands them to deliver in arrival order.
type Listener struct {
	path    string
	deliver func(keys.Event)

	MaxPayloadBytes int

	mu     sync.Mutex
	conn   *net.UnixConn
	closed bool
}

func NewListener(socketPath string, deliver func(keys.Event)) *Listener {
	return &Listener{
		path:            socketPath,
		deliver:         deliver,
		MaxPayloadBytes: defaultMaxPayloadBytes,
	}
}

func (l *Listener) SocketPath() string {
	return l.path
}

// Start binds the socket and reads until ctx is done or Close is called.
func (l *Listener) Start(ctx context.Context) error {
	if l.deliver == nil {
		return fmt.Errorf("deliver func is required")
	}
	if l.path == "" {
		return fmt.Errorf("socket path is required")
	}
	if l.MaxPayloadBytes <= 0 {
		l.MaxPayloadBytes = defaultMaxPayloadBytes
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unixgram", l.path)
	if err != nil {
		return fmt.Errorf("resolve unix addr: %w", err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return fmt.Errorf("listen unixgram: %w", err)
	}
	if err := os.Chmod(l.path, 0o600); err != nil {
		_ = conn.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	l.mu.Lock()
	l.conn = conn
	l.closed = false
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	go l.readLoop()

	return nil
}

func (l *Listener) readLoop() {
	buf := make([]byte, l.MaxPayloadBytes)
	for {
		l.mu.Lock()
		conn := l.conn
		l.mu.Unlock()
		if conn == nil {
			return
		}

		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			if l.isClosed() {
				return
			}
			continue
		}

		if n <= 0 || n >= l.MaxPayloadBytes {
			continue
		}

		ev, err := keys.Decode(buf[:n])
		if err != nil {
			continue
		}
		l.deliver(ev)
	}
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close stops reading and removes the socket file.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	_ = os.Remove(l.path)
}
