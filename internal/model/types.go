package model

import (
	"fmt"
	"strings"

	"github.com/timvw/tcssh/internal/hostspec"
)

// Transport names the executable family used to open a remote session.
type Transport string

const (
	TransportSSH  Transport = "ssh"
	TransportMosh Transport = "mosh"
)

// LaunchTarget is one concrete connection derived from a HostSpec. Address
// expansion may produce several targets from one host.
type LaunchTarget struct {
	// Address is the host name or literal address to connect to.
	Address string `json:"address"`
	// User is the login user; empty means the transport default.
	User string `json:"user,omitempty"`
	// Port is the remote port; empty means the transport default.
	Port string `json:"port,omitempty"`
	// Transport selects ssh or mosh.
	Transport Transport `json:"transport"`
	// Origin is the host name the target was derived from. It equals
	// Address unless address expansion replaced the name.
	Origin string `json:"origin"`
}

// TargetFromHost returns the pass-through target for h.
func TargetFromHost(h hostspec.HostSpec, transport Transport) LaunchTarget {
	return LaunchTarget{
		Address:   h.Host,
		User:      h.User,
		Port:      h.Port,
		Transport: transport,
		Origin:    h.Host,
	}
}

// HostSpec returns the target as a host spec (user@address:port).
func (t LaunchTarget) HostSpec() hostspec.HostSpec {
	return hostspec.HostSpec{User: t.User, Host: t.Address, Port: t.Port}
}

// String renders the target as user@address:port.
func (t LaunchTarget) String() string {
	return t.HostSpec().String()
}

// State is a session's lifecycle state.
type State int

const (
	StateLaunching State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLaunching:
		return "launching"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pane represents a tmux pane hosting one session.
type Pane struct {
	// ID is the tmux pane id (e.g., "%12"). Stable for the pane's lifetime.
	ID string `json:"id"`
	// Target is the pane address (e.g., "tcssh-1a2b:0.3").
	Target string `json:"target"`
	// Session is the tmux session name.
	Session string `json:"session"`
	// Window is the window index.
	Window int `json:"window"`
	// Pane is the pane index.
	Pane int `json:"pane"`
	// PID is the pane's process ID.
	PID int `json:"pid"`
	// Dead is true when the pane's process has exited but the pane remains.
	Dead bool `json:"dead"`
}

// Title builds a window title for a session, e.g. "tcssh: root@web1".
func Title(prefix string, target LaunchTarget) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteString(": ")
	}
	b.WriteString(target.String())
	return b.String()
}
