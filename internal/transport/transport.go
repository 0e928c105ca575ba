// Package transport builds the command lines that open a remote session with
// ssh or mosh.
package transport

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/timvw/tcssh/internal/config"
	"github.com/timvw/tcssh/internal/model"
)

// FromInvocation maps the program's presented name to a transport:
// cmosh/tcmosh/clustermosh/tclustermosh select mosh, everything else ssh.
func FromInvocation(arg0 string) model.Transport {
	switch filepath.Base(arg0) {
	case "cmosh", "tcmosh", "clustermosh", "tclustermosh":
		return model.TransportMosh
	default:
		return model.TransportSSH
	}
}

// Parse validates a transport name.
func Parse(name string) (model.Transport, error) {
	switch model.Transport(name) {
	case model.TransportSSH, model.TransportMosh:
		return model.Transport(name), nil
	default:
		return "", fmt.Errorf("unknown transport %q (supported: ssh, mosh)", name)
	}
}

// Command is an executable plus fixed arguments for one transport.
type Command struct {
	Kind    model.Transport
	Program string
	Args    []string
}

// FromConfig returns the Command for kind using the configured executable
// and extra arguments. extra (from --options) replaces the configured args
// when non-empty.
func FromConfig(kind model.Transport, cfg *config.Config, extra string) Command {
	c := Command{Kind: kind}
	switch kind {
	case model.TransportMosh:
		c.Program = cfg.Mosh
		c.Args = config.SplitArgs(cfg.MoshArgs)
	default:
		c.Kind = model.TransportSSH
		c.Program = cfg.SSH
		c.Args = config.SplitArgs(cfg.SSHArgs)
	}
	if extra != "" {
		c.Args = config.SplitArgs(extra)
	}
	return c
}

// Argv returns the full command line that connects to target and, when
// remote is non-empty, runs it there.
//
//	ssh  [args] [-l user] [-p port] address [remote]
//	mosh [args] [--ssh="ssh -p port"] [user@]address [-- remote]
func (c Command) Argv(target model.LaunchTarget, remote string) []string {
	argv := append([]string{c.Program}, c.Args...)
	switch c.Kind {
	case model.TransportMosh:
		if target.Port != "" {
			argv = append(argv, "--ssh=ssh -p "+target.Port)
		}
		dest := target.Address
		if target.User != "" {
			dest = target.User + "@" + dest
		}
		argv = append(argv, dest)
		if remote != "" {
			argv = append(argv, "--", "sh", "-c", remote)
		}
	default:
		if target.User != "" {
			argv = append(argv, "-l", target.User)
		}
		if target.Port != "" {
			argv = append(argv, "-p", target.Port)
		}
		argv = append(argv, target.Address)
		if remote != "" {
			argv = append(argv, remote)
		}
	}
	return argv
}

// ShellQuote renders argv as a single sh-safe string, for display and for
// surfaces that take a shell command.
func ShellQuote(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = quote(a)
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("@%+=:,./_-", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
