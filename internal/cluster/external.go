package cluster

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	tcerrors "github.com/timvw/tcssh/internal/errors"
	"github.com/timvw/tcssh/internal/hostspec"
)

// CommandRunner runs an executable and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// External filters resolved hosts through a user-supplied command. The
// command receives the hosts as arguments and prints the replacement list on
// a single space-separated line. On failure the input is returned unchanged
// together with a warning.
type External struct {
	Command string
	Run     CommandRunner
}

// NewExternal returns an External backed by os/exec. An empty command
// yields a pass-through filter.
func NewExternal(command string) *External {
	return &External{Command: command, Run: ExecRunner}
}

// Apply runs the command over hosts.
func (e *External) Apply(ctx context.Context, hosts []hostspec.HostSpec) ([]hostspec.HostSpec, []tcerrors.Warning) {
	if e == nil || e.Command == "" || len(hosts) == 0 {
		return hosts, nil
	}
	args := make([]string, len(hosts))
	for i, h := range hosts {
		args[i] = h.String()
	}
	out, err := e.Run(ctx, e.Command, args...)
	if err != nil {
		return hosts, []tcerrors.Warning{tcerrors.Warn(tcerrors.ExternalCommand(e.Command, err))}
	}

	var warnings []tcerrors.Warning
	seen := map[string]bool{}
	var result []hostspec.HostSpec
	for _, tok := range strings.Fields(string(out)) {
		h, ok := hostspec.Parse(tok)
		if !ok {
			warnings = append(warnings, tcerrors.Warn(tcerrors.InvalidHost(tok)))
			continue
		}
		if seen[h.String()] {
			continue
		}
		seen[h.String()] = true
		result = append(result, h)
	}
	return result, warnings
}

// Names asks the command for the names it can resolve (invoked with -L).
func (e *External) Names(ctx context.Context) ([]string, error) {
	if e == nil || e.Command == "" {
		return nil, nil
	}
	out, err := e.Run(ctx, e.Command, "-L")
	if err != nil {
		return nil, tcerrors.ExternalCommand(e.Command, err)
	}
	return strings.Fields(string(out)), nil
}
