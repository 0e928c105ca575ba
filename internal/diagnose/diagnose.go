// Package diagnose runs the --evaluate checks: the terminal alone, the
// transport alone, then the transport inside the terminal, each attached
// to the operator's terminal so errors stay visible.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"

	"github.com/timvw/tcssh/internal/model"
	"github.com/timvw/tcssh/internal/transport"
)

// Probe runs on the remote host to prove the connection works.
const Probe = "hostname; echo Got hostname via ssh; sleep 2"

const terminalProbe = `echo "Base terminal test"; sleep 2`

// Runner runs argv to completion with the given stdio and returns its exit
// status.
type Runner func(ctx context.Context, stdio Stdio, argv []string) (int, error)

// Stdio is the streams a stage is attached to.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Options configures Evaluate.
type Options struct {
	Target    model.LaunchTarget
	Transport transport.Command

	// Terminal is the emulator to test. Empty skips the terminal stages.
	Terminal     string
	TerminalArgs []string

	Stdio  Stdio
	Run    Runner
	Logger *log.Logger
}

// Result is one stage's outcome.
type Result struct {
	Stage    string
	Argv     []string
	ExitCode int
	Err      error
}

// Evaluate runs the stages in order and stops at the first one that
// cannot be started. Exit statuses are reported, never turned into errors.
func Evaluate(ctx context.Context, opts Options) []Result {
	if opts.Run == nil {
		opts.Run = ExecRunner
	}
	if opts.Stdio.Stderr == nil {
		opts.Stdio.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	comms := opts.Transport.Argv(opts.Target, Probe)

	type stage struct {
		name string
		argv []string
	}
	var stages []stage
	if opts.Terminal != "" {
		stages = append(stages, stage{"terminal", opts.terminal([]string{"sh", "-c", terminalProbe})})
	}
	stages = append(stages, stage{"comms", comms})
	if opts.Terminal != "" {
		stages = append(stages, stage{"terminal comms", opts.terminal(comms)})
	}

	var results []Result
	for _, s := range stages {
		fmt.Fprintf(opts.Stdio.Stderr, "\nTesting %s - running command:\n%s\n", s.name, transport.ShellQuote(s.argv))
		code, err := opts.Run(ctx, opts.Stdio, s.argv)
		r := Result{Stage: s.name, Argv: s.argv, ExitCode: code, Err: err}
		results = append(results, r)
		if err != nil {
			fmt.Fprintf(opts.Stdio.Stderr, "Failed to run %s: %v\n", s.name, err)
			opts.Logger.Warn("evaluate stage failed", "stage", s.name, "error", err)
			break
		}
		fmt.Fprintf(opts.Stdio.Stderr, "%s exited with status %d\n", s.name, code)
	}
	return results
}

func (o Options) terminal(inner []string) []string {
	argv := append([]string{o.Terminal}, o.TerminalArgs...)
	argv = append(argv, "-e")
	return append(argv, inner...)
}

// ExecRunner runs argv as a child process.
func ExecRunner(ctx context.Context, stdio Stdio, argv []string) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdio.Stdin
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
