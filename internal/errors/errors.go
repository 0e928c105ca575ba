// Package errors classifies tcssh failures into fatal resolver errors and
// per-host warnings.
//
// Fatal errors (MissingConfig, CyclicReference) originate only in name
// resolution and stop the run before anything is launched. Everything else is
// attributable to a single host or target and is reported as a Warning while
// the remaining work carries on.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the category of a failure.
type Kind string

const (
	// KindMissingConfig: no config location exists and a requested name is not a literal host.
	KindMissingConfig Kind = "missing_config"
	// KindCyclicReference: a cluster/tag refers back to itself.
	KindCyclicReference Kind = "cyclic_reference"
	// KindUnresolvedHost: an address lookup failed for one host.
	KindUnresolvedHost Kind = "unresolved_host"
	// KindSpawnFailed: a session could not be started for one target.
	KindSpawnFailed Kind = "spawn_failed"
	// KindInvalidHost: a literal token does not parse as a host spec.
	KindInvalidHost Kind = "invalid_host"
	// KindExternalCommand: the external cluster command failed.
	KindExternalCommand Kind = "external_command"
)

// Error is a classified failure with the name/host/target it concerns.
type Error struct {
	Kind    Kind
	Subject string
	Message string
	Cause   error
	// Cycle holds the offending reference chain for KindCyclicReference,
	// starting and ending with the same name.
	Cycle []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Subject != "" {
		b.WriteString(" ")
		b.WriteString(e.Subject)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Fatal reports whether the failure must abort the run.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case KindMissingConfig, KindCyclicReference:
		return true
	default:
		return false
	}
}

// MissingConfig creates a fatal error for a name that needs definitions
// when no config location could be found.
func MissingConfig(name string, searched []string) *Error {
	msg := "no cluster/tag configuration found and name is not a literal host"
	if len(searched) > 0 {
		msg += fmt.Sprintf(" (searched %s)", strings.Join(searched, ", "))
	}
	return &Error{Kind: KindMissingConfig, Subject: name, Message: msg}
}

// CyclicReference creates a fatal error naming the reference cycle.
func CyclicReference(cycle []string) *Error {
	c := append([]string(nil), cycle...)
	subject := ""
	if len(c) > 0 {
		subject = c[0]
	}
	return &Error{
		Kind:    KindCyclicReference,
		Subject: subject,
		Message: strings.Join(c, " -> "),
		Cycle:   c,
	}
}

// UnresolvedHost creates a per-host lookup failure.
func UnresolvedHost(host string, cause error) *Error {
	return &Error{Kind: KindUnresolvedHost, Subject: host, Message: "address lookup failed", Cause: cause}
}

// SpawnFailed creates a per-target launch failure.
func SpawnFailed(target string, cause error) *Error {
	return &Error{Kind: KindSpawnFailed, Subject: target, Message: "could not start session", Cause: cause}
}

// InvalidHost creates a per-token parse failure.
func InvalidHost(token string) *Error {
	return &Error{Kind: KindInvalidHost, Subject: token, Message: "not a valid host spec"}
}

// ExternalCommand creates a warning for a failed external cluster command.
func ExternalCommand(command string, cause error) *Error {
	return &Error{Kind: KindExternalCommand, Subject: command, Message: "external cluster command failed", Cause: cause}
}

// IsFatal reports whether err (or anything it wraps) is a fatal classified error.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal()
	}
	return false
}

// IsKind reports whether err wraps a classified error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ExitCode maps a run error to the process exit code. Only fatal errors and
// unclassified errors (bad flags, unreadable files) are non-zero.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) && !e.Fatal() {
		return 0
	}
	return 1
}

// Warning is a non-fatal failure attributable to one host or target.
type Warning struct {
	Err *Error
}

// Warn wraps a classified error as a warning.
func Warn(err *Error) Warning {
	return Warning{Err: err}
}

// Kind returns the warning category.
func (w Warning) Kind() Kind {
	if w.Err == nil {
		return ""
	}
	return w.Err.Kind
}

// Subject returns the host or target the warning concerns.
func (w Warning) Subject() string {
	if w.Err == nil {
		return ""
	}
	return w.Err.Subject
}

func (w Warning) String() string {
	if w.Err == nil {
		return ""
	}
	return w.Err.Error()
}
