package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFatalClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		fatal bool
	}{
		{"missing config", MissingConfig("web", nil), true},
		{"cycle", CyclicReference([]string{"a", "b", "a"}), true},
		{"unresolved", UnresolvedHost("db1", errors.New("nxdomain")), false},
		{"spawn", SpawnFailed("db1", errors.New("exec: not found")), false},
		{"invalid host", InvalidHost("user@"), false},
		{"external", ExternalCommand("/bin/ext", errors.New("exit 2")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, tt.err.Fatal())
			assert.Equal(t, tt.fatal, IsFatal(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestCyclicReferenceNamesCycle(t *testing.T) {
	err := CyclicReference([]string{"a", "b", "a"})
	assert.Equal(t, "a", err.Subject)
	assert.Equal(t, []string{"a", "b", "a"}, err.Cycle)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(CyclicReference([]string{"x", "x"})))
	assert.Equal(t, 1, ExitCode(fmt.Errorf("resolve: %w", MissingConfig("x", nil))))
	assert.Equal(t, 0, ExitCode(SpawnFailed("h", errors.New("boom"))))
	assert.Equal(t, 1, ExitCode(errors.New("unknown flag")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("no such host")
	err := UnresolvedHost("db1", cause)
	require.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, KindUnresolvedHost))
	assert.False(t, IsKind(err, KindSpawnFailed))
}

func TestWarning(t *testing.T) {
	w := Warn(SpawnFailed("web1", errors.New("boom")))
	assert.Equal(t, KindSpawnFailed, w.Kind())
	assert.Equal(t, "web1", w.Subject())
	assert.Contains(t, w.String(), "boom")

	var zero Warning
	assert.Equal(t, Kind(""), zero.Kind())
	assert.Empty(t, zero.String())
}
