package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timvw/tcssh/internal/config"
	"github.com/timvw/tcssh/internal/model"
)

func TestFromInvocation(t *testing.T) {
	tests := []struct {
		arg0 string
		want model.Transport
	}{
		{"tcssh", model.TransportSSH},
		{"/usr/local/bin/cssh", model.TransportSSH},
		{"clusterssh", model.TransportSSH},
		{"cmosh", model.TransportMosh},
		{"/opt/bin/tcmosh", model.TransportMosh},
		{"clustermosh", model.TransportMosh},
		{"something-else", model.TransportSSH},
		{"", model.TransportSSH},
	}
	for _, tt := range tests {
		t.Run(tt.arg0, func(t *testing.T) {
			assert.Equal(t, tt.want, FromInvocation(tt.arg0))
		})
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("mosh")
	require.NoError(t, err)
	assert.Equal(t, model.TransportMosh, got)

	_, err = Parse("telnet")
	assert.Error(t, err)
}

func TestArgvSSH(t *testing.T) {
	cfg := config.Defaults()
	cfg.SSHArgs = "-o ConnectTimeout=5"
	cmd := FromConfig(model.TransportSSH, cfg, "")

	target := model.LaunchTarget{Address: "10.0.0.1", User: "root", Port: "2222", Transport: model.TransportSSH}
	assert.Equal(t,
		[]string{"ssh", "-o", "ConnectTimeout=5", "-l", "root", "-p", "2222", "10.0.0.1"},
		cmd.Argv(target, ""))

	assert.Equal(t,
		[]string{"ssh", "-o", "ConnectTimeout=5", "web1", "uptime"},
		cmd.Argv(model.LaunchTarget{Address: "web1"}, "uptime"))
}

func TestArgvMosh(t *testing.T) {
	cmd := FromConfig(model.TransportMosh, config.Defaults(), "")
	target := model.LaunchTarget{Address: "web1", User: "deploy", Port: "2200"}
	assert.Equal(t,
		[]string{"mosh", "--ssh=ssh -p 2200", "deploy@web1", "--", "sh", "-c", "tail -f log"},
		cmd.Argv(target, "tail -f log"))
	assert.Equal(t, []string{"mosh", "web1"}, cmd.Argv(model.LaunchTarget{Address: "web1"}, ""))
}

func TestOptionsReplaceConfiguredArgs(t *testing.T) {
	cfg := config.Defaults()
	cfg.SSHArgs = "-A"
	cmd := FromConfig(model.TransportSSH, cfg, "-4 -C")
	assert.Equal(t, []string{"-4", "-C"}, cmd.Args)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "ssh -l root web1", ShellQuote([]string{"ssh", "-l", "root", "web1"}))
	assert.Equal(t, `ssh web1 'echo it'\''s here'`, ShellQuote([]string{"ssh", "web1", "echo it's here"}))
	assert.Equal(t, "a ''", ShellQuote([]string{"a", ""}))
}
