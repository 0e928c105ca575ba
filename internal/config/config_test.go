package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var tcsshEnv = []string{
	"TCSSH_SSH", "TCSSH_SSH_ARGS", "TCSSH_MOSH", "TCSSH_MOSH_ARGS",
	"TCSSH_TERMINAL", "TCSSH_TERMINAL_ARGS", "TCSSH_SURFACE",
	"TCSSH_USE_ALL_A_RECORDS", "TCSSH_USER", "TCSSH_AUTO_CLOSE",
	"TCSSH_EXTERNAL_CLUSTER_COMMAND", "TCSSH_LOG_LEVEL", "TCSSH_THEME",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range tcsshEnv {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.SSH != "ssh" {
		t.Errorf("SSH: got %q, want %q", cfg.SSH, "ssh")
	}
	if cfg.Mosh != "mosh" {
		t.Errorf("Mosh: got %q, want %q", cfg.Mosh, "mosh")
	}
	if cfg.Terminal != "xterm" {
		t.Errorf("Terminal: got %q, want %q", cfg.Terminal, "xterm")
	}
	if cfg.TerminalCols != 80 || cfg.TerminalRows != 24 {
		t.Errorf("TerminalSize: got %dx%d, want 80x24", cfg.TerminalCols, cfg.TerminalRows)
	}
	if cfg.AutoClose != 5 {
		t.Errorf("AutoClose: got %d, want %d", cfg.AutoClose, 5)
	}
	if cfg.Surface != "auto" {
		t.Errorf("Surface: got %q, want %q", cfg.Surface, "auto")
	}
	if cfg.UseAllARecords {
		t.Errorf("UseAllARecords: got true, want false")
	}
}

func TestParseTerminalSize(t *testing.T) {
	tests := []struct {
		input   string
		cols    int
		rows    int
		wantErr bool
	}{
		{"80x24", 80, 24, false},
		{"132x50", 132, 50, false},
		{"80", 0, 0, true},
		{"0x24", 0, 0, true},
		{"axb", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cols, rows, err := ParseTerminalSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTerminalSize(%q): error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if cols != tt.cols || rows != tt.rows {
				t.Errorf("ParseTerminalSize(%q) = %dx%d, want %dx%d", tt.input, cols, rows, tt.cols, tt.rows)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a.clusters, ,b.clusters ")
	if len(got) != 2 || got[0] != "a.clusters" || got[1] != "b.clusters" {
		t.Errorf("SplitList: got %v", got)
	}
	if SplitList("") != nil {
		t.Errorf("SplitList(\"\"): want nil")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".tcssh.yaml")
	content := `ssh: /usr/local/bin/ssh
ssh_args: "-o ConnectTimeout=5"
terminal: urxvt
terminal_size: 100x30
auto_close: 0
surface: tmux
use_all_a_records: true
extra_cluster_files:
  - /srv/clusters
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(dir)

	clearEnv(t)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.SSH != "/usr/local/bin/ssh" {
		t.Errorf("SSH: got %q, want %q", cfg.SSH, "/usr/local/bin/ssh")
	}
	if cfg.SSHArgs != "-o ConnectTimeout=5" {
		t.Errorf("SSHArgs: got %q", cfg.SSHArgs)
	}
	if cfg.Terminal != "urxvt" {
		t.Errorf("Terminal: got %q, want %q", cfg.Terminal, "urxvt")
	}
	if cfg.TerminalCols != 100 || cfg.TerminalRows != 30 {
		t.Errorf("TerminalSize: got %dx%d, want 100x30", cfg.TerminalCols, cfg.TerminalRows)
	}
	// zero in the file cannot be told apart from unset, so the default stays
	if cfg.AutoClose != 5 {
		t.Errorf("AutoClose: got %d, want %d", cfg.AutoClose, 5)
	}
	if cfg.Surface != "tmux" {
		t.Errorf("Surface: got %q, want %q", cfg.Surface, "tmux")
	}
	if !cfg.UseAllARecords {
		t.Errorf("UseAllARecords: got false, want true")
	}
	if len(cfg.ExtraClusterFiles) != 1 || cfg.ExtraClusterFiles[0] != "/srv/clusters" {
		t.Errorf("ExtraClusterFiles: got %v", cfg.ExtraClusterFiles)
	}
	if cfg.ConfigFile != ".tcssh.yaml" {
		t.Errorf("ConfigFile: got %q", cfg.ConfigFile)
	}
}

func TestLoadFromConfigDir(t *testing.T) {
	cwd := t.TempDir()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("mosh: /opt/mosh\n"), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(cwd)

	clearEnv(t)

	cfg, err := Load("", dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Mosh != "/opt/mosh" {
		t.Errorf("Mosh: got %q, want %q", cfg.Mosh, "/opt/mosh")
	}
}

func TestLoadExplicitPathMissing(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	if err == nil {
		t.Fatal("Load() with missing explicit path: want error")
	}
}

func TestLoadInvalidTerminalSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("terminal_size: big\n"), 0644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)
	if _, err := Load(path, ""); err == nil {
		t.Fatal("Load() with bad terminal_size: want error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	content := `ssh: file-ssh
surface: terminal
user: fileuser
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	clearEnv(t)
	t.Setenv("TCSSH_SSH", "env-ssh")
	t.Setenv("TCSSH_SURFACE", "tmux")
	t.Setenv("TCSSH_AUTO_CLOSE", "12")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.SSH != "env-ssh" {
		t.Errorf("SSH: got %q, want %q (env should override file)", cfg.SSH, "env-ssh")
	}
	if cfg.Surface != "tmux" {
		t.Errorf("Surface: got %q, want %q (env should override file)", cfg.Surface, "tmux")
	}
	if cfg.User != "fileuser" {
		t.Errorf("User: got %q, want %q", cfg.User, "fileuser")
	}
	if cfg.AutoClose != 12 {
		t.Errorf("AutoClose: got %d, want %d", cfg.AutoClose, 12)
	}
}

func TestDump(t *testing.T) {
	out, err := Defaults().Dump()
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	s := string(out)
	for _, want := range []string{"ssh: ssh", "terminal: xterm", "terminal_size: 80x24"} {
		if !strings.Contains(s, want) {
			t.Errorf("Dump() missing %q in:\n%s", want, s)
		}
	}
	if strings.Contains(s, "terminalcols") || strings.Contains(s, "configfile") {
		t.Errorf("Dump() leaked derived fields:\n%s", s)
	}
}

type fakeFileInfo struct {
	os.FileInfo
	dir bool
}

func (f fakeFileInfo) IsDir() bool { return f.dir }

func fakeEnv(vars map[string]string, home string, dirs, files []string) Env {
	return Env{
		Getenv:  func(k string) string { return vars[k] },
		HomeDir: func() (string, error) { return home, nil },
		Stat: func(p string) (os.FileInfo, error) {
			for _, d := range dirs {
				if d == p {
					return fakeFileInfo{dir: true}, nil
				}
			}
			for _, f := range files {
				if f == p {
					return fakeFileInfo{}, nil
				}
			}
			return nil, os.ErrNotExist
		},
	}
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name     string
		vars     map[string]string
		dirs     []string
		files    []string
		wantDir  string
		clusters []string
		tags     []string
		found    bool
	}{
		{
			name:     "primary dir",
			dirs:     []string{"/home/u/.tcssh", "/home/u/.clusterssh"},
			files:    []string{"/home/u/.tcssh/clusters", "/home/u/.clusterssh/clusters"},
			wantDir:  "/home/u/.tcssh",
			clusters: []string{"/home/u/.tcssh/clusters"},
			found:    true,
		},
		{
			name:     "legacy dir",
			dirs:     []string{"/home/u/.clusterssh"},
			files:    []string{"/home/u/.clusterssh/clusters", "/home/u/.clusterssh/tags"},
			wantDir:  "/home/u/.clusterssh",
			clusters: []string{"/home/u/.clusterssh/clusters"},
			tags:     []string{"/home/u/.clusterssh/tags"},
			found:    true,
		},
		{
			name:    "env override",
			vars:    map[string]string{"TCSSH_CONFIG_DIR": "/cfg"},
			dirs:    []string{"/cfg", "/home/u/.tcssh"},
			files:   []string{"/cfg/tags"},
			wantDir: "/cfg",
			tags:    []string{"/cfg/tags"},
			found:   true,
		},
		{
			name:     "system fallback",
			files:    []string{SystemClusterFile},
			clusters: []string{SystemClusterFile},
			found:    true,
		},
		{
			name:  "nothing",
			found: false,
		},
		{
			name:    "empty primary dir still counts",
			dirs:    []string{"/home/u/.tcssh"},
			wantDir: "/home/u/.tcssh",
			found:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Locate(fakeEnv(tt.vars, "/home/u", tt.dirs, tt.files), nil, nil)
			if src.Dir != tt.wantDir {
				t.Errorf("Dir: got %q, want %q", src.Dir, tt.wantDir)
			}
			if strings.Join(src.ClusterFiles, ",") != strings.Join(tt.clusters, ",") {
				t.Errorf("ClusterFiles: got %v, want %v", src.ClusterFiles, tt.clusters)
			}
			if strings.Join(src.TagFiles, ",") != strings.Join(tt.tags, ",") {
				t.Errorf("TagFiles: got %v, want %v", src.TagFiles, tt.tags)
			}
			if src.Found() != tt.found {
				t.Errorf("Found: got %v, want %v", src.Found(), tt.found)
			}
		})
	}
}

func TestLocateExtraFiles(t *testing.T) {
	env := fakeEnv(nil, "/home/u", []string{"/home/u/.tcssh"},
		[]string{"/home/u/.tcssh/clusters", "/srv/more"})
	src := Locate(env, []string{"/srv/more", "/srv/missing"}, nil)
	want := "/home/u/.tcssh/clusters,/srv/more"
	if got := strings.Join(src.ClusterFiles, ","); got != want {
		t.Errorf("ClusterFiles: got %q, want %q", got, want)
	}
}
