// Package config loads tcssh settings from file and environment.
//
// Precedence (highest to lowest):
//  1. Command-line flags (applied by cmd)
//  2. Environment variables (TCSSH_*)
//  3. Config file
//  4. Built-in defaults
//
// Config file search order:
//  1. the path given with --config-file
//  2. .tcssh.yaml in current directory
//  3. config.yaml in the located config directory (see Locate)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all tcssh settings.
type Config struct {
	// Transports
	SSH      string `yaml:"ssh"`
	SSHArgs  string `yaml:"ssh_args"`
	Mosh     string `yaml:"mosh"`
	MoshArgs string `yaml:"mosh_args"`

	// Terminal windows
	Terminal         string `yaml:"terminal"`
	TerminalArgs     string `yaml:"terminal_args"`
	TerminalSize     string `yaml:"terminal_size"` // COLSxROWS, e.g. "80x24"
	FontWidth        int    `yaml:"font_width"`
	FontHeight       int    `yaml:"font_height"`
	DecorationWidth  int    `yaml:"decoration_width"`
	DecorationHeight int    `yaml:"decoration_height"`

	// Screen geometry used for window placement
	ScreenWidth         int `yaml:"screen_width"`
	ScreenHeight        int `yaml:"screen_height"`
	ScreenReserveTop    int `yaml:"screen_reserve_top"`
	ScreenReserveBottom int `yaml:"screen_reserve_bottom"`
	ScreenReserveLeft   int `yaml:"screen_reserve_left"`
	ScreenReserveRight  int `yaml:"screen_reserve_right"`

	// Sessions
	AutoClose      int    `yaml:"auto_close"` // seconds; 0 waits for RETURN
	Surface        string `yaml:"surface"`    // auto, tmux, terminal
	UseAllARecords bool   `yaml:"use_all_a_records"`
	User           string `yaml:"user"`
	Port           string `yaml:"port"`
	Command        string `yaml:"command"`

	// Definitions
	ExtraClusterFiles      []string `yaml:"extra_cluster_files"`
	ExtraTagFiles          []string `yaml:"extra_tag_files"`
	ExternalClusterCommand string   `yaml:"external_cluster_command"`

	LogLevel string `yaml:"log_level"`
	Theme    string `yaml:"theme"` // console color theme: "dark" or "light"

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed terminal size (not from YAML, set after loading)
	TerminalCols int `yaml:"-"`
	TerminalRows int `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		SSH:              "ssh",
		Mosh:             "mosh",
		Terminal:         "xterm",
		TerminalSize:     "80x24",
		FontWidth:        6,
		FontHeight:       13,
		DecorationWidth:  8,
		DecorationHeight: 35,
		ScreenWidth:      1920,
		ScreenHeight:     1080,
		AutoClose:        5,
		Surface:          "auto",
		LogLevel:         "info",
		Theme:            "dark",
		TerminalCols:     80,
		TerminalRows:     24,
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values. path may be empty, in
// which case the search order in the package doc applies; dir is the
// located config directory (may be empty).
func Load(path, dir string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := applyFile(cfg, path, data); err != nil {
			return nil, err
		}
	} else if found, data, err := findConfigFile(dir); err == nil {
		if err := applyFile(cfg, found, data); err != nil {
			return nil, err
		}
	}

	mergeEnv(cfg)

	if err := cfg.parseTerminalSize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string, data []byte) error {
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.ConfigFile = path
	mergeFile(cfg, &fileCfg)
	return nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile(dir string) (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".tcssh.yaml"); err == nil {
		return ".tcssh.yaml", data, nil
	}

	// 2. Located config dir
	if dir != "" {
		path := filepath.Join(dir, "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	setString(&cfg.SSH, file.SSH)
	setString(&cfg.SSHArgs, file.SSHArgs)
	setString(&cfg.Mosh, file.Mosh)
	setString(&cfg.MoshArgs, file.MoshArgs)
	setString(&cfg.Terminal, file.Terminal)
	setString(&cfg.TerminalArgs, file.TerminalArgs)
	setString(&cfg.TerminalSize, file.TerminalSize)
	setInt(&cfg.FontWidth, file.FontWidth)
	setInt(&cfg.FontHeight, file.FontHeight)
	setInt(&cfg.DecorationWidth, file.DecorationWidth)
	setInt(&cfg.DecorationHeight, file.DecorationHeight)
	setInt(&cfg.ScreenWidth, file.ScreenWidth)
	setInt(&cfg.ScreenHeight, file.ScreenHeight)
	setInt(&cfg.ScreenReserveTop, file.ScreenReserveTop)
	setInt(&cfg.ScreenReserveBottom, file.ScreenReserveBottom)
	setInt(&cfg.ScreenReserveLeft, file.ScreenReserveLeft)
	setInt(&cfg.ScreenReserveRight, file.ScreenReserveRight)
	setInt(&cfg.AutoClose, file.AutoClose)
	setString(&cfg.Surface, file.Surface)
	if file.UseAllARecords {
		cfg.UseAllARecords = true
	}
	setString(&cfg.User, file.User)
	setString(&cfg.Port, file.Port)
	setString(&cfg.Command, file.Command)
	if len(file.ExtraClusterFiles) > 0 {
		cfg.ExtraClusterFiles = file.ExtraClusterFiles
	}
	if len(file.ExtraTagFiles) > 0 {
		cfg.ExtraTagFiles = file.ExtraTagFiles
	}
	setString(&cfg.ExternalClusterCommand, file.ExternalClusterCommand)
	setString(&cfg.LogLevel, file.LogLevel)
	setString(&cfg.Theme, file.Theme)
	setString(&cfg.OTELEndpoint, file.OTELEndpoint)
	setString(&cfg.OTELHeaders, file.OTELHeaders)
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("TCSSH_SSH"); v != "" {
		cfg.SSH = v
	}
	if v := os.Getenv("TCSSH_SSH_ARGS"); v != "" {
		cfg.SSHArgs = v
	}
	if v := os.Getenv("TCSSH_MOSH"); v != "" {
		cfg.Mosh = v
	}
	if v := os.Getenv("TCSSH_MOSH_ARGS"); v != "" {
		cfg.MoshArgs = v
	}
	if v := os.Getenv("TCSSH_TERMINAL"); v != "" {
		cfg.Terminal = v
	}
	if v := os.Getenv("TCSSH_TERMINAL_ARGS"); v != "" {
		cfg.TerminalArgs = v
	}
	if v := os.Getenv("TCSSH_SURFACE"); v != "" {
		cfg.Surface = v
	}
	if v := os.Getenv("TCSSH_USE_ALL_A_RECORDS"); v == "true" || v == "1" {
		cfg.UseAllARecords = true
	}
	if v := os.Getenv("TCSSH_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("TCSSH_AUTO_CLOSE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AutoClose = n
		}
	}
	if v := os.Getenv("TCSSH_EXTERNAL_CLUSTER_COMMAND"); v != "" {
		cfg.ExternalClusterCommand = v
	}
	if v := os.Getenv("TCSSH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TCSSH_THEME"); v != "" {
		cfg.Theme = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

var terminalSizeRe = regexp.MustCompile(`^(\d+)x(\d+)$`)

func (c *Config) parseTerminalSize() error {
	cols, rows, err := ParseTerminalSize(c.TerminalSize)
	if err != nil {
		return err
	}
	c.TerminalCols, c.TerminalRows = cols, rows
	return nil
}

// ParseTerminalSize parses "COLSxROWS". Both values must be positive.
func ParseTerminalSize(s string) (cols, rows int, err error) {
	m := terminalSizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid terminal_size %q: want COLSxROWS", s)
	}
	cols, _ = strconv.Atoi(m[1])
	rows, _ = strconv.Atoi(m[2])
	if cols == 0 || rows == 0 {
		return 0, 0, fmt.Errorf("invalid terminal_size %q: zero dimension", s)
	}
	return cols, rows, nil
}

// SplitArgs splits a whitespace-separated argument string such as ssh_args.
func SplitArgs(s string) []string {
	return strings.Fields(s)
}

// SplitList splits a comma-separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Dump renders the effective settings as YAML.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
