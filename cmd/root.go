package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/timvw/tcssh/internal/broadcast"
	"github.com/timvw/tcssh/internal/cluster"
	"github.com/timvw/tcssh/internal/config"
	"github.com/timvw/tcssh/internal/console"
	"github.com/timvw/tcssh/internal/diagnose"
	tcerrors "github.com/timvw/tcssh/internal/errors"
	"github.com/timvw/tcssh/internal/expand"
	"github.com/timvw/tcssh/internal/hostspec"
	"github.com/timvw/tcssh/internal/layout"
	"github.com/timvw/tcssh/internal/model"
	telem "github.com/timvw/tcssh/internal/otel"
	"github.com/timvw/tcssh/internal/session"
	"github.com/timvw/tcssh/internal/surface"
	"github.com/timvw/tcssh/internal/transport"
)

var (
	// Global flags.
	flagConfigFile   string
	flagClusterFiles string
	flagTagFiles     string
	flagTransport    string
	flagDebug        bool

	flagUseAllA    bool
	flagEvaluate   string
	flagSurface    string
	flagPort       string
	flagUser       string
	flagOptions    string
	flagAutoClose  int
	flagAction     string
	flagTitle      string
	flagDumpConfig bool
)

var rootCmd = &cobra.Command{
	Use:   "tcssh [flags] [host|cluster|tag ...]",
	Short: "Cluster SSH: type into many remote sessions at once",
	Long: `tcssh opens one terminal session per host and broadcasts every key typed
into its console to all of them.

Names are resolved through the clusters and tags files found in
$TCSSH_CONFIG_DIR, ~/.tcssh, ~/.clusterssh or /etc. A name that is not a
cluster or tag is used as a host ([user@]host[:port]). With no names the
"default" tag is opened.

Invoked as tcmosh, cmosh or clustermosh, sessions use mosh instead of ssh.`,
	Version:       Version,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(cmd, args)
	},
}

// Execute runs the root command. Only fatal resolution errors and invalid
// invocations produce a non-zero exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tcssh: %v\n", err)
		os.Exit(tcerrors.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config-file", "C", "", "settings file (default: .tcssh.yaml or <config dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagClusterFiles, "cluster-file", "c", "", "comma-separated extra cluster definition files")
	rootCmd.PersistentFlags().StringVarP(&flagTagFiles, "tag-file", "r", "", "comma-separated extra tag definition files")
	rootCmd.PersistentFlags().StringVar(&flagTransport, "transport", "", "force the transport: ssh, mosh (default: from program name)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "debug logging")
	_ = rootCmd.PersistentFlags().MarkHidden("transport")

	rootCmd.Flags().BoolVarP(&flagUseAllA, "use-all-a-records", "A", false, "open one session per address each host name resolves to")
	rootCmd.Flags().StringVarP(&flagEvaluate, "evaluate", "e", "", "test the terminal and transport against one [user@]host[:port] and exit")
	rootCmd.Flags().StringVar(&flagSurface, "surface", "", "where sessions open: auto, tmux, terminal")
	rootCmd.Flags().StringVarP(&flagPort, "port", "p", "", "default port for hosts without one")
	rootCmd.Flags().StringVarP(&flagUser, "user", "l", "", "default user for hosts without one")
	rootCmd.Flags().StringVarP(&flagOptions, "options", "o", "", "transport arguments, replacing the configured ones")
	rootCmd.Flags().IntVarP(&flagAutoClose, "autoclose", "K", 0, "seconds a window stays open after its session ends (0: wait for RETURN)")
	rootCmd.Flags().StringVarP(&flagAction, "action", "a", "", "command to run on every host instead of a login shell")
	rootCmd.Flags().StringVarP(&flagTitle, "title", "T", "tcssh", "window title prefix")
	rootCmd.Flags().BoolVarP(&flagDumpConfig, "dump-config", "d", false, "print the effective settings as YAML and exit")
}

// loadConfig loads settings and locates the definition files. Flags are
// applied last.
func loadConfig(cmd *cobra.Command) (*config.Config, config.Source, error) {
	env := config.OSEnv()
	located := config.Locate(env, nil, nil)

	cfg, err := config.Load(flagConfigFile, located.Dir)
	if err != nil {
		return nil, config.Source{}, fmt.Errorf("config: %w", err)
	}
	applyFlags(cmd, cfg)

	src := config.Locate(env,
		append(cfg.ExtraClusterFiles, config.SplitList(flagClusterFiles)...),
		append(cfg.ExtraTagFiles, config.SplitList(flagTagFiles)...))
	return cfg, src, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("surface") {
		cfg.Surface = flagSurface
	}
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	if flags.Changed("user") {
		cfg.User = flagUser
	}
	if flags.Changed("autoclose") {
		cfg.AutoClose = flagAutoClose
	}
	if flags.Changed("action") {
		cfg.Command = flagAction
	}
	if flagUseAllA {
		cfg.UseAllARecords = true
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "tcssh"})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown log level, using info", "level", level)
	}
	return logger
}

// selectTransport honours --transport, otherwise the name tcssh was
// invoked as.
func selectTransport() (model.Transport, error) {
	if flagTransport != "" {
		return transport.Parse(flagTransport)
	}
	return transport.FromInvocation(os.Args[0]), nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, src, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if flagDumpConfig {
		out, err := cfg.Dump()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	logger := newLogger(cfg.LogLevel)
	if cfg.ConfigFile != "" {
		logger.Debug("config loaded", "file", cfg.ConfigFile)
	}

	kind, err := selectTransport()
	if err != nil {
		return err
	}
	tcmd := transport.FromConfig(kind, cfg, flagOptions)

	if flagEvaluate != "" {
		return runEvaluate(ctx, cfg, tcmd, logger)
	}

	runID := uuid.NewString()

	telem.Version = Version
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
		RunID:    runID,
	})
	if err != nil {
		logger.Warn("otel init failed", "error", err)
		tel = telem.Noop()
	}
	defer tel.Shutdown(context.Background())

	table, err := cluster.Load(src)
	if err != nil {
		return err
	}
	resolver := cluster.NewResolver(table, src.Found(), src.Searched)

	names, err := requestedNames(args, table, src)
	if err != nil {
		return err
	}

	surf, err := surface.FromName(cfg.Surface, surface.Options{
		RunID:        runID,
		Terminal:     cfg.Terminal,
		TerminalArgs: config.SplitArgs(cfg.TerminalArgs),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	orch := session.New(surf, tcmd,
		session.WithRemoteCommand(cfg.Command),
		session.WithGeometry(layout.FromConfig(cfg)),
		session.WithAutoClose(cfg.AutoClose),
		session.WithTitle(flagTitle),
		session.WithLogger(logger),
		session.WithTelemetry(tel),
	)

	p := &pipeline{
		resolver:  resolver,
		external:  cluster.NewExternal(cfg.ExternalClusterCommand),
		expander:  expand.New(nil, expand.WithLogger(logger), expand.WithTelemetry(tel)),
		orch:      orch,
		transport: kind,
		addresses: cfg.UseAllARecords,
		user:      cfg.User,
		port:      cfg.Port,
		logger:    logger,
		tel:       tel,
	}

	logger.Debug("starting", "run", runID, "surface", surf.Name(), "transport", kind, "names", names)
	_, warnings, err := p.launch(ctx, names)
	if err != nil {
		return err
	}

	if w, ok := surf.(surface.Watcher); ok {
		go w.Watch(ctx)
	}

	c := &console.Console{
		Orchestrator: orch,
		Broadcaster:  broadcast.New(orch, surf, broadcast.WithLogger(logger), broadcast.WithTelemetry(tel)),
		Add:          p.launch,
		Warnings:     warnings,
		Theme:        console.ThemeByName(cfg.Theme),
		Title:        flagTitle,
	}
	if err := c.Run(ctx); err != nil {
		logger.Warn("console exited", "error", err)
	}
	return nil
}

// requestedNames returns args, or the "default" name when none are given.
func requestedNames(args []string, table *cluster.Table, src config.Source) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if table.Has("default") {
		return []string{"default"}, nil
	}
	if !src.Found() {
		return nil, tcerrors.MissingConfig("default", src.Searched)
	}
	return nil, fmt.Errorf("no hosts given and no \"default\" cluster or tag defined")
}

func runEvaluate(ctx context.Context, cfg *config.Config, tcmd transport.Command, logger *log.Logger) error {
	h, ok := hostspec.Parse(flagEvaluate)
	if !ok {
		// a bad flag value is a usage error, not a per-host warning
		return fmt.Errorf("--evaluate: %v", tcerrors.InvalidHost(flagEvaluate))
	}
	if h.User == "" {
		h.User = cfg.User
	}
	if h.Port == "" {
		h.Port = cfg.Port
	}

	terminal := cfg.Terminal
	if cfg.Surface == "tmux" || (cfg.Surface == "auto" && os.Getenv("TMUX") != "") {
		terminal = ""
	}
	diagnose.Evaluate(ctx, diagnose.Options{
		Target:       model.TargetFromHost(h, tcmd.Kind),
		Transport:    tcmd,
		Terminal:     terminal,
		TerminalArgs: config.SplitArgs(cfg.TerminalArgs),
		Stdio:        diagnose.Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr},
		Logger:       logger,
	})
	return nil
}
