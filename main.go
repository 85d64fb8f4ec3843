// Command syncmonitor watches a blockchain node's sync progress and serves
// it on a dashboard and a websocket stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"syncmonitor/core"
	"syncmonitor/core/validation"
	"syncmonitor/logging"
	"syncmonitor/shutdown"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return core.ExitCodeName(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type rootOptions struct {
	envFile    string
	configFile string
}

type runOptions struct {
	console       bool
	skipPreflight bool
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the result to an exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return core.ExitCodeSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
	return core.ExitCodeError
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &rootOptions{}
	run := &runOptions{}

	cmd := &cobra.Command{
		Use:   "syncmonitor",
		Short: "Monitor a blockchain node's sync progress",
		Long: `syncmonitor polls a node's REST API for block sync progress, speeds up
polling as the node nears the chain tip, and publishes every update on a web
dashboard and the /ws websocket stream.

Configuration comes from the environment (optionally a .env file) and an
optional YAML file named by --config or SYNCMON_CONFIG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvironment(root)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), run, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&root.envFile, "env-file", ".env", "dotenv file to load; a missing file is ignored")
	cmd.PersistentFlags().StringVar(&root.configFile, "config", "", "YAML config file (overrides SYNCMON_CONFIG)")
	addRunFlags(cmd, run)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor in the foreground (the default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), run, stdout, stderr)
		},
	}
	addRunFlags(runCmd, run)

	cmd.AddCommand(
		runCmd,
		newPreflightCommand(stdout),
		newServiceCommand(stdout),
		newVersionCommand(stdout),
	)
	return cmd
}

func addRunFlags(cmd *cobra.Command, run *runOptions) {
	cmd.Flags().BoolVar(&run.console, "console", false, "draw a progress bar on stderr")
	cmd.Flags().BoolVar(&run.skipPreflight, "skip-preflight", false, "start without the startup checks")
}

func loadEnvironment(root *rootOptions) error {
	if root.envFile != "" {
		if err := godotenv.Load(root.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &exitError{code: core.ExitCodeConfig, err: fmt.Errorf("load %s: %w", root.envFile, err)}
		}
	}
	if root.configFile != "" {
		if err := os.Setenv("SYNCMON_CONFIG", root.configFile); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig() (*core.Config, error) {
	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, &exitError{code: core.ExitCodeConfig, err: err}
	}
	return cfg, nil
}

func newLogger(cfg *core.Config) (*logging.Logger, error) {
	path := cfg.LogFile
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(cfg.DataDir, path)
	}
	opts := logging.Options{
		Development: cfg.DevMode,
		FilePath:    path,
		File:        logging.DefaultFileWriterConfig(),
	}
	if level, ok := logging.ParseLogLevel(cfg.LogLevel); ok {
		opts.Level = &level
	}
	logger, err := logging.NewLoggerWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return logger, nil
}

// runDaemon runs until a signal arrives, or under a service manager until
// it stops the service.
func runDaemon(ctx context.Context, opts *runOptions, stdout, stderr io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !opts.skipPreflight {
		res := validation.NewSuite(cfg).WithOutput(stdout).Run(ctx)
		if !res.Success {
			return &exitError{code: core.ExitCodeConfig, err: res.FirstError()}
		}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	logger.Info("configuration loaded",
		zap.String("version", core.GetVersionInfo()),
		zap.String("node", cfg.NodeAPIURL),
		zap.Duration("default_interval", cfg.DefaultPollInterval),
		zap.Duration("fast_interval", cfg.FastPollInterval),
		zap.Uint64("near_blocks", cfg.NearCompletionBlocks),
		zap.String("data_dir", cfg.DataDir),
		zap.Bool("dev_mode", cfg.DevMode))

	manager := shutdown.NewManager(logger)
	a, err := newApp(cfg, logger, manager)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		_ = logger.Sync()
		return err
	}
	if opts.console {
		a.console = stderr
	}

	if !service.Interactive() {
		return runService(a)
	}

	manager.Start()
	if err := a.run(); err != nil {
		return err
	}
	if code := manager.ExitCode(); code != core.ExitCodeSuccess {
		return &exitError{code: code}
	}
	return nil
}

func newPreflightCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check configuration, storage and node reachability, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res := validation.NewSuite(cfg).WithOutput(stdout).Run(cmd.Context())
			if !res.Success {
				return &exitError{code: core.ExitCodeConfig}
			}
			return nil
		},
	}
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "syncmonitor %s\n", core.GetVersionInfo())
		},
	}
}
