package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/eyetrace/internal/buildinfo"
	"github.com/offlinefirst/eyetrace/pkg/config"
	"github.com/offlinefirst/eyetrace/pkg/logging"
)

// AppContext exposes lazily initialised configuration and logging facilities.
type AppContext struct {
	Config config.Config
	Logger *slog.Logger
}

// RootCommand owns the cobra command tree and the process streams it uses.
type RootCommand struct {
	cmd        *cobra.Command
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	appCtx     *AppContext
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand constructs the CLI with its subcommands and global flags.
func NewRootCommand() *RootCommand {
	rc := &RootCommand{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	root := &cobra.Command{
		Use:           "eyetrace",
		Short:         "Record eye tracker streams to delimited files",
		Long:          "eyetrace subscribes to gaze, fixation, head pose and eye position streams and writes every event to a delimited text file, or marks the gaze point on screen captures.",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rc.configPath, "config", "", "Path to config file (default: ./eyetrace.yaml if present)")
	root.PersistentFlags().StringVar(&rc.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&rc.logFormat, "log-format", "", "Override log output format (json, console)")

	root.AddCommand(
		newRunCommand(rc),
		newDoctorCommand(rc),
		newVersionCommand(rc),
	)
	rc.cmd = root
	return rc
}

// SetIO replaces the process streams, mainly for tests.
func (rc *RootCommand) SetIO(stdin io.Reader, stdout, stderr io.Writer) {
	rc.stdin = stdin
	rc.stdout = stdout
	rc.stderr = stderr
	rc.cmd.SetIn(stdin)
	rc.cmd.SetOut(stdout)
	rc.cmd.SetErr(stderr)
}

// Execute evaluates the supplied arguments and dispatches to a subcommand.
func (rc *RootCommand) Execute(args []string) error {
	rc.cmd.SetArgs(args)
	err := rc.cmd.Execute()
	if err != nil {
		fmt.Fprintf(rc.stderr, "error: %v\n", err)
	}
	return err
}

func (rc *RootCommand) ensureAppContext() (*AppContext, error) {
	if rc.appCtx != nil {
		return rc.appCtx, nil
	}

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return nil, err
	}

	if rc.logLevel != "" {
		lvl, err := config.NormalizeLogLevel(rc.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = lvl
	}
	if rc.logFormat != "" {
		format, err := config.NormalizeFormat(rc.logFormat)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Format = format
	}

	logger, err := logging.New(cfg.Logging, rc.stderr)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded", "source", cfg.Origin, "data_dir", cfg.Paths.DataDir, "provider", cfg.Source.Provider)

	rc.appCtx = &AppContext{Config: cfg, Logger: logger}
	return rc.appCtx, nil
}

func versionString() string {
	return fmt.Sprintf("%s (go%s/%s)", buildinfo.Version(), runtimeVersion(), runtimeGOOS())
}

// runtimeVersion is extracted for testability.
var runtimeVersion = func() string { return runtime.Version() }

// runtimeGOOS is extracted for testability.
var runtimeGOOS = func() string { return runtime.GOOS }
