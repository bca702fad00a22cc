package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/eyetrace/pkg/capture"
	"github.com/offlinefirst/eyetrace/pkg/permissions"
	"github.com/offlinefirst/eyetrace/pkg/screenshots"
)

func newDoctorCommand(rc *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report source, screen capture and terminal readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			stdinFD := -1
			if f, ok := rc.stdin.(*os.File); ok {
				stdinFD = int(f.Fd())
			}
			return runDoctor(app, stdinFD, rc.stdout)
		},
	}
}

func runDoctor(app *AppContext, stdinFD int, stdout io.Writer) error {
	cfg := app.Config
	fmt.Fprintf(stdout, "eyetrace %s\n", versionString())
	fmt.Fprintf(stdout, "Config: %s\n", cfg.Origin)

	dataDir, err := filepath.Abs(cfg.Paths.DataDir)
	if err != nil {
		dataDir = cfg.Paths.DataDir
	}
	fmt.Fprintf(stdout, "Data directory: %s (%s)\n", dataDir, dataDirState(cfg.Paths.DataDir))

	env := capture.SourceEnvironment(cfg)
	fmt.Fprintf(stdout, "Source: provider=%s available=%t", env.Provider, env.Available)
	if env.Target != "" {
		fmt.Fprintf(stdout, " target=%s", env.Target)
	}
	fmt.Fprintf(stdout, " (%s)\n", env.Message)

	screen := screenshots.DetectEnvironment()
	fmt.Fprintf(stdout, "Screen capture: provider=%s available=%t permission=%s (%s)\n", screen.Provider, screen.Available, screen.Permission, screen.Message)
	if screen.Guidance != "" {
		fmt.Fprintf(stdout, "  guidance: %s\n", screen.Guidance)
	}

	terminal := permissions.ProbeTerminal(stdinFD, nil)
	fmt.Fprintf(stdout, "Interactive menu: %s (%s)\n", terminal.StatusString(), terminal.Message)
	if terminal.Guidance != "" {
		fmt.Fprintf(stdout, "  guidance: %s\n", terminal.Guidance)
	}

	if cfg.Metrics.Addr != "" {
		fmt.Fprintf(stdout, "Metrics: %s/metrics\n", cfg.Metrics.Addr)
	} else {
		fmt.Fprintln(stdout, "Metrics: disabled")
	}

	app.Logger.Debug("doctor completed", "source_available", env.Available, "screen_available", screen.Available)
	return nil
}

func dataDirState(dir string) string {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return "exists"
	case err == nil:
		return "not a directory"
	case os.IsNotExist(err):
		return "will be created"
	default:
		return err.Error()
	}
}
