package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/eyetrace/internal/buildinfo"
	"github.com/offlinefirst/eyetrace/pkg/capture"
	"github.com/offlinefirst/eyetrace/pkg/config"
	"github.com/offlinefirst/eyetrace/pkg/record"
	"github.com/offlinefirst/eyetrace/pkg/runmanifest"
	"github.com/offlinefirst/eyetrace/pkg/screenshots"
)

type runOptions struct {
	Mode        string
	PlanOnly    bool
	Duration    time.Duration
	MetricsAddr string
}

func newRunCommand(rc *RootCommand) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a recording session",
		Long:  "Without --mode, run shows the mode menu and reads a single key. Recording stops on any key, SIGINT/SIGTERM, or when --duration elapses.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCapture(ctx, appCtx, opts, rc.stdin, rc.stdout)
		},
	}
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "Recording mode (all, screenshots, gaze, fixation, head_pose, eye_position or 1-6); prompts when empty")
	cmd.Flags().BoolVar(&opts.PlanOnly, "plan-only", false, "Print the resolved configuration without starting capture")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "Stop recording after this long (0 records until a key is pressed)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
	return cmd
}

var (
	timeNow       = time.Now
	hostname      = os.Hostname
	manifestSave  = runmanifest.Save
	newSource     = capture.NewSource
	newProvider   func() screenshots.CaptureProvider
	metricsServed func(addr string)
)

func runCapture(ctx context.Context, app *AppContext, opts runOptions, stdin io.Reader, stdout io.Writer) error {
	if app == nil {
		return fmt.Errorf("application context unavailable")
	}
	cfg := app.Config
	logger := app.Logger

	logger.Info("run command invoked", "plan_only", opts.PlanOnly, "data_dir", cfg.Paths.DataDir, "config_source", cfg.Origin)

	if opts.PlanOnly {
		printRunPlan(app, stdout)
		return nil
	}

	keys := newKeyReader(stdin)
	defer keys.Close()

	var mode capture.Mode
	if opts.Mode != "" {
		parsed, err := capture.ParseMode(opts.Mode)
		if err != nil {
			return err
		}
		mode = parsed
	} else {
		printMenu(stdout)
		key, err := keys.ReadKey()
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read menu selection: %w", err)
		}
		selected, ok := capture.ModeForKey(key)
		if !ok {
			logger.Info("no recording mode selected", "key", string(key))
			fmt.Fprintln(stdout, "Exiting without recording.")
			return nil
		}
		mode = selected
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	prefix, err := runmanifest.ResolvePrefix(cfg.Paths.DataDir, timeNow())
	if err != nil {
		return fmt.Errorf("resolve file prefix: %w", err)
	}
	layout := runmanifest.BuildLayout(cfg.Paths.DataDir, prefix)
	if err := runmanifest.EnsureFilesystem(layout); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}

	host, err := hostname()
	if err != nil {
		host = "unknown"
	}
	env := capture.SourceEnvironment(cfg)
	manifest := runmanifest.New(runmanifest.Options{
		Mode:       mode.String(),
		CreatedAt:  timeNow(),
		Hostname:   host,
		AppVersion: buildinfo.Version(),
		Config:     cfg,
		Source: runmanifest.SourceInfo{
			Provider:  env.Provider,
			Target:    env.Target,
			Available: env.Available,
			Message:   env.Message,
		},
		Layout: layout,
	})
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	reg := newMetricsRegistry()
	metrics := record.NewMetrics(reg)
	metricsAddr := cfg.Metrics.Addr
	if opts.MetricsAddr != "" {
		metricsAddr = opts.MetricsAddr
	}
	if metricsAddr != "" {
		server, err := startMetricsServer(metricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer server.Shutdown()
		if metricsServed != nil {
			metricsServed(server.Addr())
		}
	}

	interrupted := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	controller := capture.NewController(timeNow)
	go func() {
		if err := keys.WaitKey(); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("stop key reader failed", "error", err)
			}
			return
		}
		controller.Kill("keypress", nil)
	}()

	manifest.Status.State = runmanifest.StateRunning
	manifest.Status.Summary = "recording in progress"
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("update manifest status: %w", err)
	}

	fmt.Fprintln(stdout, "Collecting data...")
	fmt.Fprintln(stdout, "Press any key to quit application")

	var provider screenshots.CaptureProvider
	if newProvider != nil {
		provider = newProvider()
	}
	summary, runErr := capture.Run(ctx, capture.Options{
		Config:   cfg,
		Mode:     mode,
		Source:   source,
		Provider: provider,
		Layout:   layout,
		Logger:   logger,
		Clock:    timeNow,
		Control:  controller,
		Metrics:  metrics,
	})

	applySummary(&manifest, summary)
	if runErr != nil {
		manifest.Status.State = runmanifest.StateErrored
		manifest.Status.Summary = runErr.Error()
		if saveErr := manifestSave(manifest, layout.ManifestPath); saveErr != nil {
			return fmt.Errorf("record session: %v (additionally failed to persist manifest: %w)", runErr, saveErr)
		}
		return fmt.Errorf("record session: %w", runErr)
	}

	manifest.Status.State = runmanifest.StateCompleted
	manifest.Status.Summary = fmt.Sprintf("recording finished (%s)", summary.Termination)
	if interrupted.Err() != nil {
		manifest.Status.State = runmanifest.StateAborted
		manifest.Status.Summary = "recording interrupted"
	}
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("finalise manifest: %w", err)
	}

	// The stop-key reader may still hold the terminal in raw mode.
	if err := keys.Close(); err != nil {
		logger.Warn("restore terminal", "error", err)
	}
	printSummary(stdout, layout, summary)
	return nil
}

func applySummary(manifest *runmanifest.Manifest, summary capture.Summary) {
	if !summary.StartedAt.IsZero() {
		started := summary.StartedAt.UTC()
		manifest.Status.StartedAt = &started
	}
	if !summary.EndedAt.IsZero() {
		ended := summary.EndedAt.UTC()
		manifest.Status.EndedAt = &ended
	}
	manifest.Status.Termination = summary.Termination
	manifest.Status.Controller = manifest.Status.Controller[:0]
	for _, entry := range summary.Timeline {
		manifest.Status.Controller = append(manifest.Status.Controller, runmanifest.ControllerTimelineEntry{
			State:     entry.State,
			Reason:    entry.Reason,
			Timestamp: entry.Timestamp.UTC(),
		})
	}
	for _, stream := range summary.Streams {
		manifest.Status.Streams = append(manifest.Status.Streams, runmanifest.StreamStatus{
			Kind:    string(stream.Kind),
			File:    filepath.Base(stream.Path),
			Rows:    stream.Rows,
			Dropped: stream.Dropped,
		})
	}
	if summary.Screenshots != nil {
		manifest.Status.Screenshots = summary.Screenshots.Count
	}
}

func printMenu(stdout io.Writer) {
	for _, entry := range capture.Menu() {
		fmt.Fprintf(stdout, "%c: %s\n", entry.Key, entry.Label)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Press any other key to quit application")
}

func printSummary(stdout io.Writer, layout runmanifest.Layout, summary capture.Summary) {
	fmt.Fprintf(stdout, "Session %s (%s)\n", layout.Prefix, summary.Mode)
	fmt.Fprintf(stdout, "Manifest: %s\n", layout.ManifestPath)
	fmt.Fprintf(stdout, "Capture log: %s\n", layout.CaptureLogPath)
	for _, stream := range summary.Streams {
		fmt.Fprintf(stdout, "  %s: %d rows", stream.Kind, stream.Rows)
		if stream.Dropped > 0 {
			fmt.Fprintf(stdout, " (%d dropped after close)", stream.Dropped)
		}
		fmt.Fprintf(stdout, " -> %s\n", stream.Path)
	}
	if summary.Screenshots != nil {
		fmt.Fprintf(stdout, "  screenshots: %d saved in %s\n", summary.Screenshots.Count, layout.ScreensDir)
	}
	fmt.Fprintf(stdout, "Lifecycle: started %s, ended %s (termination: %s)\n", summary.StartedAt.Format(time.RFC3339), summary.EndedAt.Format(time.RFC3339), summary.Termination)
	if len(summary.Timeline) > 0 {
		fmt.Fprintln(stdout, "  Controller timeline:")
		for _, entry := range summary.Timeline {
			fmt.Fprintf(stdout, "    - %s -> %s", entry.Timestamp.Format(time.RFC3339), entry.State)
			if entry.Reason != "" {
				fmt.Fprintf(stdout, " (%s)", entry.Reason)
			}
			fmt.Fprintln(stdout)
		}
	}
}

func printRunPlan(app *AppContext, stdout io.Writer) {
	cfg := app.Config
	fmt.Fprintf(stdout, "Resolved configuration (source: %s)\n", cfg.Origin)
	fmt.Fprintf(stdout, "  paths.data_dir: %s\n", cfg.Paths.DataDir)
	fmt.Fprintf(stdout, "  source.provider: %s\n", cfg.Source.Provider)
	switch cfg.Source.Provider {
	case config.ProviderSynthetic:
		fmt.Fprintf(stdout, "  source.synthetic.rate_hz: %g\n", cfg.Source.Synthetic.RateHz)
		fmt.Fprintf(stdout, "  source.synthetic.max_events: %d\n", cfg.Source.Synthetic.MaxEvents)
	case config.ProviderReplay:
		fmt.Fprintf(stdout, "  source.replay.path: %s\n", cfg.Source.Replay.Path)
		fmt.Fprintf(stdout, "  source.replay.follow: %t\n", cfg.Source.Replay.Follow)
		fmt.Fprintf(stdout, "  source.replay.realtime: %t\n", cfg.Source.Replay.Realtime)
	case config.ProviderBridge:
		fmt.Fprintf(stdout, "  source.bridge.url: %s\n", cfg.Source.Bridge.URL)
		fmt.Fprintf(stdout, "  source.bridge.handshake_timeout_seconds: %d\n", cfg.Source.Bridge.HandshakeTimeoutSeconds)
	}
	fmt.Fprintf(stdout, "  recording.delimiter: %q\n", cfg.Recording.Delimiter)
	fmt.Fprintf(stdout, "  recording.timestamp_layout: %s\n", cfg.Recording.TimestampLayout)
	fmt.Fprintf(stdout, "  screenshots.format: %s\n", cfg.Screenshots.Format)
	fmt.Fprintf(stdout, "  screenshots.jpeg_quality: %d\n", cfg.Screenshots.JPEGQuality)
	fmt.Fprintf(stdout, "  screenshots.metadata: %t\n", cfg.Screenshots.Metadata)
	fmt.Fprintf(stdout, "  metrics.addr: %s\n", cfg.Metrics.Addr)
	fmt.Fprintf(stdout, "  logging.level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(stdout, "  logging.format: %s\n", cfg.Logging.Format)
}
