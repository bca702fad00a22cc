package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/offlinefirst/eyetrace/pkg/config"
	"github.com/offlinefirst/eyetrace/pkg/record"
	"github.com/offlinefirst/eyetrace/pkg/runmanifest"
	"github.com/offlinefirst/eyetrace/pkg/screenshots"
	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

// Termination causes reported in Summary.
const (
	TerminationController = "controller"
	TerminationContext    = "context"
	TerminationExhausted  = "source_exhausted"
	TerminationError      = "error"
)

// Options controls a recording session.
type Options struct {
	Config   config.Config
	Mode     Mode
	Source   tracker.Source
	Provider screenshots.CaptureProvider
	Layout   runmanifest.Layout
	Logger   *slog.Logger
	Clock    func() time.Time
	Control  *Controller
	Metrics  *record.Metrics
}

// Summary reports what a session produced.
type Summary struct {
	Mode        Mode
	Prefix      string
	StartedAt   time.Time
	EndedAt     time.Time
	Streams     []record.StreamResult
	Screenshots *screenshots.Result
	Termination string
	Timeline    []TimelineEntry
}

// Run records the streams selected by opts.Mode until the controller is
// killed, ctx ends or the source is exhausted. Every sink is closed before
// Run returns, so callbacks delivered afterwards are dropped.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.Logger == nil {
		return Summary{}, errors.New("logger must be provided")
	}
	if opts.Source == nil {
		return Summary{}, errors.New("event source must be provided")
	}
	if opts.Mode.Kinds() == nil && !opts.Mode.Screenshots() {
		return Summary{}, fmt.Errorf("unknown mode %q", opts.Mode)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	logFile, err := os.OpenFile(opts.Layout.CaptureLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Summary{}, fmt.Errorf("open capture log: %w", err)
	}
	defer logFile.Close()

	controller := opts.Control
	if controller == nil {
		controller = NewController(clock)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-controller.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	summary := Summary{Mode: opts.Mode, Prefix: opts.Layout.Prefix, StartedAt: clock()}
	writeCaptureLog(logFile, summary.StartedAt, "session", "started mode=%s prefix=%s", opts.Mode, opts.Layout.Prefix)
	opts.Logger.Info("session started", "mode", opts.Mode, "prefix", opts.Layout.Prefix)

	var runErr error
	if opts.Mode.Screenshots() {
		res, err := runScreenshots(runCtx, opts, clock)
		summary.Screenshots = res
		runErr = err
		if res != nil {
			writeCaptureLog(logFile, clock(), "screenshots", "captured %d screenshots (%d dropped)", res.Count, res.Dropped)
			opts.Logger.Info("screenshot capture complete", "count", res.Count, "dropped", res.Dropped)
		}
	} else {
		streams, err := runStreams(runCtx, opts, clock)
		summary.Streams = streams
		runErr = err
		for _, stream := range streams {
			writeCaptureLog(logFile, clock(), string(stream.Kind), "recorded %d rows (%d dropped) to %s", stream.Rows, stream.Dropped, stream.Path)
			opts.Logger.Info("stream closed", "stream", stream.Kind, "rows", stream.Rows, "dropped", stream.Dropped)
		}
	}

	if runErr != nil && runCtx.Err() != nil && errors.Is(runErr, runCtx.Err()) {
		runErr = nil
	}

	switch {
	case runErr != nil:
		summary.Termination = TerminationError
		controller.Kill("error", runErr)
	case controllerStopped(controller):
		summary.Termination = TerminationController
	case ctx.Err() != nil:
		summary.Termination = TerminationContext
		controller.Kill("context", nil)
	default:
		summary.Termination = TerminationExhausted
		controller.Kill("source exhausted", nil)
	}

	summary.EndedAt = clock()
	summary.Timeline = controller.Timeline()
	writeCaptureLog(logFile, summary.EndedAt, "session", "stopped termination=%s", summary.Termination)

	if runErr != nil {
		opts.Logger.Error("session failed", "error", runErr)
		return summary, runErr
	}
	opts.Logger.Info("session stopped", "termination", summary.Termination)
	return summary, nil
}

func runStreams(ctx context.Context, opts Options, clock func() time.Time) ([]record.StreamResult, error) {
	session, err := record.NewSession(record.Options{
		Dir:             opts.Layout.DataDir,
		Prefix:          opts.Layout.Prefix,
		Source:          opts.Source,
		Clock:           clock,
		Logger:          opts.Logger,
		Metrics:         opts.Metrics,
		Delimiter:       opts.Config.DelimiterRune(),
		TimestampLayout: opts.Config.Recording.TimestampLayout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise recorder: %w", err)
	}

	var subscribeErr error
	for _, kind := range opts.Mode.Kinds() {
		if err := session.Subscribe(kind); err != nil {
			subscribeErr = err
			break
		}
	}

	var runErr error
	if subscribeErr == nil {
		runErr = session.Run(ctx)
	}
	closeErr := session.Close()
	streams := session.Streams()

	switch {
	case subscribeErr != nil:
		return streams, errors.Join(subscribeErr, closeErr)
	case runErr != nil:
		return streams, errors.Join(runErr, closeErr)
	case closeErr != nil:
		return streams, fmt.Errorf("close recorder: %w", closeErr)
	}
	return streams, nil
}

func runScreenshots(ctx context.Context, opts Options, clock func() time.Time) (*screenshots.Result, error) {
	annotatorOpts := screenshots.Options{
		Dir:           opts.Layout.ScreensDir,
		Provider:      opts.Provider,
		Clock:         clock,
		Format:        opts.Config.Screenshots.Format,
		JPEGQuality:   opts.Config.Screenshots.JPEGQuality,
		WriteMetadata: opts.Config.Screenshots.Metadata,
		Logger:        opts.Logger,
	}
	if opts.Metrics != nil {
		annotatorOpts.Metrics = opts.Metrics
	}
	annotator, err := screenshots.NewAnnotator(annotatorOpts)
	if err != nil {
		return nil, fmt.Errorf("initialise screenshot annotator: %w", err)
	}

	streamErr := annotator.Stream(ctx, opts.Source)
	_ = annotator.Close()
	res := annotator.Result()
	if streamErr != nil {
		return &res, fmt.Errorf("gaze stream: %w", streamErr)
	}
	return &res, nil
}

func controllerStopped(c *Controller) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func writeCaptureLog(file *os.File, timestamp time.Time, subsystem, message string, args ...any) {
	if file == nil {
		return
	}
	formatted := message
	if len(args) > 0 {
		formatted = fmt.Sprintf(message, args...)
	}
	line := fmt.Sprintf("[%s] subsystem=%s %s\n", timestamp.UTC().Format(time.RFC3339), subsystem, formatted)
	_, _ = file.WriteString(line)
}
