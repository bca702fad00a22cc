package capture

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/eyetrace/pkg/config"
	"github.com/offlinefirst/eyetrace/pkg/logging"
	"github.com/offlinefirst/eyetrace/pkg/record"
	"github.com/offlinefirst/eyetrace/pkg/runmanifest"
	"github.com/offlinefirst/eyetrace/pkg/screenshots"
	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

func newLayout(t *testing.T) runmanifest.Layout {
	t.Helper()
	layout := runmanifest.BuildLayout(t.TempDir(), "20240501100000")
	require.NoError(t, runmanifest.EnsureFilesystem(layout))
	return layout
}

func finiteSource(n int) tracker.Source {
	return tracker.SourceFunc(func(ctx context.Context, kind tracker.Kind, emit func(tracker.Event) error) error {
		for i := 0; i < n; i++ {
			ev := tracker.Event{Kind: kind, EngineTimestamp: float64(i)}
			if kind == tracker.KindGaze {
				ev.Gaze = tracker.GazePoint{X: float64(10 + i), Y: 20}
			}
			if err := emit(ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func blockingSource(started chan<- struct{}) tracker.Source {
	var once sync.Once
	return tracker.SourceFunc(func(ctx context.Context, kind tracker.Kind, emit func(tracker.Event) error) error {
		if err := emit(tracker.Event{Kind: kind}); err != nil {
			return err
		}
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	})
}

func lineCount(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func TestRunRecordsEveryStreamInAllMode(t *testing.T) {
	layout := newLayout(t)
	reg := prometheus.NewRegistry()
	metrics := record.NewMetrics(reg)

	summary, err := Run(context.Background(), Options{
		Config:  config.Default(),
		Mode:    ModeAll,
		Source:  finiteSource(3),
		Layout:  layout,
		Logger:  logging.Discard(),
		Clock:   func() time.Time { return base },
		Metrics: metrics,
	})
	require.NoError(t, err)

	assert.Equal(t, TerminationExhausted, summary.Termination)
	require.Len(t, summary.Streams, 4)
	for _, stream := range summary.Streams {
		assert.Equal(t, 3, stream.Rows)
		assert.Equal(t, 4, lineCount(t, stream.Path), stream.Path)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.EventsRecorded.WithLabelValues("head_pose")))

	captureLog, err := os.ReadFile(layout.CaptureLogPath)
	require.NoError(t, err)
	for _, token := range []string{"subsystem=session", "subsystem=gaze", "subsystem=eye_position", "termination=source_exhausted"} {
		assert.Contains(t, string(captureLog), token)
	}
	require.Len(t, summary.Timeline, 2)
	assert.Equal(t, "source exhausted", summary.Timeline[1].Reason)
}

func TestRunSingleStreamModeOpensOneFile(t *testing.T) {
	layout := newLayout(t)

	summary, err := Run(context.Background(), Options{
		Config: config.Default(),
		Mode:   ModeFixation,
		Source: finiteSource(2),
		Layout: layout,
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	require.Len(t, summary.Streams, 1)
	assert.Equal(t, tracker.KindFixation, summary.Streams[0].Kind)

	_, err = os.Stat(filepath.Join(layout.DataDir, "20240501100000_GazeData.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(filepath.Join(layout.DataDir, "20240501100000_FixationData.csv"))
	assert.NoError(t, err)
}

func TestRunScreenshotModeAnnotatesGaze(t *testing.T) {
	layout := newLayout(t)
	provider := screenshots.CaptureProviderFunc(func(context.Context) (screenshots.Frame, error) {
		return screenshots.Frame{Image: image.NewRGBA(image.Rect(0, 0, 64, 64))}, nil
	})
	tick := base
	clock := func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}

	summary, err := Run(context.Background(), Options{
		Config:   config.Default(),
		Mode:     ModeScreenshots,
		Source:   finiteSource(4),
		Provider: provider,
		Layout:   layout,
		Logger:   logging.Discard(),
		Clock:    clock,
	})
	require.NoError(t, err)
	require.NotNil(t, summary.Screenshots)
	assert.Equal(t, 4, summary.Screenshots.Count)
	assert.Empty(t, summary.Streams)

	matches, err := filepath.Glob(filepath.Join(layout.ScreensDir, "*.jpg"))
	require.NoError(t, err)
	assert.Len(t, matches, 4)
}

func TestRunStopsWhenControllerKilled(t *testing.T) {
	layout := newLayout(t)
	controller := NewController(nil)
	started := make(chan struct{})

	done := make(chan struct{})
	var summary Summary
	var runErr error
	go func() {
		defer close(done)
		summary, runErr = Run(context.Background(), Options{
			Config:  config.Default(),
			Mode:    ModeGaze,
			Source:  blockingSource(started),
			Layout:  layout,
			Logger:  logging.Discard(),
			Control: controller,
		})
	}()

	<-started
	controller.Kill("keypress", nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after kill")
	}
	require.NoError(t, runErr)
	assert.Equal(t, TerminationController, summary.Termination)
	require.Len(t, summary.Streams, 1)
	assert.Equal(t, 1, summary.Streams[0].Rows)
}

func TestRunDeadlineIsNormalStop(t *testing.T) {
	layout := newLayout(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	summary, err := Run(ctx, Options{
		Config: config.Default(),
		Mode:   ModeHeadPose,
		Source: blockingSource(make(chan struct{})),
		Layout: layout,
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	assert.Equal(t, TerminationContext, summary.Termination)
}

func TestRunDropsCallbacksAfterReturn(t *testing.T) {
	layout := newLayout(t)
	var late func(tracker.Event) error
	src := tracker.SourceFunc(func(ctx context.Context, kind tracker.Kind, emit func(tracker.Event) error) error {
		late = emit
		return emit(tracker.Event{Kind: kind})
	})

	summary, err := Run(context.Background(), Options{
		Config: config.Default(),
		Mode:   ModeGaze,
		Source: src,
		Layout: layout,
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	require.NotNil(t, late)
	require.NoError(t, late(tracker.Event{Kind: tracker.KindGaze}))

	assert.Equal(t, 2, lineCount(t, summary.Streams[0].Path))
}

func TestRunSurfacesSourceFailure(t *testing.T) {
	layout := newLayout(t)
	lost := errors.New("device lost")
	src := tracker.SourceFunc(func(ctx context.Context, kind tracker.Kind, emit func(tracker.Event) error) error {
		return lost
	})

	summary, err := Run(context.Background(), Options{
		Config: config.Default(),
		Mode:   ModeEyePosition,
		Source: src,
		Layout: layout,
		Logger: logging.Discard(),
	})
	require.ErrorIs(t, err, lost)
	assert.Equal(t, TerminationError, summary.Termination)
}

func TestRunValidatesOptions(t *testing.T) {
	layout := newLayout(t)
	_, err := Run(context.Background(), Options{Mode: ModeGaze, Source: finiteSource(0), Layout: layout})
	assert.Error(t, err)
	_, err = Run(context.Background(), Options{Mode: ModeGaze, Layout: layout, Logger: logging.Discard()})
	assert.Error(t, err)
	_, err = Run(context.Background(), Options{Mode: "blink", Source: finiteSource(0), Layout: layout, Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestNewSourceFollowsConfig(t *testing.T) {
	cfg := config.Default()
	src, err := NewSource(cfg, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &tracker.SyntheticSource{}, src)

	cfg.Source.Provider = config.ProviderBridge
	cfg.Source.Bridge.URL = "ws://127.0.0.1:7070/stream"
	src, err = NewSource(cfg, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &tracker.BridgeSource{}, src)

	cfg.Source.Bridge.URL = "http://example.com"
	_, err = NewSource(cfg, logging.Discard())
	assert.Error(t, err)

	cfg.Source.Provider = "usb"
	_, err = NewSource(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestSourceEnvironmentReportsReplayFile(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Provider = config.ProviderReplay
	cfg.Source.Replay.Path = filepath.Join(t.TempDir(), "missing.jsonl")

	env := SourceEnvironment(cfg)
	assert.Equal(t, config.ProviderReplay, env.Provider)
	assert.False(t, env.Available)
}
