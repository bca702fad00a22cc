package screenshots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

// Image formats accepted by Options.Format.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// Counter receives one increment per saved capture.
type Counter interface {
	IncrementScreenshots()
}

// Options configure the annotator.
type Options struct {
	Dir           string
	Provider      CaptureProvider
	Clock         func() time.Time
	Format        string
	JPEGQuality   int
	Crosshair     Crosshair
	WriteMetadata bool
	Metrics       Counter
	Logger        *slog.Logger
}

// Annotator saves one screen capture per gaze callback with the gaze point
// marked. It keeps no state between captures and applies no rate limit.
type Annotator struct {
	dir       string
	provider  CaptureProvider
	clock     func() time.Time
	format    string
	quality   int
	crosshair Crosshair
	metadata  bool
	metrics   Counter
	logger    *slog.Logger

	mu      sync.Mutex
	closed  bool
	files   []string
	dropped int
	first   time.Time
	last    time.Time
}

// Result summarises capture outcomes.
type Result struct {
	Files        []string
	Count        int
	Dropped      int
	FirstCapture time.Time
	LastCapture  time.Time
}

// NewAnnotator validates options and constructs an annotator, creating the
// destination directory when it is missing.
func NewAnnotator(opts Options) (*Annotator, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("destination directory must not be empty")
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	switch format {
	case "", "jpg", FormatJPEG:
		format = FormatJPEG
	case FormatPNG:
	default:
		return nil, fmt.Errorf("unsupported image format %q", opts.Format)
	}
	quality := opts.JPEGQuality
	if quality == 0 {
		quality = jpeg.DefaultQuality
	}
	if quality < 1 || quality > 100 {
		return nil, errors.New("jpeg quality must be between 1 and 100")
	}
	provider := opts.Provider
	if provider == nil {
		var err error
		provider, err = defaultCaptureProvider()
		if err != nil {
			return nil, err
		}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	crosshair := opts.Crosshair
	if crosshair.Length == 0 && crosshair.Width == 0 {
		crosshair = DefaultCrosshair
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure destination: %w", err)
	}
	return &Annotator{
		dir:       opts.Dir,
		provider:  provider,
		clock:     clock,
		format:    format,
		quality:   quality,
		crosshair: crosshair,
		metadata:  opts.WriteMetadata,
		metrics:   opts.Metrics,
		logger:    logger,
	}, nil
}

// Annotate captures the screen, marks the gaze point of ev and writes the
// image. It returns an empty path without error for non-gaze events and for
// events arriving after Close.
func (a *Annotator) Annotate(ctx context.Context, ev tracker.Event) (string, error) {
	if ev.Kind != tracker.KindGaze {
		return "", nil
	}
	if a.isClosed() {
		a.drop()
		return "", nil
	}

	frame, err := a.provider.Grab(ctx)
	if err != nil {
		return "", fmt.Errorf("capture frame: %w", err)
	}
	if frame.Image == nil {
		return "", errors.New("capture provider returned no image")
	}

	canvas := drawable(frame.Image)
	DrawCrosshair(canvas, ev.Gaze.X, ev.Gaze.Y, a.crosshair)

	var buf bytes.Buffer
	switch a.format {
	case FormatPNG:
		err = png.Encode(&buf, canvas)
	default:
		err = jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: a.quality})
	}
	if err != nil {
		return "", fmt.Errorf("encode capture: %w", err)
	}

	capturedAt := a.clock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.dropped++
		return "", nil
	}

	path, err := a.uniquePath(capturedAt)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}

	if a.metadata {
		meta := frame.Metadata
		meta.CapturedAt = capturedAt
		meta.GazeX, meta.GazeY = ev.Gaze.X, ev.Gaze.Y
		meta.EngineTime = ev.EngineTimestamp
		meta.ImagePath = filepath.Base(path)
		bounds := canvas.Bounds()
		meta.Width, meta.Height = bounds.Dx(), bounds.Dy()
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal capture metadata: %w", err)
		}
		metaPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
		if err := os.WriteFile(metaPath, data, 0o644); err != nil {
			return "", fmt.Errorf("write capture metadata: %w", err)
		}
	}

	a.files = append(a.files, path)
	if a.first.IsZero() {
		a.first = capturedAt
	}
	a.last = capturedAt
	if a.metrics != nil {
		a.metrics.IncrementScreenshots()
	}
	a.logger.Debug("capture saved", "file", path, "x", ev.Gaze.X, "y", ev.Gaze.Y)
	return path, nil
}

// Stream drives the annotator from the gaze stream of src until ctx is done
// or the source is exhausted.
func (a *Annotator) Stream(ctx context.Context, src tracker.Source) error {
	return src.Stream(ctx, tracker.KindGaze, func(ev tracker.Event) error {
		_, err := a.Annotate(ctx, ev)
		return err
	})
}

// uniquePath names the capture after its timestamp (yyyyMMddHHmmssfffff),
// adding a numeric suffix if a file of that name already exists.
func (a *Annotator) uniquePath(at time.Time) (string, error) {
	ext := ".jpg"
	if a.format == FormatPNG {
		ext = ".png"
	}
	base := strings.Replace(at.Format("20060102150405.00000"), ".", "", 1)
	candidate := filepath.Join(a.dir, base+ext)
	for suffix := 1; ; suffix++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("inspect capture path: %w", err)
		}
		candidate = filepath.Join(a.dir, fmt.Sprintf("%s_%02d%s", base, suffix, ext))
	}
}

func (a *Annotator) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Annotator) drop() {
	a.mu.Lock()
	a.dropped++
	a.mu.Unlock()
}

// Close stops the annotator; later gaze events are dropped.
func (a *Annotator) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

// Result reports the captures written so far.
func (a *Annotator) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Result{
		Files:        append([]string(nil), a.files...),
		Count:        len(a.files),
		Dropped:      a.dropped,
		FirstCapture: a.first,
		LastCapture:  a.last,
	}
}
