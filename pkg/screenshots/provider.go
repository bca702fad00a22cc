package screenshots

import (
	"context"
	"image"
	"time"
)

// CaptureProvider grabs a full-screen frame.
type CaptureProvider interface {
	Grab(context.Context) (Frame, error)
}

// CaptureProviderFunc adapts a function literal to the CaptureProvider interface.
type CaptureProviderFunc func(context.Context) (Frame, error)

// Grab calls the underlying function.
func (f CaptureProviderFunc) Grab(ctx context.Context) (Frame, error) {
	return f(ctx)
}

// Frame bundles the captured pixels with metadata.
type Frame struct {
	Image    image.Image
	Metadata Metadata
}

// Metadata describes an annotated capture written to disk.
type Metadata struct {
	CapturedAt time.Time `json:"captured_at"`
	Backend    string    `json:"backend"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	GazeX      float64   `json:"gaze_x"`
	GazeY      float64   `json:"gaze_y"`
	EngineTime float64   `json:"engine_timestamp"`
	ImagePath  string    `json:"image_path"`
}
