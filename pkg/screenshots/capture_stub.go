//go:build !screencap

package screenshots

import (
	"context"
	"image"
	"image/color"
	"time"
)

const (
	syntheticWidth  = 1920
	syntheticHeight = 1080
)

const nativeCapture = false

type syntheticProvider struct{}

func defaultCaptureProvider() (CaptureProvider, error) {
	return syntheticProvider{}, nil
}

// Grab renders a gradient the size of a 1080p display.
func (syntheticProvider) Grab(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	img := image.NewRGBA(image.Rect(0, 0, syntheticWidth, syntheticHeight))
	for y := 0; y < syntheticHeight; y++ {
		for x := 0; x < syntheticWidth; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: uint8(x * 255 / syntheticWidth), B: uint8(y * 255 / syntheticHeight), A: 255})
		}
	}
	return Frame{
		Image: img,
		Metadata: Metadata{
			CapturedAt: time.Now(),
			Backend:    providerStub,
			Width:      syntheticWidth,
			Height:     syntheticHeight,
		},
	}, nil
}
