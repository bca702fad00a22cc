package screenshots

import (
	"image"
	"image/color"
	"image/draw"
)

// Crosshair describes the marker drawn at the gaze point.
type Crosshair struct {
	Length int
	Width  int
	Color  color.Color
}

// DefaultCrosshair is a red 10px cross with 2px strokes.
var DefaultCrosshair = Crosshair{Length: 10, Width: 2, Color: color.RGBA{R: 255, A: 255}}

// DrawCrosshair draws four strokes (down, up, right, left) radiating from the
// gaze point. Coordinates are truncated toward zero; strokes are clipped to
// the image bounds.
func DrawCrosshair(dst draw.Image, x, y float64, style Crosshair) {
	if style.Length <= 0 || style.Width <= 0 {
		return
	}
	if style.Color == nil {
		style.Color = DefaultCrosshair.Color
	}
	cx, cy := int(x), int(y)
	lo := style.Width / 2
	hi := style.Width - lo
	n := style.Length

	strokes := []image.Rectangle{
		image.Rect(cx-lo, cy, cx+hi, cy+n+1),
		image.Rect(cx-lo, cy-n, cx+hi, cy+1),
		image.Rect(cx, cy-lo, cx+n+1, cy+hi),
		image.Rect(cx-n, cy-lo, cx+1, cy+hi),
	}
	src := image.NewUniform(style.Color)
	for _, stroke := range strokes {
		clipped := stroke.Intersect(dst.Bounds())
		if clipped.Empty() {
			continue
		}
		draw.Draw(dst, clipped, src, image.Point{}, draw.Src)
	}
}

// drawable returns img itself when it supports Set, otherwise an RGBA copy.
func drawable(img image.Image) draw.Image {
	if d, ok := img.(draw.Image); ok {
		return d
	}
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)
	return out
}
