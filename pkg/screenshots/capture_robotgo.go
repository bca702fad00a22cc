//go:build screencap

package screenshots

import (
	"context"
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/offlinefirst/eyetrace/pkg/permissions"
)

const nativeCapture = true

type robotgoProvider struct{}

func defaultCaptureProvider() (CaptureProvider, error) {
	probe := permissions.ProbeScreenRecording(nil)
	if probe.Status == permissions.StatusDenied {
		return nil, newPermissionError(probe.Message)
	}
	return robotgoProvider{}, nil
}

// Grab captures the primary display.
func (robotgoProvider) Grab(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	img, err := robotgo.CaptureImg()
	if err != nil {
		return Frame{}, fmt.Errorf("capture screen: %w", err)
	}
	bounds := img.Bounds()
	return Frame{
		Image: img,
		Metadata: Metadata{
			CapturedAt: time.Now(),
			Backend:    providerRobotgo,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		},
	}, nil
}
