package screenshots

import (
	"github.com/offlinefirst/eyetrace/pkg/permissions"
)

// Environment describes screen capture availability.
type Environment struct {
	Provider   string
	Available  bool
	Permission string
	Message    string
	Guidance   string
}

const (
	providerRobotgo = "robotgo"
	providerStub    = "synthetic"
)

// DetectEnvironment reports which capture backend this build uses and
// whether the host permits screen recording.
func DetectEnvironment() Environment {
	screenRecording := permissions.ProbeScreenRecording(nil)
	env := Environment{
		Provider:   providerStub,
		Permission: screenRecording.StatusString(),
		Message:    screenRecording.Message,
		Guidance:   screenRecording.Guidance,
		Available:  true,
	}

	if nativeCapture {
		env.Provider = providerRobotgo
		env.Available = screenRecording.Status != permissions.StatusDenied
		if !env.Available && env.Message == "" {
			env.Message = "screen recording permission missing"
		}
	} else {
		env.Permission = "not_applicable"
		env.Message = "synthetic screen capture stub (build with -tags screencap for robotgo)"
	}
	return env
}
