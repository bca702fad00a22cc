package tracker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

// FixationPhase marks where a fixation sample sits within a dwell.
type FixationPhase int

const (
	// FixationUnknown is any phase value the engine did not document.
	FixationUnknown FixationPhase = iota
	FixationBegin
	FixationData
	FixationEnd
)

// String returns the phase tag written to recordings. Unrecognised phases
// render as an empty string.
func (p FixationPhase) String() string {
	switch p {
	case FixationBegin:
		return "begin"
	case FixationData:
		return "data"
	case FixationEnd:
		return "end"
	default:
		return ""
	}
}

// MarshalJSON encodes known phases by name and anything else by number.
func (p FixationPhase) MarshalJSON() ([]byte, error) {
	if name := p.String(); name != "" {
		return json.Marshal(name)
	}
	return json.Marshal(int(p))
}

// UnmarshalJSON accepts phase names or numeric codes. Values it does not
// recognise decode without error.
func (p *FixationPhase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "begin":
			*p = FixationBegin
		case "data":
			*p = FixationData
		case "end":
			*p = FixationEnd
		default:
			*p = FixationUnknown
		}
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("decode fixation phase: %w", err)
	}
	*p = FixationPhase(code)
	return nil
}

// GazePoint is the estimated on-screen gaze coordinate in pixels.
type GazePoint struct {
	X float64
	Y float64
}

// Fixation is one sample of a sustained gaze dwell.
type Fixation struct {
	Phase FixationPhase
	X     float64
	Y     float64
}

// RotationMask flags which head rotation axes the engine resolved.
type RotationMask struct {
	X bool
	Y bool
	Z bool
}

// HeadPose is the estimated head position and per-axis rotation.
type HeadPose struct {
	Position    r3.Vector
	HasPosition bool
	Rotation    r3.Vector
	HasRotation RotationMask
}

// EyePosition carries both eyes in normalised track-box coordinates and in
// absolute millimetres. Absolute positions are only valid when the matching
// Has flag is set.
type EyePosition struct {
	LeftNormalized  r3.Vector
	Left            r3.Vector
	HasLeft         bool
	RightNormalized r3.Vector
	Right           r3.Vector
	HasRight        bool
}

// Event is an immutable snapshot of one engine callback. Only the payload
// matching Kind is meaningful.
type Event struct {
	Kind            Kind
	EngineTimestamp float64
	Gaze            GazePoint
	Fixation        Fixation
	HeadPose        HeadPose
	EyePosition     EyePosition
}

type wireVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type wireRotation struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`
}

type wireEvent struct {
	Kind               Kind           `json:"kind"`
	EngineTimestamp    float64        `json:"engine_timestamp"`
	X                  *float64       `json:"x,omitempty"`
	Y                  *float64       `json:"y,omitempty"`
	Phase              *FixationPhase `json:"phase,omitempty"`
	HeadPosition       *wireVector    `json:"head_position,omitempty"`
	HeadRotation       *wireRotation  `json:"head_rotation,omitempty"`
	LeftEyeNormalized  *wireVector    `json:"left_eye_normalized,omitempty"`
	LeftEye            *wireVector    `json:"left_eye,omitempty"`
	RightEyeNormalized *wireVector    `json:"right_eye_normalized,omitempty"`
	RightEye           *wireVector    `json:"right_eye,omitempty"`
}

func toWire(v r3.Vector) *wireVector {
	return &wireVector{X: v.X, Y: v.Y, Z: v.Z}
}

func (w *wireVector) vector() r3.Vector {
	if w == nil {
		return r3.Vector{}
	}
	return r3.Vector{X: w.X, Y: w.Y, Z: w.Z}
}

func floatPtr(v float64) *float64 {
	return &v
}

// MarshalJSON encodes the event in the JSON Lines capture format: absent
// optional vectors and rotation axes are omitted.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{Kind: e.Kind, EngineTimestamp: e.EngineTimestamp}
	switch e.Kind {
	case KindGaze:
		w.X, w.Y = floatPtr(e.Gaze.X), floatPtr(e.Gaze.Y)
	case KindFixation:
		phase := e.Fixation.Phase
		w.Phase = &phase
		w.X, w.Y = floatPtr(e.Fixation.X), floatPtr(e.Fixation.Y)
	case KindHeadPose:
		if e.HeadPose.HasPosition {
			w.HeadPosition = toWire(e.HeadPose.Position)
		}
		rot := &wireRotation{}
		if e.HeadPose.HasRotation.X {
			rot.X = floatPtr(e.HeadPose.Rotation.X)
		}
		if e.HeadPose.HasRotation.Y {
			rot.Y = floatPtr(e.HeadPose.Rotation.Y)
		}
		if e.HeadPose.HasRotation.Z {
			rot.Z = floatPtr(e.HeadPose.Rotation.Z)
		}
		w.HeadRotation = rot
	case KindEyePosition:
		w.LeftEyeNormalized = toWire(e.EyePosition.LeftNormalized)
		w.RightEyeNormalized = toWire(e.EyePosition.RightNormalized)
		if e.EyePosition.HasLeft {
			w.LeftEye = toWire(e.EyePosition.Left)
		}
		if e.EyePosition.HasRight {
			w.RightEye = toWire(e.EyePosition.Right)
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, e.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the JSON Lines capture format.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Kind.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownKind, w.Kind)
	}

	out := Event{Kind: w.Kind, EngineTimestamp: w.EngineTimestamp}
	var x, y float64
	if w.X != nil {
		x = *w.X
	}
	if w.Y != nil {
		y = *w.Y
	}

	switch w.Kind {
	case KindGaze:
		out.Gaze = GazePoint{X: x, Y: y}
	case KindFixation:
		out.Fixation = Fixation{X: x, Y: y}
		if w.Phase != nil {
			out.Fixation.Phase = *w.Phase
		}
	case KindHeadPose:
		if w.HeadPosition != nil {
			out.HeadPose.Position = w.HeadPosition.vector()
			out.HeadPose.HasPosition = true
		}
		if rot := w.HeadRotation; rot != nil {
			if rot.X != nil {
				out.HeadPose.Rotation.X = *rot.X
				out.HeadPose.HasRotation.X = true
			}
			if rot.Y != nil {
				out.HeadPose.Rotation.Y = *rot.Y
				out.HeadPose.HasRotation.Y = true
			}
			if rot.Z != nil {
				out.HeadPose.Rotation.Z = *rot.Z
				out.HeadPose.HasRotation.Z = true
			}
		}
	case KindEyePosition:
		out.EyePosition.LeftNormalized = w.LeftEyeNormalized.vector()
		out.EyePosition.RightNormalized = w.RightEyeNormalized.vector()
		if w.LeftEye != nil {
			out.EyePosition.Left = w.LeftEye.vector()
			out.EyePosition.HasLeft = true
		}
		if w.RightEye != nil {
			out.EyePosition.Right = w.RightEye.vector()
			out.EyePosition.HasRight = true
		}
	}

	*e = out
	return nil
}
