package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// SyntheticOptions configures the deterministic generator.
type SyntheticOptions struct {
	// RateHz is the per-stream callback rate.
	RateHz float64
	// MaxEvents stops each stream after this many events; zero streams until cancelled.
	MaxEvents int
	Sleeper   Sleeper
}

// SyntheticSource emulates an engine on hosts without a tracker attached.
// The sequence is a function of the event index only, so repeated runs
// produce identical recordings apart from local timestamps.
type SyntheticSource struct {
	period    time.Duration
	maxEvents int
	sleeper   Sleeper
}

// NewSyntheticSource validates options and constructs a generator.
func NewSyntheticSource(opts SyntheticOptions) (*SyntheticSource, error) {
	if opts.RateHz <= 0 {
		return nil, errors.New("synthetic rate must be positive")
	}
	if opts.MaxEvents < 0 {
		return nil, errors.New("synthetic max events must not be negative")
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = defaultSleeper
	}
	return &SyntheticSource{
		period:    time.Duration(float64(time.Second) / opts.RateHz),
		maxEvents: opts.MaxEvents,
		sleeper:   sleeper,
	}, nil
}

// Stream emits generated events for kind at the configured rate.
func (s *SyntheticSource) Stream(ctx context.Context, kind Kind, emit func(Event) error) error {
	if !kind.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	for i := 0; s.maxEvents == 0 || i < s.maxEvents; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(s.event(kind, i)); err != nil {
			return err
		}
		if err := s.sleeper(ctx, s.period); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyntheticSource) event(kind Kind, i int) Event {
	phase := float64(i) * 0.1
	ev := Event{
		Kind:            kind,
		EngineTimestamp: float64(i) * float64(s.period) / float64(time.Millisecond),
	}

	switch kind {
	case KindGaze:
		ev.Gaze = GazePoint{X: 960 + 400*math.Cos(phase), Y: 540 + 300*math.Sin(phase)}
	case KindFixation:
		ev.Fixation = Fixation{X: 960 + 40*math.Cos(float64(i/6)), Y: 540 + 40*math.Sin(float64(i/6))}
		switch i % 6 {
		case 0:
			ev.Fixation.Phase = FixationBegin
		case 5:
			ev.Fixation.Phase = FixationEnd
		default:
			ev.Fixation.Phase = FixationData
		}
	case KindHeadPose:
		ev.HeadPose = HeadPose{
			Position:    r3.Vector{X: 10 * math.Sin(phase), Y: -5 * math.Cos(phase), Z: 620 + 15*math.Sin(phase/2)},
			HasPosition: i%10 != 9,
			Rotation:    r3.Vector{X: 0.05 * math.Sin(phase), Y: 0.1 * math.Cos(phase), Z: 0.02 * math.Sin(2*phase)},
			HasRotation: RotationMask{X: true, Y: i%7 != 6, Z: i%5 != 4},
		}
	case KindEyePosition:
		left := r3.Vector{X: -32 + math.Sin(phase), Y: 2 * math.Cos(phase), Z: 610}
		right := r3.Vector{X: 32 + math.Sin(phase), Y: 2 * math.Cos(phase), Z: 612}
		ev.EyePosition = EyePosition{
			LeftNormalized:  normalise(left),
			Left:            left,
			HasLeft:         i%9 != 8,
			RightNormalized: normalise(right),
			Right:           right,
			HasRight:        i%11 != 10,
		}
	}
	return ev
}

// normalise maps millimetres into the unit track box used by the engine.
func normalise(v r3.Vector) r3.Vector {
	const halfWidth, halfHeight, near, depth = 200.0, 150.0, 450.0, 350.0
	return r3.Vector{
		X: (v.X + halfWidth) / (2 * halfWidth),
		Y: (v.Y + halfHeight) / (2 * halfHeight),
		Z: (v.Z - near) / depth,
	}
}
