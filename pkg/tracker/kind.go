package tracker

import (
	"fmt"
	"strings"
)

// Kind names one of the data streams published by the tracking engine.
type Kind string

const (
	KindGaze        Kind = "gaze"
	KindFixation    Kind = "fixation"
	KindHeadPose    Kind = "head_pose"
	KindEyePosition Kind = "eye_position"
)

// Kinds lists every stream in the order the recorder opens them.
func Kinds() []Kind {
	return []Kind{KindGaze, KindFixation, KindHeadPose, KindEyePosition}
}

// ParseKind resolves a stream name. Hyphens and case are ignored.
func ParseKind(name string) (Kind, error) {
	normalised := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	switch normalised {
	case "gaze", "gaze_point":
		return KindGaze, nil
	case "fixation":
		return KindFixation, nil
	case "head_pose", "headpose":
		return KindHeadPose, nil
	case "eye_position", "eyeposition":
		return KindEyePosition, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownKind, name)
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindGaze, KindFixation, KindHeadPose, KindEyePosition:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
