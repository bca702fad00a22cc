package capture

import (
	"fmt"
	"strings"

	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

// Mode selects what a session records.
type Mode string

const (
	ModeAll         Mode = "all"
	ModeScreenshots Mode = "screenshots"
	ModeGaze        Mode = "gaze"
	ModeFixation    Mode = "fixation"
	ModeHeadPose    Mode = "head_pose"
	ModeEyePosition Mode = "eye_position"
)

// MenuEntry binds a menu key to a mode.
type MenuEntry struct {
	Key   byte
	Mode  Mode
	Label string
}

var menu = []MenuEntry{
	{Key: '1', Mode: ModeAll, Label: "Save all streams data"},
	{Key: '2', Mode: ModeScreenshots, Label: "Take screen shots"},
	{Key: '3', Mode: ModeGaze, Label: "Save gaze data"},
	{Key: '4', Mode: ModeFixation, Label: "Save fixation data"},
	{Key: '5', Mode: ModeHeadPose, Label: "Save head pose data"},
	{Key: '6', Mode: ModeEyePosition, Label: "Save eye position data"},
}

// Menu lists the selectable modes in display order.
func Menu() []MenuEntry {
	return append([]MenuEntry(nil), menu...)
}

// ModeForKey maps a menu key to its mode. Any other key reports false.
func ModeForKey(key byte) (Mode, bool) {
	for _, entry := range menu {
		if entry.Key == key {
			return entry.Mode, true
		}
	}
	return "", false
}

// ParseMode accepts a mode name or its menu key.
func ParseMode(value string) (Mode, error) {
	normalised := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	if len(normalised) == 1 {
		if mode, ok := ModeForKey(normalised[0]); ok {
			return mode, nil
		}
	}
	for _, entry := range menu {
		if string(entry.Mode) == normalised {
			return entry.Mode, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", value)
}

// Kinds lists the streams recorded to delimited files in this mode.
// Screenshot mode records none.
func (m Mode) Kinds() []tracker.Kind {
	switch m {
	case ModeAll:
		return tracker.Kinds()
	case ModeGaze:
		return []tracker.Kind{tracker.KindGaze}
	case ModeFixation:
		return []tracker.Kind{tracker.KindFixation}
	case ModeHeadPose:
		return []tracker.Kind{tracker.KindHeadPose}
	case ModeEyePosition:
		return []tracker.Kind{tracker.KindEyePosition}
	default:
		return nil
	}
}

// Screenshots reports whether the mode annotates screen captures.
func (m Mode) Screenshots() bool {
	return m == ModeScreenshots
}

func (m Mode) String() string {
	return string(m)
}
