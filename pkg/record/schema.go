package record

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang/geo/r3"

	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

// DefaultTimestampLayout renders local capture time with 100ns resolution.
const DefaultTimestampLayout = "02/01/2006 15:04:05.0000000"

// Schema describes the fixed column layout for one event kind.
type Schema struct {
	kind     tracker.Kind
	fileName string
	columns  []string
	cells    func(ev tracker.Event) []string
}

func vectorColumns(prefix string) []string {
	return []string{prefix + "_x", prefix + "_y", prefix + "_z"}
}

var schemas = map[tracker.Kind]Schema{
	tracker.KindGaze: {
		kind:     tracker.KindGaze,
		fileName: "GazeData",
		columns:  []string{"x", "y"},
		cells: func(ev tracker.Event) []string {
			return []string{formatFloat(ev.Gaze.X), formatFloat(ev.Gaze.Y)}
		},
	},
	tracker.KindFixation: {
		kind:     tracker.KindFixation,
		fileName: "FixationData",
		columns:  []string{"event_type", "x", "y"},
		cells: func(ev tracker.Event) []string {
			return []string{ev.Fixation.Phase.String(), formatFloat(ev.Fixation.X), formatFloat(ev.Fixation.Y)}
		},
	},
	tracker.KindHeadPose: {
		kind:     tracker.KindHeadPose,
		fileName: "HeadPoseData",
		columns:  append(vectorColumns("head_position"), vectorColumns("head_rotation")...),
		cells: func(ev tracker.Event) []string {
			pose := ev.HeadPose
			out := vectorCells(pose.Position, pose.HasPosition)
			return append(out,
				optionalFloat(pose.Rotation.X, pose.HasRotation.X),
				optionalFloat(pose.Rotation.Y, pose.HasRotation.Y),
				optionalFloat(pose.Rotation.Z, pose.HasRotation.Z),
			)
		},
	},
	tracker.KindEyePosition: {
		kind:     tracker.KindEyePosition,
		fileName: "EyePositionData",
		columns: concat(
			vectorColumns("normalized_left_eye"),
			vectorColumns("left_eye"),
			vectorColumns("normalized_right_eye"),
			vectorColumns("right_eye"),
		),
		cells: func(ev tracker.Event) []string {
			eyes := ev.EyePosition
			return concat(
				vectorCells(eyes.LeftNormalized, true),
				vectorCells(eyes.Left, eyes.HasLeft),
				vectorCells(eyes.RightNormalized, true),
				vectorCells(eyes.Right, eyes.HasRight),
			)
		},
	},
}

// SchemaFor returns the column layout for kind.
func SchemaFor(kind tracker.Kind) (Schema, error) {
	schema, ok := schemas[kind]
	if !ok {
		return Schema{}, fmt.Errorf("%w %q", tracker.ErrUnknownKind, kind)
	}
	return schema, nil
}

// Header returns the column names, starting with both timestamps.
func (s Schema) Header() []string {
	return concat([]string{"timestamp", "engine_timestamp"}, s.columns)
}

// Row renders ev captured at local time. The result always has as many cells
// as Header; unavailable values are empty cells.
func (s Schema) Row(local time.Time, layout string, ev tracker.Event) []string {
	if layout == "" {
		layout = DefaultTimestampLayout
	}
	return concat([]string{local.Format(layout), formatFloat(ev.EngineTimestamp)}, s.cells(ev))
}

// FileName returns the recording file name for kind within a session.
func FileName(prefix string, kind tracker.Kind) (string, error) {
	schema, err := SchemaFor(kind)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s.csv", prefix, schema.fileName), nil
}

// formatFloat uses the shortest plain decimal that round-trips to the same float64.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalFloat(v float64, present bool) string {
	if !present {
		return ""
	}
	return formatFloat(v)
}

func vectorCells(v r3.Vector, present bool) []string {
	if !present {
		return []string{"", "", ""}
	}
	return []string{formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z)}
}

func concat(parts ...[]string) []string {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]string, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
