package record

import (
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

var capturedAt = time.Date(2024, 3, 14, 9, 26, 53, 589793200, time.Local)

func TestSchemaHeaders(t *testing.T) {
	want := map[tracker.Kind]string{
		tracker.KindGaze:        "timestamp;engine_timestamp;x;y",
		tracker.KindFixation:    "timestamp;engine_timestamp;event_type;x;y",
		tracker.KindHeadPose:    "timestamp;engine_timestamp;head_position_x;head_position_y;head_position_z;head_rotation_x;head_rotation_y;head_rotation_z",
		tracker.KindEyePosition: "timestamp;engine_timestamp;normalized_left_eye_x;normalized_left_eye_y;normalized_left_eye_z;left_eye_x;left_eye_y;left_eye_z;normalized_right_eye_x;normalized_right_eye_y;normalized_right_eye_z;right_eye_x;right_eye_y;right_eye_z",
	}
	for kind, header := range want {
		schema, err := SchemaFor(kind)
		require.NoError(t, err)
		assert.Equal(t, header, strings.Join(schema.Header(), ";"), kind)
	}

	_, err := SchemaFor("blink")
	require.ErrorIs(t, err, tracker.ErrUnknownKind)
}

func TestGazeRowKeepsFullPrecision(t *testing.T) {
	schema, err := SchemaFor(tracker.KindGaze)
	require.NoError(t, err)

	row := schema.Row(capturedAt, "", tracker.Event{
		Kind:            tracker.KindGaze,
		EngineTimestamp: 1234567890123,
		Gaze:            tracker.GazePoint{X: 812.3456789012345, Y: 0.1},
	})
	assert.Equal(t, []string{"14/03/2024 09:26:53.5897932", "1234567890123", "812.3456789012345", "0.1"}, row)
}

func TestHeadPoseRowLeavesMissingValuesEmpty(t *testing.T) {
	schema, err := SchemaFor(tracker.KindHeadPose)
	require.NoError(t, err)

	row := schema.Row(capturedAt, "", tracker.Event{
		Kind:            tracker.KindHeadPose,
		EngineTimestamp: 42,
		HeadPose: tracker.HeadPose{
			Rotation:    r3.Vector{X: 0, Y: 0.5, Z: -0.25},
			HasRotation: tracker.RotationMask{X: true, Z: true},
		},
	})
	require.Len(t, row, len(schema.Header()))
	assert.Equal(t, []string{"", "", "", "0", "", "-0.25"}, row[2:])
}

func TestEyePositionRowColumnCountIsConstant(t *testing.T) {
	schema, err := SchemaFor(tracker.KindEyePosition)
	require.NoError(t, err)

	full := schema.Row(capturedAt, "", tracker.Event{
		Kind: tracker.KindEyePosition,
		EyePosition: tracker.EyePosition{
			LeftNormalized: r3.Vector{X: 0.4, Y: 0.5, Z: 0.6}, Left: r3.Vector{X: -31, Y: 2, Z: 610}, HasLeft: true,
			RightNormalized: r3.Vector{X: 0.6, Y: 0.5, Z: 0.6}, Right: r3.Vector{X: 31, Y: 2, Z: 611}, HasRight: true,
		},
	})
	missing := schema.Row(capturedAt, "", tracker.Event{
		Kind: tracker.KindEyePosition,
		EyePosition: tracker.EyePosition{
			LeftNormalized:  r3.Vector{X: 0.4, Y: 0.5, Z: 0.6},
			RightNormalized: r3.Vector{X: 0.6, Y: 0.5, Z: 0.6},
		},
	})

	require.Len(t, full, 14)
	require.Len(t, missing, 14)
	assert.Equal(t, []string{"", "", ""}, missing[5:8])
	assert.Equal(t, []string{"", "", ""}, missing[11:14])
	assert.Equal(t, []string{"0.4", "0.5", "0.6"}, missing[2:5])
}

func TestFixationRowUnknownPhaseIsEmpty(t *testing.T) {
	schema, err := SchemaFor(tracker.KindFixation)
	require.NoError(t, err)

	row := schema.Row(capturedAt, "", tracker.Event{
		Kind:     tracker.KindFixation,
		Fixation: tracker.Fixation{Phase: tracker.FixationPhase(17), X: 1, Y: 2},
	})
	assert.Equal(t, []string{"", "1", "2"}, row[2:])

	row = schema.Row(capturedAt, "", tracker.Event{
		Kind:     tracker.KindFixation,
		Fixation: tracker.Fixation{Phase: tracker.FixationEnd},
	})
	assert.Equal(t, "end", row[2])
}

func TestFileName(t *testing.T) {
	name, err := FileName("20240314092653", tracker.KindHeadPose)
	require.NoError(t, err)
	assert.Equal(t, "20240314092653_HeadPoseData.csv", name)

	name, err = FileName("20240314092653", tracker.KindEyePosition)
	require.NoError(t, err)
	assert.Equal(t, "20240314092653_EyePositionData.csv", name)
}
