package tracker

import (
	"encoding/json"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"gaze":         KindGaze,
		"Fixation":     KindFixation,
		"head-pose":    KindHeadPose,
		"EYE_POSITION": KindEyePosition,
	}
	for input, want := range cases {
		got, err := ParseKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("pupil")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestFixationPhaseString(t *testing.T) {
	assert.Equal(t, "begin", FixationBegin.String())
	assert.Equal(t, "data", FixationData.String())
	assert.Equal(t, "end", FixationEnd.String())
	assert.Equal(t, "", FixationUnknown.String())
	assert.Equal(t, "", FixationPhase(42).String())
}

func TestFixationPhaseDecodeNeverFails(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"fixation","engine_timestamp":1,"phase":"saccade","x":1,"y":2}`), &ev))
	assert.Equal(t, FixationUnknown, ev.Fixation.Phase)

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"fixation","engine_timestamp":1,"phase":9,"x":1,"y":2}`), &ev))
	assert.Equal(t, FixationPhase(9), ev.Fixation.Phase)
	assert.Empty(t, ev.Fixation.Phase.String())

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"fixation","engine_timestamp":1,"phase":"END"}`), &ev))
	assert.Equal(t, FixationEnd, ev.Fixation.Phase)
}

func TestHeadPoseDecodeKeepsPresence(t *testing.T) {
	var ev Event
	payload := `{"kind":"head_pose","engine_timestamp":12.5,"head_rotation":{"x":0,"z":0.25}}`
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))

	assert.False(t, ev.HeadPose.HasPosition)
	assert.Equal(t, RotationMask{X: true, Y: false, Z: true}, ev.HeadPose.HasRotation)
	assert.Equal(t, 0.0, ev.HeadPose.Rotation.X)
	assert.Equal(t, 0.25, ev.HeadPose.Rotation.Z)
}

func TestEyePositionEncodeOmitsMissingEyes(t *testing.T) {
	ev := Event{
		Kind:            KindEyePosition,
		EngineTimestamp: 3,
		EyePosition: EyePosition{
			LeftNormalized:  r3.Vector{X: 0.4, Y: 0.5, Z: 0.6},
			RightNormalized: r3.Vector{X: 0.6, Y: 0.5, Z: 0.6},
			Right:           r3.Vector{X: 31, Y: 1, Z: 600},
			HasRight:        true,
		},
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"left_eye"`)
	assert.Contains(t, string(data), `"right_eye"`)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ev, decoded)
}

func TestUnknownKindRejected(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"kind":"blink","engine_timestamp":1}`), &ev)
	require.Error(t, err)
}
