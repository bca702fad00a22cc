package record

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

type failingWriter struct {
	err error
}

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }
func (f failingWriter) Close() error              { return nil }

// headerOnlyWriter accepts the header flush and fails every later write.
type headerOnlyWriter struct {
	bufferCloser
	writes int
	err    error
}

func (h *headerOnlyWriter) Write(p []byte) (int, error) {
	h.writes++
	if h.writes > 1 {
		return 0, h.err
	}
	return h.bufferCloser.Write(p)
}

func readRows(t *testing.T, data string) [][]string {
	t.Helper()
	reader := csv.NewReader(strings.NewReader(data))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	return rows
}

func gazeEvent(ts float64) tracker.Event {
	return tracker.Event{Kind: tracker.KindGaze, EngineTimestamp: ts, Gaze: tracker.GazePoint{X: ts, Y: ts * 2}}
}

func TestOpenSinkCreatesDirectoryAndHeader(t *testing.T) {
	schema, err := SchemaFor(tracker.KindGaze)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "data", "x_GazeData.csv")
	sink, err := OpenSink(path, schema, SinkOptions{})
	require.NoError(t, err)

	ok, err := sink.Write(capturedAt, gazeEvent(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows := readRows(t, string(data))
	require.Len(t, rows, 2)
	assert.Equal(t, schema.Header(), rows[0])
	assert.Equal(t, path, sink.Path())
}

func TestSinkWritesHeaderExactlyOnceForEveryKind(t *testing.T) {
	for _, kind := range tracker.Kinds() {
		schema, err := SchemaFor(kind)
		require.NoError(t, err)

		buf := &bufferCloser{}
		sink, err := NewSink(buf, schema, SinkOptions{})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := sink.Write(capturedAt, tracker.Event{Kind: kind, EngineTimestamp: float64(i)})
			require.NoError(t, err)
		}
		require.NoError(t, sink.Close())

		rows := readRows(t, buf.String())
		require.Len(t, rows, 4, kind)
		assert.Equal(t, schema.Header(), rows[0], kind)
		for _, row := range rows[1:] {
			assert.NotEqual(t, schema.Header(), row)
			assert.Len(t, row, len(schema.Header()), kind)
		}
		assert.Equal(t, 1, strings.Count(buf.String(), "engine_timestamp"), kind)
	}
}

func TestSinkDropsWritesAfterClose(t *testing.T) {
	schema, err := SchemaFor(tracker.KindGaze)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	buf := &bufferCloser{}
	sink, err := NewSink(buf, schema, SinkOptions{Metrics: metrics})
	require.NoError(t, err)

	_, err = sink.Write(capturedAt, gazeEvent(1))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	require.True(t, buf.closed)

	before := buf.Len()
	ok, err := sink.Write(capturedAt, gazeEvent(2))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, buf.Len())
	assert.Equal(t, 1, sink.Rows())
	assert.Equal(t, 1, sink.Dropped())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsRecorded.WithLabelValues("gaze")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsDropped.WithLabelValues("gaze")))
}

func TestSinkCustomDelimiter(t *testing.T) {
	schema, err := SchemaFor(tracker.KindGaze)
	require.NoError(t, err)

	buf := &bufferCloser{}
	sink, err := NewSink(buf, schema, SinkOptions{Delimiter: '\t', TimestampLayout: "15:04:05"})
	require.NoError(t, err)
	_, err = sink.Write(capturedAt, gazeEvent(3))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "09:26:53\t3\t3\t6", lines[1])
}

func TestSinkRejectsMismatchedKind(t *testing.T) {
	schema, err := SchemaFor(tracker.KindGaze)
	require.NoError(t, err)

	sink, err := NewSink(&bufferCloser{}, schema, SinkOptions{})
	require.NoError(t, err)
	_, err = sink.Write(capturedAt, tracker.Event{Kind: tracker.KindFixation})
	require.ErrorIs(t, err, tracker.ErrKindMismatch)
}

func TestSinkSurfacesWriteFailure(t *testing.T) {
	schema, err := SchemaFor(tracker.KindGaze)
	require.NoError(t, err)

	diskFull := errors.New("no space left on device")
	_, err = NewSink(failingWriter{err: diskFull}, schema, SinkOptions{})
	require.ErrorIs(t, err, diskFull)
}

func TestSinkSurfacesRowWriteFailure(t *testing.T) {
	schema, err := SchemaFor(tracker.KindGaze)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	diskFull := errors.New("no space left on device")
	out := &headerOnlyWriter{err: diskFull}
	sink, err := NewSink(out, schema, SinkOptions{Metrics: metrics})
	require.NoError(t, err)

	ok, err := sink.Write(capturedAt, gazeEvent(1))
	require.ErrorIs(t, err, diskFull)
	assert.ErrorContains(t, err, "write gaze row")
	assert.False(t, ok)
	assert.Zero(t, sink.Rows())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkWriteErrors.WithLabelValues("gaze")))
	assert.Zero(t, testutil.ToFloat64(metrics.EventsRecorded.WithLabelValues("gaze")))

	rows := readRows(t, out.String())
	require.Len(t, rows, 1)
	assert.Equal(t, schema.Header(), rows[0])
}
