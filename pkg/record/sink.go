package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

// DefaultDelimiter separates cells in recordings.
const DefaultDelimiter = ';'

// SinkOptions tunes how rows are rendered.
type SinkOptions struct {
	Delimiter       rune
	TimestampLayout string
	Metrics         *Metrics
}

// Sink is an append-only delimited text destination for one event kind.
// Writes after Close are dropped without error.
type Sink struct {
	mu      sync.Mutex
	schema  Schema
	path    string
	out     io.WriteCloser
	writer  *csv.Writer
	layout  string
	metrics *Metrics
	closed  bool
	rows    int
	dropped int
}

// OpenSink creates (or truncates) the file at path, creating missing parent
// directories, and writes the schema header.
func OpenSink(path string, schema Schema, opts SinkOptions) (*Sink, error) {
	if path == "" {
		return nil, errors.New("sink path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure sink directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create sink file: %w", err)
	}
	sink, err := NewSink(file, schema, opts)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	sink.path = path
	return sink, nil
}

// NewSink wraps out and writes the schema header to it.
func NewSink(out io.WriteCloser, schema Schema, opts SinkOptions) (*Sink, error) {
	if out == nil {
		return nil, errors.New("sink writer must not be nil")
	}
	if !schema.kind.Valid() {
		return nil, errors.New("sink schema must not be empty")
	}
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	layout := opts.TimestampLayout
	if layout == "" {
		layout = DefaultTimestampLayout
	}

	writer := csv.NewWriter(out)
	writer.Comma = delimiter

	s := &Sink{
		schema:  schema,
		out:     out,
		writer:  writer,
		layout:  layout,
		metrics: opts.Metrics,
	}
	if err := s.writeRow(schema.Header()); err != nil {
		return nil, fmt.Errorf("write %s header: %w", schema.kind, err)
	}
	return s, nil
}

// Write appends one row for ev captured at local time. It reports false
// without error when the sink has already been closed.
func (s *Sink) Write(local time.Time, ev tracker.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.dropped++
		s.metrics.IncrementDropped(s.schema.kind)
		return false, nil
	}
	if ev.Kind != s.schema.kind {
		return false, fmt.Errorf("%w: got %s on %s sink", tracker.ErrKindMismatch, ev.Kind, s.schema.kind)
	}

	if err := s.writeRow(s.schema.Row(local, s.layout, ev)); err != nil {
		s.metrics.IncrementWriteErrors(s.schema.kind)
		return false, fmt.Errorf("write %s row: %w", s.schema.kind, err)
	}
	s.rows++
	s.metrics.IncrementRecorded(s.schema.kind)
	return true, nil
}

func (s *Sink) writeRow(cells []string) error {
	if err := s.writer.Write(cells); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Close flushes and closes the destination. Calling Close again is a no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.out.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s sink: %w", s.schema.kind, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s sink: %w", s.schema.kind, closeErr)
	}
	return nil
}

// Path returns the file path for sinks created by OpenSink.
func (s *Sink) Path() string {
	return s.path
}

// Rows returns the number of data rows written, excluding the header.
func (s *Sink) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Dropped returns the number of events discarded after Close.
func (s *Sink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
