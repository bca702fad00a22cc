package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

// Options configures a recording session.
type Options struct {
	Dir             string
	Prefix          string
	Source          tracker.Source
	Clock           func() time.Time
	Logger          *slog.Logger
	Metrics         *Metrics
	Delimiter       rune
	TimestampLayout string
	// OpenSink creates the sink for each subscribed stream. Defaults to
	// the package-level OpenSink.
	OpenSink func(path string, schema Schema, opts SinkOptions) (*Sink, error)
}

// StreamResult summarises one recorded stream.
type StreamResult struct {
	Kind    tracker.Kind
	Path    string
	Rows    int
	Dropped int
}

// Session owns the sinks and the source binding for a single recording run.
// Each kind is bound to at most one sink for the session's lifetime.
type Session struct {
	dir     string
	prefix  string
	source  tracker.Source
	clock   func() time.Time
	logger  *slog.Logger
	metrics *Metrics
	sinkOpt SinkOptions
	open    func(string, Schema, SinkOptions) (*Sink, error)

	mu     sync.Mutex
	sinks  map[tracker.Kind]*Sink
	order  []tracker.Kind
	closed bool
}

// NewSession validates options and constructs an empty session.
func NewSession(opts Options) (*Session, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("session directory must not be empty")
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		return nil, errors.New("session file prefix must not be empty")
	}
	if opts.Source == nil {
		return nil, errors.New("session source must be provided")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	open := opts.OpenSink
	if open == nil {
		open = OpenSink
	}
	return &Session{
		dir:     opts.Dir,
		prefix:  opts.Prefix,
		source:  opts.Source,
		clock:   clock,
		logger:  logger,
		metrics: opts.Metrics,
		sinkOpt: SinkOptions{
			Delimiter:       opts.Delimiter,
			TimestampLayout: opts.TimestampLayout,
			Metrics:         opts.Metrics,
		},
		open:  open,
		sinks: make(map[tracker.Kind]*Sink),
	}, nil
}

// Subscribe opens the sink for kind and writes its header.
func (s *Session) Subscribe(kind tracker.Kind) error {
	schema, err := SchemaFor(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.sinks[kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStream, kind)
	}

	name, err := FileName(s.prefix, kind)
	if err != nil {
		return err
	}
	sink, err := s.open(filepath.Join(s.dir, name), schema, s.sinkOpt)
	if err != nil {
		return fmt.Errorf("open %s sink: %w", kind, err)
	}
	s.sinks[kind] = sink
	s.order = append(s.order, kind)
	s.logger.Info("stream subscribed", "stream", kind, "file", sink.Path())
	return nil
}

// Deliver records ev on the sink for its kind. Events for kinds without a
// sink, or arriving after Close, are dropped silently.
func (s *Session) Deliver(ev tracker.Event) error {
	s.mu.Lock()
	sink := s.sinks[ev.Kind]
	s.mu.Unlock()

	if sink == nil {
		s.metrics.IncrementDropped(ev.Kind)
		return nil
	}
	_, err := sink.Write(s.clock(), ev)
	return err
}

// Run streams every subscribed kind concurrently until ctx is done or the
// source is exhausted. Cancellation of ctx is a normal stop and yields nil;
// the first sink or source failure ends every stream and is returned.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	kinds := append([]tracker.Kind(nil), s.order...)
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}
	if len(kinds) == 0 {
		return errors.New("no streams subscribed")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			err := s.source.Stream(gctx, kind, s.Deliver)
			if err == nil {
				s.logger.Debug("stream exhausted", "stream", kind)
				return nil
			}
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return fmt.Errorf("%s stream: %w", kind, err)
		})
	}
	return g.Wait()
}

// Close flushes and closes every sink. Later deliveries are dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sinks := make([]*Sink, 0, len(s.order))
	for _, kind := range s.order {
		sinks = append(sinks, s.sinks[kind])
	}
	s.mu.Unlock()

	var errs []error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Streams reports per-stream results in subscription order.
func (s *Session) Streams() []StreamResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StreamResult, 0, len(s.order))
	for _, kind := range s.order {
		sink := s.sinks[kind]
		out = append(out, StreamResult{
			Kind:    kind,
			Path:    sink.Path(),
			Rows:    sink.Rows(),
			Dropped: sink.Dropped(),
		})
	}
	return out
}
