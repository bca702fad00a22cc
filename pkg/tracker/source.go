package tracker

import (
	"context"
	"time"
)

// Source delivers engine callbacks for one stream at a time. Stream blocks
// until ctx is done, the source is exhausted or emit returns an error, and
// returns that error. Events of a single stream are delivered serially;
// separate Stream calls may run concurrently.
type Source interface {
	Stream(ctx context.Context, kind Kind, emit func(Event) error) error
}

// SourceFunc adapts a function literal to the Source interface.
type SourceFunc func(ctx context.Context, kind Kind, emit func(Event) error) error

// Stream calls the underlying function.
func (f SourceFunc) Stream(ctx context.Context, kind Kind, emit func(Event) error) error {
	return f(ctx, kind, emit)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
