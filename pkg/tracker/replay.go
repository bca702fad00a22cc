package tracker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReplayOptions configures playback of a JSON Lines capture.
type ReplayOptions struct {
	Path string
	// Follow keeps the stream open at end of file and emits lines appended later.
	Follow bool
	// Realtime paces playback by the gaps between engine timestamps.
	Realtime bool
	// TimestampUnit converts engine timestamp deltas to wall time. Defaults to milliseconds.
	TimestampUnit time.Duration
	Sleeper       Sleeper
	Logger        *slog.Logger
}

// ReplaySource replays previously captured engine callbacks.
type ReplaySource struct {
	path     string
	follow   bool
	realtime bool
	unit     time.Duration
	sleeper  Sleeper
	logger   *slog.Logger
}

// NewReplaySource validates options and constructs a replay source.
func NewReplaySource(opts ReplayOptions) (*ReplaySource, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, errors.New("replay path must not be empty")
	}
	unit := opts.TimestampUnit
	if unit <= 0 {
		unit = time.Millisecond
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = defaultSleeper
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ReplaySource{
		path:     path,
		follow:   opts.Follow,
		realtime: opts.Realtime,
		unit:     unit,
		sleeper:  sleeper,
		logger:   logger,
	}, nil
}

// Stream emits every recorded event of kind in file order.
func (r *ReplaySource) Stream(ctx context.Context, kind Kind, emit func(Event) error) error {
	if !kind.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer file.Close()

	var watcher *fsnotify.Watcher
	if r.follow {
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create replay watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(r.path); err != nil {
			return fmt.Errorf("watch replay file: %w", err)
		}
	}

	reader := bufio.NewReader(file)
	var pending []byte
	var previous float64
	emitted := false
	lineNo := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, readErr := reader.ReadBytes('\n')
		pending = append(pending, chunk...)

		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read replay file: %w", readErr)
		}

		if errors.Is(readErr, io.EOF) {
			if !r.follow {
				if len(bytes.TrimSpace(pending)) == 0 {
					return nil
				}
				// A final line without a trailing newline is still a record.
				chunk = pending
				pending = nil
			} else {
				if err := r.waitForAppend(ctx, watcher); err != nil {
					return err
				}
				continue
			}
		} else {
			chunk = pending
			pending = nil
		}

		lineNo++
		line := bytes.TrimSpace(chunk)
		if len(line) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("decode replay line %d: %w", lineNo, err)
		}
		if ev.Kind != kind {
			continue
		}

		if r.realtime && emitted {
			if err := r.sleeper(ctx, r.gap(previous, ev.EngineTimestamp)); err != nil {
				return err
			}
		}
		if err := emit(ev); err != nil {
			return err
		}
		previous = ev.EngineTimestamp
		emitted = true

		if errors.Is(readErr, io.EOF) {
			return nil
		}
	}
}

func (r *ReplaySource) gap(previous, current float64) time.Duration {
	delta := current - previous
	if delta <= 0 {
		return 0
	}
	return time.Duration(delta * float64(r.unit))
}

func (r *ReplaySource) waitForAppend(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("replay watcher closed")
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				return nil
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				r.logger.Warn("replay file moved while following", "path", r.path, "op", event.Op.String())
				return fmt.Errorf("replay file %q removed while following", r.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("replay watcher closed")
			}
			return fmt.Errorf("watch replay file: %w", err)
		}
	}
}
