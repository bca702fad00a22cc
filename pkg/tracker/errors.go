package tracker

import "errors"

// ErrUnknownKind is returned when a stream name does not match a known event kind.
var ErrUnknownKind = errors.New("unknown event kind")

// ErrKindMismatch indicates an event was delivered on a stream of a different kind.
var ErrKindMismatch = errors.New("event kind does not match stream")
