package record

import "errors"

// ErrDuplicateStream is returned when a session already records the requested kind.
var ErrDuplicateStream = errors.New("stream already subscribed in this session")

// ErrSessionClosed is returned when subscribing to a session that has been closed.
var ErrSessionClosed = errors.New("recording session closed")
