// Package tracker models the data streams published by an eye-tracking engine
// (gaze point, fixation, head pose, eye position) and the sources that deliver
// them: a deterministic synthetic generator, a JSON Lines replay reader and a
// WebSocket client for a device bridge.
package tracker
