package permissions

import (
	"os"
	"runtime"
	"strings"

	"golang.org/x/term"
)

// Status enumerates coarse permission results for host capabilities.
type Status string

const (
	// StatusUnknown indicates no explicit signal about permission state.
	StatusUnknown Status = "unknown"
	// StatusGranted signals that permission was previously granted.
	StatusGranted Status = "granted"
	// StatusDenied indicates the user has explicitly denied access.
	StatusDenied Status = "denied"
	// StatusPromptRequired means the platform will prompt at runtime.
	StatusPromptRequired Status = "prompt"
	// StatusUnavailable reports that the capability is not supported.
	StatusUnavailable Status = "unavailable"
)

// Environment variables that override probing.
const (
	EnvScreenRecording = "EYETRACE_SCREEN_RECORDING"
	EnvInteractive     = "EYETRACE_INTERACTIVE"
)

// ProbeResult represents the coarse state for a permission surface.
type ProbeResult struct {
	Status   Status
	Message  string
	Guidance string
}

// LookupEnvFunc exposes environment probing for testability.
type LookupEnvFunc func(string) (string, bool)

// DefaultLookupEnv is the standard environment resolver.
func DefaultLookupEnv(key string) (string, bool) {
	return lookupEnv(key)
}

// lookupEnv is declared for swapping in tests.
var lookupEnv = func(key string) (string, bool) {
	return os.LookupEnv(key)
}

// ProbeScreenRecording inspects the execution environment for screen recording permissions.
func ProbeScreenRecording(lookup LookupEnvFunc) ProbeResult {
	if lookup == nil {
		lookup = lookupEnv
	}
	if value, ok := lookup(EnvScreenRecording); ok {
		return interpretPermissionFlag("screen recording", value)
	}
	switch runtime.GOOS {
	case "darwin":
		return ProbeResult{Status: StatusPromptRequired, Message: "awaiting macOS screen recording authorisation"}
	case "windows":
		return ProbeResult{Status: StatusGranted, Message: "desktop duplication available"}
	case "linux", "freebsd", "openbsd":
		if hasDisplay(lookup) {
			return ProbeResult{Status: StatusGranted, Message: "display server detected"}
		}
		return ProbeResult{
			Status:   StatusUnavailable,
			Message:  "no display server detected",
			Guidance: "set DISPLAY or WAYLAND_DISPLAY before enabling screenshots",
		}
	}
	return ProbeResult{Status: StatusUnavailable, Message: "screen recording unsupported on this platform"}
}

// ProbeTerminal reports whether fd is an interactive terminal able to read
// single keypresses.
func ProbeTerminal(fd int, lookup LookupEnvFunc) ProbeResult {
	if lookup == nil {
		lookup = lookupEnv
	}
	if value, ok := lookup(EnvInteractive); ok {
		return interpretPermissionFlag("interactive terminal", value)
	}
	if term.IsTerminal(fd) {
		return ProbeResult{Status: StatusGranted, Message: "interactive terminal attached"}
	}
	return ProbeResult{
		Status:   StatusUnavailable,
		Message:  "stdin is not a terminal",
		Guidance: "pass --mode and --duration to run without the menu",
	}
}

func hasDisplay(lookup LookupEnvFunc) bool {
	for _, key := range []string{"DISPLAY", "WAYLAND_DISPLAY"} {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}

func interpretPermissionFlag(name, value string) ProbeResult {
	normalised := strings.ToLower(strings.TrimSpace(value))
	switch normalised {
	case "granted", "allow", "allowed", "yes", "true":
		return ProbeResult{Status: StatusGranted, Message: name + " permission pre-authorised via env override"}
	case "denied", "no", "false", "blocked":
		return ProbeResult{Status: StatusDenied, Message: name + " permission denied via env override", Guidance: "update EYETRACE_* env to re-test"}
	case "prompt", "ask":
		return ProbeResult{Status: StatusPromptRequired, Message: name + " permission will prompt at runtime"}
	case "unavailable", "unsupported":
		return ProbeResult{Status: StatusUnavailable, Message: name + " permission unavailable on this platform"}
	default:
		return ProbeResult{Status: StatusUnknown, Message: name + " permission state unknown"}
	}
}

// StatusString returns the string representation for manifest integration.
func (p ProbeResult) StatusString() string {
	if p.Status == "" {
		return string(StatusUnknown)
	}
	return string(p.Status)
}

// Usable reports whether the capability can be exercised without further
// user action.
func (p ProbeResult) Usable() bool {
	return p.Status == StatusGranted || p.Status == StatusPromptRequired
}
