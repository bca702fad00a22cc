package runmanifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/eyetrace/pkg/config"
)

// SchemaVersion captures the manifest version for compatibility checks.
const SchemaVersion = 1

// PrefixLayout formats the session start time into the shared file prefix.
const PrefixLayout = "20060102150405"

// Layout represents the filesystem locations for a session. Recordings and
// screenshots share the data directory and are told apart by name.
type Layout struct {
	DataDir        string
	Prefix         string
	ManifestPath   string
	CaptureLogPath string
	ScreensDir     string
}

// Paths holds the relative locations stored in the manifest for portability.
type Paths struct {
	DataDir     string `json:"data_dir"`
	Manifest    string `json:"manifest"`
	CaptureLog  string `json:"capture_log"`
	Screenshots string `json:"screenshots"`
}

// Status summarises the lifecycle of a session.
type Status struct {
	State       string                    `json:"state"`
	Summary     string                    `json:"summary,omitempty"`
	StartedAt   *time.Time                `json:"started_at,omitempty"`
	EndedAt     *time.Time                `json:"ended_at,omitempty"`
	Termination string                    `json:"termination,omitempty"`
	Controller  []ControllerTimelineEntry `json:"controller_timeline,omitempty"`
	Streams     []StreamStatus            `json:"streams,omitempty"`
	Screenshots int                       `json:"screenshots"`
}

// ControllerTimelineEntry records controller state transitions for diagnostics.
type ControllerTimelineEntry struct {
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamStatus captures the outcome of one recorded stream.
type StreamStatus struct {
	Kind    string `json:"kind"`
	File    string `json:"file"`
	Rows    int    `json:"rows"`
	Dropped int    `json:"dropped"`
}

// Session lifecycle states.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateAborted   = "aborted"
	StateErrored   = "error"
)

// SourceInfo records which provider fed the session.
type SourceInfo struct {
	Provider  string `json:"provider"`
	Target    string `json:"target,omitempty"`
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

// Manifest is the durable metadata describing a session.
type Manifest struct {
	SchemaVersion int        `json:"schema_version"`
	SessionID     string     `json:"session_id"`
	Prefix        string     `json:"prefix"`
	Mode          string     `json:"mode"`
	CreatedAt     time.Time  `json:"created_at"`
	Hostname      string     `json:"hostname"`
	AppVersion    string     `json:"app_version"`
	ConfigSource  string     `json:"config_source"`
	Source        SourceInfo `json:"source"`
	Paths         Paths      `json:"paths"`
	Status        Status     `json:"status"`
}

// Options captures the knobs for creating a new manifest.
type Options struct {
	SessionID  string
	Mode       string
	CreatedAt  time.Time
	Hostname   string
	AppVersion string
	Config     config.Config
	Source     SourceInfo
	Layout     Layout
}

// New constructs a manifest using the supplied options. A random session ID
// is assigned when none is given.
func New(opts Options) Manifest {
	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	return Manifest{
		SchemaVersion: SchemaVersion,
		SessionID:     id,
		Prefix:        opts.Layout.Prefix,
		Mode:          opts.Mode,
		CreatedAt:     opts.CreatedAt.UTC(),
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  opts.Config.Origin,
		Source:        opts.Source,
		Paths:         opts.Layout.RelativePaths(),
		Status:        Status{State: StatePending},
	}
}

// BuildLayout derives the session file locations from the data directory and prefix.
func BuildLayout(dataDir, prefix string) Layout {
	return Layout{
		DataDir:        dataDir,
		Prefix:         prefix,
		ManifestPath:   filepath.Join(dataDir, prefix+"_manifest.json"),
		CaptureLogPath: filepath.Join(dataDir, prefix+"_capture.log"),
		ScreensDir:     dataDir,
	}
}

// RelativePaths exposes the manifest-friendly relative paths for the layout.
func (l Layout) RelativePaths() Paths {
	screens, err := filepath.Rel(l.DataDir, l.ScreensDir)
	if err != nil {
		screens = l.ScreensDir
	}
	return Paths{
		DataDir:     ".",
		Manifest:    filepath.Base(l.ManifestPath),
		CaptureLog:  filepath.Base(l.CaptureLogPath),
		Screenshots: screens,
	}
}

// EnsureFilesystem creates the data directory and an empty capture log.
func EnsureFilesystem(layout Layout) error {
	for _, dir := range []string{layout.DataDir, layout.ScreensDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	file, err := os.OpenFile(layout.CaptureLogPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("initialise capture log: %w", err)
	}
	defer file.Close()

	return nil
}

// Save writes the manifest JSON to disk with indentation for readability.
func Save(man Manifest, path string) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest JSON file from disk.
func Load(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("decode manifest: %w", err)
	}
	return man, nil
}

// ResolvePrefix chooses the file prefix for a session started at now (local
// time) and avoids colliding with files an earlier session left in dataDir.
func ResolvePrefix(dataDir string, now time.Time) (string, error) {
	if strings.TrimSpace(dataDir) == "" {
		return "", errors.New("data directory must not be empty")
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("inspect data directory: %w", err)
	}
	taken := func(prefix string) bool {
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), prefix+"_") {
				return true
			}
		}
		return false
	}

	base := now.Local().Format(PrefixLayout)
	candidate := base
	for suffix := 1; taken(candidate); suffix++ {
		candidate = fmt.Sprintf("%s_%02d", base, suffix)
	}
	return candidate, nil
}
