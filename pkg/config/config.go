package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const DefaultFileName = "eyetrace.yaml"

// Source providers understood by the capture pipeline.
const (
	ProviderSynthetic = "synthetic"
	ProviderReplay    = "replay"
	ProviderBridge    = "bridge"
)

// Environment variables that override file values.
const (
	EnvDataDir   = "EYETRACE_DATA_DIR"
	EnvSource    = "EYETRACE_SOURCE"
	EnvBridgeURL = "EYETRACE_BRIDGE_URL"
	EnvLogLevel  = "EYETRACE_LOG_LEVEL"
)

// Config captures the user-adjustable knobs for recording sessions.
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Source      SourceConfig      `yaml:"source"`
	Recording   RecordingConfig   `yaml:"recording"`
	Screenshots ScreenshotsConfig `yaml:"screenshots"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`

	// Origin indicates where the configuration came from (defaults or a file path).
	Origin string `yaml:"-"`
}

// PathsConfig controls filesystem locations used by the CLI.
type PathsConfig struct {
	DataDir string `yaml:"data_dir"`
}

// SourceConfig selects and tunes the event source.
type SourceConfig struct {
	Provider  string          `yaml:"provider"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	Replay    ReplayConfig    `yaml:"replay"`
	Bridge    BridgeConfig    `yaml:"bridge"`
}

// SyntheticConfig drives the built-in generator.
type SyntheticConfig struct {
	RateHz    float64 `yaml:"rate_hz"`
	MaxEvents int     `yaml:"max_events"`
}

// ReplayConfig points at a JSON-lines capture to play back.
type ReplayConfig struct {
	Path     string `yaml:"path"`
	Follow   bool   `yaml:"follow"`
	Realtime bool   `yaml:"realtime"`
}

// BridgeConfig locates a websocket device bridge.
type BridgeConfig struct {
	URL                     string `yaml:"url"`
	HandshakeTimeoutSeconds int    `yaml:"handshake_timeout_seconds"`
}

// RecordingConfig shapes the delimited output files.
type RecordingConfig struct {
	Delimiter       string `yaml:"delimiter"`
	TimestampLayout string `yaml:"timestamp_layout"`
}

// ScreenshotsConfig controls annotated capture output.
type ScreenshotsConfig struct {
	Format      string `yaml:"format"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	Metadata    bool   `yaml:"metadata"`
}

// MetricsConfig exposes the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			DataDir: "data",
		},
		Source: SourceConfig{
			Provider: ProviderSynthetic,
			Synthetic: SyntheticConfig{
				RateHz: 30,
			},
			Bridge: BridgeConfig{
				HandshakeTimeoutSeconds: 10,
			},
		},
		Recording: RecordingConfig{
			Delimiter:       ";",
			TimestampLayout: "02/01/2006 15:04:05.0000000",
		},
		Screenshots: ScreenshotsConfig{
			Format:      "jpeg",
			JPEGQuality: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Origin: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./eyetrace.yaml but tolerates a missing file.
// EYETRACE_* environment variables are applied last.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	file, err := os.Open(candidate)
	switch {
	case err == nil:
		defer file.Close()
		if err := decode(file, &cfg); err != nil {
			return cfg, fmt.Errorf("config file %q: %w", candidate, err)
		}
		cfg.Origin = candidate
	case errors.Is(err, os.ErrNotExist):
		if explicit {
			return cfg, fmt.Errorf("config file %q not found", candidate)
		}
	default:
		return cfg, fmt.Errorf("open config file %q: %w", candidate, err)
	}

	if lookup != nil {
		cfg.applyEnv(lookup)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDataDir); ok && strings.TrimSpace(v) != "" {
		c.Paths.DataDir = v
	}
	if v, ok := lookup(EnvSource); ok && strings.TrimSpace(v) != "" {
		c.Source.Provider = v
	}
	if v, ok := lookup(EnvBridgeURL); ok && strings.TrimSpace(v) != "" {
		c.Source.Bridge.URL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = v
	}
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	switch c.Source.Provider {
	case ProviderSynthetic:
		if c.Source.Synthetic.RateHz <= 0 {
			return errors.New("source.synthetic.rate_hz must be positive")
		}
		if c.Source.Synthetic.MaxEvents < 0 {
			return errors.New("source.synthetic.max_events must not be negative")
		}
	case ProviderReplay:
		if strings.TrimSpace(c.Source.Replay.Path) == "" {
			return errors.New("source.replay.path is required for the replay provider")
		}
	case ProviderBridge:
		if strings.TrimSpace(c.Source.Bridge.URL) == "" {
			return errors.New("source.bridge.url is required for the bridge provider")
		}
		if c.Source.Bridge.HandshakeTimeoutSeconds <= 0 {
			return errors.New("source.bridge.handshake_timeout_seconds must be positive")
		}
	default:
		return fmt.Errorf("unsupported source provider %q", c.Source.Provider)
	}

	if utf8.RuneCountInString(c.Recording.Delimiter) != 1 {
		return fmt.Errorf("recording.delimiter must be a single character, got %q", c.Recording.Delimiter)
	}
	switch c.Recording.Delimiter {
	case "\"", "\r", "\n":
		return fmt.Errorf("recording.delimiter %q is not allowed", c.Recording.Delimiter)
	}
	if strings.TrimSpace(c.Recording.TimestampLayout) == "" {
		return errors.New("recording.timestamp_layout must not be empty")
	}

	switch c.Screenshots.Format {
	case "jpeg", "png":
	default:
		return fmt.Errorf("unsupported screenshots.format %q", c.Screenshots.Format)
	}
	if c.Screenshots.JPEGQuality < 1 || c.Screenshots.JPEGQuality > 100 {
		return errors.New("screenshots.jpeg_quality must be between 1 and 100")
	}

	return nil
}

func (c *Config) normalize() {
	defaults := Default()

	c.Paths.DataDir = filepath.Clean(strings.TrimSpace(c.Paths.DataDir))
	if c.Paths.DataDir == "." || c.Paths.DataDir == "" {
		c.Paths.DataDir = defaults.Paths.DataDir
	}

	c.Source.Provider = strings.ToLower(strings.TrimSpace(c.Source.Provider))
	if c.Source.Provider == "" {
		c.Source.Provider = defaults.Source.Provider
	}
	c.Source.Replay.Path = strings.TrimSpace(c.Source.Replay.Path)
	c.Source.Bridge.URL = strings.TrimSpace(c.Source.Bridge.URL)
	if c.Source.Bridge.HandshakeTimeoutSeconds == 0 {
		c.Source.Bridge.HandshakeTimeoutSeconds = defaults.Source.Bridge.HandshakeTimeoutSeconds
	}

	if c.Recording.Delimiter == "" {
		c.Recording.Delimiter = defaults.Recording.Delimiter
	}
	if c.Recording.Delimiter == `\t` {
		c.Recording.Delimiter = "\t"
	}
	if strings.TrimSpace(c.Recording.TimestampLayout) == "" {
		c.Recording.TimestampLayout = defaults.Recording.TimestampLayout
	}

	c.Screenshots.Format = strings.ToLower(strings.TrimSpace(c.Screenshots.Format))
	switch c.Screenshots.Format {
	case "":
		c.Screenshots.Format = defaults.Screenshots.Format
	case "jpg":
		c.Screenshots.Format = "jpeg"
	}
	if c.Screenshots.JPEGQuality == 0 {
		c.Screenshots.JPEGQuality = defaults.Screenshots.JPEGQuality
	}

	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)

	if level, err := NormalizeLogLevel(c.Logging.Level); err == nil {
		c.Logging.Level = level
	}
	if format, err := NormalizeFormat(c.Logging.Format); err == nil {
		c.Logging.Format = format
	}
}

// DelimiterRune returns the configured field separator.
func (c Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Recording.Delimiter)
	return r
}

// HandshakeTimeout converts the bridge handshake timeout to a duration.
func (c Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Source.Bridge.HandshakeTimeoutSeconds) * time.Second
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
