package capture

import (
	"fmt"
	"log/slog"

	"github.com/offlinefirst/eyetrace/pkg/config"
	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

// NewSource builds the event source selected by cfg.
func NewSource(cfg config.Config, logger *slog.Logger) (tracker.Source, error) {
	var (
		src tracker.Source
		err error
	)
	switch cfg.Source.Provider {
	case config.ProviderSynthetic:
		src, err = tracker.NewSyntheticSource(tracker.SyntheticOptions{
			RateHz:    cfg.Source.Synthetic.RateHz,
			MaxEvents: cfg.Source.Synthetic.MaxEvents,
		})
	case config.ProviderReplay:
		src, err = tracker.NewReplaySource(tracker.ReplayOptions{
			Path:     cfg.Source.Replay.Path,
			Follow:   cfg.Source.Replay.Follow,
			Realtime: cfg.Source.Replay.Realtime,
			Logger:   logger,
		})
	case config.ProviderBridge:
		src, err = tracker.NewBridgeSource(tracker.BridgeOptions{
			URL:              cfg.Source.Bridge.URL,
			HandshakeTimeout: cfg.HandshakeTimeout(),
			Logger:           logger,
		})
	default:
		return nil, fmt.Errorf("unsupported source provider %q", cfg.Source.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initialise %s source: %w", cfg.Source.Provider, err)
	}
	return src, nil
}

// SourceEnvironment reports whether the configured source looks usable.
func SourceEnvironment(cfg config.Config) tracker.Environment {
	target := ""
	switch cfg.Source.Provider {
	case config.ProviderReplay:
		target = cfg.Source.Replay.Path
	case config.ProviderBridge:
		target = cfg.Source.Bridge.URL
	}
	return tracker.DetectEnvironment(cfg.Source.Provider, target)
}
