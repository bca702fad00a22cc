package tracker

import (
	"os"
	"strings"
)

// Provider names accepted by configuration.
const (
	ProviderSynthetic = "synthetic"
	ProviderReplay    = "replay"
	ProviderBridge    = "bridge"
)

// Environment summarises whether the configured source can be opened.
type Environment struct {
	Provider  string
	Target    string
	Available bool
	Message   string
}

// DetectEnvironment inspects the configured provider without connecting to it.
func DetectEnvironment(provider, target string) Environment {
	env := Environment{Provider: strings.ToLower(strings.TrimSpace(provider)), Target: target}
	switch env.Provider {
	case ProviderSynthetic, "":
		env.Provider = ProviderSynthetic
		env.Available = true
		env.Message = "synthetic engine stub"
	case ProviderReplay:
		info, err := os.Stat(target)
		switch {
		case err != nil:
			env.Message = "replay file not readable: " + err.Error()
		case info.IsDir():
			env.Message = "replay path is a directory"
		default:
			env.Available = true
			env.Message = "replay capture found"
		}
	case ProviderBridge:
		if err := ValidateBridgeURL(target); err != nil {
			env.Message = err.Error()
		} else {
			env.Available = true
			env.Message = "bridge endpoint configured (not probed)"
		}
	default:
		env.Message = "unknown source provider"
	}
	return env
}
