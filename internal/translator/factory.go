package translator

import (
	"fmt"
	"sort"
	"strings"
)

type constructor func(cfg Config) Capability

var providers = map[string]constructor{
	"openai": func(cfg Config) Capability {
		return NewOpenAIService(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.Timeout)
	},
	"openrouter": func(cfg Config) Capability {
		base := cfg.BaseURL
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIService(cfg.APIKey, base, cfg.Model, cfg.Temperature, cfg.Timeout)
	},
	"ollama": func(cfg Config) Capability {
		return NewOllamaTranslator(cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.Timeout)
	},
	"google": func(cfg Config) Capability {
		return NewGoogleService(cfg.Credentials, cfg.APIKey)
	},
}

// Providers lists the provider names New accepts.
func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the configured provider wrapped with its rate limits.
func New(cfg Config) (Capability, error) {
	ctor, ok := providers[strings.ToLower(cfg.Provider)]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", cfg.Provider, strings.Join(Providers(), ", "))
	}
	return WithRateLimit(ctor(cfg), cfg.RPM, cfg.TPM), nil
}
