package llm

import (
	"fmt"
	"net/http"
	"time"
)

// Config selects and configures a provider.
type Config struct {
	Provider      string // google, openai or offline
	APIKey        string
	BaseURL       string
	Model         string
	RatePerMinute int
	HTTPTimeout   time.Duration
}

// New builds the generator described by cfg. A Gemini provider without an
// API key falls back to Offline.
func New(cfg Config) (Generator, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}

	var g Generator
	switch cfg.Provider {
	case "", "offline":
		return Offline{}, nil
	case "google", "gemini":
		if cfg.APIKey == "" {
			return Offline{}, nil
		}
		g = NewGoogle(cfg.APIKey, cfg.BaseURL, cfg.Model, client)
	case "openai":
		if cfg.Model == "" {
			return nil, fmt.Errorf("model provider openai requires a model name")
		}
		g = NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, client)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}

	if cfg.RatePerMinute > 0 {
		g = NewLimited(g, cfg.RatePerMinute)
	}
	return g, nil
}
