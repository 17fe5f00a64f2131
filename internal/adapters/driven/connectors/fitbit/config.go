package fitbit

import (
	"log/slog"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors"
)

// Config contains configuration for the Fitbit connector.
type Config struct {
	ClientID     string
	ClientSecret string

	TokenURL   string
	APIBaseURL string

	// BackfillDays is how many completed days a link without a watermark reads.
	BackfillDays int

	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the default Fitbit connector configuration.
func DefaultConfig() Config {
	return Config{
		TokenURL:     "https://api.fitbit.com/oauth2/token",
		APIBaseURL:   "https://api.fitbit.com",
		BackfillDays: 7,
		Timeout:      connectors.DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TokenURL == "" {
		c.TokenURL = d.TokenURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = d.APIBaseURL
	}
	if c.BackfillDays <= 0 {
		c.BackfillDays = d.BackfillDays
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
