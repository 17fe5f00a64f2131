package strava

import (
	"log/slog"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors"
)

// Config contains configuration for the Strava connector.
type Config struct {
	ClientID     string
	ClientSecret string

	TokenURL   string
	APIBaseURL string

	// PerPage is the activity page size. Maximum is 200.
	PerPage int

	// Lookback bounds the first sync of a link.
	Lookback time.Duration

	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the default Strava connector configuration.
func DefaultConfig() Config {
	return Config{
		TokenURL:   "https://www.strava.com/oauth/token",
		APIBaseURL: "https://www.strava.com/api/v3",
		PerPage:    200,
		Lookback:   500 * 24 * time.Hour,
		Timeout:    connectors.DefaultTimeout,
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
	if c.PerPage <= 0 || c.PerPage > 200 {
		c.PerPage = d.PerPage
	}
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
