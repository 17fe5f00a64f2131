package googlefit

import (
	"log/slog"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors"
)

// Config contains configuration for the Google Fit connector.
type Config struct {
	ClientID     string
	ClientSecret string

	// TokenURL is the OAuth token endpoint used for refresh_token grants.
	TokenURL string

	// APIBaseURL is the base URL of the Fitness REST API.
	APIBaseURL string

	// PageLimit is the page size for dataPointChanges.
	PageLimit int

	// BackfillWindow is how far before the oldest change a first sync reads datasets.
	BackfillWindow time.Duration

	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the default Google Fit connector configuration.
func DefaultConfig() Config {
	return Config{
		TokenURL:       "https://www.googleapis.com/oauth2/v4/token",
		APIBaseURL:     "https://www.googleapis.com/fitness/v1/users/me",
		PageLimit:      1000,
		BackfillWindow: 7 * 24 * time.Hour,
		Timeout:        connectors.DefaultTimeout,
	}
}
