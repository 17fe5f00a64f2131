package fitbit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors"
	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Fitbit daily time-series resources, one stream each.
const (
	ResourceSteps    = "activities/steps"
	ResourceCalories = "activities/calories"
	ResourceDistance = "activities/distance"
)

// Resources lists every resource the connector reads.
func Resources() []string {
	return []string{ResourceSteps, ResourceCalories, ResourceDistance}
}

const (
	day        = 24 * time.Hour
	dateLayout = "2006-01-02"
)

// Ensure Connector implements the interfaces.
var (
	_ driven.Connector      = (*Connector)(nil)
	_ driven.TokenRefresher = (*Connector)(nil)
)

// Connector reads Fitbit daily activity summaries.
type Connector struct {
	cfg    Config
	client *req.Client
	logger *slog.Logger
}

// New creates a Fitbit connector.
func New(cfg Config) *Connector {
	cfg = cfg.withDefaults()
	cfg.APIBaseURL = strings.TrimSuffix(cfg.APIBaseURL, "/")
	return &Connector{
		cfg:    cfg,
		client: connectors.NewHTTPClient(cfg.Timeout),
		logger: cfg.Logger,
	}
}

// Provider returns the provider type.
func (c *Connector) Provider() domain.ProviderType {
	return domain.ProviderTypeFitbit
}

// Refresh exchanges a refresh token, authenticating the client with HTTP Basic.
// Fitbit rotates refresh tokens on every exchange.
func (c *Connector) Refresh(ctx context.Context, refreshToken string) (*driven.OAuthToken, error) {
	return connectors.RefreshToken(ctx, c.client, connectors.RefreshRequest{
		TokenURL: c.cfg.TokenURL,
		Form: url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {refreshToken},
		},
		BasicUser:     c.cfg.ClientID,
		BasicPassword: c.cfg.ClientSecret,
	})
}

// Fetch reads each requested resource from the day after its watermark up to
// yesterday. Today is never read, so every emitted day is complete and the
// day's epoch millis can serve as the watermark.
func (c *Connector) Fetch(ctx context.Context, fr driven.FetchRequest) (*domain.FetchResult, error) {
	now := fr.Now
	if now.IsZero() {
		now = time.Now()
	}
	yesterday := now.UTC().Truncate(day).Add(-day)

	result := domain.NewFetchResult()
	attempted, failed := 0, 0

	for _, resource := range fr.DataTypes {
		if !isResource(resource) {
			continue
		}

		start := yesterday.Add(-time.Duration(c.cfg.BackfillDays-1) * day)
		if wm, ok := fr.Link.Watermark(resource); ok {
			start = time.UnixMilli(wm).UTC().Truncate(day).Add(day)
		}
		if start.After(yesterday) {
			continue
		}
		attempted++

		points, err := c.timeSeries(ctx, fr.AccessToken, resource, start, yesterday)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			c.logger.Warn("fitbit time series failed",
				"link_id", fr.Link.ID,
				"stream", resource,
				"error", err,
			)
			continue
		}

		result.Points[resource] = append(result.Points[resource], points...)
		for _, p := range points {
			result.Observe(resource, p.ModifiedTime)
		}
	}

	if attempted > 0 && failed == attempted {
		return nil, fmt.Errorf("%w: all %d fitbit resources failed", domain.ErrProviderUnavailable, attempted)
	}
	return result, nil
}

func (c *Connector) timeSeries(ctx context.Context, token, resource string, start, end time.Time) ([]domain.DataPoint, error) {
	endpoint := fmt.Sprintf("%s/1/user/-/%s/date/%s/%s.json",
		c.cfg.APIBaseURL, resource, start.Format(dateLayout), end.Format(dateLayout))

	resp, err := c.client.R().
		SetContext(ctx).
		SetBearerAuthToken(token).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if err := connectors.ClassifyStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("time series %s: %w (status %d)", resource, err, resp.StatusCode)
	}

	var (
		points   []domain.DataPoint
		parseErr error
	)
	key := strings.ReplaceAll(resource, "/", "-")
	gjson.GetBytes(resp.Bytes(), key).ForEach(func(_, entry gjson.Result) bool {
		date, err := time.Parse(dateLayout, entry.Get("dateTime").String())
		if err != nil {
			parseErr = fmt.Errorf("parse %s date: %w", resource, err)
			return false
		}
		startMs := date.UnixMilli()
		points = append(points, domain.DataPoint{
			Provider:     domain.ProviderTypeFitbit,
			DataType:     resource,
			StartTime:    startMs,
			EndTime:      date.Add(day).UnixMilli() - 1,
			Value:        entry.Get("value").Float(),
			ModifiedTime: startMs,
			Stream:       resource,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return points, nil
}

func isResource(s string) bool {
	for _, r := range Resources() {
		if r == s {
			return true
		}
	}
	return false
}
