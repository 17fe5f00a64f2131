package strava

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors"
	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Strava activity types the connector emits.
const (
	TypeRide = "Ride"
	TypeRun  = "Run"
	TypeWalk = "Walk"
)

// ActivityTypes lists every activity type the connector emits.
func ActivityTypes() []string {
	return []string{TypeRide, TypeRun, TypeWalk}
}

// Stream is the single watermark stream; its value is the newest activity start in ms.
const Stream = "activities"

// Ensure Connector implements the interfaces.
var (
	_ driven.Connector      = (*Connector)(nil)
	_ driven.TokenRefresher = (*Connector)(nil)
)

// Connector lists a Strava athlete's activities.
type Connector struct {
	cfg    Config
	client *req.Client
	logger *slog.Logger
}

// New creates a Strava connector.
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
	return domain.ProviderTypeStrava
}

// Refresh exchanges a refresh token. Strava may rotate the refresh token.
func (c *Connector) Refresh(ctx context.Context, refreshToken string) (*driven.OAuthToken, error) {
	return connectors.RefreshToken(ctx, c.client, connectors.RefreshRequest{
		TokenURL: c.cfg.TokenURL,
		Form: url.Values{
			"client_id":     {c.cfg.ClientID},
			"client_secret": {c.cfg.ClientSecret},
			"grant_type":    {"refresh_token"},
			"refresh_token": {refreshToken},
		},
	})
}

// Fetch pages through activities started after the watermark (or within the
// lookback window on a first sync). Unsupported and disabled types are dropped,
// as are manual activities unless the link syncs manual entries.
func (c *Connector) Fetch(ctx context.Context, fr driven.FetchRequest) (*domain.FetchResult, error) {
	now := fr.Now
	if now.IsZero() {
		now = time.Now()
	}

	enabled := make(map[string]bool, len(fr.DataTypes))
	for _, t := range fr.DataTypes {
		enabled[t] = true
	}

	after := now.Add(-c.cfg.Lookback).Unix()
	if wm, ok := fr.Link.Watermark(Stream); ok {
		after = wm / 1000
	}

	result := domain.NewFetchResult()
	for page := 1; page > 0; {
		activities, next, err := c.activities(ctx, fr.AccessToken, now.Unix(), after, page)
		if err != nil {
			return nil, err
		}

		for _, a := range activities {
			if !enabled[a.DataType] {
				continue
			}
			if a.ManualEntry && !fr.Link.SyncManualEntries {
				continue
			}
			result.Points[a.DataType] = append(result.Points[a.DataType], a)
			result.Observe(Stream, a.ModifiedTime)
		}
		page = next
	}
	return result, nil
}

// activities returns one page of activities and the next page number, or 0
// when the page was not full.
func (c *Connector) activities(ctx context.Context, token string, before, after int64, page int) ([]domain.DataPoint, int, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBearerAuthToken(token).
		SetQueryParams(map[string]string{
			"before":   strconv.FormatInt(before, 10),
			"after":    strconv.FormatInt(after, 10),
			"page":     strconv.Itoa(page),
			"per_page": strconv.Itoa(c.cfg.PerPage),
		}).
		Get(c.cfg.APIBaseURL + "/athlete/activities")
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if err := connectors.ClassifyStatus(resp.StatusCode); err != nil {
		return nil, 0, fmt.Errorf("strava activities page %d: %w (status %d)", page, err, resp.StatusCode)
	}

	list := gjson.ParseBytes(resp.Bytes())
	if !list.IsArray() {
		return nil, 0, fmt.Errorf("%w: strava activities page %d is not a list", domain.ErrProviderUnavailable, page)
	}

	var (
		points   []domain.DataPoint
		count    int
		parseErr error
	)
	list.ForEach(func(_, a gjson.Result) bool {
		count++
		p, err := toPoint(a)
		if err != nil {
			parseErr = err
			return false
		}
		points = append(points, p)
		return true
	})
	if parseErr != nil {
		return nil, 0, parseErr
	}

	next := 0
	if count == c.cfg.PerPage {
		next = page + 1
	}
	return points, next, nil
}

func toPoint(a gjson.Result) (domain.DataPoint, error) {
	started, err := time.Parse(time.RFC3339, a.Get("start_date").String())
	if err != nil {
		return domain.DataPoint{}, fmt.Errorf("parse activity %d start_date: %w", a.Get("id").Int(), err)
	}
	start := started.UnixMilli()
	elapsed := time.Duration(a.Get("elapsed_time").Int()) * time.Second

	return domain.DataPoint{
		Provider:     domain.ProviderTypeStrava,
		DataType:     a.Get("type").String(),
		StartTime:    start,
		EndTime:      started.Add(elapsed).UnixMilli(),
		Value:        a.Get("distance").Float(),
		ManualEntry:  a.Get("manual").Bool(),
		ModifiedTime: start,
		Stream:       Stream,
		Extra: map[string]any{
			"activity_id":          a.Get("id").Int(),
			"distance":             a.Get("distance").Float(),
			"moving_time":          a.Get("moving_time").Int(),
			"total_elevation_gain": a.Get("total_elevation_gain").Float(),
			"max_speed":            a.Get("max_speed").Float(),
			"average_speed":        a.Get("average_speed").Float(),
		},
	}, nil
}
