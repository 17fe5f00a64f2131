package googlefit

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

// Ensure Connector implements the interfaces.
var (
	_ driven.Connector      = (*Connector)(nil)
	_ driven.TokenRefresher = (*Connector)(nil)
)

// Connector reads Google Fit data sources through the Fitness REST API.
type Connector struct {
	cfg    Config
	client *req.Client
	logger *slog.Logger
}

// New creates a Google Fit connector.
func New(cfg Config) *Connector {
	defaults := DefaultConfig()
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaults.PageLimit
	}
	if cfg.BackfillWindow <= 0 {
		cfg.BackfillWindow = defaults.BackfillWindow
	}
	cfg.APIBaseURL = strings.TrimSuffix(cfg.APIBaseURL, "/")

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		cfg:    cfg,
		client: connectors.NewHTTPClient(cfg.Timeout),
		logger: logger,
	}
}

// Provider returns the provider type.
func (c *Connector) Provider() domain.ProviderType {
	return domain.ProviderTypeGoogleFit
}

// Refresh exchanges a refresh token for a new access token.
func (c *Connector) Refresh(ctx context.Context, refreshToken string) (*driven.OAuthToken, error) {
	return connectors.RefreshToken(ctx, c.client, connectors.RefreshRequest{
		TokenURL: c.cfg.TokenURL,
		Form: url.Values{
			"client_id":     {c.cfg.ClientID},
			"client_secret": {c.cfg.ClientSecret},
			"refresh_token": {refreshToken},
			"grant_type":    {"refresh_token"},
		},
	})
}

// Fetch reads every stream of the requested native types.
// Streams without a watermark are read in full and backfilled from datasets;
// streams with one only return changes modified after it.
func (c *Connector) Fetch(ctx context.Context, fr driven.FetchRequest) (*domain.FetchResult, error) {
	now := fr.Now
	if now.IsZero() {
		now = time.Now()
	}

	result := domain.NewFetchResult()
	attempted, failed := 0, 0

	for _, native := range fr.DataTypes {
		dt, ok := dataTypes[native]
		if !ok {
			continue
		}
		for _, s := range dt.Streams {
			if s.Manual() && !fr.Link.SyncManualEntries {
				continue
			}
			attempted++

			points, err := c.readStream(ctx, fr, native, dt.ValueField, s, now)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				failed++
				c.logger.Warn("google fit stream failed, dropping its changes",
					"link_id", fr.Link.ID,
					"stream", s.ID,
					"error", err,
				)
				continue
			}

			result.Points[native] = append(result.Points[native], points...)
			for _, p := range points {
				if p.ModifiedTime > 0 {
					result.Observe(s.ID, p.ModifiedTime)
				}
			}
			// A backfilled stream without modified times is consumed up to now.
			if _, had := fr.Link.Watermark(s.ID); !had {
				if _, seen := result.Watermarks[s.ID]; !seen {
					result.Observe(s.ID, now.UnixMilli())
				}
			}
		}
	}

	if attempted > 0 && failed == attempted {
		return nil, fmt.Errorf("%w: all %d google fit streams failed", domain.ErrProviderUnavailable, attempted)
	}
	return result, nil
}

// readStream returns the new points of one stream. Any page error discards
// everything read from the stream so far.
func (c *Connector) readStream(ctx context.Context, fr driven.FetchRequest, native, valueField string, s stream, now time.Time) ([]domain.DataPoint, error) {
	watermark, hasWatermark := fr.Link.Watermark(s.ID)

	changes, minStartNanos, err := c.pointChanges(ctx, fr.AccessToken, native, valueField, s)
	if err != nil {
		return nil, err
	}

	points := changes[:0]
	for _, p := range changes {
		if hasWatermark && p.ModifiedTime <= watermark {
			continue
		}
		points = append(points, p)
	}
	if hasWatermark {
		return points, nil
	}

	end := now.UnixNano()
	if minStartNanos > 0 {
		end = minStartNanos
	}
	backfill, err := c.dataset(ctx, fr.AccessToken, native, valueField, s, end-c.cfg.BackfillWindow.Nanoseconds(), end)
	if err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}
	return append(points, backfill...), nil
}

// pointChanges pages through dataPointChanges until no next page token is returned.
func (c *Connector) pointChanges(ctx context.Context, token, native, valueField string, s stream) ([]domain.DataPoint, int64, error) {
	var (
		points    []domain.DataPoint
		minStart  int64
		pageToken string
	)
	endpoint := c.cfg.APIBaseURL + "/dataSources/" + url.PathEscape(s.ID) + "/dataPointChanges"

	for {
		request := c.client.R().
			SetContext(ctx).
			SetBearerAuthToken(token).
			SetQueryParam("limit", strconv.Itoa(c.cfg.PageLimit))
		if pageToken != "" {
			request.SetQueryParam("pageToken", pageToken)
		}

		resp, err := request.Get(endpoint)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		if err := connectors.ClassifyStatus(resp.StatusCode); err != nil {
			return nil, 0, fmt.Errorf("data point changes: %w (status %d)", err, resp.StatusCode)
		}

		body := resp.Bytes()
		gjson.GetBytes(body, "insertedDataPoint").ForEach(func(_, raw gjson.Result) bool {
			startNanos := raw.Get("startTimeNanos").Int()
			if minStart == 0 || startNanos < minStart {
				minStart = startNanos
			}
			p := toPoint(raw, native, valueField, s)
			p.ModifiedTime = raw.Get("modifiedTimeMillis").Int()
			points = append(points, p)
			return true
		})

		pageToken = gjson.GetBytes(body, "nextPageToken").String()
		if pageToken == "" {
			return points, minStart, nil
		}
	}
}

// dataset reads the stored points of a stream within [startNanos, endNanos].
func (c *Connector) dataset(ctx context.Context, token, native, valueField string, s stream, startNanos, endNanos int64) ([]domain.DataPoint, error) {
	endpoint := fmt.Sprintf("%s/dataSources/%s/datasets/%d-%d", c.cfg.APIBaseURL, url.PathEscape(s.ID), startNanos, endNanos)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBearerAuthToken(token).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if err := connectors.ClassifyStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("dataset: %w (status %d)", err, resp.StatusCode)
	}

	var points []domain.DataPoint
	gjson.GetBytes(resp.Bytes(), "point").ForEach(func(_, raw gjson.Result) bool {
		p := toPoint(raw, native, valueField, s)
		p.ModifiedTime = raw.Get("modifiedTimeMillis").Int()
		points = append(points, p)
		return true
	})
	return points, nil
}

func toPoint(raw gjson.Result, native, valueField string, s stream) domain.DataPoint {
	return domain.DataPoint{
		Provider:    domain.ProviderTypeGoogleFit,
		DataType:    native,
		StartTime:   raw.Get("startTimeNanos").Int() / int64(time.Millisecond),
		EndTime:     raw.Get("endTimeNanos").Int() / int64(time.Millisecond),
		Value:       raw.Get("value.0." + valueField).Float(),
		ManualEntry: s.Manual(),
		Stream:      s.ID,
	}
}
