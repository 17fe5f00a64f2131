package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driving"
	"github.com/Pulkit07/metric-health-backend/internal/signing"
)

var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService accepts pushed data: device uploads and provider push events.
// Every inbound payload is claimed with the idempotency guard before any side effect.
type IngestionService struct {
	accounts    driven.AccountStore
	connections driven.ConnectionStore
	links       driven.LinkStore
	guard       *IdempotencyGuard
	delivery    *DeliveryService
	normalisers driven.NormaliserRegistry
	queue       driven.TaskQueue

	stravaVerifyToken  string
	fitbitVerifyCode   string
	fitbitClientSecret string

	logger *slog.Logger
}

// IngestionServiceConfig holds dependencies for IngestionService.
type IngestionServiceConfig struct {
	Accounts    driven.AccountStore
	Connections driven.ConnectionStore
	Links       driven.LinkStore
	Guard       *IdempotencyGuard
	Delivery    *DeliveryService
	Normalisers driven.NormaliserRegistry
	Queue       driven.TaskQueue

	StravaVerifyToken      string
	FitbitVerificationCode string
	FitbitClientSecret     string
	Logger                 *slog.Logger
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(cfg IngestionServiceConfig) *IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionService{
		accounts:           cfg.Accounts,
		connections:        cfg.Connections,
		links:              cfg.Links,
		guard:              cfg.Guard,
		delivery:           cfg.Delivery,
		normalisers:        cfg.Normalisers,
		queue:              cfg.Queue,
		stravaVerifyToken:  cfg.StravaVerifyToken,
		fitbitVerifyCode:   cfg.FitbitVerificationCode,
		fitbitClientSecret: cfg.FitbitClientSecret,
		logger:             logger,
	}
}

// UploadDeviceData ingests a HealthKit upload of the form
// {"<type>": [{"value", "date_from", "date_to", "source_name"}]}.
func (s *IngestionService) UploadDeviceData(ctx context.Context, accountKey, userUUID string, body []byte) (*domain.UploadResult, error) {
	if accountKey == "" || userUUID == "" {
		return nil, fmt.Errorf("%w: key and user_uuid are required", domain.ErrInvalidInput)
	}

	account, err := s.accounts.GetByKey(ctx, accountKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	conn, err := s.connections.GetByUser(ctx, account.ID, userUUID)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	link, err := s.links.GetByConnection(ctx, conn.ID, domain.ProviderTypeAppleHealthKit)
	if err != nil {
		return nil, fmt.Errorf("get healthkit link: %w", err)
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, fmt.Errorf("%w: upload is not a JSON object", domain.ErrInvalidInput)
	}

	claimed, err := s.guard.Claim(ctx, domain.DeviceUploadScope(conn.ID), body)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return &domain.UploadResult{Duplicate: true}, nil
	}

	points := parseDeviceUpload(body)
	payload, dropped := s.normalisers.Normalise(domain.ProviderTypeAppleHealthKit, points, account.EnabledSet())
	result := &domain.UploadResult{Accepted: payload.Count(), Dropped: dropped}

	if _, err := s.delivery.Process(ctx, payload, account, conn, domain.ProviderTypeAppleHealthKit); err != nil {
		return nil, fmt.Errorf("deliver upload: %w", err)
	}

	if maxEnd := payload.MaxEndTime(); maxEnd > 0 {
		if err := s.links.TouchLastSync(ctx, link.ID, time.UnixMilli(maxEnd)); err != nil {
			s.logger.Warn("failed to update last sync", "link_id", link.ID, "error", err)
		}
	}

	s.logger.Info("device upload processed",
		"account_id", account.ID,
		"connection_id", conn.ID,
		"accepted", result.Accepted,
		"dropped", result.Dropped,
	)
	return result, nil
}

func parseDeviceUpload(body []byte) map[string][]domain.DataPoint {
	points := make(map[string][]domain.DataPoint)
	gjson.ParseBytes(body).ForEach(func(key, samples gjson.Result) bool {
		if !samples.IsArray() {
			return true
		}
		native := key.String()
		samples.ForEach(func(_, d gjson.Result) bool {
			p := domain.DataPoint{
				Provider:  domain.ProviderTypeAppleHealthKit,
				DataType:  native,
				StartTime: d.Get("date_from").Int(),
				EndTime:   d.Get("date_to").Int(),
				Value:     d.Get("value").Float(),
			}
			if src := d.Get("source_name"); src.Exists() && src.Type != gjson.Null {
				name := src.String()
				p.SourceDevice = &name
			}
			points[native] = append(points[native], p)
			return true
		})
		return true
	})
	return points
}

// VerifyStravaSubscription answers Strava's subscription validation handshake.
func (s *IngestionService) VerifyStravaSubscription(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || s.stravaVerifyToken == "" || token != s.stravaVerifyToken {
		return "", domain.ErrInvalidSignature
	}
	return challenge, nil
}

// HandleStravaEvent claims a Strava push event and schedules a sync of its link.
// An athlete deauthorization logs the link out instead.
func (s *IngestionService) HandleStravaEvent(ctx context.Context, body []byte) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: invalid strava event", domain.ErrInvalidInput)
	}
	doc := gjson.ParseBytes(body)
	event := &domain.StravaEvent{
		ObjectID:       doc.Get("object_id").Int(),
		ObjectType:     doc.Get("object_type").String(),
		AspectType:     doc.Get("aspect_type").String(),
		SubscriptionID: doc.Get("subscription_id").Int(),
		OwnerID:        doc.Get("owner_id").Int(),
		EventTime:      doc.Get("event_time").Int(),
	}
	if updates := doc.Get("updates"); updates.IsObject() {
		event.Updates = make(map[string]string)
		updates.ForEach(func(k, v gjson.Result) bool {
			event.Updates[k.String()] = v.String()
			return true
		})
	}
	if event.OwnerID == 0 || event.ObjectType == "" {
		return fmt.Errorf("%w: strava event without owner", domain.ErrInvalidInput)
	}

	claimed, err := s.guard.Claim(ctx, event.Scope(), body, "event_time")
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	link, err := s.links.FindByProviderUser(ctx, domain.ProviderTypeStrava, strconv.FormatInt(event.OwnerID, 10))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("strava event for unknown athlete", "owner_id", event.OwnerID)
			return nil
		}
		return fmt.Errorf("find strava link: %w", err)
	}

	if event.ObjectType == "athlete" && event.Updates["authorized"] == "false" {
		s.logger.Info("strava athlete deauthorized", "link_id", link.ID)
		return s.links.MarkLoggedOut(ctx, link.ID)
	}
	if event.ObjectType != "activity" {
		return nil
	}
	return s.enqueueSync(ctx, link)
}

// VerifyFitbitSubscriber checks the subscriber verification code.
func (s *IngestionService) VerifyFitbitSubscriber(code string) bool {
	return s.fitbitVerifyCode != "" && code == s.fitbitVerifyCode
}

// HandleFitbitNotification verifies a Fitbit notification batch and schedules
// one sync per link with a new entry. The syncs are enqueued as one batch.
func (s *IngestionService) HandleFitbitNotification(ctx context.Context, body []byte, signature string) error {
	if !signing.Verify(body, s.fitbitClientSecret, signature) {
		return domain.ErrInvalidSignature
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return fmt.Errorf("%w: fitbit notification is not a list", domain.ErrInvalidInput)
	}

	var (
		errs  []error
		tasks []*domain.Task
	)
	queued := make(map[string]bool)
	doc.ForEach(func(_, entry gjson.Result) bool {
		n := &domain.FitbitNotification{
			CollectionType: entry.Get("collectionType").String(),
			Date:           entry.Get("date").String(),
			OwnerID:        entry.Get("ownerId").String(),
			OwnerType:      entry.Get("ownerType").String(),
			SubscriptionID: entry.Get("subscriptionId").String(),
		}
		link, err := s.fitbitEntryLink(ctx, n, []byte(entry.Raw))
		if err != nil {
			errs = append(errs, err)
			return true
		}
		if link != nil && link.LoggedIn && !queued[link.ID] {
			queued[link.ID] = true
			tasks = append(tasks, domain.NewSyncLinkTask(link.ID))
		}
		return true
	})

	if len(tasks) > 0 {
		if err := s.queue.EnqueueBatch(ctx, tasks); err != nil {
			errs = append(errs, fmt.Errorf("enqueue fitbit syncs: %w", err))
		} else {
			s.logger.Debug("fitbit syncs enqueued", "links", len(tasks))
		}
	}
	return errors.Join(errs...)
}

// fitbitEntryLink claims one notification entry and resolves its link.
// It returns nil for duplicates and unknown subscriptions.
func (s *IngestionService) fitbitEntryLink(ctx context.Context, n *domain.FitbitNotification, raw []byte) (*domain.ProviderLink, error) {
	claimed, err := s.guard.Claim(ctx, n.Scope(), raw)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}

	link, err := s.links.FindBySubscription(ctx, domain.ProviderTypeFitbit, n.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("fitbit notification for unknown subscription", "subscription_id", n.SubscriptionID)
			return nil, nil
		}
		return nil, fmt.Errorf("find fitbit link: %w", err)
	}
	return link, nil
}

func (s *IngestionService) enqueueSync(ctx context.Context, link *domain.ProviderLink) error {
	if !link.LoggedIn {
		return nil
	}
	if err := s.queue.Enqueue(ctx, domain.NewSyncLinkTask(link.ID)); err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	s.logger.Debug("sync enqueued", "link_id", link.ID, "provider", link.Provider)
	return nil
}
