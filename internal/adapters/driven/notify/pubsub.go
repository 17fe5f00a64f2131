package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Ensure PubSubNotifier implements the interface.
var _ driven.Notifier = (*PubSubNotifier)(nil)

// PubSubNotifier publishes notifications to a Google Cloud Pub/Sub topic.
type PubSubNotifier struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    *slog.Logger

	// publish is swapped in tests
	publish func(ctx context.Context, msg *pubsub.Message) (string, error)
}

// NewPubSubNotifier connects to the project and verifies the topic exists.
func NewPubSubNotifier(ctx context.Context, projectID, topicID string, logger *slog.Logger) (*PubSubNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topicPath := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	if _, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicPath}); err != nil {
		client.Close()
		return nil, fmt.Errorf("get topic %s: %w", topicID, err)
	}

	n := &PubSubNotifier{
		client:    client,
		publisher: client.Publisher(topicID),
		logger:    logger,
	}
	n.publish = func(ctx context.Context, msg *pubsub.Message) (string, error) {
		return n.publisher.Publish(ctx, msg).Get(ctx)
	}

	logger.Info("pubsub notifier initialized", "project_id", projectID, "topic_id", topicID)
	return n, nil
}

// Notify publishes the notification and waits for the server ack.
func (n *PubSubNotifier) Notify(ctx context.Context, notification *domain.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"notification_id": notification.ID,
			"kind":            string(notification.Kind),
			"account_id":      notification.AccountID,
		},
	}

	serverID, err := n.publish(ctx, msg)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	n.logger.Info("notification published",
		"notification_id", notification.ID,
		"kind", notification.Kind,
		"account_id", notification.AccountID,
		"server_id", serverID,
	)
	return nil
}

// Close flushes pending messages and releases the client.
func (n *PubSubNotifier) Close() error {
	if n.publisher != nil {
		n.publisher.Stop()
	}
	if n.client != nil {
		return n.client.Close()
	}
	return nil
}
