package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
)

// Notification event types emitted by the checkout engine.
const (
	TypeSessionPaid           = "checkout.session.paid"
	TypeSessionExpired        = "checkout.session.expired"
	TypeOrderCreated          = "order.created"
	TypeOrderPaymentChanged   = "order.payment.changed"
	TypeOrderFulfillmentMoved = "order.fulfillment.changed"
	TypeWalletTransaction     = "wallet.transaction.recorded"
)

// Notification is the envelope published for downstream consumers such as
// email workers and provider dashboards.
type Notification struct {
	Type       string         `json:"type"`
	OwnerID    string         `json:"ownerId,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	OrderID    string         `json:"orderId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Publisher delivers notifications to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, notification Notification) (string, error)
}

// PubSubPublisher publishes notifications to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed notification publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Publish enqueues the notification on the configured topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, notification Notification) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub publisher: not initialised")
	}
	if strings.TrimSpace(notification.Type) == "" {
		return "", errors.New("pubsub publisher: notification type is required")
	}

	data, err := p.marshal(notification)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", notification.Type)
	setAttr(attrs, "ownerId", notification.OwnerID)
	setAttr(attrs, "sessionId", notification.SessionID)
	setAttr(attrs, "orderId", notification.OrderID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish notification: %w", err)
	}
	return id, nil
}

// NoopPublisher drops notifications. Used when the events pipeline is disabled.
type NoopPublisher struct{}

// Publish discards the notification.
func (NoopPublisher) Publish(context.Context, Notification) (string, error) {
	return "", nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
