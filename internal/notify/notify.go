package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/repository"
)

// Message is one notification addressed to one or more recipients. A
// recipient is a manager id or a staff userKey.
type Message struct {
	Type       string    `json:"type"`
	Recipients []string  `json:"recipients"`
	EventID    string    `json:"event_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	At         time.Time `json:"at"`
}

// Notifier delivers messages. Implementations must not be relied on for
// correctness; callers log and continue on error.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// ── log ──

// LogNotifier writes messages to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info("notification",
		zap.String("type", msg.Type),
		zap.Strings("recipients", msg.Recipients),
		zap.String("event_id", msg.EventID),
		zap.String("role", msg.Role),
	)
	return nil
}

// ── redis pub/sub ──

// Publisher is the subset of the Redis client used for fan-out.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PubSubNotifier publishes messages as JSON on a Redis channel for the push workers.
type PubSubNotifier struct {
	pub     Publisher
	channel string
}

// NewPubSubNotifier creates a PubSubNotifier.
func NewPubSubNotifier(pub Publisher, channel string) *PubSubNotifier {
	return &PubSubNotifier{pub: pub, channel: channel}
}

func (n *PubSubNotifier) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return n.pub.Publish(ctx, n.channel, payload)
}

// ── inbox ──

// InboxNotifier stores one inbox row per recipient.
type InboxNotifier struct {
	repo repository.NotificationRepository
}

// NewInboxNotifier creates an InboxNotifier.
func NewInboxNotifier(repo repository.NotificationRepository) *InboxNotifier {
	return &InboxNotifier{repo: repo}
}

func (n *InboxNotifier) Notify(ctx context.Context, msg Message) error {
	items := make([]model.Notification, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		items = append(items, model.Notification{
			Recipient: r,
			Type:      msg.Type,
			EventID:   msg.EventID,
			Role:      msg.Role,
			Title:     msg.Title,
			Content:   msg.Content,
			CreatedAt: msg.At,
		})
	}
	return n.repo.CreateBatch(ctx, items)
}

// ── fan-out ──

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
