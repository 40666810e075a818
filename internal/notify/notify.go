// Package notify delivers owner notifications through a Redis outbox list
// consumed by the external messaging layer. Delivery is fire-and-forget:
// failures are logged and swallowed, never surfaced to the caller.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OutboundQueue is the Redis list key the messaging layer consumes.
const OutboundQueue = "notify:outbound"

const deliverTimeout = 2 * time.Second

// Message is one owner-facing notification.
type Message struct {
	OwnerID int64     `json:"owner_id"`
	Text    string    `json:"text"`
	SentAt  time.Time `json:"sent_at"`
}

// Outbox pushes notifications onto the Redis outbound list.
type Outbox struct {
	client *redis.Client
	logger *zap.Logger
}

// NewOutbox creates a Redis-backed notification outbox.
func NewOutbox(client *redis.Client, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{client: client, logger: logger}
}

// Notify enqueues a notification for ownerID. Errors are swallowed.
func (o *Outbox) Notify(ownerID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	raw, err := json.Marshal(Message{OwnerID: ownerID, Text: text, SentAt: time.Now()})
	if err != nil {
		o.logger.Warn("notification marshal failed", zap.Error(err))
		return
	}
	if err := o.client.RPush(ctx, OutboundQueue, raw).Err(); err != nil {
		o.logger.Warn("notification delivery failed",
			zap.Int64("owner_id", ownerID), zap.Error(err))
	}
}
