package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
	"github.com/redis/go-redis/v9"
)

const (
	ChannelNotifications = "notifications"
	ChannelBroadcast     = "broadcast"
)

// Domain event types published on ChannelBroadcast.
const (
	EventMessageCreated      = "message.created"
	EventEventMessageCreated = "event_message.created"
	EventCallStatus          = "call.status"
)

// Publisher fans notifications and domain events out through redis so every
// instance can reach its own connections. A nil Publisher, or one without a
// client, publishes nothing.
type Publisher struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewPublisher(rdb *redis.Client, log *slog.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: log}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.rdb != nil
}

func (p *Publisher) PublishNotification(ctx context.Context, n store.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, ChannelNotifications, string(data)).Err()
}

// PublishEvent is fire and forget; failures are only logged.
func (p *Publisher) PublishEvent(ctx context.Context, eventType string, payload any) {
	if !p.Enabled() {
		return
	}

	body := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		p.log.Error("encode domain event", "type", eventType, "error", err)
		return
	}
	if err := p.rdb.Publish(ctx, ChannelBroadcast, string(data)).Err(); err != nil {
		p.log.Warn("publish domain event", "type", eventType, "error", err)
	}
}

// RunNotificationSubscriber delivers notifications published by any instance
// to the recipient's local notification streams. It returns when ctx is done.
func (s *Server) RunNotificationSubscriber(ctx context.Context) {
	if !s.publisher.Enabled() {
		return
	}
	sub := s.publisher.rdb.Subscribe(ctx, ChannelNotifications)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var n store.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				s.log.Warn("decode notification", "error", err)
				continue
			}
			s.deliverNotification(n)
		}
	}
}

func (s *Server) deliverNotification(n store.Notification) int {
	return s.dispatcher.Deliver(UserKey(n.UserID), NotificationOut{Type: TypeNotification, Notification: n})
}
