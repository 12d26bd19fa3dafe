package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis"
	"github.com/golang/glog"
	"github.com/krancour/identity/apiserver/internal/sessions"
	"github.com/pkg/errors"
)

// EventBus is the union of the sessions.EventPublisher and
// sessions.EventSubscriber interfaces.
type EventBus interface {
	sessions.EventPublisher
	sessions.EventSubscriber
}

// eventBus is a Redis pub/sub based implementation of the EventBus interface.
// Delivery is at most once per subscriber and unordered across publishers.
type eventBus struct {
	redisClient *redis.Client
	channel     string
}

// NewEventBus returns a Redis pub/sub based implementation of the EventBus
// interface.
func NewEventBus(
	redisClient *redis.Client,
	prefix string,
	channel string,
) EventBus {
	return &eventBus{
		redisClient: redisClient,
		channel:     prefixedName(prefix, channel),
	}
}

func (e *eventBus) Publish(
	ctx context.Context,
	event sessions.TokenEvent,
) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(
			err,
			"error encoding %s event for session %q",
			event.Kind,
			event.Data.SessionID,
		)
	}
	if err := e.redisClient.WithContext(ctx).Publish(
		e.channel,
		eventJSON,
	).Err(); err != nil {
		return errors.Wrapf(
			err,
			"error publishing %s event for session %q to channel %q",
			event.Kind,
			event.Data.SessionID,
			e.channel,
		)
	}
	return nil
}

func (e *eventBus) Subscribe(
	ctx context.Context,
	handler sessions.EventHandlerFn,
) error {
	pubsub := e.redisClient.Subscribe(e.channel)
	defer pubsub.Close()

	// Wait for confirmation that the subscription was created
	if _, err := pubsub.Receive(); err != nil {
		return errors.Wrapf(err, "error subscribing to channel %q", e.channel)
	}

	messageCh := pubsub.Channel()
	for {
		select {
		case message, ok := <-messageCh:
			if !ok {
				return errors.Errorf("subscription to channel %q closed", e.channel)
			}
			event := sessions.TokenEvent{}
			if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
				glog.Warningf(
					"ignoring undecodable message on channel %q: %s",
					e.channel,
					err,
				)
				continue
			}
			if err := handler(ctx, event); err != nil {
				glog.Errorf(
					"error handling %s event for session %q: %s",
					event.Kind,
					event.Data.SessionID,
					err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
