package sessions

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Replicator applies TokenEvents received from the event bus to this
// instance's session cache.
type Replicator interface {
	// Run subscribes to the event bus and applies every event received. It
	// blocks until the context is canceled or the subscription fails and
	// always returns a non-nil error.
	Run(ctx context.Context) error
	// Apply applies a single event. Applying the same event more than once has
	// the same effect as applying it once.
	Apply(ctx context.Context, event TokenEvent) error
}

type replicator struct {
	subscriber EventSubscriber
	cache      CacheStore
	now        func() time.Time
}

// NewReplicator returns a Replicator that writes to the given cache.
func NewReplicator(subscriber EventSubscriber, cache CacheStore) Replicator {
	return &replicator{
		subscriber: subscriber,
		cache:      cache,
		now:        time.Now,
	}
}

func (r *replicator) Run(ctx context.Context) error {
	glog.Info("session replicator is subscribing to token events")
	return errors.Wrap(
		r.subscriber.Subscribe(ctx, r.Apply),
		"session replicator stopped",
	)
}

func (r *replicator) Apply(ctx context.Context, event TokenEvent) error {
	data := event.Data
	if data.UserID == "" || data.SessionID == "" {
		glog.Warningf("ignoring %s event with no user or session", event.Kind)
		return nil
	}
	switch event.Kind {
	case EventTokenUpdated:
		if data.ExpiresAt == nil || data.Token == "" {
			glog.Warningf(
				"ignoring %s event for session %q with no token or expiry",
				event.Kind,
				data.SessionID,
			)
			return nil
		}
		ttl := data.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return nil
		}
		if err := r.cache.Put(
			ctx,
			data.UserID,
			data.SessionID,
			data.Token,
			ttl,
		); err != nil {
			return errors.Wrapf(
				err,
				"error applying %s event for session %q",
				event.Kind,
				data.SessionID,
			)
		}
	case EventTokenRevoked:
		if err := r.cache.Delete(ctx, data.UserID, data.SessionID); err != nil {
			return errors.Wrapf(
				err,
				"error applying %s event for session %q",
				event.Kind,
				data.SessionID,
			)
		}
	default:
		return nil
	}
	eventsAppliedTotal.WithLabelValues(string(event.Kind)).Inc()
	return nil
}
