package service

import (
	"context"

	"github.com/garyjia/conveyance-bills/internal/application/dispatcher"
	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/event"
)

// Subscriber names
const (
	SubscriberPendingCache = "pending-count-cache"
	SubscriberAuditLog     = "audit-log"
)

// RegisterSubscribers wires the handlers that react to committed bill events.
// cache may be nil.
func RegisterSubscribers(d dispatcher.Dispatcher, cache port.PendingCountCache, logger Logger) {
	if cache != nil {
		var types []event.Type
		for _, t := range event.AllTypes() {
			if t.AffectsPendingCounts() {
				types = append(types, t)
			}
		}
		d.SubscribeMany(types, SubscriberPendingCache, func(ctx context.Context, evt *event.Event) error {
			return cache.Invalidate(ctx)
		})
	}

	d.SubscribeMany(event.AllTypes(), SubscriberAuditLog, func(ctx context.Context, evt *event.Event) error {
		logger.Info("Bill event",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"bill_id", evt.BillID,
			"actor_id", evt.ActorID,
			"from", evt.GetPayloadString(event.KeyFromStatus),
			"to", evt.GetPayloadString(event.KeyToStatus),
		)
		return nil
	})
}
