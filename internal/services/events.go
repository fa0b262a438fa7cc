package services

import (
	"context"
	"time"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/messaging"
)

// publish runs after commit. A failed publish is logged and never undoes the change.
func publish(ctx context.Context, p messaging.Publisher, ev domain.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		applog.L().WithError(err).WithField("type", ev.Type()).Warn("event.publish.fail")
	}
}

// now stamps every write in UTC.
var now = func() time.Time { return time.Now().UTC() }
