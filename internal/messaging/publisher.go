package messaging

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
	applog "storefront/internal/log"
)

// Publisher delivers domain events after the state change they describe has committed.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
	Close() error
}

// Envelope is the wire form of every event.
type Envelope struct {
	Type        string          `json:"type"`
	Aggregate   string          `json:"aggregate"`
	AggregateID string          `json:"aggregate_id"`
	Data        json.RawMessage `json:"data"`
}

func Encode(ev domain.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", ev.Type())
	}
	return json.Marshal(Envelope{
		Type:        ev.Type(),
		Aggregate:   ev.Aggregate(),
		AggregateID: ev.AggregateID(),
		Data:        data,
	})
}

// LogPublisher writes events to the application log; used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev domain.Event) error {
	applog.L().WithFields(logrus.Fields{
		"kind":         "event",
		"type":         ev.Type(),
		"aggregate_id": ev.AggregateID(),
	}).Info("event.publish")
	return nil
}

func (LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Publish(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []string {
	var out []string
	for _, ev := range r.Events() {
		out = append(out, ev.Type())
	}
	return out
}
