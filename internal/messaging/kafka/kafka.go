package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/messaging"
)

// Publisher writes events to "<prefix>.<aggregate>" keyed by aggregate id, so
// every event of one order or ticket lands on the same partition.
type Publisher struct {
	w      *kafkaGo.Writer
	prefix string
}

var _ messaging.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, prefix string) *Publisher {
	return &Publisher{
		w: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(brokers...),
			Balancer:               &kafkaGo.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
		prefix: prefix,
	}
}

func Topic(prefix, aggregate string) string { return prefix + "." + aggregate }

func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := messaging.Encode(ev)
	if err != nil {
		return err
	}
	err = p.w.WriteMessages(ctx, kafkaGo.Message{
		Topic: Topic(p.prefix, ev.Aggregate()),
		Key:   []byte(ev.AggregateID()),
		Value: payload,
		Headers: []kafkaGo.Header{
			{Key: "type", Value: []byte(ev.Type())},
		},
	})
	return errors.Wrapf(err, "publish %s", ev.Type())
}

func (p *Publisher) Close() error { return p.w.Close() }

// Tail reads one topic as consumer group groupID and hands every message to fn.
// It blocks until ctx is cancelled.
func Tail(ctx context.Context, brokers []string, topic, groupID string, fn func(ctx context.Context, msg kafkaGo.Message) error) error {
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				applog.L().WithField("topic", topic).Info("events.tail.stop")
				return nil
			}
			applog.L().WithError(err).WithField("topic", topic).Error("events.tail.read")
			continue
		}
		if err := fn(ctx, msg); err != nil {
			applog.L().WithError(err).WithFields(logrus.Fields{
				"topic":  topic,
				"offset": msg.Offset,
			}).Error("events.tail.handle")
		}
	}
}
