// Package queue_publisher publishes pipeline activity events to RabbitMQ.
// Failures are logged and returned; callers treat them as best effort.
package queue_publisher

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	q "github.com/iliyamo/pipeline-crm/internal/queue"
)

// Recorder counts publish outcomes.
type Recorder interface {
	Published(kind string, err error)
}

// Publisher dials the broker per event.  Mutations are low volume, and a
// fresh connection means a broker restart never leaves a dead channel
// behind.
type Publisher struct {
	url string
	log *zap.Logger
	rec Recorder
}

func New(url string, log *zap.Logger, rec Recorder) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log, rec: rec}
}

// Publish sends ev to the pipeline.activity queue as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev q.PipelineEvent) (err error) {
	defer func() {
		if p.rec != nil {
			p.rec.Published(ev.Kind, err)
		}
	}()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err = ch.QueueDeclare(q.PipelineQueue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", q.PipelineQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Kind,
		Body:         body,
	})
	if err != nil {
		p.log.Warn("rabbitmq: publish failed", zap.String("kind", ev.Kind), zap.Error(err))
	}
	return err
}
