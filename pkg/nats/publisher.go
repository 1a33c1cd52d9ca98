package nats

import (
	"context"
	"fmt"

	"github.com/abgdnv/cartsync/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
)

// streamPublisher is the part of jetstream.JetStream used by NatsPublisher.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type NatsPublisher struct {
	js     streamPublisher
	prefix string
}

// NewNatsPublisher publishes events to "<prefix>.<event subject>".
func NewNatsPublisher(js streamPublisher, prefix string) *NatsPublisher {
	return &NatsPublisher{js: js, prefix: prefix}
}

func (p *NatsPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	if _, err = p.js.Publish(ctx, p.subject(event), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Subject(), err)
	}
	return nil
}

func (p *NatsPublisher) subject(event messaging.Event) string {
	if p.prefix == "" {
		return event.Subject()
	}
	return p.prefix + "." + event.Subject()
}
