package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/auction-engine/pkg/outbox/registry"
)

// outboundMessage is a sink-neutral rendering of one outbox row.
type outboundMessage struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

type sink interface {
	Name() string
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic string, msg outboundMessage) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// pubSubSink publishes with ordering keys so subscribers see one auction's
// events in commit order.
type pubSubSink struct {
	client pubSubClient

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func newPubSubSink(client pubSubClient) *pubSubSink {
	return &pubSubSink{client: client, publishers: map[string]*gcppubsub.Publisher{}}
}

func (p *pubSubSink) Name() string { return "pubsub" }

func (p *pubSubSink) Ping(ctx context.Context) error { return p.client.Ping(ctx) }

func (p *pubSubSink) publisher(topic string) *gcppubsub.Publisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pub, ok := p.publishers[topic]; ok {
		return pub
	}
	pub := p.client.Publisher(topic)
	if pub == nil {
		return nil
	}
	pub.EnableMessageOrdering = true
	p.publishers[topic] = pub
	return pub
}

func (p *pubSubSink) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	pub := p.publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.Key,
	})
	if _, err := result.Get(ctx); err != nil {
		// a failed ordering key stays paused until resumed
		pub.ResumePublish(msg.Key)
		return err
	}
	return nil
}

// Stop flushes and releases cached publishers.
func (p *pubSubSink) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, pub := range p.publishers {
		pub.Stop()
		delete(p.publishers, topic)
	}
}

type kafkaProducer interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

type kafkaSink struct {
	producer kafkaProducer
}

func newKafkaSink(producer kafkaProducer) (*kafkaSink, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	return &kafkaSink{producer: producer}, nil
}

func (k *kafkaSink) Name() string { return "kafka" }

func (k *kafkaSink) Ping(ctx context.Context) error { return k.producer.Ping(ctx) }

func (k *kafkaSink) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	return k.producer.Publish(ctx, topic, msg.Key, msg.Data, msg.Attributes)
}
