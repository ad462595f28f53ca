package notifications

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/auction-engine/pkg/logger"
)

const redisChannelPrefix = "auction_events:"

type redisPubSub interface {
	Publish(ctx context.Context, channel string, message any) (int64, error)
	PSubscribe(ctx context.Context, patterns ...string) (*goredis.PubSub, error)
}

// RedisBridge relays events across API instances over redis pub/sub, one
// channel per auction.
type RedisBridge struct {
	client redisPubSub
	logg   *logger.Logger
}

func NewRedisBridge(client redisPubSub, logg *logger.Logger) (*RedisBridge, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisBridge{client: client, logg: logg}, nil
}

func redisChannel(event Event) string {
	return redisChannelPrefix + event.AuctionID.String()
}

func (b *RedisBridge) Publish(ctx context.Context, event Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if _, err := b.client.Publish(ctx, redisChannel(event), payload); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBridge) Run(ctx context.Context, ready func(), deliver func(Event)) error {
	ps, err := b.client.PSubscribe(ctx, redisChannelPrefix+"*")
	if err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	defer ps.Close()
	ready()

	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			b.handle(ctx, msg.Channel, msg.Payload, deliver)
		}
	}
}

func (b *RedisBridge) handle(ctx context.Context, channel, payload string, deliver func(Event)) {
	if !strings.HasPrefix(channel, redisChannelPrefix) {
		return
	}
	event, err := decodeEvent([]byte(payload))
	if err != nil {
		if b.logg != nil {
			b.logg.Error(b.logg.WithField(ctx, "channel", channel), "dropping malformed bridge event", err)
		}
		return
	}
	deliver(event)
}
