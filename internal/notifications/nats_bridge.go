package notifications

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/angelmondragon/auction-engine/pkg/logger"
)

const (
	natsSubjectPrefix   = "auction.events."
	natsSubjectWildcard = natsSubjectPrefix + "*"
)

// NATSBridge relays events over core NATS subjects auction.events.<id>.
type NATSBridge struct {
	publish   func(subject string, data []byte) error
	subscribe func(subject string, cb nats.MsgHandler) (func() error, error)
	logg      *logger.Logger
}

func NewNATSBridge(conn *nats.Conn, logg *logger.Logger) (*NATSBridge, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection required")
	}
	return &NATSBridge{
		publish: conn.Publish,
		subscribe: func(subject string, cb nats.MsgHandler) (func() error, error) {
			sub, err := conn.Subscribe(subject, cb)
			if err != nil {
				return nil, err
			}
			return sub.Unsubscribe, nil
		},
		logg: logg,
	}, nil
}

func natsSubject(event Event) string {
	return natsSubjectPrefix + event.AuctionID.String()
}

func (b *NATSBridge) Publish(_ context.Context, event Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := b.publish(natsSubject(event), payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (b *NATSBridge) Run(ctx context.Context, ready func(), deliver func(Event)) error {
	unsubscribe, err := b.subscribe(natsSubjectWildcard, func(msg *nats.Msg) {
		event, err := decodeEvent(msg.Data)
		if err != nil {
			if b.logg != nil {
				b.logg.Error(b.logg.WithField(ctx, "subject", msg.Subject), "dropping malformed bridge event", err)
			}
			return
		}
		deliver(event)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	ready()

	<-ctx.Done()
	if err := unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe: %w", err)
	}
	return nil
}
