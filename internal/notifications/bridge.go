package notifications

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/angelmondragon/auction-engine/pkg/config"
	"github.com/angelmondragon/auction-engine/pkg/logger"
)

// BridgeFromConfig builds the bridge named by cfg.Bridge. The returned close
// func is never nil. A nil Bridge means single-instance delivery.
func BridgeFromConfig(cfg config.NotificationsConfig, redisClient redisPubSub, serviceName string, logg *logger.Logger) (Bridge, func(), error) {
	noop := func() {}
	switch cfg.BridgeKind() {
	case config.BridgeNone:
		return nil, noop, nil
	case config.BridgeRedis:
		bridge, err := NewRedisBridge(redisClient, logg)
		if err != nil {
			return nil, noop, err
		}
		return bridge, noop, nil
	case config.BridgeNATS:
		conn, err := nats.Connect(cfg.NatsURL, nats.Name(serviceName), nats.MaxReconnects(-1))
		if err != nil {
			return nil, noop, fmt.Errorf("connect nats: %w", err)
		}
		bridge, err := NewNATSBridge(conn, logg)
		if err != nil {
			conn.Close()
			return nil, noop, err
		}
		return bridge, func() { _ = conn.Drain() }, nil
	}
	return nil, noop, fmt.Errorf("unknown notifications bridge %q", cfg.Bridge)
}
