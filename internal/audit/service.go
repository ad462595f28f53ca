package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/auction-engine/pkg/enums"
	"github.com/angelmondragon/auction-engine/pkg/logger"
	"github.com/angelmondragon/auction-engine/pkg/outbox"
)

const consumerName = "auction-audit"

// Handler processes one decoded auction event.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service consumes auction events from Pub/Sub and hands each one to the
// handler at most once per idempotency window.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("audit subscription is required")
	}
	if handler == nil {
		return nil, errors.New("audit handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, manager: manager, logg: logg}, nil
}

// Run receives messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Malformed messages are
// acked and logged so they do not loop forever.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) bool {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decodeMessage(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid auction event envelope")
		return true
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":   env.EventID.String(),
		"event_type": env.EventType,
	})
	logCtx = s.logg.WithAuctionID(logCtx, env.AuctionID.String())

	already, err := s.manager.CheckAndMarkProcessed(logCtx, consumerName, env.EventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		s.logg.Info(logCtx, "auction event already recorded")
		return true
	}

	if err := s.handler.Handle(logCtx, *env); err != nil {
		s.logg.Error(logCtx, "audit handler failed", err)
		if delErr := s.manager.Delete(logCtx, consumerName, env.EventID); delErr != nil {
			s.logg.Error(logCtx, "failed to clear idempotency marker", delErr)
		}
		return false
	}
	s.logg.Info(logCtx, "auction event recorded")
	return true
}

func decodeMessage(msg *gcppubsub.Message) (*Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(strings.TrimSpace(msg.Attributes["aggregate_type"]))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	if aggregateType != enums.AggregateAuction {
		return nil, fmt.Errorf("unexpected aggregate type %q", aggregateType)
	}
	auctionID, err := uuid.Parse(strings.TrimSpace(msg.Attributes["aggregate_id"]))
	if err != nil {
		return nil, fmt.Errorf("aggregate_id: %w", err)
	}

	rawID := strings.TrimSpace(stored.EventID)
	if rawID == "" {
		rawID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("event_id: %w", err)
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if created, perr := time.Parse(time.RFC3339Nano, strings.TrimSpace(msg.Attributes["created_at"])); perr == nil {
			occurredAt = created
		}
	}

	return &Envelope{
		EventID:     eventID,
		EventType:   eventType,
		AuctionID:   auctionID,
		OccurredAt:  occurredAt.UTC(),
		Actor:       stored.Actor,
		Payload:     stored.Data,
		PublishedAt: msg.PublishTime,
	}, nil
}
