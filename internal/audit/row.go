package audit

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/angelmondragon/auction-engine/pkg/enums"
	"github.com/angelmondragon/auction-engine/pkg/outbox"
)

// Envelope is a decoded auction event as delivered by the outbox publisher.
type Envelope struct {
	EventID     uuid.UUID
	EventType   enums.OutboxEventType
	AuctionID   uuid.UUID
	OccurredAt  time.Time
	Actor       *outbox.ActorRef
	Payload     json.RawMessage
	PublishedAt time.Time
}

// EventRow is one row of the auction events table.
type EventRow struct {
	EventID    string
	EventType  string
	AuctionID  string
	OccurredAt time.Time
	ActorID    bigquery.NullString
	ActorRole  bigquery.NullString
	Payload    bigquery.NullJSON
	IngestedAt time.Time
}

// Save implements bigquery.ValueSaver; the event id doubles as the insert id.
func (r *EventRow) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"event_id":    r.EventID,
		"event_type":  r.EventType,
		"auction_id":  r.AuctionID,
		"occurred_at": r.OccurredAt,
		"actor_id":    r.ActorID,
		"actor_role":  r.ActorRole,
		"payload":     r.Payload,
		"ingested_at": r.IngestedAt,
	}, r.EventID, nil
}

func rowFromEnvelope(env Envelope, now time.Time) EventRow {
	row := EventRow{
		EventID:    env.EventID.String(),
		EventType:  string(env.EventType),
		AuctionID:  env.AuctionID.String(),
		OccurredAt: env.OccurredAt.UTC(),
		IngestedAt: now.UTC(),
	}
	if env.Actor != nil && env.Actor.UserID != uuid.Nil {
		row.ActorID = bigquery.NullString{StringVal: env.Actor.UserID.String(), Valid: true}
		if env.Actor.Role != "" {
			row.ActorRole = bigquery.NullString{StringVal: env.Actor.Role, Valid: true}
		}
	}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		row.Payload = bigquery.NullJSON{JSONVal: string(env.Payload), Valid: true}
	}
	return row
}
