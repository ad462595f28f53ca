package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/auction-engine/pkg/enums"
	"github.com/angelmondragon/auction-engine/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventAuctionStatusChanged, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"to":"active"}`)
	output, err := reg.Decode(enums.EventAuctionStatusChanged, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["to"] != "active" {
		t.Fatalf("unexpected output %+v", output)
	}
	if _, err := reg.Decode(enums.EventAuctionStatusChanged, 2, input); err == nil {
		t.Fatal("expected error for unregistered version")
	}
}

func TestDecoderRegistryFromEvents(t *testing.T) {
	decoders := NewDecoderRegistryFromEvents(newTestEventRegistry(t))

	winner := uuid.New()
	data := mustMarshal(t, payloads.AuctionSettlementRequestedEvent{
		AuctionID:  uuid.New(),
		WinnerID:   winner,
		WinningBid: decimal.RequireFromString("125.50"),
	})
	out, err := decoders.Decode(enums.EventAuctionSettlementRequested, 1, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload, ok := out.(*payloads.AuctionSettlementRequestedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", out)
	}
	if payload.WinnerID != winner || !payload.WinningBid.Equal(decimal.RequireFromString("125.5")) {
		t.Fatalf("payload mismatch %+v", payload)
	}

	for _, eventType := range []enums.OutboxEventType{
		enums.EventAuctionCreated,
		enums.EventAuctionBidAccepted,
		enums.EventAuctionStatusChanged,
		enums.EventAuctionEndedUnsold,
	} {
		if _, err := decoders.Decode(eventType, 1, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("decoder missing for %s: %v", eventType, err)
		}
	}
}
