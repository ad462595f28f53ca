package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for single-node sqlite runs.
// Amounts are TEXT so decimals round-trip exactly.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('scheduled','active','ended','cancelled')),
  start_time DATETIME NOT NULL,
  end_time DATETIME NOT NULL,
  starting_bid TEXT NOT NULL,
  min_bid_increment TEXT NOT NULL,
  reserve_price TEXT,
  buy_now_price TEXT,
  current_bid TEXT,
  highest_bidder_id TEXT,
  total_bids INTEGER NOT NULL DEFAULT 0,
  version INTEGER NOT NULL DEFAULT 0,
  end_reason TEXT,
  ended_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK (end_time > start_time)
);`,
	`CREATE TABLE IF NOT EXISTS auction_bids (
  id TEXT PRIMARY KEY,
  auction_id TEXT NOT NULL REFERENCES auctions(id),
  bidder_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  sequence_number INTEGER NOT NULL,
  submitted_at DATETIME NOT NULL,
  accepted_at DATETIME NOT NULL,
  UNIQUE (auction_id, sequence_number)
);`,
	`CREATE TABLE IF NOT EXISTS auction_settlements (
  id TEXT PRIMARY KEY,
  auction_id TEXT NOT NULL UNIQUE REFERENCES auctions(id),
  outcome TEXT NOT NULL,
  winner_id TEXT,
  winning_bid TEXT,
  unsold_reason TEXT,
  ended_at DATETIME NOT NULL,
  payment_due_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate
  ON outbox_events (event_type, aggregate_type, aggregate_id)
  WHERE event_type IN ('auction_settlement_requested','auction_ended_unsold');`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// ApplySQLite creates the auction schema on a sqlite connection. Statements are
// idempotent so it is safe on every boot.
func ApplySQLite(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	for i, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("sqlite schema statement %d: %w", i, err)
		}
	}
	return nil
}
