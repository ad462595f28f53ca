package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestApplySQLiteIsIdempotent(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:apply_sqlite?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ApplySQLite(ctx, conn))
	require.NoError(t, ApplySQLite(ctx, conn))

	for _, table := range []string{"auctions", "auction_bids", "auction_settlements", "outbox_events", "outbox_dlq"} {
		require.True(t, conn.Migrator().HasTable(table), "missing table %s", table)
	}
	require.Error(t, ApplySQLite(ctx, nil))
}
