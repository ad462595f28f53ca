package auctions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/auction-engine/pkg/db/models"
	"github.com/angelmondragon/auction-engine/pkg/enums"
)

// Repository persists auction records and their bid ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, auction *models.Auction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	ListBids(ctx context.Context, auctionID uuid.UUID, afterSequence, limit int) ([]models.AuctionBid, error)
	InsertBid(ctx context.Context, bid *models.AuctionBid) error
	// CompareAndSwap writes the mutable columns only if the stored version
	// still equals expectedVersion, then bumps it. A miss returns
	// ErrVersionConflict.
	CompareAndSwap(ctx context.Context, auction *models.Auction, expectedVersion int64) error
	ListDueIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an auctions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, auction *models.Auction) error {
	if auction.ID == uuid.Nil {
		auction.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(auction).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&auction).Error; err != nil {
		return nil, err
	}
	return &auction, nil
}

func (r *repository) ListBids(ctx context.Context, auctionID uuid.UUID, afterSequence, limit int) ([]models.AuctionBid, error) {
	var bids []models.AuctionBid
	if err := r.db.WithContext(ctx).
		Where("auction_id = ? AND sequence_number > ?", auctionID, afterSequence).
		Order("sequence_number ASC").
		Limit(limit).
		Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) InsertBid(ctx context.Context, bid *models.AuctionBid) error {
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *repository) CompareAndSwap(ctx context.Context, auction *models.Auction, expectedVersion int64) error {
	next := expectedVersion + 1
	res := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND version = ?", auction.ID, expectedVersion).
		Updates(map[string]any{
			"status":            auction.Status,
			"start_time":        auction.StartTime,
			"current_bid":       auction.CurrentBid,
			"highest_bidder_id": auction.HighestBidderID,
			"total_bids":        auction.TotalBids,
			"end_reason":        auction.EndReason,
			"ended_at":          auction.EndedAt,
			"cancelled_at":      auction.CancelledAt,
			"version":           next,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	auction.Version = next
	return nil
}

// ListDueIDs returns auctions whose persisted timestamps call for a
// transition at now.
func (r *repository) ListDueIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("(status = ? AND start_time <= ?) OR (status = ? AND end_time <= ?)",
			enums.AuctionStatusScheduled, now, enums.AuctionStatusActive, now).
		Order("end_time ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
