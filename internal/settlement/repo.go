package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/auction-engine/pkg/db/models"
	"github.com/angelmondragon/auction-engine/pkg/enums"
)

// Repository persists settlement outcomes and reads the auctions they close.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	FindByAuctionID(ctx context.Context, auctionID uuid.UUID) (*models.AuctionSettlement, error)
	Create(ctx context.Context, settlement *models.AuctionSettlement) error
	ListEndedUnsettledIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settlement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	if err := r.db.WithContext(ctx).Where("id = ?", auctionID).First(&auction).Error; err != nil {
		return nil, err
	}
	return &auction, nil
}

// FindByAuctionID returns nil without error when the auction has no settlement yet.
func (r *repository) FindByAuctionID(ctx context.Context, auctionID uuid.UUID) (*models.AuctionSettlement, error) {
	var settlement models.AuctionSettlement
	err := r.db.WithContext(ctx).Where("auction_id = ?", auctionID).First(&settlement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) Create(ctx context.Context, settlement *models.AuctionSettlement) error {
	if settlement.ID == uuid.Nil {
		settlement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) ListEndedUnsettledIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("status = ?", enums.AuctionStatusEnded).
		Where("NOT EXISTS (SELECT 1 FROM auction_settlements s WHERE s.auction_id = auctions.id)").
		Order("ended_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
