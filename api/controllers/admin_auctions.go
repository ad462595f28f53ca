package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/auction-engine/api/middleware"
	"github.com/angelmondragon/auction-engine/api/responses"
	"github.com/angelmondragon/auction-engine/api/validators"
	"github.com/angelmondragon/auction-engine/internal/auctions"
	"github.com/angelmondragon/auction-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/auction-engine/pkg/errors"
	"github.com/angelmondragon/auction-engine/pkg/logger"
)

type createAuctionPayload struct {
	ProductID       string    `json:"productId" validate:"required,uuid"`
	VendorID        string    `json:"vendorId" validate:"required,uuid"`
	StartTime       time.Time `json:"startTime" validate:"required"`
	EndTime         time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	StartingBid     string    `json:"startingBid" validate:"required,money"`
	MinBidIncrement string    `json:"minBidIncrement" validate:"required,money"`
	ReservePrice    *string   `json:"reservePrice,omitempty" validate:"omitempty,money"`
	BuyNowPrice     *string   `json:"buyNowPrice,omitempty" validate:"omitempty,money"`
}

func (p createAuctionPayload) toInput() (auctions.CreateAuctionInput, error) {
	input := auctions.CreateAuctionInput{
		ProductID: uuid.MustParse(p.ProductID),
		VendorID:  uuid.MustParse(p.VendorID),
		StartTime: p.StartTime.UTC(),
		EndTime:   p.EndTime.UTC(),
	}
	var err error
	if input.StartingBid, err = validators.ParseMoney("startingBid", p.StartingBid); err != nil {
		return input, err
	}
	if input.MinBidIncrement, err = validators.ParseMoney("minBidIncrement", p.MinBidIncrement); err != nil {
		return input, err
	}
	if input.ReservePrice, err = validators.ParseOptionalMoney("reservePrice", p.ReservePrice); err != nil {
		return input, err
	}
	if input.BuyNowPrice, err = validators.ParseOptionalMoney("buyNowPrice", p.BuyNowPrice); err != nil {
		return input, err
	}
	return input, nil
}

// AdminCreateAuction registers an approved catalog listing as a scheduled auction.
func AdminCreateAuction(svc auctions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload createAuctionPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input.ActorID = actor
		input.ActorRole = enums.UserRole(middleware.RoleFromContext(ctx))

		snapshot, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, snapshot)
	}
}

type auctionCommand func(ctx context.Context, input auctions.CommandInput) (*auctions.Snapshot, error)

// AdminStartAuction opens bidding ahead of the scheduled start.
func AdminStartAuction(svc auctions.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminCommand(nil, logg)
	}
	return adminCommand(svc.Start, logg)
}

// AdminEndAuction closes bidding early and settles the auction.
func AdminEndAuction(svc auctions.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminCommand(nil, logg)
	}
	return adminCommand(svc.End, logg)
}

// AdminCancelAuction withdraws an auction without a winner.
func AdminCancelAuction(svc auctions.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminCommand(nil, logg)
	}
	return adminCommand(svc.Cancel, logg)
}

func adminCommand(run auctionCommand, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if run == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}

		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithAuctionID(ctx, auctionID.String())
		}

		snapshot, err := run(ctx, auctions.CommandInput{
			AuctionID: auctionID,
			ActorID:   actor,
			ActorRole: enums.UserRole(middleware.RoleFromContext(ctx)),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
