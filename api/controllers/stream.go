package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelmondragon/auction-engine/api/responses"
	"github.com/angelmondragon/auction-engine/internal/auctions"
	"github.com/angelmondragon/auction-engine/internal/notifications"
	pkgerrors "github.com/angelmondragon/auction-engine/pkg/errors"
	"github.com/angelmondragon/auction-engine/pkg/logger"
)

// StreamSubscriber registers per-auction event subscriptions.
type StreamSubscriber interface {
	Subscribe(ctx context.Context, auctionID uuid.UUID) (*notifications.Subscription, error)
}

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// tokens, not cookies, authenticate the stream
	CheckOrigin: func(*http.Request) bool { return true },
}

// AuctionStream upgrades to a websocket and pushes the auction's events. The
// subscription is registered before the upgrade.
func AuctionStream(svc auctions.Service, hub StreamSubscriber, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || hub == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction stream unavailable"))
			return
		}

		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if _, err := svc.Get(ctx, auctionID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := hub.Subscribe(ctx, auctionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to auction events"))
			return
		}

		conn, err := streamUpgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the handshake error
			sub.Close()
			return
		}

		if logg != nil {
			ctx = logg.WithAuctionID(ctx, auctionID.String())
			logg.Info(ctx, "auction stream opened")
		}
		notifications.ServeStream(ctx, conn, sub, logg)
		if logg != nil {
			logg.Info(ctx, "auction stream closed")
		}
	}
}
