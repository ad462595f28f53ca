package notifications

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angelmondragon/auction-engine/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ServeStream pumps a subscription to a websocket connection until the peer
// disconnects, ctx ends, or the hub closes the subscription. It owns conn and
// sub and releases both before returning.
func ServeStream(ctx context.Context, conn *websocket.Conn, sub *Subscription, logg *logger.Logger) {
	defer sub.Close()
	defer conn.Close()

	readDone := make(chan struct{})
	go readPump(ctx, conn, readDone, logg)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			writeClose(conn, websocket.CloseGoingAway)
			return
		case <-readDone:
			return
		case event, ok := <-sub.Events():
			if !ok {
				// evicted or hub shutdown; the client re-subscribes and re-fetches the snapshot
				writeClose(conn, websocket.CloseTryAgainLater)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed.
func readPump(ctx context.Context, conn *websocket.Conn, done chan<- struct{}, logg *logger.Logger) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) && logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "stream connection closed unexpectedly")
			}
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
