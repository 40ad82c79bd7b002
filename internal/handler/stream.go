package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/cinebook/seat-reservation/internal/hub"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamHandler upgrades GET /v1/showtimes/:id/stream to a WebSocket and
// forwards the hub's events to the client: one full snapshot on join, then
// seat deltas in commit order for as long as the connection lasts. A
// client that falls behind is dropped by the hub and should reconnect; the
// fresh snapshot corrects whatever it missed.
type StreamHandler struct {
	Hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewStreamHandler returns a StreamHandler over the given hub.
func NewStreamHandler(h *hub.Hub) *StreamHandler {
	return &StreamHandler{
		Hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Seat availability is public; the browse endpoints are open too.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// JoinShowtime handles the WebSocket upgrade and streams hub events until
// the client disconnects or the hub drops the subscription.
func (h *StreamHandler) JoinShowtime(c echo.Context) error {
	showtimeID := c.Param("id")
	if showtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub, err := h.Hub.Subscribe(c.Request().Context(), showtimeID)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return nil
	}
	defer h.Hub.Unsubscribe(sub)

	// Drain client frames so pongs and close frames are processed; the
	// stream is one-directional otherwise.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				// Hub dropped us (slow consumer); tell the client to rejoin.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resubscribe"),
					time.Now().Add(writeWait))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("stream: write to subscriber %s failed: %v", sub.ID, err)
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
