package handler

import (
	"net/http"
	"strconv"

	"inkflow-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS middleware in front.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Subscribe attaches a detail-view context to the broadcast channel over a
// websocket. The connection announces DETAIL_READY for its index on open and
// then receives the channel-message union until the channel closes or the
// client disconnects.
func (h *GenerationHandler) Subscribe(c *gin.Context) {
	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	channel := h.coord.SubscribeChannel()
	sub := channel.Subscribe()
	defer channel.Unsubscribe(sub)

	h.coord.ViewerReady(index)
	defer h.coord.ViewerGone()

	// Drain the read side only to notice the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				_ = conn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "generation channel closed"),
				)
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-clientGone:
			return
		}
	}
}
