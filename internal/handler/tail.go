package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/logvault/logvault/internal/pkg/logger"
	"github.com/logvault/logvault/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type TailHandler struct {
	broker *service.TailBroker
}

func NewTailHandler(broker *service.TailBroker) *TailHandler {
	return &TailHandler{broker: broker}
}

// Stream serves GET /v1/tail: upgrades to a websocket and pushes each
// newly accepted record as a JSON message. An optional file_id query
// param narrows the stream to one file.
func (h *TailHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("tail upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	records, cancel := h.broker.Subscribe(c.Query("file_id"))
	defer cancel()

	// Drain client frames so pings and close messages are processed;
	// a read error means the client went away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(rec); err != nil {
				logger.Debug("tail write failed", "error", err)
				return
			}
		}
	}
}
