package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamedEvent is one bus event pushed to a websocket client.
type streamedEvent struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

// eventFamilies streamed to websocket clients.
var eventFamilies = []string{
	"node:*", "execution:*", "workflow:*", "ai:*", "human:*",
	"timer:*", "email:*", "form:*", "notification:*",
}

// eventStream upgrades the connection and forwards every lifecycle event.
// A slow client drops events rather than blocking the bus.
func (r *Router) eventStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	buffer := make(chan streamedEvent, 256)
	cancels := make([]func(), 0, len(eventFamilies))
	for _, family := range eventFamilies {
		cancel := r.bus.Subscribe(family, func(event string, payload map[string]interface{}) {
			select {
			case buffer <- streamedEvent{Event: event, Payload: payload}:
			default:
			}
		})
		cancels = append(cancels, cancel)
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

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
		case event := <-buffer:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
