package notifier

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/walletmesh/quorumd/coordinator/modules/logger"
	"github.com/walletmesh/quorumd/coordinator/types"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 16
)

// Connection is one device's live channel. Outbound fanout pushes onto the
// send channel; the write pump owns the websocket, decoupling delivery from
// the publisher's request/response cycle.
type Connection struct {
	id     string
	userID string
	device *types.DeviceInfo

	ws   *websocket.Conn
	send chan *types.NotificationMessage

	closeOnce  sync.Once
	unregister func()
	logger     logger.Logger
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.unregister()
		close(c.send)
		_ = c.ws.Close()
	})
}

// push enqueues a message without blocking. A slow or wedged device drops
// the message; the resync pull path compensates.
func (c *Connection) push(msg *types.NotificationMessage) {
	select {
	case c.send <- msg:
	default:
		c.logger.Log("dropping notification %s for slow connection %s/%s", msg.ID, c.userID, c.id)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Log("failed to write notification to %s/%s: %v", c.userID, c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames to keep pong handling alive and tears the
// connection down when the peer goes away.
func (c *Connection) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
