package realtime

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketConn wraps websocket.Conn so hub.go does not import websocket.
type WebSocketConn struct {
	Conn *websocket.Conn
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{Conn: c}
}

// Serve registers the client, pumps frames from Send to the socket and
// returns when the peer goes away. Incoming frames are read and discarded.
func (h *Hub) Serve(client *Client) {
	conn := client.Conn.Conn
	if !h.RegisterClient(client) {
		_ = conn.Close()
		return
	}
	defer h.UnregisterClient(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case frame, ok := <-client.Send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					h.log.Debug().Err(err).Str("client_id", client.ID).Msg("websocket write failed")
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		select {
		case <-done:
			return
		default:
		}
	}
}
