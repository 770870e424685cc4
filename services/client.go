package services

import (
	"encoding/json"
	"time"

	"livequiz/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client is one socket subscribed to a room channel.
type Client struct {
	hub           *Hub
	id            string
	socket        *websocket.Conn
	send          chan []byte
	roomCode      string
	participantID uint
	displayName   string
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", "room_code", c.roomCode, "client_id", c.id, "error", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.sendClient(c, EventError, ErrorPayload{Message: "invalid message format"})
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type chatRequest struct {
	Text string `json:"text"`
}

func (c *Client) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case EventPing:
		c.hub.sendClient(c, EventPong, nil)

	case EventRequestGameState:
		go c.hub.sendState(c)

	case EventChatMessage:
		var req chatRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			c.hub.sendClient(c, EventError, ErrorPayload{Message: "invalid chat message"})
			return
		}
		text := SanitizeText(req.Text, MaxChatLength)
		if text == "" {
			return
		}
		c.hub.Broadcast(c.roomCode, EventChatMessage, ChatPayload{
			ParticipantID: c.participantID,
			DisplayName:   c.displayName,
			Text:          text,
		})

	default:
		logger.Debug("Unknown message type", "room_code", c.roomCode, "client_id", c.id, "type", msg.Type)
		c.hub.sendClient(c, EventError, ErrorPayload{Message: "unknown message type"})
	}
}
