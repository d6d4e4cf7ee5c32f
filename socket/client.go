package socket

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"lessonkit/pkg/logger"
	"lessonkit/store"

	"github.com/gorilla/websocket"
)

const (
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer in front of the router
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs admits an owner or editor into the lesson's authoring room.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	lessonID := r.URL.Query().Get("lessonId")
	if lessonID == "" {
		http.Error(w, "Missing lessonId parameter", http.StatusBadRequest)
		return
	}

	role, err := hub.source.GetRole(lessonID, userID)
	if err == sql.ErrNoRows {
		logger.Sugar.Warnf("Connection rejected: lesson %s not found", lessonID)
		http.Error(w, "Lesson not found", http.StatusNotFound)
		return
	} else if err != nil {
		logger.Sugar.Errorf("Database error checking role: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if role != store.RoleOwner && role != store.RoleEditor {
		logger.Sugar.Warnf("Connection rejected: user %s is %s on lesson %s", userID, role, lessonID)
		http.Error(w, "Only editors can join the authoring room", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:      hub,
		Conn:     conn,
		LessonID: lessonID,
		UserID:   userID,
		Role:     role,
		Send:     make(chan []byte, sendBuffer),
	}
	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Server-authoritative fields, so nobody speaks for someone else.
		msg.LessonID = c.LessonID
		msg.UserID = c.UserID

		// Lesson edits go through the HTTP API where they are validated.
		if msg.Type != FocusType {
			logger.Sugar.Warnf("Dropping %q message from user %s on lesson %s", msg.Type, c.UserID, c.LessonID)
			continue
		}
		c.Hub.Broadcast <- msg
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
