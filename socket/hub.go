package socket

import (
	"encoding/json"
	"sync"
	"time"

	"lessonkit/pkg/logger"
	"lessonkit/store"

	"github.com/gorilla/websocket"
)

const (
	SnapshotType       = "LESSON_SNAPSHOT" // Full lesson sent to a joining editor
	UpdateType         = "LESSON_UPDATE"   // A committed authoring operation
	DeletedType        = "LESSON_DELETED"  // Lesson removed, room is closing
	FocusType          = "FOCUS"           // Editor selected a block
	PresenceUpdateType = "PRESENCE_UPDATE" // A user joined, left or moved focus
)

const sendBuffer = 256

type Message struct {
	Type     string          `json:"type"`
	LessonID string          `json:"lesson_id"`
	UserID   string          `json:"user_id"`
	Payload  json.RawMessage `json:"payload"`
}

type FocusPayload struct {
	BlockID string `json:"block_id"`
}

type UserStatus struct {
	UserID       string    `json:"user_id"`
	FocusBlockID string    `json:"focus_block_id,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

// LessonSource is the read side the hub needs from storage.
type LessonSource interface {
	Get(lessonID string) (*store.Lesson, error)
	GetRole(lessonID, userID string) (string, error)
}

type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	source     LessonSource
	// Last committed lesson per open room
	LessonCache map[string][]byte
	mu          sync.Mutex
	Presence    map[string]map[string]UserStatus // lessonID -> userID -> status
}

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	LessonID string
	UserID   string
	Role     string
	Send     chan []byte
}

func NewHub(source LessonSource) *Hub {
	return &Hub{
		Rooms:       make(map[string]map[*Client]bool),
		Broadcast:   make(chan Message),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		source:      source,
		LessonCache: make(map[string][]byte),
		Presence:    make(map[string]map[string]UserStatus),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.register(client)

		case client := <-h.Unregister:
			h.mu.Lock()
			roomOpen := h.removeClient(client)
			h.mu.Unlock()
			if roomOpen {
				h.broadcastPresenceUpdate(client.LessonID)
			}

		case msg := <-h.Broadcast:
			h.broadcast(msg)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	if h.Rooms[client.LessonID] == nil {
		h.Rooms[client.LessonID] = make(map[*Client]bool)
		h.Presence[client.LessonID] = make(map[string]UserStatus)

		// First editor in the room loads the committed lesson.
		lesson, err := h.source.Get(client.LessonID)
		if err != nil {
			logger.Sugar.Errorf("Failed to load lesson %s for room: %v", client.LessonID, err)
		} else if raw, err := json.Marshal(lesson); err == nil {
			h.LessonCache[client.LessonID] = raw
		}
	}
	h.Rooms[client.LessonID][client] = true
	h.Presence[client.LessonID][client.UserID] = UserStatus{UserID: client.UserID, LastSeen: time.Now()}
	// Sent under the lock: RemoveLesson may close Send as soon as it is released.
	if current := h.LessonCache[client.LessonID]; current != nil {
		snapshot, _ := json.Marshal(Message{Type: SnapshotType, LessonID: client.LessonID, Payload: json.RawMessage(current)})
		select {
		case client.Send <- snapshot:
		default:
			logger.Sugar.Warnf("Client %s's send buffer was full during snapshot.", client.UserID)
		}
	}
	h.mu.Unlock()

	h.broadcastPresenceUpdate(client.LessonID)
}

// removeClient drops client from its room and reports whether the room still
// has members. Callers hold h.mu.
func (h *Hub) removeClient(client *Client) bool {
	room, ok := h.Rooms[client.LessonID]
	if !ok || !room[client] {
		return false
	}
	delete(room, client)
	close(client.Send)

	// The same user may still be connected from another tab.
	stillHere := false
	for other := range room {
		if other.UserID == client.UserID {
			stillHere = true
			break
		}
	}
	if !stillHere {
		delete(h.Presence[client.LessonID], client.UserID)
	}

	if len(room) == 0 {
		delete(h.Rooms, client.LessonID)
		delete(h.Presence, client.LessonID)
		delete(h.LessonCache, client.LessonID)
		logger.Sugar.Infof("Closed empty lesson room: %s", client.LessonID)
		return false
	}
	return true
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	switch msg.Type {
	case UpdateType:
		if _, open := h.Rooms[msg.LessonID]; open {
			h.LessonCache[msg.LessonID] = msg.Payload
		}
	case FocusType:
		var focus FocusPayload
		if err := json.Unmarshal(msg.Payload, &focus); err == nil {
			if presence, ok := h.Presence[msg.LessonID]; ok {
				presence[msg.UserID] = UserStatus{UserID: msg.UserID, FocusBlockID: focus.BlockID, LastSeen: time.Now()}
			}
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
		h.mu.Unlock()
		return
	}

	// Everyone in the room except the sender.
	var lagging []*Client
	for client := range h.Rooms[msg.LessonID] {
		if client.UserID == msg.UserID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.UserID)
			lagging = append(lagging, client)
		}
	}
	for _, client := range lagging {
		h.removeClient(client)
		client.Conn.Close()
	}
	h.mu.Unlock()
}

// RemoveLesson notifies and disconnects everyone editing a deleted lesson.
func (h *Hub) RemoveLesson(lessonID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	notice, _ := json.Marshal(Message{Type: DeletedType, LessonID: lessonID})
	for client := range h.Rooms[lessonID] {
		select {
		case client.Send <- notice:
		default:
		}
		// writePump flushes the notice, then closes the connection
		close(client.Send)
	}
	delete(h.Rooms, lessonID)
	delete(h.LessonCache, lessonID)
	delete(h.Presence, lessonID)
}

// BroadcastLesson pushes a committed lesson to the room's other editors.
func (h *Hub) BroadcastLesson(userID string, lesson *store.Lesson) {
	payload, err := json.Marshal(lesson)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling lesson %s for broadcast: %v", lesson.ID, err)
		return
	}
	h.Broadcast <- Message{Type: UpdateType, LessonID: lesson.ID, UserID: userID, Payload: payload}
}

func (h *Hub) broadcastPresenceUpdate(lessonID string) {
	var userStatuses []UserStatus
	var clientsToSend []*Client

	h.mu.Lock()
	if _, ok := h.Presence[lessonID]; ok {
		userStatuses = make([]UserStatus, 0, len(h.Presence[lessonID]))
		for _, status := range h.Presence[lessonID] {
			userStatuses = append(userStatuses, status)
		}

		clientsToSend = make([]*Client, 0, len(h.Rooms[lessonID]))
		for client := range h.Rooms[lessonID] {
			clientsToSend = append(clientsToSend, client)
		}
	}

	if len(clientsToSend) == 0 {
		h.mu.Unlock()
		return
	}

	payload, err := json.Marshal(userStatuses)
	if err != nil {
		h.mu.Unlock()
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	broadcastPayload, _ := json.Marshal(Message{Type: PresenceUpdateType, LessonID: lessonID, Payload: payload})

	// Sends happen under the lock so a concurrent unregister cannot close a channel mid-send.
	for _, client := range clientsToSend {
		select {
		case client.Send <- broadcastPayload:
		default:
			logger.Sugar.Warnf("Client %s's send buffer was full during presence update.", client.UserID)
		}
	}
	h.mu.Unlock()
}
