package websocket

import (
	"context"
	"sync"

	"collabchat/internal/domain/message"

	"github.com/google/uuid"
)

// roomRequest is a join/leave for one connection and one conversation
// room.
type roomRequest struct {
	client *Client
	room   uuid.UUID
	join   bool
}

// Hub is the process-wide delivery registry: it maps conversation rooms
// to the connections currently joined to them. It is constructed and
// injected, never ambient. Room membership is session-scoped: it is
// built on connect and torn down on disconnect, so clients must re-join
// after reconnecting.
type Hub struct {
	mu sync.RWMutex

	// clients maps connection id to client, for cleanup on disconnect.
	clients map[string]*Client

	// rooms maps conversation id to the subscriber set.
	rooms map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	membership chan roomRequest
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		membership: make(chan roomRequest, 512),
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.membership:
			if req.join {
				h.joinRoom(req.client, req.room)
			} else {
				h.leaveRoom(req.client, req.room)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Join subscribes a connection to a conversation room. The hub performs
// no authorization; callers validate participancy first.
func (h *Hub) Join(client *Client, conversationID uuid.UUID) {
	h.membership <- roomRequest{client: client, room: conversationID, join: true}
}

func (h *Hub) Leave(client *Client, conversationID uuid.UUID) {
	h.membership <- roomRequest{client: client, room: conversationID, join: false}
}

// Publish delivers payload to every connection joined to the room,
// best-effort. Each connection's buffered send channel isolates slow
// consumers; zero subscribers is not an error.
func (h *Hub) Publish(conversationID uuid.UUID, payload []byte) {
	h.mu.RLock()
	for c := range h.rooms[conversationID] {
		c.Enqueue(payload)
	}
	h.mu.RUnlock()
}

// PublishMessage implements services.Publisher.
func (h *Hub) PublishMessage(record message.Record) {
	payload, err := EncodeMessageEvent(record)
	if err != nil {
		return
	}
	h.Publish(record.ConversationID, payload)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range client.rooms {
		if subscribers, ok := h.rooms[room]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.send)
}

func (h *Hub) joinRoom(client *Client, room uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.addRoom(room)
}

func (h *Hub) leaveRoom(client *Client, room uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
	client.removeRoom(room)
}
