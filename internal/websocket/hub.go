package chatws

import (
	"encoding/json"
	"log"
	"time"
)

// Event is the outbound wire envelope. Timestamp is stamped at emit time,
// independent of any persisted created_at, so clients can tell transport
// reordering apart from persistence-time ordering.
type Event struct {
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

type deliveryScope int

const (
	scopeUser deliveryScope = iota
	scopeConversation
	scopeAll
)

type outbound struct {
	scope         deliveryScope
	targetID      int64
	excludeConnID int64
	payload       []byte
}

type roomChange struct {
	client         *Client
	conversationID int64
}

// Hub is the presence router and delivery broadcaster. It owns the only
// mutable membership state: a private channel per connected user and a room
// per joined conversation. All mutation goes through the Run loop; other
// components only request joins, leaves and deliveries.
type Hub struct {
	clients map[int64]map[*Client]struct{}
	rooms   map[int64]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	joins      chan roomChange
	leaves     chan roomChange
	deliveries chan outbound
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		rooms:      make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		joins:      make(chan roomChange),
		leaves:     make(chan roomChange),
		deliveries: make(chan outbound, 64),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			h.drop(client)
		case change := <-h.joins:
			set, ok := h.rooms[change.conversationID]
			if !ok {
				set = make(map[*Client]struct{})
				h.rooms[change.conversationID] = set
			}
			set[change.client] = struct{}{}
		case change := <-h.leaves:
			h.leaveRoom(change.client, change.conversationID)
		case delivery := <-h.deliveries:
			h.deliver(delivery)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister releases the connection's private-channel slot and every room
// membership. Nothing is queued for a disconnected connection.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinConversation admits the connection to a conversation room. Membership
// is in-memory only and dropped on disconnect.
func (h *Hub) JoinConversation(client *Client, conversationID int64) {
	h.joins <- roomChange{client: client, conversationID: conversationID}
}

func (h *Hub) LeaveConversation(client *Client, conversationID int64) {
	h.leaves <- roomChange{client: client, conversationID: conversationID}
}

// ToUser emits to every connection in the user's private channel.
func (h *Hub) ToUser(userID int64, event string, payload any) {
	h.emit(outbound{scope: scopeUser, targetID: userID}, event, payload)
}

// ToConversation emits to the room's current members, optionally excluding
// one originating connection.
func (h *Hub) ToConversation(conversationID int64, event string, payload any, excludeConnID int64) {
	h.emit(outbound{scope: scopeConversation, targetID: conversationID, excludeConnID: excludeConnID}, event, payload)
}

// ToAll emits to every connected client. Not used for chat messages.
func (h *Hub) ToAll(event string, payload any) {
	h.emit(outbound{scope: scopeAll}, event, payload)
}

func (h *Hub) emit(delivery outbound, event string, payload any) {
	encoded, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("chat hub encode %s: %v", event, err)
		return
	}
	delivery.payload = encoded
	h.deliveries <- delivery
}

func encodeEvent(event string, payload any) ([]byte, error) {
	return json.Marshal(Event{
		Event:     event,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Hub) deliver(delivery outbound) {
	switch delivery.scope {
	case scopeUser:
		h.sendToSet(h.clients[delivery.targetID], delivery.payload, 0)
	case scopeConversation:
		h.sendToSet(h.rooms[delivery.targetID], delivery.payload, delivery.excludeConnID)
	case scopeAll:
		for _, set := range h.clients {
			h.sendToSet(set, delivery.payload, 0)
		}
	}
}

func (h *Hub) sendToSet(set map[*Client]struct{}, payload []byte, excludeConnID int64) {
	for client := range set {
		if excludeConnID != 0 && client.id == excludeConnID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Slow or dead connection: drop it rather than queue.
			h.drop(client)
		}
	}
}

// drop releases every membership and signals the connection's done channel.
// The send channel is never closed here; the client's pumps may still be
// writing to it from their own goroutines.
func (h *Hub) drop(client *Client) {
	set, ok := h.clients[client.userID]
	if ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.userID)
		}
	}
	for conversationID := range h.rooms {
		h.leaveRoom(client, conversationID)
	}
	client.shutdown()
}

func (h *Hub) leaveRoom(client *Client, conversationID int64) {
	set, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.rooms, conversationID)
	}
}
