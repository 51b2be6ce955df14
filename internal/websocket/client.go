package chatws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
	"github.com/Top-Pesinde/backend-sub000/internal/services"
)

var nextClientID int64

// ChatGateway is the orchestrator surface the live connection drives. The
// REST handlers use the same service, so both paths persist and broadcast
// identically.
type ChatGateway interface {
	SendMessage(ctx context.Context, senderID int64, input services.SendMessageInput) (*services.MessageDelivery, error)
	MarkConversationRead(ctx context.Context, actorID, conversationID int64) (int64, error)
	ConversationForParticipant(ctx context.Context, actorID, conversationID int64) (*models.Conversation, error)
	UnreadMessages(ctx context.Context, actorID, conversationID int64) ([]models.Message, error)
	Typing(ctx context.Context, actorID, conversationID, receiverID int64, active bool) error
}

type Client struct {
	id     int64
	hub    *Hub
	conn   *websocket.Conn
	userID int64

	// send is never closed; done signals the connection is finished. Both the
	// hub and the pumps may race on teardown, so liveness is carried by done
	// and closeOnce rather than by closing send.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		id:     atomic.AddInt64(&nextClientID, 1),
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
		done:   make(chan struct{}),
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type sendMessagePayload struct {
	ReceiverID    int64   `json:"receiver_id"`
	Content       string  `json:"content"`
	Type          string  `json:"type"`
	ReplyToID     *int64  `json:"reply_to_id"`
	AttachmentRef *string `json:"attachment_ref"`
}

type conversationPayload struct {
	ConversationID int64 `json:"conversation_id"`
}

type typingPayload struct {
	ConversationID int64 `json:"conversation_id"`
	ReceiverID     int64 `json:"receiver_id"`
}

// ReadPump handles inbound events until the connection drops. Every
// orchestrator error is turned into a typed error event back to this
// connection only; nothing escapes into the transport loop.
func (c *Client) ReadPump(gateway ChatGateway, autoReadOnJoin bool) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming inboundEvent
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.writeError(services.EventMessageSendError, services.CauseValidation, "invalid event payload")
			continue
		}

		switch incoming.Event {
		case "send_message":
			c.handleSend(gateway, incoming.Data)
		case "join_conversation":
			c.handleJoin(gateway, incoming.Data, autoReadOnJoin)
		case "leave_conversation":
			c.handleLeave(incoming.Data)
		case "mark_read":
			c.handleMarkRead(gateway, incoming.Data)
		case "typing_start":
			c.handleTyping(gateway, incoming.Data, true)
		case "typing_stop":
			c.handleTyping(gateway, incoming.Data, false)
		default:
			c.writeError(services.EventMessageSendError, services.CauseValidation, "unsupported event")
		}
	}
}

func (c *Client) handleSend(gateway ChatGateway, data json.RawMessage) {
	var req sendMessagePayload
	if err := json.Unmarshal(data, &req); err != nil {
		c.writeError(services.EventMessageSendError, services.CauseValidation, "invalid message payload")
		return
	}

	delivery, err := gateway.SendMessage(context.Background(), c.userID, services.SendMessageInput{
		ReceiverID:    req.ReceiverID,
		Content:       req.Content,
		Type:          models.MessageType(req.Type),
		ReplyToID:     req.ReplyToID,
		AttachmentRef: req.AttachmentRef,
		ExcludeConnID: c.id,
	})
	if err != nil {
		c.writeError(services.EventMessageSendError, services.ErrorCause(err), err.Error())
		return
	}

	c.writeEvent(services.EventMessageSent, delivery)
}

func (c *Client) handleJoin(gateway ChatGateway, data json.RawMessage, autoReadOnJoin bool) {
	var req conversationPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID <= 0 {
		c.writeError(services.EventMessageSendError, services.CauseValidation, "invalid conversation id")
		return
	}

	ctx := context.Background()
	if _, err := gateway.ConversationForParticipant(ctx, c.userID, req.ConversationID); err != nil {
		c.writeError(services.EventMessageSendError, services.ErrorCause(err), err.Error())
		return
	}

	c.hub.JoinConversation(c, req.ConversationID)

	// Catch-up snapshot: unread messages go to the joining connection only.
	unread, err := gateway.UnreadMessages(ctx, c.userID, req.ConversationID)
	if err != nil {
		log.Printf("chat ws: catch-up for conversation %d: %v", req.ConversationID, err)
	} else {
		for i := range unread {
			c.writeEvent(services.EventNewMessage, unread[i])
		}
	}

	// Entering a conversation view implies reading it. Kept as a separate,
	// toggleable step after the join itself.
	if autoReadOnJoin {
		if _, err := gateway.MarkConversationRead(ctx, c.userID, req.ConversationID); err != nil {
			log.Printf("chat ws: auto-read conversation %d: %v", req.ConversationID, err)
		}
	}
}

func (c *Client) handleLeave(data json.RawMessage) {
	var req conversationPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID <= 0 {
		c.writeError(services.EventMessageSendError, services.CauseValidation, "invalid conversation id")
		return
	}
	c.hub.LeaveConversation(c, req.ConversationID)
}

func (c *Client) handleMarkRead(gateway ChatGateway, data json.RawMessage) {
	var req conversationPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID <= 0 {
		c.writeError(services.EventMessageSendError, services.CauseValidation, "invalid conversation id")
		return
	}

	count, err := gateway.MarkConversationRead(context.Background(), c.userID, req.ConversationID)
	if err != nil {
		c.writeError(services.EventMessageSendError, services.ErrorCause(err), err.Error())
		return
	}
	if count == 0 {
		// Explicit no-op acknowledgment; the service broadcasts nothing.
		c.writeEvent(services.EventUnreadCount, map[string]any{
			"conversation_id": req.ConversationID,
			"unread_count":    0,
		})
	}
}

func (c *Client) handleTyping(gateway ChatGateway, data json.RawMessage, active bool) {
	var req typingPayload
	if err := json.Unmarshal(data, &req); err != nil {
		c.writeError(services.EventMessageSendError, services.CauseValidation, "invalid typing payload")
		return
	}

	if err := gateway.Typing(context.Background(), c.userID, req.ConversationID, req.ReceiverID, active); err != nil {
		c.writeError(services.EventMessageSendError, services.ErrorCause(err), err.Error())
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// writeEvent delivers to this connection only. Writes after the hub has
// dropped the connection are silently discarded.
func (c *Client) writeEvent(event string, payload any) {
	encoded, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("chat ws encode %s: %v", event, err)
		return
	}
	select {
	case <-c.done:
	case c.send <- encoded:
	default:
		c.hub.Unregister(c)
	}
}

func (c *Client) writeError(event, cause, message string) {
	c.writeEvent(event, map[string]any{
		"error": message,
		"cause": cause,
	})
}
