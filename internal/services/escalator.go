package services

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
)

// DefaultEscalationDelay is how long a message may stay unread before it is
// promoted to a push notification.
const DefaultEscalationDelay = 5 * time.Second

// PushSender dispatches an external push notification. Failures are logged
// and swallowed; the message itself already succeeded.
type PushSender interface {
	SendToUser(ctx context.Context, userID int64, title, body string, data map[string]string) error
}

type messageReader interface {
	GetMessage(ctx context.Context, messageID int64) (*models.Message, error)
}

// NotificationEscalator schedules a one-shot deferred check per sent message.
// If the message is still unread when the timer fires, exactly one push is
// dispatched to the receiver. All pending timers are owned by the escalator
// so shutdown can cancel them deterministically.
type NotificationEscalator struct {
	store messageReader
	push  PushSender
	delay time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer
	closed bool
}

func NewNotificationEscalator(store messageReader, push PushSender, delay time.Duration) *NotificationEscalator {
	if delay <= 0 {
		delay = DefaultEscalationDelay
	}
	return &NotificationEscalator{
		store:  store,
		push:   push,
		delay:  delay,
		timers: make(map[int64]*time.Timer),
	}
}

// Schedule registers the deferred unread check. Scheduling the same message
// twice is a no-op; so is scheduling after shutdown.
func (e *NotificationEscalator) Schedule(message *models.Message) {
	if e == nil || message == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if _, exists := e.timers[message.ID]; exists {
		return
	}

	messageID := message.ID
	receiverID := message.ReceiverID
	e.timers[messageID] = time.AfterFunc(e.delay, func() {
		e.check(messageID, receiverID)
	})
}

// Pending reports how many checks are still scheduled.
func (e *NotificationEscalator) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// Shutdown cancels every pending check. A check that already fired and races
// the cancellation behaves as a no-op.
func (e *NotificationEscalator) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
}

func (e *NotificationEscalator) check(messageID, receiverID int64) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	delete(e.timers, messageID)
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	message, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		log.Printf("escalator: reload message %d: %v", messageID, err)
		return
	}
	if message.IsRead || message.IsDeleted {
		return
	}

	if e.push == nil {
		return
	}

	body := models.MessagePreview(message.Content)
	if message.Type != models.MessageTypeText {
		body = "You received a new message"
	}

	if err := e.push.SendToUser(ctx, receiverID, "New message", body, map[string]string{
		"conversation_id": strconv.FormatInt(message.ConversationID, 10),
		"message_id":      strconv.FormatInt(message.ID, 10),
	}); err != nil {
		log.Printf("escalator: push for message %d: %v", messageID, err)
	}
}
