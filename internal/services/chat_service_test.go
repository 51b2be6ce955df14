package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Top-Pesinde/backend-sub000/internal/models"
	"github.com/Top-Pesinde/backend-sub000/internal/repository"
	"github.com/jackc/pgx/v5"
)

type stubChatStore struct {
	conversation *models.Conversation
	convErr      error
	appendResult *models.Message
	appendErr    error
	message      *models.Message
	messageErr   error
	editResult   *models.Message
	deleteResult *models.Message
	blocks       []models.UserBlock
	blocksErr    error
	markCount    int64
	markErr      error
	unread       []models.Message
	summaries    []models.ConversationSummary
	pageResult   []models.Message
	pageTotal    int

	lastAppend repository.CreateMessageInput
	markCalls  int
}

func (s *stubChatStore) FindOrCreateConversation(_ context.Context, _, _ int64) (*models.Conversation, error) {
	return s.conversation, s.convErr
}

func (s *stubChatStore) ConversationForParticipant(_ context.Context, _, _ int64) (*models.Conversation, error) {
	if s.conversation == nil && s.convErr == nil {
		return nil, pgx.ErrNoRows
	}
	return s.conversation, s.convErr
}

func (s *stubChatStore) ListConversations(_ context.Context, _ int64) ([]models.ConversationSummary, error) {
	return s.summaries, nil
}

func (s *stubChatStore) AppendMessage(_ context.Context, input repository.CreateMessageInput) (*models.Message, error) {
	s.lastAppend = input
	return s.appendResult, s.appendErr
}

func (s *stubChatStore) ListMessages(_ context.Context, _ int64, _, _ int) ([]models.Message, int, error) {
	return s.pageResult, s.pageTotal, nil
}

func (s *stubChatStore) UnreadMessages(_ context.Context, _, _ int64) ([]models.Message, error) {
	return s.unread, nil
}

func (s *stubChatStore) MarkConversationRead(_ context.Context, _, _ int64) (int64, error) {
	s.markCalls++
	return s.markCount, s.markErr
}

func (s *stubChatStore) GetMessage(_ context.Context, _ int64) (*models.Message, error) {
	if s.message == nil && s.messageErr == nil {
		return nil, pgx.ErrNoRows
	}
	return s.message, s.messageErr
}

func (s *stubChatStore) EditMessage(_ context.Context, _ int64, content string) (*models.Message, error) {
	if s.editResult != nil {
		s.editResult.Content = content
	}
	return s.editResult, nil
}

func (s *stubChatStore) DeleteMessage(_ context.Context, _ int64) (*models.Message, error) {
	return s.deleteResult, nil
}

func (s *stubChatStore) BlocksBetween(_ context.Context, _, _ int64) ([]models.UserBlock, error) {
	return s.blocks, s.blocksErr
}

type stubUserReader struct {
	users map[int64]*models.User
}

func (s *stubUserReader) GetByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

type recordedEvent struct {
	scope   string
	target  int64
	event   string
	payload any
	exclude int64
}

type fakeBroadcaster struct {
	events []recordedEvent
}

func (f *fakeBroadcaster) ToUser(userID int64, event string, payload any) {
	f.events = append(f.events, recordedEvent{scope: "user", target: userID, event: event, payload: payload})
}

func (f *fakeBroadcaster) ToConversation(conversationID int64, event string, payload any, excludeConnID int64) {
	f.events = append(f.events, recordedEvent{
		scope:   "conversation",
		target:  conversationID,
		event:   event,
		payload: payload,
		exclude: excludeConnID,
	})
}

func (f *fakeBroadcaster) ToAll(event string, payload any) {
	f.events = append(f.events, recordedEvent{scope: "all", event: event, payload: payload})
}

type fakeEscalator struct {
	scheduled []int64
}

func (f *fakeEscalator) Schedule(message *models.Message) {
	f.scheduled = append(f.scheduled, message.ID)
}

func newTestService(store *stubChatStore, users *stubUserReader) (*ChatService, *fakeBroadcaster, *fakeEscalator) {
	if users == nil {
		users = &stubUserReader{users: map[int64]*models.User{
			1: {ID: 1, Role: "player"},
			2: {ID: 2, Role: "owner"},
		}}
	}
	broadcaster := &fakeBroadcaster{}
	escalator := &fakeEscalator{}
	return NewChatService(store, users, broadcaster, escalator), broadcaster, escalator
}

func TestSendMessagePersistsBroadcastsAndEscalates(t *testing.T) {
	store := &stubChatStore{
		conversation: &models.Conversation{ID: 7, User1ID: 1, User2ID: 2, IsActive: true},
		appendResult: &models.Message{
			ID:             31,
			ConversationID: 7,
			SenderID:       1,
			ReceiverID:     2,
			Content:        "hello",
			Type:           models.MessageTypeText,
		},
	}
	service, broadcaster, escalator := newTestService(store, nil)

	delivery, err := service.SendMessage(context.Background(), 1, SendMessageInput{
		ReceiverID:    2,
		Content:       "  hello  ",
		ExcludeConnID: 99,
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if delivery.Conversation.ID != 7 || delivery.Message.ID != 31 {
		t.Fatalf("unexpected delivery: %+v", delivery)
	}
	if store.lastAppend.Content != "hello" || store.lastAppend.Type != models.MessageTypeText {
		t.Fatalf("unexpected append input: %+v", store.lastAppend)
	}

	if len(broadcaster.events) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(broadcaster.events))
	}
	first := broadcaster.events[0]
	if first.scope != "user" || first.target != 2 || first.event != EventNewMessage {
		t.Fatalf("unexpected private-channel broadcast: %+v", first)
	}
	second := broadcaster.events[1]
	if second.scope != "conversation" || second.target != 7 || second.exclude != 99 {
		t.Fatalf("unexpected conversation broadcast: %+v", second)
	}

	if len(escalator.scheduled) != 1 || escalator.scheduled[0] != 31 {
		t.Fatalf("expected message 31 scheduled for escalation, got %v", escalator.scheduled)
	}
}

func TestSendMessageValidation(t *testing.T) {
	store := &stubChatStore{}
	service, _, _ := newTestService(store, nil)
	ctx := context.Background()

	if _, err := service.SendMessage(ctx, 1, SendMessageInput{ReceiverID: 1, Content: "hi"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self-send, got %v", err)
	}
	if _, err := service.SendMessage(ctx, 1, SendMessageInput{ReceiverID: 2, Content: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty content, got %v", err)
	}
	if _, err := service.SendMessage(ctx, 1, SendMessageInput{ReceiverID: 2, Content: "hi", Type: "sticker"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown type, got %v", err)
	}
	if _, err := service.SendMessage(ctx, 1, SendMessageInput{ReceiverID: 404, Content: "hi"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSendMessageBlockingDistinguishesCauses(t *testing.T) {
	permanent := models.PermanentBlockPrefix + "abuse"

	cases := []struct {
		name   string
		blocks []models.UserBlock
		want   error
	}{
		{
			name:   "blocked by receiver",
			blocks: []models.UserBlock{{BlockedByID: 2, BlockedUserID: 1}},
			want:   ErrBlockedByUser,
		},
		{
			name:   "blocked by sender",
			blocks: []models.UserBlock{{BlockedByID: 1, BlockedUserID: 2}},
			want:   ErrUserBlocked,
		},
		{
			name:   "permanent ban wins",
			blocks: []models.UserBlock{{BlockedByID: 1, BlockedUserID: 2, Reason: &permanent}},
			want:   ErrBanned,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubChatStore{blocks: tc.blocks}
			service, broadcaster, escalator := newTestService(store, nil)

			_, err := service.SendMessage(context.Background(), 1, SendMessageInput{ReceiverID: 2, Content: "hi"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(broadcaster.events) != 0 || len(escalator.scheduled) != 0 {
				t.Fatal("expected no side effects on blocked send")
			}
		})
	}
}

func TestSendMessageRejectsReplyAcrossConversations(t *testing.T) {
	replyTo := int64(5)
	store := &stubChatStore{
		conversation: &models.Conversation{ID: 7, User1ID: 1, User2ID: 2},
		message:      &models.Message{ID: 5, ConversationID: 99},
	}
	service, _, _ := newTestService(store, nil)

	_, err := service.SendMessage(context.Background(), 1, SendMessageInput{
		ReceiverID: 2,
		Content:    "hi",
		ReplyToID:  &replyTo,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for cross-conversation reply, got %v", err)
	}
}

func TestMarkConversationReadNoopHasNoSideEffects(t *testing.T) {
	store := &stubChatStore{
		conversation: &models.Conversation{ID: 7, User1ID: 1, User2ID: 2},
		markCount:    0,
	}
	service, broadcaster, _ := newTestService(store, nil)

	count, err := service.MarkConversationRead(context.Background(), 2, 7)
	if err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count 0, got %d", count)
	}
	if len(broadcaster.events) != 0 {
		t.Fatalf("expected no broadcasts for a no-op mark-read, got %+v", broadcaster.events)
	}
}

func TestMarkConversationReadNotifiesBothSides(t *testing.T) {
	store := &stubChatStore{
		conversation: &models.Conversation{ID: 7, User1ID: 1, User2ID: 2},
		markCount:    3,
	}
	service, broadcaster, _ := newTestService(store, nil)

	count, err := service.MarkConversationRead(context.Background(), 2, 7)
	if err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}

	if len(broadcaster.events) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(broadcaster.events))
	}
	if broadcaster.events[0].target != 1 || broadcaster.events[0].event != EventMessagesRead {
		t.Fatalf("expected read event to other participant, got %+v", broadcaster.events[0])
	}
	if broadcaster.events[1].target != 2 || broadcaster.events[1].event != EventUnreadCount {
		t.Fatalf("expected unread-count event to reader, got %+v", broadcaster.events[1])
	}
}

func TestEditMessageWindow(t *testing.T) {
	inside := &models.Message{
		ID:             31,
		ConversationID: 7,
		SenderID:       1,
		Content:        "hello",
		CreatedAt:      time.Now().Add(-EditWindow + time.Second),
	}
	store := &stubChatStore{message: inside, editResult: &models.Message{ID: 31, ConversationID: 7, SenderID: 1, IsEdited: true}}
	service, broadcaster, _ := newTestService(store, nil)

	updated, err := service.EditMessage(context.Background(), 1, 31, "hello there")
	if err != nil {
		t.Fatalf("EditMessage inside window: %v", err)
	}
	if updated.Content != "hello there" {
		t.Fatalf("unexpected edited content: %q", updated.Content)
	}
	if len(broadcaster.events) != 1 || broadcaster.events[0].event != EventMessageEdited {
		t.Fatalf("expected one message_edited broadcast, got %+v", broadcaster.events)
	}

	store.message = &models.Message{
		ID:        31,
		SenderID:  1,
		CreatedAt: time.Now().Add(-EditWindow - time.Second),
	}
	if _, err := service.EditMessage(context.Background(), 1, 31, "too late"); !errors.Is(err, ErrEditWindowExpired) {
		t.Fatalf("expected ErrEditWindowExpired, got %v", err)
	}
}

func TestEditMessageGuards(t *testing.T) {
	store := &stubChatStore{message: &models.Message{ID: 31, SenderID: 1, CreatedAt: time.Now()}}
	service, _, _ := newTestService(store, nil)
	ctx := context.Background()

	if _, err := service.EditMessage(ctx, 2, 31, "not mine"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-sender, got %v", err)
	}

	store.message = &models.Message{ID: 31, SenderID: 1, IsDeleted: true, CreatedAt: time.Now()}
	if _, err := service.EditMessage(ctx, 1, 31, "resurrect"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound for deleted message, got %v", err)
	}

	store.message = nil
	if _, err := service.EditMessage(ctx, 1, 31, "ghost"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound for missing message, got %v", err)
	}
}

func TestDeleteMessageTombstonesAndBroadcasts(t *testing.T) {
	store := &stubChatStore{
		message: &models.Message{ID: 31, ConversationID: 7, SenderID: 1},
		deleteResult: &models.Message{
			ID:             31,
			ConversationID: 7,
			SenderID:       1,
			Content:        models.DeletedMessageContent,
			IsDeleted:      true,
		},
	}
	service, broadcaster, _ := newTestService(store, nil)

	deleted, err := service.DeleteMessage(context.Background(), 1, 31)
	if err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if deleted.Content != models.DeletedMessageContent || !deleted.IsDeleted {
		t.Fatalf("expected tombstoned message, got %+v", deleted)
	}
	if len(broadcaster.events) != 1 || broadcaster.events[0].event != EventMessageDeleted {
		t.Fatalf("expected one message_deleted broadcast, got %+v", broadcaster.events)
	}

	if _, err := service.DeleteMessage(context.Background(), 2, 31); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-sender, got %v", err)
	}
}

func TestTypingRelaysToReceiverOnly(t *testing.T) {
	store := &stubChatStore{conversation: &models.Conversation{ID: 7, User1ID: 1, User2ID: 2}}
	service, broadcaster, _ := newTestService(store, nil)

	if err := service.Typing(context.Background(), 1, 7, 2, true); err != nil {
		t.Fatalf("Typing: %v", err)
	}
	if len(broadcaster.events) != 1 {
		t.Fatalf("expected 1 relay, got %d", len(broadcaster.events))
	}
	relay := broadcaster.events[0]
	if relay.scope != "user" || relay.target != 2 || relay.event != EventTypingStart {
		t.Fatalf("unexpected typing relay: %+v", relay)
	}

	if err := service.Typing(context.Background(), 1, 7, 5, true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for non-participant receiver, got %v", err)
	}
}

func TestListMessagesChecksParticipation(t *testing.T) {
	store := &stubChatStore{}
	service, _, _ := newTestService(store, nil)

	if _, _, err := service.ListMessages(context.Background(), 1, 7, 1, 20); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}
