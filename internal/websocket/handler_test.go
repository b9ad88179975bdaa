package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"collabchat/internal/domain/conversation"
	"collabchat/internal/domain/message"
	"collabchat/internal/domain/user"
	"collabchat/internal/repository"
	"collabchat/internal/services"
	"collabchat/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type gatewayFixture struct {
	handler  *Handler
	hub      *Hub
	db       *gorm.DB
	messages repository.MessageRepository
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&user.User{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&message.Message{},
	))

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)

	hub := NewHub()
	go hub.Run(context.Background())

	log := logger.NewNop()
	auth := services.NewAuthService("test-secret", time.Hour)
	messageService := services.NewMessageService(msgRepo, convRepo, userRepo, hub, log)
	authorizer := NewRoomAuthorizer(convRepo)
	handler := NewHandler(auth, messageService, authorizer, hub, nil, nil, log)

	return &gatewayFixture{handler: handler, hub: hub, db: db, messages: msgRepo}
}

func (f *gatewayFixture) seedUser(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u := user.User{ID: uuid.New(), DisplayName: name, Role: "creator", CreatedAt: time.Now()}
	require.NoError(t, f.db.Create(&u).Error)
	return u.ID
}

func (f *gatewayFixture) seedConversation(t *testing.T, userA, userB uuid.UUID) uuid.UUID {
	t.Helper()
	conv, _, err := repository.NewConversationRepository(f.db).
		FindOrCreate(context.Background(), userA, userB, uuid.NullUUID{})
	require.NoError(t, err)
	return conv.ID
}

func (f *gatewayFixture) join(t *testing.T, client *Client, room uuid.UUID) {
	t.Helper()
	f.hub.Register(client)
	f.hub.Join(client, room)
	waitFor(t, func() bool {
		for _, joined := range client.Rooms() {
			if joined == room {
				return true
			}
		}
		return false
	})
}

func decodeError(t *testing.T, payload []byte) outboundError {
	t.Helper()
	var ev outboundError
	require.NoError(t, json.Unmarshal(payload, &ev))
	require.Equal(t, EventError, ev.Type)
	return ev
}

func TestDispatch_JoinRequiresParticipancy(t *testing.T) {
	f := newGatewayFixture(t)
	brand := f.seedUser(t, "Acme")
	creator := f.seedUser(t, "Nora")
	outsider := f.seedUser(t, "Eve")
	room := f.seedConversation(t, brand, creator)

	member := NewClient(nil, brand)
	stranger := NewClient(nil, outsider)
	f.hub.Register(member)
	f.hub.Register(stranger)

	f.handler.dispatch(context.Background(), member, InboundEvent{Type: EventJoin, ConversationID: room})
	waitFor(t, func() bool { return f.hub.RoomSize(room) == 1 })

	f.handler.dispatch(context.Background(), stranger, InboundEvent{Type: EventJoin, ConversationID: room})

	ev := decodeError(t, <-stranger.send)
	assert.Equal(t, "ACCESS_DENIED", ev.Code)
	assert.Equal(t, 1, f.hub.RoomSize(room))
}

func TestDispatch_SendPersistsThenBroadcasts(t *testing.T) {
	f := newGatewayFixture(t)
	brand := f.seedUser(t, "Acme")
	creator := f.seedUser(t, "Nora")
	room := f.seedConversation(t, brand, creator)

	sender := NewClient(nil, brand)
	peer := NewClient(nil, creator)
	f.join(t, sender, room)
	f.join(t, peer, room)
	waitFor(t, func() bool { return f.hub.RoomSize(room) == 2 })

	f.handler.dispatch(context.Background(), sender, InboundEvent{
		Type:           EventSend,
		ConversationID: room,
		Content:        "  hello  ",
		ClientMsgID:    "tmp-1",
	})

	stored, err := f.messages.ListByConversation(context.Background(), room)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	// Both room members receive the persisted record, not the client's
	// raw frame: trimmed content, server id, assigned seq.
	for _, client := range []*Client{sender, peer} {
		select {
		case payload := <-client.send:
			record, ok, err := DecodeMessageEvent(payload)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, stored[0].ID, record.ID)
			assert.Equal(t, int64(1), record.Seq)
			assert.Equal(t, "hello", record.Content)
			assert.Equal(t, "tmp-1", record.ClientMsgID)
			assert.Equal(t, brand, record.SenderID)
		case <-time.After(time.Second):
			t.Fatal("room member did not receive broadcast")
		}
	}
}

func TestDispatch_SendFailureNotifiesSenderOnly(t *testing.T) {
	f := newGatewayFixture(t)
	brand := f.seedUser(t, "Acme")
	creator := f.seedUser(t, "Nora")
	outsider := f.seedUser(t, "Eve")
	room := f.seedConversation(t, brand, creator)

	peer := NewClient(nil, creator)
	f.join(t, peer, room)

	stranger := NewClient(nil, outsider)
	f.hub.Register(stranger)

	f.handler.dispatch(context.Background(), stranger, InboundEvent{
		Type:           EventSend,
		ConversationID: room,
		Content:        "let me in",
	})

	ev := decodeError(t, <-stranger.send)
	assert.Equal(t, "ACCESS_DENIED", ev.Code)
	assert.NotContains(t, strings.ToLower(ev.Error), "duplicated")
	assert.NotContains(t, ev.Error, "sql")

	select {
	case <-peer.send:
		t.Fatal("append failure leaked to another connection")
	default:
	}

	stored, err := f.messages.ListByConversation(context.Background(), room)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDispatch_SendToUnknownConversation(t *testing.T) {
	f := newGatewayFixture(t)
	brand := f.seedUser(t, "Acme")
	client := NewClient(nil, brand)
	f.hub.Register(client)

	f.handler.dispatch(context.Background(), client, InboundEvent{
		Type:           EventSend,
		ConversationID: uuid.New(),
		Content:        "hello",
	})

	ev := decodeError(t, <-client.send)
	assert.Equal(t, "NOT_FOUND", ev.Code)
}

func TestDispatch_Leave(t *testing.T) {
	f := newGatewayFixture(t)
	brand := f.seedUser(t, "Acme")
	creator := f.seedUser(t, "Nora")
	room := f.seedConversation(t, brand, creator)

	client := NewClient(nil, brand)
	f.join(t, client, room)
	waitFor(t, func() bool { return f.hub.RoomSize(room) == 1 })

	f.handler.dispatch(context.Background(), client, InboundEvent{Type: EventLeave, ConversationID: room})
	waitFor(t, func() bool { return f.hub.RoomSize(room) == 0 })
}
