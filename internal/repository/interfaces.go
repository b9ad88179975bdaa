package repository

import (
	"context"
	"time"

	"collabchat/internal/domain/conversation"
	"collabchat/internal/domain/message"
	"collabchat/internal/domain/user"

	"github.com/google/uuid"
)

// ConversationSummary is one row of a user's conversation list: the
// conversation, its most recent message, the caller's unread count and
// the other participant.
type ConversationSummary struct {
	Conversation conversation.Conversation
	LastMessage  *message.Message
	UnreadCount  int64
	PeerID       uuid.UUID
}

type ConversationRepository interface {
	// FindOrCreate returns the conversation linking the participant pair
	// and campaign, creating it (with both participants attached) when
	// absent. Idempotent under concurrent calls and independent of
	// argument order. The bool reports whether a new row was created.
	FindOrCreate(ctx context.Context, userA, userB uuid.UUID, campaignID uuid.NullUUID) (conversation.Conversation, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	// Append persists msg and bumps the owning conversation's updated_at
	// in the same transaction. Fails with ErrConversationNotFound or
	// ErrNotParticipant before writing anything, and with
	// ErrAlreadyExists when the client_message_id was stored before.
	Append(ctx context.Context, msg *message.Message) error
	GetByClientMessageID(ctx context.Context, clientMsgID string) (message.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error)
	GetLatest(ctx context.Context, conversationID uuid.UUID) (message.Message, error)
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID, since time.Time) (int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error)
}
