package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Message is one immutable entry in a conversation's log. Seq gives the
// creation order within a conversation; ClientMessageID carries the
// sender's idempotency token end-to-end so clients can reconcile
// optimistic sends.
type Message struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ConversationID  uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_messages_conversation_seq,priority:1"`
	Seq             int64          `gorm:"uniqueIndex:idx_messages_conversation_seq,priority:2"`
	SenderID        uuid.UUID      `gorm:"type:uuid;index"`
	ClientMessageID sql.NullString `gorm:"size:64;uniqueIndex"`
	Content         string         `gorm:"type:text"`
	CreatedAt       time.Time
}

func (Message) TableName() string {
	return "messages"
}

// Record is the outbound shape of a persisted message. The REST send
// response and the gateway broadcast carry the same Record, field for
// field.
type Record struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Seq            int64     `json:"seq"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderName     string    `json:"sender_name,omitempty"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	ClientMsgID    string    `json:"client_msg_id,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
