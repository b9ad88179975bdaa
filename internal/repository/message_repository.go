package repository

import (
	"context"
	"errors"
	"time"

	"collabchat/internal/domain/conversation"
	"collabchat/internal/domain/message"
	collab_errors "collabchat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

// appendRetries bounds seq-collision retries when two transactions race
// for the same conversation's next sequence number.
const appendRetries = 3

func (r *PostgresMessageRepository) Append(ctx context.Context, msg *message.Message) error {
	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		lastErr = r.appendOnce(ctx, msg)
		if lastErr == nil || !errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			return lastErr
		}
		// A duplicate key is either a seq race (retry) or a replayed
		// client_message_id (report, so the caller can return the
		// original message instead of failing the retry).
		if msg.ClientMessageID.Valid {
			var count int64
			err := r.db.WithContext(ctx).
				Model(&message.Message{}).
				Where("client_message_id = ?", msg.ClientMessageID.String).
				Count(&count).Error
			if err == nil && count > 0 {
				return collab_errors.ErrAlreadyExists
			}
		}
	}
	return lastErr
}

func (r *PostgresMessageRepository) GetByClientMessageID(ctx context.Context, clientMsgID string) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("client_message_id = ?", clientMsgID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, collab_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) appendOnce(ctx context.Context, msg *message.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var convCount int64
		if err := tx.Model(&conversation.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Count(&convCount).Error; err != nil {
			return err
		}
		if convCount == 0 {
			return collab_errors.ErrConversationNotFound
		}

		var participantCount int64
		if err := tx.Model(&conversation.Participant{}).
			Where("conversation_id = ? AND user_id = ?", msg.ConversationID, msg.SenderID).
			Count(&participantCount).Error; err != nil {
			return err
		}
		if participantCount == 0 {
			return collab_errors.ErrNotParticipant
		}

		// Next sequence for this conversation. The unique
		// (conversation_id, seq) index catches the race between two
		// concurrent appends; Append retries on the duplicate-key error.
		var maxSeq int64
		if err := tx.Model(&message.Message{}).
			Where("conversation_id = ?", msg.ConversationID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		msg.Seq = maxSeq + 1
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return touchConversation(tx, msg.ConversationID, msg.CreatedAt)
	})
}

func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) GetLatest(ctx context.Context, conversationID uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, collab_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, conversationID, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND created_at > ?", conversationID, userID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
