package repository

import (
	"context"
	"errors"
	"time"

	"collabchat/internal/domain/conversation"
	collab_errors "collabchat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db       *gorm.DB
	messages MessageRepository
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db, messages: NewMessageRepository(db)}
}

func (r *PostgresConversationRepository) FindOrCreate(ctx context.Context, userA, userB uuid.UUID, campaignID uuid.NullUUID) (conversation.Conversation, bool, error) {
	if userA == userB {
		return conversation.Conversation{}, false, collab_errors.ErrInvalidInput
	}
	key := conversation.PairKey(userA, userB, campaignID)

	now := time.Now()
	conv := conversation.Conversation{
		ID:         uuid.New(),
		CampaignID: campaignID,
		PairKey:    key,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The unique index on pair_key arbitrates concurrent creation.
		// Never check-then-create.
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).Omit("Participants").Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // lost the race, or the conversation already existed
		}
		created = true
		for _, userID := range []uuid.UUID{userA, userB} {
			p := conversation.Participant{
				ConversationID: conv.ID,
				UserID:         userID,
				JoinedAt:       now,
				LastReadAt:     now,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return conversation.Conversation{}, false, err
	}

	var existing conversation.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("pair_key = ?", key).
		First(&existing).Error; err != nil {
		return conversation.Conversation{}, false, err
	}
	return existing, created, nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, collab_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error) {
	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	var conversations []conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?)", subQuery).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		summary := ConversationSummary{Conversation: c}

		var lastReadAt time.Time
		for _, p := range c.Participants {
			if p.UserID == userID {
				lastReadAt = p.LastReadAt
			} else {
				summary.PeerID = p.UserID
			}
		}

		last, err := r.messages.GetLatest(ctx, c.ID)
		if err == nil {
			m := last
			summary.LastMessage = &m
		} else if !errors.Is(err, collab_errors.ErrNotFound) {
			return nil, err
		}

		unread, err := r.messages.CountUnread(ctx, c.ID, userID, lastReadAt)
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = unread

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) MarkRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return collab_errors.ErrNotFound
	}
	return nil
}

// touchConversation bumps updated_at so the conversation surfaces at
// the top of its participants' lists. Callers run it inside the message
// append transaction.
func touchConversation(tx *gorm.DB, conversationID uuid.UUID, at time.Time) error {
	res := tx.Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return collab_errors.ErrConversationNotFound
	}
	return nil
}
