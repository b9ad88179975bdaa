package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"collabchat/internal/domain/message"
	"collabchat/internal/domain/user"
	"collabchat/internal/repository"
	collab_errors "collabchat/pkg/errors"
	"collabchat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher fans a persisted message out to every connection currently
// joined to the conversation's room. Delivery is best-effort: no
// acknowledgement, no retry, no backlog. Implemented by the websocket
// hub.
type Publisher interface {
	PublishMessage(record message.Record)
}

// MessageService is the sole write-and-fan-out entry point. Both the
// REST send route and the gateway send event go through Send, so the
// persisted record and the broadcast payload are always the same
// server-authoritative object.
type MessageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	users         repository.UserRepository
	publisher     Publisher
	log           *logger.Logger
}

func NewMessageService(messages repository.MessageRepository, conversations repository.ConversationRepository, users repository.UserRepository, publisher Publisher, log *logger.Logger) *MessageService {
	return &MessageService{
		messages:      messages,
		conversations: conversations,
		users:         users,
		publisher:     publisher,
		log:           log,
	}
}

// Send validates, durably appends, then publishes. The returned record
// is the exact payload broadcast to the room; callers must not read the
// return value as proof of delivery to other participants.
func (s *MessageService) Send(ctx context.Context, senderID, conversationID uuid.UUID, content, clientMsgID string) (message.Record, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return message.Record{}, collab_errors.ErrInvalidInput
	}

	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if clientMsgID != "" {
		msg.ClientMessageID = sql.NullString{String: clientMsgID, Valid: true}
	}

	if err := s.messages.Append(ctx, &msg); err != nil {
		if errors.Is(err, collab_errors.ErrAlreadyExists) && clientMsgID != "" {
			return s.replayExisting(ctx, senderID, conversationID, clientMsgID, err)
		}
		return message.Record{}, err
	}

	record := RecordFromMessage(msg)
	if sender, err := s.users.GetByID(ctx, senderID); err == nil {
		decorateSender(&record, sender)
	}

	// Publish strictly after the durable write. A failed or missed
	// delivery is recovered by the recipient's next history fetch.
	if s.publisher != nil {
		s.publisher.PublishMessage(record)
	}

	s.log.WithContext(ctx).Info("message sent",
		zap.String("conversation_id", conversationID.String()),
		zap.Int64("seq", record.Seq))
	return record, nil
}

// replayExisting resolves a send retried under an already-stored client
// message id: the first attempt committed, so return its record instead
// of an error. The first attempt also broadcast, so no re-publish. A
// token reused for a different sender or conversation is not a replay.
func (s *MessageService) replayExisting(ctx context.Context, senderID, conversationID uuid.UUID, clientMsgID string, appendErr error) (message.Record, error) {
	existing, err := s.messages.GetByClientMessageID(ctx, clientMsgID)
	if err != nil {
		return message.Record{}, appendErr
	}
	if existing.SenderID != senderID || existing.ConversationID != conversationID {
		return message.Record{}, appendErr
	}

	record := RecordFromMessage(existing)
	if sender, err := s.users.GetByID(ctx, senderID); err == nil {
		decorateSender(&record, sender)
	}
	s.log.WithContext(ctx).Info("message send replayed",
		zap.String("conversation_id", conversationID.String()),
		zap.Int64("seq", record.Seq))
	return record, nil
}

// History returns the conversation's messages in creation order.
// Non-participants get ErrAccessDenied, never an empty list.
func (s *MessageService) History(ctx context.Context, conversationID, requesterID uuid.UUID) ([]message.Record, error) {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Distinguish a missing conversation from a foreign one.
		if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
			return nil, err
		}
		return nil, collab_errors.ErrAccessDenied
	}

	messages, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]uuid.UUID, 0, 2)
	seen := make(map[uuid.UUID]struct{}, 2)
	for _, m := range messages {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	profiles, err := s.users.GetByIDs(ctx, senderIDs)
	if err != nil {
		profiles = map[uuid.UUID]user.User{}
	}

	records := make([]message.Record, 0, len(messages))
	for _, m := range messages {
		record := RecordFromMessage(m)
		if sender, ok := profiles[m.SenderID]; ok {
			decorateSender(&record, sender)
		}
		records = append(records, record)
	}
	return records, nil
}

// IsParticipant exposes the directory's membership check to the
// gateway's room authorizer.
func (s *MessageService) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	return s.conversations.IsParticipant(ctx, conversationID, userID)
}

// RecordFromMessage maps a stored message to its outbound shape.
func RecordFromMessage(m message.Message) message.Record {
	return message.Record{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		ClientMsgID:    m.ClientMessageID.String,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

func decorateSender(record *message.Record, sender user.User) {
	record.SenderName = sender.DisplayName
	record.SenderAvatar = sender.AvatarURL.String
}
