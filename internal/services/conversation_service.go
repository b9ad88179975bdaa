package services

import (
	"context"
	"errors"
	"time"

	"collabchat/internal/domain/message"
	"collabchat/internal/repository"
	collab_errors "collabchat/pkg/errors"
	"collabchat/pkg/logger"

	"github.com/google/uuid"
)

// Presence reports whether a user currently holds an open gateway
// connection. Implemented by the Redis presence store.
type Presence interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// ConversationView is the conversation list row returned to clients:
// the conversation plus the peer's profile, online flag, last message
// and the caller's unread count.
type ConversationView struct {
	ID          uuid.UUID       `json:"id"`
	CampaignID  *uuid.UUID      `json:"campaign_id,omitempty"`
	PeerID      uuid.UUID       `json:"peer_id"`
	PeerName    string          `json:"peer_name,omitempty"`
	PeerAvatar  string          `json:"peer_avatar,omitempty"`
	PeerOnline  bool            `json:"peer_online"`
	LastMessage *message.Record `json:"last_message,omitempty"`
	UnreadCount int64           `json:"unread_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ConversationService struct {
	conversations repository.ConversationRepository
	users         repository.UserRepository
	presence      Presence
	log           *logger.Logger
}

func NewConversationService(conversations repository.ConversationRepository, users repository.UserRepository, presence Presence, log *logger.Logger) *ConversationService {
	return &ConversationService{conversations: conversations, users: users, presence: presence, log: log}
}

// Start finds or creates the conversation between the caller and
// participantID for the given campaign. The bool reports creation.
func (s *ConversationService) Start(ctx context.Context, callerID, participantID uuid.UUID, campaignID uuid.NullUUID) (ConversationView, bool, error) {
	if participantID == uuid.Nil || participantID == callerID {
		return ConversationView{}, false, collab_errors.ErrInvalidInput
	}

	conv, created, err := s.conversations.FindOrCreate(ctx, callerID, participantID, campaignID)
	if err != nil {
		return ConversationView{}, false, err
	}
	if created {
		s.log.WithContext(ctx).Info("conversation created")
	}

	view := ConversationView{
		ID:        conv.ID,
		PeerID:    participantID,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if conv.CampaignID.Valid {
		campaign := conv.CampaignID.UUID
		view.CampaignID = &campaign
	}
	s.decoratePeer(ctx, &view)
	return view, created, nil
}

// ListForCaller returns the caller's conversations, most recently
// active first.
func (s *ConversationService) ListForCaller(ctx context.Context, callerID uuid.UUID) ([]ConversationView, error) {
	summaries, err := s.conversations.ListForUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(summaries))
	for _, summary := range summaries {
		view := ConversationView{
			ID:          summary.Conversation.ID,
			PeerID:      summary.PeerID,
			UnreadCount: summary.UnreadCount,
			CreatedAt:   summary.Conversation.CreatedAt,
			UpdatedAt:   summary.Conversation.UpdatedAt,
		}
		if summary.Conversation.CampaignID.Valid {
			campaign := summary.Conversation.CampaignID.UUID
			view.CampaignID = &campaign
		}
		if summary.LastMessage != nil {
			record := RecordFromMessage(*summary.LastMessage)
			view.LastMessage = &record
		}
		s.decoratePeer(ctx, &view)
		views = append(views, view)
	}
	return views, nil
}

// Get returns a single conversation, enforcing participancy.
func (s *ConversationService) Get(ctx context.Context, conversationID, callerID uuid.UUID) (ConversationView, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return ConversationView{}, err
	}

	view := ConversationView{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if conv.CampaignID.Valid {
		campaign := conv.CampaignID.UUID
		view.CampaignID = &campaign
	}

	isMember := false
	for _, p := range conv.Participants {
		if p.UserID == callerID {
			isMember = true
		} else {
			view.PeerID = p.UserID
		}
	}
	if !isMember {
		return ConversationView{}, collab_errors.ErrAccessDenied
	}
	s.decoratePeer(ctx, &view)
	return view, nil
}

// MarkRead resets the caller's unread counter for the conversation.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, callerID uuid.UUID) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return collab_errors.ErrAccessDenied
	}
	return s.conversations.MarkRead(ctx, conversationID, callerID, time.Now())
}

func (s *ConversationService) decoratePeer(ctx context.Context, view *ConversationView) {
	if view.PeerID == uuid.Nil {
		return
	}
	if u, err := s.users.GetByID(ctx, view.PeerID); err == nil {
		view.PeerName = u.DisplayName
		view.PeerAvatar = u.AvatarURL.String
	} else if !errors.Is(err, collab_errors.ErrNotFound) {
		s.log.WithContext(ctx).Warn("peer profile lookup failed")
	}
	if s.presence != nil {
		if online, err := s.presence.IsOnline(ctx, view.PeerID.String()); err == nil {
			view.PeerOnline = online
		}
	}
}
