package websocket

import (
	"context"

	"collabchat/internal/repository"

	"github.com/google/uuid"
)

// RoomAuthorizer decides whether a user may join a conversation room.
// The check lives at the gateway boundary, deliberately outside the
// hub: the hub is pure transport and trusts its callers.
type RoomAuthorizer struct {
	conversations repository.ConversationRepository
}

func NewRoomAuthorizer(conversations repository.ConversationRepository) *RoomAuthorizer {
	return &RoomAuthorizer{conversations: conversations}
}

func (a *RoomAuthorizer) CanJoin(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	return a.conversations.IsParticipant(ctx, conversationID, userID)
}
