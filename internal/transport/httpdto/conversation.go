package httpdto

import "collabchat/internal/services"

type StartConversationRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	CampaignID    string `json:"campaign_id"`
}

type ListConversationsResponse struct {
	Conversations []services.ConversationView `json:"conversations"`
}
