package httpdto

import "collabchat/internal/domain/message"

type SendMessageRequest struct {
	Content     string `json:"content"`
	ClientMsgID string `json:"client_msg_id"`
}

type MessagesResponse struct {
	Messages []message.Record `json:"messages"`
}
