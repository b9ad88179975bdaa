package websocket

import (
	"encoding/json"
	"fmt"
	"strings"

	"collabchat/internal/domain/message"

	"github.com/google/uuid"
)

// The gateway speaks a closed set of tagged events. Anything outside
// this set is rejected at the boundary, not passed through.
type EventType string

const (
	// client -> server
	EventJoin  EventType = "join"
	EventLeave EventType = "leave"
	EventSend  EventType = "send"

	// server -> client
	EventMessage EventType = "message"
	EventError   EventType = "error"
)

// InboundEvent is a decoded client signal.
type InboundEvent struct {
	Type           EventType `json:"type"`
	ConversationID uuid.UUID `json:"-"`
	Content        string    `json:"content,omitempty"`
	ClientMsgID    string    `json:"client_msg_id,omitempty"`
}

type inboundWire struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	ClientMsgID    string `json:"client_msg_id"`
}

// ParseInbound validates a raw client frame against the closed event
// set. join/leave/send all require a conversation id; send additionally
// requires non-empty content.
func ParseInbound(data []byte) (InboundEvent, error) {
	var wire inboundWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return InboundEvent{}, fmt.Errorf("malformed event: %w", err)
	}

	eventType := EventType(wire.Type)
	switch eventType {
	case EventJoin, EventLeave, EventSend:
	default:
		return InboundEvent{}, fmt.Errorf("unknown event type %q", wire.Type)
	}

	conversationID, err := uuid.Parse(wire.ConversationID)
	if err != nil {
		return InboundEvent{}, fmt.Errorf("invalid conversation_id")
	}

	ev := InboundEvent{
		Type:           eventType,
		ConversationID: conversationID,
		ClientMsgID:    wire.ClientMsgID,
	}
	if eventType == EventSend {
		if strings.TrimSpace(wire.Content) == "" {
			return InboundEvent{}, fmt.Errorf("empty content")
		}
		ev.Content = wire.Content
	}
	return ev, nil
}

type outboundMessage struct {
	Type EventType      `json:"type"`
	Data message.Record `json:"data"`
}

type outboundError struct {
	Type  EventType `json:"type"`
	Error string    `json:"error"`
	Code  string    `json:"code"`
}

// EncodeMessageEvent wraps a persisted record for broadcast. The record
// inside is the same object the REST send response carries.
func EncodeMessageEvent(record message.Record) ([]byte, error) {
	return json.Marshal(outboundMessage{Type: EventMessage, Data: record})
}

// DecodeMessageEvent is the client-side inverse of EncodeMessageEvent.
// The bool is false for non-message frames (e.g. error events).
func DecodeMessageEvent(data []byte) (message.Record, bool, error) {
	var probe struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return message.Record{}, false, err
	}
	if probe.Type != EventMessage {
		return message.Record{}, false, nil
	}
	var wrapped outboundMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return message.Record{}, false, err
	}
	return wrapped.Data, true, nil
}

func EncodeErrorEvent(code, msg string) []byte {
	data, err := json.Marshal(outboundError{Type: EventError, Error: msg, Code: code})
	if err != nil {
		return []byte(`{"type":"error","error":"internal error","code":"INTERNAL_ERROR"}`)
	}
	return data
}

// EncodeClientEvent builds a client->server frame. Used by the session
// controller's gateway transport.
func EncodeClientEvent(ev InboundEvent) ([]byte, error) {
	return json.Marshal(inboundWire{
		Type:           string(ev.Type),
		ConversationID: ev.ConversationID.String(),
		Content:        ev.Content,
		ClientMsgID:    ev.ClientMsgID,
	})
}
