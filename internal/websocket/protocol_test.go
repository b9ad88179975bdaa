package websocket

import (
	"testing"
	"time"

	"collabchat/internal/domain/message"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound_Join(t *testing.T) {
	id := uuid.New()
	ev, err := ParseInbound([]byte(`{"type":"join","conversation_id":"` + id.String() + `"}`))
	require.NoError(t, err)
	assert.Equal(t, EventJoin, ev.Type)
	assert.Equal(t, id, ev.ConversationID)
}

func TestParseInbound_SendCarriesContentAndClientMsgID(t *testing.T) {
	id := uuid.New()
	ev, err := ParseInbound([]byte(`{"type":"send","conversation_id":"` + id.String() + `","content":"hello","client_msg_id":"tmp-1"}`))
	require.NoError(t, err)
	assert.Equal(t, EventSend, ev.Type)
	assert.Equal(t, "hello", ev.Content)
	assert.Equal(t, "tmp-1", ev.ClientMsgID)
}

func TestParseInbound_RejectsBadFrames(t *testing.T) {
	id := uuid.New().String()
	cases := map[string]string{
		"malformed json":   `{"type":`,
		"unknown type":     `{"type":"typing","conversation_id":"` + id + `"}`,
		"server-only type": `{"type":"message","conversation_id":"` + id + `"}`,
		"missing room":     `{"type":"join"}`,
		"bad room id":      `{"type":"join","conversation_id":"nope"}`,
		"empty send":       `{"type":"send","conversation_id":"` + id + `","content":"  "}`,
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInbound([]byte(frame))
			assert.Error(t, err)
		})
	}
}

func TestMessageEventRoundTrip(t *testing.T) {
	record := message.Record{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		Seq:            7,
		SenderID:       uuid.New(),
		SenderName:     "Nora",
		ClientMsgID:    "tmp-9",
		Content:        "hello",
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}

	payload, err := EncodeMessageEvent(record)
	require.NoError(t, err)

	got, ok, err := DecodeMessageEvent(payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.Seq, got.Seq)
	assert.Equal(t, record.ClientMsgID, got.ClientMsgID)
	assert.Equal(t, record.Content, got.Content)
}

func TestDecodeMessageEvent_SkipsErrorFrames(t *testing.T) {
	payload := EncodeErrorEvent("ACCESS_DENIED", "not a participant")
	_, ok, err := DecodeMessageEvent(payload)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEncodeClientEvent_RoundTripsThroughParseInbound(t *testing.T) {
	id := uuid.New()
	payload, err := EncodeClientEvent(InboundEvent{
		Type:           EventSend,
		ConversationID: id,
		Content:        "hello",
		ClientMsgID:    "tmp-2",
	})
	require.NoError(t, err)

	ev, err := ParseInbound(payload)
	require.NoError(t, err)
	assert.Equal(t, EventSend, ev.Type)
	assert.Equal(t, id, ev.ConversationID)
	assert.Equal(t, "hello", ev.Content)
	assert.Equal(t, "tmp-2", ev.ClientMsgID)
}
