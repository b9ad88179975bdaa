package clientsession

import (
	"context"
	"time"

	"collabchat/internal/domain/message"
	ws "collabchat/internal/websocket"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
)

const dialTimeout = 10 * time.Second

// WSTransport dials the gateway's websocket endpoint with the caller's
// access token in the query string.
type WSTransport struct {
	URL   string
	Token string
}

func (t *WSTransport) Dial(ctx context.Context) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, resp, err := gorilla.DefaultDialer.DialContext(dialCtx, t.URL+"?token="+t.Token, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// wsConn adapts one gorilla connection to the controller's Conn. Writes
// go through writeEvent under a deadline; Receive skips non-message
// frames (error events) rather than surfacing them as transport loss.
type wsConn struct {
	conn *gorilla.Conn
}

func (c *wsConn) Join(conversationID uuid.UUID) error {
	return c.writeEvent(ws.InboundEvent{Type: ws.EventJoin, ConversationID: conversationID})
}

func (c *wsConn) Leave(conversationID uuid.UUID) error {
	return c.writeEvent(ws.InboundEvent{Type: ws.EventLeave, ConversationID: conversationID})
}

func (c *wsConn) Receive() (message.Record, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return message.Record{}, err
		}
		record, ok, err := ws.DecodeMessageEvent(data)
		if err != nil || !ok {
			continue
		}
		return record, nil
	}
}

func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(
		gorilla.CloseMessage,
		gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

func (c *wsConn) writeEvent(ev ws.InboundEvent) error {
	data, err := ws.EncodeClientEvent(ev)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	return c.conn.WriteMessage(gorilla.TextMessage, data)
}
