package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"collabchat/internal/redis"
	"collabchat/internal/services"
	"collabchat/internal/transport/httpdto"
	collab_errors "collabchat/pkg/errors"
	"collabchat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated HTTP requests to gateway connections
// and dispatches inbound events. The send event is routed through the
// message service's write path, so a gateway send is persisted before
// anything is broadcast; a failure is reported only to the sending
// connection.
type Handler struct {
	auth       *services.AuthService
	messages   *services.MessageService
	authorizer *RoomAuthorizer
	hub        *Hub
	presence   *redis.PresenceStore
	limiter    *redis.RateLimiter
	log        *logger.Logger
}

func NewHandler(auth *services.AuthService, messages *services.MessageService, authorizer *RoomAuthorizer, hub *Hub, presence *redis.PresenceStore, limiter *redis.RateLimiter, log *logger.Logger) *Handler {
	return &Handler{
		auth:       auth,
		messages:   messages,
		authorizer: authorizer,
		hub:        hub,
		presence:   presence,
		limiter:    limiter,
		log:        log,
	}
}

func (h *Handler) Connect(c *gin.Context) {
	userID, err := h.auth.ParseAccessToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID)
	ctx, cancel := context.WithCancel(services.WithUserContext(context.Background(), userID))
	defer cancel()

	h.hub.Register(client)
	if h.presence != nil {
		_ = h.presence.SetOnline(ctx, userID.String())
	}
	go client.WriteLoop(ctx)

	h.readLoop(ctx, client)

	h.log.Infof("gateway disconnect user=%s open_rooms=%d", client.UserID, len(client.Rooms()))
	h.hub.Unregister(client)
	if h.presence != nil {
		_ = h.presence.SetOffline(context.Background(), userID.String())
	}
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		if h.presence != nil {
			_ = h.presence.Heartbeat(ctx, client.UserID.String())
		}
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := ParseInbound(data)
		if err != nil {
			client.Enqueue(EncodeErrorEvent("INVALID_EVENT", err.Error()))
			continue
		}
		h.dispatch(ctx, client, ev)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, ev InboundEvent) {
	switch ev.Type {
	case EventJoin:
		ok, err := h.authorizer.CanJoin(ctx, client.UserID, ev.ConversationID)
		if err != nil || !ok {
			client.Enqueue(EncodeErrorEvent("ACCESS_DENIED", "not a participant"))
			return
		}
		h.hub.Join(client, ev.ConversationID)

	case EventLeave:
		h.hub.Leave(client, ev.ConversationID)

	case EventSend:
		if h.limiter != nil {
			if allowed, _ := h.limiter.AllowSend(ctx, client.UserID.String()); !allowed {
				client.Enqueue(EncodeErrorEvent("RATE_LIMITED", "rate limited"))
				return
			}
		}
		// Single write path: persist through the message service, which
		// publishes the stored record to the room. Never rebroadcast the
		// client's claimed content.
		if _, err := h.messages.Send(ctx, client.UserID, ev.ConversationID, ev.Content, ev.ClientMsgID); err != nil {
			code, msg := sendFailure(err)
			client.Enqueue(EncodeErrorEvent(code, msg))
		}
	}
}

// sendFailure maps a store error onto the wire taxonomy. Raw store
// error text never reaches the client.
func sendFailure(err error) (string, string) {
	switch {
	case errors.Is(err, collab_errors.ErrInvalidInput):
		return "INVALID_EVENT", "invalid message"
	case errors.Is(err, collab_errors.ErrNotParticipant), errors.Is(err, collab_errors.ErrAccessDenied):
		return "ACCESS_DENIED", "not a participant"
	case errors.Is(err, collab_errors.ErrConversationNotFound), errors.Is(err, collab_errors.ErrNotFound):
		return "NOT_FOUND", "conversation not found"
	case errors.Is(err, collab_errors.ErrRateLimited):
		return "RATE_LIMITED", "rate limited"
	default:
		return "SEND_FAILED", "message could not be sent"
	}
}
