package clientsession

import (
	"context"
	"sync"
	"time"

	"collabchat/internal/domain/message"
	collab_errors "collabchat/pkg/errors"
	"collabchat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the controller's connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is one live gateway connection. Receive blocks until the next
// server push or transport loss.
type Conn interface {
	Join(conversationID uuid.UUID) error
	Leave(conversationID uuid.UUID) error
	Receive() (message.Record, error)
	Close() error
}

// Transport dials gateway connections.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// HistoryFetcher loads a conversation's full message log over REST.
type HistoryFetcher interface {
	History(ctx context.Context, conversationID uuid.UUID) ([]message.Record, error)
}

// Sender performs the REST send call.
type Sender interface {
	Send(ctx context.Context, conversationID uuid.UUID, content, clientMsgID string) (message.Record, error)
}

// Config wires a Controller. ReconnectWait defaults to 3 seconds; the
// backoff is deliberately fixed, not exponential.
type Config struct {
	UserID        uuid.UUID
	Transport     Transport
	History       HistoryFetcher
	Sender        Sender
	ReconnectWait time.Duration
	OnStateChange func(State)
	Logger        *logger.Logger
}

type session struct {
	view           *View
	historyApplied bool
	buffer         []message.Record
	gen            uint64
}

// Controller is the per-client state machine that reconciles REST
// history, optimistic sends and gateway pushes into consistent
// per-conversation views, and owns reconnection. At most one reconnect
// attempt is in flight at any time: the Run loop is sequential.
type Controller struct {
	cfg           Config
	reconnectWait time.Duration
	log           *logger.Logger

	mu       sync.Mutex
	state    State
	conn     Conn
	sessions map[uuid.UUID]*session
	nextGen  uint64
	failures int
	closed   bool
}

func New(cfg Config) *Controller {
	wait := cfg.ReconnectWait
	if wait == 0 {
		wait = 3 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Controller{
		cfg:           cfg,
		reconnectWait: wait,
		log:           log,
		state:         StateDisconnected,
		sessions:      make(map[uuid.UUID]*session),
	}
}

// Run drives the connection lifecycle until ctx is cancelled. Callers
// run it on its own goroutine.
func (c *Controller) Run(ctx context.Context) {
	first := true
	for {
		if ctx.Err() != nil {
			c.shutdown()
			return
		}
		if first {
			c.setState(StateConnecting)
			first = false
		}

		conn, err := c.cfg.Transport.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.shutdown()
				return
			}
			c.recordFailure()
			c.setState(StateReconnecting)
			if !c.sleep(ctx) {
				c.shutdown()
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.failures = 0
		c.mu.Unlock()
		c.setState(StateConnected)

		// Room membership is session-scoped: re-join every open
		// conversation and re-fetch its history, since the gateway
		// keeps no backlog for the time we were gone.
		c.resync(ctx)
		c.readLoop(ctx, conn)

		_ = conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			c.shutdown()
			return
		}
		c.setState(StateReconnecting)
		if !c.sleep(ctx) {
			c.shutdown()
			return
		}
	}
}

// Open starts tracking a conversation: the history fetch and the room
// join are issued concurrently, and pushes arriving before history
// lands are buffered, not discarded.
func (c *Controller) Open(ctx context.Context, conversationID uuid.UUID) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return collab_errors.ErrInvalidInput
	}
	s, ok := c.sessions[conversationID]
	if !ok {
		c.nextGen++
		s = &session{view: NewView(), gen: c.nextGen}
		c.sessions[conversationID] = s
	}
	gen := s.gen
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Join(conversationID); err != nil {
			c.log.Warnf("join failed for %s: %v", conversationID, err)
		}
	}
	go c.fetchHistory(ctx, conversationID, gen)
	return nil
}

// Close stops tracking a conversation. A history fetch still in flight
// for it resolves against a dead generation and is discarded.
func (c *Controller) Close(conversationID uuid.UUID) {
	c.mu.Lock()
	_, ok := c.sessions[conversationID]
	if ok {
		delete(c.sessions, conversationID)
	}
	conn := c.conn
	c.mu.Unlock()

	if ok && conn != nil {
		_ = conn.Leave(conversationID)
	}
}

// Send appends an optimistic entry and performs the REST send in the
// background. The entry is reconciled by the REST response or the
// gateway echo, whichever arrives first; on failure it is flagged for
// retry, never silently dropped.
func (c *Controller) Send(ctx context.Context, conversationID uuid.UUID, content string) (string, error) {
	c.mu.Lock()
	s, ok := c.sessions[conversationID]
	c.mu.Unlock()
	if !ok {
		return "", collab_errors.ErrNotFound
	}

	clientMsgID := uuid.New().String()
	s.view.AddPending(message.Record{
		ConversationID: conversationID,
		SenderID:       c.cfg.UserID,
		ClientMsgID:    clientMsgID,
		Content:        content,
		CreatedAt:      time.Now(),
	})

	go c.deliver(ctx, conversationID, content, clientMsgID)
	return clientMsgID, nil
}

// Retry re-submits a failed optimistic send under its original client
// message id, so the server-side idempotency token still applies.
func (c *Controller) Retry(ctx context.Context, conversationID uuid.UUID, clientMsgID string) error {
	c.mu.Lock()
	s, ok := c.sessions[conversationID]
	c.mu.Unlock()
	if !ok {
		return collab_errors.ErrNotFound
	}
	entry, ok := s.view.PendingEntry(clientMsgID)
	if !ok || !entry.Failed {
		return collab_errors.ErrNotFound
	}
	go c.deliver(ctx, conversationID, entry.Content, clientMsgID)
	return nil
}

// Snapshot returns the conversation's current merged view.
func (c *Controller) Snapshot(conversationID uuid.UUID) ([]Entry, bool) {
	c.mu.Lock()
	s, ok := c.sessions[conversationID]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	return s.view.Snapshot(), true
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Offline reports repeated reconnect failure, the condition under which
// the UI shows a persistent disconnected indicator.
func (c *Controller) Offline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures >= 3
}

func (c *Controller) deliver(ctx context.Context, conversationID uuid.UUID, content, clientMsgID string) {
	record, err := c.cfg.Sender.Send(ctx, conversationID, content, clientMsgID)

	c.mu.Lock()
	s, ok := c.sessions[conversationID]
	c.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		c.log.Warnf("send failed: %v", err)
		s.view.MarkFailed(clientMsgID)
		return
	}
	s.view.Apply(record)
}

func (c *Controller) fetchHistory(ctx context.Context, conversationID uuid.UUID, gen uint64) {
	records, err := c.cfg.History.History(ctx, conversationID)

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[conversationID]
	if !ok || s.gen != gen {
		// Conversation was closed (or reopened) while the fetch was in
		// flight; the late result must not touch state.
		return
	}
	if err != nil {
		c.log.Warnf("history fetch failed for %s: %v", conversationID, err)
		return
	}
	for _, record := range records {
		s.view.Apply(record)
	}
	s.historyApplied = true
	for _, record := range s.buffer {
		s.view.Apply(record)
	}
	s.buffer = nil
}

func (c *Controller) readLoop(ctx context.Context, conn Conn) {
	for {
		record, err := conn.Receive()
		if err != nil {
			return
		}
		c.handlePush(record)
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Controller) handlePush(record message.Record) {
	c.mu.Lock()
	s, ok := c.sessions[record.ConversationID]
	if !ok {
		c.mu.Unlock()
		return
	}
	if !s.historyApplied {
		s.buffer = append(s.buffer, record)
		c.mu.Unlock()
		return
	}
	view := s.view
	c.mu.Unlock()

	view.Apply(record)
}

func (c *Controller) resync(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	targets := make(map[uuid.UUID]uint64, len(c.sessions))
	for id, s := range c.sessions {
		s.historyApplied = false
		targets[id] = s.gen
	}
	c.mu.Unlock()

	for id, gen := range targets {
		if conn != nil {
			if err := conn.Join(id); err != nil {
				c.log.Warnf("rejoin failed for %s: %v", id, err)
			}
		}
		go c.fetchHistory(ctx, id, gen)
	}
}

func (c *Controller) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.reconnectWait):
		return true
	}
}

func (c *Controller) recordFailure() {
	c.mu.Lock()
	c.failures++
	failures := c.failures
	c.mu.Unlock()
	c.log.Logger.Debug("reconnect attempt failed", zap.Int("failures", failures))
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(state)
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.state = StateClosed
	c.mu.Unlock()
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(StateClosed)
	}
}
