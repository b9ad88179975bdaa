package services_test

import (
	"context"
	"sync"
	"time"

	"collabchat/internal/domain/conversation"
	"collabchat/internal/domain/message"
	"collabchat/internal/domain/user"
	"collabchat/internal/repository"
	collab_errors "collabchat/pkg/errors"

	"github.com/google/uuid"
)

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]conversation.Conversation
	lastRead      map[uuid.UUID]map[uuid.UUID]time.Time
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[uuid.UUID]conversation.Conversation),
		lastRead:      make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

func (r *fakeConversationRepo) add(users ...uuid.UUID) conversation.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv := conversation.Conversation{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	for _, u := range users {
		conv.Participants = append(conv.Participants, conversation.Participant{
			ConversationID: conv.ID,
			UserID:         u,
			JoinedAt:       time.Now(),
		})
	}
	r.conversations[conv.ID] = conv
	return conv
}

func (r *fakeConversationRepo) FindOrCreate(ctx context.Context, userA, userB uuid.UUID, campaignID uuid.NullUUID) (conversation.Conversation, bool, error) {
	r.mu.Lock()
	key := conversation.PairKey(userA, userB, campaignID)
	for _, c := range r.conversations {
		if c.PairKey == key {
			r.mu.Unlock()
			return c, false, nil
		}
	}
	r.mu.Unlock()

	conv := r.add(userA, userB)
	r.mu.Lock()
	conv.PairKey = key
	conv.CampaignID = campaignID
	r.conversations[conv.ID] = conv
	r.mu.Unlock()
	return conv, true, nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return conversation.Conversation{}, collab_errors.ErrNotFound
	}
	return c, nil
}

func (r *fakeConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]repository.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var summaries []repository.ConversationSummary
	for _, c := range r.conversations {
		for _, p := range c.Participants {
			if p.UserID == userID {
				summary := repository.ConversationSummary{Conversation: c}
				for _, peer := range c.Participants {
					if peer.UserID != userID {
						summary.PeerID = peer.UserID
					}
				}
				summaries = append(summaries, summary)
				break
			}
		}
	}
	return summaries, nil
}

func (r *fakeConversationRepo) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return false, nil
	}
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeConversationRepo) MarkRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[conversationID]; !ok {
		return collab_errors.ErrNotFound
	}
	if r.lastRead[conversationID] == nil {
		r.lastRead[conversationID] = make(map[uuid.UUID]time.Time)
	}
	r.lastRead[conversationID][userID] = at
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	members  *fakeConversationRepo
	messages []message.Message
}

func newFakeMessageRepo(members *fakeConversationRepo) *fakeMessageRepo {
	return &fakeMessageRepo{members: members}
}

func (r *fakeMessageRepo) Append(ctx context.Context, msg *message.Message) error {
	if _, err := r.members.GetByID(ctx, msg.ConversationID); err != nil {
		return collab_errors.ErrConversationNotFound
	}
	ok, _ := r.members.IsParticipant(ctx, msg.ConversationID, msg.SenderID)
	if !ok {
		return collab_errors.ErrNotParticipant
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var maxSeq int64
	for _, m := range r.messages {
		if msg.ClientMessageID.Valid && m.ClientMessageID.Valid && m.ClientMessageID.String == msg.ClientMessageID.String {
			return collab_errors.ErrAlreadyExists
		}
		if m.ConversationID == msg.ConversationID && m.Seq > maxSeq {
			maxSeq = m.Seq
		}
	}
	msg.Seq = maxSeq + 1
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) GetByClientMessageID(ctx context.Context, clientMsgID string) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ClientMessageID.Valid && m.ClientMessageID.String == clientMsgID {
			return m, nil
		}
	}
	return message.Message{}, collab_errors.ErrNotFound
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) GetLatest(ctx context.Context, conversationID uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *message.Message
	for i := range r.messages {
		m := &r.messages[i]
		if m.ConversationID == conversationID && (latest == nil || m.Seq > latest.Seq) {
			latest = m
		}
	}
	if latest == nil {
		return message.Message{}, collab_errors.ErrNotFound
	}
	return *latest, nil
}

func (r *fakeMessageRepo) CountUnread(ctx context.Context, conversationID, userID uuid.UUID, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.SenderID != userID && m.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]user.User
}

func newFakeUserRepo(users ...user.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]user.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return user.User{}, collab_errors.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error) {
	out := make(map[uuid.UUID]user.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []message.Record
}

func (p *fakePublisher) PublishMessage(record message.Record) {
	p.mu.Lock()
	p.published = append(p.published, record)
	p.mu.Unlock()
}

func (p *fakePublisher) records() []message.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message.Record(nil), p.published...)
}

type fakePresence struct {
	online map[string]bool
}

func (p *fakePresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.online[userID], nil
}
