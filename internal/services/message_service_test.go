package services_test

import (
	"context"
	"testing"
	"time"

	"collabchat/internal/domain/user"
	"collabchat/internal/services"
	collab_errors "collabchat/pkg/errors"
	"collabchat/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessageService(t *testing.T) (*services.MessageService, *fakeConversationRepo, *fakeMessageRepo, *fakePublisher, *fakeUserRepo) {
	t.Helper()
	convRepo := newFakeConversationRepo()
	msgRepo := newFakeMessageRepo(convRepo)
	userRepo := newFakeUserRepo()
	publisher := &fakePublisher{}
	svc := services.NewMessageService(msgRepo, convRepo, userRepo, publisher, logger.NewNop())
	return svc, convRepo, msgRepo, publisher, userRepo
}

func TestSend_PersistsThenPublishesSameRecord(t *testing.T) {
	svc, convRepo, msgRepo, publisher, userRepo := newMessageService(t)
	brand := uuid.New()
	creator := uuid.New()
	userRepo.users[brand] = user.User{ID: brand, DisplayName: "Acme"}
	conv := convRepo.add(brand, creator)

	record, err := svc.Send(context.Background(), brand, conv.ID, "hello there", "tmp-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), record.Seq)
	assert.Equal(t, "hello there", record.Content)
	assert.Equal(t, "tmp-1", record.ClientMsgID)
	assert.Equal(t, "Acme", record.SenderName)

	published := publisher.records()
	require.Len(t, published, 1)
	assert.Equal(t, record, published[0])

	stored, err := msgRepo.ListByConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, record.ID, stored[0].ID)
}

func TestSend_EmptyContentWritesNothing(t *testing.T) {
	svc, convRepo, msgRepo, publisher, _ := newMessageService(t)
	brand := uuid.New()
	conv := convRepo.add(brand, uuid.New())

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := svc.Send(context.Background(), brand, conv.ID, content, "")
		assert.ErrorIs(t, err, collab_errors.ErrInvalidInput)
	}

	stored, err := msgRepo.ListByConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, publisher.records())
}

func TestSend_RetrySameClientMsgIDReturnsOriginal(t *testing.T) {
	svc, convRepo, msgRepo, publisher, _ := newMessageService(t)
	brand := uuid.New()
	conv := convRepo.add(brand, uuid.New())

	first, err := svc.Send(context.Background(), brand, conv.ID, "hello", "tmp-1")
	require.NoError(t, err)

	// The retry succeeds with the already-persisted record. Nothing is
	// appended or broadcast twice.
	second, err := svc.Send(context.Background(), brand, conv.ID, "hello", "tmp-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Seq, second.Seq)

	stored, err := msgRepo.ListByConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Len(t, publisher.records(), 1)
}

func TestSend_TokenReuseByAnotherSenderFails(t *testing.T) {
	svc, convRepo, _, publisher, _ := newMessageService(t)
	brand := uuid.New()
	creator := uuid.New()
	conv := convRepo.add(brand, creator)

	_, err := svc.Send(context.Background(), brand, conv.ID, "hello", "tmp-1")
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), creator, conv.ID, "hijack", "tmp-1")
	assert.ErrorIs(t, err, collab_errors.ErrAlreadyExists)

	otherConv := convRepo.add(brand, uuid.New())
	_, err = svc.Send(context.Background(), brand, otherConv.ID, "hello", "tmp-1")
	assert.ErrorIs(t, err, collab_errors.ErrAlreadyExists)

	assert.Len(t, publisher.records(), 1)
}

func TestSend_NonParticipantDoesNotPublish(t *testing.T) {
	svc, convRepo, _, publisher, _ := newMessageService(t)
	conv := convRepo.add(uuid.New(), uuid.New())

	_, err := svc.Send(context.Background(), uuid.New(), conv.ID, "hi", "")
	assert.ErrorIs(t, err, collab_errors.ErrNotParticipant)
	assert.Empty(t, publisher.records())
}

func TestSend_UnknownConversation(t *testing.T) {
	svc, _, _, _, _ := newMessageService(t)

	_, err := svc.Send(context.Background(), uuid.New(), uuid.New(), "hi", "")
	assert.ErrorIs(t, err, collab_errors.ErrConversationNotFound)
}

func TestHistory_OrdersAndDecorates(t *testing.T) {
	svc, convRepo, _, _, userRepo := newMessageService(t)
	brand := uuid.New()
	creator := uuid.New()
	userRepo.users[brand] = user.User{ID: brand, DisplayName: "Acme"}
	userRepo.users[creator] = user.User{ID: creator, DisplayName: "Nora"}
	conv := convRepo.add(brand, creator)

	_, err := svc.Send(context.Background(), brand, conv.ID, "first", "")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), creator, conv.ID, "second", "")
	require.NoError(t, err)

	records, err := svc.History(context.Background(), conv.ID, brand)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].Content)
	assert.Equal(t, "Acme", records[0].SenderName)
	assert.Equal(t, "second", records[1].Content)
	assert.Equal(t, "Nora", records[1].SenderName)
	assert.Less(t, records[0].Seq, records[1].Seq)
}

func TestHistory_NonParticipantIsDenied(t *testing.T) {
	svc, convRepo, _, _, _ := newMessageService(t)
	conv := convRepo.add(uuid.New(), uuid.New())

	_, err := svc.History(context.Background(), conv.ID, uuid.New())
	assert.ErrorIs(t, err, collab_errors.ErrAccessDenied)
}

func TestHistory_MissingConversation(t *testing.T) {
	svc, _, _, _, _ := newMessageService(t)

	_, err := svc.History(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, collab_errors.ErrNotFound)
}

func TestSend_RecordTimestampIsSet(t *testing.T) {
	svc, convRepo, _, _, _ := newMessageService(t)
	brand := uuid.New()
	conv := convRepo.add(brand, uuid.New())

	before := time.Now().Add(-time.Second)
	record, err := svc.Send(context.Background(), brand, conv.ID, "hi", "")
	require.NoError(t, err)
	assert.True(t, record.CreatedAt.After(before))
}
