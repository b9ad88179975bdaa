package repository_test

import (
	"context"
	"testing"
	"time"

	"collabchat/internal/domain/conversation"
	"collabchat/internal/domain/message"
	"collabchat/internal/domain/user"
	"collabchat/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// Every pooled connection gets its own in-memory database, so pin
	// the pool to one connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&user.User{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&message.Message{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) uuid.UUID {
	t.Helper()
	u := user.User{ID: uuid.New(), DisplayName: name, Role: "creator", CreatedAt: time.Now()}
	require.NoError(t, db.Create(&u).Error)
	return u.ID
}

func newMessage(conversationID, senderID uuid.UUID, content string) *message.Message {
	return &message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
}

func seedConversation(t *testing.T, db *gorm.DB, repo repository.ConversationRepository, userA, userB uuid.UUID) conversation.Conversation {
	t.Helper()
	conv, created, err := repo.FindOrCreate(context.Background(), userA, userB, uuid.NullUUID{})
	require.NoError(t, err)
	require.True(t, created)
	return conv
}
