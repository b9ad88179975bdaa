package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User is the profile row maintained by the marketplace application.
// The messaging service only reads it to decorate message and
// conversation payloads for rendering.
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	DisplayName string         `gorm:"size:128"`
	AvatarURL   sql.NullString `gorm:"size:512"`
	Role        string         `gorm:"size:16"` // brand or creator
	CreatedAt   time.Time
}

func (User) TableName() string {
	return "users"
}
