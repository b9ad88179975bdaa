package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conversation is a persistent thread between two marketplace users,
// optionally scoped to a campaign. PairKey is the canonical identity of
// the (participants, campaign) triple; its unique index is what makes
// find-or-create race-safe.
type Conversation struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CampaignID uuid.NullUUID `gorm:"type:uuid;index" json:"campaign_id"`
	PairKey    string        `gorm:"size:128;uniqueIndex" json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `gorm:"index" json:"updated_at"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// Participant attaches a user to a conversation. Participancy is the
// sole authorization rule for reads and writes in the subsystem.
type Participant struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
	LastReadAt     time.Time `json:"last_read_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

// PairKey builds the canonical key for a participant pair and campaign,
// independent of argument order.
func PairKey(a, b uuid.UUID, campaignID uuid.NullUUID) string {
	lo, hi := a, b
	if hi.String() < lo.String() {
		lo, hi = hi, lo
	}
	campaign := ""
	if campaignID.Valid {
		campaign = campaignID.UUID.String()
	}
	return fmt.Sprintf("%s:%s:%s", lo, hi, campaign)
}
