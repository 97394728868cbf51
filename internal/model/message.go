package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message belongs to exactly one conversation and is append-only. Sources is
// populated only for assistant messages in rag conversations.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	Role           string    `gorm:"size:16;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	UserName       string    `gorm:"size:64" json:"user_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	Sources []Source `gorm:"foreignKey:MessageID" json:"sources,omitempty"`
}
