package model

import "time"

const (
	ModeDirect = "direct"
	ModeRAG    = "rag"
)

// PlaceholderTitle is the title every conversation starts with until the
// first exchange completes and the title is derived from its content.
const PlaceholderTitle = "New Chat"

// Conversation is a single chat thread. ConversationType is fixed at
// creation; a conversation never switches between direct and rag.
type Conversation struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"size:256;not null" json:"title"`
	CreatedBy        uint      `gorm:"not null;index" json:"created_by"`
	ConversationType string    `gorm:"size:16;not null;index" json:"conversation_type"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdated      time.Time `json:"last_updated"`
}

// ValidMode reports whether mode is one of the two chat modes.
func ValidMode(mode string) bool {
	return mode == ModeDirect || mode == ModeRAG
}
