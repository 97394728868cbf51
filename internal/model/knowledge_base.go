package model

import "time"

// KnowledgeBase is a named, embedding-model-specific collection of ingested
// documents. EmbeddingModel is immutable for the lifetime of the knowledge
// base; re-ingesting with a different embedding model requires a new one.
type KnowledgeBase struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:256;not null;uniqueIndex" json:"name"`
	Description      string    `gorm:"size:512" json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	DocumentCount    int       `gorm:"not null;default:0" json:"document_count"`
	EmbeddingModel   string    `gorm:"size:128;not null" json:"embedding_model"`
	ChunkingStrategy string    `gorm:"size:64;not null" json:"chunking_strategy"`
}
