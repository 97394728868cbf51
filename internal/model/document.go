package model

import "time"

// Document records one successfully ingested file. Creating a document
// increments its knowledge base's document_count in the same transaction.
type Document struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	KnowledgeBaseID uint      `gorm:"not null;index" json:"knowledge_base_id"`
	Filename        string    `gorm:"size:256;not null" json:"filename"`
	DocumentType    string    `gorm:"size:16;not null" json:"document_type"`
	PageCount       int       `gorm:"not null" json:"page_count"`
	ChunkCount      int       `gorm:"not null" json:"chunk_count"`
	CreatedAt       time.Time `json:"created_at"`
}
