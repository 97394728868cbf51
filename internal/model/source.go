package model

// Source is a citation attached to an assistant message in a rag
// conversation: which document and page grounded the answer, and how
// relevant the passage was. Never mutated after creation.
type Source struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	MessageID      uint    `gorm:"not null;index" json:"message_id"`
	SourceDocument string  `gorm:"size:256;not null" json:"source_document"`
	PageNumber     int     `json:"page_number"`
	Score          float64 `json:"score"`
	KBName         string  `gorm:"column:kb_name;size:256" json:"kb_name"`
}
