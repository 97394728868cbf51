package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ragchat/internal/model"
)

type KnowledgeBaseRepository struct {
	db *gorm.DB
}

func NewKnowledgeBaseRepository(db *gorm.DB) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: db}
}

func (r *KnowledgeBaseRepository) Create(kb *model.KnowledgeBase) error {
	if err := r.db.Create(kb).Error; err != nil {
		return fmt.Errorf("create knowledge base failed: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) List() ([]model.KnowledgeBase, error) {
	var list []model.KnowledgeBase
	if err := r.db.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list knowledge bases failed: %w", err)
	}
	return list, nil
}

// ListByEmbeddingModel filters by exact embedding model match. Embedding
// spaces from different models must never be mixed in one retrieval call.
func (r *KnowledgeBaseRepository) ListByEmbeddingModel(embeddingModel string) ([]model.KnowledgeBase, error) {
	var list []model.KnowledgeBase
	if err := r.db.Where("embedding_model = ?", embeddingModel).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list compatible knowledge bases failed: %w", err)
	}
	return list, nil
}

func (r *KnowledgeBaseRepository) GetByName(name string) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := r.db.Where("name = ?", name).First(&kb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get knowledge base failed: %w", err)
	}
	return &kb, nil
}

// RecordDocument inserts the document row and increments the knowledge
// base's document_count in one transaction, so a document without a count
// update (or the reverse) is never observable.
func (r *KnowledgeBaseRepository) RecordDocument(doc *model.Document) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		return tx.Model(&model.KnowledgeBase{}).
			Where("id = ?", doc.KnowledgeBaseID).
			Update("document_count", gorm.Expr("document_count + 1")).Error
	})
	if err != nil {
		return fmt.Errorf("record document failed: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) ListDocuments(kbID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("knowledge_base_id = ?", kbID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}
