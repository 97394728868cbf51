package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ragchat/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create appends a single message. Used for staging the user leg of an
// exchange before the generation collaborator is called.
func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// CreateWithSources appends the assistant leg together with its sources and
// bumps the conversation's last_updated, all in one transaction. Source rows
// are written in slice order so citation order survives the round trip.
func (r *MessageRepository) CreateWithSources(message *model.Message) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("last_updated", message.CreatedAt).Error
	})
	if err != nil {
		return fmt.Errorf("create message with sources failed: %w", err)
	}
	return nil
}

// Delete retracts a staged message. Only the orchestrators call this, and
// only for a user message whose assistant leg failed.
func (r *MessageRepository) Delete(id uint) error {
	if err := r.db.Delete(&model.Message{}, id).Error; err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	return nil
}

// ListByConversation returns all messages ordered by creation time, with
// sources preloaded. The id tiebreak keeps a user/assistant pair written in
// the same clock tick in append order.
func (r *MessageRepository) ListByConversation(conversationID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Preload("Sources", func(db *gorm.DB) *gorm.DB {
		return db.Order("sources.id ASC")
	}).Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentByConversation returns up to limit most recent messages in
// chronological order, for prompt building.
func (r *MessageRepository) ListRecentByConversation(conversationID uint, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var recent []model.Message
	if err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// FirstUserMessage returns the oldest user message of the conversation, or
// nil when the conversation has none.
func (r *MessageRepository) FirstUserMessage(conversationID uint) (*model.Message, error) {
	var message model.Message
	if err := r.db.Where("conversation_id = ? AND role = ?", conversationID, model.RoleUser).
		Order("created_at ASC, id ASC").
		First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get first user message failed: %w", err)
	}
	return &message, nil
}
