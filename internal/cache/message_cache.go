package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"ragchat/internal/model"
)

// MessageCache is a read-through cache for a conversation's ordered message
// list (sources included). A short-lived dirty marker set around appends and
// deletes keeps a racing reader from re-caching a stale snapshot.
type MessageCache struct {
	client         *redisv9.Client
	messagesTTL    time.Duration
	dirtyMarkerTTL time.Duration
}

func NewMessageCache(client *redisv9.Client, messagesTTL, dirtyMarkerTTL time.Duration) *MessageCache {
	if messagesTTL <= 0 {
		messagesTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &MessageCache{
		client:         client,
		messagesTTL:    messagesTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *MessageCache) GetMessages(ctx context.Context, conversationID uint) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, c.messagesKey(conversationID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get messages failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached messages failed: %w", err)
	}
	return messages, true, nil
}

func (c *MessageCache) SetMessages(ctx context.Context, conversationID uint, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.messagesKey(conversationID), payload, c.messagesTTL).Err(); err != nil {
		return fmt.Errorf("redis set messages failed: %w", err)
	}
	return nil
}

func (c *MessageCache) Invalidate(ctx context.Context, conversationID uint) error {
	if err := c.client.Del(ctx, c.messagesKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete messages failed: %w", err)
	}
	return nil
}

func (c *MessageCache) MarkDirty(ctx context.Context, conversationID uint) error {
	if err := c.client.Set(ctx, c.dirtyKey(conversationID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *MessageCache) IsDirty(ctx context.Context, conversationID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(conversationID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *MessageCache) messagesKey(conversationID uint) string {
	return fmt.Sprintf("conv:messages:%d", conversationID)
}

func (c *MessageCache) dirtyKey(conversationID uint) string {
	return fmt.Sprintf("conv:messages:dirty:%d", conversationID)
}
