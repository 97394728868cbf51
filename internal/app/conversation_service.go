package app

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"ragchat/internal/model"
	"ragchat/internal/platform/rabbitmq"
	"ragchat/internal/repository"
)

const titleMaxRunes = 30

// MessageCache is the read-through cache in front of the message list.
type MessageCache interface {
	GetMessages(ctx context.Context, conversationID uint) ([]model.Message, bool, error)
	SetMessages(ctx context.Context, conversationID uint, messages []model.Message) error
	Invalidate(ctx context.Context, conversationID uint) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
}

// TitleJobPublisher enqueues best-effort title refresh jobs.
type TitleJobPublisher interface {
	Publish(ctx context.Context, job rabbitmq.TitleRefreshJob) error
}

// ExchangeFunc produces the assistant leg of an exchange: the reply text and
// its sources. It runs after the user message is staged; returning an error
// retracts the staged message.
type ExchangeFunc func(ctx context.Context) (string, []model.Source, error)

// ConversationService owns conversation and message lifecycle for both chat
// modes.
type ConversationService struct {
	convRepo   *repository.ConversationRepository
	msgRepo    *repository.MessageRepository
	cache      MessageCache
	publisher  TitleJobPublisher
	controller *ModeController

	// One mutex per conversation so concurrent exchanges against the same
	// conversation cannot interleave their user/assistant pairs.
	convLocks sync.Map
}

func NewConversationService(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	cache MessageCache,
	publisher TitleJobPublisher,
	controller *ModeController,
) *ConversationService {
	return &ConversationService{
		convRepo:   convRepo,
		msgRepo:    msgRepo,
		cache:      cache,
		publisher:  publisher,
		controller: controller,
	}
}

type CreateConversationInput struct {
	UserID uint
	Title  string
	Mode   string
}

// Create starts a new conversation in the given mode. The mode is immutable
// for the conversation's lifetime.
func (s *ConversationService) Create(input CreateConversationInput) (*model.Conversation, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	if !model.ValidMode(input.Mode) {
		return nil, ErrInvalidMode
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = model.PlaceholderTitle
	}

	conversation := &model.Conversation{
		Title:            title,
		CreatedBy:        input.UserID,
		ConversationType: input.Mode,
	}
	if err := s.convRepo.Create(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// List returns the user's conversations newest-first; mode may be empty for
// both, or one of direct/rag to partition.
func (s *ConversationService) List(userID uint, mode string) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if mode != "" && !model.ValidMode(mode) {
		return nil, ErrInvalidMode
	}
	return s.convRepo.ListByUser(userID, mode)
}

// Get returns the conversation if it exists and belongs to the user.
func (s *ConversationService) Get(userID, conversationID uint) (*model.Conversation, error) {
	if userID == 0 || conversationID == 0 {
		return nil, ErrInvalidInput
	}
	conversation, err := s.convRepo.GetByIDAndUser(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

// ListMessages returns the conversation's messages in creation order with
// sources embedded, going through the cache when it is clean.
func (s *ConversationService) ListMessages(ctx context.Context, userID, conversationID uint) ([]model.Message, error) {
	if _, err := s.Get(userID, conversationID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		dirty, err := s.cache.IsDirty(ctx, conversationID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetMessages(ctx, conversationID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.msgRepo.ListByConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.cache.SetMessages(ctx, conversationID, messages)
		}
	}
	return messages, nil
}

// AppendMessage appends a single message to a conversation. Sources are only
// legal on rag conversations; both checks happen before any write.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID uint, role, content, userName string, sources []model.Source) (*model.Message, error) {
	conversation, err := s.convRepo.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	if len(sources) > 0 && conversation.ConversationType != model.ModeRAG {
		return nil, ErrSourcesWithoutRAG
	}

	message := &model.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		UserName:       userName,
		CreatedAt:      time.Now(),
		Sources:        sources,
	}
	s.markDirty(ctx, conversationID)
	if err := s.msgRepo.CreateWithSources(message); err != nil {
		return nil, err
	}
	s.invalidate(ctx, conversationID)
	return message, nil
}

// AppendExchange runs one query end to end against a conversation: stage the
// user message, produce the assistant reply via generate, commit the
// assistant message with its sources, and enqueue a title refresh. If
// generate fails the staged user message is retracted, so a failed exchange
// never leaves an unanswered user message behind.
func (s *ConversationService) AppendExchange(ctx context.Context, conversationID uint, userName, userContent string, generate ExchangeFunc) (*model.Message, *model.Message, error) {
	unlock := s.lockConversation(conversationID)
	defer unlock()

	conversation, err := s.convRepo.GetByID(conversationID)
	if err != nil {
		return nil, nil, err
	}
	if conversation == nil {
		return nil, nil, ErrConversationNotFound
	}

	userMessage := &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        userContent,
		UserName:       userName,
		CreatedAt:      time.Now(),
	}
	s.markDirty(ctx, conversationID)
	if err := s.msgRepo.Create(userMessage); err != nil {
		return nil, nil, err
	}

	reply, sources, err := generate(ctx)
	if err != nil {
		if delErr := s.msgRepo.Delete(userMessage.ID); delErr != nil {
			log.Printf("retract staged message %d failed: %v", userMessage.ID, delErr)
		}
		s.invalidate(ctx, conversationID)
		return nil, nil, err
	}
	if len(sources) > 0 && conversation.ConversationType != model.ModeRAG {
		if delErr := s.msgRepo.Delete(userMessage.ID); delErr != nil {
			log.Printf("retract staged message %d failed: %v", userMessage.ID, delErr)
		}
		s.invalidate(ctx, conversationID)
		return nil, nil, ErrSourcesWithoutRAG
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = "The model returned an empty response."
	}

	assistantMessage := &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        reply,
		CreatedAt:      time.Now(),
		Sources:        sources,
	}
	if err := s.msgRepo.CreateWithSources(assistantMessage); err != nil {
		if delErr := s.msgRepo.Delete(userMessage.ID); delErr != nil {
			log.Printf("retract staged message %d failed: %v", userMessage.ID, delErr)
		}
		s.invalidate(ctx, conversationID)
		return nil, nil, err
	}

	s.invalidate(ctx, conversationID)
	s.publishTitleRefresh(ctx, conversationID)
	return userMessage, assistantMessage, nil
}

// RefreshTitle derives the conversation's title from its first user message,
// truncated to a short label. A conversation with no user message keeps its
// placeholder; re-deriving an already meaningful title is a harmless
// overwrite, never an error.
func (s *ConversationService) RefreshTitle(ctx context.Context, conversationID uint) error {
	first, err := s.msgRepo.FirstUserMessage(conversationID)
	if err != nil {
		return err
	}
	if first == nil {
		return nil
	}
	return s.convRepo.UpdateTitle(conversationID, deriveTitle(first.Content))
}

// RefreshTitleOwned is RefreshTitle behind an ownership check, for the HTTP
// surface.
func (s *ConversationService) RefreshTitleOwned(ctx context.Context, userID, conversationID uint) (*model.Conversation, error) {
	if _, err := s.Get(userID, conversationID); err != nil {
		return nil, err
	}
	if err := s.RefreshTitle(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.Get(userID, conversationID)
}

// Delete removes the conversation with all messages and sources, and clears
// the mode controller's selection so no dangling reference survives.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID uint) error {
	conversation, err := s.Get(userID, conversationID)
	if err != nil {
		return err
	}
	if err := s.convRepo.DeleteCascade(conversation.ID); err != nil {
		return err
	}
	s.invalidate(ctx, conversationID)
	if s.controller != nil {
		s.controller.ClearConversation(userID, conversationID)
	}
	return nil
}

func (s *ConversationService) lockConversation(conversationID uint) func() {
	m, _ := s.convLocks.LoadOrStore(conversationID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *ConversationService) markDirty(ctx context.Context, conversationID uint) {
	if s.cache != nil {
		_ = s.cache.MarkDirty(ctx, conversationID)
		_ = s.cache.Invalidate(ctx, conversationID)
	}
}

func (s *ConversationService) invalidate(ctx context.Context, conversationID uint) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, conversationID)
	}
}

func (s *ConversationService) publishTitleRefresh(ctx context.Context, conversationID uint) {
	if s.publisher == nil {
		// No broker wired (tests): refresh inline so titles still update.
		if err := s.RefreshTitle(ctx, conversationID); err != nil {
			log.Printf("refresh title for conversation %d failed: %v", conversationID, err)
		}
		return
	}
	if err := s.publisher.Publish(ctx, rabbitmq.TitleRefreshJob{ConversationID: conversationID}); err != nil {
		log.Printf("publish title refresh for conversation %d failed: %v", conversationID, err)
		if refreshErr := s.RefreshTitle(ctx, conversationID); refreshErr != nil {
			log.Printf("inline refresh title for conversation %d failed: %v", conversationID, refreshErr)
		}
	}
}

func deriveTitle(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}
