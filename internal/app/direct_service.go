package app

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/ai"
	"ragchat/internal/compat"
	"ragchat/internal/model"
	"ragchat/internal/repository"
)

const directSystemPrompt = "You are a helpful assistant. Answer the user's questions clearly and concisely."

// Generator produces chat completions for a chat model.
type Generator interface {
	Complete(ctx context.Context, chatModel string, messages []ai.ChatMessage) (string, error)
}

// DirectService runs direct-mode exchanges: conversation history plus the new
// query go straight to the chat model, with no retrieval and no sources.
type DirectService struct {
	conversations *ConversationService
	msgRepo       *repository.MessageRepository
	generator     Generator
	maxContext    int
}

func NewDirectService(conversations *ConversationService, msgRepo *repository.MessageRepository, generator Generator, maxContext int) *DirectService {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &DirectService{
		conversations: conversations,
		msgRepo:       msgRepo,
		generator:     generator,
		maxContext:    maxContext,
	}
}

type DirectQueryInput struct {
	UserID         uint
	UserName       string
	ConversationID uint
	ChatModel      string
	Query          string
}

type DirectQueryResult struct {
	Conversation *model.Conversation
	UserMessage  *model.Message
	Assistant    *model.Message
}

// Query runs one direct-mode exchange against an existing conversation. All
// validation happens before the user message is staged; a generation failure
// retracts it.
func (s *DirectService) Query(ctx context.Context, input DirectQueryInput) (*DirectQueryResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if _, err := compat.EmbeddingModelFor(input.ChatModel); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIncompatiblePair, input.ChatModel)
	}

	conversation, err := s.conversations.Get(input.UserID, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if conversation.ConversationType != model.ModeDirect {
		return nil, ErrWrongConversationMode
	}

	history, err := s.msgRepo.ListRecentByConversation(conversation.ID, s.maxContext)
	if err != nil {
		return nil, err
	}

	userMsg, assistant, err := s.conversations.AppendExchange(ctx, conversation.ID, input.UserName, query,
		func(ctx context.Context) (string, []model.Source, error) {
			prompt := buildDirectPrompt(history, query)
			reply, genErr := s.generator.Complete(ctx, input.ChatModel, prompt)
			if genErr != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrGenerationFailed, genErr)
			}
			return reply, nil, nil
		})
	if err != nil {
		return nil, err
	}

	return &DirectQueryResult{
		Conversation: conversation,
		UserMessage:  userMsg,
		Assistant:    assistant,
	}, nil
}

func buildDirectPrompt(history []model.Message, query string) []ai.ChatMessage {
	prompt := make([]ai.ChatMessage, 0, len(history)+2)
	prompt = append(prompt, ai.ChatMessage{Role: "system", Content: directSystemPrompt})
	for _, m := range history {
		prompt = append(prompt, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}
	prompt = append(prompt, ai.ChatMessage{Role: model.RoleUser, Content: query})
	return prompt
}
