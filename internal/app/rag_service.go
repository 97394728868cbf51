package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ragchat/internal/ai"
	"ragchat/internal/compat"
	"ragchat/internal/model"
	"ragchat/internal/vectorindex"
)

const (
	ragMinK = 1
	ragMaxK = 10

	ragSystemPrompt = "You are a helpful assistant. Answer the user's question using only the provided context passages. If the context does not contain the answer, say so instead of guessing."
)

// Retriever searches one knowledge base for scored passages.
type Retriever interface {
	Search(ctx context.Context, req vectorindex.SearchRequest) ([]vectorindex.Passage, error)
}

// RAGService runs retrieval-augmented exchanges: retrieve passages from the
// selected knowledge bases, ground the chat model on them, and persist the
// assistant's reply with its citation sources.
type RAGService struct {
	conversations *ConversationService
	registry      *RegistryService
	retriever     Retriever
	generator     Generator
}

func NewRAGService(conversations *ConversationService, registry *RegistryService, retriever Retriever, generator Generator) *RAGService {
	return &RAGService{
		conversations: conversations,
		registry:      registry,
		retriever:     retriever,
		generator:     generator,
	}
}

type RAGQueryInput struct {
	UserID   uint
	UserName string
	// ConversationID zero means start a new rag conversation for this query.
	ConversationID uint
	ChatModel      string
	EmbeddingModel string
	KBNames        []string
	Query          string
	K              int
}

type RAGQueryResult struct {
	Conversation *model.Conversation
	UserMessage  *model.Message
	Assistant    *model.Message
	Sources      []model.Source
}

// Query runs one rag exchange. Every validation failure happens before any
// conversation or message is written: the pairing check, knowledge base
// resolution, and the query/k checks all come first. A collaborator failure
// after staging retracts the staged user message; the lazily created
// conversation itself survives.
func (s *RAGService) Query(ctx context.Context, input RAGQueryInput) (*RAGQueryResult, error) {
	compatible, err := compat.CompatiblePair(input.ChatModel, input.EmbeddingModel)
	if err != nil || !compatible {
		return nil, fmt.Errorf("%w: %s / %s", ErrIncompatiblePair, input.ChatModel, input.EmbeddingModel)
	}

	if len(input.KBNames) == 0 {
		return nil, ErrInvalidInput
	}
	kbs := make([]model.KnowledgeBase, 0, len(input.KBNames))
	for _, name := range input.KBNames {
		kb, err := s.registry.Get(name)
		if err != nil {
			return nil, err
		}
		if kb.EmbeddingModel != input.EmbeddingModel {
			return nil, fmt.Errorf("%w: %s expects %s", ErrEmbeddingMismatch, kb.Name, kb.EmbeddingModel)
		}
		kbs = append(kbs, *kb)
	}

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if input.K < ragMinK || input.K > ragMaxK {
		return nil, ErrInvalidK
	}

	conversation, err := s.resolveConversation(input)
	if err != nil {
		return nil, err
	}

	var sources []model.Source
	userMsg, assistant, err := s.conversations.AppendExchange(ctx, conversation.ID, input.UserName, query,
		func(ctx context.Context) (string, []model.Source, error) {
			passages, retrErr := s.retrieve(ctx, kbs, query, input.K)
			if retrErr != nil {
				return "", nil, retrErr
			}

			prompt := buildRAGPrompt(passages, query)
			reply, genErr := s.generator.Complete(ctx, input.ChatModel, prompt)
			if genErr != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrGenerationFailed, genErr)
			}

			sources = sourcesFromPassages(passages)
			return reply, sources, nil
		})
	if err != nil {
		return nil, err
	}

	return &RAGQueryResult{
		Conversation: conversation,
		UserMessage:  userMsg,
		Assistant:    assistant,
		Sources:      sources,
	}, nil
}

func (s *RAGService) resolveConversation(input RAGQueryInput) (*model.Conversation, error) {
	if input.ConversationID != 0 {
		conversation, err := s.conversations.Get(input.UserID, input.ConversationID)
		if err != nil {
			return nil, err
		}
		if conversation.ConversationType != model.ModeRAG {
			return nil, ErrWrongConversationMode
		}
		return conversation, nil
	}
	return s.conversations.Create(CreateConversationInput{
		UserID: input.UserID,
		Mode:   model.ModeRAG,
	})
}

// scoredPassage tags a retrieved passage with its knowledge base of origin.
type scoredPassage struct {
	vectorindex.Passage
	KBName string
}

// retrieve fans the query out to each selected knowledge base, over-fetching
// 2k candidates per base, then picks the final k with a diversity-aware
// greedy selection over the merged pool.
func (s *RAGService) retrieve(ctx context.Context, kbs []model.KnowledgeBase, query string, k int) ([]scoredPassage, error) {
	pool := make([]scoredPassage, 0, 2*k*len(kbs))
	for _, kb := range kbs {
		passages, err := s.retriever.Search(ctx, vectorindex.SearchRequest{
			KBName:         kb.Name,
			EmbeddingModel: kb.EmbeddingModel,
			Query:          query,
			FetchK:         2 * k,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: search %s: %v", ErrRetrievalFailed, kb.Name, err)
		}
		for _, p := range passages {
			pool = append(pool, scoredPassage{Passage: p, KBName: kb.Name})
		}
	}
	return selectDiverse(pool, k), nil
}

// selectDiverse greedily picks k passages from the candidate pool, trading
// relevance against redundancy: each step takes the candidate whose score
// minus its worst-case token overlap with the already selected passages is
// highest. With an empty selection this degenerates to top-k by score.
func selectDiverse(pool []scoredPassage, k int) []scoredPassage {
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score > pool[j].Score
	})
	if len(pool) <= k {
		return pool
	}

	selected := make([]scoredPassage, 0, k)
	remaining := append([]scoredPassage(nil), pool...)
	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestValue := -1.0
		for i, candidate := range remaining {
			overlap := 0.0
			for _, chosen := range selected {
				if sim := tokenOverlap(candidate.Excerpt, chosen.Excerpt); sim > overlap {
					overlap = sim
				}
			}
			if value := candidate.Score - overlap; value > bestValue {
				bestValue = value
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// tokenOverlap is the Jaccard similarity of the two excerpts' lowercase token
// sets, in [0, 1].
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(strings.ToLower(text)) {
		set[token] = struct{}{}
	}
	return set
}

func buildRAGPrompt(passages []scoredPassage, query string) []ai.ChatMessage {
	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s, page %d (knowledge base %s):\n%s\n\n",
			i+1, p.SourceDocument, p.PageNumber, p.KBName, p.Excerpt)
	}
	b.WriteString("Question: ")
	b.WriteString(query)

	return []ai.ChatMessage{
		{Role: "system", Content: ragSystemPrompt},
		{Role: model.RoleUser, Content: b.String()},
	}
}

// sourcesFromPassages converts the selected passages into citation rows,
// preserving selection order.
func sourcesFromPassages(passages []scoredPassage) []model.Source {
	sources := make([]model.Source, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, model.Source{
			SourceDocument: p.SourceDocument,
			PageNumber:     p.PageNumber,
			Score:          p.Score,
			KBName:         p.KBName,
		})
	}
	return sources
}
