package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ragchat/internal/ai"
	"ragchat/internal/model"
	"ragchat/internal/repository"
	"ragchat/internal/vectorindex"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
		&model.Source{},
		&model.KnowledgeBase{},
		&model.Document{},
	))
	return db
}

func newTestConversationService(t *testing.T, db *gorm.DB, controller *ModeController) *ConversationService {
	t.Helper()
	return NewConversationService(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		nil,
		nil,
		controller,
	)
}

type fakeGenerator struct {
	reply   string
	err     error
	prompts [][]ai.ChatMessage
}

func (g *fakeGenerator) Complete(_ context.Context, _ string, messages []ai.ChatMessage) (string, error) {
	g.prompts = append(g.prompts, messages)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type fakeRetriever struct {
	passages map[string][]vectorindex.Passage
	err      error
	requests []vectorindex.SearchRequest
}

func (r *fakeRetriever) Search(_ context.Context, req vectorindex.SearchRequest) ([]vectorindex.Passage, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return r.passages[req.KBName], nil
}

type fakeIndexer struct {
	chunkCount int
	err        error
	requests   []vectorindex.IndexRequest
}

func (i *fakeIndexer) Index(_ context.Context, req vectorindex.IndexRequest) (*vectorindex.IndexResult, error) {
	i.requests = append(i.requests, req)
	if i.err != nil {
		return nil, i.err
	}
	return &vectorindex.IndexResult{ChunkCount: i.chunkCount}, nil
}
