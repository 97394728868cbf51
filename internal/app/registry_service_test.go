package app

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ragchat/internal/compat"
	"ragchat/internal/model"
	"ragchat/internal/repository"
)

func newTestRegistry(t *testing.T, db *gorm.DB, indexer Indexer) *RegistryService {
	t.Helper()
	return NewRegistryService(repository.NewKnowledgeBaseRepository(db), indexer, 1000, 200)
}

// docxBytes builds a minimal DOCX archive holding the given paragraphs.
func docxBytes(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>`)
		body.WriteString(p)
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write(body.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRegisterKnowledgeBase(t *testing.T) {
	db := newTestDB(t)
	svc := newTestRegistry(t, db, &fakeIndexer{})

	kb, err := svc.Register(RegisterKBInput{
		Name:           "kb_manuals",
		Description:    "product manuals",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)
	assert.Equal(t, compat.ChunkingSemanticPercentile, kb.ChunkingStrategy)
	assert.Zero(t, kb.DocumentCount)

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := svc.Register(RegisterKBInput{Name: "kb_manuals", EmbeddingModel: "text-embedding-3-small"})
		assert.ErrorIs(t, err, ErrDuplicateKnowledgeBase)
	})

	t.Run("unknown embedding model rejected", func(t *testing.T) {
		_, err := svc.Register(RegisterKBInput{Name: "kb_other", EmbeddingModel: "mystery-embed-v1"})
		assert.ErrorIs(t, err, ErrIncompatiblePair)
	})

	t.Run("local model gets recursive chunking", func(t *testing.T) {
		kb, err := svc.Register(RegisterKBInput{Name: "kb_local", EmbeddingModel: "llama3.2:1b"})
		require.NoError(t, err)
		assert.Equal(t, compat.ChunkingRecursive, kb.ChunkingStrategy)
	})

	t.Run("explicit chunking strategy honored", func(t *testing.T) {
		kb, err := svc.Register(RegisterKBInput{
			Name:             "kb_explicit",
			EmbeddingModel:   "text-embedding-3-small",
			ChunkingStrategy: compat.ChunkingRecursive,
		})
		require.NoError(t, err)
		assert.Equal(t, compat.ChunkingRecursive, kb.ChunkingStrategy)

		_, err = svc.Register(RegisterKBInput{
			Name:             "kb_bogus_strategy",
			EmbeddingModel:   "text-embedding-3-small",
			ChunkingStrategy: "by-vibes",
		})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestListCompatible(t *testing.T) {
	db := newTestDB(t)
	svc := newTestRegistry(t, db, &fakeIndexer{})

	_, err := svc.Register(RegisterKBInput{Name: "kb_openai", EmbeddingModel: "text-embedding-3-small"})
	require.NoError(t, err)
	_, err = svc.Register(RegisterKBInput{Name: "kb_llama", EmbeddingModel: "llama3.2:1b"})
	require.NoError(t, err)

	t.Run("exact embedding match only", func(t *testing.T) {
		kbs, err := svc.ListCompatible("text-embedding-3-small")
		require.NoError(t, err)
		require.Len(t, kbs, 1)
		assert.Equal(t, "kb_openai", kbs[0].Name)

		kbs, err = svc.ListCompatible("llama3.2:1b")
		require.NoError(t, err)
		require.Len(t, kbs, 1)
		assert.Equal(t, "kb_llama", kbs[0].Name)
	})

	t.Run("no partial matching across local models", func(t *testing.T) {
		kbs, err := svc.ListCompatible("gemma2:2b")
		require.NoError(t, err)
		assert.Empty(t, kbs)
	})

	t.Run("unknown embedding model fails loud", func(t *testing.T) {
		_, err := svc.ListCompatible("mystery-embed-v1")
		assert.ErrorIs(t, err, ErrIncompatiblePair)
	})
}

func TestIngest(t *testing.T) {
	db := newTestDB(t)
	indexer := &fakeIndexer{chunkCount: 7}
	svc := newTestRegistry(t, db, indexer)
	ctx := context.Background()

	content := docxBytes(t, "The gopher digs tunnels.", "It stores food underground.")

	result, err := svc.Ingest(ctx, IngestInput{
		File:           bytes.NewReader(content),
		Filename:       "Gopher Habits.docx",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)

	assert.Equal(t, "kb_gopher_habits", result.KnowledgeBase.Name)
	assert.Equal(t, "text-embedding-3-small", result.KnowledgeBase.EmbeddingModel)
	assert.Equal(t, compat.ChunkingSemanticPercentile, result.KnowledgeBase.ChunkingStrategy)
	assert.Equal(t, 1, result.KnowledgeBase.DocumentCount)
	assert.Equal(t, 7, result.Document.ChunkCount)
	assert.Equal(t, 1, result.Document.PageCount)

	require.Len(t, indexer.requests, 1)
	assert.Equal(t, "kb_gopher_habits", indexer.requests[0].KBName)
	assert.Equal(t, 1000, indexer.requests[0].ChunkSize)
	assert.Equal(t, 200, indexer.requests[0].ChunkOverlap)

	t.Run("re-ingest increments document count", func(t *testing.T) {
		again, err := svc.Ingest(ctx, IngestInput{
			File:           bytes.NewReader(content),
			Filename:       "Gopher Habits.docx",
			EmbeddingModel: "text-embedding-3-small",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, again.KnowledgeBase.DocumentCount)

		docs, err := svc.ListDocuments("kb_gopher_habits")
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("chunk knobs override defaults", func(t *testing.T) {
		_, err := svc.Ingest(ctx, IngestInput{
			File:           bytes.NewReader(content),
			Filename:       "Gopher Habits.docx",
			EmbeddingModel: "text-embedding-3-small",
			ChunkSize:      500,
			ChunkOverlap:   50,
		})
		require.NoError(t, err)

		last := indexer.requests[len(indexer.requests)-1]
		assert.Equal(t, 500, last.ChunkSize)
		assert.Equal(t, 50, last.ChunkOverlap)
	})

	t.Run("embedding mismatch leaves no trace", func(t *testing.T) {
		before := len(indexer.requests)
		_, err := svc.Ingest(ctx, IngestInput{
			File:           bytes.NewReader(content),
			Filename:       "Gopher Habits.docx",
			EmbeddingModel: "llama3.2:1b",
		})
		assert.ErrorIs(t, err, ErrEmbeddingMismatch)
		assert.Len(t, indexer.requests, before, "mismatch must be caught before the index call")

		kb, err := svc.Get("kb_gopher_habits")
		require.NoError(t, err)
		assert.Equal(t, 3, kb.DocumentCount)
	})

	t.Run("index failure records no document", func(t *testing.T) {
		failing := &fakeIndexer{err: errors.New("index service down")}
		failSvc := newTestRegistry(t, db, failing)

		_, err := failSvc.Ingest(ctx, IngestInput{
			File:           bytes.NewReader(docxBytes(t, "fresh content")),
			Filename:       "fresh.docx",
			EmbeddingModel: "text-embedding-3-small",
		})
		assert.ErrorIs(t, err, ErrIndexingFailed)

		kb, err := failSvc.Get("kb_fresh")
		require.NoError(t, err)
		assert.Zero(t, kb.DocumentCount)

		var docCount int64
		require.NoError(t, db.Model(&model.Document{}).Where("knowledge_base_id = ?", kb.ID).Count(&docCount).Error)
		assert.Zero(t, docCount)
	})

	t.Run("unsupported format rejected", func(t *testing.T) {
		_, err := svc.Ingest(ctx, IngestInput{
			File:           bytes.NewReader([]byte("plain text")),
			Filename:       "notes.txt",
			EmbeddingModel: "text-embedding-3-small",
		})
		assert.Error(t, err)
	})
}

func TestDeriveKBName(t *testing.T) {
	cases := map[string]string{
		"Annual Report 2024.pdf": "kb_annual_report_2024",
		"notes.docx":             "kb_notes",
		"/tmp/uploads/My File.PDF": "kb_my_file",
	}
	for input, want := range cases {
		assert.Equal(t, want, DeriveKBName(input), "input %q", input)
	}
}
