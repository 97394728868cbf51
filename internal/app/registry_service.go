package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"ragchat/internal/compat"
	"ragchat/internal/model"
	"ragchat/internal/pkg/docextract"
	"ragchat/internal/repository"
	"ragchat/internal/vectorindex"
)

// Indexer sends extracted documents to the vector index service.
type Indexer interface {
	Index(ctx context.Context, req vectorindex.IndexRequest) (*vectorindex.IndexResult, error)
}

// RegistryService is the knowledge base catalog: registration, compatibility
// filtering, and document ingestion.
type RegistryService struct {
	kbRepo       *repository.KnowledgeBaseRepository
	indexer      Indexer
	chunkSize    int
	chunkOverlap int
}

func NewRegistryService(kbRepo *repository.KnowledgeBaseRepository, indexer Indexer, chunkSize, chunkOverlap int) *RegistryService {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 200
	}
	return &RegistryService{
		kbRepo:       kbRepo,
		indexer:      indexer,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// ListAll returns every registered knowledge base regardless of embedding
// model.
func (s *RegistryService) ListAll() ([]model.KnowledgeBase, error) {
	return s.kbRepo.List()
}

// ListCompatible returns exactly the knowledge bases whose embedding model
// equals the argument. Exact match, never similarity: embedding spaces from
// different models must not be mixed in one retrieval call. An unknown
// embedding model is rejected rather than silently matching nothing.
func (s *RegistryService) ListCompatible(embeddingModel string) ([]model.KnowledgeBase, error) {
	if _, err := compat.ChatModelFor(embeddingModel); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIncompatiblePair, embeddingModel)
	}
	return s.kbRepo.ListByEmbeddingModel(embeddingModel)
}

type RegisterKBInput struct {
	Name           string
	Description    string
	EmbeddingModel string
	// ChunkingStrategy may be left empty, in which case the canonical
	// strategy for the embedding model applies.
	ChunkingStrategy string
}

// Register creates an empty knowledge base bound to an embedding model.
func (s *RegistryService) Register(input RegisterKBInput) (*model.KnowledgeBase, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	canonical, err := compat.ChunkingStrategyFor(input.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIncompatiblePair, input.EmbeddingModel)
	}
	strategy := input.ChunkingStrategy
	if strategy == "" {
		strategy = canonical
	}
	if strategy != compat.ChunkingSemanticPercentile && strategy != compat.ChunkingRecursive {
		return nil, ErrInvalidInput
	}

	existing, err := s.kbRepo.GetByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateKnowledgeBase
	}

	kb := &model.KnowledgeBase{
		Name:             name,
		Description:      strings.TrimSpace(input.Description),
		EmbeddingModel:   input.EmbeddingModel,
		ChunkingStrategy: strategy,
	}
	if err := s.kbRepo.Create(kb); err != nil {
		return nil, err
	}
	return kb, nil
}

// Get returns the knowledge base by name or ErrKnowledgeBaseNotFound.
func (s *RegistryService) Get(name string) (*model.KnowledgeBase, error) {
	kb, err := s.kbRepo.GetByName(strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrKnowledgeBaseNotFound
	}
	return kb, nil
}

// ListDocuments returns the ingested documents of a knowledge base.
func (s *RegistryService) ListDocuments(name string) ([]model.Document, error) {
	kb, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return s.kbRepo.ListDocuments(kb.ID)
}

type IngestInput struct {
	File           io.Reader
	Filename       string
	EmbeddingModel string
	// ChunkSize and ChunkOverlap override the configured defaults when
	// positive.
	ChunkSize    int
	ChunkOverlap int
}

type IngestResult struct {
	KnowledgeBase *model.KnowledgeBase
	Document      *model.Document
}

// Ingest runs the upload pipeline: extract the file's pages, derive the
// knowledge base name from the filename, get or create that knowledge base,
// send the pages to the index service, and record the document. The database
// row is written only after indexing succeeds, so a failed upload leaves no
// trace.
func (s *RegistryService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if input.File == nil || strings.TrimSpace(input.Filename) == "" {
		return nil, ErrInvalidInput
	}
	strategy, err := compat.ChunkingStrategyFor(input.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIncompatiblePair, input.EmbeddingModel)
	}

	extracted, err := docextract.Extract(input.File, input.Filename)
	if err != nil {
		if errors.Is(err, docextract.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexingFailed, err)
	}
	if len(extracted.Pages) == 0 || strings.TrimSpace(extracted.Text()) == "" {
		return nil, fmt.Errorf("%w: no extractable text in %s", ErrIndexingFailed, input.Filename)
	}

	kbName := DeriveKBName(input.Filename)
	kb, err := s.kbRepo.GetByName(kbName)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		kb = &model.KnowledgeBase{
			Name:             kbName,
			EmbeddingModel:   input.EmbeddingModel,
			ChunkingStrategy: strategy,
		}
		if err := s.kbRepo.Create(kb); err != nil {
			return nil, err
		}
	} else if kb.EmbeddingModel != input.EmbeddingModel {
		return nil, ErrEmbeddingMismatch
	}

	chunkSize := s.chunkSize
	if input.ChunkSize > 0 {
		chunkSize = input.ChunkSize
	}
	chunkOverlap := s.chunkOverlap
	if input.ChunkOverlap > 0 {
		chunkOverlap = input.ChunkOverlap
	}

	pages := make([]vectorindex.Page, 0, len(extracted.Pages))
	for _, p := range extracted.Pages {
		pages = append(pages, vectorindex.Page{PageNumber: p.PageNumber, Content: p.Content})
	}
	indexed, err := s.indexer.Index(ctx, vectorindex.IndexRequest{
		KBName:           kb.Name,
		EmbeddingModel:   kb.EmbeddingModel,
		ChunkingStrategy: kb.ChunkingStrategy,
		ChunkSize:        chunkSize,
		ChunkOverlap:     chunkOverlap,
		Filename:         extracted.Filename,
		Pages:            pages,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexingFailed, err)
	}

	doc := &model.Document{
		KnowledgeBaseID: kb.ID,
		Filename:        extracted.Filename,
		DocumentType:    extracted.DocumentType,
		PageCount:       len(extracted.Pages),
		ChunkCount:      indexed.ChunkCount,
	}
	if err := s.kbRepo.RecordDocument(doc); err != nil {
		return nil, err
	}
	kb.DocumentCount++

	return &IngestResult{KnowledgeBase: kb, Document: doc}, nil
}

// DeriveKBName maps an uploaded filename to its knowledge base name: the
// lowercased basename without extension, spaces folded to underscores, under
// a fixed kb_ prefix. Re-uploading the same file lands in the same knowledge
// base.
func DeriveKBName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(strings.TrimSpace(base))
	base = strings.ReplaceAll(base, " ", "_")
	return "kb_" + base
}
