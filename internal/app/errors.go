package app

import "errors"

// Validation errors: rejected before any conversation or message mutation.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidMode           = errors.New("invalid chat mode")
	ErrEmptyQuery            = errors.New("query is empty")
	ErrInvalidK              = errors.New("retrieval_k must be between 1 and 10")
	ErrIncompatiblePair      = errors.New("chat model and embedding model are not a compatible pair")
	ErrWrongConversationMode = errors.New("conversation mode does not match the requested operation")
	ErrSourcesWithoutRAG     = errors.New("sources are only allowed on rag conversations")
)

// Not-found errors: the referenced resource no longer exists, as opposed to
// a request the caller can correct.
var (
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
)

// Conflict errors.
var (
	ErrDuplicateKnowledgeBase = errors.New("knowledge base name already exists")
	ErrEmbeddingMismatch      = errors.New("knowledge base was built with a different embedding model")
)

// Collaborator failures: retryable as a whole, never partial.
var (
	ErrGenerationFailed = errors.New("generation collaborator failed")
	ErrRetrievalFailed  = errors.New("retrieval collaborator failed")
	ErrIndexingFailed   = errors.New("index collaborator failed")
)
