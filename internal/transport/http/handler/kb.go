package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ragchat/internal/app"
	"ragchat/internal/compat"
	"ragchat/internal/pkg/docextract"
	"ragchat/internal/transport/http/response"
)

type KnowledgeBaseHandler struct {
	registry     *app.RegistryService
	maxFileBytes int64
}

type RegisterKBRequest struct {
	Name             string `json:"name" binding:"required,max=256"`
	Description      string `json:"description" binding:"max=512"`
	EmbeddingModel   string `json:"embedding_model" binding:"required"`
	ChunkingStrategy string `json:"chunking_strategy" binding:"max=64"`
}

func NewKnowledgeBaseHandler(registry *app.RegistryService, maxFileBytes int64) *KnowledgeBaseHandler {
	if maxFileBytes <= 0 {
		maxFileBytes = 10 << 20
	}
	return &KnowledgeBaseHandler{registry: registry, maxFileBytes: maxFileBytes}
}

func (h *KnowledgeBaseHandler) List(c *gin.Context) {
	kbs, err := h.registry.ListAll()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list knowledge bases failed")
		return
	}
	response.OK(c, kbs)
}

// ListCompatible filters the catalog down to knowledge bases whose embedding
// model exactly matches the query parameter.
func (h *KnowledgeBaseHandler) ListCompatible(c *gin.Context) {
	embeddingModel := c.Query("embedding_model")
	if embeddingModel == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing embedding_model")
		return
	}

	kbs, err := h.registry.ListCompatible(embeddingModel)
	if err != nil {
		if errors.Is(err, app.ErrIncompatiblePair) {
			response.Error(c, http.StatusBadRequest, response.CodeIncompatiblePair, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list knowledge bases failed")
		return
	}
	response.OK(c, kbs)
}

func (h *KnowledgeBaseHandler) Register(c *gin.Context) {
	var req RegisterKBRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	kb, err := h.registry.Register(app.RegisterKBInput{
		Name:             req.Name,
		Description:      req.Description,
		EmbeddingModel:   req.EmbeddingModel,
		ChunkingStrategy: req.ChunkingStrategy,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrIncompatiblePair):
			response.Error(c, http.StatusBadRequest, response.CodeIncompatiblePair, err.Error())
		case errors.Is(err, app.ErrDuplicateKnowledgeBase):
			response.Error(c, http.StatusConflict, response.CodeDuplicateKnowledgeBase, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register knowledge base failed")
		}
		return
	}

	response.OK(c, kb)
}

func (h *KnowledgeBaseHandler) Get(c *gin.Context) {
	kb, err := h.registry.Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, app.ErrKnowledgeBaseNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get knowledge base failed")
		return
	}
	response.OK(c, kb)
}

func (h *KnowledgeBaseHandler) Documents(c *gin.Context) {
	docs, err := h.registry.ListDocuments(c.Param("name"))
	if err != nil {
		if errors.Is(err, app.ErrKnowledgeBaseNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

// Upload accepts a multipart form with "file" (PDF or DOCX),
// "embedding_model", and optional "chunk_size"/"chunk_overlap", extracts the
// document page by page, and ingests it into the knowledge base derived from
// the filename.
func (h *KnowledgeBaseHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > h.maxFileBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large")
		return
	}

	embeddingModel := c.PostForm("embedding_model")
	if embeddingModel == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing embedding_model")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	result, err := h.registry.Ingest(c.Request.Context(), app.IngestInput{
		File:           f,
		Filename:       file.Filename,
		EmbeddingModel: embeddingModel,
		ChunkSize:      parseIntForm(c, "chunk_size"),
		ChunkOverlap:   parseIntForm(c, "chunk_overlap"),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, docextract.ErrUnsupportedFormat):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrIncompatiblePair):
			response.Error(c, http.StatusBadRequest, response.CodeIncompatiblePair, err.Error())
		case errors.Is(err, app.ErrEmbeddingMismatch):
			response.Error(c, http.StatusConflict, response.CodeEmbeddingMismatch, err.Error())
		case errors.Is(err, app.ErrIndexingFailed):
			response.Error(c, http.StatusBadGateway, response.CodeCollaboratorFailed, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed")
		}
		return
	}

	response.OK(c, result)
}

func parseIntForm(c *gin.Context, key string) int {
	s := c.PostForm(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Models exposes the closed compatibility table so clients can offer valid
// model choices without hardcoding them.
func (h *KnowledgeBaseHandler) Models(c *gin.Context) {
	embeddingModels := compat.EmbeddingModels()
	models := make([]gin.H, 0, len(embeddingModels))
	for _, em := range embeddingModels {
		chatModel, err := compat.ChatModelFor(em)
		if err != nil {
			continue
		}
		provider, _ := compat.ProviderFor(em)
		strategy, _ := compat.ChunkingStrategyFor(em)
		models = append(models, gin.H{
			"chat_model":        chatModel,
			"embedding_model":   em,
			"provider":          provider,
			"chunking_strategy": strategy,
		})
	}
	response.OK(c, models)
}
