package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat/internal/app"
	"ragchat/internal/transport/http/response"
)

type QueryHandler struct {
	directService *app.DirectService
	ragService    *app.RAGService
}

type DirectQueryRequest struct {
	ConversationID uint   `json:"conversation_id" binding:"required"`
	ChatModel      string `json:"chat_model" binding:"required"`
	Query          string `json:"query" binding:"required"`
}

type RAGQueryRequest struct {
	ConversationID uint     `json:"conversation_id"`
	ChatModel      string   `json:"chat_model" binding:"required"`
	EmbeddingModel string   `json:"embedding_model" binding:"required"`
	KBNames        []string `json:"kb_names" binding:"required,min=1"`
	Query          string   `json:"query" binding:"required"`
	RetrievalK     int      `json:"retrieval_k"`
}

func NewQueryHandler(directService *app.DirectService, ragService *app.RAGService) *QueryHandler {
	return &QueryHandler{directService: directService, ragService: ragService}
}

func (h *QueryHandler) Direct(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req DirectQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.directService.Query(c.Request.Context(), app.DirectQueryInput{
		UserID:         userID,
		UserName:       getUsernameFromContext(c),
		ConversationID: req.ConversationID,
		ChatModel:      req.ChatModel,
		Query:          req.Query,
	})
	if err != nil {
		h.writeQueryError(c, err, "direct query failed")
		return
	}

	response.OK(c, gin.H{
		"conversation_id": result.Conversation.ID,
		"user_message":    result.UserMessage,
		"assistant":       result.Assistant,
	})
}

func (h *QueryHandler) RAG(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req RAGQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if req.RetrievalK == 0 {
		req.RetrievalK = 4
	}

	result, err := h.ragService.Query(c.Request.Context(), app.RAGQueryInput{
		UserID:         userID,
		UserName:       getUsernameFromContext(c),
		ConversationID: req.ConversationID,
		ChatModel:      req.ChatModel,
		EmbeddingModel: req.EmbeddingModel,
		KBNames:        req.KBNames,
		Query:          req.Query,
		K:              req.RetrievalK,
	})
	if err != nil {
		h.writeQueryError(c, err, "rag query failed")
		return
	}

	response.OK(c, gin.H{
		"conversation_id": result.Conversation.ID,
		"user_message":    result.UserMessage,
		"assistant":       result.Assistant,
		"sources":         result.Sources,
	})
}

func (h *QueryHandler) writeQueryError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrEmptyQuery):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyQuery, err.Error())
	case errors.Is(err, app.ErrInvalidK):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidK, err.Error())
	case errors.Is(err, app.ErrIncompatiblePair):
		response.Error(c, http.StatusBadRequest, response.CodeIncompatiblePair, err.Error())
	case errors.Is(err, app.ErrWrongConversationMode):
		response.Error(c, http.StatusBadRequest, response.CodeWrongMode, err.Error())
	case errors.Is(err, app.ErrConversationNotFound):
		response.Error(c, http.StatusNotFound, response.CodeConversationNotFound, err.Error())
	case errors.Is(err, app.ErrKnowledgeBaseNotFound):
		response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
	case errors.Is(err, app.ErrEmbeddingMismatch):
		response.Error(c, http.StatusConflict, response.CodeEmbeddingMismatch, err.Error())
	case errors.Is(err, app.ErrGenerationFailed), errors.Is(err, app.ErrRetrievalFailed):
		response.Error(c, http.StatusBadGateway, response.CodeCollaboratorFailed, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
