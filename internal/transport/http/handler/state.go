package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat/internal/app"
	"ragchat/internal/model"
	"ragchat/internal/transport/http/response"
)

// StateHandler exposes the per-user interface state: active mode, selected
// conversation, and selected knowledge bases.
type StateHandler struct {
	controller    *app.ModeController
	conversations *app.ConversationService
	registry      *app.RegistryService
}

type SelectRequest struct {
	ConversationID uint     `json:"conversation_id"`
	KBNames        []string `json:"kb_names"`
}

func NewStateHandler(controller *app.ModeController, conversations *app.ConversationService, registry *app.RegistryService) *StateHandler {
	return &StateHandler{
		controller:    controller,
		conversations: conversations,
		registry:      registry,
	}
}

func (h *StateHandler) Get(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	state := h.controller.State(userID)
	response.OK(c, h.stateBody(userID, state, c.Query("embedding_model")))
}

func (h *StateHandler) SwitchMode(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	state := h.controller.SwitchMode(userID)
	response.OK(c, h.stateBody(userID, state, c.Query("embedding_model")))
}

// Select updates the active conversation and/or the knowledge base selection.
// A conversation must belong to the user and match the active mode before the
// selection takes effect: a direct conversation never becomes active in rag
// mode, or vice versa.
func (h *StateHandler) Select(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if req.ConversationID == 0 && req.KBNames == nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "nothing to select")
		return
	}

	if req.ConversationID != 0 {
		conversation, err := h.conversations.Get(userID, req.ConversationID)
		if err != nil {
			if errors.Is(err, app.ErrConversationNotFound) {
				response.Error(c, http.StatusNotFound, response.CodeConversationNotFound, err.Error())
				return
			}
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "select conversation failed")
			return
		}
		if conversation.ConversationType != h.controller.State(userID).ActiveMode {
			response.Error(c, http.StatusBadRequest, response.CodeWrongMode, "conversation mode does not match the active mode")
			return
		}
		h.controller.SelectConversation(userID, conversation.ID)
	}

	if req.KBNames != nil {
		for _, name := range req.KBNames {
			if _, err := h.registry.Get(name); err != nil {
				if errors.Is(err, app.ErrKnowledgeBaseNotFound) {
					response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
					return
				}
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "select knowledge bases failed")
				return
			}
		}
		h.controller.SelectKnowledgeBases(userID, req.KBNames)
	}

	response.OK(c, h.stateBody(userID, h.controller.State(userID), c.Query("embedding_model")))
}

// stateBody augments the raw state with the interface-enabled flag, which in
// rag mode depends on how many knowledge bases exist for the embedding model
// in play.
func (h *StateHandler) stateBody(userID uint, state app.ModeState, embeddingModel string) gin.H {
	compatibleCount := 0
	if state.ActiveMode == model.ModeRAG && embeddingModel != "" {
		if kbs, err := h.registry.ListCompatible(embeddingModel); err == nil {
			compatibleCount = len(kbs)
		}
	}
	return gin.H{
		"state":             state,
		"interface_enabled": h.controller.InterfaceEnabled(userID, compatibleCount),
	}
}
