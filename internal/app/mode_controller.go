package app

import (
	"sync"

	"ragchat/internal/model"
)

// ModeState is one user's chat interface state: which of the two mutually
// exclusive modes is active, which conversation is selected, and which
// knowledge bases the next rag query will target.
type ModeState struct {
	ActiveMode           string   `json:"active_mode"`
	ActiveConversationID uint     `json:"active_conversation_id,omitempty"`
	SelectedKBs          []string `json:"selected_kbs,omitempty"`
}

// ModeController makes the "which mode, which conversation" state explicit
// instead of scattering it across the UI. Two states, one transition.
type ModeController struct {
	mu     sync.RWMutex
	states map[uint]*ModeState
}

func NewModeController() *ModeController {
	return &ModeController{states: make(map[uint]*ModeState)}
}

// State returns a copy of the user's current state. Users start in direct
// mode with no conversation selected.
func (c *ModeController) State(userID uint) ModeState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.states[userID]
	if !ok {
		return ModeState{ActiveMode: model.ModeDirect}
	}
	return copyState(state)
}

// SwitchMode toggles between direct and rag. The selected conversation is
// always cleared: a rag conversation is selected or lazily created per query,
// and a direct conversation must never reattach to rag mode (or vice versa).
func (c *ModeController) SwitchMode(userID uint) ModeState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.ensure(userID)
	if state.ActiveMode == model.ModeDirect {
		state.ActiveMode = model.ModeRAG
	} else {
		state.ActiveMode = model.ModeDirect
	}
	state.ActiveConversationID = 0
	return c.snapshot(userID)
}

// SelectConversation makes the given conversation active. The caller is
// responsible for checking that the conversation's mode matches ActiveMode.
func (c *ModeController) SelectConversation(userID, conversationID uint) ModeState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.ensure(userID)
	state.ActiveConversationID = conversationID
	return c.snapshot(userID)
}

// SelectKnowledgeBases records which knowledge bases the next rag query
// targets.
func (c *ModeController) SelectKnowledgeBases(userID uint, names []string) ModeState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.ensure(userID)
	state.SelectedKBs = append([]string(nil), names...)
	return c.snapshot(userID)
}

// ClearConversation drops the selection if conversationID is currently
// active. Called when a conversation is deleted so no dangling reference
// survives.
func (c *ModeController) ClearConversation(userID, conversationID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.ensure(userID)
	if state.ActiveConversationID == conversationID {
		state.ActiveConversationID = 0
	}
}

// InterfaceEnabled reports whether the chat input should accept queries:
// direct mode needs a selected conversation, rag mode needs at least one
// compatible knowledge base to exist and at least one to be selected.
func (c *ModeController) InterfaceEnabled(userID uint, compatibleKBCount int) bool {
	state := c.State(userID)
	switch state.ActiveMode {
	case model.ModeDirect:
		return state.ActiveConversationID != 0
	case model.ModeRAG:
		return compatibleKBCount > 0 && len(state.SelectedKBs) > 0
	default:
		return false
	}
}

// ensure must be called with the write lock held.
func (c *ModeController) ensure(userID uint) *ModeState {
	state, ok := c.states[userID]
	if !ok {
		state = &ModeState{ActiveMode: model.ModeDirect}
		c.states[userID] = state
	}
	return state
}

// snapshot must be called with at least the read lock held.
func (c *ModeController) snapshot(userID uint) ModeState {
	state, ok := c.states[userID]
	if !ok {
		return ModeState{ActiveMode: model.ModeDirect}
	}
	return copyState(state)
}

func copyState(state *ModeState) ModeState {
	out := *state
	out.SelectedKBs = append([]string(nil), state.SelectedKBs...)
	return out
}
