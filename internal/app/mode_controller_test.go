package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragchat/internal/model"
)

func TestModeControllerDefaults(t *testing.T) {
	c := NewModeController()

	state := c.State(1)
	assert.Equal(t, model.ModeDirect, state.ActiveMode)
	assert.Zero(t, state.ActiveConversationID)
	assert.Empty(t, state.SelectedKBs)
}

func TestModeControllerSwitchClearsConversation(t *testing.T) {
	c := NewModeController()

	c.SelectConversation(1, 42)
	state := c.SwitchMode(1)
	assert.Equal(t, model.ModeRAG, state.ActiveMode)
	assert.Zero(t, state.ActiveConversationID, "switching modes must drop the active conversation")

	c.SelectConversation(1, 7)
	state = c.SwitchMode(1)
	assert.Equal(t, model.ModeDirect, state.ActiveMode)
	assert.Zero(t, state.ActiveConversationID)
}

func TestModeControllerKBSelectionSurvivesSwitch(t *testing.T) {
	c := NewModeController()

	c.SwitchMode(1) // rag
	state := c.SelectKnowledgeBases(1, []string{"kb_a", "kb_b"})
	assert.Equal(t, []string{"kb_a", "kb_b"}, state.SelectedKBs)

	state = c.SwitchMode(1) // back to direct
	assert.Equal(t, []string{"kb_a", "kb_b"}, state.SelectedKBs, "kb selection is mode-independent")
}

func TestModeControllerClearConversation(t *testing.T) {
	c := NewModeController()

	c.SelectConversation(1, 42)
	c.ClearConversation(1, 99)
	assert.Equal(t, uint(42), c.State(1).ActiveConversationID, "clearing a different conversation is a no-op")

	c.ClearConversation(1, 42)
	assert.Zero(t, c.State(1).ActiveConversationID)
}

func TestModeControllerStatesAreIndependent(t *testing.T) {
	c := NewModeController()

	c.SwitchMode(1)
	assert.Equal(t, model.ModeRAG, c.State(1).ActiveMode)
	assert.Equal(t, model.ModeDirect, c.State(2).ActiveMode)
}

func TestInterfaceEnabled(t *testing.T) {
	c := NewModeController()

	t.Run("direct needs a conversation", func(t *testing.T) {
		assert.False(t, c.InterfaceEnabled(1, 0))
		c.SelectConversation(1, 5)
		assert.True(t, c.InterfaceEnabled(1, 0))
	})

	t.Run("rag needs compatible and selected kbs", func(t *testing.T) {
		c.SwitchMode(1)
		assert.False(t, c.InterfaceEnabled(1, 0))
		assert.False(t, c.InterfaceEnabled(1, 3), "no kb selected yet")

		c.SelectKnowledgeBases(1, []string{"kb_a"})
		assert.False(t, c.InterfaceEnabled(1, 0), "selection without compatible kbs stays disabled")
		assert.True(t, c.InterfaceEnabled(1, 3))
	})
}

func TestModeStateCopySemantics(t *testing.T) {
	c := NewModeController()

	c.SwitchMode(1)
	c.SelectKnowledgeBases(1, []string{"kb_a"})

	state := c.State(1)
	state.SelectedKBs[0] = "mutated"
	assert.Equal(t, []string{"kb_a"}, c.State(1).SelectedKBs, "returned state must be a copy")
}
