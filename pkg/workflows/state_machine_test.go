package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	sm := NewStateMachine(map[string][]string{
		"DRAFT":     {"SUBMITTED"},
		"SUBMITTED": {"APPROVED", "REJECTED"},
		"APPROVED":  {},
	})

	assert.True(t, sm.CanTransition("DRAFT", "SUBMITTED"))
	assert.True(t, sm.CanTransition("SUBMITTED", "REJECTED"))
	assert.False(t, sm.CanTransition("DRAFT", "APPROVED"))
	assert.False(t, sm.CanTransition("APPROVED", "DRAFT"))
	assert.False(t, sm.CanTransition("UNKNOWN", "DRAFT"))
}

func TestTransitionReturnsTypedError(t *testing.T) {
	sm := NewStateMachine(map[string][]string{
		"DRAFT": {"SUBMITTED"},
	})

	assert.NoError(t, sm.Transition("DRAFT", "SUBMITTED"))

	err := sm.Transition("DRAFT", "ARCHIVED")
	assert.Error(t, err)

	var terr *TransitionError[string]
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, "DRAFT", terr.From)
	assert.Equal(t, "ARCHIVED", terr.To)
}

func TestGetAllowedTransitions(t *testing.T) {
	sm := NewStateMachine(map[string][]string{
		"SUBMITTED": {"APPROVED", "REJECTED"},
	})

	assert.ElementsMatch(t, []string{"APPROVED", "REJECTED"}, sm.GetAllowedTransitions("SUBMITTED"))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
}
