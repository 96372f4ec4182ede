package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_LegalGraph(t *testing.T) {
	assert.True(t, CanTransition(Queued, Started))
	assert.True(t, CanTransition(Queued, Terminated))
	assert.True(t, CanTransition(Started, Running))
	assert.True(t, CanTransition(Started, Completed))
	assert.True(t, CanTransition(Running, Completed))
	assert.True(t, CanTransition(Running, Failed))
	assert.True(t, CanTransition(Running, Killed))
}

func TestCanTransition_RejectsIllegal(t *testing.T) {
	assert.False(t, CanTransition(Queued, Running), "cannot skip STARTED")
	assert.False(t, CanTransition(Queued, Completed))
	assert.False(t, CanTransition(Completed, Running), "terminal states never leave")
	assert.False(t, CanTransition(Killed, Queued))
}

func TestState_IsTerminal(t *testing.T) {
	for _, s := range []State{Completed, Failed, Terminated, Killed, Error} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []State{Queued, Started, Running} {
		assert.False(t, s.IsTerminal(), s)
	}
}
