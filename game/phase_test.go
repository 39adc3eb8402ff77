package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseNamesRoundtrip(t *testing.T) {
	for p := PhaseWaiting; p <= PhaseFinished; p++ {
		parsed, ok := ParsePhase(p.String())
		assert.True(t, ok, p.String())
		assert.Equal(t, p, parsed)
	}

	_, ok := ParsePhase("banana")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Phase(42).String())
}

func TestPhaseTransitions(t *testing.T) {
	allowed := []struct{ from, to Phase }{
		{PhaseWaiting, PhaseExplaining},
		{PhaseExplaining, PhaseDiscussion},
		{PhaseDiscussion, PhaseVoting},
		{PhaseVoting, PhaseDefense},
		{PhaseVoting, PhaseResult},
		{PhaseDefense, PhaseFinalVote},
		{PhaseFinalVote, PhaseResult},
		{PhaseFinalVote, PhaseDiscussion},
		{PhaseResult, PhaseExplaining},
		{PhaseResult, PhaseFinished},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	forbidden := []struct{ from, to Phase }{
		{PhaseWaiting, PhaseVoting},
		{PhaseWaiting, PhaseFinished},
		{PhaseExplaining, PhaseVoting},
		{PhaseDiscussion, PhaseDefense},
		{PhaseVoting, PhaseFinalVote},
		{PhaseDefense, PhaseDiscussion},
		{PhaseFinished, PhaseExplaining},
		{PhaseResult, PhaseVoting},
	}
	for _, tc := range forbidden {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}
