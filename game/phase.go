package game

// Phase is the room's position in the round protocol. The engine is the only
// writer; the durable room row mirrors it as a string.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseExplaining
	PhaseDiscussion
	PhaseVoting
	PhaseDefense
	PhaseFinalVote
	PhaseResult
	PhaseFinished
)

var phaseNames = [...]string{
	PhaseWaiting:    "waiting",
	PhaseExplaining: "explaining",
	PhaseDiscussion: "discussion",
	PhaseVoting:     "voting",
	PhaseDefense:    "defense",
	PhaseFinalVote:  "finalVote",
	PhaseResult:     "result",
	PhaseFinished:   "finished",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

func ParsePhase(s string) (Phase, bool) {
	for p, name := range phaseNames {
		if name == s {
			return Phase(p), true
		}
	}
	return PhaseWaiting, false
}

// A failed verdict reopens discussion in the same round, hence the
// finalVote -> discussion edge.
var phaseTransitions = map[Phase][]Phase{
	PhaseWaiting:    {PhaseExplaining},
	PhaseExplaining: {PhaseDiscussion},
	PhaseDiscussion: {PhaseVoting},
	PhaseVoting:     {PhaseDefense, PhaseResult},
	PhaseDefense:    {PhaseFinalVote},
	PhaseFinalVote:  {PhaseResult, PhaseDiscussion},
	PhaseResult:     {PhaseExplaining, PhaseFinished},
	PhaseFinished:   {},
}

func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
