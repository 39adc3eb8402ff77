package game

import "encoding/json"

// Event is the wire envelope for the realtime channel, both directions.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client -> server event names.
const (
	EventJoinRoom          = "joinRoom"
	EventLeaveRoom         = "leaveRoom"
	EventChatMessage       = "chatMessage"
	EventPhaseUpdate       = "phaseUpdate"
	EventSetSpeakingOrder  = "setSpeakingOrder"
	EventNextSpeaker       = "nextSpeaker"
	EventSetSuspect        = "setSuspect"
	EventFinalChoiceVote   = "finalChoiceVote"
	EventFinalChoiceResult = "finalChoiceResult"
)

// Server -> client event names (phaseUpdate and chatMessage go both ways).
const (
	EventPlayerUpdate  = "playerUpdate"
	EventSystemMessage = "systemMessage"
	EventRoomClosed    = "roomClosed"
)

// Phase tags carried in phaseUpdate broadcasts. These follow the round
// timeline, not the engine enum one-to-one: explainTurn repeats once per
// speaker, discussionStart reappears after a failed verdict.
const (
	PhaseTagExplaining      = "explaining"
	PhaseTagExplainTurn     = "explainTurn"
	PhaseTagDiscussionStart = "discussionStart"
	PhaseTagVotingStart     = "votingStart"
	PhaseTagDefenseStart    = "defenseStart"
	PhaseTagFinalVoteStart  = "finalVoteStart"
	PhaseTagRoundResult     = "roundResult"
	PhaseTagGameFinished    = "gameFinished"
)

type ChatPayload struct {
	UserId   string `json:"userID"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type SystemMessagePayload struct {
	Text string `json:"text"`
}

type RosterEntry struct {
	UserId   string `json:"userID"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

type PhaseUpdatePayload struct {
	Phase string `json:"phase"`
	Info  any    `json:"info,omitempty"`
}

type RoundStartInfo struct {
	Round     int      `json:"currentRound"`
	MaxRounds int      `json:"maxRounds"`
	Topic     string   `json:"topic"`
	Order     []string `json:"order"`
}

type ExplainTurnInfo struct {
	SpeakerId string `json:"speakerID"`
}

type SuspectInfo struct {
	SuspectId   string `json:"suspectID"`
	SuspectName string `json:"suspectName"`
	Votes       int    `json:"votes,omitempty"`
}

type RoundResultInfo struct {
	Outcome  string `json:"outcome"`
	LiarId   string `json:"liarID"`
	LiarName string `json:"liarName"`
}

type ScoreLine struct {
	UserId   string `json:"userID"`
	Username string `json:"username"`
	Total    int    `json:"total"`
}

type GameFinishedInfo struct {
	Winners []ScoreLine `json:"winners"`
	Totals  []ScoreLine `json:"totals"`
}

type SpeakingOrderPayload struct {
	Order []string `json:"order"`
}

type TargetPhasePayload struct {
	Phase string `json:"phase"`
}

type SetSuspectPayload struct {
	SuspectId string `json:"suspectID"`
}

type LiveVerdictPayload struct {
	Choice string `json:"choice"`
}

type LiveVerdictResultPayload struct {
	LiarCount    int    `json:"liarCount"`
	NotLiarCount int    `json:"notLiarCount"`
	SuspectId    string `json:"suspectID,omitempty"`
}

func marshalEvent(name string, payload any) ([]byte, error) {
	ev := Event{Name: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Data = data
	}
	return json.Marshal(ev)
}
