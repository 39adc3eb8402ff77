package game

import (
	"api/domain"
	"context"
	"math/rand/v2"
)

type StartRoundResult struct {
	Round     int
	MaxRounds int
	Topic     string
}

type RevealResult struct {
	IsLiar    bool
	Topic     string
	Word      string
	Round     int
	MaxRounds int
	Phase     string
}

func (e *RoomEngine) doStartRound(ctx context.Context, asPlayer string) (StartRoundResult, error) {
	if asPlayer != e.room.HostId {
		return StartRoundResult{}, domain.ErrNotHost
	}
	if !e.phase().CanTransitionTo(PhaseExplaining) {
		return StartRoundResult{}, domain.ErrWrongPhase
	}
	if e.room.CurrentRound >= e.room.MaxRounds {
		return StartRoundResult{}, domain.ErrAllRoundsPlayed
	}

	members, err := e.store.RoomMembers(ctx, e.room.Id)
	if err != nil {
		return StartRoundResult{}, err
	}
	if len(members) == 0 {
		return StartRoundResult{}, domain.ErrNoPlayers
	}

	liar := members[rand.IntN(len(members))]

	topic, err := e.words.RandomTopic(ctx)
	if err != nil {
		return StartRoundResult{}, err
	}
	trueWord, decoy, err := e.words.RandomWordPair(ctx, topic)
	if err != nil {
		return StartRoundResult{}, err
	}

	round := e.room.CurrentRound + 1
	updated := e.room
	updated.CurrentRound = round
	updated.Phase = PhaseExplaining.String()
	updated.Topic = &topic
	updated.WordId = &trueWord.Id
	updated.LiarId = &liar.Id
	updated.SuspectId = nil

	assignment := domain.RoundAssignment{
		RoomId:      e.room.Id,
		Round:       round,
		LiarId:      liar.Id,
		Topic:       topic,
		TrueWordId:  trueWord.Id,
		DecoyWordId: decoy.Id,
	}

	if err := e.store.StartRound(ctx, updated, assignment); err != nil {
		return StartRoundResult{}, err
	}

	e.room = updated
	e.refreshMembers(members)
	e.liveVerdicts = map[string]string{}

	order := make([]string, 0, len(members))
	for _, m := range members {
		order = append(order, m.Id)
	}
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	e.speakingOrder = order
	e.speakerIndex = 0

	e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{
		Phase: PhaseTagExplaining,
		Info: RoundStartInfo{
			Round:     round,
			MaxRounds: e.room.MaxRounds,
			Topic:     topic,
			Order:     order,
		},
	})
	e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{
		Phase: PhaseTagExplainTurn,
		Info:  ExplainTurnInfo{SpeakerId: order[0]},
	})
	e.armDeadline(PhaseExplaining)

	return StartRoundResult{Round: round, MaxRounds: e.room.MaxRounds, Topic: topic}, nil
}

func (e *RoomEngine) doRevealWord(ctx context.Context, asPlayer string) (RevealResult, error) {
	if _, ok := e.members[asPlayer]; !ok {
		return RevealResult{}, domain.ErrNotInRoom
	}
	if e.room.CurrentRound == 0 {
		return RevealResult{}, domain.ErrRoundNotStarted
	}

	a, err := e.store.GetAssignment(ctx, e.room.Id, e.room.CurrentRound)
	if err != nil {
		return RevealResult{}, err
	}

	isLiar := asPlayer == a.LiarId
	wordId := a.TrueWordId
	if isLiar {
		wordId = a.DecoyWordId
	}
	text, err := e.words.WordText(ctx, wordId)
	if err != nil {
		return RevealResult{}, err
	}

	return RevealResult{
		IsLiar:    isLiar,
		Topic:     a.Topic,
		Word:      text,
		Round:     e.room.CurrentRound,
		MaxRounds: e.room.MaxRounds,
		Phase:     e.room.Phase,
	}, nil
}

func (e *RoomEngine) doCastSuspicion(ctx context.Context, voterId, targetId string) (int, error) {
	if e.phase() != PhaseVoting {
		return 0, domain.ErrWrongPhase
	}
	if _, ok := e.members[voterId]; !ok {
		return 0, domain.ErrNotInRoom
	}
	if _, ok := e.members[targetId]; !ok {
		return 0, domain.ErrInvalidTarget
	}

	round := e.room.CurrentRound
	if err := e.votes.PutSuspicionVote(ctx, e.room.Id, round, voterId, targetId); err != nil {
		return 0, err
	}
	return round, nil
}

func (e *RoomEngine) doCastVerdict(ctx context.Context, voterId, choice string) (int, error) {
	p := e.phase()
	if p != PhaseDefense && p != PhaseFinalVote {
		return 0, domain.ErrWrongPhase
	}
	if e.room.SuspectId == nil {
		return 0, domain.ErrNoSuspect
	}
	if _, ok := e.members[voterId]; !ok {
		return 0, domain.ErrNotInRoom
	}
	if choice != domain.ChoiceLiar && choice != domain.ChoiceNotLiar {
		return 0, domain.ErrInvalidChoice
	}

	round := e.room.CurrentRound
	if err := e.votes.PutVerdictVote(ctx, e.room.Id, round, voterId, *e.room.SuspectId, choice); err != nil {
		return 0, err
	}
	return round, nil
}

// advanceSpeaker moves the explain cursor one player forward; past the
// last speaker the room drops into discussion.
func (e *RoomEngine) advanceSpeaker(ctx context.Context) error {
	if e.phase() != PhaseExplaining {
		return domain.ErrWrongPhase
	}

	e.speakerIndex++
	if e.speakerIndex < len(e.speakingOrder) {
		e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{
			Phase: PhaseTagExplainTurn,
			Info:  ExplainTurnInfo{SpeakerId: e.speakingOrder[e.speakerIndex]},
		})
		e.armDeadline(PhaseExplaining)
		return nil
	}

	e.speakerIndex = len(e.speakingOrder)
	return e.setPhase(ctx, PhaseDiscussion, PhaseTagDiscussionStart, nil)
}

func (e *RoomEngine) openVoting(ctx context.Context) error {
	if !e.phase().CanTransitionTo(PhaseVoting) {
		return domain.ErrWrongPhase
	}
	return e.setPhase(ctx, PhaseVoting, PhaseTagVotingStart, nil)
}

func (e *RoomEngine) openFinalVote(ctx context.Context) error {
	if !e.phase().CanTransitionTo(PhaseFinalVote) {
		return domain.ErrWrongPhase
	}
	if e.room.SuspectId == nil {
		return domain.ErrNoSuspect
	}
	suspectId := *e.room.SuspectId
	return e.setPhase(ctx, PhaseFinalVote, PhaseTagFinalVoteStart, SuspectInfo{
		SuspectId:   suspectId,
		SuspectName: e.members[suspectId],
	})
}

// setPhase persists first, then mutates the snapshot, so a failed write
// leaves the engine consistent with the durable row.
func (e *RoomEngine) setPhase(ctx context.Context, next Phase, tag string, info any) error {
	if err := e.store.SetPhase(ctx, e.room.Id, next.String()); err != nil {
		return err
	}
	e.room.Phase = next.String()
	e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{Phase: tag, Info: info})
	e.armDeadline(next)
	return nil
}

func (e *RoomEngine) refreshMembers(members []domain.User) {
	e.members = make(map[string]string, len(members))
	for _, m := range members {
		e.members[m.Id] = m.Username
	}
}
