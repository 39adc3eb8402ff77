package game

import (
	"api/domain"
	"context"
	"time"
)

type SuspicionResult struct {
	Round       int
	Outcome     string
	SuspectId   string
	SuspectName string
	Votes       int
	LiarId      string
	LiarName    string
	GameOver    bool
	Winners     []domain.PlayerTotal
}

type VerdictResult struct {
	Round        int
	Outcome      string
	SuspectId    string
	SuspectName  string
	LiarId       string
	LiarName     string
	WasLiar      bool
	LiarVotes    int
	NotLiarVotes int
	GameOver     bool
	Winners      []domain.PlayerTotal
	Totals       []domain.PlayerTotal
}

// doSuspicionTally closes the first vote. The plurality target becomes
// the suspect and must defend; no votes at all hands the round to the
// liar on the spot.
func (e *RoomEngine) doSuspicionTally(ctx context.Context, asPlayer string) (SuspicionResult, error) {
	if asPlayer != e.room.HostId {
		return SuspicionResult{}, domain.ErrNotHost
	}
	if e.phase() != PhaseVoting {
		return SuspicionResult{}, domain.ErrWrongPhase
	}

	round := e.room.CurrentRound
	tally, err := e.votes.SuspicionTally(ctx, e.room.Id, round)
	if err != nil {
		return SuspicionResult{}, err
	}

	if len(tally) == 0 {
		liarId := *e.room.LiarId
		res := SuspicionResult{
			Round:    round,
			Outcome:  domain.ReasonNoFirstVoteLiarWin,
			LiarId:   liarId,
			LiarName: e.members[liarId],
		}
		err := e.scores.AppendScore(ctx, domain.ScoreEntry{
			RoomId: e.room.Id,
			Round:  round,
			UserId: liarId,
			Delta:  domain.LiarWinAward,
			Reason: domain.ReasonNoFirstVoteLiarWin,
		})
		if err != nil {
			return SuspicionResult{}, err
		}
		res.GameOver, res.Winners, _, err = e.enterResult(ctx, RoundResultInfo{
			Outcome:  domain.ReasonNoFirstVoteLiarWin,
			LiarId:   liarId,
			LiarName: res.LiarName,
		})
		return res, err
	}

	top := tally[0]
	if err := e.store.SetSuspect(ctx, e.room.Id, &top.TargetId, PhaseDefense.String()); err != nil {
		return SuspicionResult{}, err
	}
	e.room.SuspectId = &top.TargetId
	e.room.Phase = PhaseDefense.String()
	e.liveVerdicts = map[string]string{}

	info := SuspectInfo{SuspectId: top.TargetId, SuspectName: top.TargetName, Votes: top.Votes}
	e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{Phase: PhaseTagDefenseStart, Info: info})
	e.armDeadline(PhaseDefense)

	return SuspicionResult{
		Round:       round,
		Outcome:     "suspectChosen",
		SuspectId:   top.TargetId,
		SuspectName: top.TargetName,
		Votes:       top.Votes,
	}, nil
}

// doVerdictTally closes the final vote. Strict liar-majority convicts;
// a tie counts for the suspect and reopens discussion.
func (e *RoomEngine) doVerdictTally(ctx context.Context, asPlayer string) (VerdictResult, error) {
	if asPlayer != e.room.HostId {
		return VerdictResult{}, domain.ErrNotHost
	}
	if e.phase() != PhaseFinalVote {
		return VerdictResult{}, domain.ErrWrongPhase
	}
	if e.room.SuspectId == nil || e.room.LiarId == nil {
		return VerdictResult{}, domain.ErrNoSuspect
	}

	round := e.room.CurrentRound
	counts, err := e.votes.VerdictTally(ctx, e.room.Id, round)
	if err != nil {
		return VerdictResult{}, err
	}

	suspectId := *e.room.SuspectId
	liarId := *e.room.LiarId
	res := VerdictResult{
		Round:        round,
		SuspectId:    suspectId,
		SuspectName:  e.members[suspectId],
		LiarId:       liarId,
		LiarName:     e.members[liarId],
		WasLiar:      suspectId == liarId,
		LiarVotes:    counts.Liar,
		NotLiarVotes: counts.NotLiar,
	}

	switch {
	case counts.Total() == 0:
		res.Outcome = domain.ReasonNoFinalVoteLiarWin
		err = e.scores.AppendScore(ctx, domain.ScoreEntry{
			RoomId: e.room.Id,
			Round:  round,
			UserId: liarId,
			Delta:  domain.LiarWinAward,
			Reason: domain.ReasonNoFinalVoteLiarWin,
		})

	case counts.Liar > counts.NotLiar && res.WasLiar:
		res.Outcome = domain.ReasonLiarCaught
		err = e.awardNonLiars(ctx, round, liarId)

	case counts.Liar > counts.NotLiar:
		res.Outcome = domain.ReasonLiarEscaped
		err = e.scores.AppendScore(ctx, domain.ScoreEntry{
			RoomId: e.room.Id,
			Round:  round,
			UserId: liarId,
			Delta:  domain.LiarWinAward,
			Reason: domain.ReasonLiarEscaped,
		})

	default:
		// notLiar wins ties: the suspect walks and discussion reopens
		res.Outcome = "redoDiscussion"
		if err := e.store.SetSuspect(ctx, e.room.Id, nil, PhaseDiscussion.String()); err != nil {
			return VerdictResult{}, err
		}
		e.room.SuspectId = nil
		e.room.Phase = PhaseDiscussion.String()
		e.liveVerdicts = map[string]string{}
		e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{
			Phase: PhaseTagDiscussionStart,
			Info:  RoundResultInfo{Outcome: "redoDiscussion"},
		})
		e.armDeadline(PhaseDiscussion)
		return res, nil
	}
	if err != nil {
		return VerdictResult{}, err
	}

	res.GameOver, res.Winners, res.Totals, err = e.enterResult(ctx, RoundResultInfo{
		Outcome:  res.Outcome,
		LiarId:   liarId,
		LiarName: res.LiarName,
	})
	return res, err
}

func (e *RoomEngine) awardNonLiars(ctx context.Context, round int, liarId string) error {
	members, err := e.store.RoomMembers(ctx, e.room.Id)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.Id == liarId {
			continue
		}
		err := e.scores.AppendScore(ctx, domain.ScoreEntry{
			RoomId: e.room.Id,
			Round:  round,
			UserId: m.Id,
			Delta:  domain.LiarCaughtAward,
			Reason: domain.ReasonLiarCaught,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// enterResult ends the round. On the last round it flows straight into
// game finish regardless of which outcome got us here.
func (e *RoomEngine) enterResult(ctx context.Context, info RoundResultInfo) (bool, []domain.PlayerTotal, []domain.PlayerTotal, error) {
	if e.room.CurrentRound >= e.room.MaxRounds {
		winners, totals, err := e.finishGame(ctx, info)
		return true, winners, totals, err
	}

	if err := e.store.SetSuspect(ctx, e.room.Id, nil, PhaseResult.String()); err != nil {
		return false, nil, nil, err
	}
	e.room.SuspectId = nil
	e.room.Phase = PhaseResult.String()
	e.nextDeadline = time.Time{}
	e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{Phase: PhaseTagRoundResult, Info: info})
	return false, nil, nil, nil
}

// finishGame settles the ledger into cumulative scores, announces the
// winners and tears the room down. Ties share the victory.
func (e *RoomEngine) finishGame(ctx context.Context, info RoundResultInfo) ([]domain.PlayerTotal, []domain.PlayerTotal, error) {
	totals, err := e.scores.RoomTotals(ctx, e.room.Id)
	if err != nil {
		return nil, nil, err
	}

	var winners []domain.PlayerTotal
	for _, t := range totals {
		if t.Total == totals[0].Total {
			winners = append(winners, t)
		}
	}

	for _, w := range winners {
		if err := e.scores.AddToCumulative(ctx, w.UserId, w.Total); err != nil {
			e.logger.Error("cumulative score update failed", "user_id", w.UserId, "error", err)
			continue
		}
		if err := e.scores.AppendRankingLog(ctx, w.UserId, w.Total); err != nil {
			e.logger.Error("ranking log append failed", "user_id", w.UserId, "error", err)
		}
	}

	e.room.Phase = PhaseFinished.String()
	e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{Phase: PhaseTagRoundResult, Info: info})
	e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{
		Phase: PhaseTagGameFinished,
		Info:  GameFinishedInfo{Winners: scoreLines(winners), Totals: scoreLines(totals)},
	})
	e.teardown(ctx)

	return winners, totals, nil
}

// teardown purges the room's volatile ledgers, drops the durable row
// and releases every socket. The engine goroutine exits right after.
func (e *RoomEngine) teardown(ctx context.Context) {
	if err := e.votes.PurgeVotes(ctx, e.room.Id); err != nil {
		e.logger.Error("vote purge failed", "error", err)
	}
	if err := e.scores.PurgeScores(ctx, e.room.Id); err != nil {
		e.logger.Error("score purge failed", "error", err)
	}
	if err := e.store.DeleteRoom(ctx, e.room.Id); err != nil {
		e.logger.Error("room delete failed", "error", err)
	}

	e.broadcast(EventRoomClosed, nil)
	for _, p := range e.players {
		p.CancelAndRelease()
	}
	e.players = map[string]Player{}
	e.arena.RemoveRoom(e.room.Id)
	close(e.closed)
}

func scoreLines(totals []domain.PlayerTotal) []ScoreLine {
	lines := make([]ScoreLine, 0, len(totals))
	for _, t := range totals {
		lines = append(lines, ScoreLine{UserId: t.UserId, Username: t.Username, Total: t.Total})
	}
	return lines
}
