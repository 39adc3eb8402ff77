package game

import (
	"api/domain"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testRig struct {
	t       *testing.T
	store   *fakeStore
	votes   *fakeVotes
	scores  *fakeScores
	words   *fakeWords
	arena   *fakeArena
	engine  *RoomEngine
	roomId  int64
	hostId  string
	players map[string]*fakePlayer
}

// newTestRig spins up a room engine over in-memory fakes. The first
// player id is the host; everyone is joined and attached.
func newTestRig(t *testing.T, maxRounds int, configs RoomConfigs, playerIds ...string) *testRig {
	t.Helper()
	ctx := context.Background()

	store := newFakeStore()
	for _, id := range playerIds {
		store.addUser(id, "name_"+id)
	}

	hostId := playerIds[0]
	room, err := store.CreateRoom(ctx, hostId, "test room")
	require.NoError(t, err)

	room.MaxRounds = maxRounds
	store.mu.Lock()
	store.rooms[room.Id].MaxRounds = maxRounds
	store.mu.Unlock()

	votes := newFakeVotes(store)
	scores := newFakeScores(store)
	words := newFakeWords()
	arena := &fakeArena{}

	engine := NewRoomEngine(room, configs, store, votes, scores, words, store, arena, discardLogger())
	go engine.Run()

	rig := &testRig{
		t:       t,
		store:   store,
		votes:   votes,
		scores:  scores,
		words:   words,
		arena:   arena,
		engine:  engine,
		roomId:  room.Id,
		hostId:  hostId,
		players: map[string]*fakePlayer{},
	}

	for _, id := range playerIds[1:] {
		require.NoError(t, engine.Join(ctx, id))
	}
	for _, id := range playerIds {
		p := newFakePlayer(id, "name_"+id)
		require.NoError(t, engine.RequestAttach(ctx, p))
		rig.players[id] = p
	}
	return rig
}

func (r *testRig) phase() string {
	room, err := r.store.GetRoom(context.Background(), r.roomId)
	if err != nil {
		return "gone"
	}
	return room.Phase
}

func (r *testRig) hostEvent(name string, payload any) {
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	r.engine.submitClientEvent(clientEventEnvelope{
		event: Event{Name: name, Data: data},
		from:  r.players[r.hostId],
	})
}

func (r *testRig) startRound() StartRoundResult {
	r.t.Helper()
	res, err := r.engine.StartRound(context.Background(), r.hostId)
	require.NoError(r.t, err)
	return res
}

func (r *testRig) assignment(round int) domain.RoundAssignment {
	r.t.Helper()
	a, err := r.store.GetAssignment(context.Background(), r.roomId, round)
	require.NoError(r.t, err)
	return a
}

func (r *testRig) nonLiar(a domain.RoundAssignment) string {
	r.t.Helper()
	for id := range r.players {
		if id != a.LiarId {
			return id
		}
	}
	r.t.Fatal("no non-liar in room")
	return ""
}

// advanceToVoting drives the room through the explain turns and the
// discussion phase using host events, as a client UI would.
func (r *testRig) advanceToVoting() {
	r.t.Helper()
	require.Eventually(r.t, func() bool {
		r.hostEvent(EventNextSpeaker, nil)
		r.hostEvent(EventPhaseUpdate, TargetPhasePayload{Phase: "voting"})
		return r.phase() == PhaseVoting.String()
	}, 2*time.Second, 2*time.Millisecond)
}

func (r *testRig) advanceToFinalVote() {
	r.t.Helper()
	require.Eventually(r.t, func() bool {
		r.hostEvent(EventPhaseUpdate, TargetPhasePayload{Phase: "finalVote"})
		return r.phase() == PhaseFinalVote.String()
	}, 2*time.Second, 2*time.Millisecond)
}

// electSuspect casts everyone's suspicion vote on target and closes the
// vote, leaving the room in defense.
func (r *testRig) electSuspect(target string) SuspicionResult {
	r.t.Helper()
	ctx := context.Background()
	for id := range r.players {
		_, err := r.engine.CastSuspicion(ctx, id, target)
		require.NoError(r.t, err)
	}
	res, err := r.engine.TallySuspicion(ctx, r.hostId)
	require.NoError(r.t, err)
	require.Equal(r.t, target, res.SuspectId)
	return res
}

func TestStartRoundPreconditions(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2")
	ctx := context.Background()

	_, err := rig.engine.StartRound(ctx, "p2")
	assert.ErrorIs(t, err, domain.ErrNotHost)

	// round 0 means waiting
	assert.Equal(t, PhaseWaiting.String(), rig.phase())

	rig.startRound()

	_, err = rig.engine.StartRound(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrWrongPhase)
}

func TestStartRoundAssignsWordsAndLiar(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	res := rig.startRound()
	assert.Equal(t, 1, res.Round)
	assert.Equal(t, "animals", res.Topic)
	assert.Equal(t, PhaseExplaining.String(), rig.phase())

	liars := 0
	for id := range rig.players {
		reveal, err := rig.engine.RevealWord(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "animals", reveal.Topic)
		if reveal.IsLiar {
			liars++
			assert.Equal(t, "ostrich", reveal.Word)
		} else {
			assert.Equal(t, "penguin", reveal.Word)
		}
	}
	assert.Equal(t, 1, liars)

	a := rig.assignment(1)
	reveal, err := rig.engine.RevealWord(ctx, a.LiarId)
	require.NoError(t, err)
	assert.True(t, reveal.IsLiar)
}

func TestRevealWordErrors(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2")
	ctx := context.Background()

	_, err := rig.engine.RevealWord(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrRoundNotStarted)

	_, err = rig.engine.RevealWord(ctx, "stranger")
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
}

func TestSuspicionVoteRules(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()

	_, err := rig.engine.CastSuspicion(ctx, "p2", "p1")
	assert.ErrorIs(t, err, domain.ErrWrongPhase)

	rig.advanceToVoting()

	_, err = rig.engine.CastSuspicion(ctx, "p2", "stranger")
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	_, err = rig.engine.CastSuspicion(ctx, "stranger", "p1")
	assert.ErrorIs(t, err, domain.ErrNotInRoom)

	round, err := rig.engine.CastSuspicion(ctx, "p2", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, round)
}

func TestSuspicionVoteResubmissionKeepsLastVote(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	_, err := rig.engine.CastSuspicion(ctx, "p2", "p1")
	require.NoError(t, err)
	_, err = rig.engine.CastSuspicion(ctx, "p2", "p3")
	require.NoError(t, err)

	tally, err := rig.votes.SuspicionTally(ctx, rig.roomId, 1)
	require.NoError(t, err)
	require.Len(t, tally, 1)
	assert.Equal(t, "p3", tally[0].TargetId)
	assert.Equal(t, 1, tally[0].Votes)
}

func TestSuspicionTallyElectsPluralityTarget(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	_, err := rig.engine.CastSuspicion(ctx, "p1", "p2")
	require.NoError(t, err)
	_, err = rig.engine.CastSuspicion(ctx, "p3", "p2")
	require.NoError(t, err)
	_, err = rig.engine.CastSuspicion(ctx, "p2", "p1")
	require.NoError(t, err)

	res, err := rig.engine.TallySuspicion(ctx, rig.hostId)
	require.NoError(t, err)
	assert.Equal(t, "suspectChosen", res.Outcome)
	assert.Equal(t, "p2", res.SuspectId)
	assert.Equal(t, "name_p2", res.SuspectName)
	assert.Equal(t, 2, res.Votes)
	assert.Equal(t, PhaseDefense.String(), rig.phase())

	room, err := rig.store.GetRoom(ctx, rig.roomId)
	require.NoError(t, err)
	require.NotNil(t, room.SuspectId)
	assert.Equal(t, "p2", *room.SuspectId)
}

func TestSuspicionTallyRequiresHost(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	_, err := rig.engine.TallySuspicion(ctx, "p2")
	assert.ErrorIs(t, err, domain.ErrNotHost)
}

func TestNoSuspicionVotesHandsRoundToLiar(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	res, err := rig.engine.TallySuspicion(ctx, rig.hostId)
	require.NoError(t, err)

	a := rig.assignment(1)
	assert.Equal(t, domain.ReasonNoFirstVoteLiarWin, res.Outcome)
	assert.Equal(t, a.LiarId, res.LiarId)
	assert.False(t, res.GameOver)
	assert.Equal(t, PhaseResult.String(), rig.phase())

	entries, err := rig.scores.RoomBreakdown(ctx, rig.roomId)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.LiarId, entries[0].UserId)
	assert.Equal(t, domain.LiarWinAward, entries[0].Delta)
	assert.Equal(t, domain.ReasonNoFirstVoteLiarWin, entries[0].Reason)

	// next round can start from result
	rig.startRound()
	assert.Equal(t, PhaseExplaining.String(), rig.phase())
}

func TestVerdictConvictsLiar(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	a := rig.assignment(1)
	rig.electSuspect(a.LiarId)
	rig.advanceToFinalVote()

	for id := range rig.players {
		_, err := rig.engine.CastVerdict(ctx, id, domain.ChoiceLiar)
		require.NoError(t, err)
	}

	res, err := rig.engine.TallyVerdict(ctx, rig.hostId)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonLiarCaught, res.Outcome)
	assert.True(t, res.WasLiar)
	assert.Equal(t, 3, res.LiarVotes)
	assert.False(t, res.GameOver)
	assert.Equal(t, PhaseResult.String(), rig.phase())

	entries, err := rig.scores.RoomBreakdown(ctx, rig.roomId)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEqual(t, a.LiarId, e.UserId)
		assert.Equal(t, domain.LiarCaughtAward, e.Delta)
		assert.Equal(t, domain.ReasonLiarCaught, e.Reason)
	}
}

func TestVerdictConvictsInnocent(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	a := rig.assignment(1)
	innocent := rig.nonLiar(a)
	rig.electSuspect(innocent)
	rig.advanceToFinalVote()

	for id := range rig.players {
		_, err := rig.engine.CastVerdict(ctx, id, domain.ChoiceLiar)
		require.NoError(t, err)
	}

	res, err := rig.engine.TallyVerdict(ctx, rig.hostId)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonLiarEscaped, res.Outcome)
	assert.False(t, res.WasLiar)

	entries, err := rig.scores.RoomBreakdown(ctx, rig.roomId)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.LiarId, entries[0].UserId)
	assert.Equal(t, domain.LiarWinAward, entries[0].Delta)
}

func TestVerdictTieReopensDiscussion(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	a := rig.assignment(1)
	rig.electSuspect(a.LiarId)
	rig.advanceToFinalVote()

	_, err := rig.engine.CastVerdict(ctx, "p1", domain.ChoiceLiar)
	require.NoError(t, err)
	_, err = rig.engine.CastVerdict(ctx, "p2", domain.ChoiceNotLiar)
	require.NoError(t, err)

	res, err := rig.engine.TallyVerdict(ctx, rig.hostId)
	require.NoError(t, err)
	assert.Equal(t, "redoDiscussion", res.Outcome)
	assert.Equal(t, PhaseDiscussion.String(), rig.phase())

	room, err := rig.store.GetRoom(ctx, rig.roomId)
	require.NoError(t, err)
	assert.Nil(t, room.SuspectId)

	entries, err := rig.scores.RoomBreakdown(ctx, rig.roomId)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// discussion is not a verdict phase, so a late verdict is rejected
	_, err = rig.engine.CastVerdict(ctx, "p3", domain.ChoiceLiar)
	assert.ErrorIs(t, err, domain.ErrWrongPhase)
}

func TestNoVerdictVotesHandsRoundToLiar(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	a := rig.assignment(1)
	rig.electSuspect(rig.nonLiar(a))
	rig.advanceToFinalVote()

	res, err := rig.engine.TallyVerdict(ctx, rig.hostId)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoFinalVoteLiarWin, res.Outcome)

	entries, err := rig.scores.RoomBreakdown(ctx, rig.roomId)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.LiarId, entries[0].UserId)
	assert.Equal(t, domain.LiarWinAward, entries[0].Delta)
}

func TestInvalidVerdictChoiceRejected(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()
	rig.electSuspect("p2")

	_, err := rig.engine.CastVerdict(ctx, "p1", "guilty")
	assert.ErrorIs(t, err, domain.ErrInvalidChoice)
}

func TestLastRoundFinishesGameAndSharesVictory(t *testing.T) {
	rig := newTestRig(t, 1, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	a := rig.assignment(1)
	rig.electSuspect(a.LiarId)
	rig.advanceToFinalVote()

	for id := range rig.players {
		_, err := rig.engine.CastVerdict(ctx, id, domain.ChoiceLiar)
		require.NoError(t, err)
	}

	res, err := rig.engine.TallyVerdict(ctx, rig.hostId)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonLiarCaught, res.Outcome)
	assert.True(t, res.GameOver)

	// both non-liars finished on 5 points and share the win
	require.Len(t, res.Winners, 2)
	for _, w := range res.Winners {
		assert.NotEqual(t, a.LiarId, w.UserId)
		assert.Equal(t, domain.LiarCaughtAward, w.Total)
		assert.Equal(t, domain.LiarCaughtAward, rig.scores.cumulative[w.UserId])
	}
	assert.Len(t, rig.scores.rankingLog, 2)

	// room is gone and the engine is dead
	_, err = rig.store.GetRoom(ctx, rig.roomId)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Equal(t, []int64{rig.roomId}, rig.arena.removedRooms())

	_, err = rig.engine.StartRound(ctx, rig.hostId)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestLastRoundNoVotePathStillFinishesGame(t *testing.T) {
	rig := newTestRig(t, 1, RoomConfigs{}, "p1")
	ctx := context.Background()

	rig.startRound()
	rig.advanceToVoting()

	// sole member is always the liar
	res, err := rig.engine.TallySuspicion(ctx, rig.hostId)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoFirstVoteLiarWin, res.Outcome)
	assert.True(t, res.GameOver)
	require.Len(t, res.Winners, 1)
	assert.Equal(t, "p1", res.Winners[0].UserId)
	assert.Equal(t, domain.LiarWinAward, rig.scores.cumulative["p1"])

	_, err = rig.store.GetRoom(ctx, rig.roomId)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestHostLeaveTearsDownRoom(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2")
	ctx := context.Background()

	deleted, err := rig.engine.Leave(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = rig.store.GetRoom(ctx, rig.roomId)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Equal(t, []int64{rig.roomId}, rig.arena.removedRooms())

	// everyone was released
	for _, p := range rig.players {
		p.mu.Lock()
		released := p.released
		p.mu.Unlock()
		assert.True(t, released)
	}
}

func TestHostLeaveReplyNeverRacesTeardown(t *testing.T) {
	ctx := context.Background()

	// the teardown triggered by the leave closes the engine before the
	// reply lands, so a single run can get lucky; repeat to flush the race
	for i := 0; i < 50; i++ {
		rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2")

		deleted, err := rig.engine.Leave(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, deleted)
	}
}

func TestNonHostLeaveKeepsRoom(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	deleted, err := rig.engine.Leave(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, deleted)

	members, err := rig.store.RoomMembers(ctx, rig.roomId)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = rig.engine.Leave(ctx, "p2")
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
}

func TestDisconnectClearsMembershipButKeepsScores(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2", "p3")
	ctx := context.Background()

	err := rig.scores.AppendScore(ctx, domain.ScoreEntry{
		RoomId: rig.roomId, Round: 1, UserId: "p3",
		Delta: domain.LiarCaughtAward, Reason: domain.ReasonLiarCaught,
	})
	require.NoError(t, err)

	rig.engine.RequestDetach(rig.players["p3"])

	require.Eventually(t, func() bool {
		user, err := rig.store.GetUserById(ctx, "p3")
		return err == nil && user.CurrentRoom == nil
	}, 2*time.Second, 2*time.Millisecond)

	members, err := rig.store.RoomMembers(ctx, rig.roomId)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	entries, err := rig.scores.RoomBreakdown(ctx, rig.roomId)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p3", entries[0].UserId)
}

func TestExplainDeadlineAdvancesSpeakers(t *testing.T) {
	configs := RoomConfigs{ExplainTurnDuration: 5 * time.Millisecond}
	rig := newTestRig(t, 5, configs, "p1", "p2")

	rig.startRound()

	require.Eventually(t, func() bool {
		rig.engine.Tick(time.Now().Add(time.Hour))
		return rig.phase() == PhaseDiscussion.String()
	}, 2*time.Second, 2*time.Millisecond)
}

func TestChatFanOut(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2")

	rig.hostEvent(EventChatMessage, ChatPayload{Message: "hello there"})

	require.Eventually(t, func() bool {
		return len(rig.players["p2"].eventsNamed(EventChatMessage)) == 1
	}, 2*time.Second, 2*time.Millisecond)

	ev := rig.players["p2"].eventsNamed(EventChatMessage)[0]
	var msg ChatPayload
	require.NoError(t, json.Unmarshal(ev.Data, &msg))
	assert.Equal(t, "p1", msg.UserId)
	assert.Equal(t, "name_p1", msg.Username)
	assert.Equal(t, "hello there", msg.Message)
}

func TestLiveVerdictTallyBroadcastsOnFullCount(t *testing.T) {
	rig := newTestRig(t, 5, RoomConfigs{}, "p1", "p2")

	rig.startRound()
	rig.advanceToVoting()
	rig.electSuspect("p2")

	for id, p := range rig.players {
		choice := domain.ChoiceNotLiar
		if id == "p1" {
			choice = domain.ChoiceLiar
		}
		data, _ := json.Marshal(LiveVerdictPayload{Choice: choice})
		rig.engine.submitClientEvent(clientEventEnvelope{
			event: Event{Name: EventFinalChoiceVote, Data: data},
			from:  p,
		})
	}

	require.Eventually(t, func() bool {
		return len(rig.players["p1"].eventsNamed(EventFinalChoiceResult)) == 1
	}, 2*time.Second, 2*time.Millisecond)

	ev := rig.players["p1"].eventsNamed(EventFinalChoiceResult)[0]
	var res LiveVerdictResultPayload
	require.NoError(t, json.Unmarshal(ev.Data, &res))
	assert.Equal(t, 1, res.LiarCount)
	assert.Equal(t, 1, res.NotLiarCount)
	assert.Equal(t, "p2", res.SuspectId)
}
