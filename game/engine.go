package game

import (
	"api/domain"
	"context"
	"log/slog"
	"time"
)

// RoomConfigs holds the per-phase deadlines enforced by the engine's
// tick handler. A zero duration disables the automatic advance for
// that phase and leaves the host in control.
type RoomConfigs struct {
	ExplainTurnDuration time.Duration
	DiscussionDuration  time.Duration
	VotingDuration      time.Duration
	DefenseDuration     time.Duration
	FinalVoteDuration   time.Duration
}

func DefaultRoomConfigs() RoomConfigs {
	return RoomConfigs{
		ExplainTurnDuration: 30 * time.Second,
		DiscussionDuration:  120 * time.Second,
		VotingDuration:      30 * time.Second,
		DefenseDuration:     60 * time.Second,
		FinalVoteDuration:   30 * time.Second,
	}
}

type clientEventEnvelope struct {
	event Event
	from  Player
}

type attachRequest struct {
	player  Player
	errChan chan error
}

// RoomEngine owns all mutable state of one room. Everything below runs
// on the engine goroutine; the exported methods only exchange messages
// with it.
type RoomEngine struct {
	room    domain.Room
	configs RoomConfigs

	store  RoomStore
	votes  VoteLedger
	scores ScoreLedger
	words  WordBank
	users  UserGetter
	arena  Arena
	logger *slog.Logger

	members       map[string]string
	players       map[string]Player
	speakingOrder []string
	speakerIndex  int
	liveVerdicts  map[string]string
	nextDeadline  time.Time

	commands   chan any
	inbox      chan clientEventEnvelope
	attachReqs chan attachRequest
	detachReqs chan Player
	ticks      chan time.Time
	pings      chan struct{}
	closed     chan struct{}
}

func NewRoomEngine(room domain.Room, configs RoomConfigs, store RoomStore, votes VoteLedger, scores ScoreLedger, words WordBank, users UserGetter, arena Arena, logger *slog.Logger) *RoomEngine {
	return &RoomEngine{
		room:         room,
		configs:      configs,
		store:        store,
		votes:        votes,
		scores:       scores,
		words:        words,
		users:        users,
		arena:        arena,
		logger:       logger.With("room_id", room.Id),
		members:      map[string]string{room.HostId: room.HostName},
		players:      map[string]Player{},
		liveVerdicts: map[string]string{},
		commands:     make(chan any, 64),
		inbox:        make(chan clientEventEnvelope, 1024),
		attachReqs:   make(chan attachRequest),
		detachReqs:   make(chan Player, 64),
		ticks:        make(chan time.Time, 24),
		pings:        make(chan struct{}, 1),
		closed:       make(chan struct{}),
	}
}

func (e *RoomEngine) RoomId() int64 { return e.room.Id }

func (e *RoomEngine) Run() {
	for {
		select {
		case cmd := <-e.commands:
			e.handleCommand(cmd)
		case env := <-e.inbox:
			e.handleClientEvent(env)
		case req := <-e.attachReqs:
			e.handleAttach(req)
		case p := <-e.detachReqs:
			e.handleDetach(context.Background(), p)
		case now := <-e.ticks:
			e.handleTick(now)
		case <-e.pings:
			for _, p := range e.players {
				p.Ping()
			}
		case <-e.closed:
			return
		}
	}
}

type commandReply[T any] struct {
	value T
	err   error
}

type startRoundCmd struct {
	ctx      context.Context
	asPlayer string
	reply    chan commandReply[StartRoundResult]
}

type revealWordCmd struct {
	ctx      context.Context
	asPlayer string
	reply    chan commandReply[RevealResult]
}

type castSuspicionCmd struct {
	ctx      context.Context
	voterId  string
	targetId string
	reply    chan commandReply[int]
}

type suspicionTallyCmd struct {
	ctx      context.Context
	asPlayer string
	reply    chan commandReply[SuspicionResult]
}

type castVerdictCmd struct {
	ctx     context.Context
	voterId string
	choice  string
	reply   chan commandReply[int]
}

type verdictTallyCmd struct {
	ctx      context.Context
	asPlayer string
	reply    chan commandReply[VerdictResult]
}

type joinRoomCmd struct {
	ctx    context.Context
	userId string
	reply  chan commandReply[struct{}]
}

type leaveRoomCmd struct {
	ctx    context.Context
	userId string
	reply  chan commandReply[bool]
}

func (e *RoomEngine) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case startRoundCmd:
		res, err := e.doStartRound(c.ctx, c.asPlayer)
		c.reply <- commandReply[StartRoundResult]{res, err}
	case revealWordCmd:
		res, err := e.doRevealWord(c.ctx, c.asPlayer)
		c.reply <- commandReply[RevealResult]{res, err}
	case castSuspicionCmd:
		round, err := e.doCastSuspicion(c.ctx, c.voterId, c.targetId)
		c.reply <- commandReply[int]{round, err}
	case suspicionTallyCmd:
		res, err := e.doSuspicionTally(c.ctx, c.asPlayer)
		c.reply <- commandReply[SuspicionResult]{res, err}
	case castVerdictCmd:
		round, err := e.doCastVerdict(c.ctx, c.voterId, c.choice)
		c.reply <- commandReply[int]{round, err}
	case verdictTallyCmd:
		res, err := e.doVerdictTally(c.ctx, c.asPlayer)
		c.reply <- commandReply[VerdictResult]{res, err}
	case joinRoomCmd:
		err := e.doJoin(c.ctx, c.userId)
		c.reply <- commandReply[struct{}]{struct{}{}, err}
	case leaveRoomCmd:
		deleted, err := e.doLeave(c.ctx, c.userId)
		c.reply <- commandReply[bool]{deleted, err}
	default:
		e.logger.Error("unknown engine command", "command", cmd)
	}
}

func await[T any](ctx context.Context, e *RoomEngine, cmd any, reply chan commandReply[T]) (T, error) {
	var zero T

	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-e.closed:
		return zero, domain.ErrRoomNotFound
	}

	select {
	case r := <-reply:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-e.closed:
		// a command that itself tears the room down (host leave, last
		// round tally) closes the engine before its reply is sent, so
		// wait a moment for the reply instead of racing it
		select {
		case r := <-reply:
			return r.value, r.err
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return zero, domain.ErrRoomNotFound
		}
	}
}

func (e *RoomEngine) StartRound(ctx context.Context, asPlayer string) (StartRoundResult, error) {
	cmd := startRoundCmd{ctx: ctx, asPlayer: asPlayer, reply: make(chan commandReply[StartRoundResult], 1)}
	return await(ctx, e, cmd, cmd.reply)
}

func (e *RoomEngine) RevealWord(ctx context.Context, asPlayer string) (RevealResult, error) {
	cmd := revealWordCmd{ctx: ctx, asPlayer: asPlayer, reply: make(chan commandReply[RevealResult], 1)}
	return await(ctx, e, cmd, cmd.reply)
}

func (e *RoomEngine) CastSuspicion(ctx context.Context, voterId, targetId string) (int, error) {
	cmd := castSuspicionCmd{ctx: ctx, voterId: voterId, targetId: targetId, reply: make(chan commandReply[int], 1)}
	return await(ctx, e, cmd, cmd.reply)
}

func (e *RoomEngine) TallySuspicion(ctx context.Context, asPlayer string) (SuspicionResult, error) {
	cmd := suspicionTallyCmd{ctx: ctx, asPlayer: asPlayer, reply: make(chan commandReply[SuspicionResult], 1)}
	return await(ctx, e, cmd, cmd.reply)
}

func (e *RoomEngine) CastVerdict(ctx context.Context, voterId, choice string) (int, error) {
	cmd := castVerdictCmd{ctx: ctx, voterId: voterId, choice: choice, reply: make(chan commandReply[int], 1)}
	return await(ctx, e, cmd, cmd.reply)
}

func (e *RoomEngine) TallyVerdict(ctx context.Context, asPlayer string) (VerdictResult, error) {
	cmd := verdictTallyCmd{ctx: ctx, asPlayer: asPlayer, reply: make(chan commandReply[VerdictResult], 1)}
	return await(ctx, e, cmd, cmd.reply)
}

func (e *RoomEngine) Join(ctx context.Context, userId string) error {
	cmd := joinRoomCmd{ctx: ctx, userId: userId, reply: make(chan commandReply[struct{}], 1)}
	_, err := await(ctx, e, cmd, cmd.reply)
	return err
}

// Leave reports whether the whole room was torn down (host leaving).
func (e *RoomEngine) Leave(ctx context.Context, userId string) (bool, error) {
	cmd := leaveRoomCmd{ctx: ctx, userId: userId, reply: make(chan commandReply[bool], 1)}
	return await(ctx, e, cmd, cmd.reply)
}

func (e *RoomEngine) RequestAttach(ctx context.Context, p Player) error {
	req := attachRequest{player: p, errChan: make(chan error, 1)}

	select {
	case e.attachReqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.closed:
		return domain.ErrRoomNotFound
	}

	select {
	case err := <-req.errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.closed:
		return domain.ErrRoomNotFound
	}
}

func (e *RoomEngine) RequestDetach(p Player) {
	select {
	case e.detachReqs <- p:
	case <-e.closed:
	}
}

func (e *RoomEngine) submitClientEvent(env clientEventEnvelope) {
	select {
	case e.inbox <- env:
	case <-e.closed:
	default:
	}
}

func (e *RoomEngine) Tick(now time.Time) {
	select {
	case e.ticks <- now:
	default:
	}
}

func (e *RoomEngine) PingPlayers() {
	select {
	case e.pings <- struct{}{}:
	default:
	}
}

func (e *RoomEngine) phase() Phase {
	p, ok := ParsePhase(e.room.Phase)
	if !ok {
		e.logger.Error("room row carries unknown phase", "phase", e.room.Phase)
		return PhaseWaiting
	}
	return p
}

func (e *RoomEngine) deadlineFor(p Phase) time.Duration {
	switch p {
	case PhaseExplaining:
		return e.configs.ExplainTurnDuration
	case PhaseDiscussion:
		return e.configs.DiscussionDuration
	case PhaseVoting:
		return e.configs.VotingDuration
	case PhaseDefense:
		return e.configs.DefenseDuration
	case PhaseFinalVote:
		return e.configs.FinalVoteDuration
	default:
		return 0
	}
}

func (e *RoomEngine) armDeadline(p Phase) {
	d := e.deadlineFor(p)
	if d <= 0 {
		e.nextDeadline = time.Time{}
		return
	}
	e.nextDeadline = time.Now().Add(d)
}

// handleTick fires the same internal actions a host command would, so
// automatic and manual advances share one code path.
func (e *RoomEngine) handleTick(now time.Time) {
	if e.nextDeadline.IsZero() || now.Before(e.nextDeadline) {
		return
	}
	e.nextDeadline = time.Time{}

	ctx := context.Background()

	var err error
	switch e.phase() {
	case PhaseExplaining:
		err = e.advanceSpeaker(ctx)
	case PhaseDiscussion:
		err = e.openVoting(ctx)
	case PhaseVoting:
		_, err = e.doSuspicionTally(ctx, e.room.HostId)
	case PhaseDefense:
		err = e.openFinalVote(ctx)
	case PhaseFinalVote:
		_, err = e.doVerdictTally(ctx, e.room.HostId)
	}

	if err != nil {
		e.logger.Error("deadline advance failed", "phase", e.room.Phase, "error", err)
		// leave the phase alone and retry on the next tick
		e.nextDeadline = now.Add(5 * time.Second)
	}
}
