package game

import (
	"api/domain"
	"context"
	"log/slog"
	"sort"
)

type Service struct {
	arena  *arena
	store  RoomStore
	votes  VoteLedger
	scores ScoreLedger
	words  WordBank
	users  UserGetter
	logger *slog.Logger
}

func NewService(arena *arena, store RoomStore, votes VoteLedger, scores ScoreLedger, words WordBank, users UserGetter, logger *slog.Logger) *Service {
	return &Service{
		arena:  arena,
		store:  store,
		votes:  votes,
		scores: scores,
		words:  words,
		users:  users,
		logger: logger,
	}
}

func (s *Service) CreateRoom(ctx context.Context, hostId, title string, configs RoomConfigs) (domain.Room, error) {
	room, err := s.store.CreateRoom(ctx, hostId, title)
	if err != nil {
		return domain.Room{}, err
	}

	engine := NewRoomEngine(room, configs, s.store, s.votes, s.scores, s.words, s.users, s.arena, s.logger)
	s.arena.AddAndRunRoom(ctx, engine)
	return room, nil
}

func (s *Service) JoinRoom(ctx context.Context, roomId int64, userId string) error {
	engine, err := s.arena.GetRoom(ctx, roomId)
	if err != nil {
		return err
	}
	return engine.Join(ctx, userId)
}

// LeaveRoom reports whether the room itself was torn down.
func (s *Service) LeaveRoom(ctx context.Context, roomId int64, userId string) (bool, error) {
	engine, err := s.arena.GetRoom(ctx, roomId)
	if err != nil {
		return false, err
	}
	return engine.Leave(ctx, userId)
}

func (s *Service) StartRound(ctx context.Context, roomId int64, userId string) (StartRoundResult, error) {
	engine, err := s.arena.GetRoom(ctx, roomId)
	if err != nil {
		return StartRoundResult{}, err
	}
	return engine.StartRound(ctx, userId)
}

func (s *Service) RevealWord(ctx context.Context, roomId int64, userId string) (RevealResult, error) {
	engine, err := s.arena.GetRoom(ctx, roomId)
	if err != nil {
		return RevealResult{}, err
	}
	return engine.RevealWord(ctx, userId)
}

func (s *Service) CastSuspicionVote(ctx context.Context, roomId int64, voterId, targetId string) (int, error) {
	engine, err := s.arena.GetRoom(ctx, roomId)
	if err != nil {
		return 0, err
	}
	return engine.CastSuspicion(ctx, voterId, targetId)
}

func (s *Service) SuspicionVoteResult(ctx context.Context, roomId int64, userId string) (SuspicionResult, error) {
	engine, err := s.arena.GetRoom(ctx, roomId)
	if err != nil {
		return SuspicionResult{}, err
	}
	return engine.TallySuspicion(ctx, userId)
}

func (s *Service) CastFinalVote(ctx context.Context, roomId int64, voterId, choice string) (int, error) {
	engine, err := s.arena.GetRoom(ctx, roomId)
	if err != nil {
		return 0, err
	}
	return engine.CastVerdict(ctx, voterId, choice)
}

func (s *Service) FinalVoteResult(ctx context.Context, roomId int64, userId string) (VerdictResult, error) {
	engine, err := s.arena.GetRoom(ctx, roomId)
	if err != nil {
		return VerdictResult{}, err
	}
	return engine.TallyVerdict(ctx, userId)
}

func (s *Service) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.store.ListActiveRooms(ctx)
}

func (s *Service) RoomDetail(ctx context.Context, roomId int64) (domain.Room, []domain.User, error) {
	room, err := s.store.GetRoom(ctx, roomId)
	if err != nil {
		return domain.Room{}, nil, err
	}
	members, err := s.store.RoomMembers(ctx, roomId)
	if err != nil {
		return domain.Room{}, nil, err
	}
	return room, members, nil
}

func (s *Service) GlobalRanking(ctx context.Context) ([]domain.RankedPlayer, error) {
	return s.scores.GlobalRanking(ctx, 50)
}

type PlayerRoundScores struct {
	UserId   string      `json:"userID"`
	Username string      `json:"username"`
	Rounds   map[int]int `json:"rounds"`
	Total    int         `json:"total"`
}

type RoomScoresResult struct {
	MaxRound int                 `json:"maxRound"`
	Players  []PlayerRoundScores `json:"players"`
}

// RoomScores folds the append-only ledger into a per-player, per-round
// grid. Players who already left keep their rows under their bare id.
func (s *Service) RoomScores(ctx context.Context, roomId int64) (RoomScoresResult, error) {
	if _, err := s.store.GetRoom(ctx, roomId); err != nil {
		return RoomScoresResult{}, err
	}
	members, err := s.store.RoomMembers(ctx, roomId)
	if err != nil {
		return RoomScoresResult{}, err
	}
	entries, err := s.scores.RoomBreakdown(ctx, roomId)
	if err != nil {
		return RoomScoresResult{}, err
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.Id] = m.Username
	}

	result := RoomScoresResult{Players: []PlayerRoundScores{}}
	byPlayer := map[string]*PlayerRoundScores{}
	for _, e := range entries {
		if e.Round > result.MaxRound {
			result.MaxRound = e.Round
		}
		p, ok := byPlayer[e.UserId]
		if !ok {
			name := names[e.UserId]
			if name == "" {
				name = e.UserId
			}
			p = &PlayerRoundScores{UserId: e.UserId, Username: name, Rounds: map[int]int{}}
			byPlayer[e.UserId] = p
		}
		p.Rounds[e.Round] += e.Delta
		p.Total += e.Delta
	}

	for _, p := range byPlayer {
		result.Players = append(result.Players, *p)
	}
	sort.Slice(result.Players, func(i, j int) bool {
		if result.Players[i].Total != result.Players[j].Total {
			return result.Players[i].Total > result.Players[j].Total
		}
		return result.Players[i].UserId < result.Players[j].UserId
	})
	return result, nil
}

// AttachSocket hooks an upgraded connection into a running room and
// starts its pumps. The caller keeps the goroutine that upgraded it.
func (s *Service) AttachSocket(ctx context.Context, roomId int64, userId string, session NetworkSession) error {
	user, err := s.users.GetUserById(ctx, userId)
	if err != nil {
		return err
	}
	engine, err := s.arena.GetRoom(ctx, roomId)
	if err != nil {
		return err
	}

	player := NewPlayer(userId, user.Username, session)
	player.engine = engine
	if err := engine.RequestAttach(ctx, player); err != nil {
		return err
	}

	go player.WritePump()
	go player.ReadPump()
	return nil
}
