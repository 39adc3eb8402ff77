package game

import (
	"api/domain"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// --- RoomStore ---

type fakeStore struct {
	mu          sync.Mutex
	nextRoomId  int64
	rooms       map[int64]*domain.Room
	users       map[string]*domain.User
	assignments map[int64]map[int]domain.RoundAssignment
	deleted     []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextRoomId:  1,
		rooms:       map[int64]*domain.Room{},
		users:       map[string]*domain.User{},
		assignments: map[int64]map[int]domain.RoundAssignment{},
	}
}

func (f *fakeStore) addUser(id, username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &domain.User{Id: id, Username: username}
}

func (f *fakeStore) CreateRoom(ctx context.Context, hostId, title string) (domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	host, ok := f.users[hostId]
	if !ok {
		return domain.Room{}, domain.ErrUserNotFound
	}
	room := domain.Room{
		Id:        f.nextRoomId,
		Title:     title,
		HostId:    hostId,
		HostName:  host.Username,
		IsActive:  true,
		MaxRounds: 5,
		Phase:     PhaseWaiting.String(),
	}
	f.nextRoomId++
	f.rooms[room.Id] = &room
	host.CurrentRoom = &room.Id
	out := room
	out.PlayerCount = 1
	return out, nil
}

func (f *fakeStore) GetRoom(ctx context.Context, roomId int64) (domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomId]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return *room, nil
}

func (f *fakeStore) ListActiveRooms(ctx context.Context) ([]domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Room{}
	for _, r := range f.rooms {
		if r.IsActive {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (f *fakeStore) RoomMembers(ctx context.Context, roomId int64) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.User{}
	for _, u := range f.users {
		if u.CurrentRoom != nil && *u.CurrentRoom == roomId {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) SetUserRoom(ctx context.Context, userId string, roomId *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userId]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.CurrentRoom = roomId
	return nil
}

func (f *fakeStore) StartRound(ctx context.Context, room domain.Room, a domain.RoundAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rooms[room.Id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	*stored = room
	if f.assignments[room.Id] == nil {
		f.assignments[room.Id] = map[int]domain.RoundAssignment{}
	}
	f.assignments[room.Id][a.Round] = a
	return nil
}

func (f *fakeStore) GetAssignment(ctx context.Context, roomId int64, round int) (domain.RoundAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[roomId][round]
	if !ok {
		return domain.RoundAssignment{}, domain.ErrRoundNotStarted
	}
	return a, nil
}

func (f *fakeStore) SetPhase(ctx context.Context, roomId int64, phase string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomId]
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.Phase = phase
	return nil
}

func (f *fakeStore) SetSuspect(ctx context.Context, roomId int64, suspectId *string, phase string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomId]
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.SuspectId = suspectId
	room.Phase = phase
	return nil
}

func (f *fakeStore) DeleteRoom(ctx context.Context, roomId int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[roomId]; !ok {
		return domain.ErrRoomNotFound
	}
	for _, u := range f.users {
		if u.CurrentRoom != nil && *u.CurrentRoom == roomId {
			u.CurrentRoom = nil
		}
	}
	delete(f.rooms, roomId)
	f.deleted = append(f.deleted, roomId)
	return nil
}

func (f *fakeStore) GetUserById(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return *u, nil
}

// --- VoteLedger ---

type voteKey struct {
	roomId int64
	round  int
	voter  string
}

type fakeVotes struct {
	mu        sync.Mutex
	store     *fakeStore
	suspicion map[voteKey]string
	verdicts  map[voteKey]string
}

func newFakeVotes(store *fakeStore) *fakeVotes {
	return &fakeVotes{
		store:     store,
		suspicion: map[voteKey]string{},
		verdicts:  map[voteKey]string{},
	}
}

func (f *fakeVotes) PutSuspicionVote(ctx context.Context, roomId int64, round int, voterId, targetId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspicion[voteKey{roomId, round, voterId}] = targetId
	return nil
}

func (f *fakeVotes) SuspicionTally(ctx context.Context, roomId int64, round int) ([]domain.TargetVotes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := map[string]int{}
	for k, target := range f.suspicion {
		if k.roomId == roomId && k.round == round {
			counts[target]++
		}
	}
	out := []domain.TargetVotes{}
	for target, votes := range counts {
		name := ""
		if u, ok := f.store.users[target]; ok {
			name = u.Username
		}
		out = append(out, domain.TargetVotes{TargetId: target, TargetName: name, Votes: votes})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].TargetId < out[j].TargetId
	})
	return out, nil
}

func (f *fakeVotes) PutVerdictVote(ctx context.Context, roomId int64, round int, voterId, suspectId, choice string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdicts[voteKey{roomId, round, voterId}] = choice
	return nil
}

func (f *fakeVotes) VerdictTally(ctx context.Context, roomId int64, round int) (domain.VerdictCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var counts domain.VerdictCounts
	for k, choice := range f.verdicts {
		if k.roomId != roomId || k.round != round {
			continue
		}
		if choice == domain.ChoiceLiar {
			counts.Liar++
		} else {
			counts.NotLiar++
		}
	}
	return counts, nil
}

func (f *fakeVotes) PurgeVotes(ctx context.Context, roomId int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.suspicion {
		if k.roomId == roomId {
			delete(f.suspicion, k)
		}
	}
	for k := range f.verdicts {
		if k.roomId == roomId {
			delete(f.verdicts, k)
		}
	}
	return nil
}

// --- ScoreLedger ---

type fakeScores struct {
	mu         sync.Mutex
	store      *fakeStore
	entries    []domain.ScoreEntry
	cumulative map[string]int
	rankingLog []domain.RankedPlayer
}

func newFakeScores(store *fakeStore) *fakeScores {
	return &fakeScores{store: store, cumulative: map[string]int{}}
}

func (f *fakeScores) AppendScore(ctx context.Context, e domain.ScoreEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeScores) RoomTotals(ctx context.Context, roomId int64) ([]domain.PlayerTotal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	totals := map[string]int{}
	for _, e := range f.entries {
		if e.RoomId == roomId {
			totals[e.UserId] += e.Delta
		}
	}
	out := []domain.PlayerTotal{}
	for userId, total := range totals {
		name := ""
		if u, ok := f.store.users[userId]; ok {
			name = u.Username
		}
		out = append(out, domain.PlayerTotal{UserId: userId, Username: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].UserId < out[j].UserId
	})
	return out, nil
}

func (f *fakeScores) RoomBreakdown(ctx context.Context, roomId int64) ([]domain.ScoreEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.ScoreEntry{}
	for _, e := range f.entries {
		if e.RoomId == roomId {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeScores) AddToCumulative(ctx context.Context, userId string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cumulative[userId] += delta
	return nil
}

func (f *fakeScores) AppendRankingLog(ctx context.Context, userId string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankingLog = append(f.rankingLog, domain.RankedPlayer{UserId: userId, Score: score})
	return nil
}

func (f *fakeScores) GlobalRanking(ctx context.Context, limit int) ([]domain.RankedPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []domain.RankedPlayer{}
	for userId, score := range f.cumulative {
		name := ""
		if u, ok := f.store.users[userId]; ok {
			name = u.Username
		}
		out = append(out, domain.RankedPlayer{UserId: userId, Username: name, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserId < out[j].UserId
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeScores) PurgeScores(ctx context.Context, roomId int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.RoomId != roomId {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

// --- WordBank ---

type fakeWords struct {
	topic    string
	trueWord domain.Word
	decoy    domain.Word
}

func newFakeWords() *fakeWords {
	return &fakeWords{
		topic:    "animals",
		trueWord: domain.Word{Id: 1, Category: "animals", Text: "penguin"},
		decoy:    domain.Word{Id: 2, Category: "animals", Text: "ostrich"},
	}
}

func (f *fakeWords) RandomTopic(ctx context.Context) (string, error) {
	return f.topic, nil
}

func (f *fakeWords) RandomWordPair(ctx context.Context, topic string) (domain.Word, domain.Word, error) {
	return f.trueWord, f.decoy, nil
}

func (f *fakeWords) WordText(ctx context.Context, id int64) (string, error) {
	if id == f.trueWord.Id {
		return f.trueWord.Text, nil
	}
	return f.decoy.Text, nil
}

// --- Arena ---

type fakeArena struct {
	mu      sync.Mutex
	removed []int64
}

func (f *fakeArena) RemoveRoom(roomId int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, roomId)
}

func (f *fakeArena) removedRooms() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64{}, f.removed...)
}

// --- Player ---

type fakePlayer struct {
	mu       sync.Mutex
	id       string
	username string
	events   []Event
	released bool
}

func newFakePlayer(id, username string) *fakePlayer {
	return &fakePlayer{id: id, username: username}
}

func (f *fakePlayer) Id() string       { return f.id }
func (f *fakePlayer) Username() string { return f.username }

func (f *fakePlayer) Send(data []byte) error {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakePlayer) Ping() error { return nil }

func (f *fakePlayer) CancelAndRelease() {
	f.mu.Lock()
	f.released = true
	f.mu.Unlock()
}

func (f *fakePlayer) receivedEvents() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event{}, f.events...)
}

func (f *fakePlayer) eventsNamed(name string) []Event {
	out := []Event{}
	for _, ev := range f.receivedEvents() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// --- PeriodicTickerChannelCreator ---

type fakeTickerCreator struct {
	mu       sync.Mutex
	channels []chan time.Time
}

func (f *fakeTickerCreator) Create(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan time.Time, 1)
	f.channels = append(f.channels, ch)
	return ch
}
