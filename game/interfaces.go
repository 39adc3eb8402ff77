package game

import (
	"api/domain"
	"context"
	"time"
)

type NetworkSession interface {
	Close(errCode string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

// Player is one connected socket inside a room engine.
type Player interface {
	Id() string
	Username() string
	Send(data []byte) error
	Ping() error
	CancelAndRelease()
}

// RoomStore is the durable room record plus player membership
// (membership lives as a nullable room reference on the player row).
type RoomStore interface {
	CreateRoom(ctx context.Context, hostId, title string) (domain.Room, error)
	GetRoom(ctx context.Context, roomId int64) (domain.Room, error)
	ListActiveRooms(ctx context.Context) ([]domain.Room, error)
	RoomMembers(ctx context.Context, roomId int64) ([]domain.User, error)
	SetUserRoom(ctx context.Context, userId string, roomId *int64) error
	StartRound(ctx context.Context, room domain.Room, a domain.RoundAssignment) error
	GetAssignment(ctx context.Context, roomId int64, round int) (domain.RoundAssignment, error)
	SetPhase(ctx context.Context, roomId int64, phase string) error
	SetSuspect(ctx context.Context, roomId int64, suspectId *string, phase string) error
	DeleteRoom(ctx context.Context, roomId int64) error
}

// VoteLedger keeps one live vote row per (room, round, voter),
// last write wins on resubmission.
type VoteLedger interface {
	PutSuspicionVote(ctx context.Context, roomId int64, round int, voterId, targetId string) error
	SuspicionTally(ctx context.Context, roomId int64, round int) ([]domain.TargetVotes, error)
	PutVerdictVote(ctx context.Context, roomId int64, round int, voterId, suspectId, choice string) error
	VerdictTally(ctx context.Context, roomId int64, round int) (domain.VerdictCounts, error)
	PurgeVotes(ctx context.Context, roomId int64) error
}

// ScoreLedger is append-only per room until teardown purges it.
type ScoreLedger interface {
	AppendScore(ctx context.Context, e domain.ScoreEntry) error
	RoomTotals(ctx context.Context, roomId int64) ([]domain.PlayerTotal, error)
	RoomBreakdown(ctx context.Context, roomId int64) ([]domain.ScoreEntry, error)
	AddToCumulative(ctx context.Context, userId string, delta int) error
	AppendRankingLog(ctx context.Context, userId string, score int) error
	GlobalRanking(ctx context.Context, limit int) ([]domain.RankedPlayer, error)
	PurgeScores(ctx context.Context, roomId int64) error
}

// WordBank supplies a topic and two distinct words within it. Pure lookup.
type WordBank interface {
	RandomTopic(ctx context.Context) (string, error)
	RandomWordPair(ctx context.Context, topic string) (domain.Word, domain.Word, error)
	WordText(ctx context.Context, id int64) (string, error)
}

type UserGetter interface {
	GetUserById(ctx context.Context, id string) (domain.User, error)
}

type Arena interface {
	RemoveRoom(roomId int64)
}

type PeriodicTickerChannelCreator interface {
	Create(d time.Duration) <-chan time.Time
}
