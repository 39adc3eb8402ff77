package domain

type User struct {
	Id           string
	Username     string
	PasswordHash string
	Score        int
	CurrentRoom  *int64
}

// Room is the durable room row. The engine keeps an in-memory copy of it as the
// authoritative snapshot and writes every mutation back synchronously.
type Room struct {
	Id           int64
	Title        string
	HostId       string
	HostName     string
	IsActive     bool
	CurrentRound int
	MaxRounds    int
	Phase        string
	Topic        *string
	WordId       *int64
	SuspectId    *string
	LiarId       *string
	PlayerCount  int
}

type Word struct {
	Id       int64
	Category string
	Text     string
}

// RoundAssignment is written once when a round starts and never updated.
type RoundAssignment struct {
	RoomId      int64
	Round       int
	LiarId      string
	Topic       string
	TrueWordId  int64
	DecoyWordId int64
}

// Verdict choices.
const (
	ChoiceLiar    = "liar"
	ChoiceNotLiar = "notLiar"
)

// Score reasons.
const (
	ReasonNoFirstVoteLiarWin = "noFirstVoteLiarWin"
	ReasonNoFinalVoteLiarWin = "noFinalVoteLiarWin"
	ReasonLiarCaught         = "liarCaught"
	ReasonLiarEscaped        = "liarEscaped"
)

// Round score awards.
const (
	LiarCaughtAward = 5
	LiarWinAward    = 10
)

type ScoreEntry struct {
	RoomId int64
	Round  int
	UserId string
	Delta  int
	Reason string
}

type TargetVotes struct {
	TargetId   string
	TargetName string
	Votes      int
}

type VerdictCounts struct {
	Liar    int
	NotLiar int
}

func (c VerdictCounts) Total() int { return c.Liar + c.NotLiar }

type PlayerTotal struct {
	UserId   string
	Username string
	Total    int
}

type RankedPlayer struct {
	UserId   string
	Username string
	Score    int
}
