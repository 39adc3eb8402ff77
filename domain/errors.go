package domain

import "errors"

var (
	UnexpectedDatabaseError = errors.New("unexpected-database-error")

	ErrUserNotFound      = errors.New("user-not-found")
	ErrDuplicateUsername = errors.New("duplicate-username")
)

// Room and round lifecycle errors.
var (
	ErrRoomNotFound    = errors.New("room-not-found")
	ErrNotHost         = errors.New("not-host")
	ErrWrongPhase      = errors.New("wrong-phase")
	ErrNoPlayers       = errors.New("no-players")
	ErrAllRoundsPlayed = errors.New("all-rounds-played")
	ErrRoundNotStarted = errors.New("round-not-started")
	ErrNoSuspect       = errors.New("no-suspect")
	ErrNotInRoom       = errors.New("not-in-room")
	ErrInvalidTarget   = errors.New("invalid-target")
	ErrInvalidChoice   = errors.New("invalid-choice")
	ErrTopicTooSmall   = errors.New("topic-too-small")
)

var (
	UnexpectedPasswordHashingError        = errors.New("unexpected-password-hashing-error")
	UnexpectedPasswordHashComparisonError = errors.New("unexpected-password-hash-comparison-error")
)

var (
	UnexpectedTokenGenerationError   = errors.New("unexpected-token-generation-error")
	UnexpectedTokenVerificationError = errors.New("unexpected-token-verification-error")
	ErrInvalidSigningAlg             = errors.New("invalid-signing-alg")
	ErrExpiredToken                  = errors.New("expired-token")
	ErrInvalidTokenSignature         = errors.New("invalid-token-signature")
	ErrCorruptedToken                = errors.New("corrupted-token")
)
