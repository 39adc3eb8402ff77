package storage

import (
	"api/domain"
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// PutSuspicionVote records a first-round suspicion vote. One live row per
// (room, round, voter); resubmission replaces the previous target atomically.
func (pgr *PostgresRepo) PutSuspicionVote(ctx context.Context, roomId int64, round int, voterId, targetId string) error {
	_, err := pgr.pool.Exec(ctx,
		`INSERT INTO suspicion_votes(room_id, round, voter_id, target_id)
		 VALUES($1, $2, $3, $4)
		 ON CONFLICT (room_id, round, voter_id) DO UPDATE SET target_id = EXCLUDED.target_id`,
		roomId, round, voterId, targetId)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (pgr *PostgresRepo) SuspicionTally(ctx context.Context, roomId int64, round int) ([]domain.TargetVotes, error) {
	rows, err := pgr.pool.Query(ctx,
		`SELECT v.target_id, u.username, COUNT(*)
		 FROM suspicion_votes v JOIN users u ON u.id = v.target_id
		 WHERE v.room_id = $1 AND v.round = $2
		 GROUP BY v.target_id, u.username
		 ORDER BY COUNT(*) DESC, v.target_id ASC`,
		roomId, round)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	tally := make([]domain.TargetVotes, 0)
	for rows.Next() {
		var tv domain.TargetVotes
		if err := rows.Scan(&tv.TargetId, &tv.TargetName, &tv.Votes); err != nil {
			return nil, wrapDBError(err)
		}
		tally = append(tally, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return tally, nil
}

func (pgr *PostgresRepo) PutVerdictVote(ctx context.Context, roomId int64, round int, voterId, suspectId, choice string) error {
	if choice != domain.ChoiceLiar && choice != domain.ChoiceNotLiar {
		return domain.ErrInvalidChoice
	}
	_, err := pgr.pool.Exec(ctx,
		`INSERT INTO verdict_votes(room_id, round, voter_id, suspect_id, choice)
		 VALUES($1, $2, $3, $4, $5)
		 ON CONFLICT (room_id, round, voter_id)
		 DO UPDATE SET suspect_id = EXCLUDED.suspect_id, choice = EXCLUDED.choice`,
		roomId, round, voterId, suspectId, choice)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (pgr *PostgresRepo) VerdictTally(ctx context.Context, roomId int64, round int) (domain.VerdictCounts, error) {
	var counts domain.VerdictCounts

	row := pgr.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE choice = 'liar'),
		        COUNT(*) FILTER (WHERE choice = 'notLiar')
		 FROM verdict_votes WHERE room_id = $1 AND round = $2`,
		roomId, round)

	err := row.Scan(&counts.Liar, &counts.NotLiar)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.VerdictCounts{}, wrapDBError(err)
	}
	return counts, nil
}

func (pgr *PostgresRepo) PurgeVotes(ctx context.Context, roomId int64) error {
	if _, err := pgr.pool.Exec(ctx,
		"DELETE FROM verdict_votes WHERE room_id = $1", roomId); err != nil {
		return wrapDBError(err)
	}
	if _, err := pgr.pool.Exec(ctx,
		"DELETE FROM suspicion_votes WHERE room_id = $1", roomId); err != nil {
		return wrapDBError(err)
	}
	return nil
}
