package storage

import (
	"api/domain"
	"context"
)

func (pgr *PostgresRepo) AppendScore(ctx context.Context, e domain.ScoreEntry) error {
	_, err := pgr.pool.Exec(ctx,
		`INSERT INTO score_entries(room_id, round, user_id, delta, reason)
		 VALUES($1, $2, $3, $4, $5)`,
		e.RoomId, e.Round, e.UserId, e.Delta, e.Reason)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

// RoomTotals sums score deltas per player for one room, highest first,
// ties broken by ascending player id.
func (pgr *PostgresRepo) RoomTotals(ctx context.Context, roomId int64) ([]domain.PlayerTotal, error) {
	rows, err := pgr.pool.Query(ctx,
		`SELECT s.user_id, u.username, SUM(s.delta)
		 FROM score_entries s JOIN users u ON u.id = s.user_id
		 WHERE s.room_id = $1
		 GROUP BY s.user_id, u.username
		 ORDER BY SUM(s.delta) DESC, s.user_id ASC`,
		roomId)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	totals := make([]domain.PlayerTotal, 0)
	for rows.Next() {
		var pt domain.PlayerTotal
		if err := rows.Scan(&pt.UserId, &pt.Username, &pt.Total); err != nil {
			return nil, wrapDBError(err)
		}
		totals = append(totals, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return totals, nil
}

func (pgr *PostgresRepo) RoomBreakdown(ctx context.Context, roomId int64) ([]domain.ScoreEntry, error) {
	rows, err := pgr.pool.Query(ctx,
		`SELECT round, user_id, delta, reason
		 FROM score_entries WHERE room_id = $1
		 ORDER BY round ASC, user_id ASC`,
		roomId)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	entries := make([]domain.ScoreEntry, 0)
	for rows.Next() {
		e := domain.ScoreEntry{RoomId: roomId}
		if err := rows.Scan(&e.Round, &e.UserId, &e.Delta, &e.Reason); err != nil {
			return nil, wrapDBError(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return entries, nil
}

func (pgr *PostgresRepo) AddToCumulative(ctx context.Context, userId string, delta int) error {
	tag, err := pgr.pool.Exec(ctx,
		"UPDATE users SET score = score + $1 WHERE id = $2", delta, userId)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (pgr *PostgresRepo) AppendRankingLog(ctx context.Context, userId string, score int) error {
	_, err := pgr.pool.Exec(ctx,
		"INSERT INTO ranking_log(user_id, score) VALUES($1, $2)", userId, score)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (pgr *PostgresRepo) GlobalRanking(ctx context.Context, limit int) ([]domain.RankedPlayer, error) {
	rows, err := pgr.pool.Query(ctx,
		"SELECT id, username, score FROM users ORDER BY score DESC, id ASC LIMIT $1", limit)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	ranking := make([]domain.RankedPlayer, 0, limit)
	for rows.Next() {
		var rp domain.RankedPlayer
		if err := rows.Scan(&rp.UserId, &rp.Username, &rp.Score); err != nil {
			return nil, wrapDBError(err)
		}
		ranking = append(ranking, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return ranking, nil
}

func (pgr *PostgresRepo) PurgeScores(ctx context.Context, roomId int64) error {
	if _, err := pgr.pool.Exec(ctx,
		"DELETE FROM score_entries WHERE room_id = $1", roomId); err != nil {
		return wrapDBError(err)
	}
	return nil
}
