package storage

import (
	"api/domain"
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const roomColumns = `r.id, r.title, r.host_id, u.username, r.is_active, r.current_round,
	r.max_rounds, r.phase, r.topic, r.word_id, r.suspect_id, r.liar_id,
	(SELECT COUNT(*) FROM users m WHERE m.current_room = r.id)`

func scanRoom(row pgx.Row) (domain.Room, error) {
	var room domain.Room
	err := row.Scan(&room.Id, &room.Title, &room.HostId, &room.HostName, &room.IsActive,
		&room.CurrentRound, &room.MaxRounds, &room.Phase, &room.Topic, &room.WordId,
		&room.SuspectId, &room.LiarId, &room.PlayerCount)
	return room, err
}

func (pgr *PostgresRepo) CreateRoom(ctx context.Context, hostId, title string) (domain.Room, error) {
	tx, err := pgr.pool.Begin(ctx)
	if err != nil {
		return domain.Room{}, wrapDBError(err)
	}
	defer tx.Rollback(ctx)

	var roomId int64
	err = tx.QueryRow(ctx,
		"INSERT INTO rooms(title, host_id) VALUES($1, $2) RETURNING id", title, hostId).Scan(&roomId)
	if err != nil {
		return domain.Room{}, wrapDBError(err)
	}

	// The host joins their own room immediately.
	_, err = tx.Exec(ctx, "UPDATE users SET current_room = $1 WHERE id = $2", roomId, hostId)
	if err != nil {
		return domain.Room{}, wrapDBError(err)
	}

	room, err := scanRoom(tx.QueryRow(ctx,
		"SELECT "+roomColumns+" FROM rooms r JOIN users u ON u.id = r.host_id WHERE r.id = $1", roomId))
	if err != nil {
		return domain.Room{}, wrapDBError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Room{}, wrapDBError(err)
	}
	return room, nil
}

func (pgr *PostgresRepo) GetRoom(ctx context.Context, roomId int64) (domain.Room, error) {
	room, err := scanRoom(pgr.pool.QueryRow(ctx,
		"SELECT "+roomColumns+" FROM rooms r JOIN users u ON u.id = r.host_id WHERE r.id = $1", roomId))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, wrapDBError(err)
	}
	return room, nil
}

func (pgr *PostgresRepo) ListActiveRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := pgr.pool.Query(ctx,
		"SELECT "+roomColumns+" FROM rooms r JOIN users u ON u.id = r.host_id WHERE r.is_active ORDER BY r.id")
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	rooms := make([]domain.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, wrapDBError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return rooms, nil
}

func (pgr *PostgresRepo) RoomMembers(ctx context.Context, roomId int64) ([]domain.User, error) {
	rows, err := pgr.pool.Query(ctx,
		"SELECT id, username, score FROM users WHERE current_room = $1 ORDER BY username", roomId)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	members := make([]domain.User, 0)
	for rows.Next() {
		member := domain.User{CurrentRoom: &roomId}
		if err := rows.Scan(&member.Id, &member.Username, &member.Score); err != nil {
			return nil, wrapDBError(err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return members, nil
}

func (pgr *PostgresRepo) SetUserRoom(ctx context.Context, userId string, roomId *int64) error {
	tag, err := pgr.pool.Exec(ctx, "UPDATE users SET current_room = $1 WHERE id = $2", roomId, userId)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (pgr *PostgresRepo) StartRound(ctx context.Context, room domain.Room, a domain.RoundAssignment) error {
	tx, err := pgr.pool.Begin(ctx)
	if err != nil {
		return wrapDBError(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE rooms
		 SET current_round = $1, phase = $2, topic = $3, word_id = $4, liar_id = $5, suspect_id = NULL
		 WHERE id = $6`,
		room.CurrentRound, room.Phase, room.Topic, room.WordId, room.LiarId, room.Id)
	if err != nil {
		return wrapDBError(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO round_assignments(room_id, round, liar_id, topic, true_word_id, decoy_word_id)
		 VALUES($1, $2, $3, $4, $5, $6)`,
		a.RoomId, a.Round, a.LiarId, a.Topic, a.TrueWordId, a.DecoyWordId)
	if err != nil {
		return wrapDBError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (pgr *PostgresRepo) GetAssignment(ctx context.Context, roomId int64, round int) (domain.RoundAssignment, error) {
	a := domain.RoundAssignment{RoomId: roomId, Round: round}

	row := pgr.pool.QueryRow(ctx,
		`SELECT liar_id, topic, true_word_id, decoy_word_id
		 FROM round_assignments WHERE room_id = $1 AND round = $2`, roomId, round)

	err := row.Scan(&a.LiarId, &a.Topic, &a.TrueWordId, &a.DecoyWordId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoundAssignment{}, domain.ErrRoundNotStarted
		}
		return domain.RoundAssignment{}, wrapDBError(err)
	}
	return a, nil
}

func (pgr *PostgresRepo) SetPhase(ctx context.Context, roomId int64, phase string) error {
	tag, err := pgr.pool.Exec(ctx, "UPDATE rooms SET phase = $1 WHERE id = $2", phase, roomId)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (pgr *PostgresRepo) SetSuspect(ctx context.Context, roomId int64, suspectId *string, phase string) error {
	tag, err := pgr.pool.Exec(ctx,
		"UPDATE rooms SET suspect_id = $1, phase = $2 WHERE id = $3", suspectId, phase, roomId)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// DeleteRoom marks the room inactive, frees every member, and removes the row.
// Round assignments go away with the room via their foreign key; vote and score
// rows are purged separately by the ledger methods.
func (pgr *PostgresRepo) DeleteRoom(ctx context.Context, roomId int64) error {
	tx, err := pgr.pool.Begin(ctx)
	if err != nil {
		return wrapDBError(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"UPDATE rooms SET is_active = false, phase = 'finished' WHERE id = $1", roomId); err != nil {
		return wrapDBError(err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE users SET current_room = NULL WHERE current_room = $1", roomId); err != nil {
		return wrapDBError(err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM rooms WHERE id = $1", roomId); err != nil {
		return wrapDBError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapDBError(err)
	}
	return nil
}
