package storage

import (
	"api/domain"
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// RandomTopic picks a uniformly random category from the word bank.
func (pgr *PostgresRepo) RandomTopic(ctx context.Context) (string, error) {
	var topic string
	err := pgr.pool.QueryRow(ctx,
		"SELECT category FROM words GROUP BY category ORDER BY RANDOM() LIMIT 1").Scan(&topic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrTopicTooSmall
		}
		return "", wrapDBError(err)
	}
	return topic, nil
}

// RandomWordPair picks two distinct random words within a topic: the first is
// the shared true word, the second the liar's decoy.
func (pgr *PostgresRepo) RandomWordPair(ctx context.Context, topic string) (domain.Word, domain.Word, error) {
	rows, err := pgr.pool.Query(ctx,
		"SELECT id, category, text FROM words WHERE category = $1 ORDER BY RANDOM() LIMIT 2", topic)
	if err != nil {
		return domain.Word{}, domain.Word{}, wrapDBError(err)
	}
	defer rows.Close()

	words := make([]domain.Word, 0, 2)
	for rows.Next() {
		var w domain.Word
		if err := rows.Scan(&w.Id, &w.Category, &w.Text); err != nil {
			return domain.Word{}, domain.Word{}, wrapDBError(err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return domain.Word{}, domain.Word{}, wrapDBError(err)
	}

	if len(words) < 2 {
		return domain.Word{}, domain.Word{}, domain.ErrTopicTooSmall
	}
	return words[0], words[1], nil
}

func (pgr *PostgresRepo) WordText(ctx context.Context, id int64) (string, error) {
	var text string
	err := pgr.pool.QueryRow(ctx, "SELECT text FROM words WHERE id = $1", id).Scan(&text)
	if err != nil {
		return "", wrapDBError(err)
	}
	return text, nil
}
