package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rankit/domain"
)

// PostgresArchive records finished games. Snapshots in redis are
// ephemeral; this is the durable record a rematch or stats page can
// read later.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

func NewPostgresArchive(ctx context.Context, connString string) (*PostgresArchive, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	archive := &PostgresArchive{pool: pool}
	if err := archive.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return archive, nil
}

func (a *PostgresArchive) ensureSchema(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_results (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			players_count INT NOT NULL,
			items_count INT NOT NULL,
			standings JSONB NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (a *PostgresArchive) SaveResult(ctx context.Context, room *domain.Room, standings []domain.Standing) error {
	payload, err := json.Marshal(standings)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO game_results (room_id, players_count, items_count, standings, finished_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		room.Id, len(room.Players), len(room.Items), payload, time.Now())
	return err
}

func (a *PostgresArchive) Close() {
	a.pool.Close()
}
