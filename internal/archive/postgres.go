package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const createMatchLogsTable = `
CREATE TABLE IF NOT EXISTS match_logs (
	id         BIGSERIAL PRIMARY KEY,
	room_id    TEXT        NOT NULL,
	game_type  TEXT        NOT NULL,
	winner_id  TEXT        NOT NULL,
	reason     TEXT        NOT NULL,
	turns      INT         NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL,
	record     JSONB       NOT NULL
)`

// PostgresStore persists match records into a match_logs table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects, verifies the connection, and ensures the
// match_logs table exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createMatchLogsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure match_logs table: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Save inserts the record with the full event and message history as JSONB.
func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode match record: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO match_logs (room_id, game_type, winner_id, reason, turns, started_at, ended_at, record)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.RoomID, rec.GameType, rec.WinnerID, rec.Reason, rec.Turns,
		rec.StartedAt, rec.EndedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match record: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("match record archived",
			zap.String("room_id", rec.RoomID),
			zap.String("backend", "postgres"),
		)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
