package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rentscout/models"
)

// PostgresStore reads listing documents stored as jsonb rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Name() string {
	return "postgres"
}

// Newest first; documents use either creation key spelling.
const selectListings = `SELECT id, data FROM listings
ORDER BY COALESCE(data->>'created_at', data->>'createdAt') DESC NULLS LAST, id`

// FetchAll returns every document in the listings table. The row id is
// copied into the document when the document has none.
func (s *PostgresStore) FetchAll(ctx context.Context) ([]models.RawRecord, error) {
	rows, err := s.pool.Query(ctx, selectListings)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var records []models.RawRecord
	for rows.Next() {
		var id string
		var data map[string]any
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		if data == nil {
			data = make(map[string]any)
		}
		if _, ok := data["id"]; !ok {
			data["id"] = id
		}
		records = append(records, models.RawRecord(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return records, nil
}
