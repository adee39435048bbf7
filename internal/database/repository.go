package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"farewatch/internal/model"
)

// Repository defines the append-only persistence contract for deals. The
// engine guarantees SaveDeal is called at most once per dedup key within
// one destination/provider/cycle scope.
type Repository interface {
	SaveDeal(ctx context.Context, deal model.Combination) error
}

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository connects a pool and verifies it.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

// Migrate creates the flights table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS flights (
		id BIGSERIAL PRIMARY KEY,
		outbound_date DATE NOT NULL,
		outbound_price NUMERIC(12, 2) NOT NULL,
		inbound_date DATE,
		inbound_price NUMERIC(12, 2),
		total_price NUMERIC(12, 2) NOT NULL,
		destination VARCHAR(8) NOT NULL,
		provider VARCHAR(32) NOT NULL,
		web_link TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`
	if _, err := r.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create flights table: %w", err)
	}
	return nil
}

// SaveDeal appends one combination to the flights table.
func (r *PostgresRepository) SaveDeal(ctx context.Context, deal model.Combination) error {
	const insert = `
	INSERT INTO flights (outbound_date, outbound_price, inbound_date, inbound_price, total_price, destination, provider, web_link)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.Pool.Exec(ctx, insert,
		deal.OutboundDate,
		deal.OutboundPrice,
		deal.InboundDate,
		deal.InboundPrice,
		deal.TotalUSD,
		deal.Destination,
		deal.Provider,
		deal.BookingLink,
	)
	if err != nil {
		return fmt.Errorf("insert flight deal: %w", err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
