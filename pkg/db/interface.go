package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows both PostgresClient and SupabaseClient to back the search store.
type DBProvider interface {
	DB() *sql.DB
}

// PoolConfig holds optional sql.DB pool tuning shared by the Postgres clients.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

func (p PoolConfig) apply(db *sql.DB) {
	if p.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.MaxIdleConns)
	}
	if p.ConnMaxIdle > 0 {
		db.SetConnMaxIdleTime(p.ConnMaxIdle)
	}
	if p.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(p.ConnMaxLife)
	}
}

// openPgx opens a pgx-backed sql.DB, applies pool tuning and pings it.
func openPgx(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	pool.apply(db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// SQLClient is a connected client backing the search store.
type SQLClient interface {
	DBProvider
	Close() error
}

// ConnectSearchDB connects to Supabase when useSupabase is set and to plain
// Postgres otherwise.
func ConnectSearchDB(ctx context.Context, useSupabase bool, pg PostgresConfig, sb SupabaseConfig) (SQLClient, error) {
	if useSupabase {
		client := NewSupabaseClient(sb)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}

	client := NewPostgresClient(pg)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
