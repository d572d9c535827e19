package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/lastbuyer/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

func setupDatabase(ctx context.Context, dbConfig dbconfig.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbConfig.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cfg := pool.Config().ConnConfig
	log.Info().
		Str("user", cfg.User).
		Str("host", cfg.Host).
		Uint16("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return pool, nil
}
