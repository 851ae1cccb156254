package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var migrations embed.FS

var Pool *pgxpool.Pool

func InitDB(ctx context.Context, databaseURL string, retries int) error {
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pool, err := pgxpool.Connect(ctx, databaseURL)
		if err != nil {
			log.Printf("Database not ready, retrying: %v", err)
			return retry.RetryableError(err)
		}
		Pool = pool
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(databaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database connection established")
	return nil
}

func migrate(databaseURL string) error {
	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(conn, "migrations")
}

func Close() {
	if Pool != nil {
		Pool.Close()
	}
}
