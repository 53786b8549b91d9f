package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// Open returns a pooled *sql.DB on the pgx driver. Postgres often comes up after the API in
// compose setups, so the first ping is retried a few times before giving up.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	wait := connectBackoff
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt == connectAttempts {
			break
		}
		zap.S().Warnw("database not reachable yet", "attempt", attempt, "retry_in", wait.String(), "error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("ping db: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
	db.Close()
	return nil, fmt.Errorf("ping db after %d attempts: %w", connectAttempts, err)
}
