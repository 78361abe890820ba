package db

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 10 * time.Second
)

// ExponentialBackoff doubles from backoffBase per attempt, capped, with up to 250ms jitter.
func ExponentialBackoff(attempt int) time.Duration {
	// attempt=0 => 500ms
	// attempt=1 => 1s
	// attempt=2 => 2s

	if attempt > 30 {
		attempt = 30
	}

	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(backoffBase) * multiple)

	if delay > backoffCap {
		delay = backoffCap
	}

	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}

// ConnectWithRetry opens the pool, retrying while the database comes up.
func ConnectWithRetry(ctx context.Context, dbURL string, maxConns int32, attempts int, log *slog.Logger) (*pgxpool.Pool, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		pool, err := NewPool(ctx, dbURL, maxConns)
		if err == nil {
			return pool, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := ExponentialBackoff(attempt)
		log.WarnContext(ctx, "database not reachable, retrying", "attempt", attempt+1, "delay", delay, "err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}
