package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pinger is anything that can report reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the health state of a database connection.
type HealthStatus struct {
	Healthy       bool
	Latency       time.Duration
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
	Error         error
}

// Ping checks if the database is reachable.
func Ping(ctx context.Context, p Pinger) error {
	if isNil(p) {
		return fmt.Errorf("pool is nil")
	}
	return p.Ping(ctx)
}

// Check pings p and, when it is a pgx pool, reports connection counts.
func Check(ctx context.Context, p Pinger) *HealthStatus {
	status := &HealthStatus{}

	if isNil(p) {
		status.Error = fmt.Errorf("pool is nil")
		return status
	}

	start := time.Now()
	err := p.Ping(ctx)
	status.Latency = time.Since(start)

	if err != nil {
		status.Error = fmt.Errorf("ping failed: %w", err)
		return status
	}

	status.Healthy = true
	if pool, ok := p.(*pgxpool.Pool); ok {
		stats := pool.Stat()
		status.TotalConns = stats.TotalConns()
		status.IdleConns = stats.IdleConns()
		status.AcquiredConns = stats.AcquiredConns()
	}

	return status
}

// Watch checks p every interval and calls report whenever health changes,
// starting with the first check. It returns when ctx is done.
func Watch(ctx context.Context, p Pinger, interval time.Duration, report func(*HealthStatus)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *bool
	for {
		status := Check(ctx, p)
		if last == nil || *last != status.Healthy {
			healthy := status.Healthy
			last = &healthy
			report(status)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// WaitForReady polls the database until it becomes available or ctx is cancelled.
func WaitForReady(ctx context.Context, p Pinger, pollInterval time.Duration) error {
	if isNil(p) {
		return fmt.Errorf("pool is nil")
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if err := p.Ping(ctx); err == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func isNil(p Pinger) bool {
	if p == nil {
		return true
	}
	pool, ok := p.(*pgxpool.Pool)
	return ok && pool == nil
}
