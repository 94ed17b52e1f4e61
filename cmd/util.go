package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/credentials"
	"github.com/otherjamesbrown/recents/pkg/db"
	"github.com/otherjamesbrown/recents/pkg/logging"
)

// connectToDatabase establishes a database connection. A password missing
// from the configuration is looked up in the credential store.
func connectToDatabase(ctx context.Context, cfg *config.CLIConfig, secrets SecretSource) (*pgxpool.Pool, error) {
	dbCfg := cfg.Database
	if dbCfg.Password == "" && secrets != nil {
		password, err := secrets.Lookup(credentials.DBPassword)
		if err != nil {
			return nil, fmt.Errorf("reading database password: %w", err)
		}
		dbCfg.Password = password
	}

	return db.Connect(ctx, &dbCfg)
}

// connectToRedis creates a Redis client and tests the connection.
func connectToRedis(ctx context.Context, cfg *config.CLIConfig, secrets SecretSource) (*redis.Client, error) {
	var password string
	if secrets != nil {
		p, err := secrets.Lookup(credentials.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("reading redis password: %w", err)
		}
		password = p
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("testing connection: %w", err)
	}

	return client, nil
}

// NewLogger builds the process logger from configuration. Logs go to w so
// command output on stdout stays machine readable.
func NewLogger(cfg *config.CLIConfig, service string, w io.Writer) logging.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := logging.LevelWarn
	if cfg.Debug {
		level = logging.LevelDebug
	}
	env := "development"
	if cfg.LogJSON {
		env = "production"
	}
	return logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: service,
		Environment: env,
		JSONFormat:  cfg.LogJSON,
		Output:      w,
	})
}

// truncate shortens s to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
