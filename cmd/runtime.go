// Package cmd provides CLI commands for the recents tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/blocklist"
	"github.com/otherjamesbrown/recents/pkg/contacts"
	"github.com/otherjamesbrown/recents/pkg/credentials"
	"github.com/otherjamesbrown/recents/pkg/db"
	"github.com/otherjamesbrown/recents/pkg/events"
	"github.com/otherjamesbrown/recents/pkg/logging"
	"github.com/otherjamesbrown/recents/pkg/recents"
	"github.com/otherjamesbrown/recents/pkg/sim"
	"github.com/otherjamesbrown/recents/pkg/store/postgres"
	"github.com/otherjamesbrown/recents/pkg/store/private"
	"github.com/otherjamesbrown/recents/pkg/store/sqlite"
	"github.com/otherjamesbrown/recents/pkg/workers"
)

// Blocklist is a blocked-number registry that can also be edited.
type Blocklist interface {
	recents.BlockedNumberRegistry
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, number string) (bool, error)
	Remove(ctx context.Context, number string) (bool, error)
}

// SecretSource looks up stored secrets. *credentials.Store satisfies it.
type SecretSource interface {
	Lookup(name string) (string, error)
}

// RuntimeOptions are the process-level pieces a Runtime is built with.
type RuntimeOptions struct {
	Logger logging.Logger

	// Registerer receives the recents and pool metrics. Nil keeps them private.
	Registerer prometheus.Registerer

	// Gate decides call-log access. Nil uses the configured permissions
	// without prompting.
	Gate recents.PermissionGate

	// Secrets supplies passwords not present in the configuration.
	Secrets SecretSource
}

// Runtime is the wired set of collaborators behind every command.
type Runtime struct {
	Config     *config.CLIConfig
	Logger     logging.Logger
	Records    recents.RecordSource
	Blocklist  Blocklist
	Pool       *workers.Pool
	Aggregator *recents.Aggregator
	Mutator    *recents.Mutator

	// Health is what `serve` pings to report store health.
	Health db.Pinger

	// Postgres is set when the store driver is postgres.
	Postgres *pgxpool.Pool

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// OpenRuntime connects to the configured stores and builds the aggregator
// and mutator over them. Close releases everything it opened.
func OpenRuntime(ctx context.Context, cfg *config.CLIConfig, opts RuntimeOptions) (_ *Runtime, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Secrets == nil {
		opts.Secrets = credentials.NewStore()
	}

	rt := &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	var general contacts.GeneralSource
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := connectToDatabase(ctx, cfg, opts.Secrets)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		rt.closers = append(rt.closers, closerFunc(func() error { pool.Close(); return nil }))
		rt.Postgres = pool
		rt.Health = pool
		rt.Records = postgres.NewCallLog(pool, logger)
		general = postgres.NewContacts(pool)
		if opts.Registerer != nil {
			if _, err := db.RegisterPoolStatsCollector(opts.Registerer, pool, "recents", "call_log"); err != nil {
				return nil, fmt.Errorf("registering pool metrics: %w", err)
			}
		}
	default:
		store, err := sqlite.Open(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening call log: %w", err)
		}
		rt.closers = append(rt.closers, store)
		rt.Health = store
		rt.Records = store
	}

	if cfg.ContactsFile != "" {
		static, err := contacts.LoadFile(cfg.ContactsFile)
		if err != nil {
			return nil, err
		}
		general = static
	}

	var privateSource contacts.PrivateSource
	if cfg.PrivateContactsDSN != "" {
		ps, err := private.Open(ctx, cfg.PrivateContactsDSN)
		if err != nil {
			return nil, fmt.Errorf("opening private contacts: %w", err)
		}
		rt.closers = append(rt.closers, ps)
		privateSource = ps
	}

	sims, err := sim.NewStaticRegistry(cfg.SimAccounts)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = connectToRedis(ctx, cfg, opts.Secrets)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		rt.closers = append(rt.closers, rdb)
	}

	switch cfg.Blocklist.Backend {
	case config.BlocklistFile:
		reg, err := blocklist.NewFileRegistry(cfg.Blocklist.File, cfg.Aggregation.ComparableDigits, logger)
		if err != nil {
			return nil, err
		}
		rt.Blocklist = reg
	case config.BlocklistRedis:
		if rdb == nil {
			return nil, errors.New("redis blocklist requires redis.addr")
		}
		rt.Blocklist = blocklist.NewRedisRegistry(rdb, blocklist.RedisConfig{
			Key:              cfg.Blocklist.RedisKey,
			CacheTTL:         cfg.Blocklist.CacheTTL,
			ComparableDigits: cfg.Aggregation.ComparableDigits,
		}, logger)
	}

	gate := opts.Gate
	if gate == nil {
		gate = recents.StaticGate{
			Read:  cfg.Permissions.ReadCallLog,
			Write: cfg.Permissions.WriteCallLog == config.WriteAllow,
		}
	}

	rt.Pool = workers.NewPool(cfg.Workers, logger)
	rt.closers = append(rt.closers, closerFunc(func() error { rt.Pool.Stop(); return nil }))

	deps := recents.Dependencies{
		Records:  rt.Records,
		Contacts: contacts.NewDirectory(general, privateSource),
		Sims:     sims,
		Gate:     gate,
		Runner:   rt.Pool,
	}
	if rt.Blocklist != nil {
		deps.Blocked = rt.Blocklist
	}
	if rdb != nil && cfg.Redis.PublishEvents {
		deps.Notifier = events.NewPublisher(rdb, logger)
	}

	recentsOpts := []recents.Option{
		recents.WithOptions(cfg.Aggregation.Options),
		recents.WithLogger(logger),
	}
	if opts.Registerer != nil {
		recentsOpts = append(recentsOpts, recents.WithMetrics(recents.NewMetrics(opts.Registerer)))
	} else {
		recentsOpts = append(recentsOpts, recents.WithMetrics(recents.NewMetrics(prometheus.NewRegistry())))
	}

	if rt.Aggregator, err = recents.NewAggregator(deps, recentsOpts...); err != nil {
		return nil, err
	}
	if rt.Mutator, err = recents.NewMutator(deps, recentsOpts...); err != nil {
		return nil, err
	}

	logger.Debug("Runtime ready",
		logging.F("store", cfg.Store.Driver),
		logging.F("blocklist", cfg.Blocklist.Backend),
		logging.F("private_contacts", privateSource != nil),
		logging.F("events", deps.Notifier != nil))

	return rt, nil
}

// Close stops the worker pool and closes every store, newest first.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
