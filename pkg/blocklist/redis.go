package blocklist

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/recents/pkg/logging"
)

// DefaultRedisKey is the set holding blocked entries.
const DefaultRedisKey = "recents:blocked"

// DefaultCacheTTL bounds how stale a RedisRegistry's view may be.
const DefaultCacheTTL = 5 * time.Second

// SetClient is the subset of *redis.Client the registry needs.
type SetClient interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// RedisConfig configures a RedisRegistry.
type RedisConfig struct {
	Key              string
	CacheTTL         time.Duration
	ComparableDigits int
}

// RedisRegistry keeps blocked entries in a Redis set. Reads are served from a
// matcher refreshed at most once per CacheTTL; writes invalidate it.
type RedisRegistry struct {
	client SetClient
	cfg    RedisConfig
	logger logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	matcher  *Matcher
	loadedAt time.Time
}

// NewRedisRegistry creates a registry over client.
func NewRedisRegistry(client SetClient, cfg RedisConfig, logger logging.Logger) *RedisRegistry {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RedisRegistry{
		client: client,
		cfg:    cfg,
		logger: logger.With(logging.Component("blocklist_redis")),
		now:    time.Now,
	}
}

// IsBlocked reports whether number matches a blocked entry.
func (r *RedisRegistry) IsBlocked(ctx context.Context, number string) (bool, error) {
	m, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	return m.Blocked(number), nil
}

// List returns the blocked entries, freshly read.
func (r *RedisRegistry) List(ctx context.Context) ([]string, error) {
	r.invalidate()
	m, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return m.Entries(), nil
}

// Add blocks number. It reports whether the entry was new.
func (r *RedisRegistry) Add(ctx context.Context, number string) (bool, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return false, fmt.Errorf("empty number")
	}
	n, err := r.client.SAdd(ctx, r.cfg.Key, number).Result()
	if err != nil {
		return false, fmt.Errorf("adding %q to %s: %w", number, r.cfg.Key, err)
	}
	r.invalidate()
	r.logger.Info("Number blocked", logging.F("number", number), logging.F("new", n > 0))
	return n > 0, nil
}

// Remove unblocks number. It reports whether the entry existed.
func (r *RedisRegistry) Remove(ctx context.Context, number string) (bool, error) {
	number = strings.TrimSpace(number)
	n, err := r.client.SRem(ctx, r.cfg.Key, number).Result()
	if err != nil {
		return false, fmt.Errorf("removing %q from %s: %w", number, r.cfg.Key, err)
	}
	r.invalidate()
	r.logger.Info("Number unblocked", logging.F("number", number), logging.F("existed", n > 0))
	return n > 0, nil
}

func (r *RedisRegistry) load(ctx context.Context) (*Matcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.matcher != nil && r.now().Sub(r.loadedAt) < r.cfg.CacheTTL {
		return r.matcher, nil
	}

	members, err := r.client.SMembers(ctx, r.cfg.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.cfg.Key, err)
	}
	r.matcher = NewMatcher(members, r.cfg.ComparableDigits)
	r.loadedAt = r.now()
	r.logger.Debug("Blocklist loaded", logging.F("entries", r.matcher.Len()))
	return r.matcher, nil
}

func (r *RedisRegistry) invalidate() {
	r.mu.Lock()
	r.matcher = nil
	r.mu.Unlock()
}
