// Package config provides configuration management for the recents command-line tool.
// It supports loading configuration from a YAML file and environment variables;
// command-line flags are applied on top by the cmd package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/recents/pkg/db"
	"github.com/otherjamesbrown/recents/pkg/recents"
	"github.com/otherjamesbrown/recents/pkg/sim"
	"github.com/otherjamesbrown/recents/pkg/workers"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable table output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Blocklist backends.
const (
	BlocklistNone  = "none"
	BlocklistFile  = "file"
	BlocklistRedis = "redis"
)

// Write permission modes.
const (
	WritePrompt = "prompt"
	WriteAllow  = "allow"
	WriteDeny   = "deny"
)

// Default configuration values.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultOutputFormat  = OutputFormatText
	DefaultConfigDir     = ".recents"
	DefaultConfigFile    = "config.yaml"
	DefaultSQLiteFile    = "calls.db"
	DefaultBlocklistFile = "blocklist.yaml"
	DefaultHTTPAddr      = ":9090"
	DefaultGRPCAddr      = ":9091"
	DefaultHealthEvery   = 15 * time.Second
)

// StoreConfig selects where call records live.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `yaml:"driver"`

	// SQLitePath is the database file for the sqlite driver.
	// Defaults to <config dir>/calls.db.
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// RedisConfig holds the Redis connection used for the blocklist and events.
// The password comes from the credential store, never from the file.
type RedisConfig struct {
	Addr string `yaml:"addr,omitempty"`
	DB   int    `yaml:"db,omitempty"`

	// PublishEvents publishes call-history changes when Addr is set.
	PublishEvents bool `yaml:"publish_events"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// BlocklistConfig selects the blocked-number registry.
type BlocklistConfig struct {
	// Backend is "file" (default), "redis" or "none".
	Backend string `yaml:"backend"`

	// File is the YAML blocklist for the file backend.
	// Defaults to <config dir>/blocklist.yaml.
	File string `yaml:"file,omitempty"`

	// RedisKey is the set used by the redis backend.
	RedisKey string `yaml:"redis_key,omitempty"`

	// CacheTTL bounds how stale the redis backend may be.
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
}

// AggregationConfig tunes how pages are built.
type AggregationConfig struct {
	recents.Options `yaml:",inline"`

	// PageSize is the maximum number of entries per page.
	PageSize int `yaml:"page_size"`

	// GroupSubsequentCalls folds consecutive calls from the same party.
	GroupSubsequentCalls bool `yaml:"group_subsequent_calls"`
}

// PermissionsConfig models the platform's call-log permissions.
type PermissionsConfig struct {
	ReadCallLog bool `yaml:"read_call_log"`

	// WriteCallLog is "prompt" (ask on a terminal), "allow" or "deny".
	WriteCallLog string `yaml:"write_call_log"`
}

// ServeConfig configures `recents serve`.
type ServeConfig struct {
	HTTPAddr       string        `yaml:"http_addr"`
	GRPCAddr       string        `yaml:"grpc_addr"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// LogJSON switches log output from console to JSON.
	LogJSON bool `yaml:"log_json,omitempty"`

	// Timeout bounds a single command.
	Timeout time.Duration `yaml:"timeout"`

	Store    StoreConfig `yaml:"store"`
	Database db.Config   `yaml:"database"`

	// PrivateContactsDSN points at the private contacts database. Empty disables it.
	PrivateContactsDSN string `yaml:"private_contacts_dsn,omitempty"`

	// ContactsFile is a YAML list of contacts used when the store is sqlite.
	ContactsFile string `yaml:"contacts_file,omitempty"`

	SimAccounts []sim.Account `yaml:"sim_accounts,omitempty"`

	Redis       RedisConfig       `yaml:"redis"`
	Blocklist   BlocklistConfig   `yaml:"blocklist"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Workers     workers.Config    `yaml:"workers"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Serve       ServeConfig       `yaml:"serve"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		OutputFormat: DefaultOutputFormat,
		Timeout:      DefaultTimeout,
		Store:        StoreConfig{Driver: DriverSQLite},
		Database:     *db.DefaultConfig(),
		Blocklist:    BlocklistConfig{Backend: BlocklistFile},
		Aggregation: AggregationConfig{
			Options:  recents.DefaultOptions(),
			PageSize: recents.DefaultMaxSize,
		},
		Workers: workers.DefaultConfig(),
		Permissions: PermissionsConfig{
			ReadCallLog:  true,
			WriteCallLog: WritePrompt,
		},
		Serve: ServeConfig{
			HTTPAddr:       DefaultHTTPAddr,
			GRPCAddr:       DefaultGRPCAddr,
			HealthInterval: DefaultHealthEvery,
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $RECENTS_CONFIG_DIR if set, otherwise ~/.recents
func ConfigDir() (string, error) {
	if dir := os.Getenv("RECENTS_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.recents/config.yaml or $RECENTS_CONFIG_DIR/config.yaml)
// 3. Environment variables (RECENTS_*, RECENTS_DB_* for the database)
func LoadConfig() (*CLIConfig, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom is LoadConfig with an explicit file. A missing file is not an error.
func LoadConfigFrom(configPath string) (*CLIConfig, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.resolvePaths(filepath.Dir(configPath)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile decodes the YAML file over the defaults already in cfg.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("RECENTS_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("RECENTS_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = timeout
		}
	}

	if v, ok := envBool("RECENTS_DEBUG"); ok {
		cfg.Debug = v
	}

	if v, ok := envBool("RECENTS_LOG_JSON"); ok {
		cfg.LogJSON = v
	}

	if v := os.Getenv("RECENTS_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}

	if v := os.Getenv("RECENTS_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}

	if v := os.Getenv("RECENTS_PRIVATE_CONTACTS_DSN"); v != "" {
		cfg.PrivateContactsDSN = v
	}

	if v := os.Getenv("RECENTS_CONTACTS_FILE"); v != "" {
		cfg.ContactsFile = v
	}

	if v := os.Getenv("RECENTS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if v := os.Getenv("RECENTS_BLOCKLIST_BACKEND"); v != "" {
		cfg.Blocklist.Backend = v
	}

	if v := os.Getenv("RECENTS_BLOCKLIST_FILE"); v != "" {
		cfg.Blocklist.File = v
	}

	if v := os.Getenv("RECENTS_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Aggregation.PageSize = n
		}
	}

	if v := os.Getenv("RECENTS_COMPARABLE_DIGITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Aggregation.ComparableDigits = n
		}
	}

	if v, ok := envBool("RECENTS_GROUP_SUBSEQUENT_CALLS"); ok {
		cfg.Aggregation.GroupSubsequentCalls = v
	}

	if v, ok := envBool("RECENTS_READ_CALL_LOG"); ok {
		cfg.Permissions.ReadCallLog = v
	}

	if v := os.Getenv("RECENTS_WRITE_CALL_LOG"); v != "" {
		cfg.Permissions.WriteCallLog = v
	}

	if v := os.Getenv("RECENTS_HTTP_ADDR"); v != "" {
		cfg.Serve.HTTPAddr = v
	}

	if v := os.Getenv("RECENTS_GRPC_ADDR"); v != "" {
		cfg.Serve.GRPCAddr = v
	}

	cfg.Database.ApplyEnv()
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}

// resolvePaths expands ~ and fills file locations that default into dir.
func (c *CLIConfig) resolvePaths(dir string) error {
	var err error
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(dir, DefaultSQLiteFile)
	}
	if c.Store.SQLitePath, err = ExpandPath(c.Store.SQLitePath); err != nil {
		return err
	}
	if c.Blocklist.File == "" {
		c.Blocklist.File = filepath.Join(dir, DefaultBlocklistFile)
	}
	if c.Blocklist.File, err = ExpandPath(c.Blocklist.File); err != nil {
		return err
	}
	if c.ContactsFile, err = ExpandPath(c.ContactsFile); err != nil {
		return err
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	default:
		return fmt.Errorf("invalid store.driver: %q (must be sqlite or postgres)", c.Store.Driver)
	}

	switch c.Blocklist.Backend {
	case BlocklistNone, BlocklistFile:
	case BlocklistRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("blocklist.backend redis requires redis.addr")
		}
	default:
		return fmt.Errorf("invalid blocklist.backend: %q (must be file, redis, or none)", c.Blocklist.Backend)
	}

	switch c.Permissions.WriteCallLog {
	case WritePrompt, WriteAllow, WriteDeny:
	default:
		return fmt.Errorf("invalid permissions.write_call_log: %q (must be prompt, allow, or deny)", c.Permissions.WriteCallLog)
	}

	if c.Aggregation.PageSize <= 0 {
		return fmt.Errorf("aggregation.page_size must be positive")
	}
	if c.Aggregation.QueryLimit <= 0 {
		return fmt.Errorf("aggregation.query_limit must be positive")
	}
	if c.Aggregation.ComparableDigits <= 0 {
		return fmt.Errorf("aggregation.comparable_digits must be positive")
	}

	if c.Serve.HealthInterval <= 0 {
		return fmt.Errorf("serve.health_interval must be positive")
	}

	if c.Workers.Count < 0 || c.Workers.QueueSize < 0 {
		return fmt.Errorf("workers.count and workers.queue_size must not be negative")
	}

	return nil
}

// SaveConfig writes cfg to path as YAML, creating the directory if needed.
// The database password is never written.
func SaveConfig(cfg *CLIConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
