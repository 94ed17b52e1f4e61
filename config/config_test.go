package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/otherjamesbrown/recents/pkg/phone"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.OutputFormat != DefaultOutputFormat {
		t.Errorf("OutputFormat = %v, want %v", cfg.OutputFormat, DefaultOutputFormat)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Store.Driver = %v, want sqlite", cfg.Store.Driver)
	}
	if cfg.Blocklist.Backend != BlocklistFile {
		t.Errorf("Blocklist.Backend = %v, want file", cfg.Blocklist.Backend)
	}
	if cfg.Aggregation.PageSize != recents.DefaultMaxSize {
		t.Errorf("PageSize = %d, want %d", cfg.Aggregation.PageSize, recents.DefaultMaxSize)
	}
	if cfg.Aggregation.ComparableDigits != phone.DefaultComparableDigits {
		t.Errorf("ComparableDigits = %d, want %d", cfg.Aggregation.ComparableDigits, phone.DefaultComparableDigits)
	}
	if cfg.Aggregation.GroupSubsequentCalls {
		t.Error("GroupSubsequentCalls should be false by default")
	}
	if !cfg.Permissions.ReadCallLog {
		t.Error("ReadCallLog should be granted by default")
	}
	if cfg.Permissions.WriteCallLog != WritePrompt {
		t.Errorf("WriteCallLog = %v, want prompt", cfg.Permissions.WriteCallLog)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

// TestOutputFormat_IsValid verifies output format validation.
func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{OutputFormatText, true},
		{OutputFormatJSON, true},
		{OutputFormatYAML, true},
		{"invalid", false},
		{"", false},
		{"JSON", false}, // Case sensitive
	}

	for _, tc := range tests {
		if got := tc.format.IsValid(); got != tc.valid {
			t.Errorf("OutputFormat(%q).IsValid() = %v, want %v", tc.format, got, tc.valid)
		}
	}
}

func TestLoadConfigFrom_MissingFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfigFrom(filepath.Join(dir, DefaultConfigFile))
	if err != nil {
		t.Fatalf("LoadConfigFrom() error = %v", err)
	}

	if cfg.Store.SQLitePath != filepath.Join(dir, DefaultSQLiteFile) {
		t.Errorf("SQLitePath = %q, want it under the config dir", cfg.Store.SQLitePath)
	}
	if cfg.Blocklist.File != filepath.Join(dir, DefaultBlocklistFile) {
		t.Errorf("Blocklist.File = %q, want it under the config dir", cfg.Blocklist.File)
	}
}

func TestLoadConfigFrom_File(t *testing.T) {
	path := writeConfig(t, `
output_format: json
timeout: 45s
store:
  driver: postgres
database:
  host: db.internal
  port: 6432
  name: calls
  user: reader
redis:
  addr: localhost:6379
  publish_events: true
blocklist:
  backend: redis
  redis_key: phone:blocked
  cache_ttl: 10s
sim_accounts:
  - id: 1
    handle_id: sim-a
    color: 16711680
    label: Work
aggregation:
  query_limit: 150
  comparable_digits: 7
  unknown_label: Private number
  page_size: 50
  group_subsequent_calls: true
workers:
  count: 4
  queue_size: 8
  shutdown_timeout: 3s
permissions:
  read_call_log: false
  write_call_log: allow
serve:
  http_addr: 127.0.0.1:8080
`)

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom() error = %v", err)
	}

	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v", cfg.OutputFormat)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.Store.Driver != DriverPostgres || cfg.Database.Host != "db.internal" || cfg.Database.Port != 6432 {
		t.Errorf("store/database not loaded: %+v %+v", cfg.Store, cfg.Database)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("unset database keys should keep defaults, MaxConns = %d", cfg.Database.MaxConns)
	}
	if cfg.Blocklist.Backend != BlocklistRedis || cfg.Blocklist.RedisKey != "phone:blocked" || cfg.Blocklist.CacheTTL != 10*time.Second {
		t.Errorf("blocklist not loaded: %+v", cfg.Blocklist)
	}
	if !cfg.Redis.PublishEvents {
		t.Error("publish_events not loaded")
	}
	if len(cfg.SimAccounts) != 1 || cfg.SimAccounts[0].HandleID != "sim-a" || cfg.SimAccounts[0].Color != 16711680 {
		t.Errorf("sim accounts not loaded: %+v", cfg.SimAccounts)
	}
	agg := cfg.Aggregation
	if agg.QueryLimit != 150 || agg.ComparableDigits != 7 || agg.UnknownLabel != "Private number" {
		t.Errorf("aggregation options not loaded: %+v", agg.Options)
	}
	if agg.PageSize != 50 || !agg.GroupSubsequentCalls {
		t.Errorf("aggregation paging not loaded: %+v", agg)
	}
	if cfg.Workers.Count != 4 || cfg.Workers.QueueSize != 8 || cfg.Workers.ShutdownTimeout != 3*time.Second {
		t.Errorf("workers not loaded: %+v", cfg.Workers)
	}
	if cfg.Permissions.ReadCallLog || cfg.Permissions.WriteCallLog != WriteAllow {
		t.Errorf("permissions not loaded: %+v", cfg.Permissions)
	}
	if cfg.Serve.HTTPAddr != "127.0.0.1:8080" || cfg.Serve.GRPCAddr != DefaultGRPCAddr {
		t.Errorf("serve not loaded: %+v", cfg.Serve)
	}
}

func TestLoadConfigFrom_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "output_format: yaml\naggregation:\n  page_size: 50\n")

	t.Setenv("RECENTS_OUTPUT_FORMAT", "json")
	t.Setenv("RECENTS_PAGE_SIZE", "25")
	t.Setenv("RECENTS_GROUP_SUBSEQUENT_CALLS", "true")
	t.Setenv("RECENTS_READ_CALL_LOG", "false")
	t.Setenv("RECENTS_DEBUG", "1")
	t.Setenv("RECENTS_DB_HOST", "env-host")
	t.Setenv("RECENTS_SQLITE_PATH", "/tmp/env.db")

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom() error = %v", err)
	}

	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.Aggregation.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.Aggregation.PageSize)
	}
	if !cfg.Aggregation.GroupSubsequentCalls {
		t.Error("GroupSubsequentCalls should come from env")
	}
	if cfg.Permissions.ReadCallLog {
		t.Error("ReadCallLog should be revoked by env")
	}
	if !cfg.Debug {
		t.Error("Debug should come from env")
	}
	if cfg.Database.Host != "env-host" {
		t.Errorf("Database.Host = %q, want env-host", cfg.Database.Host)
	}
	if cfg.Store.SQLitePath != "/tmp/env.db" {
		t.Errorf("SQLitePath = %q", cfg.Store.SQLitePath)
	}
}

func TestLoadConfigFrom_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "output_format: [json\n")

	if _, err := LoadConfigFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr string
	}{
		{"bad output format", func(c *CLIConfig) { c.OutputFormat = "xml" }, "output_format"},
		{"zero timeout", func(c *CLIConfig) { c.Timeout = 0 }, "timeout"},
		{"unknown driver", func(c *CLIConfig) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without host", func(c *CLIConfig) {
			c.Store.Driver = DriverPostgres
			c.Database.Host = ""
		}, "database"},
		{"redis blocklist without redis", func(c *CLIConfig) { c.Blocklist.Backend = BlocklistRedis }, "redis.addr"},
		{"unknown blocklist", func(c *CLIConfig) { c.Blocklist.Backend = "ldap" }, "blocklist.backend"},
		{"unknown write mode", func(c *CLIConfig) { c.Permissions.WriteCallLog = "sometimes" }, "write_call_log"},
		{"zero page size", func(c *CLIConfig) { c.Aggregation.PageSize = 0 }, "page_size"},
		{"zero query limit", func(c *CLIConfig) { c.Aggregation.QueryLimit = 0 }, "query_limit"},
		{"zero digits", func(c *CLIConfig) { c.Aggregation.ComparableDigits = 0 }, "comparable_digits"},
		{"negative workers", func(c *CLIConfig) { c.Workers.Count = -1 }, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir_EnvOverride(t *testing.T) {
	t.Setenv("RECENTS_CONFIG_DIR", "/custom/recents")

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if dir != "/custom/recents" {
		t.Errorf("ConfigDir() = %q", dir)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error = %v", err)
	}
	if path != filepath.Join("/custom/recents", DefaultConfigFile) {
		t.Errorf("ConfigPath() = %q", path)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~/calls.db", filepath.Join(home, "calls.db")},
		{"~", home},
		{"~other/x", "~other/x"},
	}

	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSaveConfig_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultConfigFile)

	cfg := DefaultConfig()
	cfg.OutputFormat = OutputFormatJSON
	cfg.Blocklist.Backend = BlocklistNone
	cfg.Database.Password = "secret"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("saved config contains the database password")
	}

	loaded, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom() error = %v", err)
	}
	if loaded.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %q, want json", loaded.OutputFormat)
	}
	if loaded.Blocklist.Backend != BlocklistNone {
		t.Errorf("Blocklist.Backend = %q, want none", loaded.Blocklist.Backend)
	}
}
