package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lifedata/connector/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TOGGL_API_TOKEN", "")
	t.Setenv("TOGGL_WORKSPACE_ID", "")
	t.Setenv(EnvConfigPath, "")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing version",
			mutate:  func(c *Config) { c.Version = "" },
			wantErr: true,
			errMsg:  "version is required",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Warehouse.Driver = "mysql" },
			wantErr: true,
			errMsg:  "driver must be one of",
		},
		{
			name: "postgres without url",
			mutate: func(c *Config) {
				c.Warehouse.Driver = DriverPostgres
				c.Warehouse.URL = ""
			},
			wantErr: true,
			errMsg:  "url is required",
		},
		{
			name: "min conns above max",
			mutate: func(c *Config) {
				c.Warehouse.MaxConns = 2
				c.Warehouse.MinConns = 3
			},
			wantErr: true,
			errMsg:  "min_conns",
		},
		{
			name:    "zero http timeout",
			mutate:  func(c *Config) { c.HTTP.Timeout = 0 },
			wantErr: true,
			errMsg:  "timeout must be positive",
		},
		{
			name:    "bad backoff strategy",
			mutate:  func(c *Config) { c.HTTP.Backoff.Strategy = "jitter" },
			wantErr: true,
			errMsg:  "backoff strategy",
		},
		{
			name: "exponential backoff below initial",
			mutate: func(c *Config) {
				c.HTTP.Backoff.Strategy = "exponential"
				c.HTTP.Backoff.Max = 100 * time.Millisecond
			},
			wantErr: true,
			errMsg:  "backoff max",
		},
		{
			name:    "fitbit without token url",
			mutate:  func(c *Config) { c.Providers.Fitbit.OAuth.TokenURL = "" },
			wantErr: true,
			errMsg:  "fitbit: token_url is required",
		},
		{
			name:    "bad zaim start",
			mutate:  func(c *Config) { c.Providers.Zaim.MoneyAllStart = "2020/01/01" },
			wantErr: true,
			errMsg:  "money_all_start",
		},
		{
			name:    "zero schedule",
			mutate:  func(c *Config) { c.Schedules.FullHistoricalDays = 0 },
			wantErr: true,
			errMsg:  "historical lookbacks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestWarehouseDriverInference(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"", DriverSQLite},
		{"postgres://u:p@localhost:5432/db", DriverPostgres},
		{"postgresql://u:p@ep-cool-1.us-east-2.aws.neon.tech/db", DriverNeon},
	}
	for _, tt := range tests {
		w := WarehouseConfig{URL: tt.url, SQLitePath: "x.db"}
		require.NoError(t, w.Validate())
		assert.Equal(t, tt.want, w.Driver, tt.url)
	}
}

func TestParse_AppliesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte(`
version: "1"
providers:
  zaim:
    page_delay: 500ms
  toggl:
    enabled: false
`))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DriverSQLite, cfg.Warehouse.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Providers.Zaim.PageDelay)
	assert.Equal(t, 100, cfg.Providers.Zaim.PageSize)
	assert.False(t, cfg.Providers.Toggl.Enabled)
	assert.True(t, cfg.Providers.Fitbit.Enabled)
	assert.Equal(t, 60*time.Minute, cfg.Providers.Fitbit.OAuth.RefreshThreshold)
	assert.Equal(t, 30*24*time.Hour, cfg.Providers.Tanita.OAuth.TokenLifetime)
	assert.Equal(t, 365, cfg.Schedules.FullHistoricalDays)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("version: [unterminated"))
	require.Error(t, err)
	var parseErr *errors.ErrConfigParse
	assert.ErrorAs(t, err, &parseErr)
}

func TestParse_ValidationError(t *testing.T) {
	clearEnv(t)
	_, err := Parse([]byte("version: \"1\"\nwarehouse:\n  driver: oracle\n"))
	require.Error(t, err)
	var validationErr *errors.ErrConfigValidation
	assert.ErrorAs(t, err, &validationErr)
}

func TestParse_EnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/warehouse")
	t.Setenv("TOGGL_API_TOKEN", "tok")
	t.Setenv("TOGGL_WORKSPACE_ID", "42")

	cfg, err := Parse([]byte("version: \"1\"\n"))
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Warehouse.Driver)
	assert.Equal(t, "tok", cfg.Providers.Toggl.APIToken)
	assert.Equal(t, "42", cfg.Providers.Toggl.WorkspaceID)
}

func TestLoader_SubstitutesEnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAREHOUSE_FILE", "/tmp/warehouse.db")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: \"1\"\nwarehouse:\n  sqlite_path: ${WAREHOUSE_FILE}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/warehouse.db", cfg.Warehouse.SQLitePath)
}

func TestLoader_MissingFile(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := NewLoader(missing).Load()
	var notFound *errors.ErrConfigNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, missing, notFound.Path)

	t.Chdir(t.TempDir())
	cfg, err := NewDefaultLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Warehouse.Driver)
}

func TestLoadFromEnv_UsesPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"7\"\n"), 0o600))
	t.Setenv(EnvConfigPath, path)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "7", cfg.Version)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}
