package config

import (
	"fmt"
	"os"
	"time"

	"github.com/lifedata/connector/internal/errors"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config path.
const EnvConfigPath = "CONNECTOR_CONFIG_PATH"

// DefaultPath is used when neither a flag nor the environment names a file.
const DefaultPath = "config.yaml"

// Loader handles configuration loading
type Loader struct {
	path     string
	explicit bool
}

// NewLoader creates a loader for a path the user asked for explicitly.
// A missing file is an error.
func NewLoader(path string) *Loader {
	return &Loader{path: path, explicit: true}
}

// NewDefaultLoader resolves the path from the environment and tolerates a
// missing file by falling back to defaults.
func NewDefaultLoader() *Loader {
	path := os.Getenv(EnvConfigPath)
	if path != "" {
		return &Loader{path: path, explicit: true}
	}
	return &Loader{path: DefaultPath}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the configuration from the file
func (l *Loader) Load() (*Config, error) {
	content, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			if l.explicit {
				return nil, &errors.ErrConfigNotFound{Path: l.path}
			}
			return Parse([]byte("version: \"1\"\n"))
		}
		return nil, &errors.ErrFileRead{Path: l.path, Err: err}
	}

	return Parse(substituteEnvVars(content))
}

// LoadFromEnv loads configuration using path from environment variable or default
func LoadFromEnv() (*Config, error) {
	return NewDefaultLoader().Load()
}

// MustLoad loads configuration or panics on error
func MustLoad(path string) *Config {
	config, err := NewLoader(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return config
}

// Defaults returns a configuration with every default applied.
func Defaults() *Config {
	return &Config{
		Version: "1",
		Log:     LogConfig{Level: "info", Service: "connector"},
		Warehouse: WarehouseConfig{
			Schema:     "data_warehouse",
			SQLitePath: "connector.db",
			MaxConns:   4,
			Timeout:    30 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:           60 * time.Second,
			UserAgent:         "connector/1.0",
			DefaultRetryAfter: time.Second,
			Backoff: BackoffConfig{
				Strategy:   "fixed",
				Initial:    time.Second,
				Max:        30 * time.Second,
				Multiplier: 2,
			},
		},
		Metrics: MetricsConfig{Job: "connector"},
		Providers: ProvidersConfig{
			Fitbit: FitbitConfig{
				Enabled:     true,
				BaseURL:     "https://api.fitbit.com",
				DefaultDays: 7,
				OAuth: OAuth2Config{
					TokenURL:         "https://api.fitbit.com/oauth2/token",
					RefreshThreshold: 60 * time.Minute,
					TokenLifetime:    8 * time.Hour,
				},
			},
			Tanita: TanitaConfig{
				Enabled:     true,
				BaseURL:     "https://www.healthplanet.jp/status",
				DefaultDays: 30,
				OAuth: OAuth2Config{
					TokenURL:         "https://www.healthplanet.jp/oauth/token",
					RefreshThreshold: 30 * time.Minute,
					TokenLifetime:    30 * 24 * time.Hour,
				},
			},
			Zaim: ZaimConfig{
				Enabled:       true,
				BaseURL:       "https://api.zaim.net/v2",
				DefaultDays:   30,
				PageSize:      100,
				PageDelay:     300 * time.Millisecond,
				MoneyAllStart: "2020-01-01",
			},
			Toggl: TogglConfig{
				Enabled:         true,
				BaseURL:         "https://api.track.toggl.com/api/v9",
				ReportsURL:      "https://api.track.toggl.com/reports/api/v3",
				DefaultDays:     3,
				ReportPageSize:  1000,
				ReportPageDelay: time.Second,
			},
		},
		Schedules: SchedulesConfig{
			Daily: DailySchedule{
				TogglTimeEntriesDays: 3,
				FitbitDays:           7,
				TanitaDays:           30,
				ZaimDays:             30,
			},
			WeeklyHistoricalDays: 30,
			FullHistoricalDays:   365,
		},
	}
}

// Parse parses configuration from byte slice
func Parse(data []byte) (*Config, error) {
	config := Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, &errors.ErrConfigParse{Err: err}
	}

	applyEnvFallbacks(config)

	if err := config.Validate(); err != nil {
		return nil, &errors.ErrConfigValidation{Err: err}
	}

	return config, nil
}

// applyEnvFallbacks fills secrets that are usually kept out of the file.
func applyEnvFallbacks(c *Config) {
	if c.Warehouse.URL == "" {
		c.Warehouse.URL = os.Getenv("DATABASE_URL")
	}
	if c.Providers.Toggl.APIToken == "" {
		c.Providers.Toggl.APIToken = os.Getenv("TOGGL_API_TOKEN")
	}
	if c.Providers.Toggl.WorkspaceID == "" {
		c.Providers.Toggl.WorkspaceID = os.Getenv("TOGGL_WORKSPACE_ID")
	}
}

func substituteEnvVars(content []byte) []byte {
	return []byte(os.ExpandEnv(string(content)))
}
