package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Log       LogConfig       `yaml:"log"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Providers ProvidersConfig `yaml:"providers"`
	Schedules SchedulesConfig `yaml:"schedules"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Warehouse drivers.
const (
	DriverPostgres = "postgres"
	DriverNeon     = "neon"
	DriverSQLite   = "sqlite"
)

// WarehouseConfig selects and configures the warehouse executor.
type WarehouseConfig struct {
	Driver     string        `yaml:"driver"`
	URL        string        `yaml:"url"`
	Schema     string        `yaml:"schema"`
	SQLitePath string        `yaml:"sqlite_path"`
	MaxConns   int32         `yaml:"max_conns"`
	MinConns   int32         `yaml:"min_conns"`
	Timeout    time.Duration `yaml:"timeout"`
}

// HTTPConfig contains outbound HTTP client settings.
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UseUTLS           bool          `yaml:"use_utls"`
	UserAgent         string        `yaml:"user_agent"`
	DefaultRetryAfter time.Duration `yaml:"default_retry_after"`
	Backoff           BackoffConfig `yaml:"backoff"`
}

// BackoffConfig describes the delay before retrying a 5xx response.
type BackoffConfig struct {
	Strategy   string        `yaml:"strategy"` // "fixed" or "exponential"
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
}

// MetricsConfig controls where run metrics are exported.
type MetricsConfig struct {
	TextfilePath   string `yaml:"textfile_path"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// ProvidersConfig groups per-provider settings.
type ProvidersConfig struct {
	Fitbit FitbitConfig `yaml:"fitbit"`
	Tanita TanitaConfig `yaml:"tanita"`
	Zaim   ZaimConfig   `yaml:"zaim"`
	Toggl  TogglConfig  `yaml:"toggl"`
}

// OAuth2Config holds token endpoint tuning shared by OAuth2 providers.
type OAuth2Config struct {
	TokenURL         string        `yaml:"token_url"`
	RefreshThreshold time.Duration `yaml:"refresh_threshold"`
	TokenLifetime    time.Duration `yaml:"token_lifetime"`
}

type FitbitConfig struct {
	Enabled     bool         `yaml:"enabled"`
	BaseURL     string       `yaml:"base_url"`
	DefaultDays int          `yaml:"default_days"`
	OAuth       OAuth2Config `yaml:"oauth"`
}

type TanitaConfig struct {
	Enabled     bool         `yaml:"enabled"`
	BaseURL     string       `yaml:"base_url"`
	DefaultDays int          `yaml:"default_days"`
	OAuth       OAuth2Config `yaml:"oauth"`
}

type ZaimConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BaseURL       string        `yaml:"base_url"`
	DefaultDays   int           `yaml:"default_days"`
	PageSize      int           `yaml:"page_size"`
	PageDelay     time.Duration `yaml:"page_delay"`
	MoneyAllStart string        `yaml:"money_all_start"`
}

type TogglConfig struct {
	Enabled         bool          `yaml:"enabled"`
	BaseURL         string        `yaml:"base_url"`
	ReportsURL      string        `yaml:"reports_url"`
	APIToken        string        `yaml:"api_token"`
	WorkspaceID     string        `yaml:"workspace_id"`
	DefaultDays     int           `yaml:"default_days"`
	ReportPageSize  int           `yaml:"report_page_size"`
	ReportPageDelay time.Duration `yaml:"report_page_delay"`
}

// SchedulesConfig sets the lookback of the aggregate entry points.
type SchedulesConfig struct {
	Daily                DailySchedule `yaml:"daily"`
	WeeklyHistoricalDays int           `yaml:"weekly_historical_days"`
	FullHistoricalDays   int           `yaml:"full_historical_days"`
}

type DailySchedule struct {
	TogglTimeEntriesDays int `yaml:"toggl_time_entries_days"`
	FitbitDays           int `yaml:"fitbit_days"`
	TanitaDays           int `yaml:"tanita_days"`
	ZaimDays             int `yaml:"zaim_days"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if err := c.Warehouse.Validate(); err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}

	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers: %w", err)
	}

	if err := c.Schedules.Validate(); err != nil {
		return fmt.Errorf("schedules: %w", err)
	}

	return nil
}

// Validate validates warehouse configuration.
func (w *WarehouseConfig) Validate() error {
	w.Driver = strings.ToLower(strings.TrimSpace(w.Driver))
	if w.Driver == "" {
		switch {
		case strings.Contains(w.URL, ".neon.tech"):
			w.Driver = DriverNeon
		case w.URL != "":
			w.Driver = DriverPostgres
		default:
			w.Driver = DriverSQLite
		}
	}

	switch w.Driver {
	case DriverPostgres, DriverNeon:
		if w.URL == "" {
			return fmt.Errorf("url is required for driver %s", w.Driver)
		}
	case DriverSQLite:
		if w.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for driver sqlite")
		}
	default:
		return fmt.Errorf("driver must be one of postgres, neon, sqlite")
	}

	if w.MaxConns < 0 || w.MinConns < 0 {
		return fmt.Errorf("pool sizes must not be negative")
	}
	if w.MaxConns > 0 && w.MinConns > w.MaxConns {
		return fmt.Errorf("min_conns must not exceed max_conns")
	}
	if w.Timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// Validate validates HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if h.DefaultRetryAfter < 0 {
		return fmt.Errorf("default_retry_after must not be negative")
	}
	switch h.Backoff.Strategy {
	case "fixed":
	case "exponential":
		if h.Backoff.Multiplier < 1 {
			return fmt.Errorf("backoff multiplier must be at least 1")
		}
		if h.Backoff.Max < h.Backoff.Initial {
			return fmt.Errorf("backoff max must not be below initial")
		}
	default:
		return fmt.Errorf("backoff strategy must be fixed or exponential")
	}
	if h.Backoff.Initial < 0 {
		return fmt.Errorf("backoff initial must not be negative")
	}
	return nil
}

// Validate validates provider configuration.
func (p *ProvidersConfig) Validate() error {
	if p.Fitbit.DefaultDays <= 0 || p.Tanita.DefaultDays <= 0 ||
		p.Zaim.DefaultDays <= 0 || p.Toggl.DefaultDays <= 0 {
		return fmt.Errorf("default_days must be positive")
	}
	if err := p.Fitbit.OAuth.validate(); err != nil {
		return fmt.Errorf("fitbit: %w", err)
	}
	if err := p.Tanita.OAuth.validate(); err != nil {
		return fmt.Errorf("tanita: %w", err)
	}
	if p.Zaim.PageSize <= 0 {
		return fmt.Errorf("zaim: page_size must be positive")
	}
	if _, err := time.Parse("2006-01-02", p.Zaim.MoneyAllStart); err != nil {
		return fmt.Errorf("zaim: money_all_start must be YYYY-MM-DD")
	}
	if p.Toggl.ReportPageSize <= 0 {
		return fmt.Errorf("toggl: report_page_size must be positive")
	}
	if p.Zaim.PageDelay < 0 || p.Toggl.ReportPageDelay < 0 {
		return fmt.Errorf("page delays must not be negative")
	}
	return nil
}

func (o *OAuth2Config) validate() error {
	if o.TokenURL == "" {
		return fmt.Errorf("token_url is required")
	}
	if o.RefreshThreshold <= 0 {
		return fmt.Errorf("refresh_threshold must be positive")
	}
	if o.TokenLifetime <= 0 {
		return fmt.Errorf("token_lifetime must be positive")
	}
	return nil
}

// Validate validates schedule configuration.
func (s *SchedulesConfig) Validate() error {
	d := s.Daily
	if d.TogglTimeEntriesDays <= 0 || d.FitbitDays <= 0 || d.TanitaDays <= 0 || d.ZaimDays <= 0 {
		return fmt.Errorf("daily lookbacks must be positive")
	}
	if s.WeeklyHistoricalDays <= 0 || s.FullHistoricalDays <= 0 {
		return fmt.Errorf("historical lookbacks must be positive")
	}
	return nil
}
