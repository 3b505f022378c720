package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Telegram  Telegram  `yaml:"telegram"`
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Theta     Theta     `yaml:"theta"`
	Quotes    Quotes    `yaml:"quotes"`
	Dashboard Dashboard `yaml:"dashboard"`
	Export    Export    `yaml:"export"`
	Logging   Logging   `yaml:"logging"`
}

type Telegram struct {
	Token            string `yaml:"token"`
	WebhookPublicURL string `yaml:"webhook_public_url"`
}

type Server struct {
	Port string `yaml:"port"`
}

type Storage struct {
	DBPath string `yaml:"db_path"`
}

// Theta points at the local Theta Terminal REST API.
type Theta struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Quotes struct {
	Provider string        `yaml:"provider"` // yahoo | alpaca
	Timeout  time.Duration `yaml:"timeout"`
	Alpaca   Alpaca        `yaml:"alpaca"`
}

type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

type Dashboard struct {
	DefaultStart    string        `yaml:"default_start"`
	RightSelectable *bool         `yaml:"right_selectable"`
	PerPanelStyles  *bool         `yaml:"per_panel_styles"`
	ChartCacheTTL   time.Duration `yaml:"chart_cache_ttl"`
	RenderTimeout   time.Duration `yaml:"render_timeout"`
}

type Export struct {
	Dir string `yaml:"dir"`
}

type Logging struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Console    *bool  `yaml:"console"`
}

// Load reads the YAML file at path (a missing file is not an error), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads the file named by CONFIG_PATH, or DefaultPath.
func FromEnv() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("WEBHOOK_PUBLIC_URL"); v != "" {
		cfg.Telegram.WebhookPublicURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("THETA_BASE_URL"); v != "" {
		cfg.Theta.BaseURL = v
	}
	if v := os.Getenv("QUOTE_PROVIDER"); v != "" {
		cfg.Quotes.Provider = v
	}
	if v := os.Getenv("EXPORT_DIR"); v != "" {
		cfg.Export.Dir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.FilePath = v
	}
	if v := os.Getenv("RIGHT_SELECTABLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Dashboard.RightSelectable = &b
		}
	}
	if v := os.Getenv("PER_PANEL_STYLES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Dashboard.PerPanelStyles = &b
		}
	}

	// Standard Alpaca SDK variable names.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Quotes.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Quotes.Alpaca.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "9095"
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "/app/data/options.db"
	}
	if cfg.Theta.BaseURL == "" {
		cfg.Theta.BaseURL = "http://127.0.0.1:25510"
	}
	if cfg.Theta.Timeout <= 0 {
		cfg.Theta.Timeout = 30 * time.Second
	}
	if cfg.Quotes.Provider == "" {
		cfg.Quotes.Provider = "yahoo"
	}
	if cfg.Quotes.Timeout <= 0 {
		cfg.Quotes.Timeout = 30 * time.Second
	}
	if cfg.Quotes.Alpaca.Feed == "" {
		cfg.Quotes.Alpaca.Feed = "iex"
	}
	if cfg.Dashboard.DefaultStart == "" {
		cfg.Dashboard.DefaultStart = "2023-01-01"
	}
	if cfg.Dashboard.RightSelectable == nil {
		cfg.Dashboard.RightSelectable = boolPtr(true)
	}
	if cfg.Dashboard.PerPanelStyles == nil {
		cfg.Dashboard.PerPanelStyles = boolPtr(true)
	}
	if cfg.Dashboard.ChartCacheTTL <= 0 {
		cfg.Dashboard.ChartCacheTTL = 60 * time.Second
	}
	if cfg.Dashboard.RenderTimeout <= 0 {
		cfg.Dashboard.RenderTimeout = 90 * time.Second
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = os.TempDir()
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 50
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAgeDays <= 0 {
		cfg.Logging.MaxAgeDays = 28
	}
	if cfg.Logging.Console == nil {
		cfg.Logging.Console = boolPtr(true)
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("config: missing telegram token (TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.WebhookPublicURL == "" {
		return errors.New("config: missing webhook public url (WEBHOOK_PUBLIC_URL)")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("config: invalid port %q", c.Server.Port)
	}
	switch strings.ToLower(c.Quotes.Provider) {
	case "yahoo":
	case "alpaca":
		if c.Quotes.Alpaca.APIKey == "" || c.Quotes.Alpaca.APISecret == "" {
			return errors.New("config: alpaca quote provider needs api_key and api_secret")
		}
	default:
		return fmt.Errorf("config: unknown quote provider %q", c.Quotes.Provider)
	}
	if _, err := c.DefaultStart(); err != nil {
		return err
	}
	return nil
}

// DefaultStart parses dashboard.default_start.
func (c *Config) DefaultStart() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Dashboard.DefaultStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: invalid default_start %q", c.Dashboard.DefaultStart)
	}
	return t, nil
}

func boolPtr(b bool) *bool { return &b }
