package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TASKBOARD_API_BASE_URL.
const EnvPrefix = "TASKBOARD"

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Journal JournalConfig `yaml:"journal" mapstructure:"journal"`
	Board   BoardConfig   `yaml:"board" mapstructure:"board"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	ConsoleDir      string        `yaml:"console_dir" mapstructure:"console_dir"`
}

// APIConfig points at the park API that owns the tasks.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Token   string        `yaml:"token" mapstructure:"token"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// JournalConfig selects the move journal database.
type JournalConfig struct {
	Driver    string        `yaml:"driver" mapstructure:"driver"`
	DSN       string        `yaml:"dsn" mapstructure:"dsn"`
	Retention time.Duration `yaml:"retention" mapstructure:"retention"`
}

// BoardConfig tunes board sessions.
type BoardConfig struct {
	DueSoonWindow time.Duration `yaml:"due_soon_window" mapstructure:"due_soon_window"`
	InboxSize     int           `yaml:"inbox_size" mapstructure:"inbox_size"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		API: APIConfig{
			BaseURL: "http://localhost:3000/api",
			Timeout: 10 * time.Second,
		},
		Journal: JournalConfig{
			Driver:    "sqlite3",
			DSN:       "data/taskboard.db",
			Retention: 30 * 24 * time.Hour,
		},
		Board: BoardConfig{
			DueSoonWindow: 72 * time.Hour,
			InboxSize:     50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path, if any, and applies TASKBOARD_*
// environment overrides on top of the defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.console_dir", d.Server.ConsoleDir)
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.token", d.API.Token)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("journal.driver", d.Journal.Driver)
	v.SetDefault("journal.dsn", d.Journal.DSN)
	v.SetDefault("journal.retention", d.Journal.Retention)
	v.SetDefault("board.due_soon_window", d.Board.DueSoonWindow)
	v.SetDefault("board.inbox_size", d.Board.InboxSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url must not be empty"))
	}
	switch c.Journal.Driver {
	case "sqlite3", "mysql", "none":
	default:
		errs = append(errs, fmt.Errorf("journal.driver %q is not one of sqlite3, mysql, none", c.Journal.Driver))
	}
	if c.Journal.Driver != "none" && c.Journal.DSN == "" {
		errs = append(errs, errors.New("journal.dsn must not be empty"))
	}
	if c.Board.InboxSize <= 0 {
		errs = append(errs, errors.New("board.inbox_size must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(raw string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", raw, err)
	}
	return lvl, nil
}

// WriteDefault writes the default configuration as YAML. Existing files are
// left untouched unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	body, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	content := "# Task board configuration\n# Every key can be overridden with " + EnvPrefix + "_<SECTION>_<KEY>.\n" + string(body)
	return os.WriteFile(path, []byte(content), 0o644)
}
