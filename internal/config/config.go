package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full server configuration, loadable from a YAML file with
// environment variable overrides (PROJECTGM_ prefix, dots become
// underscores).
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Data    DataConfig    `mapstructure:"data"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Match   MatchConfig   `mapstructure:"match"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type DataConfig struct {
	CardsPath     string `mapstructure:"cards_path"`
	AgentDecksDir string `mapstructure:"agent_decks_dir"`
}

// ArchiveConfig selects where finished match records go: "file" (default),
// "postgres", or "none".
type ArchiveConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type MatchConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	IdleCheckTick time.Duration `mapstructure:"idle_check_tick"`
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads configuration from the given file path. A missing file is not
// an error; defaults and environment variables still apply. A .env file in
// the working directory is folded into the environment first.
func Load(path string) (*Config, error) {
	godotenv.Load()

	v := viper.New()
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("data.cards_path", "data/cards.json")
	v.SetDefault("data.agent_decks_dir", "data/decks")
	v.SetDefault("archive.backend", "file")
	v.SetDefault("archive.dir", "match_logs")
	v.SetDefault("archive.postgres_dsn", "")
	v.SetDefault("match.idle_timeout", 15*time.Minute)
	v.SetDefault("match.idle_check_tick", time.Minute)

	v.SetEnvPrefix("PROJECTGM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
