package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string         `yaml:"discord_token"`
	DatabasePath  string         `yaml:"database_path"`
	LogLevel      string         `yaml:"log_level"`
	RetentionDays int            `yaml:"retention_days"`
	Health        HealthConfig   `yaml:"health"`
	RemoteFeed    FeedConfig     `yaml:"remote_feed"`
	Cache         CacheConfig    `yaml:"cache"`
	Activity      ActivityConfig `yaml:"activity"`
	Dispatch      DispatchConfig `yaml:"dispatch"`
	Fetch         FetchConfig    `yaml:"fetch"`
	GuildDefaults GuildConfig    `yaml:"guild_defaults"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type FeedConfig struct {
	URL            string `yaml:"url"`
	RefreshMinutes int    `yaml:"refresh_minutes"`
}

type CacheConfig struct {
	GuildTTLMinutes int `yaml:"guild_ttl_minutes"`
	MaxGuilds       int `yaml:"max_guilds"`
}

type ActivityConfig struct {
	SweepMinutes     int `yaml:"sweep_minutes"`
	IdleGraceMinutes int `yaml:"idle_grace_minutes"`
}

type DispatchConfig struct {
	RatePerSecond      float64 `yaml:"rate_per_second"`
	Burst              int     `yaml:"burst"`
	CooldownSeconds    int     `yaml:"cooldown_seconds"`
	RetryBackoffMillis int     `yaml:"retry_backoff_millis"`
}

type FetchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/modguard.db",
		LogLevel:      "info",
		RetentionDays: 14,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		RemoteFeed:    FeedConfig{URL: "", RefreshMinutes: 60},
		Cache:         CacheConfig{GuildTTLMinutes: 15, MaxGuilds: 4096},
		Activity:      ActivityConfig{SweepMinutes: 10, IdleGraceMinutes: 5},
		Dispatch:      DispatchConfig{RatePerSecond: 5, Burst: 10, CooldownSeconds: 30, RetryBackoffMillis: 500},
		Fetch:         FetchConfig{TimeoutSeconds: 3},
		GuildDefaults: DefaultGuildConfig(),
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	cfg.GuildDefaults = cfg.GuildDefaults.Normalized()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.RemoteFeed.URL = envString("REMOTE_FEED_URL", cfg.RemoteFeed.URL)
	cfg.RemoteFeed.RefreshMinutes = envInt("REMOTE_FEED_REFRESH_MINUTES", cfg.RemoteFeed.RefreshMinutes)
	cfg.Cache.GuildTTLMinutes = envInt("CACHE_GUILD_TTL_MINUTES", cfg.Cache.GuildTTLMinutes)
	cfg.Cache.MaxGuilds = envInt("CACHE_MAX_GUILDS", cfg.Cache.MaxGuilds)
	cfg.Activity.SweepMinutes = envInt("ACTIVITY_SWEEP_MINUTES", cfg.Activity.SweepMinutes)
	cfg.Activity.IdleGraceMinutes = envInt("ACTIVITY_IDLE_GRACE_MINUTES", cfg.Activity.IdleGraceMinutes)
	cfg.Dispatch.CooldownSeconds = envInt("DISPATCH_COOLDOWN_SECONDS", cfg.Dispatch.CooldownSeconds)
	cfg.Fetch.TimeoutSeconds = envInt("FETCH_TIMEOUT_SECONDS", cfg.Fetch.TimeoutSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
