package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mastodon MastodonConfig `mapstructure:"mastodon"`
	Timeline TimelineConfig `mapstructure:"timeline"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// MastodonConfig 当前登录账号及其所在实例
type MastodonConfig struct {
	Instance       string        `mapstructure:"instance" validate:"required,url"`
	AccessToken    string        `mapstructure:"access_token"`
	Account        string        `mapstructure:"account" validate:"required"`
	PageSize       int           `mapstructure:"page_size" validate:"gte=1,lte=40"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	RateLimit      float64       `mapstructure:"rate_limit" validate:"gt=0"`
	Burst          int           `mapstructure:"burst" validate:"gte=1"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" validate:"gt=0"`
	Streams        []string      `mapstructure:"streams"`
}

type TimelineConfig struct {
	// FetchResolution 是 canFetchMore 的时钟粒度
	FetchResolution time.Duration `mapstructure:"fetch_resolution" validate:"gt=0"`
	DateLayout      string        `mapstructure:"date_layout" validate:"required"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "fedtimeline.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)
	v.SetDefault("mastodon.instance", "https://mastodon.social")
	v.SetDefault("mastodon.access_token", "")
	v.SetDefault("mastodon.account", "anonymous")
	v.SetDefault("mastodon.page_size", 20)
	v.SetDefault("mastodon.request_timeout", 15*time.Second)
	v.SetDefault("mastodon.rate_limit", 5.0)
	v.SetDefault("mastodon.burst", 10)
	v.SetDefault("mastodon.reconnect_delay", 5*time.Second)
	v.SetDefault("mastodon.streams", []string{"user", "public:local", "public"})
	v.SetDefault("timeline.fetch_resolution", time.Second)
	v.SetDefault("timeline.date_layout", "Jan 2, 2006")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "fedtimeline")
}

// Load 读取 config.yaml（可选）并叠加 FEDTL_ 前缀的环境变量
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("FEDTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
