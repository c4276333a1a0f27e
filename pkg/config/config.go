package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	DefaultSessionSecret = "dev-secret-key-change-in-production"
	DefaultAdminPassword = "admin123"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Community CommunityConfig `mapstructure:"community"`
	Log       LogConfig       `mapstructure:"log"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// ServerConfig is the gRPC listener.
type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// GatewayConfig is the HTTP listener.
type GatewayConfig struct {
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	CartTTL  time.Duration `mapstructure:"cart_ttl"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AuthConfig struct {
	SessionSecret string        `mapstructure:"session_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminEmail    string        `mapstructure:"admin_email"`
	AdminPassword string        `mapstructure:"admin_password"`
	AdminFullName string        `mapstructure:"admin_full_name"`
}

type CheckoutConfig struct {
	RiderFeeRate    string `mapstructure:"rider_fee_rate"`
	PlatformFeeRate string `mapstructure:"platform_fee_rate"`
}

type AssistantConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
	HumanContact string        `mapstructure:"human_contact"`
	RatePerMin   int           `mapstructure:"rate_per_min"`
}

type WeatherConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	DefaultLocation string        `mapstructure:"default_location"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

type CommunityConfig struct {
	PostsPerPage   int `mapstructure:"posts_per_page"`
	MaxPostLength  int `mapstructure:"max_post_length"`
	MaxReplyLength int `mapstructure:"max_reply_length"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
	File        string   `mapstructure:"file"`
	MaxSizeMB   int      `mapstructure:"max_size_mb"`
	MaxBackups  int      `mapstructure:"max_backups"`
	MaxAgeDays  int      `mapstructure:"max_age_days"`
}

// legacyEnv maps config keys to the environment names older deployments use.
var legacyEnv = map[string]string{
	"database.url":         "DATABASE_URL",
	"assistant.api_key":    "COHERE_API_KEY",
	"weather.api_key":      "OPENWEATHER_API_KEY",
	"auth.admin_email":     "ADMIN_EMAIL",
	"auth.admin_password":  "ADMIN_PASSWORD",
	"auth.admin_full_name": "ADMIN_FULL_NAME",
	"auth.session_secret":  "SECRET_KEY",
	"gateway.port":         "PORT",
	"redis.addr":           "REDIS_ADDR",
	"mongodb.uri":          "MONGODB_URI",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "benfarm")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.name", "benfarm-grpc")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50051)

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 5000)
	v.SetDefault("gateway.allow_origins", []string{"*"})

	v.SetDefault("database.url", "sqlite://app.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.cart_ttl", 7*24*time.Hour)

	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "benfarm")
	v.SetDefault("mongodb.collection", "audit_logs")

	v.SetDefault("etcd.endpoints", []string{})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/benfarm/services/")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "benfarm.orders")

	v.SetDefault("auth.session_secret", DefaultSessionSecret)
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.admin_email", "admin@benfarming.com")
	v.SetDefault("auth.admin_password", DefaultAdminPassword)
	v.SetDefault("auth.admin_full_name", "System Administrator")

	v.SetDefault("checkout.rider_fee_rate", "0.10")
	v.SetDefault("checkout.platform_fee_rate", "0.10")

	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.base_url", "https://api.cohere.ai")
	v.SetDefault("assistant.model", "c4ai-aya-expanse-8b")
	v.SetDefault("assistant.temperature", 0.3)
	v.SetDefault("assistant.max_tokens", 800)
	v.SetDefault("assistant.timeout", 30*time.Second)
	v.SetDefault("assistant.human_contact", "+254713593573")
	v.SetDefault("assistant.rate_per_min", 20)

	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.base_url", "https://api.openweathermap.org")
	v.SetDefault("weather.default_location", "Nairobi")
	v.SetDefault("weather.timeout", 10*time.Second)
	v.SetDefault("weather.cache_ttl", 10*time.Minute)

	v.SetDefault("community.posts_per_page", 20)
	v.SetDefault("community.max_post_length", 5000)
	v.SetDefault("community.max_reply_length", 2000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)
}

// Load reads the optional YAML file at configPath, then environment variables.
// Environment wins over the file; BENFARM_GATEWAY_PORT overrides gateway.port.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BENFARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "BENFARM_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")

			// Read config file
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Validate rejects settings that are only acceptable on a developer machine.
func (c *Config) Validate() error {
	if _, err := c.Checkout.Rates(); err != nil {
		return err
	}
	if !c.IsProduction() {
		return nil
	}
	if c.Auth.SessionSecret == "" || c.Auth.SessionSecret == DefaultSessionSecret {
		return errors.New("auth.session_secret must be set in production")
	}
	if c.Auth.AdminPassword == DefaultAdminPassword {
		return errors.New("auth.admin_password must be changed in production")
	}
	return nil
}

// FeeRates holds the two checkout surcharges as fractions of the subtotal.
type FeeRates struct {
	Rider    decimal.Decimal
	Platform decimal.Decimal
}

func (c CheckoutConfig) Rates() (FeeRates, error) {
	rider, err := decimal.NewFromString(c.RiderFeeRate)
	if err != nil {
		return FeeRates{}, fmt.Errorf("invalid checkout.rider_fee_rate %q: %w", c.RiderFeeRate, err)
	}
	platform, err := decimal.NewFromString(c.PlatformFeeRate)
	if err != nil {
		return FeeRates{}, fmt.Errorf("invalid checkout.platform_fee_rate %q: %w", c.PlatformFeeRate, err)
	}
	if rider.IsNegative() || platform.IsNegative() {
		return FeeRates{}, errors.New("checkout fee rates must not be negative")
	}
	return FeeRates{Rider: rider, Platform: platform}, nil
}
