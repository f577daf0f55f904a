package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // exchange_tz must resolve on hosts without a zoneinfo database

	"StockWatch/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment    string               `yaml:"environment" default:"development"`
	Server         ServerConfig         `yaml:"server"`
	Log            LogConfig            `yaml:"log"`
	Store          StoreConfig          `yaml:"store"`
	MarketData     MarketDataConfig     `yaml:"market_data"`
	Registry       RegistryConfig       `yaml:"registry"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	News           NewsConfig           `yaml:"news"`
	Schedule       ScheduleConfig       `yaml:"schedule"`
	Kafka          KafkaConfig          `yaml:"kafka"`
	ClickHouse     ClickHouseConfig     `yaml:"clickhouse"`
	Redis          RedisConfig          `yaml:"redis"`
	SQLite         SQLiteConfig         `yaml:"sqlite"`
	Finnhub        FinnhubConfig        `yaml:"finnhub"`
}

type ServerConfig struct {
	Port            int             `yaml:"port" default:"8000"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" default:"10s"`
	SlowRequest     time.Duration   `yaml:"slow_request" default:"2s"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	CORS            CORSConfig      `yaml:"cors"`
}

// CORSConfig lists the browser origins allowed to call the API. "*" allows any.
type CORSConfig struct {
	Enabled      bool     `yaml:"enabled" default:"true"`
	AllowOrigins []string `yaml:"allow_origins" default:"[\"*\"]"`
}

// RateLimitConfig bounds requests per client IP on the mutating endpoints.
type RateLimitConfig struct {
	Enabled      bool    `yaml:"enabled" default:"true"`
	Capacity     float64 `yaml:"capacity" default:"20"`
	RefillPerSec float64 `yaml:"refill_per_sec" default:"2"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
}

type StoreConfig struct {
	Backend   string `yaml:"backend" default:"memory"` // memory, redis, sqlite, clickhouse
	MaxPoints int    `yaml:"max_points"`               // 0 keeps everything
}

type MarketDataConfig struct {
	Provider    string        `yaml:"provider" default:"yahoo"` // yahoo or tiingo
	Timeout     time.Duration `yaml:"timeout" default:"10s"`
	HistoryDays int           `yaml:"history_days" default:"30"`
	Yahoo       struct {
		BaseURL string `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
	} `yaml:"yahoo"`
	Tiingo struct {
		BaseURL string `yaml:"base_url" default:"https://api.tiingo.com"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"tiingo"`
	Cache MarketDataCacheConfig `yaml:"cache"`
}

// MarketDataCacheConfig keeps provider responses for a short while.
type MarketDataCacheConfig struct {
	Backend    string        `yaml:"backend" default:"memory"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl" default:"1m"`
	MaxEntries int           `yaml:"max_entries" default:"500"`
}

type RegistryConfig struct {
	DefaultTickers []string `yaml:"default_tickers"`
	SeedOnStart    bool     `yaml:"seed_on_start"`
}

type RecommendationConfig struct {
	Channel    string        `yaml:"channel" default:"log"` // log, webhook, telegram, kafka, redis
	Timeout    time.Duration `yaml:"timeout" default:"10s"`
	WebhookURL string        `yaml:"webhook_url"`
	Telegram   struct {
		BaseURL    string `yaml:"base_url" default:"https://api.telegram.org"`
		BotToken   string `yaml:"bot_token"`
		ChatID     string `yaml:"chat_id"`
		MaxRetries int    `yaml:"max_retries" default:"2"`
	} `yaml:"telegram"`
	KafkaTopic string `yaml:"kafka_topic" default:"stockwatch.recommendations"`
	RedisKey   string `yaml:"redis_key" default:"stockwatch:recommendations"`
}

type NewsConfig struct {
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

type ScheduleConfig struct {
	Enabled      bool   `yaml:"enabled"`
	RefreshCron  string `yaml:"refresh_cron" default:"0 30 22 * * 1-5"`
	DispatchCron string `yaml:"dispatch_cron" default:"0 0 23 * * 1-5"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip"`
	PricesTopic  string   `yaml:"prices_topic"` // empty disables the ingest consumer
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"100ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"stockwatch"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"100"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"stockwatch"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" default:"localhost:6379"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix" default:"stockwatch"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" default:"data/stockwatch.db"`
}

type FinnhubConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIKey         string        `yaml:"api_key"`
	WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	MaxRPS         int           `yaml:"max_rps" default:"5"`
	ExchangeTZ     string        `yaml:"exchange_tz" default:"America/New_York"` // trades are dated in this zone
}

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file is not an error here; the defaults plus environment are used.
func LoadWithEnv(path string) (*Config, error) {
	c := Default()
	if _, err := os.Stat(path); err == nil {
		if c, err = parse(path); err != nil {
			return nil, err
		}
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := getenv(key); v != "" {
			*dst = util.SplitCSV(v)
		}
	}

	str("APP_ENV", &c.Environment)
	if v := getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	list("CORS_ALLOW_ORIGINS", &c.Server.CORS.AllowOrigins)
	str("LOG_LEVEL", &c.Log.Level)
	str("STORE_BACKEND", &c.Store.Backend)
	if v := getenv("STORE_MAX_POINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.MaxPoints = n
		}
	}
	str("MARKET_DATA_PROVIDER", &c.MarketData.Provider)
	str("TIINGO_API_KEY", &c.MarketData.Tiingo.APIKey)
	str("MARKET_DATA_CACHE", &c.MarketData.Cache.Backend)
	list("DEFAULT_TICKERS", &c.Registry.DefaultTickers)
	str("RECOMMENDATION_CHANNEL", &c.Recommendation.Channel)
	str("WEBHOOK_URL", &c.Recommendation.WebhookURL)
	str("TELEGRAM_BOT_TOKEN", &c.Recommendation.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Recommendation.Telegram.ChatID)
	list("KAFKA_BROKERS", &c.Kafka.Brokers)
	str("KAFKA_PRICES_TOPIC", &c.Kafka.PricesTopic)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("SQLITE_PATH", &c.SQLite.Path)
	str("FINNHUB_EXCHANGE_TZ", &c.Finnhub.ExchangeTZ)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
		c.Finnhub.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.Server.CORS.Enabled && len(c.Server.CORS.AllowOrigins) == 0 {
		return fmt.Errorf("server.cors.allow_origins is required when cors is enabled")
	}
	switch c.Store.Backend {
	case "memory", "redis", "sqlite", "clickhouse":
	default:
		return fmt.Errorf("store.backend must be one of memory, redis, sqlite, clickhouse, got '%s'", c.Store.Backend)
	}
	if c.Store.MaxPoints < 0 {
		return fmt.Errorf("store.max_points cannot be negative")
	}
	switch c.MarketData.Provider {
	case "yahoo":
	case "tiingo":
		if c.MarketData.Tiingo.APIKey == "" {
			return fmt.Errorf("market_data.tiingo.api_key is required for the tiingo provider")
		}
	default:
		return fmt.Errorf("market_data.provider must be 'yahoo' or 'tiingo', got '%s'", c.MarketData.Provider)
	}
	switch c.MarketData.Cache.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("market_data.cache.backend must be one of none, memory, redis, got '%s'", c.MarketData.Cache.Backend)
	}
	if c.MarketData.HistoryDays < 6 {
		return fmt.Errorf("market_data.history_days must be at least 6")
	}
	switch c.Recommendation.Channel {
	case "log", "redis":
	case "webhook":
		if c.Recommendation.WebhookURL == "" {
			return fmt.Errorf("recommendation.webhook_url is required for the webhook channel")
		}
	case "telegram":
		if c.Recommendation.Telegram.BotToken == "" || c.Recommendation.Telegram.ChatID == "" {
			return fmt.Errorf("recommendation.telegram bot_token and chat_id are required")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers are required for the kafka channel")
		}
	default:
		return fmt.Errorf("recommendation.channel must be one of log, webhook, telegram, kafka, redis, got '%s'", c.Recommendation.Channel)
	}
	if c.Kafka.PricesTopic != "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers are required when kafka.prices_topic is set")
	}
	if c.Finnhub.Enabled && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required when finnhub is enabled")
	}
	if _, err := time.LoadLocation(c.Finnhub.ExchangeTZ); err != nil {
		return fmt.Errorf("finnhub.exchange_tz: %w", err)
	}
	if c.Schedule.Enabled && (c.Schedule.RefreshCron == "" || c.Schedule.DispatchCron == "") {
		return fmt.Errorf("schedule.refresh_cron and schedule.dispatch_cron are required when scheduling is enabled")
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Store.Backend == "redis" || c.Recommendation.Channel == "redis" || c.MarketData.Cache.Backend == "redis"
}

// UsesKafkaProducer reports whether a Kafka producer must be created.
func (c *Config) UsesKafkaProducer() bool {
	return c.Recommendation.Channel == "kafka"
}
