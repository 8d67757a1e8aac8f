package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"PriceCast/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Logger      LoggerConfig     `yaml:"logger"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	MarketData  MarketDataConfig `yaml:"market_data"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Forecast    ForecastConfig   `yaml:"forecast"`
	Sentiment   SentimentConfig  `yaml:"sentiment"`
	Redis       RedisConfig      `yaml:"redis"`
	Kafka       KafkaConfig      `yaml:"kafka"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// RateLimit is requests per client IP per minute on /api; zero disables it.
	RateLimit int `yaml:"rate_limit"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	Digest struct {
		Enabled   bool          `yaml:"enabled"`
		Interval  time.Duration `yaml:"interval"`
		MaxUnique int           `yaml:"max_unique"`
		Topic     string        `yaml:"topic"`
	} `yaml:"digest"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type MarketDataConfig struct {
	// Provider is yahoo, finnhub or clickhouse.
	Provider            string        `yaml:"provider"`
	BaseURL             string        `yaml:"base_url"`
	APIKey              string        `yaml:"api_key"`
	Period              string        `yaml:"period"`
	Interval            string        `yaml:"interval"`
	MaxRequestPerMinute int           `yaml:"max_request_per_minute"`
	Timeout             time.Duration `yaml:"timeout"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Database         string        `yaml:"database"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	DailyTable       string        `yaml:"daily_table"`
	WeeklyTable      string        `yaml:"weekly_table"`
}

type ForecastConfig struct {
	DefaultBackend string        `yaml:"default_backend"`
	Frequency      string        `yaml:"frequency"`
	Timeout        time.Duration `yaml:"timeout"`
	Synthetic      struct {
		Days int    `yaml:"days"`
		Seed uint64 `yaml:"seed"`
	} `yaml:"synthetic"`
	Sequence struct {
		Window       int     `yaml:"window"`
		Epochs       int     `yaml:"epochs"`
		BatchSize    int     `yaml:"batch_size"`
		Hidden       int     `yaml:"hidden"`
		Dropout      float64 `yaml:"dropout"`
		LearningRate float64 `yaml:"learning_rate"`
		// Seed zero selects a time-derived seed.
		Seed *uint64 `yaml:"seed"`
	} `yaml:"sequence"`
	Decomposition struct {
		Changepoints  int     `yaml:"changepoints"`
		IntervalWidth float64 `yaml:"interval_width"`
	} `yaml:"decomposition"`
}

type SentimentConfig struct {
	News struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"news"`
	Social struct {
		BearerToken string `yaml:"bearer_token"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"social"`
	Feed struct {
		URLTemplate string `yaml:"url_template"`
	} `yaml:"feed"`
	MaxItems            int           `yaml:"max_items"`
	DailyQuota          int64         `yaml:"daily_quota"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxRequestPerMinute int           `yaml:"max_request_per_minute"`
	Parallel            bool          `yaml:"parallel"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequestTopic string   `yaml:"request_topic"`
	ResultTopic  string   `yaml:"result_topic"`
	RequiredAcks int      `yaml:"required_acks"`
	Compression  string   `yaml:"compression"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts"`
		Linger       time.Duration `yaml:"linger"`
		BatchSize    int           `yaml:"batch_size"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID       string        `yaml:"group_id"`
		Workers       int           `yaml:"workers"`
		RetryMax      int           `yaml:"retry_max"`
		BackoffMin    time.Duration `yaml:"backoff_min"`
		BackoffMax    time.Duration `yaml:"backoff_max"`
		DLQTopic      string        `yaml:"dlq_topic"`
		HandleTimeout time.Duration `yaml:"handle_timeout"`
	} `yaml:"consumer"`
}

// Load reads a YAML configuration file, expanding ${VAR} references,
// applies defaults and validates.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load with credentials and endpoints overridden from the
// environment. An empty path starts from defaults.
func LoadWithEnv(path string) (*Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = read(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("NEWSAPI_KEY"); v != "" {
		c.Sentiment.News.APIKey = v
	}
	if v := getenv("TWITTER_BEARER"); v != "" {
		c.Sentiment.Social.BearerToken = v
	}
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := getenv("MARKET_DATA_PROVIDER"); v != "" {
		c.MarketData.Provider = strings.ToLower(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := util.SplitCSV(getenv("KAFKA_BROKERS")); len(v) > 0 {
		c.Kafka.Brokers = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Logger.Digest.Interval == 0 {
		c.Logger.Digest.Interval = time.Minute
	}
	if c.Logger.Digest.Topic == "" {
		c.Logger.Digest.Topic = "pricecast.log-digest"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.MarketData.Provider == "" {
		c.MarketData.Provider = "yahoo"
	}
	if c.MarketData.Period == "" {
		c.MarketData.Period = "3mo"
	}
	if c.MarketData.Interval == "" {
		c.MarketData.Interval = "1d"
	}
	if c.MarketData.MaxRequestPerMinute == 0 {
		c.MarketData.MaxRequestPerMinute = 60
	}
	if c.MarketData.Timeout == 0 {
		c.MarketData.Timeout = 15 * time.Second
	}

	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "default"
	}
	if c.ClickHouse.DailyTable == "" {
		c.ClickHouse.DailyTable = "prices_1d"
	}
	if c.ClickHouse.WeeklyTable == "" {
		c.ClickHouse.WeeklyTable = "prices_1w"
	}

	if c.Forecast.DefaultBackend == "" {
		c.Forecast.DefaultBackend = "decomposition"
	}
	if c.Forecast.Frequency == "" {
		c.Forecast.Frequency = "D"
	}
	if c.Forecast.Timeout == 0 {
		c.Forecast.Timeout = 90 * time.Second
	}
	if c.Forecast.Synthetic.Days == 0 {
		c.Forecast.Synthetic.Days = 90
	}
	if c.Forecast.Synthetic.Seed == 0 {
		c.Forecast.Synthetic.Seed = 42
	}
	seq := &c.Forecast.Sequence
	if seq.Window == 0 {
		seq.Window = 60
	}
	if seq.Epochs == 0 {
		seq.Epochs = 5
	}
	if seq.BatchSize == 0 {
		seq.BatchSize = 16
	}
	if seq.Hidden == 0 {
		seq.Hidden = 50
	}
	if seq.Dropout == 0 {
		seq.Dropout = 0.2
	}
	if seq.LearningRate == 0 {
		seq.LearningRate = 0.001
	}
	if seq.Seed == nil {
		seed := uint64(42)
		seq.Seed = &seed
	}
	if c.Forecast.Decomposition.Changepoints == 0 {
		c.Forecast.Decomposition.Changepoints = 25
	}
	if c.Forecast.Decomposition.IntervalWidth == 0 {
		c.Forecast.Decomposition.IntervalWidth = 0.8
	}

	if c.Sentiment.MaxItems == 0 {
		c.Sentiment.MaxItems = 10
	}
	if c.Sentiment.Timeout == 0 {
		c.Sentiment.Timeout = 10 * time.Second
	}
	if c.Sentiment.MaxRequestPerMinute == 0 {
		c.Sentiment.MaxRequestPerMinute = 30
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "pricecast"
	}

	if c.Kafka.RequestTopic == "" {
		c.Kafka.RequestTopic = "forecast.requests"
	}
	if c.Kafka.ResultTopic == "" {
		c.Kafka.ResultTopic = "forecast.results"
	}
	if c.Kafka.Compression == "" {
		c.Kafka.Compression = "gzip"
	}
	if c.Kafka.RequiredAcks == 0 {
		c.Kafka.RequiredAcks = 1
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "pricecast"
	}
	if c.Kafka.Consumer.Workers == 0 {
		c.Kafka.Consumer.Workers = 2
	}
	if c.Kafka.Consumer.RetryMax == 0 {
		c.Kafka.Consumer.RetryMax = 2
	}
	if c.Kafka.Consumer.DLQTopic == "" {
		c.Kafka.Consumer.DLQTopic = "forecast.requests.dlq"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.MarketData.Provider {
	case "yahoo":
	case "finnhub":
		if c.MarketData.APIKey == "" {
			return fmt.Errorf("market_data.api_key is required for provider finnhub")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for provider clickhouse")
		}
	default:
		return fmt.Errorf("market_data.provider must be 'yahoo', 'finnhub' or 'clickhouse', got '%s'", c.MarketData.Provider)
	}
	switch c.Forecast.DefaultBackend {
	case "decomposition", "sequence", "prophet", "lstm":
	default:
		return fmt.Errorf("forecast.default_backend must be 'decomposition' or 'sequence', got '%s'", c.Forecast.DefaultBackend)
	}
	switch c.Forecast.Frequency {
	case "D", "W":
	default:
		return fmt.Errorf("forecast.frequency must be 'D' or 'W', got '%s'", c.Forecast.Frequency)
	}
	// Forecast steps must match the spacing of the fetched history.
	wantFreq := "D"
	if strings.EqualFold(c.MarketData.Interval, "1wk") {
		wantFreq = "W"
	}
	if c.Forecast.Frequency != wantFreq {
		return fmt.Errorf("forecast.frequency '%s' does not match market_data.interval '%s' (want '%s')",
			c.Forecast.Frequency, c.MarketData.Interval, wantFreq)
	}
	if c.Forecast.Synthetic.Days < 2 {
		return fmt.Errorf("forecast.synthetic.days must be at least 2")
	}
	if d := c.Forecast.Sequence.Dropout; d < 0 || d >= 1 {
		return fmt.Errorf("forecast.sequence.dropout must be in [0, 1)")
	}
	if w := c.Forecast.Decomposition.IntervalWidth; w <= 0 || w >= 1 {
		return fmt.Errorf("forecast.decomposition.interval_width must be in (0, 1)")
	}
	if c.Sentiment.MaxItems < 1 || c.Sentiment.MaxItems > 10 {
		return fmt.Errorf("sentiment.max_items must be between 1 and 10")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
