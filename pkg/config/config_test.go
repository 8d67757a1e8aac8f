package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\nserver:\n  port: 9090\n")
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "yahoo", c.MarketData.Provider)
	assert.Equal(t, "3mo", c.MarketData.Period)
	assert.Equal(t, "1d", c.MarketData.Interval)
	assert.Zero(t, c.MarketData.CacheTTL)
	assert.Equal(t, "decomposition", c.Forecast.DefaultBackend)
	assert.Equal(t, 90, c.Forecast.Synthetic.Days)
	assert.Equal(t, uint64(42), c.Forecast.Synthetic.Seed)
	assert.Equal(t, 60, c.Forecast.Sequence.Window)
	assert.Equal(t, 50, c.Forecast.Sequence.Hidden)
	require.NotNil(t, c.Forecast.Sequence.Seed)
	assert.Equal(t, uint64(42), *c.Forecast.Sequence.Seed)
	assert.Equal(t, 10, c.Sentiment.MaxItems)
	assert.Equal(t, 10*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, "forecast.requests", c.Kafka.RequestTopic)
}

func TestLoadKeepsExplicitZeroSeed(t *testing.T) {
	path := writeConfig(t, "forecast:\n  sequence:\n    seed: 0\n    epochs: 2\n")
	c, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, c.Forecast.Sequence.Seed)
	assert.Equal(t, uint64(0), *c.Forecast.Sequence.Seed)
	assert.Equal(t, 2, c.Forecast.Sequence.Epochs)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("PC_TEST_NEWS_KEY", "abc")
	path := writeConfig(t, "sentiment:\n  news:\n    api_key: ${PC_TEST_NEWS_KEY}\n")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", c.Sentiment.News.APIKey)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("NEWSAPI_KEY", "news-key")
	t.Setenv("TWITTER_BEARER", "bearer")
	t.Setenv("FINNHUB_API_KEY", "fh-key")
	t.Setenv("MARKET_DATA_PROVIDER", "Finnhub")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, "market_data:\n  provider: yahoo\n")
	c, err := LoadWithEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "news-key", c.Sentiment.News.APIKey)
	assert.Equal(t, "bearer", c.Sentiment.Social.BearerToken)
	assert.Equal(t, "finnhub", c.MarketData.Provider)
	assert.Equal(t, "fh-key", c.MarketData.APIKey)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "debug", c.Logger.Level)
}

func TestLoadWithEnvNoFile(t *testing.T) {
	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown provider":   func(c *Config) { c.MarketData.Provider = "bloomberg" },
		"finnhub no key":     func(c *Config) { c.MarketData.Provider = "finnhub" },
		"clickhouse no host": func(c *Config) { c.MarketData.Provider = "clickhouse" },
		"unknown backend":    func(c *Config) { c.Forecast.DefaultBackend = "arima" },
		"bad frequency":      func(c *Config) { c.Forecast.Frequency = "M" },
		"bad dropout":        func(c *Config) { c.Forecast.Sequence.Dropout = 1 },
		"bad width":          func(c *Config) { c.Forecast.Decomposition.IntervalWidth = 1.5 },
		"too many items":     func(c *Config) { c.Sentiment.MaxItems = 11 },
		"kafka no brokers":   func(c *Config) { c.Kafka.Enabled = true },
		"weekly data daily":  func(c *Config) { c.MarketData.Interval = "1wk" },
		"daily data weekly":  func(c *Config) { c.Forecast.Frequency = "W" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
	assert.NoError(t, Default().Validate())

	weekly := Default()
	weekly.MarketData.Interval = "1wk"
	weekly.Forecast.Frequency = "W"
	assert.NoError(t, weekly.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "yahoo", c.MarketData.Provider)
	assert.Equal(t, 100, int(c.Sentiment.DailyQuota))
	assert.Equal(t, "forecast.requests.dlq", c.Kafka.Consumer.DLQTopic)
}
