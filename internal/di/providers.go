package di

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/handler/api"
	internalrepo "PriceCast/internal/repository"
	"PriceCast/internal/service/marketdata"
	"PriceCast/internal/service/news"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/sentiment"
	"PriceCast/internal/services/synthetic"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/cache"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/server"
)

const serviceName = "pricecast"

// ProvideLogger builds the application logger from the logger section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", serviceName), applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry scraped on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the domain recorder and points Kafka metrics at
// the same registry.
func ProvideMetrics(reg *prometheus.Registry) domrepo.Metrics {
	pkgkafka.SetMetricsRegisterer(reg)
	return metrics.NewWithRegisterer(reg)
}

// ProvideCache returns Redis when enabled and reachable, the in-process
// cache otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) cache.Service {
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Addr),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err == nil {
			l.Info("cache: redis", applogger.String("addr", cfg.Redis.Addr))
			return rc
		}
		l.Warn("redis unavailable, using in-memory cache",
			applogger.String("addr", cfg.Redis.Addr),
			applogger.Error(err),
		)
	}
	return cache.NewMemoryCache()
}

func ProvideQuotaCounter(c cache.Service) domrepo.QuotaCounter {
	return internalrepo.NewCacheQuotaCounter(c)
}

// ProvideClickHouseClient connects only when ClickHouse is the market data
// provider; otherwise it returns nil.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.MarketData.Provider != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideMarketData selects the provider. Series are only memoized when
// market_data.cache_ttl is set.
func ProvideMarketData(cfg *config.Config, l *applogger.Logger, c cache.Service, ch *pkgch.Client) (domrepo.MarketData, error) {
	client := xhttp.NewClient(
		xhttp.WithTimeout(cfg.MarketData.Timeout),
		xhttp.WithRateLimit(cfg.MarketData.MaxRequestPerMinute),
	)

	var src domrepo.MarketData
	switch cfg.MarketData.Provider {
	case "finnhub":
		src = marketdata.NewFinnhub(cfg.MarketData.APIKey, cfg.MarketData.BaseURL, client)
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse provider selected without a client")
		}
		db := cfg.ClickHouse.Database
		chs, err := internalrepo.NewCHPriceSource(ch.DB(), db+"."+cfg.ClickHouse.DailyTable, db+"."+cfg.ClickHouse.WeeklyTable, l)
		if err != nil {
			return nil, err
		}
		src = chs
	default:
		src = marketdata.NewYahoo(cfg.MarketData.BaseURL, client)
	}
	l.Info("market data provider",
		applogger.String("provider", cfg.MarketData.Provider),
		applogger.Duration("cache_ttl", cfg.MarketData.CacheTTL),
	)
	if cfg.MarketData.CacheTTL <= 0 {
		return src, nil
	}
	return marketdata.NewCached(src, c, cfg.MarketData.CacheTTL, l), nil
}

// ProvideSentiment builds the aggregator over every text source; sources
// without credentials stay registered and report neutral.
func ProvideSentiment(cfg *config.Config, quota domrepo.QuotaCounter, l *applogger.Logger, m domrepo.Metrics) *sentiment.Aggregator {
	client := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Sentiment.Timeout),
		xhttp.WithRateLimit(cfg.Sentiment.MaxRequestPerMinute),
	)
	feedTemplate := cfg.Sentiment.Feed.URLTemplate
	if feedTemplate == "" {
		feedTemplate = news.DefaultFeedURLTemplate
	}
	return sentiment.NewAggregator(
		sentiment.Config{
			MaxItems:   cfg.Sentiment.MaxItems,
			DailyQuota: cfg.Sentiment.DailyQuota,
			Timeout:    cfg.Sentiment.Timeout,
		},
		sentiment.NewLexicon(nil),
		quota, l, m,
		news.NewNewsAPI(cfg.Sentiment.News.APIKey, cfg.Sentiment.News.BaseURL, client),
		news.NewTwitter(cfg.Sentiment.Social.BearerToken, cfg.Sentiment.Social.BaseURL, client),
		news.NewFeed(feedTemplate, client),
	)
}

func ProvideGenerator(cfg *config.Config) *synthetic.Generator {
	return synthetic.New(synthetic.WithSeed(cfg.Forecast.Synthetic.Seed))
}

// ProvideOrchestrator registers the decomposition and sequence backends.
func ProvideOrchestrator(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) (*forecast.Orchestrator, error) {
	freq, err := models.ParseFrequency(cfg.Forecast.Frequency)
	if err != nil {
		return nil, err
	}
	dec := forecast.DefaultDecompositionOptions()
	dec.Changepoints = cfg.Forecast.Decomposition.Changepoints
	dec.IntervalWidth = cfg.Forecast.Decomposition.IntervalWidth
	dec.Frequency = freq

	sc := cfg.Forecast.Sequence
	seq := forecast.SequenceOptions{
		Window:       sc.Window,
		Epochs:       sc.Epochs,
		BatchSize:    sc.BatchSize,
		Hidden:       sc.Hidden,
		Dropout:      sc.Dropout,
		LearningRate: sc.LearningRate,
		Frequency:    freq,
	}
	if sc.Seed != nil {
		seq.Seed = *sc.Seed
	}
	return forecast.NewOrchestrator(l, m, forecast.NewDecomposition(dec), forecast.NewSequence(seq)), nil
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher publishes results to Kafka when a producer exists.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.Publisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ResultTopic)
}

func ProvidePipeline(
	cfg *config.Config,
	data domrepo.MarketData,
	gen *synthetic.Generator,
	orch *forecast.Orchestrator,
	agg *sentiment.Aggregator,
	pub domrepo.Publisher,
	l *applogger.Logger,
	m domrepo.Metrics,
) *usecase.ForecastPipeline {
	return usecase.NewForecastPipeline(usecase.PipelineConfig{
		Period:        domrepo.NormalizePeriod(cfg.MarketData.Period),
		Interval:      domrepo.NormalizeInterval(cfg.MarketData.Interval),
		SyntheticDays: cfg.Forecast.Synthetic.Days,
		Parallel:      cfg.Sentiment.Parallel,
		Timeout:       cfg.Forecast.Timeout,
	}, data, gen, orch, agg, pub, l, m)
}

// ProvideLimiter allows server.rate_limit requests per client per minute.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	perMinute := float64(cfg.Server.RateLimit)
	return ratelimit.New(perMinute, perMinute/60)
}

func ProvideForecastHandler(l *applogger.Logger, pipeline *usecase.ForecastPipeline, agg *sentiment.Aggregator, limiter *ratelimit.Limiter) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, pipeline, agg, limiter)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, h *api.ForecastEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetrics(metricsPath, reg, reg),
	)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled. The consumer
// runs forecast requests from the request topic.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, pipeline *usecase.ForecastPipeline, m domrepo.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	kc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerHandleTimeout(kc.HandleTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	consumer.RegisterHandler(usecase.NewKafkaForecastHandler(cfg.Kafka.RequestTopic, pipeline, l, m))
	return consumer, nil
}

// ProvideApp assembles the lifecycle: HTTP server and consumer as services,
// infrastructure clients as closers, limiter pruning as a ticker.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	pub domrepo.Publisher,
	c cache.Service,
	ch *pkgch.Client,
	limiter *ratelimit.Limiter,
) *server.App {
	app := server.New(cfg, l)
	app.AddService("http", srv)
	if consumer != nil {
		app.AddService("kafka-consumer", consumer)
	}

	app.AddCloser("cache", c.Close)
	if ch != nil {
		app.AddCloser("clickhouse", ch.Close)
	}
	if producer != nil {
		app.AddCloser("publisher", pub.Close)
		if cfg.Logger.Digest.Enabled {
			l.AttachDigest(applogger.NewDigest(applogger.DigestConfig{
				Interval:  cfg.Logger.Digest.Interval,
				MaxUnique: cfg.Logger.Digest.MaxUnique,
				Publisher: internalrepo.NewKafkaDigestPublisher(producer, cfg.Logger.Digest.Topic, serviceName),
			}))
			// Closers run in reverse: the final digest flush happens before the producer closes.
			app.AddCloser("log-digest", func() error { l.DetachDigest(); return nil })
		}
	}

	app.AddTicker("limiter-prune", time.Minute, func() {
		if n := limiter.Prune(); n > 0 {
			l.Debug("pruned idle rate limit buckets", applogger.Int("buckets", n))
		}
	})
	return app
}

// CLI holds what the one-shot forecast command needs.
type CLI struct {
	Pipeline *usecase.ForecastPipeline
	closers  []func() error
}

// Close releases infrastructure clients in reverse order.
func (c *CLI) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

func ProvideCLI(pipeline *usecase.ForecastPipeline, c cache.Service, ch *pkgch.Client, pub domrepo.Publisher) *CLI {
	cli := &CLI{Pipeline: pipeline, closers: []func() error{c.Close}}
	if ch != nil {
		cli.closers = append(cli.closers, ch.Close)
	}
	cli.closers = append(cli.closers, pub.Close)
	return cli
}
