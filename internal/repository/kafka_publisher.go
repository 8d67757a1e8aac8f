package repository

import (
	"context"

	"github.com/segmentio/kafka-go"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
)

// KafkaPublisher publishes forecast responses as JSON keyed by ticker.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishForecast(ctx context.Context, resp *models.ForecastResponse) error {
	var headers []kafka.Header
	if resp.RequestID != "" {
		headers = append(headers, kafka.Header{Key: pkgkafka.HeaderTraceID, Value: []byte(resp.RequestID)})
	}
	return p.producer.Publish(ctx, p.topic, []byte(resp.Ticker), resp, headers...)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops every forecast; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishForecast(context.Context, *models.ForecastResponse) error { return nil }
func (NopPublisher) Close() error                                                    { return nil }

// KafkaDigestPublisher ships folded warning/error digests to a topic keyed
// by service name.
type KafkaDigestPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	service  string
}

func NewKafkaDigestPublisher(producer *pkgkafka.Producer, topic, service string) *KafkaDigestPublisher {
	return &KafkaDigestPublisher{producer: producer, topic: topic, service: service}
}

func (p *KafkaDigestPublisher) PublishDigest(ctx context.Context, entries []applogger.DigestEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, []byte(p.service), map[string]interface{}{
		"service": p.service,
		"entries": entries,
	})
}

var (
	_ domrepo.Publisher         = (*KafkaPublisher)(nil)
	_ domrepo.Publisher         = NopPublisher{}
	_ applogger.DigestPublisher = (*KafkaDigestPublisher)(nil)
)
