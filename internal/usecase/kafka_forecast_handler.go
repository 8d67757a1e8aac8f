package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkghttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
)

// ForecastRunner runs one forecast request.
type ForecastRunner interface {
	Run(ctx context.Context, req models.ForecastRequest) (*models.ForecastResponse, error)
}

// KafkaForecastHandler consumes forecast requests. Results are published by
// the pipeline's publisher.
type KafkaForecastHandler struct {
	topic  string
	runner ForecastRunner
	l      *applogger.Logger
	m      domrepo.Metrics
}

func NewKafkaForecastHandler(topic string, runner ForecastRunner, l *applogger.Logger, m domrepo.Metrics) *KafkaForecastHandler {
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &KafkaForecastHandler{topic: topic, runner: runner, l: l, m: m}
}

func (h *KafkaForecastHandler) Topic() string { return h.topic }

// Handle decodes {ticker, horizon_days, backend, sentiment_source}. Bad
// payloads and forecasting errors are permanent; only context errors retry.
func (h *KafkaForecastHandler) Handle(ctx context.Context, b []byte) error {
	var req models.ForecastRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.m.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: decode forecast request: %v", pkgkafka.ErrPermanent, err)
	}
	if verrs := pkghttp.ValidateStruct(ctx, &req); verrs != nil {
		h.m.RecordError("consumer_validate")
		return fmt.Errorf("%w: invalid forecast request: %v", pkgkafka.ErrPermanent, verrs)
	}
	if req.RequestID == "" {
		req.RequestID = pkgkafka.TraceIDFromContext(ctx)
	}

	resp, err := h.runner.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		h.m.RecordError("consumer_forecast")
		h.l.Warn("kafka forecast request failed",
			applogger.String("request_id", req.RequestID),
			applogger.String("ticker", req.Ticker),
			applogger.Error(err),
		)
		return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
	}
	h.l.Debug("kafka forecast request done",
		applogger.String("request_id", resp.RequestID),
		applogger.String("ticker", resp.Ticker),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaForecastHandler)(nil)
