package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/usecase"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
)

// ForecastEchoHandler serves forecast and sentiment endpoints.
type ForecastEchoHandler struct {
	logger    *xlogger.Logger
	pipeline  usecase.ForecastRunner
	sentiment usecase.SentimentAnalyzer
	limiter   *ratelimit.Limiter
}

func NewForecastEchoHandler(logger *xlogger.Logger, pipeline usecase.ForecastRunner, sentiment usecase.SentimentAnalyzer, limiter *ratelimit.Limiter) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{logger: logger, pipeline: pipeline, sentiment: sentiment, limiter: limiter}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.POST("/forecast", h.Forecast)
	g.GET("/sentiment", h.Sentiment)
}

// Forecast handles GET /api/forecast?ticker=&horizon=&backend= and a JSON POST.
func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("forecast rate limit exceeded"))
	}
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.RequestID == "" {
		req.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)
	}

	res, err := h.pipeline.Run(c.Request().Context(), *req)
	if err != nil {
		appErr := mapForecastError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("forecast usecase error",
				xlogger.String("request_id", req.RequestID),
				xlogger.String("ticker", req.Ticker),
				xlogger.Error(err),
			)
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, res)
}

// Sentiment handles GET /api/sentiment?query=&source=.
func (h *ForecastEchoHandler) Sentiment(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("sentiment rate limit exceeded"))
	}
	req := &models.SentimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sig := h.sentiment.AverageSentiment(c.Request().Context(), req.Query, models.SentimentSource(req.Source))
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, sig)
}

// mapForecastError converts domain errors to API errors.
func mapForecastError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInsufficientHistory):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_HISTORY", "not enough price history for the selected backend").WithError(err)
	case errors.Is(err, models.ErrFitFailed):
		return xhttp.UnprocessableError("ERR_FIT_FAILED", "the decomposition model could not be fitted").WithError(err)
	case errors.Is(err, models.ErrTrainingFailed):
		return xhttp.UnprocessableError("ERR_TRAINING_FAILED", "the sequence model failed to train").WithError(err)
	case errors.Is(err, models.ErrInvalidHorizon),
		errors.Is(err, models.ErrUnknownBackend),
		errors.Is(err, models.ErrInvalidSeries):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNoDataAvailable):
		return xhttp.UnavailableError("ERR_NO_DATA", "no price data available for this ticker").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError("ERR_TIMEOUT", "forecast timed out").WithError(err)
	default:
		return xhttp.InternalError("forecast failed").WithError(err)
	}
}
