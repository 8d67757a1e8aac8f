package models

import "strings"

// Requests for forecast HTTP endpoints and Kafka messages.

type ForecastRequest struct {
	RequestID   string `query:"request_id" json:"request_id,omitempty"`
	Ticker      string `query:"ticker" json:"ticker" validate:"required,ticker"`
	HorizonDays int    `query:"horizon" json:"horizon_days" default:"7" validate:"gte=1,lte=30"`
	Backend     string `query:"backend" json:"backend" default:"decomposition" validate:"oneof=decomposition sequence prophet lstm"`
	Sentiment   string `query:"sentiment" json:"sentiment_source" default:"news" validate:"oneof=news social feed none"`
}

// Normalize lower-cases the enum fields so "Prophet" and "prophet" validate alike.
func (r *ForecastRequest) Normalize() {
	r.Ticker = strings.TrimSpace(r.Ticker)
	r.Backend = strings.ToLower(strings.TrimSpace(r.Backend))
	r.Sentiment = strings.ToLower(strings.TrimSpace(r.Sentiment))
}

type SentimentRequest struct {
	Query  string `query:"query" json:"query" validate:"required"`
	Source string `query:"source" json:"source" default:"news" validate:"oneof=news social feed"`
}

func (r *SentimentRequest) Normalize() {
	r.Source = strings.ToLower(strings.TrimSpace(r.Source))
}

// ForecastResponse is what the caller receives for one forecast request.
type ForecastResponse struct {
	RequestID  string           `json:"request_id,omitempty"`
	Ticker     string           `json:"ticker"`
	DataSource SeriesSource     `json:"data_source"`
	RecentTail []PricePoint     `json:"recent_series_tail"`
	Forecast   *ForecastResult  `json:"forecast"`
	Sentiment  *SentimentSignal `json:"sentiment,omitempty"`
}
