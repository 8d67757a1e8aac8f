package models

// SentimentSource selects the text source scored by the aggregator.
type SentimentSource string

const (
	SentimentNews   SentimentSource = "news"
	SentimentSocial SentimentSource = "social"
	SentimentFeed   SentimentSource = "feed"
)

const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"

	// labelThreshold splits positive/negative from neutral.
	labelThreshold = 0.2
)

// SentimentSignal is the averaged polarity of recent text items.
// Score is 0.0 both for genuinely neutral text and when no signal could be
// obtained; Available distinguishes the two.
type SentimentSignal struct {
	Score     float64         `json:"score"`
	Available bool            `json:"signal_available"`
	Items     int             `json:"items"`
	Source    SentimentSource `json:"source"`
	Label     string          `json:"label"`
}

// SentimentLabel maps a score to positive/negative/neutral.
func SentimentLabel(score float64) string {
	switch {
	case score > labelThreshold:
		return LabelPositive
	case score < -labelThreshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// NeutralSentiment is the degraded signal returned when scoring is impossible.
func NeutralSentiment(source SentimentSource) SentimentSignal {
	return SentimentSignal{Source: source, Label: LabelNeutral}
}
