package sentiment

import (
	"strings"
	"unicode"

	domsvc "PriceCast/internal/domain/service"
)

// baseLexicon maps lower-case words to polarity in [-1, 1]. General
// sentiment words plus market vocabulary common in headlines.
var baseLexicon = map[string]float64{
	// general
	"good": 0.7, "great": 0.8, "excellent": 1.0, "amazing": 0.6, "best": 1.0,
	"positive": 0.23, "happy": 0.8, "love": 0.5, "nice": 0.6, "strong": 0.43,
	"success": 0.3, "successful": 0.75, "win": 0.8, "wins": 0.8, "better": 0.5,
	"bad": -0.7, "terrible": -1.0, "awful": -1.0, "worst": -1.0, "poor": -0.4,
	"negative": -0.3, "sad": -0.5, "hate": -0.8, "weak": -0.38, "fail": -0.5,
	"fails": -0.5, "failure": -0.32, "worse": -0.4, "wrong": -0.5, "problem": -0.2,
	// markets
	"surge": 0.6, "surges": 0.6, "soar": 0.7, "soars": 0.7, "rally": 0.5,
	"rallies": 0.5, "gain": 0.4, "gains": 0.4, "jump": 0.4, "jumps": 0.4,
	"rise": 0.3, "rises": 0.3, "climb": 0.3, "climbs": 0.3, "record": 0.3,
	"beat": 0.5, "beats": 0.5, "upgrade": 0.6, "upgrades": 0.6, "bullish": 0.7,
	"outperform": 0.6, "profit": 0.4, "profits": 0.4, "growth": 0.4, "boost": 0.5,
	"boosts": 0.5, "optimism": 0.5, "optimistic": 0.5, "recovery": 0.3, "rebound": 0.4,
	"plunge": -0.7, "plunges": -0.7, "crash": -0.8, "crashes": -0.8, "slump": -0.6,
	"slumps": -0.6, "fall": -0.3, "falls": -0.3, "drop": -0.4, "drops": -0.4,
	"decline": -0.4, "declines": -0.4, "tumble": -0.6, "tumbles": -0.6, "sink": -0.5,
	"sinks": -0.5, "miss": -0.5, "misses": -0.5, "downgrade": -0.6, "downgrades": -0.6,
	"bearish": -0.7, "underperform": -0.6, "loss": -0.4, "losses": -0.4, "lawsuit": -0.5,
	"fraud": -0.9, "recession": -0.6, "layoffs": -0.5, "risk": -0.2, "risks": -0.2,
	"fears": -0.5, "fear": -0.5, "concern": -0.3, "concerns": -0.3, "volatile": -0.2,
	"bankruptcy": -0.9, "probe": -0.3, "warning": -0.4, "warns": -0.4, "cut": -0.3,
}

// intensifiers scale the polarity of the word that follows.
var intensifiers = map[string]float64{
	"very": 1.3, "extremely": 1.5, "really": 1.2, "highly": 1.3, "incredibly": 1.4,
	"sharply": 1.4, "slightly": 0.6, "somewhat": 0.7, "barely": 0.5, "massive": 1.4,
}

var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "without": {}, "isn't": {}, "aren't": {},
	"wasn't": {}, "don't": {}, "doesn't": {}, "didn't": {}, "won't": {}, "can't": {},
	"cannot": {}, "hardly": {},
}

// negationWindow is how many preceding tokens a negation reaches.
const negationWindow = 3

// Lexicon scores text by averaging the polarity of known words, adjusting
// for a preceding intensifier and flipping (and damping) negated words.
type Lexicon struct {
	words map[string]float64
}

// NewLexicon returns the built-in lexicon extended with extra entries.
func NewLexicon(extra map[string]float64) *Lexicon {
	words := make(map[string]float64, len(baseLexicon)+len(extra))
	for k, v := range baseLexicon {
		words[k] = v
	}
	for k, v := range extra {
		words[strings.ToLower(k)] = clamp(v)
	}
	return &Lexicon{words: words}
}

// Polarity returns a score in [-1, 1]; 0 when no known word is present.
func (l *Lexicon) Polarity(text string) float64 {
	tokens := tokenize(text)
	var sum float64
	var n int
	for i, tok := range tokens {
		p, ok := l.words[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if f, ok := intensifiers[tokens[i-1]]; ok {
				p *= f
			}
		}
		for j := i - 1; j >= 0 && j >= i-negationWindow; j-- {
			if _, ok := negations[tokens[j]]; ok {
				p *= -0.5
				break
			}
		}
		sum += clamp(p)
		n++
	}
	if n == 0 {
		return 0
	}
	return clamp(sum / float64(n))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}

var _ domsvc.PolarityScorer = (*Lexicon)(nil)
