package risk

import (
	"github.com/jonreiter/govader"

	"advocate_backend/internal/leads/domain"
)

// Analyzer scores the tone of a conversation on a -1..1 scale.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// NewAnalyzer creates a lexicon-based sentiment analyzer. It needs no
// model calls and is safe to share across goroutines for read-only use.
func NewAnalyzer() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// MessageScores returns the compound sentiment of every message, oldest
// first. Every turn is scored regardless of sender so a curt staff reply
// and a frustrated patient both move the needle.
func (a *Analyzer) MessageScores(messages []domain.Message) []float64 {
	scores := make([]float64, 0, len(messages))
	for _, msg := range messages {
		scores = append(scores, a.vader.PolarityScores(msg.Body).Compound)
	}
	return scores
}

// ConversationSentiment returns the recency-weighted compound sentiment of
// the conversation. Messages arrive oldest first; later messages weigh more
// so a recent turn for the worse dominates old pleasantries. Returns 0 for
// an empty conversation.
func (a *Analyzer) ConversationSentiment(messages []domain.Message) float64 {
	return weightedAverage(a.MessageScores(messages))
}

// weightedAverage weighs values by position, 1 for the oldest up to n for
// the most recent.
func weightedAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum, weightSum float64
	for i, v := range values {
		weight := float64(i + 1)
		sum += v * weight
		weightSum += weight
	}
	return sum / weightSum
}
