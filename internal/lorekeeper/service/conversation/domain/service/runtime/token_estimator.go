package runtime

import (
	"math"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
)

// TokenEstimator approximates token counts from character length.
//
// The project has no local tokenizer; a chars-per-token heuristic is enough
// because every consumer only needs relative ordering and a safety margin,
// never exact counts. The ratio is configurable to allow tuning per model
// family.
type TokenEstimator struct {
	charsPerToken float64
}

// DefaultCharsPerToken approximates English text for common tokenizers.
const DefaultCharsPerToken = 4.0

// NewTokenEstimator creates an estimator with the given chars-per-token
// ratio. If ratio <= 0, DefaultCharsPerToken is used.
func NewTokenEstimator(charsPerToken float64) *TokenEstimator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &TokenEstimator{charsPerToken: charsPerToken}
}

// Estimate estimates tokens for a raw string.
func (te *TokenEstimator) Estimate(s string) int {
	if len(s) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / te.charsPerToken))
}

// EstimateAtRequiredTier estimates tokens for a message's required-tier
// content.
func (te *TokenEstimator) EstimateAtRequiredTier(msg *entity.Message) int {
	if msg == nil {
		return 0
	}
	return te.Estimate(msg.ContentAtRequiredTier())
}

// EstimateContextual sums required-tier estimates over a message list.
func (te *TokenEstimator) EstimateContextual(msgs []*entity.Message) int {
	total := 0
	for _, msg := range msgs {
		total += te.EstimateAtRequiredTier(msg)
	}
	return total
}
