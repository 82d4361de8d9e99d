package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
)

func TestTokenEstimatorBasics(t *testing.T) {
	te := NewTokenEstimator(4)

	assert.Equal(t, 0, te.Estimate(""))
	assert.Equal(t, 1, te.Estimate("abc"))
	assert.Equal(t, 1, te.Estimate("abcd"))
	assert.Equal(t, 2, te.Estimate("abcde"))
	assert.Equal(t, 25, te.Estimate(strings.Repeat("x", 100)))
}

func TestTokenEstimatorDefaultRatio(t *testing.T) {
	te := NewTokenEstimator(0)
	assert.Equal(t, 1, te.Estimate("abcd"))
}

func TestTokenEstimatorUsesRequiredTier(t *testing.T) {
	te := NewTokenEstimator(4)
	msg := &entity.Message{
		ContentFull:   strings.Repeat("f", 400),
		ContentMedium: strings.Repeat("m", 200),
		ContentShort:  strings.Repeat("s", 40),
		RequiredTier:  entity.TierShort,
	}

	assert.Equal(t, 10, te.EstimateAtRequiredTier(msg))

	msg.RequiredTier = entity.TierFull
	assert.Equal(t, 100, te.EstimateAtRequiredTier(msg))

	assert.Equal(t, 100, te.EstimateContextual([]*entity.Message{msg}))
}
