package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jnsofini/auto-scorecard/internal/config"
)

func TestConfigHash(t *testing.T) {
	a := testScorecard()
	b := testScorecard()

	assert.Len(t, ConfigHash(a), 32)
	assert.Equal(t, ConfigHash(a), ConfigHash(b))

	b.Cluster.MaxEigen = 1
	assert.NotEqual(t, ConfigHash(a), ConfigHash(b))

	// Params map ordering does not matter.
	a.Binning.Params = map[string]config.FeatureParams{"x": {MonotonicTrend: "ascending"}, "y": {MonotonicTrend: "descending"}}
	c := testScorecard()
	c.Binning.Params = map[string]config.FeatureParams{"y": {MonotonicTrend: "descending"}, "x": {MonotonicTrend: "ascending"}}
	assert.Equal(t, ConfigHash(a), ConfigHash(c))
}
