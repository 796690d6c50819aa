package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalTOMLParsesQuotedDuration(t *testing.T) {
	var d Duration
	err := d.UnmarshalTOML([]byte(`"5s"`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d.Get())
}

func TestDurationUnmarshalTOMLRejectsInvalidDuration(t *testing.T) {
	var d Duration
	err := d.UnmarshalTOML([]byte(`"not-a-duration"`))
	assert.Error(t, err)
}

func TestLoadIndexerReturnsDefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := LoadIndexer("")
	require.NoError(t, err)
	assert.Equal(t, DefaultIndexer(), cfg)
}

func TestLoadCoordinatorReturnsDefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := LoadCoordinator("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCoordinator(), cfg)
}

func TestLoadIndexerErrorsOnMissingFile(t *testing.T) {
	_, err := LoadIndexer("/nonexistent/path/config.toml")
	assert.Error(t, err)
}

func TestDefaultCoordinatorWeightsSumToOne(t *testing.T) {
	w := DefaultCoordinator().Weights
	sum := w.Success + w.Reliability + w.Efficiency + w.Consistency
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDefaultCoordinatorBidWeightsSumToOne(t *testing.T) {
	w := DefaultCoordinator().BidWeights
	sum := w.Reputation + w.Health + w.Bid + w.Time
	assert.InDelta(t, 1.0, sum, 1e-9)
}
