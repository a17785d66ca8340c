package optimization

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyReturns(t *testing.T) {
	t.Run("computes simple returns", func(t *testing.T) {
		returns := DailyReturns([]float64{100, 110, 99})

		require.Len(t, returns, 2)
		assert.InDelta(t, 0.10, returns[0], 1e-12)
		assert.InDelta(t, -0.10, returns[1], 1e-12)
	})

	t.Run("skips pairs with non-positive preceding price", func(t *testing.T) {
		returns := DailyReturns([]float64{100, 0, 110, 121})

		// 100->0 kept (preceding 100 is valid), 0->110 skipped.
		require.Len(t, returns, 2)
		assert.InDelta(t, -1.0, returns[0], 1e-12)
		assert.InDelta(t, 0.10, returns[1], 1e-12)
	})

	t.Run("skips NaN observations", func(t *testing.T) {
		returns := DailyReturns([]float64{100, math.NaN(), 110, 121})

		require.Len(t, returns, 1)
		assert.InDelta(t, 0.10, returns[0], 1e-12)
	})

	t.Run("too short series yields empty", func(t *testing.T) {
		assert.Empty(t, DailyReturns([]float64{100}))
		assert.Empty(t, DailyReturns(nil))
	})
}

func TestCovarianceEstimator_Estimate(t *testing.T) {
	estimator := NewCovarianceEstimator(zerolog.Nop())

	t.Run("produces symmetric matrix", func(t *testing.T) {
		assets := []Asset{
			{Symbol: "AAA", Prices: []float64{100, 102, 101, 105, 103}},
			{Symbol: "BBB", Prices: []float64{50, 49, 51, 50, 52}},
			{Symbol: "CCC", Prices: []float64{200, 210, 205, 215, 220}},
		}

		sigma, err := estimator.Estimate(assets)
		require.NoError(t, err)
		require.Equal(t, 3, sigma.SymmetricDim())

		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.Equal(t, sigma.At(i, j), sigma.At(j, i))
			}
		}
	})

	t.Run("variance matches population formula", func(t *testing.T) {
		// Returns are +10% and -10%; mean 0, population variance 0.01.
		assets := []Asset{
			{Symbol: "AAA", Prices: []float64{100, 110, 99}},
			{Symbol: "BBB", Prices: []float64{100, 110, 99}},
		}

		sigma, err := estimator.Estimate(assets)
		require.NoError(t, err)
		assert.InDelta(t, 0.01, sigma.At(0, 0), 1e-10)
		assert.InDelta(t, 0.01, sigma.At(1, 1), 1e-10)
		// Identical series are perfectly correlated.
		assert.InDelta(t, 0.01, sigma.At(0, 1), 1e-10)
	})

	t.Run("aligns series by truncating to shortest", func(t *testing.T) {
		assets := []Asset{
			{Symbol: "LONG", Prices: []float64{90, 95, 100, 110, 99}},
			{Symbol: "SHORT", Prices: []float64{100, 110, 99}},
		}

		sigma, err := estimator.Estimate(assets)
		require.NoError(t, err)

		// Both aligned to the last 2 returns of LONG: +10%, -10%.
		assert.InDelta(t, sigma.At(0, 0), sigma.At(1, 1), 1e-10)
	})

	t.Run("insufficient data", func(t *testing.T) {
		assets := []Asset{
			{Symbol: "AAA", Prices: []float64{100}},
			{Symbol: "BBB", Prices: []float64{100, 110, 99}},
		}

		_, err := estimator.Estimate(assets)
		assert.True(t, errors.Is(err, ErrInsufficientData))
	})

	t.Run("no assets", func(t *testing.T) {
		_, err := estimator.Estimate(nil)
		assert.True(t, errors.Is(err, ErrInsufficientData))
	})

	t.Run("constant prices give zero variance", func(t *testing.T) {
		assets := []Asset{
			{Symbol: "FLAT", Prices: []float64{100, 100, 100, 100}},
			{Symbol: "MOVE", Prices: []float64{100, 110, 99, 105}},
		}

		sigma, err := estimator.Estimate(assets)
		require.NoError(t, err)
		assert.Zero(t, sigma.At(0, 0))
		assert.Greater(t, sigma.At(1, 1), 0.0)
	})
}
