package optimization

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phungthien97/portfolio-profit-maximizer/internal/cache"
	"github.com/phungthien97/portfolio-profit-maximizer/internal/database"
)

func testAssets() []Asset {
	return []Asset{
		{Symbol: "AAA", AnnualReturnPct: 8.0, Prices: []float64{100, 102, 101, 105, 103, 107}},
		{Symbol: "BBB", AnnualReturnPct: 12.0, Prices: []float64{50, 52, 49, 53, 55, 54}},
	}
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "cache.db"),
		Name: "test-cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return cache.New(db.Conn(), time.Hour)
}

func TestValidateAssets(t *testing.T) {
	t.Run("valid assets pass", func(t *testing.T) {
		assert.NoError(t, ValidateAssets(testAssets()))
	})

	t.Run("requires at least two assets", func(t *testing.T) {
		err := ValidateAssets(testAssets()[:1])
		var validationErr *InputValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "assets", validationErr.Field)
	})

	t.Run("rejects empty symbol", func(t *testing.T) {
		assets := testAssets()
		assets[0].Symbol = ""
		assert.Error(t, ValidateAssets(assets))
	})

	t.Run("rejects too few prices", func(t *testing.T) {
		assets := testAssets()
		assets[1].Prices = []float64{100}
		err := ValidateAssets(assets)
		var validationErr *InputValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "BBB", validationErr.Field)
	})
}

func TestService_ComputeFrontier(t *testing.T) {
	t.Run("without cache", func(t *testing.T) {
		service := NewService(nil, 10, zerolog.Nop())

		frontier, err := service.ComputeFrontier(testAssets())
		require.NoError(t, err)

		assert.NotEmpty(t, frontier.Points)
		assert.LessOrEqual(t, frontier.MinReturn, frontier.MaxReturn)
	})

	t.Run("second call served from cache", func(t *testing.T) {
		service := NewService(newTestCache(t), 10, zerolog.Nop())

		first, err := service.ComputeFrontier(testAssets())
		require.NoError(t, err)

		second, err := service.ComputeFrontier(testAssets())
		require.NoError(t, err)

		assert.Equal(t, first.Points, second.Points)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		service := NewService(nil, 10, zerolog.Nop())

		_, err := service.ComputeFrontier(nil)
		var validationErr *InputValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestService_ResolveAllocation(t *testing.T) {
	service := NewService(nil, 10, zerolog.Nop())

	t.Run("resolves a reachable target", func(t *testing.T) {
		alloc, err := service.ResolveAllocation(testAssets(), 10.0, 10000, false)
		require.NoError(t, err)

		assert.True(t, alloc.Achievable)
		require.Len(t, alloc.Lines, 2)
		assert.InDelta(t, 10.0, alloc.PortfolioReturn, 0.1)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := service.ResolveAllocation(testAssets(), 10.0, 0, false)
		var validationErr *InputValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "amount", validationErr.Field)
	})

	t.Run("frontier mode rejects out of range targets", func(t *testing.T) {
		_, err := service.ResolveAllocation(testAssets(), 99.0, 10000, true)
		var validationErr *InputValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "target_return_pct", validationErr.Field)
	})

	t.Run("frontier mode resolves in range targets", func(t *testing.T) {
		alloc, err := service.ResolveAllocation(testAssets(), 10.0, 10000, true)
		require.NoError(t, err)
		assert.True(t, alloc.Achievable)
	})
}

func TestHashAssets(t *testing.T) {
	assets := testAssets()

	t.Run("order independent", func(t *testing.T) {
		reversed := []Asset{assets[1], assets[0]}
		assert.Equal(t, hashAssets(assets), hashAssets(reversed))
	})

	t.Run("changes when data changes", func(t *testing.T) {
		modified := testAssets()
		modified[0].Prices = append(modified[0].Prices, 110)
		assert.NotEqual(t, hashAssets(assets), hashAssets(modified))
	})
}
