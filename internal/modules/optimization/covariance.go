package optimization

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultFallbackCorrelation is the correlation assumed when a pairwise
// covariance cannot be computed from the data. This is a modeling
// simplification, tunable via CovarianceEstimator.FallbackCorrelation.
const DefaultFallbackCorrelation = 0.5

// CovarianceEstimator turns aligned price series into daily return series and
// a covariance matrix. It is a pure function of its inputs.
type CovarianceEstimator struct {
	// FallbackCorrelation is used to synthesize off-diagonal entries as
	// ρ·σᵢ·σⱼ when a true pairwise covariance cannot be computed.
	FallbackCorrelation float64
	log                 zerolog.Logger
}

// NewCovarianceEstimator creates a new covariance estimator.
func NewCovarianceEstimator(log zerolog.Logger) *CovarianceEstimator {
	return &CovarianceEstimator{
		FallbackCorrelation: DefaultFallbackCorrelation,
		log:                 log.With().Str("component", "covariance").Logger(),
	}
}

// DailyReturns produces (pᵢ − pᵢ₋₁)/pᵢ₋₁ for each adjacent pair. Pairs whose
// preceding price is not strictly positive are skipped, not zero-filled, so
// the output length may be shorter than len(prices) − 1.
func DailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 && !math.IsNaN(prices[i]) && !math.IsNaN(prices[i-1]) {
			returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	return returns
}

// Estimate builds the covariance matrix of daily returns for the given
// assets. Return series are aligned by truncating every series to the
// shortest length across assets, keeping the most recent observations.
// Covariances use the population (not sample-corrected) estimator.
//
// Returns ErrInsufficientData when the aligned length is zero.
func (e *CovarianceEstimator) Estimate(assets []Asset) (*mat.SymDense, error) {
	n := len(assets)
	if n == 0 {
		return nil, ErrInsufficientData
	}

	returns := make([][]float64, n)
	minLen := math.MaxInt
	for i, asset := range assets {
		returns[i] = DailyReturns(asset.Prices)
		if len(returns[i]) < minLen {
			minLen = len(returns[i])
		}
	}

	if minLen == 0 {
		e.log.Warn().Int("num_assets", n).Msg("No aligned return observations")
		return nil, ErrInsufficientData
	}

	// Truncate to the aligned length (most recent observations).
	means := make([]float64, n)
	for i := range returns {
		returns[i] = returns[i][len(returns[i])-minLen:]
		means[i] = stat.Mean(returns[i], nil)
	}

	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var sum float64
			for k := 0; k < minLen; k++ {
				sum += (returns[i][k] - means[i]) * (returns[j][k] - means[j])
			}
			sigma.SetSym(i, j, sum/float64(minLen))
		}
	}

	e.synthesizeDegenerate(sigma)

	e.log.Debug().
		Int("num_assets", n).
		Int("aligned_observations", minLen).
		Msg("Estimated covariance matrix")

	return sigma, nil
}

// synthesizeDegenerate replaces non-finite entries: diagonals fall back to 0,
// off-diagonals to FallbackCorrelation·σᵢ·σⱼ. True covariance can fail to be
// finite when a series carries corrupted observations that survived cleaning.
func (e *CovarianceEstimator) synthesizeDegenerate(sigma *mat.SymDense) {
	n := sigma.SymmetricDim()

	for i := 0; i < n; i++ {
		if !isFinite(sigma.At(i, i)) || sigma.At(i, i) < 0 {
			sigma.SetSym(i, i, 0)
		}
	}

	synthesized := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if isFinite(sigma.At(i, j)) {
				continue
			}
			sigmaI := math.Sqrt(sigma.At(i, i))
			sigmaJ := math.Sqrt(sigma.At(j, j))
			sigma.SetSym(i, j, e.FallbackCorrelation*sigmaI*sigmaJ)
			synthesized++
		}
	}

	if synthesized > 0 {
		e.log.Warn().
			Int("synthesized_entries", synthesized).
			Float64("assumed_correlation", e.FallbackCorrelation).
			Msg("Synthesized covariance entries from assumed correlation")
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
