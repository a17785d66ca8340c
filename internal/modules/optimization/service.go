// Package optimization provides the portfolio optimization engine: covariance
// estimation, constrained mean-variance solving, efficient frontier
// generation, and allocation resolution.
package optimization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/phungthien97/portfolio-profit-maximizer/internal/cache"
)

// Service orchestrates the engine. All computation is synchronous and pure
// over its inputs; concurrent requests are independent. The optional cache
// stores covariance matrices and frontiers keyed by the asset set.
type Service struct {
	estimator *CovarianceEstimator
	solver    *MarkowitzSolver
	frontier  *FrontierGenerator
	resolver  *AllocationResolver
	cache     *cache.Cache // optional
	numPoints int
	log       zerolog.Logger
}

// NewService creates a new optimization service. resultCache may be nil, in
// which case every request computes fresh.
func NewService(resultCache *cache.Cache, numPoints int, log zerolog.Logger) *Service {
	solver := NewMarkowitzSolver(log)
	return &Service{
		estimator: NewCovarianceEstimator(log),
		solver:    solver,
		frontier:  NewFrontierGenerator(solver, log),
		resolver:  NewAllocationResolver(solver, log),
		cache:     resultCache,
		numPoints: numPoints,
		log:       log.With().Str("component", "optimizer").Logger(),
	}
}

// cachedCovariance holds a covariance matrix for cache serialization.
type cachedCovariance struct {
	Cov [][]float64 `json:"cov"`
}

// ValidateAssets enforces the boundary contract: at least 2 assets, each with
// a finite annualized return and at least 2 usable price points.
func ValidateAssets(assets []Asset) error {
	if len(assets) < 2 {
		return NewInputValidationError("assets", fmt.Sprintf("need at least 2 assets, got %d", len(assets)))
	}
	for _, a := range assets {
		if a.Symbol == "" {
			return NewInputValidationError("assets", "asset with empty symbol")
		}
		if !isFinite(a.AnnualReturnPct) {
			return NewInputValidationError(a.Symbol, "annualized return is not a finite number")
		}
		if len(a.Prices) < 2 {
			return NewInputValidationError(a.Symbol, fmt.Sprintf("need at least 2 price points, got %d", len(a.Prices)))
		}
	}
	return nil
}

// ComputeFrontier builds (or retrieves) the efficient frontier for the given
// assets.
func (s *Service) ComputeFrontier(assets []Asset) (*Frontier, error) {
	if err := ValidateAssets(assets); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	key := hashAssets(assets)

	var frontier Frontier
	if s.cache != nil && s.cache.GetJSON("frontier:"+key, &frontier) {
		s.log.Debug().
			Str("run_id", runID).
			Str("hash", key[:8]).
			Msg("Using cached frontier")
		return &frontier, nil
	}

	sigma, mu, err := s.riskModel(assets, key)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("run_id", runID).
		Int("num_assets", len(assets)).
		Int("num_points", s.numPoints).
		Msg("Generating efficient frontier")

	frontier = s.frontier.Generate(sigma, mu, s.numPoints)

	if s.cache != nil {
		if err := s.cache.SetJSON("frontier:"+key, frontier); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache frontier")
		}
	}

	return &frontier, nil
}

// ResolveAllocation resolves a single allocation for a requested return
// (percent) and investment amount. When useFrontier is set, the frontier is
// computed first, the target is validated against its range, and the
// nearest-point fallback becomes available to the resolver.
func (s *Service) ResolveAllocation(assets []Asset, targetReturnPct, amount float64, useFrontier bool) (*Allocation, error) {
	if err := ValidateAssets(assets); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, NewInputValidationError("amount", "investment amount must be positive")
	}

	var frontier *Frontier
	if useFrontier {
		f, err := s.ComputeFrontier(assets)
		if err != nil {
			return nil, err
		}
		if targetReturnPct < f.MinReturn || targetReturnPct > f.MaxReturn {
			return nil, NewInputValidationError("target_return_pct", fmt.Sprintf(
				"requested return %.2f%% is outside the achievable range [%.2f%%, %.2f%%]",
				targetReturnPct, f.MinReturn, f.MaxReturn))
		}
		frontier = f
	}

	sigma, mu, err := s.riskModel(assets, hashAssets(assets))
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.Symbol
	}

	s.log.Info().
		Float64("target_return_pct", targetReturnPct).
		Float64("amount", amount).
		Int("num_assets", len(assets)).
		Msg("Resolving allocation")

	return s.resolver.Resolve(targetReturnPct, amount, symbols, sigma, mu, frontier)
}

// riskModel returns the covariance matrix (cached when possible) and the
// expected return vector in decimals, ordered by the caller's asset order.
func (s *Service) riskModel(assets []Asset, key string) (*mat.SymDense, []float64, error) {
	mu := make([]float64, len(assets))
	for i, a := range assets {
		mu[i] = a.AnnualReturnPct / 100
	}

	if s.cache != nil {
		var cached cachedCovariance
		if s.cache.GetJSON("covariance:"+key, &cached) && len(cached.Cov) == len(assets) {
			sigma := mat.NewSymDense(len(assets), nil)
			for i := range cached.Cov {
				for j := i; j < len(cached.Cov[i]); j++ {
					sigma.SetSym(i, j, cached.Cov[i][j])
				}
			}
			s.log.Debug().Str("hash", key[:8]).Msg("Using cached covariance matrix")
			return sigma, mu, nil
		}
	}

	sigma, err := s.estimator.Estimate(assets)
	if err != nil {
		return nil, nil, err
	}

	if s.cache != nil {
		n := sigma.SymmetricDim()
		cov := make([][]float64, n)
		for i := 0; i < n; i++ {
			cov[i] = make([]float64, n)
			for j := 0; j < n; j++ {
				cov[i][j] = sigma.At(i, j)
			}
		}
		if err := s.cache.SetJSON("covariance:"+key, cachedCovariance{Cov: cov}); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache covariance matrix")
		}
	}

	return sigma, mu, nil
}

// hashAssets creates a deterministic cache key from the asset set. Symbols
// are sorted so the key is order-independent; series length and last price
// are included so refreshed data invalidates stale entries.
func hashAssets(assets []Asset) string {
	parts := make([]string, len(assets))
	for i, a := range assets {
		last := 0.0
		if len(a.Prices) > 0 {
			last = a.Prices[len(a.Prices)-1]
		}
		parts[i] = fmt.Sprintf("%s|%d|%.6f|%.4f", a.Symbol, len(a.Prices), last, a.AnnualReturnPct)
	}
	sort.Strings(parts)
	h := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(h[:16])
}
