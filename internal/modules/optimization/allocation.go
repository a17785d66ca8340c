package optimization

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Allocation refinement schedule. Separate from the solver's own refinement:
// the resolver works harder on a single point than the frontier sweep can
// afford per point.
const (
	allocationMaxIterations   = 500
	allocationNoImprovementAt = 50
	allocationStuckBoostAt    = 20
	allocationBoostTopN       = 3
	allocationBoostAmount     = 0.05

	// Beyond this return deviation (percentage points) the resolver falls
	// back to the nearest frontier point, when a frontier is available.
	frontierFallbackThresholdPct = 0.1
)

// AllocationResolver turns a requested return into a concrete allocation:
// per-asset percentages and absolute amounts for a given investment sum.
type AllocationResolver struct {
	solver      *MarkowitzSolver
	tradingDays float64
	log         zerolog.Logger
}

// NewAllocationResolver creates a new allocation resolver.
func NewAllocationResolver(solver *MarkowitzSolver, log zerolog.Logger) *AllocationResolver {
	return &AllocationResolver{
		solver:      solver,
		tradingDays: TradingDaysPerYear,
		log:         log.With().Str("component", "allocation").Logger(),
	}
}

// Resolve produces an allocation for targetReturnPct (percent) over an
// investment of amount. A previously computed frontier may be supplied for
// the nearest-point fallback; pass nil to skip it. Targets above the maximum
// achievable return are clamped, not rejected.
func (r *AllocationResolver) Resolve(
	targetReturnPct float64,
	amount float64,
	symbols []string,
	sigma *mat.SymDense,
	mu []float64,
	frontier *Frontier,
) (*Allocation, error) {
	if len(mu) < 2 || len(symbols) != len(mu) {
		return nil, ErrUnresolvedAllocation
	}

	target := targetReturnPct / 100
	achievable := true
	maxMu := floats.Max(mu)
	if target > maxMu {
		target = maxMu
		achievable = false
	}

	sol := r.solver.Solve(sigma, mu, &target)
	w := sol.Weights

	achieved := floats.Dot(w, mu)
	if math.Abs(achieved-target) > solverTolerance {
		r.refine(w, mu, target)
		achieved = floats.Dot(w, mu)
	}

	// Still far off: fall back to the closest frontier point when one exists.
	if frontier != nil && math.Abs(achieved-target)*100 > frontierFallbackThresholdPct {
		if fw := r.nearestFrontierWeights(frontier, targetReturnPct, sigma, mu, target); fw != nil {
			w = fw
			achieved = floats.Dot(w, mu)
		}
	}

	if !validWeights(w) {
		return nil, ErrUnresolvedAllocation
	}

	risk := math.Sqrt(PortfolioVariance(w, sigma) * r.tradingDays)

	r.log.Debug().
		Float64("requested_pct", targetReturnPct).
		Float64("achieved_pct", achieved*100).
		Bool("achievable", achievable).
		Str("solve_status", sol.Status.String()).
		Msg("Resolved allocation")

	return r.buildAllocation(w, symbols, amount, achieved, risk, targetReturnPct, achievable), nil
}

// refine projects the weights toward the exact target return, breaking after
// a run of non-improving passes and escaping plateaus by boosting the assets
// most able to close the gap. Improvements below the solver tolerance count
// as no progress so the escapes actually engage.
func (r *AllocationResolver) refine(w, mu []float64, target float64) {
	maxMu := floats.Max(mu)
	bestErr := math.Abs(floats.Dot(w, mu) - target)
	noImprovement := 0
	stuck := 0

	for iter := 0; iter < allocationMaxIterations; iter++ {
		currentReturn := floats.Dot(w, mu)
		err := target - currentReturn

		if math.Abs(err) <= solverTolerance {
			return
		}
		if target > maxMu && maxMu-currentReturn < solverTolerance {
			return
		}

		projectToReturn(w, mu, target)

		newErr := math.Abs(floats.Dot(w, mu) - target)
		if newErr < bestErr-solverTolerance {
			bestErr = newErr
			noImprovement = 0
			stuck = 0
		} else {
			noImprovement++
			stuck++
		}

		if noImprovement >= allocationNoImprovementAt {
			return
		}
		if stuck >= allocationStuckBoostAt {
			r.boostExtremes(w, mu, err)
			bestErr = math.Abs(floats.Dot(w, mu) - target)
			stuck = 0
		}
	}
}

// boostExtremes shifts weight onto the assets most able to close the return
// gap: the top highest-return assets when the portfolio runs below target,
// the lowest-return ones when it runs above.
func (r *AllocationResolver) boostExtremes(w, mu []float64, err float64) {
	idx := make([]int, len(mu))
	for i := range idx {
		idx[i] = i
	}
	if err > 0 {
		sort.Slice(idx, func(a, b int) bool { return mu[idx[a]] > mu[idx[b]] })
	} else {
		sort.Slice(idx, func(a, b int) bool { return mu[idx[a]] < mu[idx[b]] })
	}

	for k := 0; k < allocationBoostTopN && k < len(idx); k++ {
		w[idx[k]] += allocationBoostAmount
	}
	floats.Scale(1/floats.Sum(w), w)
}

// nearestFrontierWeights picks the frontier point whose return is closest to
// the requested one (ties broken by lower risk) and optionally re-solves at
// that point's exact return when that sharpens the result.
func (r *AllocationResolver) nearestFrontierWeights(
	frontier *Frontier,
	targetReturnPct float64,
	sigma *mat.SymDense,
	mu []float64,
	target float64,
) []float64 {
	if len(frontier.Points) == 0 {
		return nil
	}

	best := frontier.Points[0]
	bestDist := math.Abs(best.Return - targetReturnPct)
	for _, p := range frontier.Points[1:] {
		dist := math.Abs(p.Return - targetReturnPct)
		if dist < bestDist || (dist == bestDist && p.Risk < best.Risk) {
			best = p
			bestDist = dist
		}
	}

	if len(best.Weights) != len(mu) {
		return nil
	}

	weights := make([]float64, len(best.Weights))
	copy(weights, best.Weights)
	if sum := floats.Sum(weights); sum > 0 {
		floats.Scale(1/sum, weights)
	}
	pointErr := math.Abs(floats.Dot(weights, mu) - target)

	// Re-solve at the frontier point's return; keep whichever lands closer.
	pointTarget := best.Return / 100
	resolved := r.solver.Solve(sigma, mu, &pointTarget)
	if math.Abs(floats.Dot(resolved.Weights, mu)-target) < pointErr {
		return resolved.Weights
	}
	return weights
}

// buildAllocation converts final weights into percent/amount lines. The
// largest line absorbs rounding residue so amounts sum to the investment
// amount and percentages to 100.
func (r *AllocationResolver) buildAllocation(
	w []float64,
	symbols []string,
	amount float64,
	achieved, risk, requestedPct float64,
	achievable bool,
) *Allocation {
	lines := make([]AllocationLine, len(w))
	largest := 0
	var pctSum, amtSum float64

	for i := range w {
		pct := roundTo(w[i]*100, 2)
		amt := roundTo(amount*w[i], 2)
		lines[i] = AllocationLine{Symbol: symbols[i], Percent: pct, Amount: amt}
		pctSum += pct
		amtSum += amt
		if w[i] > w[largest] {
			largest = i
		}
	}

	lines[largest].Percent = roundTo(lines[largest].Percent+(100-pctSum), 2)
	lines[largest].Amount = roundTo(lines[largest].Amount+(amount-amtSum), 2)

	return &Allocation{
		Lines:           lines,
		PortfolioReturn: roundTo(achieved*100, 2),
		PortfolioRisk:   roundTo(risk*100, 2),
		RequestedReturn: requestedPct,
		Achievable:      achievable,
	}
}
