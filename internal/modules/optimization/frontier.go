package optimization

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TradingDaysPerYear annualizes daily-return variance for reported risk.
const TradingDaysPerYear = 252.0

// Max densification rounds when padding a sparse frontier. Termination is
// also guaranteed by the no-new-unique-points check; the cap bounds the work
// when uniqueness is exhausted early.
const maxPaddingRounds = 6

// FrontierGenerator sweeps target returns between the minimum-variance return
// and the maximum single-asset return and produces a bounded, de-duplicated,
// risk-sorted efficient frontier.
type FrontierGenerator struct {
	solver      *MarkowitzSolver
	tradingDays float64
	log         zerolog.Logger
}

// NewFrontierGenerator creates a new frontier generator.
func NewFrontierGenerator(solver *MarkowitzSolver, log zerolog.Logger) *FrontierGenerator {
	return &FrontierGenerator{
		solver:      solver,
		tradingDays: TradingDaysPerYear,
		log:         log.With().Str("component", "frontier").Logger(),
	}
}

// candidate is an unrounded frontier point used during de-duplication.
type candidate struct {
	ret     float64 // decimal
	risk    float64 // decimal, annualized volatility
	weights []float64
}

// Generate produces exactly numPoints frontier points for the given
// covariance matrix and expected returns (decimals).
func (g *FrontierGenerator) Generate(sigma *mat.SymDense, mu []float64, numPoints int) Frontier {
	if numPoints < 2 {
		numPoints = 2
	}

	minVar := g.solver.Solve(sigma, mu, nil)
	minReturn := floats.Dot(minVar.Weights, mu)
	maxReturn := floats.Max(mu)

	seen := make(map[string]bool)
	points := make([]candidate, 0, numPoints)

	interpolated := 0
	for _, target := range targetGrid(minReturn, maxReturn, numPoints) {
		t := target
		sol := g.solver.Solve(sigma, mu, &t)
		if sol.Status == StatusInterpolated {
			interpolated++
		}
		points = appendUnique(points, seen, g.evaluate(sol.Weights, sigma, mu))
	}

	sort.Slice(points, func(i, j int) bool { return points[i].risk < points[j].risk })

	if len(points) >= numPoints {
		points = strideSubsample(points, numPoints)
	} else {
		points = g.padWithInterpolation(points, seen, sigma, mu, minReturn, maxReturn, numPoints)
		sort.Slice(points, func(i, j int) bool { return points[i].risk < points[j].risk })
	}

	g.log.Debug().
		Int("points", len(points)).
		Int("interpolated_solves", interpolated).
		Float64("min_return", minReturn).
		Float64("max_return", maxReturn).
		Msg("Generated efficient frontier")

	return g.toFrontier(points)
}

// evaluate computes the (return, risk) pair for a weight vector.
func (g *FrontierGenerator) evaluate(w []float64, sigma *mat.SymDense, mu []float64) candidate {
	return candidate{
		ret:     floats.Dot(w, mu),
		risk:    math.Sqrt(PortfolioVariance(w, sigma) * g.tradingDays),
		weights: w,
	}
}

// padWithInterpolation synthesizes additional unique points from
// progressively denser target grids using the deterministic interpolation
// blend. Rounds stop as soon as a full grid adds nothing new.
func (g *FrontierGenerator) padWithInterpolation(
	points []candidate,
	seen map[string]bool,
	sigma *mat.SymDense,
	mu []float64,
	minReturn, maxReturn float64,
	numPoints int,
) []candidate {
	gridSize := numPoints
	for round := 0; round < maxPaddingRounds && len(points) < numPoints; round++ {
		gridSize *= 2
		added := false
		for _, target := range targetGrid(minReturn, maxReturn, gridSize) {
			t := target
			w := g.solver.Interpolate(sigma, mu, &t)
			before := len(points)
			points = appendUnique(points, seen, g.evaluate(w, sigma, mu))
			if len(points) > before {
				added = true
			}
			if len(points) >= numPoints {
				return points
			}
		}
		if !added {
			break
		}
	}
	return points
}

// toFrontier applies the output formatting contract: percentages rounded to
// 2 decimals, weights to 4.
func (g *FrontierGenerator) toFrontier(points []candidate) Frontier {
	out := make([]FrontierPoint, len(points))
	minReturn := math.Inf(1)
	maxReturn := math.Inf(-1)

	for i, p := range points {
		retPct := roundTo(p.ret*100, 2)
		riskPct := roundTo(p.risk*100, 2)
		weights := make([]float64, len(p.weights))
		for j, w := range p.weights {
			weights[j] = roundTo(w, 4)
		}
		out[i] = FrontierPoint{Risk: riskPct, Return: retPct, Weights: weights}

		minReturn = math.Min(minReturn, retPct)
		maxReturn = math.Max(maxReturn, retPct)
	}

	if len(out) == 0 {
		minReturn, maxReturn = 0, 0
	}

	return Frontier{Points: out, MinReturn: minReturn, MaxReturn: maxReturn}
}

// appendUnique keeps only the first occurrence of each rounded
// (return, risk) pair. Rounding to 5 decimals bounds frontier bloat from
// near-converged neighboring targets.
func appendUnique(points []candidate, seen map[string]bool, c candidate) []candidate {
	key := fmt.Sprintf("%.5f|%.5f", c.ret, c.risk)
	if seen[key] {
		return points
	}
	seen[key] = true
	return append(points, c)
}

// targetGrid returns count evenly spaced targets across [lo, hi].
func targetGrid(lo, hi float64, count int) []float64 {
	if count < 2 {
		count = 2
	}
	targets := make([]float64, count)
	step := (hi - lo) / float64(count-1)
	for i := range targets {
		targets[i] = lo + float64(i)*step
	}
	return targets
}

// strideSubsample returns exactly want points, evenly strided across the
// risk-sorted candidates, filling any shortfall with the next unused points.
func strideSubsample(points []candidate, want int) []candidate {
	stride := len(points) / want
	if stride < 1 {
		stride = 1
	}

	used := make([]bool, len(points))
	out := make([]candidate, 0, want)
	for i := 0; i < len(points) && len(out) < want; i += stride {
		out = append(out, points[i])
		used[i] = true
	}
	for i := 0; i < len(points) && len(out) < want; i++ {
		if !used[i] {
			out = append(out, points[i])
			used[i] = true
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].risk < out[j].risk })
	return out
}

func roundTo(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
