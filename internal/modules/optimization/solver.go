package optimization

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Solver iteration schedule. The caps bound worst-case CPU per solve; the
// tolerances define convergence on both constraints.
const (
	solverMaxIterations = 3000
	solverTolerance     = 1e-6
	refinementMaxPasses = 200

	initialStepSize = 0.05
	minStepSize     = 0.0001
	maxStepSize     = 0.2
	stepShrink      = 0.95
	stepGrow        = 1.05

	// Iterations before the step size is allowed to shrink on large errors.
	stepAdaptWarmup = 200

	detEpsilon      = 1e-10
	varianceEpsilon = 1e-10
)

// MarkowitzSolver solves "minimize wᵀΣw subject to wᵀμ = target (optional),
// Σw = 1, w ≥ 0" via projected gradient descent: a closed-form 2×2
// Lagrange-multiplier correction steers the descent, and each iteration ends
// with an exact projection onto the target-return hyperplane so reachable
// targets converge to the full tolerance.
//
// The solver never fails: any numeric degradation degrades to a deterministic
// interpolation between the inverse-variance and max-return portfolios, tagged
// StatusInterpolated on the result. Unreachable targets silently converge
// toward the maximum-return portfolio.
type MarkowitzSolver struct {
	log zerolog.Logger
}

// NewMarkowitzSolver creates a new mean-variance solver.
func NewMarkowitzSolver(log zerolog.Logger) *MarkowitzSolver {
	return &MarkowitzSolver{
		log: log.With().Str("component", "solver").Logger(),
	}
}

// Solve returns portfolio weights for the given covariance matrix and
// expected returns. A nil target requests the pure minimum-variance
// portfolio. The returned weights are always non-negative and sum to 1.
func (s *MarkowitzSolver) Solve(sigma *mat.SymDense, mu []float64, target *float64) Solution {
	n := len(mu)
	if n == 0 {
		return Solution{Weights: []float64{}, Status: StatusInterpolated}
	}
	if n == 1 {
		return Solution{Weights: []float64{1}, Status: StatusConverged}
	}

	w := s.initialWeights(sigma, mu, target)
	w, converged := s.iterate(sigma, mu, target, w)
	if !converged {
		return Solution{Weights: s.Interpolate(sigma, mu, target), Status: StatusInterpolated}
	}

	if target != nil {
		s.refineToTarget(w, mu, *target, refinementMaxPasses)
	}

	if !validWeights(w) {
		return Solution{Weights: s.Interpolate(sigma, mu, target), Status: StatusInterpolated}
	}

	return Solution{Weights: w, Status: StatusConverged}
}

// initialWeights picks the starting portfolio. The choice matters for
// convergence quality, not just speed: starting on the right segment of the
// inverse-variance / max-return blend keeps the iteration near the feasible
// set for the requested target.
func (s *MarkowitzSolver) initialWeights(sigma *mat.SymDense, mu []float64, target *float64) []float64 {
	invVar := inverseVarianceWeights(sigma)
	if target == nil {
		return invVar
	}

	minMu := floats.Min(mu)
	maxMu := floats.Max(mu)

	switch {
	case *target > maxMu:
		return oneHotWeights(len(mu), floats.MaxIdx(mu))
	case *target < minMu:
		return invVar
	default:
		ratio := (*target - minMu) / (maxMu - minMu + varianceEpsilon)
		return blendWeights(invVar, oneHotWeights(len(mu), floats.MaxIdx(mu)), ratio)
	}
}

// iterate runs the projected-gradient loop. It reports converged=false only
// when the iteration produced non-finite values, which routes the caller to
// the interpolation fallback.
func (s *MarkowitzSolver) iterate(sigma *mat.SymDense, mu []float64, target *float64, w []float64) ([]float64, bool) {
	n := len(w)
	grad := make([]float64, n)
	wVec := mat.NewVecDense(n, w)
	gVec := mat.NewVecDense(n, grad)

	stepSize := initialStepSize

	for iter := 0; iter < solverMaxIterations; iter++ {
		// Gradient of variance: g = 2Σw
		gVec.MulVec(sigma, wVec)
		floats.Scale(2, grad)

		currentReturn := floats.Dot(w, mu)
		returnError := 0.0
		if target != nil {
			returnError = currentReturn - *target
		}
		sumError := floats.Sum(w) - 1

		if !floats.HasNaN(w) && math.Abs(returnError) < solverTolerance && math.Abs(sumError) < solverTolerance {
			return w, true
		}

		lambda1, lambda2 := s.lagrangeMultipliers(mu, grad, target != nil)

		// Projected update: step against the corrected gradient, clamp at
		// zero (no-short constraint), renormalize to the budget constraint.
		for i := 0; i < n; i++ {
			w[i] = math.Max(0, w[i]-stepSize*(grad[i]-lambda1*mu[i]-lambda2))
		}
		sum := floats.Sum(w)
		if sum < varianceEpsilon {
			uniform(w)
		} else {
			floats.Scale(1/sum, w)
		}

		if floats.HasNaN(w) {
			return nil, false
		}

		// Step-size adaptation.
		absReturnErr := math.Abs(returnError)
		absSumErr := math.Abs(sumError)
		if iter > stepAdaptWarmup && (absReturnErr > 0.01 || absSumErr > 0.01) {
			stepSize = math.Max(minStepSize, stepSize*stepShrink)
		} else if absReturnErr < 0.005 && absSumErr < 0.005 {
			stepSize = math.Min(maxStepSize, stepSize*stepGrow)
		}

		// Restore the return constraint exactly. Clamping may reintroduce a
		// small violation near the simplex boundary; repeated projection
		// closes it.
		if target != nil {
			projectToReturn(w, mu, *target)
		}
	}

	return w, true
}

// lagrangeMultipliers solves the 2×2 system
//
//	[μᵀμ  μᵀ1] [λ₁]   [μᵀg]
//	[μᵀ1   n ] [λ₂] = [1ᵀg]
//
// In minimum-variance mode only the budget constraint is active, so λ₁ = 0
// and λ₂ is the mean gradient. A near-singular system (degenerate μ) gets the
// same cheap fallback.
func (s *MarkowitzSolver) lagrangeMultipliers(mu, grad []float64, withReturn bool) (float64, float64) {
	n := float64(len(mu))

	if !withReturn {
		return 0, floats.Sum(grad) / n
	}

	a11 := floats.Dot(mu, mu)
	a12 := floats.Sum(mu)
	b1 := floats.Dot(mu, grad)
	b2 := floats.Sum(grad)

	det := a11*n - a12*a12
	if math.Abs(det) < detEpsilon {
		return 0, b2 / n
	}

	lambda1 := (b1*n - b2*a12) / det
	lambda2 := (a11*b2 - a12*b1) / det
	return lambda1, lambda2
}

// refineToTarget runs up to maxPasses projection passes toward the exact
// target return. Stops early when the error drops below 1e-5, the target is
// provably unreachable, or a pass makes no progress (the simplex boundary or
// a degenerate μ blocks further movement).
func (s *MarkowitzSolver) refineToTarget(w, mu []float64, target float64, maxPasses int) {
	maxMu := floats.Max(mu)
	prevErr := math.Inf(1)

	for pass := 0; pass < maxPasses; pass++ {
		currentReturn := floats.Dot(w, mu)
		err := math.Abs(currentReturn - target)

		if err < 1e-5 {
			return
		}
		// Unreachable target: already pinned against the max-return asset.
		if target > maxMu && maxMu-currentReturn < solverTolerance {
			return
		}
		if err >= prevErr {
			return
		}
		prevErr = err

		projectToReturn(w, mu, target)
	}
}

// projectToReturn moves the weights onto the target-return hyperplane along
// the sum-preserving direction μ − μ̄, then clamps at zero and renormalizes.
// When the clamp stays inactive the resulting return is exact; a degenerate μ
// (all expected returns equal) leaves the weights untouched.
func projectToReturn(w, mu []float64, target float64) {
	mean := floats.Sum(mu) / float64(len(mu))
	var spread float64 // μᵀ(μ − μ̄); zero only when all returns coincide
	for _, m := range mu {
		spread += m * (m - mean)
	}
	if spread < detEpsilon {
		return
	}

	shift := (target - floats.Dot(w, mu)) / spread
	for i := range w {
		w[i] = math.Max(0, w[i]+shift*(mu[i]-mean))
	}

	sum := floats.Sum(w)
	if sum < varianceEpsilon {
		uniform(w)
	} else {
		floats.Scale(1/sum, w)
	}
}

// Interpolate returns the deterministic fallback portfolio: a blend of the
// inverse-variance portfolio and the one-hot max-return portfolio, positioned
// by where the target sits between the minimum and maximum expected returns.
// This is the designed degrade-gracefully path, not an error.
func (s *MarkowitzSolver) Interpolate(sigma *mat.SymDense, mu []float64, target *float64) []float64 {
	invVar := inverseVarianceWeights(sigma)
	if target == nil || len(mu) == 0 {
		return invVar
	}

	minMu := floats.Min(mu)
	maxMu := floats.Max(mu)
	ratio := (*target - minMu) / (maxMu - minMu + varianceEpsilon)
	ratio = math.Max(0, math.Min(1, ratio))

	return blendWeights(invVar, oneHotWeights(len(mu), floats.MaxIdx(mu)), ratio)
}

// PortfolioVariance computes wᵀΣw.
func PortfolioVariance(w []float64, sigma *mat.SymDense) float64 {
	n := len(w)
	var variance float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return variance
}

// inverseVarianceWeights returns weights proportional to 1/Σᵢᵢ.
func inverseVarianceWeights(sigma *mat.SymDense) []float64 {
	n := sigma.SymmetricDim()
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 1 / (sigma.At(i, i) + varianceEpsilon)
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

func oneHotWeights(n, idx int) []float64 {
	w := make([]float64, n)
	w[idx] = 1
	return w
}

func blendWeights(a, b []float64, ratio float64) []float64 {
	w := make([]float64, len(a))
	for i := range w {
		w[i] = (1-ratio)*a[i] + ratio*b[i]
	}
	sum := floats.Sum(w)
	if sum > 0 {
		floats.Scale(1/sum, w)
	}
	return w
}

func uniform(w []float64) {
	for i := range w {
		w[i] = 1 / float64(len(w))
	}
}

// validWeights checks the output contract: finite, non-negative, sum ≈ 1.
func validWeights(w []float64) bool {
	sum := 0.0
	for _, v := range w {
		if !isFinite(v) || v < 0 {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) < 1e-4
}
