package optimization

// Asset is one instrument participating in optimization: an annualized
// expected return (percent, as delivered by the returns collaborator) and a
// cleaned, currency-normalized price history.
type Asset struct {
	Symbol          string    `json:"symbol"`
	AnnualReturnPct float64   `json:"annual_return_pct"`
	Prices          []float64 `json:"prices"`
}

// FrontierPoint is one (risk, return, weights) triple on the efficient frontier.
// Risk and Return are percentages; Weights follow the caller's asset order and
// are rounded to 4 decimals.
type FrontierPoint struct {
	Risk    float64   `json:"risk"`
	Return  float64   `json:"return"`
	Weights []float64 `json:"weights"`
}

// Frontier is an ordered sequence of points sorted ascending by risk.
// MinReturn and MaxReturn are the return bounds of the produced points,
// not theoretical bounds.
type Frontier struct {
	Points    []FrontierPoint `json:"points"`
	MinReturn float64         `json:"min_return"`
	MaxReturn float64         `json:"max_return"`
}

// AllocationLine is one asset's share of a resolved allocation.
type AllocationLine struct {
	Symbol  string  `json:"symbol"`
	Percent float64 `json:"percent"`
	Amount  float64 `json:"amount"`
}

// Allocation is the resolved weight vector for a requested return, expressed
// as per-asset percentages and absolute amounts.
type Allocation struct {
	Lines           []AllocationLine `json:"weights"`
	PortfolioReturn float64          `json:"portfolio_return"`
	PortfolioRisk   float64          `json:"portfolio_risk"`
	RequestedReturn float64          `json:"requested_return"`
	Achievable      bool             `json:"achievable"`
}

// SolveStatus distinguishes exact solver convergence from the deterministic
// interpolation fallback, so callers can tell exact from approximate results
// without control flow by exception.
type SolveStatus int

const (
	// StatusConverged means the projected-gradient solve produced the weights.
	StatusConverged SolveStatus = iota
	// StatusInterpolated means the solve degraded to the deterministic
	// interpolation between the inverse-variance and max-return portfolios.
	StatusInterpolated
)

// String returns a human-readable status label.
func (s SolveStatus) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusInterpolated:
		return "interpolated"
	default:
		return "unknown"
	}
}

// Solution is a solver result: a valid weight vector (non-negative, summing
// to 1) and how it was obtained.
type Solution struct {
	Weights []float64
	Status  SolveStatus
}
