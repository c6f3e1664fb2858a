package optimization

import (
	"context"
)

// Motor is the control side of the device surface: it moves a scalar
// control variable to a requested position. Settling is the motor's
// responsibility; Set returns once the position is representative.
type Motor interface {
	Set(ctx context.Context, position float64) error
}

// Detector is the observe side of the device surface: it reads the
// scalar observable at the current motor position.
type Detector interface {
	Read(ctx context.Context) (float64, error)
}

// Limiter is optionally implemented by motors that carry soft limits.
// Entry points fall back to these when the caller supplies no interval.
type Limiter interface {
	Limits() (low, high float64)
}

// Direction selects which observations count as better.
type Direction int

const (
	// Minimize treats smaller observed values as better.
	Minimize Direction = iota
	// Maximize treats larger observed values as better.
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Better reports whether observed value a beats b under the direction.
func (d Direction) Better(a, b float64) bool {
	if d == Maximize {
		return a > b
	}
	return a < b
}

// Optimizer defines the interface for univariate search algorithms
type Optimizer interface {
	// Optimize runs the search to completion. It is synchronous and
	// strictly sequential: every probe waits for the motor/detector
	// round-trip before the next probe point is chosen.
	Optimize(ctx context.Context, config SearchConfig) (*SearchResult, error)

	// GetBestObservation returns the best observation found so far
	GetBestObservation() *Observation

	// GetHistory returns the history of probes
	GetHistory() []Observation

	// Stop gracefully stops the search between iterations
	Stop()
}

// SearchConfig contains configuration for a single search run.
// It is fixed at start and never mutated mid-run.
type SearchConfig struct {
	// Bounds is the initial bracketing interval [low, high], low < high.
	Bounds [2]float64

	// Tolerance is the target width of the final interval, > 0.
	Tolerance float64

	// Direction selects minimization or maximization.
	Direction Direction

	// MaxIterations caps the number of iterations. Zero means the
	// deterministic step count derived from Bounds and Tolerance.
	MaxIterations int

	// BestEffort returns the best observation instead of an error when
	// the iteration cap is reached before the tolerance is met.
	BestEffort bool
}

// Observation is a single immutable probe record.
type Observation struct {
	Iteration int
	Point     float64
	Value     float64
}

// SearchResult contains the result of a search run
type SearchResult struct {
	// Best is the best observation recorded during the run.
	Best *Observation

	// Low and High bound the final interval; for a unimodal observable
	// the true extremum lies within.
	Low  float64
	High float64

	// Iterations is the number of interval-narrowing iterations run.
	Iterations int

	// Probes is the number of Set/Read round-trips issued.
	Probes int

	// History records every probe in order.
	History []Observation

	// Converged reports whether the final width met the tolerance.
	Converged bool
}

// Width returns the width of the final interval.
func (r *SearchResult) Width() float64 {
	return r.High - r.Low
}

// Center returns the midpoint of the final interval.
func (r *SearchResult) Center() float64 {
	return (r.Low + r.High) / 2
}
