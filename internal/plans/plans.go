// Package plans provides the alignment entry points: maximize, minimize
// and walk-to-target over a motor/detector pair, dispatched to a
// registered search method by name.
package plans

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/beamctl/beamtune/internal/optimization"
	"github.com/beamctl/beamtune/internal/optimization/dichotomy"
	"github.com/beamctl/beamtune/internal/optimization/golden"
)

// DefaultMethod is the method used when Options.Method is empty.
const DefaultMethod = "golden"

// Factory builds an Optimizer over the given devices.
type Factory func(motor optimization.Motor, detector optimization.Detector, logger *zap.Logger) optimization.Optimizer

var (
	methodsMu sync.RWMutex
	methods   = map[string]Factory{
		"golden": func(m optimization.Motor, d optimization.Detector, l *zap.Logger) optimization.Optimizer {
			return golden.New(m, d, l)
		},
		"dichotomy": func(m optimization.Motor, d optimization.Detector, l *zap.Logger) optimization.Optimizer {
			return dichotomy.New(m, d, l)
		},
	}
)

// RegisterMethod adds a search method to the registry, replacing any
// existing entry with the same name.
func RegisterMethod(name string, factory Factory) {
	methodsMu.Lock()
	defer methodsMu.Unlock()
	methods[name] = factory
}

// Methods returns the registered method names, sorted.
func Methods() []string {
	methodsMu.RLock()
	defer methodsMu.RUnlock()
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Factory, bool) {
	methodsMu.RLock()
	defer methodsMu.RUnlock()
	f, ok := methods[name]
	return f, ok
}

// Options tune a single alignment run.
type Options struct {
	// Method selects the search algorithm; empty means DefaultMethod.
	Method string

	// Limits bounds the search. A zero-width pair falls back to the
	// motor's soft limits when the motor exposes them.
	Limits [2]float64

	// Average reads the detector this many times per probe and uses the
	// mean; values below 2 read once.
	Average int

	// MaxIterations caps the search; zero derives the deterministic
	// step count from the limits and tolerance.
	MaxIterations int

	// BestEffort accepts the best observation when the cap is reached
	// before the tolerance is met.
	BestEffort bool

	// Logger is passed through to the search method; nil disables
	// logging.
	Logger *zap.Logger
}

// limits resolves the search interval, falling back to the motor's soft
// limits when the caller supplied none.
func (o Options) limits(motor optimization.Motor) ([2]float64, error) {
	if o.Limits[0] != o.Limits[1] {
		return o.Limits, nil
	}
	if lim, ok := motor.(optimization.Limiter); ok {
		low, high := lim.Limits()
		if low != high {
			return [2]float64{low, high}, nil
		}
	}
	return [2]float64{}, optimization.WrapError(optimization.ErrInvalidInterval,
		"no limits provided or set on motor").WithComponent("plans")
}

// Maximize walks the motor to the position that maximizes the detector
// reading and leaves the motor at the center of the discovered range.
func Maximize(ctx context.Context, motor optimization.Motor, detector optimization.Detector, tolerance float64, opts Options) (*optimization.SearchResult, error) {
	return Optimize(ctx, motor, detector, tolerance, optimization.Maximize, opts)
}

// Minimize walks the motor to the position that minimizes the detector
// reading and leaves the motor at the center of the discovered range.
func Minimize(ctx context.Context, motor optimization.Motor, detector optimization.Detector, tolerance float64, opts Options) (*optimization.SearchResult, error) {
	return Optimize(ctx, motor, detector, tolerance, optimization.Minimize, opts)
}

// WalkToTarget walks the motor until the detector reads within tolerance
// of target, by minimizing the absolute error over the same machinery.
// The returned observations report the error, not the raw reading.
func WalkToTarget(ctx context.Context, motor optimization.Motor, detector optimization.Detector, target, tolerance float64, opts Options) (*optimization.SearchResult, error) {
	return Optimize(ctx, motor, optimization.NewTargetError(detector, target), tolerance, optimization.Minimize, opts)
}

// Optimize is the switchyard shared by the entry points: it resolves the
// interval, wraps the detector for averaging, dispatches to the selected
// method and finally moves the motor to the center of the final interval.
func Optimize(ctx context.Context, motor optimization.Motor, detector optimization.Detector, tolerance float64, direction optimization.Direction, opts Options) (*optimization.SearchResult, error) {
	method := opts.Method
	if method == "" {
		method = DefaultMethod
	}
	factory, ok := lookup(method)
	if !ok {
		return nil, optimization.UnknownMethodError(method).WithComponent("plans")
	}

	bounds, err := opts.limits(motor)
	if err != nil {
		return nil, err
	}

	searcher := factory(motor, optimization.NewAveraging(detector, opts.Average), opts.Logger)
	result, err := searcher.Optimize(ctx, optimization.SearchConfig{
		Bounds:        bounds,
		Tolerance:     tolerance,
		Direction:     direction,
		MaxIterations: opts.MaxIterations,
		BestEffort:    opts.BestEffort,
	})
	if err != nil {
		return nil, err
	}

	// Park the motor at the center of the discovered range.
	if err := motor.Set(ctx, result.Center()); err != nil {
		return result, optimization.WrapError(err, "moving motor to center of discovered range").
			WithComponent("plans").WithOperation("Set")
	}
	return result, nil
}
