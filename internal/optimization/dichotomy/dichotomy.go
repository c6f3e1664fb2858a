// Package dichotomy implements interval-halving search over a
// motor/detector pair. Unlike golden-section search it reuses no probes:
// every iteration costs two motor moves and two detector reads, placed
// just either side of the interval midpoint. It is kept as the simple
// fallback method in the registry.
package dichotomy

import (
	"context"

	"go.uber.org/zap"

	"github.com/beamctl/beamtune/internal/optimization"
)

// Search is a single-owner dichotomy search over one motor and one
// detector.
type Search struct {
	motor    optimization.Motor
	detector optimization.Detector
	logger   *zap.Logger

	config  optimization.SearchConfig
	best    *optimization.Observation
	history []optimization.Observation
	probes  int
	iter    int

	cancel context.CancelFunc
}

// New creates a dichotomy Search over the given devices.
// A nil logger disables logging.
func New(motor optimization.Motor, detector optimization.Detector, logger *zap.Logger) *Search {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Search{
		motor:    motor,
		detector: detector,
		logger:   logger.Named("dichotomy"),
	}
}

// Optimize runs the search. Each iteration probes the two points
// straddling the midpoint by a quarter tolerance and discards the outer
// slice on the worse side; the interval converges toward the separation
// of the two probes.
func (s *Search) Optimize(ctx context.Context, config optimization.SearchConfig) (*optimization.SearchResult, error) {
	a, b := config.Bounds[0], config.Bounds[1]
	if !(a < b) {
		return nil, optimization.InvalidIntervalError(a, b).WithComponent("dichotomy")
	}
	if config.Tolerance <= 0 {
		return nil, optimization.WrapErrorf(optimization.ErrInvalidInterval,
			"tolerance %v must be positive", config.Tolerance).WithComponent("dichotomy")
	}

	s.config = config
	s.best = nil
	s.history = nil
	s.probes = 0
	s.iter = 0

	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	// Probe separation. Must stay below the tolerance or the interval
	// can never narrow past it.
	delta := config.Tolerance / 4

	if b-a <= config.Tolerance {
		if _, err := s.probe(ctx, (a+b)/2); err != nil {
			return nil, err
		}
		return s.result(a, b), nil
	}

	maxIter := config.MaxIterations
	if maxIter <= 0 {
		// Width shrinks by a factor just under 2 per iteration.
		maxIter = 1
		for w := b - a; w > config.Tolerance; w = w/2 + delta {
			maxIter++
		}
	}

	s.logger.Debug("beginning dichotomy search",
		zap.Float64("low", a),
		zap.Float64("high", b),
		zap.Float64("tolerance", config.Tolerance),
		zap.Int("max_iterations", maxIter),
	)

	for b-a > config.Tolerance {
		if s.iter >= maxIter {
			if config.BestEffort {
				return s.result(a, b), nil
			}
			return nil, optimization.NotConvergedError(b-a, config.Tolerance, s.iter).
				WithComponent("dichotomy")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		s.iter++
		x1 := (a+b)/2 - delta
		x2 := (a+b)/2 + delta
		f1, err := s.probe(ctx, x1)
		if err != nil {
			return nil, err
		}
		f2, err := s.probe(ctx, x2)
		if err != nil {
			return nil, err
		}

		// Ties fold into the lower half, matching the golden method.
		if f1 == f2 || config.Direction.Better(f1, f2) {
			b = x2
		} else {
			a = x1
		}

		s.logger.Debug("narrowed interval",
			zap.Int("iteration", s.iter),
			zap.Float64("low", a),
			zap.Float64("high", b),
		)
	}

	return s.result(a, b), nil
}

// GetBestObservation returns the best observation found so far
func (s *Search) GetBestObservation() *optimization.Observation {
	return s.best
}

// GetHistory returns the history of probes
func (s *Search) GetHistory() []optimization.Observation {
	return s.history
}

// Stop stops the search between iterations
func (s *Search) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Search) probe(ctx context.Context, point float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.motor.Set(ctx, point); err != nil {
		return 0, optimization.WrapErrorf(err, "moving motor to %v", point).
			WithComponent("dichotomy").WithOperation("Set")
	}
	value, err := s.detector.Read(ctx)
	if err != nil {
		return 0, optimization.WrapErrorf(err, "reading detector at %v", point).
			WithComponent("dichotomy").WithOperation("Read")
	}

	s.probes++
	obs := optimization.Observation{
		Iteration: s.iter,
		Point:     point,
		Value:     value,
	}
	s.history = append(s.history, obs)
	if s.best == nil || s.config.Direction.Better(value, s.best.Value) {
		s.best = &obs
	}
	return value, nil
}

func (s *Search) result(low, high float64) *optimization.SearchResult {
	return &optimization.SearchResult{
		Best:       s.best,
		Low:        low,
		High:       high,
		Iterations: s.iter,
		Probes:     s.probes,
		History:    s.history,
		Converged:  high-low <= s.config.Tolerance,
	}
}
