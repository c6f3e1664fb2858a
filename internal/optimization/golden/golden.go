// Package golden implements golden-section search over a motor/detector
// pair. Probe points are placed at golden-ratio fractions of the interval
// so that one of the two interior observations is always reused, costing a
// single motor move and detector read per iteration after the first.
package golden

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/beamctl/beamtune/internal/optimization"
)

// phi is the golden ratio.
var phi = (1 + math.Sqrt(5)) / 2

// Search is a single-owner golden-section search over one motor and one
// detector. A Search instance must not be shared between runs; every
// Optimize call starts from a fresh interval and history.
type Search struct {
	motor    optimization.Motor
	detector optimization.Detector
	logger   *zap.Logger

	// Run state
	config  optimization.SearchConfig
	best    *optimization.Observation
	history []optimization.Observation
	probes  int
	iter    int

	// For cancellation
	cancel context.CancelFunc
}

// New creates a golden-section Search over the given devices.
// A nil logger disables logging.
func New(motor optimization.Motor, detector optimization.Detector, logger *zap.Logger) *Search {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Search{
		motor:    motor,
		detector: detector,
		logger:   logger.Named("golden"),
	}
}

// Steps returns the deterministic number of iterations needed to narrow
// an interval of the given width down to the tolerance.
func Steps(width, tolerance float64) int {
	if width <= tolerance {
		return 0
	}
	return int(math.Ceil(math.Log(tolerance/width) / math.Log(1/phi)))
}

// Optimize runs the search. It validates the interval, establishes the two
// interior probes, then folds the interval once per iteration, reusing one
// probe each time. The search is presumed to bracket a single extremum; a
// noisy detector narrows only to a region consistent with what was read.
func (s *Search) Optimize(ctx context.Context, config optimization.SearchConfig) (*optimization.SearchResult, error) {
	a, b := config.Bounds[0], config.Bounds[1]
	if !(a < b) {
		return nil, optimization.InvalidIntervalError(a, b).WithComponent("golden")
	}
	if config.Tolerance <= 0 {
		return nil, optimization.WrapErrorf(optimization.ErrInvalidInterval,
			"tolerance %v must be positive", config.Tolerance).WithComponent("golden")
	}

	// Fresh run state
	s.config = config
	s.best = nil
	s.history = nil
	s.probes = 0
	s.iter = 0

	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	width := b - a

	// Already narrower than requested: a single probe at the midpoint
	// supplies the observation the caller is owed.
	if width <= config.Tolerance {
		if _, err := s.probe(ctx, (a+b)/2); err != nil {
			return nil, err
		}
		return s.result(a, b), nil
	}

	maxIter := config.MaxIterations
	if maxIter <= 0 {
		// One extra step absorbs floating-point drift in the width.
		maxIter = Steps(width, config.Tolerance) + 1
	}

	s.logger.Debug("beginning golden-section search",
		zap.Float64("low", a),
		zap.Float64("high", b),
		zap.Float64("tolerance", config.Tolerance),
		zap.Int("max_iterations", maxIter),
		zap.String("direction", config.Direction.String()),
	)

	// Interior probes at golden-ratio fractions of the interval.
	c := b - width/phi
	d := a + width/phi

	// The bracketing iteration is the only one that costs two probes.
	s.iter = 1
	fc, err := s.probe(ctx, c)
	if err != nil {
		return nil, err
	}
	fd, err := s.probe(ctx, d)
	if err != nil {
		return nil, err
	}

	// Fold until picking one of [a, d] / [c, b] satisfies the tolerance.
	for width/phi > config.Tolerance {
		if s.iter >= maxIter {
			if config.BestEffort {
				s.logger.Debug("iteration cap reached, returning best effort",
					zap.Int("iterations", s.iter))
				low, high := s.selectRegion(a, b, c, d, fc, fd)
				return s.result(low, high), nil
			}
			return nil, optimization.NotConvergedError(width/phi, config.Tolerance, s.iter).
				WithComponent("golden")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		s.iter++
		if s.keepLower(fc, fd) {
			// Discard (d, b]; probe point c is reused as the new d.
			b = d
			d = c
			fd = fc
			width = b - a
			c = b - width/phi
			fc, err = s.probe(ctx, c)
		} else {
			// Discard [a, c); probe point d is reused as the new c.
			a = c
			c = d
			fc = fd
			width = b - a
			d = a + width/phi
			fd, err = s.probe(ctx, d)
		}
		if err != nil {
			return nil, err
		}

		s.logger.Debug("narrowed interval",
			zap.Int("iteration", s.iter),
			zap.Float64("low", a),
			zap.Float64("high", b),
		)
	}

	low, high := s.selectRegion(a, b, c, d, fc, fd)
	s.logger.Debug("extremum located",
		zap.Float64("low", low),
		zap.Float64("high", high),
		zap.Int("probes", s.probes),
	)
	return s.result(low, high), nil
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

// keepLower decides which half of the interval survives a fold. On an
// exact tie the two candidate halves are symmetric about the interval
// midpoint, so neither is closer to the center; the lower half is retained
// as the documented deterministic choice.
func (s *Search) keepLower(fc, fd float64) bool {
	if fc == fd {
		return true
	}
	return s.config.Direction.Better(fc, fd)
}

// selectRegion performs the final probe-free narrowing: the retained
// interior probes already tell us which outer slice cannot hold the
// extremum.
func (s *Search) selectRegion(a, b, c, d, fc, fd float64) (low, high float64) {
	if s.keepLower(fc, fd) {
		return a, d
	}
	return c, b
}

// probe moves the motor to the point and reads the detector. Device
// errors propagate without retry; retries belong to the device layer.
func (s *Search) probe(ctx context.Context, point float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.motor.Set(ctx, point); err != nil {
		return 0, optimization.WrapErrorf(err, "moving motor to %v", point).
			WithComponent("golden").WithOperation("Set")
	}
	value, err := s.detector.Read(ctx)
	if err != nil {
		return 0, optimization.WrapErrorf(err, "reading detector at %v", point).
			WithComponent("golden").WithOperation("Read")
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
	s.logger.Debug("probed",
		zap.Float64("point", point),
		zap.Float64("value", value),
	)
	return value, nil
}

// result assembles the SearchResult for the final interval.
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
