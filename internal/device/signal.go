package device

import (
	"context"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Signal is a scalar detector backed by a function, evaluated at read
// time. It is the building block for every simulated detector.
type Signal struct {
	name string
	fn   func() float64
}

// NewSignal creates a detector whose reading is fn().
func NewSignal(name string, fn func() float64) *Signal {
	return &Signal{name: name, fn: fn}
}

// Name returns the signal name.
func (s *Signal) Name() string {
	return s.name
}

// Read evaluates the signal.
func (s *Signal) Read(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.fn(), nil
}

// NewGaussian creates a detector reading a gaussian peak over the axis
// position: imax * exp(-(x-center)^2 / (2*sigma^2)). A negative imax
// makes an inverted peak for minimization scenarios.
func NewGaussian(name string, axis *Axis, center, imax, sigma float64) *Signal {
	return NewSignal(name, func() float64 {
		x := axis.Position() - center
		return imax * math.Exp(-x*x/(2*sigma*sigma))
	})
}

// NewNoisyGaussian is NewGaussian with additive gaussian noise of the
// given standard deviation, drawn from a seeded source so runs are
// reproducible.
func NewNoisyGaussian(name string, axis *Axis, center, imax, sigma, noise float64, seed uint64) *Signal {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: noise,
		Src:   rand.NewSource(seed),
	}
	peak := NewGaussian(name, axis, center, imax, sigma)
	return NewSignal(name, func() float64 {
		return peak.fn() + dist.Rand()
	})
}

// NewLinear creates a detector reading slope*x + offset over the axis
// position. Useful as the monotonic observable for walk-to-target.
func NewLinear(name string, axis *Axis, slope, offset float64) *Signal {
	return NewSignal(name, func() float64 {
		return slope*axis.Position() + offset
	})
}
