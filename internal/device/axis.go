// Package device provides simulated beamline devices: a software motor
// axis and scalar detectors derived from it. They stand in for the
// external device layer in tests and in the demo service.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/beamctl/beamtune/internal/errors"
)

// Axis is a software motor: a settable scalar position with soft limits
// and an optional settle delay applied on every move.
type Axis struct {
	name   string
	settle time.Duration

	mu       sync.Mutex
	position float64
	low      float64
	high     float64
}

// NewAxis creates an axis at position zero with no soft limits and no
// settle delay.
func NewAxis(name string) *Axis {
	return &Axis{name: name}
}

// Name returns the axis name.
func (a *Axis) Name() string {
	return a.name
}

// WithLimits sets the soft limits and returns the axis.
func (a *Axis) WithLimits(low, high float64) *Axis {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.low, a.high = low, high
	return a
}

// WithSettle sets the settle delay applied after every move and returns
// the axis.
func (a *Axis) WithSettle(settle time.Duration) *Axis {
	a.settle = settle
	return a
}

// Limits returns the soft limits. Equal values mean no limits are set.
func (a *Axis) Limits() (low, high float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.low, a.high
}

// Position returns the current position.
func (a *Axis) Position() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// Set moves the axis to the requested position. Moves outside the soft
// limits fail without changing the position. The settle delay elapses
// before Set returns so a following read sees a settled value.
func (a *Axis) Set(ctx context.Context, position float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	if a.low != a.high && (position < a.low || position > a.high) {
		low, high := a.low, a.high
		a.mu.Unlock()
		return errors.Errorf("position %v outside soft limits [%v, %v]", position, low, high).
			WithComponent("axis").WithOperation("Set")
	}
	a.position = position
	a.mu.Unlock()

	if a.settle > 0 {
		timer := time.NewTimer(a.settle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
