package dichotomy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamctl/beamtune/internal/optimization"
)

type fakeMotor struct {
	position float64
	moves    []float64
}

func (m *fakeMotor) Set(ctx context.Context, position float64) error {
	m.position = position
	m.moves = append(m.moves, position)
	return nil
}

type fakeDetector struct {
	motor *fakeMotor
	fn    func(float64) float64
}

func (d *fakeDetector) Read(ctx context.Context) (float64, error) {
	return d.fn(d.motor.position), nil
}

func TestOptimizeQuadratic(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: func(x float64) float64 {
		return (x - 3) * (x - 3)
	}}
	search := New(motor, det, nil)

	result, err := search.Optimize(context.Background(), optimization.SearchConfig{
		Bounds:    [2]float64{0, 10},
		Tolerance: 0.01,
		Direction: optimization.Minimize,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Best)

	assert.True(t, result.Converged)
	assert.LessOrEqual(t, result.Width(), 0.01)
	assert.LessOrEqual(t, result.Low, 3.0)
	assert.GreaterOrEqual(t, result.High, 3.0)
	assert.InDelta(t, 3.0, result.Best.Point, 0.01)

	// Two probes per iteration: dichotomy reuses nothing.
	assert.Equal(t, 2*result.Iterations, result.Probes)
}

func TestOptimizeMaximize(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: func(x float64) float64 {
		return -(x + 2) * (x + 2)
	}}
	search := New(motor, det, nil)

	result, err := search.Optimize(context.Background(), optimization.SearchConfig{
		Bounds:    [2]float64{-6, 4},
		Tolerance: 0.05,
		Direction: optimization.Maximize,
	})
	require.NoError(t, err)
	assert.InDelta(t, -2.0, result.Best.Point, 0.05)
}

func TestOptimizeInvalidInterval(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: func(x float64) float64 { return x }}
	search := New(motor, det, nil)

	_, err := search.Optimize(context.Background(), optimization.SearchConfig{
		Bounds:    [2]float64{1, 1},
		Tolerance: 0.01,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrInvalidInterval))
}

func TestOptimizeIterationCap(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: func(x float64) float64 { return x * x }}
	search := New(motor, det, nil)

	config := optimization.SearchConfig{
		Bounds:        [2]float64{-10, 10},
		Tolerance:     1e-9,
		MaxIterations: 2,
	}

	_, err := search.Optimize(context.Background(), config)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrNotConverged))

	config.BestEffort = true
	result, err := search.Optimize(context.Background(), config)
	require.NoError(t, err)
	assert.False(t, result.Converged)
	assert.Equal(t, 2, result.Iterations)
}
