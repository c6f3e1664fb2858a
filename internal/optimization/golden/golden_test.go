package golden

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamctl/beamtune/internal/optimization"
)

// fakeMotor records every Set request so tests can assert on the probe
// sequence.
type fakeMotor struct {
	position float64
	moves    []float64
	err      error
}

func (m *fakeMotor) Set(ctx context.Context, position float64) error {
	if m.err != nil {
		return m.err
	}
	m.position = position
	m.moves = append(m.moves, position)
	return nil
}

// fakeDetector evaluates a function of the motor position.
type fakeDetector struct {
	motor *fakeMotor
	fn    func(float64) float64
	reads int
	err   error
}

func (d *fakeDetector) Read(ctx context.Context) (float64, error) {
	if d.err != nil {
		return 0, d.err
	}
	d.reads++
	return d.fn(d.motor.position), nil
}

func quadraticPeak(center float64) func(float64) float64 {
	return func(x float64) float64 {
		return 10 - (x-center)*(x-center)
	}
}

func TestOptimizeQuadraticPeak(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: quadraticPeak(3)}
	search := New(motor, det, nil)

	result, err := search.Optimize(context.Background(), optimization.SearchConfig{
		Bounds:    [2]float64{0, 10},
		Tolerance: 0.01,
		Direction: optimization.Maximize,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Best)

	assert.True(t, result.Converged)
	assert.LessOrEqual(t, result.Width(), 0.01)
	assert.LessOrEqual(t, result.Low, 3.0, "final interval must bound the extremum")
	assert.GreaterOrEqual(t, result.High, 3.0, "final interval must bound the extremum")
	assert.InDelta(t, 3.0, result.Best.Point, 0.01)

	// Deterministic step count for this interval and tolerance.
	assert.Equal(t, Steps(10, 0.01), result.Iterations)
}

func TestOptimizeMinimizeInvertedGaussian(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: func(x float64) float64 {
		return -math.Exp(-x * x / 2)
	}}
	search := New(motor, det, nil)

	result, err := search.Optimize(context.Background(), optimization.SearchConfig{
		Bounds:    [2]float64{-5, 10},
		Tolerance: 0.05,
		Direction: optimization.Minimize,
	})
	require.NoError(t, err)

	assert.True(t, result.Converged)
	assert.InDelta(t, 0.0, result.Best.Point, 0.05)
	assert.Less(t, result.Low, 0.0)
	assert.Greater(t, result.High, 0.0)
}

// One Set/Read pair per iteration after the bracketing iteration: that is
// the defining efficiency property of the probe placement.
func TestOptimizeProbeReuse(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: quadraticPeak(3)}
	search := New(motor, det, nil)

	result, err := search.Optimize(context.Background(), optimization.SearchConfig{
		Bounds:    [2]float64{0, 10},
		Tolerance: 0.01,
		Direction: optimization.Maximize,
	})
	require.NoError(t, err)

	assert.Equal(t, result.Iterations+1, result.Probes)
	assert.Equal(t, result.Probes, len(motor.moves))
	assert.Equal(t, result.Probes, det.reads)

	// Iteration 1 owns two observations, every later iteration one.
	perIteration := make(map[int]int)
	for _, obs := range result.History {
		perIteration[obs.Iteration]++
	}
	assert.Equal(t, 2, perIteration[1])
	for iter := 2; iter <= result.Iterations; iter++ {
		assert.Equal(t, 1, perIteration[iter], "iteration %d", iter)
	}
}

func TestOptimizeInvalidInterval(t *testing.T) {
	tests := []struct {
		name   string
		bounds [2]float64
		tol    float64
	}{
		{name: "zero width", bounds: [2]float64{2, 2}, tol: 0.01},
		{name: "reversed bounds", bounds: [2]float64{5, 1}, tol: 0.01},
		{name: "zero tolerance", bounds: [2]float64{0, 1}, tol: 0},
		{name: "negative tolerance", bounds: [2]float64{0, 1}, tol: -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			motor := &fakeMotor{}
			det := &fakeDetector{motor: motor, fn: quadraticPeak(0)}
			search := New(motor, det, nil)

			_, err := search.Optimize(context.Background(), optimization.SearchConfig{
				Bounds:    tt.bounds,
				Tolerance: tt.tol,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, optimization.ErrInvalidInterval))
			assert.Empty(t, motor.moves, "no probe may be issued for invalid input")
		})
	}
}

func TestOptimizeIterationCap(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: quadraticPeak(3)}
	search := New(motor, det, nil)

	config := optimization.SearchConfig{
		Bounds:        [2]float64{0, 10},
		Tolerance:     1e-6,
		Direction:     optimization.Maximize,
		MaxIterations: 3,
	}

	_, err := search.Optimize(context.Background(), config)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrNotConverged))

	// Best effort returns the best observation instead.
	config.BestEffort = true
	result, err := search.Optimize(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, result.Best)
	assert.False(t, result.Converged)
	assert.Equal(t, 3, result.Iterations)
}

func TestOptimizeIdempotent(t *testing.T) {
	run := func() ([]float64, *optimization.Observation) {
		motor := &fakeMotor{}
		det := &fakeDetector{motor: motor, fn: quadraticPeak(3)}
		search := New(motor, det, nil)
		result, err := search.Optimize(context.Background(), optimization.SearchConfig{
			Bounds:    [2]float64{0, 10},
			Tolerance: 0.01,
			Direction: optimization.Maximize,
		})
		require.NoError(t, err)
		return motor.moves, result.Best
	}

	moves1, best1 := run()
	moves2, best2 := run()

	assert.Equal(t, moves1, moves2, "identical inputs must produce identical Set sequences")
	assert.Equal(t, best1.Point, best2.Point)
	assert.Equal(t, best1.Value, best2.Value)
}

func TestOptimizeIntervalAlreadyNarrow(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: quadraticPeak(1)}
	search := New(motor, det, nil)

	result, err := search.Optimize(context.Background(), optimization.SearchConfig{
		Bounds:    [2]float64{1.0, 1.005},
		Tolerance: 0.01,
		Direction: optimization.Maximize,
	})
	require.NoError(t, err)

	assert.True(t, result.Converged)
	assert.Equal(t, 0, result.Iterations)
	assert.Equal(t, 1, result.Probes)
	assert.InDelta(t, 1.0025, result.Best.Point, 1e-9)
}

func TestOptimizeTieBreakDeterministic(t *testing.T) {
	// A constant observable ties on every comparison; the interval must
	// still narrow deterministically into the lower half each time.
	run := func() *optimization.SearchResult {
		motor := &fakeMotor{}
		det := &fakeDetector{motor: motor, fn: func(float64) float64 { return 1 }}
		search := New(motor, det, nil)
		result, err := search.Optimize(context.Background(), optimization.SearchConfig{
			Bounds:    [2]float64{0, 10},
			Tolerance: 0.5,
			Direction: optimization.Maximize,
		})
		require.NoError(t, err)
		return result
	}

	r1 := run()
	r2 := run()
	assert.True(t, r1.Converged)
	assert.Equal(t, r1.Low, r2.Low)
	assert.Equal(t, r1.High, r2.High)
	assert.Equal(t, 0.0, r1.Low, "ties fold into the lower half")
}

func TestOptimizeDeviceErrorsPropagate(t *testing.T) {
	deviceErr := errors.New("axis fault")

	motor := &fakeMotor{err: deviceErr}
	det := &fakeDetector{motor: motor, fn: quadraticPeak(0)}
	search := New(motor, det, nil)

	_, err := search.Optimize(context.Background(), optimization.SearchConfig{
		Bounds:    [2]float64{0, 10},
		Tolerance: 0.01,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, deviceErr), "device errors must propagate unchanged")

	motor = &fakeMotor{}
	det = &fakeDetector{motor: motor, fn: quadraticPeak(0), err: deviceErr}
	search = New(motor, det, nil)

	_, err = search.Optimize(context.Background(), optimization.SearchConfig{
		Bounds:    [2]float64{0, 10},
		Tolerance: 0.01,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, deviceErr))
	assert.Len(t, motor.moves, 1, "no retry after a failed read")
}

func TestOptimizeCancellation(t *testing.T) {
	motor := &fakeMotor{}
	det := &fakeDetector{motor: motor, fn: quadraticPeak(3)}
	search := New(motor, det, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := search.Optimize(ctx, optimization.SearchConfig{
		Bounds:    [2]float64{0, 10},
		Tolerance: 0.01,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSteps(t *testing.T) {
	assert.Equal(t, 0, Steps(0.5, 1))
	assert.Greater(t, Steps(10, 0.01), 0)
	// Each extra golden-ratio factor of range costs one more step.
	assert.Equal(t, Steps(10, 0.01)+1, Steps(10*(1+math.Sqrt(5))/2, 0.01))
}
