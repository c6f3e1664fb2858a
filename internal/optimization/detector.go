package optimization

import (
	"context"

	"gonum.org/v1/gonum/stat"
)

// TargetError derives a new objective from an existing detector: its
// reading is the absolute error between the underlying observable and a
// fixed target. Minimizing it walks the observable to the target.
type TargetError struct {
	detector Detector
	target   float64
}

// NewTargetError wraps detector so that Read reports |observed - target|.
func NewTargetError(detector Detector, target float64) *TargetError {
	return &TargetError{detector: detector, target: target}
}

// Target returns the position of zero error.
func (t *TargetError) Target() float64 {
	return t.target
}

// Read returns the absolute error from the target.
func (t *TargetError) Read(ctx context.Context) (float64, error) {
	value, err := t.detector.Read(ctx)
	if err != nil {
		return 0, err
	}
	if value > t.target {
		return value - t.target, nil
	}
	return t.target - value, nil
}

// Averaging reads the underlying detector a fixed number of times per
// probe and reports the mean, damping shot-to-shot noise. Reads are
// sequential; a failed read aborts the probe and propagates unchanged.
type Averaging struct {
	detector Detector
	num      int
}

// NewAveraging wraps detector to average num reads per probe.
// A num below 2 leaves the detector untouched.
func NewAveraging(detector Detector, num int) Detector {
	if num < 2 {
		return detector
	}
	return &Averaging{detector: detector, num: num}
}

// Read averages num reads of the underlying detector.
func (a *Averaging) Read(ctx context.Context) (float64, error) {
	samples := make([]float64, 0, a.num)
	for i := 0; i < a.num; i++ {
		value, err := a.detector.Read(ctx)
		if err != nil {
			return 0, err
		}
		samples = append(samples, value)
	}
	return stat.Mean(samples, nil), nil
}
