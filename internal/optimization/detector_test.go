package optimization

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDetector replays a fixed sequence of readings.
type scriptedDetector struct {
	values []float64
	next   int
	err    error
}

func (d *scriptedDetector) Read(ctx context.Context) (float64, error) {
	if d.err != nil {
		return 0, d.err
	}
	v := d.values[d.next%len(d.values)]
	d.next++
	return v, nil
}

func TestTargetError(t *testing.T) {
	tests := []struct {
		name    string
		reading float64
		target  float64
		want    float64
	}{
		{name: "above target", reading: 7.5, target: 5, want: 2.5},
		{name: "below target", reading: 2, target: 5, want: 3},
		{name: "at target", reading: 5, target: 5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := NewTargetError(&scriptedDetector{values: []float64{tt.reading}}, tt.target)
			got, err := det.Read(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.target, det.Target())
		})
	}
}

func TestTargetErrorPropagates(t *testing.T) {
	readErr := errors.New("detector offline")
	det := NewTargetError(&scriptedDetector{err: readErr}, 5)

	_, err := det.Read(context.Background())
	assert.True(t, errors.Is(err, readErr))
}

func TestAveraging(t *testing.T) {
	inner := &scriptedDetector{values: []float64{1, 2, 3, 6}}
	det := NewAveraging(inner, 4)

	got, err := det.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.Equal(t, 4, inner.next)
}

func TestAveragingPassThrough(t *testing.T) {
	inner := &scriptedDetector{values: []float64{42}}

	// Below two samples there is nothing to average.
	assert.Equal(t, Detector(inner), NewAveraging(inner, 0))
	assert.Equal(t, Detector(inner), NewAveraging(inner, 1))
}

func TestAveragingPropagates(t *testing.T) {
	readErr := errors.New("detector offline")
	det := NewAveraging(&scriptedDetector{err: readErr}, 3)

	_, err := det.Read(context.Background())
	assert.True(t, errors.Is(err, readErr))
}

func TestDirectionBetter(t *testing.T) {
	assert.True(t, Minimize.Better(1, 2))
	assert.False(t, Minimize.Better(2, 1))
	assert.False(t, Minimize.Better(1, 1))

	assert.True(t, Maximize.Better(2, 1))
	assert.False(t, Maximize.Better(1, 2))
	assert.False(t, Maximize.Better(1, 1))

	assert.Equal(t, "minimize", Minimize.String())
	assert.Equal(t, "maximize", Maximize.String())
}
