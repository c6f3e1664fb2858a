package optimization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		sentinel error
	}{
		{name: "invalid interval", err: InvalidIntervalError(5, 1), sentinel: ErrInvalidInterval},
		{name: "unknown method", err: UnknownMethodError("jump around"), sentinel: ErrUnknownMethod},
		{name: "not converged", err: NotConvergedError(0.5, 0.01, 12), sentinel: ErrNotConverged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrorContext(t *testing.T) {
	err := NewError("boom").WithComponent("golden").WithOperation("Set")
	assert.Equal(t, "golden: Set: boom", err.Error())

	wrapped := WrapError(errors.New("io timeout"), "reading detector")
	assert.Equal(t, "reading detector: io timeout", wrapped.Error())

	assert.Nil(t, WrapError(nil, "ignored"))
}

func TestIsSearchError(t *testing.T) {
	e, ok := IsSearchError(InvalidIntervalError(1, 1))
	assert.True(t, ok)
	assert.NotNil(t, e)

	_, ok = IsSearchError(errors.New("plain"))
	assert.False(t, ok)

	_, ok = IsSearchError(nil)
	assert.False(t, ok)
}
