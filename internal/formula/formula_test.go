package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramEval(t *testing.T) {
	tests := []struct {
		source string
		x, y   float64
		want   float64
	}{
		{"x", 0.3, 0, 0.3},
		{"1 - x", 0.25, 0, 0.75},
		{"x * x", 0.5, 0, 0.25},
		{"(x + y) / 2", 0.2, 0.6, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			p, err := Compile(tt.source)
			require.NoError(t, err)
			got, err := p.Eval(tt.x, tt.y, 0, nil)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestProgramUsesLastValueAndParams(t *testing.T) {
	p, err := Compile("y_last + p[1]")
	require.NoError(t, err)
	got, err := p.Eval(0, 0, 0.1, []float64{0, 0.2})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, got, 1e-12)
}

func TestProgramErrors(t *testing.T) {
	_, err := Compile("x +")
	assert.ErrorIs(t, err, ErrCompile)

	_, err = Compile("unknown_var * 2")
	assert.ErrorIs(t, err, ErrCompile)

	p, err := Compile("x / 0")
	require.NoError(t, err)
	_, err = p.Eval(1, 0, 0, nil)
	assert.ErrorIs(t, err, ErrEvaluation, "infinite result")

	p, err = Compile("p[3]")
	require.NoError(t, err)
	_, err = p.Eval(0, 0, 0, []float64{1})
	assert.ErrorIs(t, err, ErrEvaluation, "index out of range")
}

func TestCondition(t *testing.T) {
	c, err := CompileCondition("p[0] > 0.5 && p[1] == 0")
	require.NoError(t, err)
	ok, err := c.Holds([]float64{0.7, 0})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Holds([]float64{0.2, 0})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CompileCondition("p[0] + 1")
	assert.ErrorIs(t, err, ErrCompile, "not a boolean")
}
