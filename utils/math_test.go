package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMath(t *testing.T) {
	for _, p := range []int{-5, -4, -1, 0, 1, 2, 3, 4, 6} {
		assert.InDelta(t, math.Pow(1.7, float64(p)), POW(1.7, p), 1.e-12, "power %d", p)
	}
	assert.Equal(t, 0, Clamp(-3, 0, 5))
	assert.Equal(t, 5, Clamp(9, 0, 5))
	assert.Equal(t, 2, Clamp(2, 0, 5))
	assert.Equal(t, 3, Abs(-3))
	assert.Equal(t, 10, SumInts([]int{4, 3, 3}))
	v := make([]float64, 3)
	Fill(v, 2.5)
	assert.Equal(t, []float64{2.5, 2.5, 2.5}, v)

	assert.False(t, IsNan(v))
	v[1] = math.NaN()
	assert.True(t, IsNan(v))
	assert.True(t, IsNan(math.NaN()))
	db := NewDynBuffer[float64](2)
	assert.False(t, IsNan(db))
	db.Cells()[0] = math.NaN()
	assert.True(t, IsNan(db))
	assert.False(t, IsNan("text"))
	assert.Contains(t, GetMemUsage(), "Alloc")
}
