package thomas

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/lapack/gonum"
)

type linearMaterial struct {
	lambda, rho, c, alpha, sigma, env float64
}

func (lm linearMaterial) Conductivity(T float64) float64  { return lm.lambda }
func (lm linearMaterial) Density(T float64) float64       { return lm.rho }
func (lm linearMaterial) EffectiveHeat(T float64) float64 { return lm.c }
func (lm linearMaterial) Convective(t float64) float64    { return lm.alpha }
func (lm linearMaterial) Radiative(t float64) float64     { return lm.sigma }
func (lm linearMaterial) EnvTemp() float64                { return lm.env }
func (lm linearMaterial) EnvTemp4() float64               { return lm.env * lm.env * lm.env * lm.env }

func fixture() System {
	return System{
		Lower: []float64{0, -4, 1, 1, 1},
		Diag:  []float64{4, 2, 4, 2, 2},
		Upper: []float64{3, -4, 1, -1, 0},
		RHS:   []float64{4, 0, 7.5, 1, -3},
	}
}

func TestThomas(t *testing.T) {
	{ // Test the 5x5 fixture
		sys := fixture()
		x := make([]float64, 5)
		delta := Solve(x, x, sys, 5)
		expected := []float64{-0.540909090909091, 2.0545454545454547, 1.5681818181818183,
			-0.8272727272727274, -1.0863636363636364}
		assert.InDeltaSlice(t, expected, x, 1.e-12)
		assert.InDelta(t, 2.0545454545454547, delta, 1.e-12)
		assert.Less(t, Residual(fixture(), x), 1.e-12)
	}
	{ // Test against LAPACK Dgtsv on random diagonally dominant systems
		var (
			rng  = rand.New(rand.NewSource(17))
			impl = gonum.Implementation{}
		)
		for _, n := range []int{2, 3, 7, 31, 200} {
			sys := NewSystem(n)
			for i := 0; i < n; i++ {
				if i > 0 {
					sys.Lower[i] = rng.Float64()*2 - 1
				}
				if i < n-1 {
					sys.Upper[i] = rng.Float64()*2 - 1
				}
				sys.Diag[i] = 2.5 + rng.Float64()
				sys.RHS[i] = rng.Float64()*10 - 5
			}
			var (
				dl = append([]float64{}, sys.Lower[1:]...)
				d  = append([]float64{}, sys.Diag...)
				du = append([]float64{}, sys.Upper[:n-1]...)
				b  = append([]float64{}, sys.RHS...)
			)
			require.True(t, impl.Dgtsv(n, 1, dl, d, du, b, 1))
			orig := sys.Copy()
			x := make([]float64, n)
			Solve(x, x, sys, n)
			assert.True(t, floats.EqualApprox(b, x, 1.e-10), "n = %d", n)
			assert.Less(t, Residual(orig, x), 1.e-10)
		}
	}
	{ // Test a uniform field in equilibrium with its environment stays put
		var (
			n   = 9
			T0  = 1200.
			m   = linearMaterial{lambda: 30, rho: 7000, c: 600, alpha: 500, env: T0}
			rw  = make([]float64, n)
			sys = NewSystem(n)
		)
		floats.AddConst(T0, rw)
		brw := append([]float64{}, rw...)
		Assemble(sys, rw, brw, n, 0, 0.01, 0.5, m, true, true)
		assert.Equal(t, 0., sys.Lower[0])
		assert.Equal(t, 0., sys.Upper[n-1])
		delta := Solve(brw, brw, sys, n)
		assert.InDelta(t, 0., delta, 1.e-8)
		for _, v := range brw {
			assert.InDelta(t, T0, v, 1.e-8)
		}
	}
	{ // Test a line split in two halves joined by hand-off reproduces the whole
		var (
			n     = 12
			split = 7 // First local line covers [0, split], index split is a ghost
			m     = linearMaterial{lambda: 25, rho: 7500, c: 700, alpha: 900, sigma: 3.2e-8, env: 300}
			rw    = make([]float64, n)
			h, dt = 0.02, 1.
		)
		for i := range rw {
			rw[i] = 1500 - 20*float64(i)
		}
		whole := append([]float64{}, rw...)
		sys := NewSystem(n)
		Assemble(sys, rw, whole, n, 3, h, dt, m, true, true)
		Solve(whole, whole, sys, n)

		var (
			leftRw   = append([]float64{}, rw[:split+1]...)
			rightRw  = append([]float64{}, rw[split-1:]...)
			leftOut  = append([]float64{}, leftRw...)
			rightOut = append([]float64{}, rightRw...)
			leftSys  = NewSystem(len(leftRw))
			rightSys = NewSystem(len(rightRw))
		)
		Assemble(leftSys, leftRw, leftOut, len(leftRw), 3, h, dt, m, true, false)
		Eliminate(leftSys, len(leftRw), false)
		k := len(leftRw) - 2
		rightSys.Upper[0], rightSys.Diag[0], rightSys.RHS[0] = leftSys.Upper[k], leftSys.Diag[k], leftSys.RHS[k]
		Assemble(rightSys, rightRw, rightOut, len(rightRw), 3, h, dt, m, false, true)
		Eliminate(rightSys, len(rightRw), true)
		BackSubstitute(rightOut, rightOut, rightSys, len(rightRw), true)
		leftOut[len(leftOut)-1] = rightOut[1]
		BackSubstitute(leftOut, leftOut, leftSys, len(leftRw), false)

		assert.InDeltaSlice(t, whole[:split], leftOut[:split], 1.e-9)
		assert.InDeltaSlice(t, whole[split-1:], rightOut, 1.e-9)
	}
	{ // Test Line views into packed storage
		packed := NewSystem(6)
		line := packed.Line(1, 3)
		line.Diag[0] = 5
		assert.Equal(t, 5., packed.Diag[3])
		assert.Equal(t, 3, line.Size())
	}
}
