package thomas

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goheat/utils"
)

// Material is the set of coefficients the assembler needs from a material
// model. Temperatures are in K, t is elapsed time in s.
type Material interface {
	Conductivity(T float64) float64
	Density(T float64) float64
	EffectiveHeat(T float64) float64
	Convective(t float64) float64
	Radiative(t float64) float64
	EnvTemp() float64
	EnvTemp4() float64
}

// System holds the four diagonals of a tridiagonal system in the form
//
//	Lower[i]*y[i-1] + Diag[i]*y[i] + Upper[i]*y[i+1] = RHS[i]
type System struct {
	Lower, Diag, Upper, RHS []float64
}

func NewSystem(size int) (sys System) {
	sys = System{
		Lower: make([]float64, size),
		Diag:  make([]float64, size),
		Upper: make([]float64, size),
		RHS:   make([]float64, size),
	}
	return
}

// NewSystemFromStorage slices a system over four backing arrays, so that
// callers can keep many systems in one allocation
func NewSystemFromStorage(lower, diag, upper, rhs []float64) System {
	return System{Lower: lower, Diag: diag, Upper: upper, RHS: rhs}
}

func (sys System) Size() int { return len(sys.Diag) }

// Line returns the i-th system of length n packed consecutively in sys
func (sys System) Line(i, n int) System {
	lo, hi := i*n, (i+1)*n
	return System{
		Lower: sys.Lower[lo:hi],
		Diag:  sys.Diag[lo:hi],
		Upper: sys.Upper[lo:hi],
		RHS:   sys.RHS[lo:hi],
	}
}

// Assemble fills the coefficients of one line. rw is the line at the previous
// time layer, brw is the current iterate the coefficients are evaluated at.
// Physical boundary stencils are written only at the ends flagged by left and
// right, other end entries are left untouched for a neighbor to supply.
func Assemble(sys System, rw, brw []float64, size int, t, h, dt float64, m Material, left, right bool) {
	var (
		a, b, c, f = sys.Lower, sys.Upper, sys.Diag, sys.RHS
		hh         = h * h
	)
	if size < 2 {
		panic(fmt.Sprintf("line too short to assemble: %d", size))
	}
	lm0, lmh := m.Conductivity(brw[0]), m.Conductivity(brw[1])
	if left {
		// Symmetry plane, zero flux
		cap0 := hh * m.Density(brw[0]) * m.EffectiveHeat(brw[0])
		a[0] = 0
		c[0] = dt*(lm0+lmh) + cap0
		b[0] = -dt * (lm0 + lmh)
		f[0] = cap0 * rw[0]
	}
	if right {
		var (
			n      = size - 1
			TPrev  = brw[n]
			lmN    = m.Conductivity(brw[n])
			lmNm1  = m.Conductivity(brw[n-1])
			alpha  = m.Convective(t)
			sigma  = m.Radiative(t)
			capN   = hh * m.Density(TPrev) * m.EffectiveHeat(TPrev)
			TPrev4 = utils.POW(TPrev, 4)
		)
		a[n] = -dt * (lmNm1 + lmN)
		c[n] = dt*(lmNm1+lmN) + capN + 2*h*dt*alpha
		b[n] = 0
		f[n] = capN*rw[n] - 2*h*dt*sigma*(TPrev4-m.EnvTemp4()) + 2*h*dt*alpha*m.EnvTemp()
	}
	lmXm1, lmX := lm0, lmh
	for i := 1; i < size-1; i++ {
		lmXp1 := m.Conductivity(brw[i+1])
		mhh2rocdT := -2 * hh * m.Density(brw[i]) * m.EffectiveHeat(brw[i]) / dt
		a[i] = lmX + lmXm1
		b[i] = lmXp1 + lmX
		c[i] = -(lmXp1 + 2*lmX + lmXm1) + mhh2rocdT
		f[i] = mhh2rocdT * rw[i]
		lmXm1, lmX = lmX, lmXp1
	}
}

// Eliminate runs forward elimination in place. Entry 0 must already hold
// either a boundary stencil or the eliminated state handed over by a
// neighbor. The last entry is reduced only when includeLast is set.
func Eliminate(sys System, size int, includeLast bool) {
	var (
		a, b, c, f = sys.Lower, sys.Upper, sys.Diag, sys.RHS
		end        = size - 1
	)
	if includeLast {
		end = size
	}
	for i := 1; i < end; i++ {
		m := a[i] / c[i-1]
		c[i] -= m * b[i-1]
		f[i] -= m * f[i-1]
	}
}

// BackSubstitute writes the solution into out and returns the largest change
// against prevIter. Without a right boundary out[size-1] must already hold the
// value supplied by the right neighbor. prevIter may alias out.
func BackSubstitute(prevIter, out []float64, sys System, size int, hasRight bool) (maxDelta float64) {
	var (
		b, c, f = sys.Upper, sys.Diag, sys.RHS
	)
	if hasRight {
		n := size - 1
		v := f[n] / c[n]
		maxDelta = math.Abs(v - prevIter[n])
		out[n] = v
	}
	for i := size - 2; i >= 0; i-- {
		v := (f[i] - b[i]*out[i+1]) / c[i]
		if d := math.Abs(v - prevIter[i]); d > maxDelta {
			maxDelta = d
		}
		out[i] = v
	}
	return
}

// Solve runs both passes on a line that owns both physical boundaries
func Solve(prevIter, out []float64, sys System, size int) (maxDelta float64) {
	Eliminate(sys, size, true)
	return BackSubstitute(prevIter, out, sys, size, true)
}

// Operator builds the sparse matrix of an assembled, not yet eliminated system
func Operator(sys System) *sparse.CSR {
	n := sys.Size()
	dok := sparse.NewDOK(n, n)
	for i := 0; i < n; i++ {
		if i > 0 && sys.Lower[i] != 0 {
			dok.Set(i, i-1, sys.Lower[i])
		}
		dok.Set(i, i, sys.Diag[i])
		if i < n-1 && sys.Upper[i] != 0 {
			dok.Set(i, i+1, sys.Upper[i])
		}
	}
	return dok.ToCSR()
}

// Residual returns the max norm of A*x - rhs for an assembled system
func Residual(sys System, x []float64) float64 {
	var (
		op = Operator(sys)
		ax = mat.NewVecDense(sys.Size(), nil)
	)
	ax.MulVec(op, mat.NewVecDense(len(x), x))
	var norm float64
	for i := 0; i < sys.Size(); i++ {
		norm = math.Max(norm, math.Abs(ax.AtVec(i)-sys.RHS[i]))
	}
	return norm
}

// Copy duplicates the coefficients, elimination destroys them
func (sys System) Copy() (cp System) {
	cp = NewSystem(sys.Size())
	copy(cp.Lower, sys.Lower)
	copy(cp.Diag, sys.Diag)
	copy(cp.Upper, sys.Upper)
	copy(cp.RHS, sys.RHS)
	return
}
