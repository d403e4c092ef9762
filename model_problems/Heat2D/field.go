package Heat2D

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goheat/InputParameters"
	"github.com/notargets/goheat/materials"
	"github.com/notargets/goheat/thomas"
	"github.com/notargets/goheat/utils"
)

type State uint8

const (
	AdvanceTime State = iota
	SweepAxis1
	TransposeOrRepartition
	SweepAxis2
	RestoreOrientation
	Report
)

func (s State) String() string {
	switch s {
	case AdvanceTime:
		return "AdvanceTime"
	case SweepAxis1:
		return "SweepAxis1"
	case TransposeOrRepartition:
		return "TransposeOrRepartition"
	case SweepAxis2:
		return "SweepAxis2"
	case RestoreOrientation:
		return "RestoreOrientation"
	case Report:
		return "Report"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Geometry is the part of one axis owned by a worker. Ghost lines copied from
// the neighbors sit before (Top) and after (Bottom) the owned lines in the
// local buffer.
type Geometry struct {
	Start, Lines, Total int
	Top, Bottom         int
	Prev, Next          int // Neighbor ranks or utils.Nobody
}

// Extent is the number of lines held locally, ghosts included
func (g Geometry) Extent() int { return g.Top + g.Lines + g.Bottom }

// Field is the state of one worker: its part of the grid at the previous time
// layer and the iterate being solved for, in the current orientation
type Field struct {
	hp       *InputParameters.HeatParameters
	model    materials.Model
	comm     *utils.Comm
	sink     Sink
	strategy Strategy

	prev, curr, scratch *utils.DynBuffer[float64]
	width, height       int  // Local buffer shape, lines of width cells
	transposed          bool // Lines run along x2 when set
	rows                Geometry
	sys                 thomas.System // One line of scratch coefficients

	W, H           int     // Global grid, W points along x1 and H along x2
	hX, hY         float64 // Grid steps, m
	t, dt, horizon float64
	steps, total   int
	frameEvery     int
	state          State

	iterations int // Largest per-line iteration count of the last step
	times      Timings
	err        error
}

func NewField(hp *InputParameters.HeatParameters, model materials.Model, comm *utils.Comm, sink Sink,
	dt float64, total int) (f *Field) {
	f = &Field{
		hp:      hp,
		model:   model,
		comm:    comm,
		sink:    sink,
		prev:    utils.NewDynBuffer[float64](0),
		curr:    utils.NewDynBuffer[float64](0),
		scratch: utils.NewDynBuffer[float64](0),
		W:       hp.X1SplitCount,
		H:       hp.X2SplitCount,
		dt:      dt,
		total:   total,
	}
	f.hX = hp.X1 / float64(f.W-1)
	f.hY = hp.X2 / float64(f.H-1)
	f.horizon = dt * float64(total)
	f.sys = thomas.NewSystem(max(f.W, f.H))
	f.frameEvery = 1
	if hp.FramesCount > 0 && total > hp.FramesCount {
		f.frameEvery = total / hp.FramesCount
	}
	switch hp.Strategy {
	case InputParameters.TransposeStrategy:
		f.strategy = NewTranspose(f)
	default:
		f.strategy = NewStatic(f)
	}
	f.strategy.ComputeGeometry(f)
	utils.Fill(f.prev.Cells(), hp.InitT)
	utils.Fill(f.curr.Cells(), hp.InitT)
	return
}

// Reshape sets the local buffer shape, the contents of prev are preserved up
// to the smaller size
func (f *Field) Reshape(width, height int) {
	f.width, f.height = width, height
	f.prev.Resize(width * height)
	f.curr.Resize(width * height)
}

// Run steps until the horizon
func (f *Field) Run() {
	for f.steps < f.total {
		f.Step()
	}
}

func (f *Field) Step() {
	var (
		start = time.Now()
		mark  time.Time
	)
	f.times.Reset()

	f.state = AdvanceTime
	f.steps++
	f.t = f.dt * float64(f.steps)
	f.iterations = 0

	f.state = SweepAxis1
	mark = time.Now()
	f.sweep()
	f.times.SweepA = time.Since(mark).Seconds()

	f.state = TransposeOrRepartition
	if f.strategy.ShouldRebalance(f) {
		mark = time.Now()
		f.strategy.SyncWeights(f)
		f.strategy.Rebalance(f)
		f.times.Balancing = time.Since(mark).Seconds() - f.times.Partitioning
	}
	mark = time.Now()
	f.strategy.Transpose(f)
	f.times.Transpose = time.Since(mark).Seconds()

	f.state = SweepAxis2
	mark = time.Now()
	f.sweep()
	f.times.SweepB = time.Since(mark).Seconds()

	f.state = RestoreOrientation
	mark = time.Now()
	f.strategy.Transpose(f)
	f.times.Transpose += time.Since(mark).Seconds()

	f.state = Report
	mark = time.Now()
	f.report()
	f.times.Report = time.Since(mark).Seconds()
	f.times.Full = time.Since(start).Seconds()
	if f.hp.EnableTimes {
		f.keep(f.sink.Times(f.comm.Rank, TimingNames, f.times.Values()))
	}
}

// sweep solves one axis. The new iterate starts from the previous layer and
// becomes the previous layer once the sweep is done.
func (f *Field) sweep() {
	copy(f.curr.Cells(), f.prev.Cells())
	f.strategy.Sweep(f)
	f.prev.Swap(f.curr)
}

// step returns the grid step along the current lines
func (f *Field) step() float64 {
	if f.transposed {
		return f.hY
	}
	return f.hX
}

func (f *Field) line(buf *utils.DynBuffer[float64], i int) []float64 {
	return buf.Cells()[i*f.width : (i+1)*f.width]
}

// solveLine iterates one local line to convergence or the iteration cap and
// returns the number of iterations used
func (f *Field) solveLine(line int, left, right bool) (its int) {
	var (
		rw  = f.line(f.prev, line)
		brw = f.line(f.curr, line)
		sys = f.sys.Line(0, f.width)
		h   = f.step()
	)
	for its < f.hp.MaxIterations {
		thomas.Assemble(sys, rw, brw, f.width, f.t, h, f.dt, f.model, left, right)
		thomas.Eliminate(sys, f.width, right)
		delta := thomas.BackSubstitute(brw, brw, sys, f.width, right)
		its++
		if delta <= f.hp.Epsilon {
			return
		}
	}
	if left && right {
		// Capped before converging, measure how far the accepted iterate is
		// from satisfying its own coefficients
		thomas.Assemble(sys, rw, brw, f.width, f.t, h, f.dt, f.model, true, true)
		f.times.Residual = math.Max(f.times.Residual, thomas.Residual(sys, brw))
	}
	return
}

// sweepLines solves every local line, each spanning the whole axis. Costs of
// lines [first, end) are folded into weights, indexed from offset.
func (f *Field) sweepLines(weights []float64, offset, first, end int) {
	for line := 0; line < f.height; line++ {
		start := time.Now()
		its := f.solveLine(line, true, true)
		f.iterations = max(f.iterations, its)
		if line >= first && line < end {
			f.blendWeight(weights, offset+line-first, its, time.Since(start).Seconds())
		}
	}
}

func (f *Field) blendWeight(weights []float64, i, its int, secs float64) {
	tf := f.hp.BalanceTimeFactor
	weights[i] = weights[i]*f.hp.BalanceDecay + float64(its)*(1-tf) + secs*tf
}

// transposeLocal flips prev in place through scratch
func (f *Field) transposeLocal() {
	var (
		w, h = f.width, f.height
		src  = f.prev.Cells()
	)
	f.scratch.Resize(w * h)
	dst := f.scratch.Cells()
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			dst[j*h+i] = src[i*w+j]
		}
	}
	f.prev.Swap(f.scratch)
	f.curr.Resize(w * h)
	f.width, f.height = h, w
	f.transposed = !f.transposed
}

// viewIndex maps a physical point onto the nearest grid node at or below it
func (f *Field) viewIndex(v InputParameters.View) (i1, i2 int) {
	i1 = utils.Clamp(int(math.Floor(v.X1/f.hX+1.e-9)), 0, f.W-1)
	i2 = utils.Clamp(int(math.Floor(v.X2/f.hY+1.e-9)), 0, f.H-1)
	return
}

// views samples every view point owned here, -Inf elsewhere
func (f *Field) views() (values []float64) {
	values = make([]float64, len(f.hp.Views))
	cells := f.prev.Cells()
	for n, v := range f.hp.Views {
		i1, i2 := f.viewIndex(v)
		values[n] = math.Inf(-1)
		if i2 >= f.rows.Start && i2 < f.rows.Start+f.rows.Lines {
			values[n] = cells[(i2-f.rows.Start+f.rows.Top)*f.width+i1]
		}
	}
	return
}

func (f *Field) report() {
	var (
		local = f.views()
		frame = f.steps%f.frameEvery == 0 || f.steps == f.total
	)
	if f.err == nil && utils.IsNan(f.prev) {
		f.err = fmt.Errorf("worker %d: temperature is NaN at t = %g s", f.comm.Rank, f.t)
	}
	if !frame {
		return
	}
	if len(local) > 0 {
		if f.hp.EnableConsole && !math.IsInf(local[f.hp.DebugView], -1) {
			f.printProgress(local[f.hp.DebugView])
		}
		all := f.comm.ReduceMax(utils.Collective, 0, local)
		if f.comm.Rank == 0 && f.hp.EnablePlot {
			f.keep(f.sink.Views(f.t, all))
		}
	}
	if f.hp.EnableMatrix {
		snap := f.Snapshot()
		if f.comm.Rank == 0 {
			f.keep(f.sink.Matrix(snap))
		}
	}
}

type bundleReporter interface {
	BundleSize() int
}

func (f *Field) printProgress(view float64) {
	if br, ok := f.strategy.(bundleReporter); ok {
		fmt.Printf("Field[%d] (itrs: %d, bsL %d, time: %.5f)\tview: %.7f\n",
			f.comm.Rank, f.iterations, br.BundleSize(), f.t, view)
		return
	}
	fmt.Printf("Field[%d] (itrs: %d, time: %.5f)\tview: %.7f\n", f.comm.Rank, f.iterations, f.t, view)
}

// Snapshot gathers the whole grid on rank 0, X2 points by X1 points. Other
// ranks get nil. Every worker must call it.
func (f *Field) Snapshot() (T *mat.Dense) {
	lo, hi := f.rows.Top*f.width, (f.rows.Top+f.rows.Lines)*f.width
	all := f.comm.Gatherv(utils.Collective, 0, f.prev.Cells()[lo:hi])
	if f.comm.Rank == 0 {
		T = mat.NewDense(f.H, f.W, all)
	}
	return
}

// keep records the first sink failure, the run carries on without it
func (f *Field) keep(err error) {
	if err != nil && f.err == nil {
		f.err = err
	}
}

func (f *Field) Time() float64 { return f.t }

func (f *Field) State() State { return f.state }
