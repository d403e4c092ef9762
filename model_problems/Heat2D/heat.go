package Heat2D

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goheat/InputParameters"
	"github.com/notargets/goheat/materials"
	"github.com/notargets/goheat/utils"
	"github.com/notargets/goheat/writefiles"
)

// Sink receives everything the solver reports. Implementations must accept
// concurrent calls from different workers.
type Sink interface {
	Matrix(frame *mat.Dense) error
	Views(t float64, values []float64) error
	Buckets(buckets []int) error
	Weights(weights []float64) error
	Times(rank int, names []string, values []float64) error
	Close() error
}

// Heat runs one simulation: a group of workers, each driving a Field over its
// part of the grid
type Heat struct {
	hp      *InputParameters.HeatParameters
	Model   materials.Model
	Sink    Sink
	Workers int
	Steps   int     // Time steps to the horizon
	Dt      float64 // s
	Horizon float64 // s
}

// NewHeat validates the parameters and derives the step count. A nil sink
// drops every output.
func NewHeat(hp *InputParameters.HeatParameters, model materials.Model, sink Sink) (h *Heat, err error) {
	if err = hp.Validate(); err != nil {
		return
	}
	if model.PathLength() <= 0 {
		err = fmt.Errorf("material path length must be positive, have %g", model.PathLength())
		return
	}
	if sink == nil {
		sink = writefiles.Discard{}
	}
	h = &Heat{
		hp:      hp,
		Model:   model,
		Sink:    sink,
		Workers: workerCount(hp),
	}
	total := model.PathLength() / hp.Speed
	h.Dt = total / float64(hp.TimeSplitCount)
	h.Horizon = total
	if hp.TMax > 0 && hp.TMax < total {
		h.Horizon = hp.TMax
	}
	h.Steps = int(math.Ceil(h.Horizon/h.Dt - 1.e-9))
	return
}

func workerCount(hp *InputParameters.HeatParameters) (NP int) {
	NP = hp.Workers
	if NP == 0 {
		NP = runtime.NumCPU()
	}
	// Every worker must own at least one line of each axis it partitions
	limit := hp.X2SplitCount
	if hp.Strategy == InputParameters.TransposeStrategy && hp.X1SplitCount < limit {
		limit = hp.X1SplitCount
	}
	if NP > limit {
		NP = limit
	}
	if NP < 1 {
		NP = 1
	}
	return
}

// Solve runs all workers to the horizon and returns the final temperature
// field, X2SplitCount rows by X1SplitCount columns
func (h *Heat) Solve() (T *mat.Dense, err error) {
	var (
		group   = utils.NewGroup(h.Workers)
		elapsed time.Duration
	)
	if h.hp.EnableConsole {
		h.PrintInitialization()
	}
	start := time.Now()
	err = group.Run(func(comm *utils.Comm) error {
		f := NewField(h.hp, h.Model, comm, h.Sink, h.Dt, h.Steps)
		f.Run()
		final := f.Snapshot()
		if comm.Rank == 0 {
			T = final
		}
		return f.err
	})
	elapsed = time.Since(start)
	if h.hp.EnableConsole {
		h.PrintFinal(elapsed)
	}
	return
}

func (h *Heat) PrintInitialization() {
	fmt.Printf("Heat conduction with phase change in 2 Dimensions\n")
	fmt.Printf("Using %d workers, %s strategy\n", h.Workers, InputParameters.StrategyName(h.hp.Strategy))
	fmt.Printf("Grid %d x %d, domain %8.5f x %8.5f m\n",
		h.hp.X1SplitCount, h.hp.X2SplitCount, h.hp.X1, h.hp.X2)
	fmt.Printf("Solving until t = %8.3f s, dt = %8.5f s, %d steps\n\n", h.Horizon, h.Dt, h.Steps)
}

func (h *Heat) PrintFinal(elapsed time.Duration) {
	points := h.hp.X1SplitCount * h.hp.X2SplitCount
	rate := float64(elapsed.Microseconds()) / float64(points*max(h.Steps, 1))
	fmt.Printf("\nRate of execution = %8.5f us/(point*step) over %d steps\n", rate, h.Steps)
	fmt.Printf("%s\n", utils.GetMemUsage())
}

// Run solves one configuration with the default worker count
func Run(hp *InputParameters.HeatParameters, model materials.Model, sink Sink) (T *mat.Dense, err error) {
	var h *Heat
	if h, err = NewHeat(hp, model, sink); err != nil {
		return
	}
	return h.Solve()
}
