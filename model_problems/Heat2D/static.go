package Heat2D

import (
	"math"
	"time"

	"github.com/notargets/goheat/balancing"
	"github.com/notargets/goheat/thomas"
	"github.com/notargets/goheat/utils"
)

// Static keeps a band of rows on every worker for the whole run, with one
// ghost row per shared edge. Rows along x1 are solved locally, columns along
// x2 are pipelined through the chain of workers.
type Static struct {
	part     *balancing.Partitioner
	buckets  []int     // Rows per worker
	weights  []float64 // Cost of every owned row
	gathered []float64 // All row weights, chain tail only

	coeffs             *utils.DynBuffer[float64]
	lines              thomas.System // One system per local column
	active, nextActive []bool
	queue              []bundle
	outbox             []float64

	bundle          int // Lines per forward message
	waiting, passes int // Head side congestion counters for the bundle size
}

// bundle is a run of lines starting at from that holds at most the bundle
// size of active lines
type bundle struct {
	from, to int
}

func NewStatic(f *Field) *Static {
	return &Static{
		part:   balancing.NewPartitioner(),
		coeffs: utils.NewDynBuffer[float64](0),
	}
}

func (s *Static) Name() string { return "static" }

func (s *Static) BundleSize() int { return s.bundle }

func (s *Static) ComputeGeometry(f *Field) {
	NP := f.comm.Size()
	s.buckets = utils.EvenBuckets(f.H, NP)
	s.layout(f)
	f.Reshape(f.W, f.rows.Extent())
	s.bundle = max(int(math.Ceil(float64(f.W)/float64(NP)/2)), 15)
}

func (s *Static) layout(f *Field) {
	var (
		rank = f.comm.Rank
		NP   = f.comm.Size()
		offs = offsets(s.buckets)
	)
	g := Geometry{
		Start: offs[rank],
		Lines: s.buckets[rank],
		Total: f.H,
		Prev:  utils.Nobody,
		Next:  utils.Nobody,
	}
	if rank > 0 {
		g.Prev, g.Top = rank-1, 1
	}
	if rank < NP-1 {
		g.Next, g.Bottom = rank+1, 1
	}
	f.rows = g
	s.weights = make([]float64, g.Lines)
}

func (s *Static) Transpose(f *Field) { f.transposeLocal() }

func (s *Static) Sweep(f *Field) {
	if !f.transposed {
		f.sweepLines(s.weights, 0, f.rows.Top, f.rows.Top+f.rows.Lines)
		return
	}
	s.pipeline(f)
}

func (s *Static) ShouldRebalance(f *Field) bool { return periodicRebalance(f) }

func (s *Static) tail(f *Field) int { return f.comm.Size() - 1 }

func (s *Static) SyncWeights(f *Field) {
	s.gathered = f.comm.Gatherv(utils.Balance, s.tail(f), s.weights)
}

// Rebalance runs on the chain tail, which decides whether the new partition
// differs enough to be worth moving rows. The decision is broadcast as
// [move, buckets...].
func (s *Static) Rebalance(f *Field) {
	var (
		NP  = f.comm.Size()
		msg []float64
	)
	if f.comm.Rank == s.tail(f) {
		mark := time.Now()
		smoothed := balancing.SmoothWeights(s.gathered, f.hp.WeightsSmoothFactor)
		next := s.part.FastPartition(smoothed, s.buckets, NP)
		f.times.Partitioning = time.Since(mark).Seconds()
		var deltaSum int
		for n := range next {
			deltaSum += utils.Abs(next[n] - s.buckets[n])
		}
		move := float64(deltaSum) > float64(f.H/NP)*f.hp.StaticBalanceThreshold
		if !move {
			next = s.buckets
		}
		msg = make([]float64, 0, NP+1)
		if move {
			msg = append(msg, 1)
		} else {
			msg = append(msg, 0)
		}
		for _, b := range next {
			msg = append(msg, float64(b))
		}
		f.keep(f.sink.Buckets(next))
		f.keep(f.sink.Weights(s.gathered))
	}
	msg = f.comm.Bcast(utils.Balance, s.tail(f), msg)
	s.gathered = nil
	if msg[0] > 0 {
		next := make([]int, NP)
		for n := range next {
			next[n] = int(msg[n+1])
		}
		s.redistribute(f, next)
		return
	}
	for i := range s.weights {
		s.weights[i] = 0
	}
}

// redistribute moves rows to match next. Every worker rebuilds its band,
// ghosts included, from the owned rows of the previous owners.
func (s *Static) redistribute(f *Field, next []int) {
	var (
		rank    = f.comm.Rank
		NP      = f.comm.Size()
		w       = f.width
		old     = f.rows
		oldOffs = offsets(s.buckets)
		newOffs = offsets(next)
		src     = f.prev.Cells()
	)
	extent := func(n int) (lo, hi int) {
		lo, hi = newOffs[n], newOffs[n]+next[n]
		if n > 0 {
			lo--
		}
		if n < NP-1 {
			hi++
		}
		return
	}
	owned := func(lo, hi int) []float64 {
		return src[(lo-old.Start+old.Top)*w : (hi-old.Start+old.Top)*w]
	}
	for q := 0; q < NP; q++ {
		if q == rank {
			continue
		}
		lo, hi := extent(q)
		lo, hi = max(lo, old.Start), min(hi, old.Start+old.Lines)
		if lo < hi {
			f.comm.Send(q, utils.Balance, 0, owned(lo, hi))
		}
	}
	myLo, myHi := extent(rank)
	f.scratch.Resize((myHi - myLo) * w)
	dst := f.scratch.Cells()
	for p := 0; p < NP; p++ {
		lo, hi := max(myLo, oldOffs[p]), min(myHi, oldOffs[p]+s.buckets[p])
		if lo >= hi {
			continue
		}
		var rows []float64
		if p == rank {
			rows = owned(lo, hi)
		} else {
			rows = f.comm.Recv(p, utils.Balance, 0)
		}
		copy(dst[(lo-myLo)*w:], rows)
	}
	f.prev.Swap(f.scratch)
	s.buckets = next
	s.layout(f)
	f.Reshape(w, f.rows.Extent())
}
