package Heat2D

import (
	"time"

	"github.com/notargets/goheat/balancing"
	"github.com/notargets/goheat/utils"
)

// Transpose gives every worker complete lines in both orientations. Between
// sweeps the grid is redistributed with an all-to-all exchange, so that rows
// along x1 and columns along x2 can be partitioned independently.
type Transpose struct {
	part             *balancing.Partitioner
	bucketsA         []int // Rows along x1 per worker
	bucketsB         []int // Columns along x2 per worker
	pendingA         []int // Applied by the next transposes
	pendingB         []int
	weightsA         []float64 // Cost of every row, owned entries only
	weightsB         []float64 // Cost of every column, owned entries only
	summedA, summedB []float64 // Rank 0 only
}

// BlockShape is the part of a local buffer exchanged with one peer: Extent
// cells starting at Offset from each of Lines consecutive lines
type BlockShape struct {
	Lines, Offset, Extent int
}

func (bs BlockShape) Size() int { return bs.Lines * bs.Extent }

// BlockShapes describes a transpose of rank's lines from the src partition to
// the dst partition. send[q] cuts the cells that become rank q's lines, recv[p]
// places what arrives from rank p.
func BlockShapes(src, dst []int, rank int) (send, recv []BlockShape) {
	var (
		srcOffs = offsets(src)
		dstOffs = offsets(dst)
	)
	send = make([]BlockShape, len(dst))
	recv = make([]BlockShape, len(src))
	for q := range dst {
		send[q] = BlockShape{Lines: src[rank], Offset: dstOffs[q], Extent: dst[q]}
	}
	for p := range src {
		recv[p] = BlockShape{Lines: dst[rank], Offset: srcOffs[p], Extent: src[p]}
	}
	return
}

// Pack cuts one block out of buf, whose lines are width cells long. The block
// comes out transposed, cell major, ready to be laid down as lines.
func (bs BlockShape) Pack(buf []float64, width int, out []float64) []float64 {
	out = out[:0]
	for c := 0; c < bs.Extent; c++ {
		for i := 0; i < bs.Lines; i++ {
			out = append(out, buf[i*width+bs.Offset+c])
		}
	}
	return out
}

// Unpack writes a packed block into buf, whose lines are width cells long
func (bs BlockShape) Unpack(block, buf []float64, width int) {
	for i := 0; i < bs.Lines; i++ {
		copy(buf[i*width+bs.Offset:i*width+bs.Offset+bs.Extent], block[i*bs.Extent:(i+1)*bs.Extent])
	}
}

func NewTranspose(f *Field) *Transpose {
	return &Transpose{part: balancing.NewPartitioner()}
}

func (tr *Transpose) Name() string { return "transpose" }

func (tr *Transpose) ComputeGeometry(f *Field) {
	NP := f.comm.Size()
	tr.bucketsA = utils.EvenBuckets(f.H, NP)
	tr.bucketsB = utils.EvenBuckets(f.W, NP)
	tr.pendingA, tr.pendingB = tr.bucketsA, tr.bucketsB
	tr.weightsA = make([]float64, f.H)
	tr.weightsB = make([]float64, f.W)
	f.rows = tr.geometry(f, tr.bucketsA, f.H)
	f.Reshape(f.W, f.rows.Lines)
}

func (tr *Transpose) geometry(f *Field, buckets []int, total int) Geometry {
	return Geometry{
		Start: offsets(buckets)[f.comm.Rank],
		Lines: buckets[f.comm.Rank],
		Total: total,
		Prev:  utils.Nobody,
		Next:  utils.Nobody,
	}
}

// Transpose exchanges blocks with every worker. Going to columns the pending
// column partition takes effect, going back the pending row partition does.
func (tr *Transpose) Transpose(f *Field) {
	var (
		src, dst []int
		total    int
	)
	if !f.transposed {
		src, dst, total = tr.bucketsA, tr.pendingB, f.H
		tr.bucketsB = tr.pendingB
	} else {
		src, dst, total = tr.bucketsB, tr.pendingA, f.W
		tr.bucketsA = tr.pendingA
	}
	var (
		rank       = f.comm.Rank
		send, recv = BlockShapes(src, dst, rank)
		blocks     = make([][]float64, len(send))
		cells      = f.prev.Cells()
	)
	for q, bs := range send {
		blocks[q] = bs.Pack(cells, f.width, make([]float64, 0, bs.Size()))
	}
	arrived := f.comm.Alltoallv(utils.Transpose, blocks)
	f.scratch.EnsureCapacity(dst[rank] * total)
	f.scratch.Resize(dst[rank] * total)
	out := f.scratch.Cells()
	for p, bs := range recv {
		bs.Unpack(arrived[p], out, total)
	}
	f.prev.Swap(f.scratch)
	f.transposed = !f.transposed
	f.Reshape(total, dst[rank])
	if !f.transposed {
		f.rows = tr.geometry(f, tr.bucketsA, f.H)
	}
}

func (tr *Transpose) Sweep(f *Field) {
	if !f.transposed {
		g := tr.geometry(f, tr.bucketsA, f.H)
		f.sweepLines(tr.weightsA, g.Start, 0, g.Lines)
		return
	}
	g := tr.geometry(f, tr.bucketsB, f.W)
	f.sweepLines(tr.weightsB, g.Start, 0, g.Lines)
}

func (tr *Transpose) ShouldRebalance(f *Field) bool { return periodicRebalance(f) }

func (tr *Transpose) SyncWeights(f *Field) {
	tr.summedA = f.comm.ReduceSum(utils.Collective, 0, tr.weightsA)
	tr.summedB = f.comm.ReduceSum(utils.Collective, 0, tr.weightsB)
}

// Rebalance partitions both axes on rank 0 and broadcasts [rows..., columns...]
func (tr *Transpose) Rebalance(f *Field) {
	var (
		NP  = f.comm.Size()
		msg []float64
	)
	if f.comm.Rank == 0 {
		mark := time.Now()
		nextA := tr.part.OptimalPartition(tr.summedA, NP)
		nextB := tr.part.OptimalPartition(tr.summedB, NP)
		f.times.Partitioning = time.Since(mark).Seconds()
		msg = make([]float64, 0, 2*NP)
		for _, b := range nextA {
			msg = append(msg, float64(b))
		}
		for _, b := range nextB {
			msg = append(msg, float64(b))
		}
		f.keep(f.sink.Buckets(nextA))
		f.keep(f.sink.Weights(tr.summedA))
	}
	msg = f.comm.Bcast(utils.Collective, 0, msg)
	tr.pendingA, tr.pendingB = make([]int, NP), make([]int, NP)
	for n := 0; n < NP; n++ {
		tr.pendingA[n] = int(msg[n])
		tr.pendingB[n] = int(msg[NP+n])
	}
	tr.summedA, tr.summedB = nil, nil
	for i := range tr.weightsA {
		tr.weightsA[i] = 0
	}
	for i := range tr.weightsB {
		tr.weightsB[i] = 0
	}
}
