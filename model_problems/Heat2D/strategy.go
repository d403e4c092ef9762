package Heat2D

import "github.com/notargets/goheat/utils"

// Strategy decides how the grid is split between workers and injects the
// communication around the per line solves. All methods are collective: every
// worker calls them in the same order.
type Strategy interface {
	Name() string
	// ComputeGeometry lays out the initial partition and sizes the buffers
	ComputeGeometry(f *Field)
	// Transpose flips the orientation of the field
	Transpose(f *Field)
	// Sweep solves every line of the current orientation into f.curr
	Sweep(f *Field)
	// ShouldRebalance must give the same answer on every worker
	ShouldRebalance(f *Field) bool
	SyncWeights(f *Field)
	Rebalance(f *Field)
}

func periodicRebalance(f *Field) bool {
	return f.hp.Balancing && f.comm.Size() > 1 && f.steps%f.hp.BalanceInterval == 0
}

// offsets returns the first line of every bucket
func offsets(buckets []int) (offs []int) {
	pm := utils.NewPartitionMapFromBuckets(buckets)
	offs = make([]int, len(buckets))
	for n := range buckets {
		offs[n], _ = pm.GetBucketRange(n)
	}
	return
}
