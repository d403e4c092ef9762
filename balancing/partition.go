package balancing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/goheat/utils"
)

// Partitioner splits a sequence of line weights into contiguous buckets.
// It owns the prefix sum scratch and is not safe for concurrent use.
type Partitioner struct {
	sums []float64 // sums[k] is the weight of lines [0, k)
}

func NewPartitioner() *Partitioner {
	return &Partitioner{}
}

func (p *Partitioner) formatSums(weights []float64) {
	n := len(weights)
	if cap(p.sums) < n+1 {
		p.sums = make([]float64, n+1)
	}
	p.sums = p.sums[:n+1]
	p.sums[0] = 0
	if n > 0 {
		floats.CumSum(p.sums[1:], weights)
	}
}

func (p *Partitioner) span(start, end int) float64 {
	return p.sums[end] - p.sums[start]
}

// locateSplit returns the end of the longest run starting at start, bounded by
// end, whose weight does not exceed S
func (p *Partitioner) locateSplit(start, end int, S float64) int {
	base := p.sums[start]
	k := sort.Search(end-start, func(k int) bool {
		return p.sums[start+k+1]-base > S
	})
	return start + k
}

// countBuckets returns how many greedy buckets of weight at most S cover
// [start, end), or -1 when some line alone is heavier than S
func (p *Partitioner) countBuckets(start, end int, S float64) (count int) {
	for start < end {
		pos := p.locateSplit(start, end, S)
		if pos == start {
			return -1
		}
		start = pos
		count++
	}
	return
}

func (p *Partitioner) appendBuckets(parts []int, start, end int, S float64) []int {
	for start < end {
		pos := p.locateSplit(start, end, S)
		if pos == start {
			panic(fmt.Sprintf("line %d is heavier than the bucket bound %g", start, S))
		}
		parts = append(parts, pos-start)
		start = pos
	}
	return parts
}

// OptimalPartition returns count contiguous bucket sizes covering all lines
// with the smallest possible maximum bucket weight. Every candidate window
// [i, j] is tried as the heaviest bucket, the rest is covered greedily on both
// sides. The first window reaching the minimum wins.
func (p *Partitioner) OptimalPartition(weights []float64, count int) (parts []int) {
	var (
		n          = len(weights)
		i, j       int
		iB, jB     int
		SB         = math.MaxFloat64
		foundValid bool
	)
	if count <= 0 {
		return nil
	}
	if n == 0 {
		return make([]int, count)
	}
	p.formatSums(weights)
	for i < n && j < n {
		S := p.span(i, j+1)
		leftParts := p.countBuckets(0, i, S)
		rightParts := p.countBuckets(j+1, n, S)
		if leftParts < 0 || rightParts < 0 || leftParts+rightParts > count-1 {
			j++
			continue
		}
		if S < SB {
			iB, jB, SB = i, j, S
			foundValid = true
		}
		if i == j {
			j++
		}
		i++
	}
	if !foundValid {
		return utils.EvenBuckets(n, count)
	}
	parts = make([]int, 0, count)
	parts = p.appendBuckets(parts, 0, iB, SB)
	parts = append(parts, jB-iB+1)
	parts = p.appendBuckets(parts, jB+1, n, SB)
	for len(parts) < count {
		parts = append(parts, 0)
	}
	Smooth(parts)
	return
}

// Cost is the weight of the heaviest bucket
func (p *Partitioner) Cost(weights []float64, parts []int) (SB float64) {
	p.formatSums(weights)
	return p.cost(parts)
}

func (p *Partitioner) cost(parts []int) (SB float64) {
	var start int
	for _, size := range parts {
		SB = math.Max(SB, p.span(start, start+size))
		start += size
	}
	return
}

// FastPartition refines a previous partition by moving single lines across
// bucket boundaries. A move is made only when the receiving bucket stays
// below the current maximum, so the maximum never grows. At most
// max(1, floor(ln n)) rounds are run.
func (p *Partitioner) FastPartition(weights []float64, current []int, count int) (parts []int) {
	n := len(weights)
	if !Valid(current, n, count) {
		return p.OptimalPartition(weights, count)
	}
	parts = make([]int, count)
	copy(parts, current)
	if n == 0 {
		return
	}
	p.formatSums(weights)

	rounds := int(math.Log(float64(n)))
	if rounds < 1 {
		rounds = 1
	}
	SB := math.MaxFloat64
	for round := 0; round < rounds; round++ {
		newSB := p.cost(parts)
		if math.Abs(SB-newSB) < 1.e-5 {
			break
		}
		SB = newSB
		var idx int
		for b := 0; b < count-1; b++ {
			var (
				cut = idx + parts[b]
				s1  = p.span(idx, cut)
				s2  = p.span(cut, cut+parts[b+1])
			)
			switch {
			case s1 < s2 && parts[b+1] > 1 && s1+weights[cut] < SB:
				parts[b]++
				parts[b+1]--
			case s1 > s2 && parts[b] > 1 && s2+weights[cut-1] < SB:
				parts[b]--
				parts[b+1]++
			}
			idx += parts[b]
		}
	}
	return
}

// Valid reports whether parts is a usable cover of n lines by count buckets
func Valid(parts []int, n, count int) bool {
	if len(parts) != count {
		return false
	}
	var sum int
	for _, size := range parts {
		if size < 0 || (size == 0 && n >= count) {
			return false
		}
		sum += size
	}
	return sum == n
}

// Smooth fills empty buckets in place. Each empty bucket, scanned left to
// right, takes one line from the nearest bucket holding more than one line,
// searching to the left first. The buckets in between change index but keep
// their lines, so no bucket gets heavier than before. Empty buckets remain
// only when no bucket has a line to spare.
func Smooth(parts []int) {
	for k := 0; k < len(parts); k++ {
		if parts[k] != 0 {
			continue
		}
		donor := -1
		for d := k - 1; d >= 0; d-- {
			if parts[d] > 1 {
				donor = d
				break
			}
		}
		if donor < 0 {
			for d := k + 1; d < len(parts); d++ {
				if parts[d] > 1 {
					donor = d
					break
				}
			}
		}
		switch {
		case donor < 0:
			return
		case donor < k:
			// Split the donor's last line into a bucket right after it
			parts[donor]--
			copy(parts[donor+2:k+1], parts[donor+1:k])
			parts[donor+1] = 1
		default:
			// Split the donor's first line into a bucket right before it
			parts[donor]--
			copy(parts[k:donor-1], parts[k+1:donor])
			parts[donor-1] = 1
		}
	}
}

// SmoothWeights blends each weight with the mean of its neighbors, damping
// single-line spikes in measured cost
func SmoothWeights(weights []float64, factor float64) (smoothed []float64) {
	n := len(weights)
	smoothed = make([]float64, n)
	if factor <= 0 || n < 2 {
		copy(smoothed, weights)
		return
	}
	for i := range weights {
		var neighbors float64
		switch i {
		case 0:
			neighbors = weights[1]
		case n - 1:
			neighbors = weights[n-2]
		default:
			neighbors = 0.5 * (weights[i-1] + weights[i+1])
		}
		smoothed[i] = (1-factor)*weights[i] + factor*neighbors
	}
	return
}

// OptimalPartition runs a one-off Partitioner
func OptimalPartition(weights []float64, count int) []int {
	return NewPartitioner().OptimalPartition(weights, count)
}

func FastPartition(weights []float64, current []int, count int) []int {
	return NewPartitioner().FastPartition(weights, current, count)
}

func Cost(weights []float64, parts []int) float64 {
	return NewPartitioner().Cost(weights, parts)
}
