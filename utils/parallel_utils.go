package utils

import (
	"fmt"
	"sync"

	"github.com/exascience/pargo/parallel"
)

// Nobody marks a missing neighbor at a physical domain edge
const Nobody = -1

// Channel separates message streams so that traffic of one kind can never be
// matched by a receive of another kind
type Channel uint8

const (
	FirstPass Channel = iota
	SecondPass
	Balance
	Transpose
	Collective
)

func (ch Channel) String() string {
	switch ch {
	case FirstPass:
		return "FirstPass"
	case SecondPass:
		return "SecondPass"
	case Balance:
		return "Balance"
	case Transpose:
		return "Transpose"
	case Collective:
		return "Collective"
	}
	return fmt.Sprintf("Channel(%d)", uint8(ch))
}

type Message struct {
	Channel Channel
	Source  int
	Tag     int
	Data    []float64
}

func (m *Message) matches(src int, ch Channel, tag int) bool {
	return m.Source == src && m.Channel == ch && m.Tag == tag
}

// MailBox is the inbound side of one rank: senders post into it, only the
// owning rank drains it
type MailBox struct {
	mu     sync.Mutex
	posted []*Message
	notify chan struct{}
}

func NewMailBox() *MailBox {
	return &MailBox{notify: make(chan struct{}, 1)}
}

func (mb *MailBox) post(msg *Message) {
	mb.mu.Lock()
	mb.posted = append(mb.posted, msg)
	mb.mu.Unlock()
	select {
	case mb.notify <- struct{}{}:
	default:
	}
}

func (mb *MailBox) collect(into []*Message) (out []*Message, got bool) {
	mb.mu.Lock()
	got = len(mb.posted) != 0
	out = append(into, mb.posted...)
	mb.posted = mb.posted[:0]
	mb.mu.Unlock()
	return
}

// Group is a set of NP ranks connected only by messages
type Group struct {
	NP    int
	boxes []*MailBox
	comms []*Comm
}

func NewGroup(NP int) (g *Group) {
	if NP < 1 {
		panic(fmt.Sprintf("group size must be positive, have %d", NP))
	}
	g = &Group{
		NP:    NP,
		boxes: make([]*MailBox, NP),
		comms: make([]*Comm, NP),
	}
	for n := 0; n < NP; n++ {
		g.boxes[n] = NewMailBox()
		g.comms[n] = &Comm{group: g, Rank: n}
	}
	return
}

// Comm returns the communicator bound to rank. A Comm must only be used from
// the goroutine that plays that rank.
func (g *Group) Comm(rank int) *Comm {
	if rank < 0 || rank >= g.NP {
		panic(fmt.Sprintf("rank %d out of bounds [0,%d)", rank, g.NP))
	}
	return g.comms[rank]
}

// Run plays every rank of the group in its own goroutine and waits for all of
// them. The left-most error wins, panics are re-raised in the caller.
func (g *Group) Run(work func(comm *Comm) error) error {
	var (
		errs   = make([]error, g.NP)
		thunks = make([]func(), g.NP)
	)
	for n := range thunks {
		n := n
		comm := g.comms[n]
		thunks[n] = func() { errs[n] = work(comm) }
	}
	parallel.Do(thunks...)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

type Comm struct {
	group   *Group
	Rank    int
	pending []*Message // Delivered but not yet matched, arrival order
}

func (c *Comm) Size() int { return c.group.NP }

// Send never blocks. The payload is copied, the caller keeps ownership of data.
func (c *Comm) Send(dst int, ch Channel, tag int, data []float64) {
	if dst < 0 || dst >= c.group.NP {
		panic(fmt.Sprintf("target rank %d out of bounds", dst))
	}
	payload := make([]float64, len(data))
	copy(payload, data)
	c.group.boxes[dst].post(&Message{
		Channel: ch,
		Source:  c.Rank,
		Tag:     tag,
		Data:    payload,
	})
}

func (c *Comm) take(src int, ch Channel, tag int) (msg *Message) {
	for i, m := range c.pending {
		if m.matches(src, ch, tag) {
			msg = m
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
	return
}

func (c *Comm) find(src int, ch Channel, tag int) bool {
	for _, m := range c.pending {
		if m.matches(src, ch, tag) {
			return true
		}
	}
	return false
}

// Probe reports whether a matching message is available without blocking
func (c *Comm) Probe(src int, ch Channel, tag int) bool {
	if c.find(src, ch, tag) {
		return true
	}
	var got bool
	if c.pending, got = c.group.boxes[c.Rank].collect(c.pending); !got {
		return false
	}
	return c.find(src, ch, tag)
}

// Recv blocks until a message from src on (ch, tag) arrives. Messages from
// one source on one channel and tag are received in the order they were sent.
func (c *Comm) Recv(src int, ch Channel, tag int) []float64 {
	box := c.group.boxes[c.Rank]
	for {
		if msg := c.take(src, ch, tag); msg != nil {
			return msg.Data
		}
		var got bool
		if c.pending, got = box.collect(c.pending); !got {
			<-box.notify
		}
	}
}

const (
	tagBcast = iota + 1
	tagGather
	tagReduce
	tagAlltoall
)

// Bcast returns root's data on every rank
func (c *Comm) Bcast(ch Channel, root int, data []float64) []float64 {
	if c.Rank == root {
		for p := 0; p < c.Size(); p++ {
			if p != root {
				c.Send(p, ch, tagBcast, data)
			}
		}
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}
	return c.Recv(root, ch, tagBcast)
}

// Gatherv concatenates every rank's local slice in rank order on root, other
// ranks get nil
func (c *Comm) Gatherv(ch Channel, root int, local []float64) (all []float64) {
	if c.Rank != root {
		c.Send(root, ch, tagGather, local)
		return
	}
	for p := 0; p < c.Size(); p++ {
		if p == root {
			all = append(all, local...)
			continue
		}
		all = append(all, c.Recv(p, ch, tagGather)...)
	}
	return
}

func (c *Comm) reduce(ch Channel, root int, local []float64, op func(a, b float64) float64) (out []float64) {
	if c.Rank != root {
		c.Send(root, ch, tagReduce, local)
		return
	}
	out = make([]float64, len(local))
	copy(out, local)
	for p := 0; p < c.Size(); p++ {
		if p == root {
			continue
		}
		remote := c.Recv(p, ch, tagReduce)
		if len(remote) != len(out) {
			panic(fmt.Sprintf("reduce length mismatch from rank %d: %d != %d", p, len(remote), len(out)))
		}
		for i, v := range remote {
			out[i] = op(out[i], v)
		}
	}
	return
}

// ReduceSum sums local vectors element-wise on root
func (c *Comm) ReduceSum(ch Channel, root int, local []float64) []float64 {
	return c.reduce(ch, root, local, func(a, b float64) float64 { return a + b })
}

// ReduceMax takes the element-wise maximum on root
func (c *Comm) ReduceMax(ch Channel, root int, local []float64) []float64 {
	return c.reduce(ch, root, local, func(a, b float64) float64 {
		if b > a {
			return b
		}
		return a
	})
}

// Alltoallv sends blocks[q] to rank q and returns the block received from
// every rank, indexed by source
func (c *Comm) Alltoallv(ch Channel, blocks [][]float64) (recv [][]float64) {
	if len(blocks) != c.Size() {
		panic(fmt.Sprintf("alltoall needs %d blocks, have %d", c.Size(), len(blocks)))
	}
	for q := 0; q < c.Size(); q++ {
		if q != c.Rank {
			c.Send(q, ch, tagAlltoall, blocks[q])
		}
	}
	recv = make([][]float64, c.Size())
	for p := 0; p < c.Size(); p++ {
		if p == c.Rank {
			recv[p] = blocks[p]
			continue
		}
		recv[p] = c.Recv(p, ch, tagAlltoall)
	}
	return
}

type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// NewPartitionMapFromBuckets lays out consecutive buckets of the given sizes
func NewPartitionMapFromBuckets(buckets []int) (pm *PartitionMap) {
	pm = &PartitionMap{
		ParallelDegree: len(buckets),
		Partitions:     make([][2]int, len(buckets)),
	}
	var start int
	for n, size := range buckets {
		if size < 0 {
			panic(fmt.Sprintf("negative bucket size %d at %d", size, n))
		}
		pm.Partitions[n] = [2]int{start, start + size}
		start += size
	}
	pm.MaxIndex = start
	return
}

func (pm *PartitionMap) Buckets() (buckets []int) {
	buckets = make([]int, pm.ParallelDegree)
	for n := range buckets {
		buckets[n] = pm.GetBucketDimension(n)
	}
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (kMax int) {
	if bn == -1 {
		kMax = pm.MaxIndex
		return
	}
	var (
		k1, k2 = pm.GetBucketRange(bn)
	)
	kMax = k2 - k1
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// This routine splits one dimension into c.ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// EvenBuckets is the bucket-size form of Split1D
func EvenBuckets(maxIndex, ParallelDegree int) []int {
	return NewPartitionMap(ParallelDegree, maxIndex).Buckets()
}
