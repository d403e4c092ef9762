package Heat2D

import (
	"github.com/notargets/goheat/thomas"
	"github.com/notargets/goheat/utils"
)

// The pipelined sweep runs on the transposed band: every local line is a
// column cut into segments, one per worker, with index 0 and width-1 being
// ghosts except at the chain ends. Forward elimination flows from the head
// to the tail, back substitution flows back. Each round solves every active
// column once. A column stays active while any of its segments still moved
// by more than Epsilon.
//
// Forward message, tagged by the bundle's first line:
//
//	[bundle size, (line, upper, diag, rhs of the last owned cell)...]
//
// listing active lines only. Backward message, same tag:
//
//	[(continue flag, value of the first owned cell)...]
//
// The head closes the sweep with a zero-length forward message once no
// column is active.

func (s *Static) pipeline(f *Field) {
	var (
		head = f.rows.Prev == utils.Nobody
		tail = f.rows.Next == utils.Nobody
	)
	s.prepare(f)
	if head {
		s.adjustBundle(f)
	}
	for rounds := 0; ; {
		if s.round(f) {
			return
		}
		s.active, s.nextActive = s.nextActive, s.active
		rounds++
		f.iterations = max(f.iterations, rounds)
		if rounds >= f.hp.MaxIterations {
			return
		}
		if head && !anyActive(s.active) {
			if !tail {
				f.comm.Send(f.rows.Next, utils.FirstPass, 0, nil)
			}
			return
		}
	}
}

func anyActive(active []bool) bool {
	for _, a := range active {
		if a {
			return true
		}
	}
	return false
}

// prepare sizes the per line systems and marks every line active
func (s *Static) prepare(f *Field) {
	var (
		n, w = f.height, f.width
		size = n * w
	)
	s.coeffs.Resize(4 * size)
	c := s.coeffs.Cells()
	s.lines = thomas.NewSystemFromStorage(c[:size], c[size:2*size], c[2*size:3*size], c[3*size:])
	if cap(s.active) < n {
		s.active, s.nextActive = make([]bool, n), make([]bool, n)
	}
	s.active, s.nextActive = s.active[:n], s.nextActive[:n]
	for i := range s.active {
		s.active[i] = true
	}
}

// adjustBundle grows the bundle by one line while the head rarely waits for
// back substitution and shrinks it by one otherwise
func (s *Static) adjustBundle(f *Field) {
	if s.passes > 0 {
		if float64(s.waiting) > float64(s.passes)*f.hp.BalanceFactor {
			s.bundle = max(s.bundle-1, f.hp.MinimumBundle)
		} else {
			s.bundle = min(s.bundle+1, max(f.height/2, 1))
		}
	}
	s.waiting, s.passes = 0, 0
}

// round runs one iteration over every active line. It returns true when the
// head has closed the sweep.
func (s *Static) round(f *Field) (closed bool) {
	var (
		n     = f.height
		head  = f.rows.Prev == utils.Nobody
		first int // Next line for the forward pass
		next  int // Queue position of the oldest bundle awaiting back substitution
	)
	for i := range s.nextActive {
		s.nextActive[i] = false
	}
	s.queue = s.queue[:0]
	for first < n || next < len(s.queue) {
		var progressed bool
		if next < len(s.queue) && s.secondPass(f, s.queue[next], false) {
			next++
			progressed = true
		}
		if first < n {
			b, ok, done := s.firstPass(f, first, false)
			if done {
				return true
			}
			if ok {
				s.queue = append(s.queue, b)
				first = b.to
				progressed = true
			}
		}
		if progressed {
			continue
		}
		if first < n {
			b, _, done := s.firstPass(f, first, true)
			if done {
				return true
			}
			s.queue = append(s.queue, b)
			first = b.to
			continue
		}
		if head {
			s.waiting++
		}
		s.secondPass(f, s.queue[next], true)
		next++
	}
	return
}

func (s *Static) system(line, w int) thomas.System { return s.lines.Line(line, w) }

// firstPass eliminates the bundle starting at from. ok is false when the left
// neighbor's state has not arrived and block is unset, done is set when the
// sweep was closed by the head.
func (s *Static) firstPass(f *Field, from int, block bool) (b bundle, ok, done bool) {
	var (
		n, w  = f.height, f.width
		head  = f.rows.Prev == utils.Nobody
		tail  = f.rows.Next == utils.Nobody
		count int
		line  = from
	)
	if !head {
		if !block && !f.comm.Probe(f.rows.Prev, utils.FirstPass, from) {
			return
		}
		data := f.comm.Recv(f.rows.Prev, utils.FirstPass, from)
		if len(data) == 0 {
			if !tail {
				f.comm.Send(f.rows.Next, utils.FirstPass, from, nil)
			}
			done = true
			return
		}
		s.bundle = int(data[0])
		s.receiveForward(f, from, data[1:])
	}
	s.outbox = append(s.outbox[:0], float64(s.bundle))
	for ; line < n && count < s.bundle; line++ {
		if !s.active[line] {
			continue
		}
		count++
		sys := s.system(line, w)
		thomas.Assemble(sys, f.line(f.prev, line), f.line(f.curr, line), w, f.t, f.hY, f.dt, f.model, head, tail)
		thomas.Eliminate(sys, w, tail)
		if !tail {
			s.outbox = append(s.outbox, float64(line), sys.Upper[w-2], sys.Diag[w-2], sys.RHS[w-2])
		}
	}
	if !tail {
		f.comm.Send(f.rows.Next, utils.FirstPass, from, s.outbox)
	}
	b, ok = bundle{from: from, to: line}, true
	return
}

// receiveForward installs the eliminated state of the left neighbor at index
// 0 and rebuilds the active set of the bundle from the listed lines
func (s *Static) receiveForward(f *Field, from int, records []float64) {
	var (
		n, w = f.height, f.width
		line = from
	)
	for k := 0; k+3 < len(records); k += 4 {
		r := int(records[k])
		for ; line < r; line++ {
			s.active[line] = false
		}
		s.active[r] = true
		sys := s.system(r, w)
		sys.Upper[0], sys.Diag[0], sys.RHS[0] = records[k+1], records[k+2], records[k+3]
		line = r + 1
	}
	// A short bundle means no active line is left up to the end
	if len(records)/4 < s.bundle {
		for ; line < n; line++ {
			s.active[line] = false
		}
	}
}

// secondPass back substitutes bundle b. It reports false when the right
// neighbor's values have not arrived and block is unset.
func (s *Static) secondPass(f *Field, b bundle, block bool) bool {
	var (
		w     = f.width
		head  = f.rows.Prev == utils.Nobody
		tail  = f.rows.Next == utils.Nobody
		cells = f.curr.Cells()
	)
	if !tail {
		if !block && !f.comm.Probe(f.rows.Next, utils.SecondPass, b.from) {
			return false
		}
		data := f.comm.Recv(f.rows.Next, utils.SecondPass, b.from)
		var k int
		for line := b.from; line < b.to; line++ {
			if !s.active[line] {
				continue
			}
			s.nextActive[line] = data[k] > 0
			cells[line*w+w-1] = data[k+1]
			k += 2
		}
	}
	s.outbox = s.outbox[:0]
	for line := b.from; line < b.to; line++ {
		if !s.active[line] {
			continue
		}
		out := f.line(f.curr, line)
		delta := thomas.BackSubstitute(out, out, s.system(line, w), w, tail)
		flag := s.nextActive[line] || delta > f.hp.Epsilon
		s.nextActive[line] = flag
		if !head {
			var v float64
			if flag {
				v = 1
			}
			s.outbox = append(s.outbox, v, out[1])
		}
	}
	if head {
		s.passes++
		return true
	}
	f.comm.Send(f.rows.Prev, utils.SecondPass, b.from, s.outbox)
	return true
}
