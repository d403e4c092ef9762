package Heat2D

// TimingNames heads the per worker timing trace, in the order of Values
var TimingNames = []string{
	"full-iteration-time",
	"sweep-a-time",
	"sweep-b-time",
	"transpose-time",
	"balancing-time",
	"partitioning-time",
	"report-time",
	"capped-residual",
}

// Timings of one step in seconds. Residual is the largest residual left on a
// locally solved line that hit the iteration cap, zero when none did.
type Timings struct {
	Full, SweepA, SweepB, Transpose, Balancing, Partitioning, Report, Residual float64
}

func (tm *Timings) Reset() { *tm = Timings{} }

func (tm *Timings) Values() []float64 {
	return []float64{tm.Full, tm.SweepA, tm.SweepB, tm.Transpose, tm.Balancing, tm.Partitioning, tm.Report,
		tm.Residual}
}
