package writefiles

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goheat/InputParameters"
)

// Files appends every enabled output to its own text file. Files are opened
// on first use and shared by all workers, writes are serialized.
type Files struct {
	mu        sync.Mutex
	hp        *InputParameters.HeatParameters
	matrix    *os.File
	plot      *os.File
	buckets   *os.File
	weights   *os.File
	times     map[int]*os.File
	plotWidth int
}

func NewFiles(hp *InputParameters.HeatParameters) *Files {
	return &Files{hp: hp, times: make(map[int]*os.File)}
}

func openAppend(path string) (f *os.File, fresh bool, err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return
		}
	}
	if f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err != nil {
		return
	}
	var st os.FileInfo
	if st, err = f.Stat(); err != nil {
		f.Close()
		return nil, false, err
	}
	fresh = st.Size() == 0
	return
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Matrix appends one frame: space separated rows followed by a blank line
func (fs *Files) Matrix(frame *mat.Dense) (err error) {
	if !fs.hp.EnableMatrix {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.matrix == nil {
		if fs.matrix, _, err = openAppend(fs.hp.MatrixFilename); err != nil {
			return
		}
	}
	w := bufio.NewWriter(fs.matrix)
	rows, cols := frame.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if j > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(formatFloat(frame.At(i, j)))
		}
		w.WriteByte('\n')
	}
	w.WriteByte('\n')
	return w.Flush()
}

func (fs *Files) writeRecord(f *os.File, record []string) error {
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func header(prefix string, n int) (h []string) {
	h = make([]string, n)
	for i := range h {
		h[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return
}

// Views appends "t,v0,v1,..." to the plot file
func (fs *Files) Views(t float64, values []float64) (err error) {
	if !fs.hp.EnablePlot {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.plot == nil {
		var fresh bool
		if fs.plot, fresh, err = openAppend(fs.hp.PlotFilename); err != nil {
			return
		}
		if fresh {
			if err = fs.writeRecord(fs.plot, append([]string{"t"}, header("v", len(values))...)); err != nil {
				return
			}
		}
		fs.plotWidth = len(values)
	}
	if len(values) != fs.plotWidth {
		return fmt.Errorf("view count changed from %d to %d", fs.plotWidth, len(values))
	}
	record := make([]string, 0, len(values)+1)
	record = append(record, formatFloat(t))
	for _, v := range values {
		record = append(record, formatFloat(v))
	}
	return fs.writeRecord(fs.plot, record)
}

// Buckets appends one line of bucket sizes
func (fs *Files) Buckets(buckets []int) (err error) {
	if !fs.hp.EnableBuckets {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.buckets == nil {
		var fresh bool
		if fs.buckets, fresh, err = openAppend(fs.hp.BucketsFilename); err != nil {
			return
		}
		if fresh {
			if err = fs.writeRecord(fs.buckets, header("n", len(buckets))); err != nil {
				return
			}
		}
	}
	record := make([]string, len(buckets))
	for i, b := range buckets {
		record[i] = strconv.Itoa(b)
	}
	return fs.writeRecord(fs.buckets, record)
}

// Weights appends one line of per line weights
func (fs *Files) Weights(weights []float64) (err error) {
	if !fs.hp.EnableWeights {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.weights == nil {
		var fresh bool
		if fs.weights, fresh, err = openAppend(fs.hp.WeightsFilename); err != nil {
			return
		}
		if fresh {
			if err = fs.writeRecord(fs.weights, header("r", len(weights))); err != nil {
				return
			}
		}
	}
	record := make([]string, len(weights))
	for i, w := range weights {
		record[i] = formatFloat(w)
	}
	return fs.writeRecord(fs.weights, record)
}

// Times appends one timing row to the file of the given worker, the header
// is written when the file is created
func (fs *Files) Times(rank int, names []string, values []float64) (err error) {
	if !fs.hp.EnableTimes {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.times[rank]
	if !ok {
		var fresh bool
		path := fmt.Sprintf("%s.%d.csv", fs.hp.TimesFilenamePrefix, rank)
		if f, fresh, err = openAppend(path); err != nil {
			return
		}
		fs.times[rank] = f
		if fresh {
			if err = fs.writeRecord(f, names); err != nil {
				return
			}
		}
	}
	record := make([]string, len(values))
	for i, v := range values {
		record[i] = formatFloat(v)
	}
	return fs.writeRecord(f, record)
}

func (fs *Files) Close() (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	closeFile := func(f *os.File) {
		if f == nil {
			return
		}
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	closeFile(fs.matrix)
	closeFile(fs.plot)
	closeFile(fs.buckets)
	closeFile(fs.weights)
	for _, f := range fs.times {
		closeFile(f)
	}
	fs.matrix, fs.plot, fs.buckets, fs.weights = nil, nil, nil, nil
	fs.times = make(map[int]*os.File)
	return
}

// Discard drops every output
type Discard struct{}

func (Discard) Matrix(*mat.Dense) error              { return nil }
func (Discard) Views(float64, []float64) error       { return nil }
func (Discard) Buckets([]int) error                  { return nil }
func (Discard) Weights([]float64) error              { return nil }
func (Discard) Times(int, []string, []float64) error { return nil }
func (Discard) Close() error                         { return nil }
