package writefiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goheat/InputParameters"
)

func readFile(t *testing.T, path string) string {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	hp := InputParameters.NewHeatParameters()
	hp.EnableMatrix, hp.EnablePlot, hp.EnableBuckets, hp.EnableWeights, hp.EnableTimes =
		true, true, true, true, true
	hp.MatrixFilename = filepath.Join(dir, "matrix.csv")
	hp.PlotFilename = filepath.Join(dir, "plot.csv")
	hp.BucketsFilename = filepath.Join(dir, "trace", "buckets.csv")
	hp.WeightsFilename = filepath.Join(dir, "weights.csv")
	hp.TimesFilenamePrefix = filepath.Join(dir, "times")

	fs := NewFiles(hp)
	{ // Test matrix frames
		require.NoError(t, fs.Matrix(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5.5, 6})))
		require.NoError(t, fs.Matrix(mat.NewDense(1, 2, []float64{7, 8})))
	}
	{ // Test CSV traces
		require.NoError(t, fs.Views(0.5, []float64{1800, 1799.25}))
		require.NoError(t, fs.Views(1, []float64{1700, 1699}))
		assert.Error(t, fs.Views(1.5, []float64{1}))
		require.NoError(t, fs.Buckets([]int{3, 4, 3}))
		require.NoError(t, fs.Weights([]float64{1, 2.5}))
		require.NoError(t, fs.Times(1, []string{"a", "b"}, []float64{0.25, 3}))
		require.NoError(t, fs.Times(1, []string{"a", "b"}, []float64{0.5, 4}))
	}
	require.NoError(t, fs.Close())

	assert.Equal(t, "1 2 3\n4 5.5 6\n\n7 8\n\n", readFile(t, hp.MatrixFilename))
	assert.Equal(t, "t,v0,v1\n0.5,1800,1799.25\n1,1700,1699\n", readFile(t, hp.PlotFilename))
	assert.Equal(t, "n0,n1,n2\n3,4,3\n", readFile(t, hp.BucketsFilename))
	assert.Equal(t, "r0,r1\n1,2.5\n", readFile(t, hp.WeightsFilename))
	assert.Equal(t, "a,b\n0.25,3\n0.5,4\n", readFile(t, hp.TimesFilenamePrefix+".1.csv"))

	{ // Test reopening appends without repeating headers
		fs = NewFiles(hp)
		require.NoError(t, fs.Buckets([]int{5, 5, 0}))
		require.NoError(t, fs.Close())
		assert.Equal(t, "n0,n1,n2\n3,4,3\n5,5,0\n", readFile(t, hp.BucketsFilename))
	}
	{ // Test disabled outputs never touch the disk
		hp2 := InputParameters.NewHeatParameters()
		hp2.WeightsFilename = filepath.Join(dir, "never.csv")
		fs = NewFiles(hp2)
		require.NoError(t, fs.Weights([]float64{1}))
		_, err := os.Stat(hp2.WeightsFilename)
		assert.True(t, os.IsNotExist(err))
		var d Discard
		assert.NoError(t, d.Matrix(nil))
	}
}
