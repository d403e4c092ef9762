package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHeat(t *testing.T) {
	dir := t.TempDir()
	input := []byte(`# Small slab, a few steps
X1 0.1
X2 0.1
X1SplitCount 8
X2SplitCount 8
Speed 0.0125
TimeSplitCount 1000
TMax 4
Epsilon 0.01
InitT 1800
EnvT 300
EnablePlot 1
EnableBuckets 1
Balancing 1
BalanceInterval 1
PlotFilename ` + filepath.Join(dir, "plot.csv") + `
BucketsFilename ` + filepath.Join(dir, "buckets.csv") + `
ViewCount 1
View0X1 0
View0X2 0
Strategy 0
Workers 2
`)
	config := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(config, input, 0644))

	{ // Test a complete run writes the enabled traces
		rh := &RunHeat{ConfigFile: config}
		require.NoError(t, rh.Run())
		plot, err := os.ReadFile(filepath.Join(dir, "plot.csv"))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(plot)), "\n")
		assert.Equal(t, "t,v0", lines[0])
		assert.Len(t, lines, 4)
		_, err = os.Stat(filepath.Join(dir, "buckets.csv"))
		assert.NoError(t, err)
	}
	{ // Test home directory expansion
		rh := &RunHeat{ConfigFile: "~/goheat-absent.ini"}
		_, err := rh.processInput()
		assert.Error(t, err)
	}
	{ // Test command line arguments
		rootCmd.SetArgs([]string{"--workers", "2", config})
		assert.Error(t, rootCmd.Execute())
		rootCmd.SetArgs([]string{filepath.Join(dir, "absent.ini")})
		assert.Error(t, rootCmd.Execute())
		rootCmd.SetArgs([]string{config, config})
		assert.Error(t, rootCmd.Execute())
	}
}
