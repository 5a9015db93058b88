package viz

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/opgrid/model_selection"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

func results() []model_selection.CVResult {
	return []model_selection.CVResult{
		{Iteration: 0, Candidate: 0, MeanTestScore: 0.6},
		{Iteration: 0, Candidate: 1, MeanTestScore: 0.8},
		{Iteration: 0, Candidate: 2, MeanTestScore: math.NaN()},
		{Iteration: 1, Candidate: 1, MeanTestScore: 0.85},
	}
}

func TestHalvingPlot(t *testing.T) {
	p, err := HalvingPlot(results())
	require.NoError(t, err)
	assert.Equal(t, "Successive halving", p.Title.Text)
	assert.Equal(t, 0.0, p.X.Min)
	assert.Equal(t, 1.0, p.X.Max)
	assert.InDelta(t, 0.6, p.Y.Min, 1e-12)
	assert.InDelta(t, 0.85, p.Y.Max, 1e-12)
}

func TestHalvingPlot_Empty(t *testing.T) {
	_, err := HalvingPlot(nil)
	var verr *errors.ValueError
	assert.True(t, errors.As(err, &verr))
}

func TestPlotHalving(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"halving.png", "halving.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, PlotHalving(results(), path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Error(t, PlotHalving(results(), filepath.Join(dir, "halving.unknown")))
}
