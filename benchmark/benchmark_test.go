package benchmark

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/defect-eval/evaluation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuite(t *testing.T) {
	outputDir := t.TempDir()

	suite := NewSuite(NewSuiteArgs{OutputPath: outputDir, Seed: 7})

	assert.NotNil(t, suite)
	assert.Len(t, suite.ID(), 36)
	assert.Equal(t, outputDir, suite.outputDir)
	assert.Empty(t, suite.Scenarios())
	assert.Empty(t, suite.GetResults())
	assert.NotEqual(t, suite.ID(), NewSuite(NewSuiteArgs{}).ID())
}

func TestScenarioBuilder(t *testing.T) {
	scenario := NewScenarioBuilder("test_scenario").
		WithResolution(4096, 3000).
		WithOverlap(evaluation.OverlapExact).
		WithStrategy(evaluation.StrategyExclusive).
		WithWorkers(4).
		WithDataset(10, 3, 2, 0.5).
		WithIterations(50).
		WithWarmupRuns(5).
		Build()

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, Resolution{Width: 4096, Height: 3000, Name: "4096x3000"}, scenario.Resolution)
	assert.Equal(t, evaluation.OverlapExact, scenario.Overlap)
	assert.Equal(t, evaluation.StrategyExclusive, scenario.Strategy)
	assert.Equal(t, 4, scenario.Workers)
	assert.Equal(t, 10, scenario.Images)
	assert.Equal(t, 3, scenario.Boxes)
	assert.Equal(t, 2, scenario.FalsePositives)
	assert.Equal(t, 0.5, scenario.Recall)
	assert.Equal(t, 50, scenario.Iterations)
	assert.Equal(t, 5, scenario.WarmupRuns)
}

func TestPredefinedScenarios(t *testing.T) {
	predefined := &PredefinedScenarios{}

	quick := predefined.GetQuickScenarios(2)
	assert.Len(t, quick.Scenarios, 2)
	assert.Equal(t, "Quick Performance Test", quick.Name)

	comprehensive := predefined.GetComprehensiveScenarios(4)
	assert.Len(t, comprehensive.Scenarios, len(CommonResolutions)*2*2*2)
	assert.Equal(t, "Comprehensive Performance Test", comprehensive.Name)

	workers := predefined.GetWorkerComparisonScenarios(8)
	require.Len(t, workers.Scenarios, 4)
	assert.Equal(t, 8, workers.Scenarios[3].Workers)
	assert.Contains(t, workers.Name, "Worker Comparison")
}

func TestScenarioSetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.json")
	set := (&PredefinedScenarios{}).GetQuickScenarios(2)

	require.NoError(t, SaveScenarioSet(set, path))
	loaded, err := LoadScenarioSet(path)
	require.NoError(t, err)
	assert.Equal(t, set, loaded)

	_, err = LoadScenarioSet(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSynthesize(t *testing.T) {
	scenario := NewScenarioBuilder("synth").WithDataset(20, 5, 2, 1).Build()

	pred, gt := Synthesize(scenario, 42)
	pred2, gt2 := Synthesize(scenario, 42)
	assert.Equal(t, pred, pred2, "same seed, same tables")
	assert.Equal(t, gt, gt2)

	require.Len(t, gt, 20)
	assert.Equal(t, gt.IDs(), pred.IDs())
	for i := range gt {
		assert.Len(t, gt[i].Detections, 5)
		assert.Len(t, pred[i].Detections, 5+2, "full recall plus false positives")
		for _, d := range gt[i].Detections {
			assert.True(t, evaluation.ValidCategory(d.Category))
			assert.GreaterOrEqual(t, d.Box.MinSide(), float64(minSide))
		}
	}

	result, err := evaluation.Score(pred, gt)
	require.NoError(t, err)
	totals := result.Totals()
	gtCount, matched := 0, 0
	for k := range totals.GroundTruth {
		gtCount += totals.GroundTruth[k]
		matched += totals.Matched[k]
	}
	assert.Greater(t, float64(matched)/float64(gtCount), 0.9, "jittered predictions of full recall almost always match")
}

func TestRunScenario(t *testing.T) {
	suite := NewSuite(NewSuiteArgs{OutputPath: t.TempDir(), Seed: 1})
	scenario := NewScenarioBuilder("run").
		WithWorkers(2).
		WithDataset(10, 3, 1, 0.8).
		WithIterations(2).
		WithWarmupRuns(1).
		Build()

	metrics, err := suite.RunScenario(context.Background(), scenario)
	require.NoError(t, err)

	assert.Equal(t, suite.ID(), metrics.RunID)
	assert.Positive(t, metrics.ImagesPerSecond)
	assert.Positive(t, metrics.BoxesPerSecond)
	assert.Zero(t, metrics.ErrorRate)
	assert.Equal(t, 2, metrics.CPUStats.Workers)
	assert.InDelta(t, 0.5, metrics.Score, 0.5)

	t.Run("invalid scenario", func(t *testing.T) {
		_, err := suite.RunScenario(context.Background(), Scenario{Name: "empty"})
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := suite.RunScenario(ctx, scenario)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunAllScenarios(t *testing.T) {
	outputDir := t.TempDir()
	suite := NewSuite(NewSuiteArgs{OutputPath: outputDir, Seed: 3})
	suite.AddScenario(NewScenarioBuilder("ok").WithDataset(5, 2, 0, 1).WithIterations(1).WithWarmupRuns(0).Build())
	suite.AddScenario(Scenario{Name: "broken"})

	require.NoError(t, suite.RunAllScenarios(context.Background()))

	results := suite.GetResults()
	require.Len(t, results, 1, "failing scenarios are skipped")
	assert.Equal(t, "ok", results[0].Scenario.Name)
	assert.Contains(t, suite.Summary(), "ok")

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func BenchmarkScenarioCreation(b *testing.B) {
	predefined := &PredefinedScenarios{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = predefined.GetComprehensiveScenarios(4)
	}
}

func BenchmarkSynthesize(b *testing.B) {
	scenario := NewScenarioBuilder("bench").Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Synthesize(scenario, uint64(i))
	}
}
