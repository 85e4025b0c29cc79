package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nvr-ai/defect-eval/evaluation"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Suite manages and executes benchmark scenarios
type Suite struct {
	id        string
	scenarios []Scenario
	outputDir string
	seed      uint64
	logger    *zap.Logger
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	OutputPath string      `json:"outputPath" yaml:"outputPath"`
	Seed       uint64      `json:"seed"       yaml:"seed"`
	Logger     *zap.Logger `json:"-"          yaml:"-"`
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - args: The arguments for creating a new benchmark suite.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(args NewSuiteArgs) *Suite {
	logger := args.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{
		id:        uuid.NewString(),
		outputDir: args.OutputPath,
		seed:      args.Seed,
		logger:    logger,
		scenarios: make([]Scenario, 0),
		results:   make([]PerformanceMetrics, 0),
	}
}

// ID identifies this suite run in saved results.
func (bs *Suite) ID() string {
	return bs.id
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// Scenarios returns the queued scenarios.
func (bs *Suite) Scenarios() []Scenario {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	out := make([]Scenario, len(bs.scenarios))
	copy(out, bs.scenarios)
	return out
}

// RunScenario executes a single benchmark scenario
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 || scenario.Images <= 0 {
		return nil, errors.Errorf("scenario %s needs positive iterations and images", scenario.Name)
	}

	pred, gt := Synthesize(scenario, bs.seed)
	boxes := countBoxes(pred, gt)

	overlap := evaluation.DefaultOverlapConfig()
	overlap.Mode = scenario.Overlap
	scorer := evaluation.NewScorer(evaluation.Config{
		Strategy: scenario.Strategy,
		Overlap:  overlap,
		Workers:  scenario.Workers,
		Logger:   bs.logger.Named("scorer"),
	})

	metrics := &PerformanceMetrics{
		RunID:     bs.id,
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	// Warmup runs
	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := scorer.Score(ctx, pred, gt); err != nil {
			continue // Skip warmup errors
		}
	}

	startMem := readMemStats()
	startTime := time.Now()
	failures := 0

	for i := 0; i < scenario.Iterations; i++ {
		result, err := scorer.Score(ctx, pred, gt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
			}
			failures++
			continue
		}
		metrics.Score = result.Total
	}

	totalDuration := time.Since(startTime)
	endMem := readMemStats()

	scored := float64(scenario.Iterations - failures)
	metrics.TotalDuration = totalDuration
	metrics.ImagesPerSecond = scored * float64(scenario.Images) / totalDuration.Seconds()
	metrics.BoxesPerSecond = scored * float64(boxes) / totalDuration.Seconds()
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.MemoryStats = memoryDelta(startMem, endMem)
	metrics.CPUStats = CPUMetrics{
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		Workers:    scorer.Config().Workers,
	}

	return metrics, nil
}

// RunAllScenarios executes all configured benchmark scenarios and saves the
// results. A failing scenario is logged and skipped.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	for _, scenario := range bs.Scenarios() {
		if ctx.Err() != nil {
			break
		}

		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			bs.logger.Warn("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("imagesPerSecond", metrics.ImagesPerSecond),
			zap.Duration("duration", metrics.TotalDuration),
		)
	}

	_, err := bs.SaveResults()
	return err
}

// SaveResults persists benchmark results to the output directory as JSON
// plus a CSV summary.
//
// Returns:
//   - []string: The written file paths.
//   - error: Any filesystem error.
func (bs *Suite) SaveResults() ([]string, error) {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	prefix := fmt.Sprintf("%s_%s", timestamp, bs.id[:8])
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", prefix))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", prefix))
	if err := os.WriteFile(summaryFile, []byte(summaryTable(results).RenderCSV()+"\n"), 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write summary file")
	}

	bs.logger.Info("results saved", zap.String("results", resultsFile), zap.String("summary", summaryFile))
	return []string{resultsFile, summaryFile}, nil
}

// Summary renders the collected results as a text table.
func (bs *Suite) Summary() string {
	return summaryTable(bs.GetResults()).Render()
}

func summaryTable(results []PerformanceMetrics) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Scenario", "Resolution", "Overlap", "Strategy", "Workers", "Images/s", "Boxes/s", "Alloc MB", "Score", "Errors"})
	for _, r := range results {
		t.AppendRow(table.Row{
			r.Scenario.Name,
			r.Scenario.Resolution.Name,
			r.Scenario.Overlap,
			r.Scenario.Strategy,
			r.CPUStats.Workers,
			fmt.Sprintf("%.1f", r.ImagesPerSecond),
			fmt.Sprintf("%.1f", r.BoxesPerSecond),
			fmt.Sprintf("%.2f", float64(r.MemoryStats.TotalAllocBytes)/(1024*1024)),
			fmt.Sprintf("%.4f", r.Score),
			fmt.Sprintf("%.2f", r.ErrorRate),
		})
	}
	return t
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
