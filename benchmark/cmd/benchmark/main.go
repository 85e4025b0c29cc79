package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/nvr-ai/defect-eval/benchmark"
	"github.com/nvr-ai/defect-eval/config"
	"go.uber.org/zap"
)

func main() {
	var (
		scenarioFile  = flag.String("scenarios", "", "Path to scenario configuration file")
		writeFile     = flag.String("write-scenarios", "", "Write the selected scenario set to this file and exit")
		outputDir     = flag.String("output", "./benchmark_results", "Output directory for results")
		quick         = flag.Bool("quick", false, "Run quick benchmark scenarios")
		comprehensive = flag.Bool("comprehensive", false, "Run comprehensive benchmark scenarios")
		workers       = flag.Bool("workers", false, "Compare worker counts")
		maxWorkers    = flag.Int("max-workers", runtime.NumCPU(), "Largest worker count to benchmark")
		timeout       = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
		seed          = flag.Uint64("seed", 1, "Seed for the synthetic datasets")
		logLevel      = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	logger, err := config.NewLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	suite := benchmark.NewSuite(benchmark.NewSuiteArgs{
		OutputPath: *outputDir,
		Seed:       *seed,
		Logger:     logger,
	})

	predefined := &benchmark.PredefinedScenarios{}
	sets := make([]*benchmark.ScenarioSet, 0)

	if *scenarioFile != "" {
		scenarioSet, err := benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			logger.Fatal("failed to load scenario file", zap.Error(err))
		}
		sets = append(sets, scenarioSet)
	} else {
		if *quick {
			sets = append(sets, predefined.GetQuickScenarios(*maxWorkers))
		}
		if *comprehensive {
			sets = append(sets, predefined.GetComprehensiveScenarios(*maxWorkers))
		}
		if *workers {
			sets = append(sets, predefined.GetWorkerComparisonScenarios(*maxWorkers))
		}

		// If no specific scenarios requested, use quick by default
		if len(sets) == 0 {
			sets = append(sets, predefined.GetQuickScenarios(*maxWorkers))
		}
	}

	if *writeFile != "" {
		merged := &benchmark.ScenarioSet{Name: sets[0].Name, Description: sets[0].Description}
		for _, set := range sets {
			merged.Scenarios = append(merged.Scenarios, set.Scenarios...)
		}
		if err := benchmark.SaveScenarioSet(merged, *writeFile); err != nil {
			logger.Fatal("failed to save scenarios", zap.Error(err))
		}
		logger.Info("scenarios written", zap.String("file", *writeFile), zap.Int("count", len(merged.Scenarios)))
		return
	}

	for _, set := range sets {
		for _, scenario := range set.Scenarios {
			suite.AddScenario(scenario)
		}
		logger.Info("scenarios added", zap.String("set", set.Name), zap.Int("count", len(set.Scenarios)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger.Info("starting benchmark", zap.String("run", suite.ID()))
	start := time.Now()

	if err := suite.RunAllScenarios(ctx); err != nil {
		logger.Fatal("benchmark execution failed", zap.Error(err))
	}

	fmt.Println(suite.Summary())
	fmt.Printf("Benchmark completed in %v, results saved to %s\n", time.Since(start).Round(time.Millisecond), *outputDir)

	var best benchmark.PerformanceMetrics
	for _, result := range suite.GetResults() {
		if result.ImagesPerSecond > best.ImagesPerSecond {
			best = result
		}
	}
	if best.Scenario.Name != "" {
		fmt.Printf("Best performing scenario: %s (%.1f images/s)\n", best.Scenario.Name, best.ImagesPerSecond)
	}
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Benchmark tool for detection scoring throughput.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -quick\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "  %s -comprehensive -max-workers 8 -seed 42\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "  %s -workers -write-scenarios ./scenarios.json\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "  %s -scenarios ./scenarios.json -output ./results\n", filepath.Base(os.Args[0]))
	}
}
