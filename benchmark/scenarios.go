package benchmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nvr-ai/defect-eval/evaluation"
	"github.com/pkg/errors"
)

// Resolution represents image dimensions for benchmarking
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// CommonResolutions covers the camera sizes of the inspection lines. The
// 4096x3000 frames are large enough to trigger mask downsampling.
var CommonResolutions = []Resolution{
	{Width: 658, Height: 492, Name: "658x492"},
	{Width: 1024, Height: 768, Name: "1024x768"},
	{Width: 2048, Height: 1500, Name: "2048x1500"},
	{Width: 4096, Height: 3000, Name: "4096x3000"},
}

// Scenario defines a specific benchmark configuration.
type Scenario struct {
	Name       string                   `json:"name"`
	Resolution Resolution               `json:"resolution"`
	Overlap    evaluation.OverlapMode   `json:"overlap"`
	Strategy   evaluation.MatchStrategy `json:"strategy"`
	Workers    int                      `json:"workers"`
	// Images is the number of synthetic images per table.
	Images int `json:"images"`
	// Boxes is the number of ground-truth boxes per image.
	Boxes int `json:"boxes"`
	// Recall is the share of ground-truth boxes that get a prediction.
	Recall float64 `json:"recall"`
	// FalsePositives is the number of unmatched predictions per image.
	FalsePositives int `json:"false_positives"`
	Iterations     int `json:"iterations"`
	WarmupRuns     int `json:"warmup_runs"`
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:           name,
			Resolution:     CommonResolutions[0],
			Overlap:        evaluation.OverlapRaster,
			Strategy:       evaluation.StrategyGreedy,
			Workers:        1,
			Images:         200,
			Boxes:          4,
			Recall:         0.8,
			FalsePositives: 1,
			Iterations:     20,
			WarmupRuns:     2,
		},
	}
}

// WithResolution sets the image resolution
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithOverlap sets the IoU computation.
func (sb *ScenarioBuilder) WithOverlap(mode evaluation.OverlapMode) *ScenarioBuilder {
	sb.scenario.Overlap = mode
	return sb
}

// WithStrategy sets the matching strategy.
func (sb *ScenarioBuilder) WithStrategy(strategy evaluation.MatchStrategy) *ScenarioBuilder {
	sb.scenario.Strategy = strategy
	return sb
}

// WithWorkers sets the scorer parallelism.
func (sb *ScenarioBuilder) WithWorkers(workers int) *ScenarioBuilder {
	sb.scenario.Workers = workers
	return sb
}

// WithDataset sets the synthetic table shape.
func (sb *ScenarioBuilder) WithDataset(images, boxes, falsePositives int, recall float64) *ScenarioBuilder {
	sb.scenario.Images = images
	sb.scenario.Boxes = boxes
	sb.scenario.FalsePositives = falsePositives
	sb.scenario.Recall = recall
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scenarios   []Scenario `json:"scenarios"`
}

// PredefinedScenarios contains common benchmark scenario sets
type PredefinedScenarios struct{}

// GetComprehensiveScenarios crosses every resolution with both overlap modes,
// both strategies and sequential versus parallel scoring.
func (ps *PredefinedScenarios) GetComprehensiveScenarios(workers int) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, resolution := range CommonResolutions {
		for _, mode := range []evaluation.OverlapMode{evaluation.OverlapRaster, evaluation.OverlapExact} {
			for _, strategy := range []evaluation.MatchStrategy{evaluation.StrategyGreedy, evaluation.StrategyExclusive} {
				for _, w := range []int{1, workers} {
					scenario := NewScenarioBuilder(fmt.Sprintf("%s_%s_%s_w%d", resolution.Name, mode, strategy, w)).
						WithResolution(resolution.Width, resolution.Height).
						WithOverlap(mode).
						WithStrategy(strategy).
						WithWorkers(w).
						Build()

					scenarios = append(scenarios, scenario)
				}
			}
		}
	}

	return &ScenarioSet{
		Name:        "Comprehensive Performance Test",
		Description: "Tests all combinations of resolutions, overlap modes, strategies and worker counts",
		Scenarios:   scenarios,
	}
}

// GetQuickScenarios returns a smaller set for quick testing
func (ps *PredefinedScenarios) GetQuickScenarios(workers int) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, resolution := range []Resolution{CommonResolutions[0], CommonResolutions[len(CommonResolutions)-1]} {
		scenario := NewScenarioBuilder(fmt.Sprintf("quick_%s", resolution.Name)).
			WithResolution(resolution.Width, resolution.Height).
			WithWorkers(workers).
			WithDataset(50, 4, 1, 0.8).
			WithIterations(5).
			WithWarmupRuns(1).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "Quick test with the smallest and largest camera frames",
		Scenarios:   scenarios,
	}
}

// GetWorkerComparisonScenarios scores the same large-frame dataset with an
// increasing number of workers.
func (ps *PredefinedScenarios) GetWorkerComparisonScenarios(maxWorkers int) *ScenarioSet {
	scenarios := make([]Scenario, 0)
	resolution := CommonResolutions[len(CommonResolutions)-1]

	for w := 1; w <= maxWorkers; w *= 2 {
		scenario := NewScenarioBuilder(fmt.Sprintf("workers_%d_%s", w, resolution.Name)).
			WithResolution(resolution.Width, resolution.Height).
			WithWorkers(w).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Worker Comparison @ %s", resolution.Name),
		Description: "Compares parallel scoring throughput",
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set to a JSON file
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(scenarioSet, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scenario file")
	}

	return nil
}

// LoadScenarioSet loads a scenario set from a JSON file
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	var scenarioSet ScenarioSet
	if err := json.Unmarshal(data, &scenarioSet); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scenario set")
	}

	return &scenarioSet, nil
}
