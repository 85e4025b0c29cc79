// Package postprocess - Clean-up of predictions before they are scored.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/defect-eval/evaluation"
)

// Config defines how predictions are filtered before scoring. The zero value
// keeps every prediction.
type Config struct {
	MinScore     float64 `json:"minScore"     yaml:"minScore"`     // Drop predictions scoring below this.
	NMS          bool    `json:"nms"          yaml:"nms"`          // If true, apply greedy NMS.
	IoUThreshold float64 `json:"iouThreshold" yaml:"iouThreshold"` // Overlap threshold for suppression.
	ClassAware   bool    `json:"classAware"   yaml:"classAware"`   // If true, suppress only within same class.
}

// Enabled reports whether Apply can change its input.
func (c Config) Enabled() bool {
	return c.MinScore > 0 || c.NMS
}

// Apply filters low-score predictions and then suppresses overlapping ones.
//
// Arguments:
//   - detections: The predictions of one image, in any order.
//   - config: Filter configuration.
//
// Returns:
//   - The kept predictions. Without NMS the input order is preserved; with NMS
//     they come back sorted by descending score.
func Apply(detections []evaluation.Detection, config Config) []evaluation.Detection {
	if !config.Enabled() {
		return detections
	}

	kept := FilterByScore(detections, config.MinScore)
	if config.NMS {
		kept = ApplyGreedyNMS(kept, config)
	}
	return kept
}

// FilterByScore keeps detections whose score is at least minScore.
func FilterByScore(detections []evaluation.Detection, minScore float64) []evaluation.Detection {
	if minScore <= 0 {
		return detections
	}
	filtered := make([]evaluation.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Score >= minScore {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections. They are sorted by descending score
//     (stable, so equal scores keep their input order) before suppression.
//   - config: IoU threshold above which overlapping boxes are suppressed, and
//     whether suppression is limited to boxes of the same category.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func ApplyGreedyNMS(detections []evaluation.Detection, config Config) []evaluation.Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := make([]evaluation.Detection, n)
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	overlap := evaluation.OverlapConfig{Mode: evaluation.OverlapExact}
	filtered := make([]evaluation.Detection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Category != sorted[j].Category {
				continue
			}

			// Suppress if IoU exceeds threshold
			if overlap.IoU(sorted[j].Box, anchor.Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
