package evaluation

import (
	"fmt"
	"strings"
)

// NoMatch marks a ground-truth box that no prediction satisfied.
const NoMatch = -1

// IoUFunc measures the overlap of a predicted box with a ground-truth box.
type IoUFunc func(predicted, truth BoundingBox) float64

// Matcher pairs ground-truth boxes with predictions of the same image.
type Matcher interface {
	// Match returns, for every ground-truth index, the index of the matched
	// prediction or NoMatch. Categories are not compared here; a match only
	// means the prediction overlaps the ground truth well enough.
	Match(truth, predictions []Detection, iou IoUFunc) ([]int, error)
}

// MatchStrategy names a Matcher implementation.
type MatchStrategy string

const (
	// StrategyGreedy lets every ground-truth box pick its best prediction
	// independently, so a prediction can be matched more than once.
	StrategyGreedy MatchStrategy = "greedy"
	// StrategyExclusive removes a prediction from consideration once it has
	// been matched, so every prediction is used at most once.
	StrategyExclusive MatchStrategy = "exclusive"
)

// ParseMatchStrategy validates a strategy name from config or flags.
func ParseMatchStrategy(s string) (MatchStrategy, error) {
	switch MatchStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyGreedy, "":
		return StrategyGreedy, nil
	case StrategyExclusive:
		return StrategyExclusive, nil
	}
	return "", fmt.Errorf("unknown match strategy %q", s)
}

// NewMatcher returns the Matcher for a strategy, defaulting to greedy.
func NewMatcher(s MatchStrategy) Matcher {
	if s == StrategyExclusive {
		return ExclusiveMatcher{}
	}
	return GreedyMatcher{}
}

// GreedyMatcher scans all predictions for every ground-truth box in list order.
type GreedyMatcher struct{}

// Match implements Matcher.
func (GreedyMatcher) Match(truth, predictions []Detection, iou IoUFunc) ([]int, error) {
	return scan(truth, predictions, iou, nil)
}

// ExclusiveMatcher is GreedyMatcher with each prediction claimed at most once.
// Earlier ground-truth boxes win contested predictions.
type ExclusiveMatcher struct{}

// Match implements Matcher.
func (ExclusiveMatcher) Match(truth, predictions []Detection, iou IoUFunc) ([]int, error) {
	return scan(truth, predictions, iou, make([]bool, len(predictions)))
}

// scan picks, per ground-truth box, the prediction with the strictly largest
// IoU above the box's acceptance threshold. Equal IoUs keep the earlier
// prediction. A nil claimed slice allows predictions to be reused.
func scan(truth, predictions []Detection, iou IoUFunc, claimed []bool) ([]int, error) {
	matches := make([]int, len(truth))
	for i, gt := range truth {
		matches[i] = NoMatch

		threshold, err := AcceptanceThreshold(gt.Box)
		if err != nil {
			return nil, &InvalidBoxError{Index: i, Box: gt.Box}
		}

		best := 0.0
		for j, p := range predictions {
			if claimed != nil && claimed[j] {
				continue
			}
			v := iou(p.Box, gt.Box)
			if v > threshold && v > best {
				best = v
				matches[i] = j
			}
		}

		if claimed != nil && matches[i] != NoMatch {
			claimed[matches[i]] = true
		}
	}

	return matches, nil
}
