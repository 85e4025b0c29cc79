package benchmark

import (
	"math/rand/v2"

	"github.com/nvr-ai/defect-eval/evaluation"
)

const (
	minSide = 20
	jitter  = 3
)

// Synthesize builds a ground-truth table and a prediction table for s. The
// same scenario and seed always produce the same tables.
//
// Every ground-truth box gets a slightly shifted prediction of the same
// category with probability s.Recall, and every image additionally gets
// s.FalsePositives random predictions.
//
// Arguments:
//   - s: The scenario describing image size and table shape.
//   - seed: Random seed.
//
// Returns:
//   - pred: The prediction table.
//   - gt: The ground-truth table, in the same image order.
func Synthesize(s Scenario, seed uint64) (pred, gt evaluation.Table) {
	rng := rand.New(rand.NewPCG(seed, uint64(s.Images)<<32|uint64(s.Boxes)))

	width, height := s.Resolution.Width, s.Resolution.Height
	maxSide := max(min(width, height)/4, minSide+1)

	randomBox := func() evaluation.BoundingBox {
		w := float64(minSide + rng.IntN(maxSide-minSide))
		h := float64(minSide + rng.IntN(maxSide-minSide))
		x := rng.Float64() * max(float64(width)-w, 0)
		y := rng.Float64() * max(float64(height)-h, 0)
		return evaluation.XYWH(x, y, w, h)
	}

	pred = make(evaluation.Table, s.Images)
	gt = make(evaluation.Table, s.Images)
	for i := range gt {
		id := int64(i + 1)
		gt[i] = evaluation.Row{ID: id, Width: width, Height: height}
		pred[i] = evaluation.Row{ID: id, Width: width, Height: height}

		for b := 0; b < s.Boxes; b++ {
			truth := evaluation.Detection{Category: 1 + rng.IntN(evaluation.NumCategories), Box: randomBox()}
			gt[i].Detections = append(gt[i].Detections, truth)

			if rng.Float64() >= s.Recall {
				continue
			}
			p := truth
			p.Box.X += float64(rng.IntN(2*jitter+1) - jitter)
			p.Box.Y += float64(rng.IntN(2*jitter+1) - jitter)
			p.Score = 0.5 + rng.Float64()/2
			pred[i].Detections = append(pred[i].Detections, p)
		}

		for f := 0; f < s.FalsePositives; f++ {
			pred[i].Detections = append(pred[i].Detections, evaluation.Detection{
				Category: 1 + rng.IntN(evaluation.NumCategories),
				Box:      randomBox(),
				Score:    rng.Float64() / 2,
			})
		}
	}

	return pred, gt
}

func countBoxes(tables ...evaluation.Table) int {
	n := 0
	for _, t := range tables {
		for _, row := range t {
			n += len(row.Detections)
		}
	}
	return n
}
