// Package evaluation - Scores defect detections against ground truth.
//
// The package has two layers. The overlap engine (AcceptanceThreshold and
// OverlapConfig.IoU) works on a single pair of boxes. The scorer walks aligned
// prediction and ground-truth tables, matches every ground-truth box to its
// best overlapping prediction and turns the per-category match counts into a
// per-image score and a weighted aggregate.
package evaluation

import (
	"fmt"
	"math"

	"github.com/nvr-ai/defect-eval/images"
)

// BoundingBox is an axis-aligned box in pixels. X and Y are the top-left corner.
type BoundingBox struct {
	X      float64 `json:"x"      yaml:"x"`
	Y      float64 `json:"y"      yaml:"y"`
	Width  float64 `json:"width"  yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// XYWH builds a box from the [x, y, width, height] order used by annotation files.
func XYWH(x, y, w, h float64) BoundingBox {
	return BoundingBox{X: x, Y: y, Width: w, Height: h}
}

// MinSide returns the smaller of the two box sides.
func (b BoundingBox) MinSide() float64 {
	return math.Min(b.Width, b.Height)
}

// Rect rounds the box onto the integer pixel grid. Coordinates are rounded
// half to even before the far edges are derived, so a box can gain or lose up
// to half a pixel on every side.
func (b BoundingBox) Rect() images.Rect {
	x := int(math.RoundToEven(b.X))
	y := int(math.RoundToEven(b.Y))
	w := int(math.RoundToEven(b.Width))
	h := int(math.RoundToEven(b.Height))
	return images.Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.X, b.Y, b.Width, b.Height)
}

// Detection is one labelled box. Score is only meaningful for predictions
// and is never used by the scorer itself.
type Detection struct {
	Category int         `json:"category"        yaml:"category"`
	Box      BoundingBox `json:"bbox"            yaml:"bbox"`
	Score    float64     `json:"score,omitempty" yaml:"score,omitempty"`
}

// Row is one image of a prediction or ground-truth table.
type Row struct {
	ID         int64       `json:"id"        yaml:"id"`
	FileName   string      `json:"file_name" yaml:"file_name"`
	Width      int         `json:"width"     yaml:"width"`
	Height     int         `json:"height"    yaml:"height"`
	Detections []Detection `json:"detections" yaml:"detections"`
}

// Table holds one row per image in a fixed order.
type Table []Row

// IDs returns the image identifiers in table order.
func (t Table) IDs() []int64 {
	ids := make([]int64, len(t))
	for i, row := range t {
		ids[i] = row.ID
	}
	return ids
}

// ImageRecord pairs the predictions and ground truth of a single image.
type ImageRecord struct {
	ID          int64
	Predictions []Detection
	GroundTruth []Detection
}

// Align zips the two tables into image records. The tables must list the same
// image identifiers in the same order; alignment is checked, never inferred.
//
// Arguments:
//   - predictions: The prediction table.
//   - groundTruth: The ground-truth table.
//
// Returns:
//   - []ImageRecord: One record per image, in table order.
//   - error: An *AlignmentError if lengths or identifiers differ.
func Align(predictions, groundTruth Table) ([]ImageRecord, error) {
	if len(predictions) != len(groundTruth) {
		return nil, &AlignmentError{
			Position:       min(len(predictions), len(groundTruth)),
			PredictionLen:  len(predictions),
			GroundTruthLen: len(groundTruth),
		}
	}

	records := make([]ImageRecord, len(groundTruth))
	for i := range groundTruth {
		if predictions[i].ID != groundTruth[i].ID {
			return nil, &AlignmentError{
				Position:       i,
				PredictionID:   predictions[i].ID,
				GroundTruthID:  groundTruth[i].ID,
				PredictionLen:  len(predictions),
				GroundTruthLen: len(groundTruth),
			}
		}
		records[i] = ImageRecord{
			ID:          groundTruth[i].ID,
			Predictions: predictions[i].Detections,
			GroundTruth: groundTruth[i].Detections,
		}
	}

	return records, nil
}
