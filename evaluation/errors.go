package evaluation

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrInvalidBox indicates a ground-truth box with a non-positive side.
	ErrInvalidBox = errors.New("evaluation: invalid box")

	// ErrAlignment indicates the prediction and ground-truth tables disagree on
	// their image identifiers.
	ErrAlignment = errors.New("evaluation: tables are not aligned")

	// ErrCategory indicates a category id outside 1..NumCategories.
	ErrCategory = errors.New("evaluation: category out of range")
)

// InvalidBoxError reports the offending image and ground-truth box.
type InvalidBoxError struct {
	ImageID int64
	// Index is the position of the box in the image's ground-truth list.
	Index int
	Box   BoundingBox
}

func (e *InvalidBoxError) Error() string {
	return fmt.Sprintf("%v: image %d ground truth #%d %s has min side %g",
		ErrInvalidBox, e.ImageID, e.Index, e.Box, e.Box.MinSide())
}

// Unwrap lets errors.Is match ErrInvalidBox.
func (e *InvalidBoxError) Unwrap() error {
	return ErrInvalidBox
}

// AlignmentError describes the first position where the tables disagree.
type AlignmentError struct {
	Position       int
	PredictionID   int64
	GroundTruthID  int64
	PredictionLen  int
	GroundTruthLen int
}

func (e *AlignmentError) Error() string {
	if e.PredictionLen != e.GroundTruthLen {
		return fmt.Sprintf("%v: %d prediction rows vs %d ground-truth rows",
			ErrAlignment, e.PredictionLen, e.GroundTruthLen)
	}
	return fmt.Sprintf("%v: row %d has prediction image %d but ground-truth image %d",
		ErrAlignment, e.Position, e.PredictionID, e.GroundTruthID)
}

// Unwrap lets errors.Is match ErrAlignment.
func (e *AlignmentError) Unwrap() error {
	return ErrAlignment
}
