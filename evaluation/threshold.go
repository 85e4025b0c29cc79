package evaluation

import "github.com/pkg/errors"

// Threshold bounds and the side lengths where the curve changes shape.
const (
	MinThreshold = 0.2
	MaxThreshold = 0.8

	smallSide  = 40.0
	mediumSide = 120.0
	largeSide  = 420.0
)

// AcceptanceThreshold returns the IoU a prediction must exceed to count as a
// match for the ground-truth box. Small boxes get a loose 0.2, since a pixel
// of misalignment costs them a lot of IoU; the requirement then grows with the
// smaller box side up to 0.8.
//
//	m < 40          0.2
//	40 <= m < 120   m / 200
//	120 <= m < 420  m / 1500 + 0.52
//	m >= 420        0.8
//
// Arguments:
//   - box: The ground-truth box.
//
// Returns:
//   - float64: The threshold in [0.2, 0.8].
//   - error: ErrInvalidBox when the smaller side is not positive.
func AcceptanceThreshold(box BoundingBox) (float64, error) {
	m := box.MinSide()
	switch {
	// Written as !(m > 0) so NaN sides are rejected too.
	case !(m > 0):
		return 0, errors.Wrapf(ErrInvalidBox, "min side %g of %s", m, box)
	case m < smallSide:
		return MinThreshold, nil
	case m < mediumSide:
		return m / 200, nil
	case m < largeSide:
		return m/1500 + 0.52, nil
	default:
		return MaxThreshold, nil
	}
}
