// Package images - Pixel geometry for box overlap scoring.
package images

// Rect is a lightweight integer pixel box.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Dx returns the width of r, or 0 for an inverted rectangle.
func (r Rect) Dx() int {
	return max(r.X2-r.X1, 0)
}

// Dy returns the height of r, or 0 for an inverted rectangle.
func (r Rect) Dy() int {
	return max(r.Y2-r.Y1, 0)
}

// Area returns the number of pixels covered by r.
func (r Rect) Area() int {
	return r.Dx() * r.Dy()
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool {
	return r.Dx() == 0 || r.Dy() == 0
}

// Intersect returns the overlapping region of r and o. The result is Empty when
// they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
		X2: min(r.X2, o.X2),
		Y2: min(r.Y2, o.Y2),
	}
}

// Clip returns r restricted to the canvas [0,width) x [0,height).
func (r Rect) Clip(width, height int) Rect {
	return r.Intersect(Rect{X1: 0, Y1: 0, X2: width, Y2: height})
}

// CalculateIoU measures how much two rectangles overlap:
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the rectangles are identical and 0.0 means they do not
// overlap at all. The union uses inclusion-exclusion,
// Area(A) + Area(B) - Area(A ∩ B), so the shared pixels are only counted once.
//
// Because both rectangles are integral this is exactly the ratio of pixels a
// rasterised pair of masks would report, without allocating the masks.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float64: A value between 0.0 and 1.0. Two empty rectangles yield 0.0.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / (100 + 100 - 25) = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float64 {
	inter := r.Intersect(o).Area()
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0.0
	}

	return float64(inter) / float64(union)
}
