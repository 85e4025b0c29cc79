package images

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

const (
	// MaskOn is the value written for a covered pixel.
	MaskOn uint8 = 255
	// MaskLevel is the smallest value still counted as covered after resampling.
	MaskLevel uint8 = 128
)

// Mask is a binary coverage raster. Pixels are either 0 or MaskOn until the
// mask is resampled, after which anything at or above MaskLevel counts as set.
type Mask struct {
	*image.Gray
}

// NewMask allocates an empty width x height mask.
func NewMask(width, height int) *Mask {
	return &Mask{Gray: image.NewGray(image.Rect(0, 0, max(width, 0), max(height, 0)))}
}

// Width of the mask in pixels.
func (m *Mask) Width() int {
	return m.Rect.Dx()
}

// Height of the mask in pixels.
func (m *Mask) Height() int {
	return m.Rect.Dy()
}

// Fill marks every pixel of r, clipped to the mask bounds.
func (m *Mask) Fill(r Rect) {
	c := r.Clip(m.Width(), m.Height())
	if c.Empty() {
		return
	}
	for y := c.Y1; y < c.Y2; y++ {
		row := m.Pix[y*m.Stride+c.X1 : y*m.Stride+c.X2]
		for i := range row {
			row[i] = MaskOn
		}
	}
}

// Covered reports whether the pixel at (x, y) is covered.
func (m *Mask) Covered(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width() || y >= m.Height() {
		return false
	}
	return m.Pix[y*m.Stride+x] >= MaskLevel
}

// Count returns the number of covered pixels.
func (m *Mask) Count() int {
	n := 0
	for y := 0; y < m.Height(); y++ {
		for _, v := range m.Pix[y*m.Stride : y*m.Stride+m.Width()] {
			if v >= MaskLevel {
				n++
			}
		}
	}
	return n
}

// RectMask rasterises r onto a fresh width x height canvas.
func RectMask(r Rect, width, height int) *Mask {
	m := NewMask(width, height)
	m.Fill(r)
	return m
}

// MaskOverlap counts the pixels covered by both masks and by either mask over
// the region the two masks share.
func MaskOverlap(a, b *Mask) (intersection, union int) {
	w := min(a.Width(), b.Width())
	h := min(a.Height(), b.Height())
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := range ra {
			sa, sb := ra[x] >= MaskLevel, rb[x] >= MaskLevel
			if sa && sb {
				intersection++
			}
			if sa || sb {
				union++
			}
		}
	}
	return intersection, union
}

// MaskIoU is the pixel-count IoU of two masks, 0 when neither covers anything.
func MaskIoU(a, b *Mask) float64 {
	inter, union := MaskOverlap(a, b)
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// Downsampler rescales a mask to a fixed resolution.
type Downsampler interface {
	Downsample(m *Mask, width, height int) *Mask
}

// ResizeDownsampler rescales masks with github.com/nfnt/resize.
type ResizeDownsampler struct {
	Filter ResampleFilter
}

// Downsample implements Downsampler.
func (d ResizeDownsampler) Downsample(m *Mask, width, height int) *Mask {
	if width <= 0 || height <= 0 {
		return NewMask(0, 0)
	}
	out := resize.Resize(uint(width), uint(height), m.Gray, d.Filter.interpolation())
	if g, ok := out.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return &Mask{Gray: g}
	}

	dst := NewMask(width, height)
	draw.Draw(dst.Gray, dst.Rect, out, out.Bounds().Min, draw.Src)
	return dst
}
