package evaluation

import (
	"fmt"
	"strings"

	"github.com/nvr-ai/defect-eval/images"
)

// OverlapMode selects how box IoU is measured.
type OverlapMode string

const (
	// OverlapRaster counts pixels on a canvas anchored at the image origin and
	// downsamples large canvases before counting.
	OverlapRaster OverlapMode = "raster"
	// OverlapExact uses the closed-form rectangle IoU at full resolution.
	OverlapExact OverlapMode = "exact"
)

// ParseOverlapMode validates a mode name from config or flags.
func ParseOverlapMode(s string) (OverlapMode, error) {
	switch OverlapMode(strings.ToLower(strings.TrimSpace(s))) {
	case OverlapRaster, "":
		return OverlapRaster, nil
	case OverlapExact:
		return OverlapExact, nil
	}
	return "", fmt.Errorf("unknown overlap mode %q", s)
}

// OverlapConfig controls the IoU approximation.
type OverlapConfig struct {
	Mode OverlapMode `json:"mode" yaml:"mode"`
	// DownsampleAbove is the canvas side (pixels) above which raster masks are
	// downsampled.
	DownsampleAbove int `json:"downsampleAbove" yaml:"downsampleAbove"`
	// DownsampleSize is the square resolution large canvases are reduced to.
	DownsampleSize int `json:"downsampleSize" yaml:"downsampleSize"`
	// Downsampler rescales masks. Nil means bilinear nfnt/resize.
	Downsampler images.Downsampler `json:"-" yaml:"-"`
}

// DefaultOverlapConfig reproduces the reference baseline numbers: raster
// counting, with canvases larger than 1000px reduced to 800x800.
func DefaultOverlapConfig() OverlapConfig {
	return OverlapConfig{
		Mode:            OverlapRaster,
		DownsampleAbove: 1000,
		DownsampleSize:  800,
		Downsampler:     images.ResizeDownsampler{Filter: images.BilinearFilter},
	}
}

// IntersectionOverUnion measures the overlap of two boxes with DefaultOverlapConfig.
func IntersectionOverUnion(predicted, truth BoundingBox) float64 {
	return DefaultOverlapConfig().IoU(predicted, truth)
}

// IoU returns the intersection over union of the predicted and truth boxes in
// [0, 1].
//
// Both boxes are first rounded to whole pixels. In raster mode the canvas
// spans from the origin to the far edges of the two boxes, which means its
// size depends on where the boxes sit in the image and not only on the boxes
// themselves. When the larger canvas side exceeds DownsampleAbove, both
// footprints are drawn as masks, resampled to DownsampleSize x DownsampleSize
// and the surviving pixels are counted. The resampling loses a little accuracy
// (and can erase boxes thinner than one output pixel) in exchange for bounded
// cost on large images. Smaller canvases are counted exactly, which is the
// same as the closed-form rectangle IoU.
//
// Returns 0 when the union is empty.
func (c OverlapConfig) IoU(predicted, truth BoundingBox) float64 {
	p := predicted.Rect()
	t := truth.Rect()

	if c.Mode == OverlapExact {
		return images.CalculateIoU(p, t)
	}

	width := max(p.X2, t.X2)
	height := max(p.Y2, t.Y2)
	if width <= 0 || height <= 0 {
		return 0.0
	}

	if c.DownsampleAbove <= 0 || max(width, height) <= c.DownsampleAbove || c.DownsampleSize <= 0 {
		// Pixels outside the canvas (negative coordinates) are not drawn.
		return images.CalculateIoU(p.Clip(width, height), t.Clip(width, height))
	}

	d := c.Downsampler
	if d == nil {
		d = images.ResizeDownsampler{Filter: images.BilinearFilter}
	}
	pm := d.Downsample(images.RectMask(p, width, height), c.DownsampleSize, c.DownsampleSize)
	tm := d.Downsample(images.RectMask(t, width, height), c.DownsampleSize, c.DownsampleSize)

	return images.MaskIoU(pm, tm)
}
