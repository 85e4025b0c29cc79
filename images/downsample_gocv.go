//go:build gocv

package images

import (
	"image"

	"gocv.io/x/gocv"
)

// GocvBackend selects GocvDownsampler in NewDownsampler.
const GocvBackend = "gocv"

func init() {
	RegisterDownsampler(GocvBackend, func(filter ResampleFilter) Downsampler {
		return GocvDownsampler{Interpolation: filter.gocvInterpolation()}
	})
}

// gocvInterpolation maps f onto the closest OpenCV interpolation.
func (f ResampleFilter) gocvInterpolation() gocv.InterpolationFlags {
	switch f {
	case NearestNeighborFilter:
		return gocv.InterpolationNearestNeighbor
	case BicubicFilter, MitchellNetravaliFilter:
		return gocv.InterpolationCubic
	case LanczosFilter:
		return gocv.InterpolationLanczos4
	default:
		return gocv.InterpolationLinear
	}
}

// GocvDownsampler rescales masks with OpenCV, so downsampled IoUs agree bit
// for bit with tools that score through OpenCV. Only built with the gocv tag
// since it needs cgo and OpenCV.
type GocvDownsampler struct {
	Interpolation gocv.InterpolationFlags
}

// NewGocvDownsampler returns a downsampler using bilinear interpolation,
// which is the OpenCV default.
func NewGocvDownsampler() GocvDownsampler {
	return GocvDownsampler{Interpolation: gocv.InterpolationLinear}
}

// Downsample implements Downsampler.
func (d GocvDownsampler) Downsample(m *Mask, width, height int) *Mask {
	out := NewMask(width, height)
	if width <= 0 || height <= 0 || m.Width() == 0 || m.Height() == 0 {
		return out
	}

	src, err := gocv.NewMatFromBytes(m.Height(), m.Width(), gocv.MatTypeCV8U, m.Pix)
	if err != nil {
		return out
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, d.Interpolation)

	data, err := dst.DataPtrUint8()
	if err != nil {
		return out
	}
	copy(out.Pix, data)

	return out
}
