package images

import (
	"fmt"
	"strings"

	"github.com/nfnt/resize"
)

// ResampleFilter defines the resampling algorithm used when a mask is scaled.
type ResampleFilter int

const (
	// NearestNeighborFilter uses nearest-neighbor interpolation (fastest, lowest quality).
	NearestNeighborFilter ResampleFilter = iota
	// BilinearFilter uses bilinear interpolation (fast, good quality).
	BilinearFilter
	// BicubicFilter uses bicubic interpolation (slower, better quality).
	BicubicFilter
	// LanczosFilter uses Lanczos resampling with a=3 (slowest, best quality).
	LanczosFilter
	// MitchellNetravaliFilter uses Mitchell-Netravali cubic filter (balanced).
	MitchellNetravaliFilter
)

var filterNames = map[ResampleFilter]string{
	NearestNeighborFilter:   "nearest",
	BilinearFilter:          "bilinear",
	BicubicFilter:           "bicubic",
	LanczosFilter:           "lanczos",
	MitchellNetravaliFilter: "mitchell",
}

// String returns the config name of the filter.
func (f ResampleFilter) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}
	return fmt.Sprintf("ResampleFilter(%d)", int(f))
}

// ParseResampleFilter maps a config name (case-insensitive) onto a filter.
func ParseResampleFilter(name string) (ResampleFilter, error) {
	for f, n := range filterNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return f, nil
		}
	}
	return BilinearFilter, fmt.Errorf("unknown resample filter %q", name)
}

// interpolation returns the nfnt/resize kernel backing f.
func (f ResampleFilter) interpolation() resize.InterpolationFunction {
	switch f {
	case NearestNeighborFilter:
		return resize.NearestNeighbor
	case BicubicFilter:
		return resize.Bicubic
	case LanczosFilter:
		return resize.Lanczos3
	case MitchellNetravaliFilter:
		return resize.MitchellNetravali
	default:
		return resize.Bilinear
	}
}
