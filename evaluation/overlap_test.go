package evaluation

import (
	"testing"

	"github.com/nvr-ai/defect-eval/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDownsampler records how often it is asked to resample.
type countingDownsampler struct {
	calls int
	inner images.Downsampler
}

func (c *countingDownsampler) Downsample(m *images.Mask, width, height int) *images.Mask {
	c.calls++
	return c.inner.Downsample(m, width, height)
}

func TestIntersectionOverUnion(t *testing.T) {
	tests := []struct {
		name      string
		predicted BoundingBox
		truth     BoundingBox
		want      float64
		epsilon   float64
	}{
		{"identical", XYWH(10, 20, 50, 60), XYWH(10, 20, 50, 60), 1.0, 0},
		{"disjoint", XYWH(0, 0, 10, 10), XYWH(100, 100, 10, 10), 0.0, 0},
		{"quarter overlap", XYWH(0, 0, 100, 100), XYWH(50, 50, 100, 100), 2500.0 / 17500.0, 1e-12},
		{"rounded away", XYWH(0.4, 0, 10, 10), XYWH(0, 0, 10, 10), 1.0, 0},
		{"half rounds to even", XYWH(0.5, 0, 10, 10), XYWH(0, 0, 10, 10), 1.0, 0},
		{"1.5 rounds up", XYWH(1.5, 0, 10, 10), XYWH(0, 0, 10, 10), 80.0 / 120.0, 1e-12},
		{"empty boxes", XYWH(0, 0, 0, 0), XYWH(0, 0, 0, 0), 0.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IntersectionOverUnion(tt.predicted, tt.truth)
			assert.InDelta(t, tt.want, got, tt.epsilon)

			exact := OverlapConfig{Mode: OverlapExact}.IoU(tt.predicted, tt.truth)
			assert.InDelta(t, tt.want, exact, tt.epsilon)
		})
	}
}

func TestOverlapConfig_DownsamplesLargeCanvas(t *testing.T) {
	counter := &countingDownsampler{inner: images.ResizeDownsampler{Filter: images.BilinearFilter}}
	cfg := DefaultOverlapConfig()
	cfg.Downsampler = counter

	// 1000px canvas is not above the limit.
	assert.Equal(t, 1.0, cfg.IoU(XYWH(900, 900, 100, 100), XYWH(900, 900, 100, 100)))
	assert.Zero(t, counter.calls)

	// Identical boxes stay identical after resampling.
	got := cfg.IoU(XYWH(100, 100, 1200, 1100), XYWH(100, 100, 1200, 1100))
	assert.Equal(t, 1.0, got)
	assert.Equal(t, 2, counter.calls)

	// A 1500x1000 canvas squeezed to 800x800 stays close to the exact 1/3.
	approx := cfg.IoU(XYWH(0, 0, 1000, 1000), XYWH(500, 0, 1000, 1000))
	assert.InDelta(t, 1.0/3.0, approx, 0.01)
	assert.Equal(t, 4, counter.calls)
}

func TestOverlapConfig_DownsamplingDisabled(t *testing.T) {
	cfg := DefaultOverlapConfig()
	cfg.DownsampleAbove = 0

	p, g := XYWH(13, 1700, 420, 300), XYWH(200, 1750, 500, 280)
	want := images.CalculateIoU(p.Rect(), g.Rect())
	assert.Equal(t, want, cfg.IoU(p, g))
}

func TestParseOverlapMode(t *testing.T) {
	m, err := ParseOverlapMode("EXACT")
	require.NoError(t, err)
	assert.Equal(t, OverlapExact, m)

	m, err = ParseOverlapMode("")
	require.NoError(t, err)
	assert.Equal(t, OverlapRaster, m)

	_, err = ParseOverlapMode("polygon")
	assert.Error(t, err)
}
