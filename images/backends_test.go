package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDownsampler(t *testing.T) {
	d, err := NewDownsampler("", LanczosFilter)
	require.NoError(t, err)
	assert.Equal(t, ResizeDownsampler{Filter: LanczosFilter}, d)

	d, err = NewDownsampler("RESIZE", BilinearFilter)
	require.NoError(t, err)
	assert.Equal(t, ResizeDownsampler{Filter: BilinearFilter}, d)

	_, err = NewDownsampler("pillow", BilinearFilter)
	assert.ErrorContains(t, err, "resize")
}

type fixedDownsampler struct{}

func (fixedDownsampler) Downsample(_ *Mask, width, height int) *Mask { return NewMask(width, height) }

func TestRegisterDownsampler(t *testing.T) {
	RegisterDownsampler("Blank", func(ResampleFilter) Downsampler { return fixedDownsampler{} })

	assert.Contains(t, DownsamplerBackends(), "blank")
	d, err := NewDownsampler("blank", NearestNeighborFilter)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Downsample(NewMask(4, 4), 2, 2).Count())
}
