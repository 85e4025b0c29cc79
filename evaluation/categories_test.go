package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeights(t *testing.T) {
	sum := 0.0
	for c := 1; c <= NumCategories; c++ {
		w := DefaultWeights.Of(c)
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Zero(t, DefaultWeights.Of(0))
	assert.Zero(t, DefaultWeights.Of(11))
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights(map[int]float64{4: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, w.Of(4))
	assert.Equal(t, DefaultWeights.Of(1), w.Of(1))

	_, err = ParseWeights(map[int]float64{0: 0.1})
	assert.ErrorIs(t, err, ErrCategory)

	_, err = ParseWeights(map[int]float64{2: 1.5})
	assert.Error(t, err)
}

func TestCategorySet(t *testing.T) {
	id, err := DefectCategories.ID("Label Bubble")
	require.NoError(t, err)
	assert.Equal(t, 8, id)

	_, err = DefectCategories.ID("scratch")
	assert.Error(t, err)

	renamed := DefectCategories.WithNames(map[int]string{1: "瓶盖破损", 99: "ignored"})
	assert.Equal(t, "瓶盖破损", renamed.Name(1))
	assert.Equal(t, "cap deformed", renamed.Name(2))
	assert.Equal(t, "cap broken", DefectCategories.Name(1), "source set must not change")

	var none *CategorySet
	assert.Equal(t, "category 3", none.Name(3))
}

func TestCounts_Ratios(t *testing.T) {
	var c Counts
	c.GroundTruth[0], c.Matched[0] = 4, 3
	c.GroundTruth[2], c.Matched[2] = 2, 0

	r := c.Ratios(PolicyExcludeEmpty)
	assert.Equal(t, 0.75, r[0])
	assert.Equal(t, 0.0, r[1])
	assert.Equal(t, 0.0, r[2])
	assert.InDelta(t, 0.375, c.AP(PolicyExcludeEmpty), 1e-12)

	legacy := c.Ratios(PolicyLegacy)
	assert.Equal(t, 1.0, legacy[1])
	assert.Equal(t, 0.0, legacy[2])
	// (0.75 + 8 empty categories) / 9 non-zero ratios
	assert.InDelta(t, 8.75/9, c.AP(PolicyLegacy), 1e-12)
}

func TestParseRatioPolicy(t *testing.T) {
	p, err := ParseRatioPolicy("legacy")
	require.NoError(t, err)
	assert.Equal(t, PolicyLegacy, p)

	p, err = ParseRatioPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyExcludeEmpty, p)

	_, err = ParseRatioPolicy("perfect")
	assert.Error(t, err)
}
