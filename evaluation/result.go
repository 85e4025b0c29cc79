package evaluation

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RatioPolicy decides how a category without ground truth in an image is
// scored.
type RatioPolicy string

const (
	// PolicyExcludeEmpty scores an absent category as 0 and leaves it out of
	// the per-image average.
	PolicyExcludeEmpty RatioPolicy = "exclude-empty"
	// PolicyLegacy reproduces the historical numbers: a category whose match
	// count equals its ground-truth count scores 1, including the 0 == 0 case,
	// and the per-image score averages only the non-zero ratios.
	PolicyLegacy RatioPolicy = "legacy"
)

// ParseRatioPolicy validates a policy name from config or flags.
func ParseRatioPolicy(s string) (RatioPolicy, error) {
	switch RatioPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyExcludeEmpty, "":
		return PolicyExcludeEmpty, nil
	case PolicyLegacy:
		return PolicyLegacy, nil
	}
	return "", fmt.Errorf("unknown ratio policy %q", s)
}

// Counts are the per-category tallies of one image, indexed by category id minus one.
type Counts struct {
	GroundTruth [NumCategories]int `json:"groundTruth"`
	Matched     [NumCategories]int `json:"matched"`
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	for k := range c.GroundTruth {
		c.GroundTruth[k] += o.GroundTruth[k]
		c.Matched[k] += o.Matched[k]
	}
}

// Ratios returns matched / ground truth per category.
func (c Counts) Ratios(policy RatioPolicy) [NumCategories]float64 {
	var r [NumCategories]float64
	for k := range r {
		switch {
		case policy == PolicyLegacy && c.Matched[k] == c.GroundTruth[k]:
			r[k] = 1
		case c.GroundTruth[k] == 0:
			r[k] = 0
		default:
			r[k] = float64(c.Matched[k]) / float64(c.GroundTruth[k])
		}
	}
	return r
}

// AP returns the per-image score: the mean ratio over categories that have
// ground truth in the image, or 0 when the image has none.
func (c Counts) AP(policy RatioPolicy) float64 {
	ratios := c.Ratios(policy)
	sum, n := 0.0, 0
	for k, v := range ratios {
		include := c.GroundTruth[k] > 0
		if policy == PolicyLegacy {
			include = v != 0
		}
		if include {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Result is the outcome of one scoring run.
type Result struct {
	// ImageIDs lists the scored images in input order.
	ImageIDs []int64 `json:"imageIds"`
	// PerImage is the AP of each image, aligned with ImageIDs.
	PerImage []float64 `json:"perImage"`
	// Ratios holds the per-category match ratio of each image.
	Ratios [][NumCategories]float64 `json:"ratios"`
	// Counts holds the raw tallies of each image.
	Counts []Counts `json:"counts"`
	// MeanRatio is the per-category mean over all images, absent categories
	// contributing their policy value.
	MeanRatio [NumCategories]float64 `json:"meanRatio"`
	// Weighted is MeanRatio multiplied by the category weights.
	Weighted [NumCategories]float64 `json:"weighted"`
	// Total is the headline score, the sum of Weighted.
	Total float64 `json:"total"`

	Weights    CategoryWeights `json:"weights"`
	Policy     RatioPolicy     `json:"policy"`
	Strategy   MatchStrategy   `json:"strategy"`
	Categories *CategorySet    `json:"-"`
}

func newResult(ids []int64, counts []Counts, cfg Config) *Result {
	r := &Result{
		ImageIDs:   ids,
		PerImage:   make([]float64, len(counts)),
		Ratios:     make([][NumCategories]float64, len(counts)),
		Counts:     counts,
		Weights:    cfg.Weights,
		Policy:     cfg.Policy,
		Strategy:   cfg.Strategy,
		Categories: cfg.Categories,
	}
	for i, c := range counts {
		r.Ratios[i] = c.Ratios(cfg.Policy)
		r.PerImage[i] = c.AP(cfg.Policy)
	}

	if len(counts) > 0 {
		column := make([]float64, len(counts))
		for k := 0; k < NumCategories; k++ {
			for i := range r.Ratios {
				column[i] = r.Ratios[i][k]
			}
			r.MeanRatio[k] = stat.Mean(column, nil)
		}
	}

	weighted := r.Weighted[:]
	floats.MulTo(weighted, r.MeanRatio[:], cfg.Weights[:])
	r.Total = floats.Sum(weighted)

	return r
}

// CategoryScore summarises one category across the whole run.
type CategoryScore struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	GroundTruth int     `json:"groundTruth"`
	Matched     int     `json:"matched"`
	// Images is the number of images with at least one ground-truth box of
	// this category.
	Images    int     `json:"images"`
	MeanRatio float64 `json:"meanRatio"`
	Weighted  float64 `json:"weighted"`
}

// Category returns the summary of category id c.
func (r *Result) Category(c int) CategoryScore {
	s := CategoryScore{ID: c, Name: r.Categories.Name(c)}
	if !ValidCategory(c) {
		return s
	}
	k := c - 1
	s.Weight = r.Weights[k]
	s.MeanRatio = r.MeanRatio[k]
	s.Weighted = r.Weighted[k]
	for _, counts := range r.Counts {
		s.GroundTruth += counts.GroundTruth[k]
		s.Matched += counts.Matched[k]
		if counts.GroundTruth[k] > 0 {
			s.Images++
		}
	}
	return s
}

// CategoryScores returns the summaries of every category in id order.
func (r *Result) CategoryScores() []CategoryScore {
	out := make([]CategoryScore, NumCategories)
	for k := range out {
		out[k] = r.Category(k + 1)
	}
	return out
}

// Totals sums the tallies of every image.
func (r *Result) Totals() Counts {
	var t Counts
	for _, c := range r.Counts {
		t.Add(c)
	}
	return t
}
