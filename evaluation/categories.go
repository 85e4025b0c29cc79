package evaluation

import (
	"fmt"
	"strings"
)

// NumCategories is the number of defect categories. Category ids run 1..NumCategories.
const NumCategories = 10

// CategoryWeights is an importance vector indexed by category id minus one.
type CategoryWeights [NumCategories]float64

// DefaultWeights are the calibrated per-category importances of the final score.
var DefaultWeights = CategoryWeights{0.15, 0.09, 0.09, 0.05, 0.13, 0.05, 0.12, 0.13, 0.07, 0.12}

// Of returns the weight of category id c, or 0 for ids out of range.
func (w CategoryWeights) Of(c int) float64 {
	if !ValidCategory(c) {
		return 0
	}
	return w[c-1]
}

// Slice returns the weights as a slice for the numeric helpers.
func (w CategoryWeights) Slice() []float64 {
	out := make([]float64, NumCategories)
	copy(out, w[:])
	return out
}

// ParseWeights builds a weight vector from a category id -> weight map. Ids
// missing from the map keep their default weight.
func ParseWeights(m map[int]float64) (CategoryWeights, error) {
	w := DefaultWeights
	for c, v := range m {
		if !ValidCategory(c) {
			return w, fmt.Errorf("%w: weight for category %d", ErrCategory, c)
		}
		if v < 0 || v > 1 {
			return w, fmt.Errorf("weight %g for category %d is outside [0, 1]", v, c)
		}
		w[c-1] = v
	}
	return w, nil
}

// ValidCategory reports whether c is a known category id.
func ValidCategory(c int) bool {
	return c >= 1 && c <= NumCategories
}

// Category is one defect label.
type Category struct {
	// ID as used in annotation files (1-based).
	ID int
	// Human-readable label.
	Name string
}

// CategorySet resolves category ids to names.
type CategorySet struct {
	Categories []Category
	// nameToID for fast lookup by name
	nameToID map[string]int
}

// NewCategorySet builds a set and its name index.
func NewCategorySet(categories ...Category) *CategorySet {
	s := &CategorySet{Categories: categories}
	s.buildNameIndex()
	return s
}

func (s *CategorySet) buildNameIndex() {
	s.nameToID = make(map[string]int, len(s.Categories))
	for _, c := range s.Categories {
		s.nameToID[strings.ToLower(c.Name)] = c.ID
	}
}

// Name returns the label of category id, falling back to "category <id>".
func (s *CategorySet) Name(id int) string {
	if s != nil {
		for _, c := range s.Categories {
			if c.ID == id {
				return c.Name
			}
		}
	}
	return fmt.Sprintf("category %d", id)
}

// ID returns the category id for a name (case-insensitive).
func (s *CategorySet) ID(name string) (int, error) {
	if s.nameToID == nil {
		s.buildNameIndex()
	}
	id, ok := s.nameToID[strings.ToLower(name)]
	if !ok {
		return -1, fmt.Errorf("category %q not found", name)
	}
	return id, nil
}

// WithNames returns a copy of s where every id present in names is relabelled.
// It is used to adopt the names shipped in an annotation file.
func (s *CategorySet) WithNames(names map[int]string) *CategorySet {
	out := make([]Category, len(s.Categories))
	copy(out, s.Categories)
	for i, c := range out {
		if name, ok := names[c.ID]; ok && name != "" {
			out[i].Name = name
		}
	}
	return NewCategorySet(out...)
}

// DefectCategories are the bottle inspection defect classes.
var DefectCategories = NewCategorySet(
	Category{1, "cap broken"},
	Category{2, "cap deformed"},
	Category{3, "cap bad edge"},
	Category{4, "cap spin"},
	Category{5, "cap breakpoint"},
	Category{6, "label skew"},
	Category{7, "label wrinkle"},
	Category{8, "label bubble"},
	Category{9, "code normal"},
	Category{10, "code abnormal"},
)
