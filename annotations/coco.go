// Package annotations - Reads COCO-style annotation and result files into
// evaluation tables.
package annotations

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/json"
	"io"
	"os"
	"slices"

	"github.com/nvr-ai/defect-eval/evaluation"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	// ErrDuplicateImage indicates two images sharing an id.
	ErrDuplicateImage = errors.New("annotations: duplicate image id")
	// ErrUnknownImage indicates an annotation that references an image the
	// document (or the ground truth) does not list.
	ErrUnknownImage = errors.New("annotations: unknown image id")
	// ErrBadAnnotation indicates an annotation with an unusable category or bbox.
	ErrBadAnnotation = errors.New("annotations: bad annotation")
)

type cocoImage struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	Height   int    `json:"height"`
	Width    int    `json:"width"`
}

type cocoAnnotation struct {
	ID         int64     `json:"id,omitempty"`
	ImageID    int64     `json:"image_id"`
	CategoryID int       `json:"category_id"`
	BBox       []float64 `json:"bbox"`
	Score      float64   `json:"score,omitempty"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type cocoDocument struct {
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

// Dataset is one parsed annotation or prediction file.
type Dataset struct {
	// Images has one row per image, sorted by id. Images without annotations
	// have an empty detection list.
	Images evaluation.Table
	// Categories maps category id to the name declared in the file.
	Categories map[int]string
}

// Parse decodes a full COCO document.
//
// Arguments:
//   - r: The JSON source.
//
// Returns:
//   - *Dataset: The images sorted by id with their annotations attached.
//   - error: A decoding or validation error.
func Parse(r io.Reader) (*Dataset, error) {
	var doc cocoDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode annotation document")
	}
	return build(doc)
}

// Load parses the annotation file at path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open annotation file")
	}
	defer f.Close()

	ds, err := Parse(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return ds, nil
}

// ParsePredictions decodes predictions given either as a full COCO document or
// as a bare COCO results array. A results array carries no image list, so the
// images of gt are used.
func ParsePredictions(r io.Reader, gt *Dataset) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read predictions")
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Parse(bytes.NewReader(data))
	}

	if gt == nil {
		return nil, errors.New("annotations: a results array needs ground truth for its image list")
	}
	var results []cocoAnnotation
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, errors.Wrap(err, "decode results array")
	}

	doc := cocoDocument{
		Images: lo.Map(gt.Images, func(row evaluation.Row, _ int) cocoImage {
			return cocoImage{ID: row.ID, FileName: row.FileName, Height: row.Height, Width: row.Width}
		}),
		Annotations: results,
	}
	for id, name := range gt.Categories {
		doc.Categories = append(doc.Categories, cocoCategory{ID: id, Name: name})
	}
	return build(doc)
}

// LoadPredictions parses the prediction file at path. See ParsePredictions.
func LoadPredictions(path string, gt *Dataset) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open prediction file")
	}
	defer f.Close()

	ds, err := ParsePredictions(f, gt)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return ds, nil
}

func build(doc cocoDocument) (*Dataset, error) {
	if dups := lo.FindDuplicatesBy(doc.Images, func(img cocoImage) int64 { return img.ID }); len(dups) > 0 {
		return nil, errors.Wrapf(ErrDuplicateImage, "image %d", dups[0].ID)
	}
	known := lo.SliceToMap(doc.Images, func(img cocoImage) (int64, struct{}) { return img.ID, struct{}{} })

	for i, a := range doc.Annotations {
		if _, ok := known[a.ImageID]; !ok {
			return nil, errors.Wrapf(ErrUnknownImage, "annotation #%d references image %d", i, a.ImageID)
		}
		if err := validate(a); err != nil {
			return nil, errors.Wrapf(err, "annotation #%d of image %d", i, a.ImageID)
		}
	}

	byImage := lo.GroupBy(doc.Annotations, func(a cocoAnnotation) int64 { return a.ImageID })

	images := slices.Clone(doc.Images)
	slices.SortFunc(images, func(a, b cocoImage) int { return cmp.Compare(a.ID, b.ID) })

	table := make(evaluation.Table, len(images))
	for i, img := range images {
		table[i] = evaluation.Row{
			ID:       img.ID,
			FileName: img.FileName,
			Width:    img.Width,
			Height:   img.Height,
			Detections: lo.Map(byImage[img.ID], func(a cocoAnnotation, _ int) evaluation.Detection {
				return evaluation.Detection{
					Category: a.CategoryID,
					Box:      evaluation.XYWH(a.BBox[0], a.BBox[1], a.BBox[2], a.BBox[3]),
					Score:    a.Score,
				}
			}),
		}
	}

	return &Dataset{
		Images:     table,
		Categories: lo.SliceToMap(doc.Categories, func(c cocoCategory) (int, string) { return c.ID, c.Name }),
	}, nil
}

func validate(a cocoAnnotation) error {
	if !evaluation.ValidCategory(a.CategoryID) {
		return errors.Wrapf(ErrBadAnnotation, "category %d outside 1..%d", a.CategoryID, evaluation.NumCategories)
	}
	if len(a.BBox) != 4 {
		return errors.Wrapf(ErrBadAnnotation, "bbox has %d values, want 4", len(a.BBox))
	}
	if a.BBox[2] < 0 || a.BBox[3] < 0 {
		return errors.Wrapf(ErrBadAnnotation, "bbox %v has a negative side", a.BBox)
	}
	return nil
}

// Table returns the image rows.
func (d *Dataset) Table() evaluation.Table {
	return d.Images
}

// Align returns the prediction table in the image order of d, ready to be
// scored against d.Table(). Images of d without predictions get an empty row;
// predictions for images d does not list are an error.
func (d *Dataset) Align(pred *Dataset) (evaluation.Table, error) {
	byID := lo.KeyBy(pred.Images, func(row evaluation.Row) int64 { return row.ID })

	gtIDs := lo.SliceToMap(d.Images, func(row evaluation.Row) (int64, struct{}) { return row.ID, struct{}{} })
	for _, row := range pred.Images {
		if _, ok := gtIDs[row.ID]; !ok && len(row.Detections) > 0 {
			return nil, errors.Wrapf(ErrUnknownImage, "predictions for image %d", row.ID)
		}
	}

	out := make(evaluation.Table, len(d.Images))
	for i, row := range d.Images {
		out[i] = evaluation.Row{
			ID:         row.ID,
			FileName:   row.FileName,
			Width:      row.Width,
			Height:     row.Height,
			Detections: byID[row.ID].Detections,
		}
	}
	return out, nil
}

// Filter applies fn to the detections of every image and returns a new dataset.
func (d *Dataset) Filter(fn func([]evaluation.Detection) []evaluation.Detection) *Dataset {
	out := &Dataset{Images: make(evaluation.Table, len(d.Images)), Categories: d.Categories}
	for i, row := range d.Images {
		row.Detections = fn(row.Detections)
		out.Images[i] = row
	}
	return out
}
