// Package report - Renders scoring results as text tables or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/nvr-ai/defect-eval/evaluation"
	"github.com/pkg/errors"
)

// Formats accepted by Write.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// ImageScore is the per-image line of a report.
type ImageScore struct {
	ID          int64   `json:"id"`
	AP          float64 `json:"ap"`
	GroundTruth int     `json:"groundTruth"`
	Matched     int     `json:"matched"`
}

// Summary is the serialisable form of a result.
type Summary struct {
	Total      float64                    `json:"total"`
	MeanAP     float64                    `json:"meanAP"`
	Images     int                        `json:"images"`
	Strategy   evaluation.MatchStrategy   `json:"strategy"`
	Policy     evaluation.RatioPolicy     `json:"policy"`
	Categories []evaluation.CategoryScore `json:"categories"`
	PerImage   []ImageScore               `json:"perImage,omitempty"`
}

// Summarize collects the report data of r.
func Summarize(r *evaluation.Result, perImage bool) Summary {
	s := Summary{
		Total:      r.Total,
		Images:     len(r.ImageIDs),
		Strategy:   r.Strategy,
		Policy:     r.Policy,
		Categories: r.CategoryScores(),
	}
	for _, ap := range r.PerImage {
		s.MeanAP += ap
	}
	if len(r.PerImage) > 0 {
		s.MeanAP /= float64(len(r.PerImage))
	}
	if perImage {
		s.PerImage = ImageScores(r)
	}
	return s
}

// ImageScores returns one line per image in input order.
func ImageScores(r *evaluation.Result) []ImageScore {
	out := make([]ImageScore, len(r.ImageIDs))
	for i, id := range r.ImageIDs {
		out[i] = ImageScore{ID: id, AP: r.PerImage[i]}
		for k := 0; k < evaluation.NumCategories; k++ {
			out[i].GroundTruth += r.Counts[i].GroundTruth[k]
			out[i].Matched += r.Counts[i].Matched[k]
		}
	}
	return out
}

// CategoryTable renders the per-category breakdown with the total as footer.
func CategoryTable(r *evaluation.Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Category", "Weight", "GT", "Matched", "Images", "Mean ratio", "Weighted"})
	for _, c := range r.CategoryScores() {
		t.AppendRow(table.Row{
			c.ID,
			c.Name,
			fmt.Sprintf("%.2f", c.Weight),
			c.GroundTruth,
			c.Matched,
			c.Images,
			fmt.Sprintf("%.4f", c.MeanRatio),
			fmt.Sprintf("%.4f", c.Weighted),
		})
	}
	totals := r.Totals()
	gt, matched := 0, 0
	for k := range totals.GroundTruth {
		gt += totals.GroundTruth[k]
		matched += totals.Matched[k]
	}
	t.AppendFooter(table.Row{"", "total", "", gt, matched, len(r.ImageIDs), "", fmt.Sprintf("%.4f", r.Total)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return t.Render()
}

// ImageTable renders the per-image scores.
func ImageTable(r *evaluation.Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Image", "GT", "Matched", "AP"})
	for _, s := range ImageScores(r) {
		t.AppendRow(table.Row{s.ID, s.GroundTruth, s.Matched, fmt.Sprintf("%.4f", s.AP)})
	}
	return t.Render()
}

// Write renders r to w in the given format.
//
// Arguments:
//   - w: Destination.
//   - r: The scoring result.
//   - format: FormatTable or FormatJSON.
//   - perImage: If true, include per-image scores.
//
// Returns:
//   - error: An unknown format or a write failure.
func Write(w io.Writer, r *evaluation.Result, format string, perImage bool) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(Summarize(r, perImage)), "write json report")
	case FormatTable, "":
		var b strings.Builder
		fmt.Fprintf(&b, "strategy=%s policy=%s images=%d\n", r.Strategy, r.Policy, len(r.ImageIDs))
		b.WriteString(CategoryTable(r))
		b.WriteString("\n")
		if perImage {
			b.WriteString(ImageTable(r))
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "score: %.6f\n", r.Total)
		_, err := io.WriteString(w, b.String())
		return errors.Wrap(err, "write table report")
	default:
		return errors.Errorf("unknown report format %q", format)
	}
}
