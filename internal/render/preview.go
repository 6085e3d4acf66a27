package render

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"phdash/internal/core"
	"phdash/internal/pipeline"
)

// PreviewSize is the edge length of a preview image.
const PreviewSize = 6 * vg.Inch

// Previews writes one PNG scatter plot per projection, coloured by label.
type Previews struct{}

// PreviewFile is the file name of the preview for kind.
func PreviewFile(kind core.ProjectionKind) string {
	return "preview_" + string(kind) + ".png"
}

// WriteProjectionPreviews implements pipeline.PreviewWriter.
func (Previews) WriteProjectionPreviews(dir string, projections []pipeline.Projection, labels []int) ([]string, error) {
	var files []string
	for _, pr := range projections {
		p, err := ScatterPlot(pr, labels)
		if err != nil {
			return files, err
		}
		name := PreviewFile(pr.Kind)
		if err := p.Save(PreviewSize, PreviewSize, filepath.Join(dir, name)); err != nil {
			return files, fmt.Errorf("failed to save %s: %w", name, err)
		}
		files = append(files, name)
	}
	return files, nil
}

// ScatterPlot builds the plot of one projection. A single-column projection
// is drawn on the x axis.
func ScatterPlot(pr pipeline.Projection, labels []int) (*plot.Plot, error) {
	n, cols := pr.Matrix.Dims()
	if len(labels) != n {
		return nil, fmt.Errorf("%d labels for %d projected points", len(labels), n)
	}

	groups := make(map[int]plotter.XYs)
	for i := 0; i < n; i++ {
		xy := plotter.XY{X: pr.Matrix.At(i, 0)}
		if cols > 1 {
			xy.Y = pr.Matrix.At(i, 1)
		}
		groups[labels[i]] = append(groups[labels[i]], xy)
	}
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	p := plot.New()
	p.Title.Text = strings.ToUpper(string(pr.Kind))
	p.X.Label.Text = "component 1"
	p.Y.Label.Text = "component 2"
	p.Legend.Top = true

	for i, label := range keys {
		scatter, err := plotter.NewScatter(groups[label])
		if err != nil {
			return nil, fmt.Errorf("failed to build %s scatter: %w", pr.Kind, err)
		}
		scatter.GlyphStyle.Radius = vg.Points(2)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Color = plotutil.Color(i)
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("%d", label), scatter)
	}
	return p, nil
}
