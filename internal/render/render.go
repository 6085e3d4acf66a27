// Package render formats the output of a generation run for people: a
// terminal summary and optional projection scatter plots.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"phdash/internal/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(22)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).Padding(0, 1)
)

// Summary renders the closing report of a generation run: dataset shape,
// noise, thresholds per metric, projections, and the files written.
func Summary(res *pipeline.Result) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Persistent homology snapshot"))
	b.WriteString("\n\n")
	row(&b, "Directory", res.Dir)
	if res.Manifest != nil {
		row(&b, "Run", res.Manifest.RunID)
	}
	row(&b, "Points", fmt.Sprintf("%d in %d clusters", res.Stats.NSamples, res.Stats.NClusters))
	if len(res.Stats.ClusterSizes) > 0 {
		row(&b, "Cluster sizes", strings.Trim(fmt.Sprint(res.Stats.ClusterSizes), "[]"))
	}
	row(&b, "Label swaps", fmt.Sprintf("%d (%d outliers)", res.Stats.Swaps, res.Stats.Outliers))

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Thresholds per metric"))
	b.WriteString("\n")
	for _, th := range res.Stats.Thresholds {
		sil := "n/a"
		if !math.IsNaN(th.Silhouette) {
			sil = fmt.Sprintf("%.3f, %s, %d below zero", th.Silhouette, th.Quality, th.Negative)
		}
		row(&b, th.Name, fmt.Sprintf("%d (silhouette %s)", th.Count, sil))
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Projections"))
	b.WriteString("\n")
	for _, pr := range res.Projections {
		r, c := pr.Matrix.Dims()
		row(&b, strings.ToUpper(string(pr.Kind)), fmt.Sprintf("%dx%d", r, c))
	}
	if len(res.ExplainedVariance) > 0 {
		parts := make([]string, len(res.ExplainedVariance))
		for i, v := range res.ExplainedVariance {
			parts[i] = fmt.Sprintf("%.3f", v)
		}
		row(&b, "PCA variance ratio", strings.Join(parts, ", "))
	}
	for _, k := range res.Stats.Skipped {
		b.WriteString(warnStyle.Render(fmt.Sprintf("Skipped %s: fewer than two classes", strings.ToUpper(string(k)))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("Files written (%d)", len(res.Stats.Files))))
	b.WriteString("\n")
	for _, f := range res.Stats.Files {
		b.WriteString(valueStyle.Render("  " + f))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	row(&b, "Elapsed", res.Stats.ProcessingTime.Round(time.Millisecond).String())

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}
