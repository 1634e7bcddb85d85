package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/thyrosim/internal/metrics"
	"github.com/san-kum/thyrosim/internal/run"
)

// Series names understood by Plot.
var Series = []string{"t4", "t3", "tsh", "ft4", "ft3", "log-tsh"}

var units = map[string]string{
	"t4":      "µg/L",
	"t3":      "µg/L",
	"tsh":     "mU/L",
	"ft4":     "ng/L",
	"ft3":     "ng/L",
	"log-tsh": "log10 mU/L",
}

// Select returns the named series of res.
func Select(res *run.Result, name string) ([]float64, error) {
	switch name {
	case "t4":
		return res.T4, nil
	case "t3":
		return res.T3, nil
	case "tsh":
		return res.TSH, nil
	case "ft4":
		return res.FT4, nil
	case "ft3":
		return res.FT3, nil
	case "log-tsh":
		return res.LogTSH(), nil
	default:
		return nil, fmt.Errorf("unknown series %q (available: %s)", name, strings.Join(Series, ", "))
	}
}

// Summary renders the per-hormone statistics of a run as a bordered panel.
// Final values outside their reference range are highlighted.
func Summary(title string, res *run.Result) string {
	s := res.Summary()

	var b strings.Builder
	b.WriteString(Title.Render(title))
	b.WriteString("\n")
	b.WriteString(Label.Render(fmt.Sprintf("%.2f days, %d steps", res.Days, res.Len())))
	if res.Equilibrated {
		b.WriteString(Subtle.Render("  equilibrated"))
	}
	if res.Seeded {
		b.WriteString(Subtle.Render("  continued"))
	}
	b.WriteString("\n\n")

	b.WriteString(Label.Render(fmt.Sprintf("%-5s %10s %10s %10s %10s  %s", "", "final", "mean", "trough", "peak", "unit")))
	b.WriteString("\n")
	for _, name := range []string{"t4", "t3", "tsh", "ft4", "ft3"} {
		st := s[name]
		final := fmt.Sprintf("%10.3f", st.Final)
		if r, ok := metrics.ReferenceRanges[name]; ok {
			if st.Final < r.Low || st.Final > r.High {
				final = OutOfRange.Render(final)
			} else {
				final = InRange.Render(final)
			}
		}
		fmt.Fprintf(&b, "%-5s %s %10.3f %10.3f %10.3f  %s\n",
			strings.ToUpper(name), final, st.Mean, st.Trough, st.Peak, units[name])
	}

	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

// Plot draws one series against time.
func Plot(res *run.Result, name string, width, height int) (string, error) {
	data, err := Select(res, name)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no data to plot")
	}
	for _, v := range data {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "", fmt.Errorf("series %s is not finite", name)
		}
	}

	caption := fmt.Sprintf("%s (%s) over %.2f days", strings.ToUpper(name), units[name], res.Time[len(res.Time)-1]+res.Dt)
	return asciigraph.Plot(downsample(data, width),
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	), nil
}

// PlotMany draws several series of one run on shared axes.
func PlotMany(res *run.Result, names []string, width, height int) (string, error) {
	data := make([][]float64, 0, len(names))
	colors := []asciigraph.AnsiColor{asciigraph.Cyan, asciigraph.Yellow, asciigraph.Green, asciigraph.Red, asciigraph.Blue, asciigraph.Magenta}
	for _, name := range names {
		d, err := Select(res, name)
		if err != nil {
			return "", err
		}
		data = append(data, downsample(d, width))
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no series selected")
	}
	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(colors[:min(len(data), len(colors))]...),
		asciigraph.Caption(strings.ToUpper(strings.Join(names, ", "))),
	), nil
}

// downsample keeps at most n evenly spaced points.
func downsample(data []float64, n int) []float64 {
	if n <= 0 || len(data) <= n {
		return data
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = data[i*(len(data)-1)/(n-1)]
	}
	return out
}

// Table lays out rows with lipgloss-aligned columns.
func Table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = style.Width(widths[i]).Render(c)
		}
		return strings.Join(parts, "  ")
	}

	var b strings.Builder
	b.WriteString(line(header, Label))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(line(row, lipgloss.NewStyle()))
	}
	return b.String()
}
