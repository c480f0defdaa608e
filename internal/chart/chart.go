// Package chart renders report data as PNG images with go-chart.
package chart

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Kind selects the chart type.
type Kind string

const (
	Bar   Kind = "bar"
	Line  Kind = "line"
	Pie   Kind = "pie"
	Table Kind = "table"
)

// Image size in pixels.
const (
	Width  = 600
	Height = 400
)

// Data is the input to Render. Bar, line and pie charts read Labels and
// Values pairwise. Tables use Labels as column headers and Rows as cells.
type Data struct {
	Labels []string
	Values []float64
	Rows   [][]string
}

func (d Data) empty(k Kind) bool {
	if k == Table {
		return len(d.Rows) == 0
	}
	return len(d.Values) == 0
}

// Render draws data as kind and returns PNG bytes. Unknown kinds fall back
// to a plain line plot without axis names. Empty data, or a pie whose values
// sum to zero, produces a titled "no data" image.
func Render(kind Kind, title string, data Data) ([]byte, error) {
	if len(data.Labels) < len(data.Values) && kind != Table {
		return nil, fmt.Errorf("chart: %d values but %d labels", len(data.Values), len(data.Labels))
	}
	if data.empty(kind) || (kind == Pie && sum(data.Values) <= 0) {
		return noData(title)
	}

	var buf bytes.Buffer
	var err error
	switch kind {
	case Bar:
		err = bar(&buf, title, data)
	case Line:
		err = line(&buf, title, data, "Count")
	case Pie:
		err = pie(&buf, title, data)
	case Table:
		err = table(&buf, title, data)
	default:
		err = line(&buf, title, data, "")
	}
	if err != nil {
		return nil, fmt.Errorf("chart: render %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

func bar(buf *bytes.Buffer, title string, data Data) error {
	bars := make([]chart.Value, len(data.Values))
	for i, v := range data.Values {
		bars[i] = chart.Value{Label: data.Labels[i], Value: v}
	}
	c := chart.BarChart{
		Title:    title,
		Width:    Width,
		Height:   Height,
		BarWidth: barWidth(len(bars)),
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Name:  "Hours / Count",
			Range: &chart.ContinuousRange{Min: 0, Max: upper(data.Values)},
		},
		Bars: bars,
	}
	return c.Render(chart.PNG, buf)
}

func line(buf *bytes.Buffer, title string, data Data, yName string) error {
	n := len(data.Values)
	xs := make([]float64, n)
	// go-chart derives the x range from the tick extremes, so unlabeled
	// ticks half a step outside the data keep a single point renderable.
	ticks := make([]chart.Tick, 0, n+2)
	ticks = append(ticks, chart.Tick{Value: -0.5})
	for i := range data.Values {
		xs[i] = float64(i)
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: data.Labels[i]})
	}
	ticks = append(ticks, chart.Tick{Value: float64(n) - 0.5})
	lo, hi := bounds(data.Values)
	c := chart.Chart{
		Title:  title,
		Width:  Width,
		Height: Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		XAxis: chart.XAxis{
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: xs,
				YValues: data.Values,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("87ceeb"),
					StrokeWidth: 2,
					DotColor:    drawing.ColorFromHex("87ceeb"),
					DotWidth:    4,
				},
			},
		},
	}
	return c.Render(chart.PNG, buf)
}

func pie(buf *bytes.Buffer, title string, data Data) error {
	total := sum(data.Values)
	vals := make([]chart.Value, 0, len(data.Values))
	for i, v := range data.Values {
		if v <= 0 {
			continue
		}
		vals = append(vals, chart.Value{
			Label: fmt.Sprintf("%s (%.1f%%)", data.Labels[i], v*100/total),
			Value: v,
		})
	}
	c := chart.PieChart{
		Title:  title,
		Width:  Width,
		Height: Height,
		Values: vals,
	}
	return c.Render(chart.PNG, buf)
}

func barWidth(n int) int {
	w := (Width - 120) / (n*2 + 1)
	if w > 80 {
		return 80
	}
	if w < 4 {
		return 4
	}
	return w
}

func sum(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s
}

// upper returns the y-axis maximum for bars starting at zero. go-chart
// rejects a zero-height range, so an all-zero series still gets 1.
func upper(vs []float64) float64 {
	_, hi := bounds(vs)
	if hi <= 0 {
		return 1
	}
	return hi
}

// bounds returns a padded [lo, hi] range covering vs and zero.
func bounds(vs []float64) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return lo, lo + 1
	}
	pad := (hi - lo) * 0.1
	if lo < 0 {
		lo -= pad
	}
	return lo, hi + pad
}
