package chart

import (
	"bytes"

	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	rowHeight    = 32
	titleHeight  = 48
	fontSize     = 10.0
	titleSize    = 13.0
	cellPadding  = 8
	tableMarginX = 20
)

var (
	gridColor   = drawing.ColorFromHex("999999")
	headerColor = drawing.ColorFromHex("e8eef7")
)

// canvas is a white PNG renderer with the default font loaded.
type canvas struct {
	r    chart.Renderer
	font *truetype.Font
}

func newCanvas(w, h int) (*canvas, error) {
	r, err := chart.PNG(w, h)
	if err != nil {
		return nil, err
	}
	f, err := chart.GetDefaultFont()
	if err != nil {
		return nil, err
	}
	c := &canvas{r: r, font: f}
	c.rect(0, 0, w, h, drawing.ColorWhite, drawing.ColorWhite)
	return c, nil
}

func (c *canvas) rect(x0, y0, x1, y1 int, fill, stroke drawing.Color) {
	c.r.SetFillColor(fill)
	c.r.SetStrokeColor(stroke)
	c.r.SetStrokeWidth(1)
	c.r.MoveTo(x0, y0)
	c.r.LineTo(x1, y0)
	c.r.LineTo(x1, y1)
	c.r.LineTo(x0, y1)
	c.r.LineTo(x0, y0)
	c.r.Close()
	c.r.FillStroke()
}

// centered draws s centred horizontally in [x0, x1] on baseline y.
func (c *canvas) centered(s string, x0, x1, y int, size float64) {
	c.r.SetFont(c.font)
	c.r.SetFontSize(size)
	c.r.SetFontColor(drawing.ColorBlack)
	box := c.r.MeasureText(s)
	c.r.Text(s, x0+(x1-x0-box.Width())/2, y)
}

func (c *canvas) save(buf *bytes.Buffer) error { return c.r.Save(buf) }

// table draws a grid: a header row from data.Labels and one row per
// data.Rows entry. Column width is shared evenly.
func table(buf *bytes.Buffer, title string, data Data) error {
	cols := len(data.Labels)
	for _, row := range data.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		cols = 1
	}
	h := titleHeight + rowHeight*(len(data.Rows)+1) + 2*cellPadding
	if h < Height {
		h = Height
	}
	c, err := newCanvas(Width, h)
	if err != nil {
		return err
	}
	c.centered(title, 0, Width, titleHeight-16, titleSize)

	colW := (Width - 2*tableMarginX) / cols
	top := titleHeight
	cells := append([][]string{data.Labels}, data.Rows...)
	for ri, row := range cells {
		y0 := top + ri*rowHeight
		for ci := 0; ci < cols; ci++ {
			x0 := tableMarginX + ci*colW
			fill := drawing.ColorWhite
			if ri == 0 {
				fill = headerColor
			}
			c.rect(x0, y0, x0+colW, y0+rowHeight, fill, gridColor)
			if ci < len(row) {
				c.centered(fit(c, row[ci], colW-2*cellPadding), x0, x0+colW, y0+rowHeight/2+4, fontSize)
			}
		}
	}
	return c.save(buf)
}

// fit truncates s with "..." until it is at most w pixels wide.
func fit(c *canvas, s string, w int) string {
	c.r.SetFont(c.font)
	c.r.SetFontSize(fontSize)
	if c.r.MeasureText(s).Width() <= w {
		return s
	}
	rs := []rune(s)
	for len(rs) > 0 {
		rs = rs[:len(rs)-1]
		if t := string(rs) + "..."; c.r.MeasureText(t).Width() <= w {
			return t
		}
	}
	return ""
}

// noData renders the title above a "no data" notice.
func noData(title string) ([]byte, error) {
	c, err := newCanvas(Width, Height)
	if err != nil {
		return nil, err
	}
	c.centered(title, 0, Width, titleHeight-16, titleSize)
	c.centered("no data", 0, Width, Height/2, titleSize)
	var buf bytes.Buffer
	if err := c.save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
