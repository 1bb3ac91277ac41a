package report

import (
	"fmt"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Plot dimensions.
const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// WritePNG draws distance against seconds since the first alert, one
// scatter series per level.
func WritePNG(w io.Writer, s Series, title string) error {
	if s.Len() == 0 {
		return ErrNoAlerts
	}
	first, last := s.Span()

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = fmt.Sprintf("Seconds since %s", first.Format("2006-01-02 15:04:05"))
	p.Y.Label.Text = "Distance (m)"
	p.Y.Min = 0
	p.X.Min = 0
	p.X.Max = last.Sub(first).Seconds() + 1
	p.Add(plotter.NewGrid())

	for _, level := range levelOrder {
		pts := s[level]
		if len(pts) == 0 {
			continue
		}
		xys := make(plotter.XYs, 0, len(pts))
		for _, pt := range pts {
			xys = append(xys, plotter.XY{X: pt.Time.Sub(first).Seconds(), Y: pt.Distance})
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = levelColors[level]
		sc.GlyphStyle.Radius = vg.Points(3)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(level.String(), sc)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create plot writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes the PNG chart to path.
func SavePNG(path string, s Series, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	if err := WritePNG(f, s, title); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
