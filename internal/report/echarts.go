package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders an interactive scatter chart of distance over time.
func WriteHTML(w io.Writer, s Series, title string) error {
	first, last := s.Span()
	subtitle := fmt.Sprintf("alerts=%d", s.Len())
	if !first.IsZero() {
		subtitle += fmt.Sprintf(" from %s to %s", first.Format(time.RFC3339), last.Format(time.RFC3339))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time", Name: "Time", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Name: "Distance (m)", NameLocation: "middle", NameGap: 30}),
	)

	for _, level := range levelOrder {
		pts := s[level]
		data := make([]opts.ScatterData, 0, len(pts))
		for _, pt := range pts {
			ttc := "-"
			if pt.TTC != nil {
				ttc = fmt.Sprintf("%.1f", *pt.TTC)
			}
			data = append(data, opts.ScatterData{
				Name:  fmt.Sprintf("%s ttc=%s", pt.Class, ttc),
				Value: []interface{}{pt.Time.UnixMilli(), pt.Distance},
			})
		}
		scatter.AddSeries(level.String(), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(levelColors[level])}),
		)
	}
	return scatter.Render(w)
}
