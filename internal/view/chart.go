// Package view derives presentation-neutral view-models from bot messages.
// Renderers for every surface draw from these, so formatting rules live in
// one place.
package view

import (
	"slices"

	"github.com/user/estatebot/pkg/analytics"
)

// ChartTitle is shown above every chart.
const ChartTitle = "Price Trends"

// Palette is cycled through by series index.
var Palette = []string{"#8884d8", "#82ca9d", "#ffc658"}

// Series is one line of the chart.
type Series struct {
	Key    string
	Color  string
	Values []Point
}

// Point is a single (x, y) pair. OK is false when the record carried no
// numeric value for the series.
type Point struct {
	X  string
	Y  float64
	OK bool
}

// Chart is a line chart over the chart records.
type Chart struct {
	Title  string
	XKey   string
	XTicks []string
	Series []Series
}

// BuildChart returns nil when there is nothing to plot. Series keys come
// from the first record, in the order the service sent them, minus the
// x-axis key.
func BuildChart(records []analytics.Record) *Chart {
	if len(records) == 0 {
		return nil
	}

	keys := slices.DeleteFunc(records[0].Keys(), func(k string) bool {
		return k == analytics.KeyYear
	})

	chart := &Chart{
		Title:  ChartTitle,
		XKey:   analytics.KeyYear,
		XTicks: make([]string, len(records)),
		Series: make([]Series, len(keys)),
	}
	for i, rec := range records {
		chart.XTicks[i] = rec.Text(analytics.KeyYear)
	}
	for i, key := range keys {
		s := Series{
			Key:    key,
			Color:  Palette[i%len(Palette)],
			Values: make([]Point, len(records)),
		}
		for j, rec := range records {
			y, ok := rec.Float(key)
			s.Values[j] = Point{X: chart.XTicks[j], Y: y, OK: ok}
		}
		chart.Series[i] = s
	}
	return chart
}

// Range returns the smallest and largest plotted value across all series.
// ok is false when no point has a value.
func (c *Chart) Range() (lo, hi float64, ok bool) {
	for _, s := range c.Series {
		for _, p := range s.Values {
			if !p.OK {
				continue
			}
			if !ok {
				lo, hi, ok = p.Y, p.Y, true
				continue
			}
			lo = min(lo, p.Y)
			hi = max(hi, p.Y)
		}
	}
	return lo, hi, ok
}
