package html

import (
	"fmt"
	"strings"

	"github.com/user/estatebot/internal/view"
)

const (
	chartWidth   = 640
	chartHeight  = 250
	chartPadding = 40
)

// svgChart is a view.Chart laid out in SVG coordinates.
type svgChart struct {
	Title  string
	Width  int
	Height int
	Lines  []svgLine
	Ticks  []svgTick
	YMin   string
	YMax   string
}

type svgLine struct {
	Key    string
	Color  string
	Points string
}

type svgTick struct {
	X, Y  float64
	Label string
}

func newSVGChart(c *view.Chart) *svgChart {
	if c == nil {
		return nil
	}
	out := &svgChart{Title: c.Title, Width: chartWidth, Height: chartHeight}

	plotW := float64(chartWidth - 2*chartPadding)
	plotH := float64(chartHeight - 2*chartPadding)

	xAt := func(i int) float64 {
		if len(c.XTicks) < 2 {
			return chartPadding + plotW/2
		}
		return chartPadding + plotW*float64(i)/float64(len(c.XTicks)-1)
	}
	for i, label := range c.XTicks {
		out.Ticks = append(out.Ticks, svgTick{X: xAt(i), Y: chartHeight - chartPadding/2, Label: label})
	}

	lo, hi, ok := c.Range()
	if !ok {
		for _, s := range c.Series {
			out.Lines = append(out.Lines, svgLine{Key: s.Key, Color: s.Color})
		}
		return out
	}
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	out.YMin = fmt.Sprintf("%.0f", lo)
	out.YMax = fmt.Sprintf("%.0f", hi)

	yAt := func(v float64) float64 {
		return chartPadding + plotH*(1-(v-lo)/(hi-lo))
	}
	for _, s := range c.Series {
		var pts []string
		for i, p := range s.Values {
			if !p.OK {
				continue
			}
			pts = append(pts, fmt.Sprintf("%.1f,%.1f", xAt(i), yAt(p.Y)))
		}
		out.Lines = append(out.Lines, svgLine{Key: s.Key, Color: s.Color, Points: strings.Join(pts, " ")})
	}
	return out
}
