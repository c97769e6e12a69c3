// Package render draws the dashboard charts as PNG images and as JSON figure
// descriptions that a browser-side plotting library can draw itself.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/kjstillabower/air-quality-service/internal/observability"
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("no data to render")

// Chart names, used in metric labels.
const (
	ChartTimeseries  = "timeseries"
	ChartRiskDial    = "risk_dial"
	ChartAttribution = "attribution"
)

// ConcentrationUnits is the y-axis label of concentration charts.
const ConcentrationUnits = "µg/m³"

var gridColor = color.Gray{Y: 225}

// writePNG draws p onto a width x height pixel canvas and encodes it as PNG.
func writePNG(w io.Writer, p *plot.Plot, width, height int) error {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(width), vg.Length(height)),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(color.White),
	)
	p.Draw(draw.New(c))
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// observe records render duration and, on failure, the error counter.
func observe(chart, format string, start time.Time, err error) {
	observability.RenderDurationSeconds.WithLabelValues(chart, format).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RenderErrorsTotal.WithLabelValues(chart).Inc()
	}
}
