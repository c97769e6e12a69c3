package render

import (
	"fmt"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

const (
	timeseriesWidth  = 900
	timeseriesHeight = 360
)

// Trace is one series of a figure.
type Trace struct {
	X    []string  `json:"x"`
	Y    []float64 `json:"y"`
	Type string    `json:"type"`
	Mode string    `json:"mode"`
	Name string    `json:"name"`
}

// AxisTitle labels a figure axis.
type AxisTitle struct {
	Title string `json:"title"`
}

// TimeseriesLayout is the layout block of a TimeseriesFigure.
type TimeseriesLayout struct {
	Title string    `json:"title"`
	XAxis AxisTitle `json:"xaxis"`
	YAxis AxisTitle `json:"yaxis"`
}

// TimeseriesFigure is the JSON form of the timeseries chart.
type TimeseriesFigure struct {
	Data   []Trace          `json:"data"`
	Layout TimeseriesLayout `json:"layout"`
}

// NewTimeseriesFigure builds the figure for one pollutant's series in a region.
func NewTimeseriesFigure(region, pollutant string, series []models.TimeSeriesPoint) TimeseriesFigure {
	start := time.Now()
	xs := make([]string, 0, len(series))
	ys := make([]float64, 0, len(series))
	for _, p := range series {
		xs = append(xs, p.Timestamp.UTC().Format(time.RFC3339))
		ys = append(ys, p.Value)
	}
	fig := TimeseriesFigure{
		Data: []Trace{{X: xs, Y: ys, Type: "scatter", Mode: "lines+markers", Name: pollutant}},
		Layout: TimeseriesLayout{
			Title: fmt.Sprintf("%s Time Series (%s)", pollutant, region),
			XAxis: AxisTitle{Title: "Time"},
			YAxis: AxisTitle{Title: ConcentrationUnits},
		},
	}
	observe(ChartTimeseries, "json", start, nil)
	return fig
}

// TimeseriesPNG draws a line-and-marker chart of series and writes it to w as a 900x360 PNG.
func TimeseriesPNG(w io.Writer, region, pollutant string, series []models.TimeSeriesPoint) (err error) {
	start := time.Now()
	defer func() { observe(ChartTimeseries, "png", start, err) }()

	if len(series) == 0 {
		return ErrNoData
	}
	xys := make(plotter.XYs, len(series))
	for i, p := range series {
		xys[i].X = float64(p.Timestamp.Unix())
		xys[i].Y = p.Value
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s timeseries — %s", pollutant, region)
	p.X.Label.Text = "time"
	p.Y.Label.Text = ConcentrationUnits
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02\n15:04"}

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	p.Add(grid)

	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("timeseries plot: %w", err)
	}
	points.Radius = vg.Points(2.5)
	p.Add(line, points)

	return writePNG(w, p, timeseriesWidth, timeseriesHeight)
}
