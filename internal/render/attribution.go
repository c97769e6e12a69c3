package render

import (
	"fmt"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

const (
	attributionWidth  = 900
	attributionHeight = 260
)

// BarTrace is the stacked-bar trace of an AttributionFigure.
type BarTrace struct {
	Type        string    `json:"type"`
	Orientation string    `json:"orientation"`
	X           []float64 `json:"x"`
	Y           []string  `json:"y"`
	Name        []string  `json:"name"`
}

// AttributionLayout is the layout block of an AttributionFigure.
type AttributionLayout struct {
	Title string `json:"title"`
}

// AttributionFigure is the JSON form of the attribution chart.
type AttributionFigure struct {
	Data   []BarTrace        `json:"data"`
	Layout AttributionLayout `json:"layout"`
}

// NewAttributionFigure builds the figure for an attribution breakdown.
func NewAttributionFigure(a models.AttributionResponse) AttributionFigure {
	start := time.Now()
	pct := make([]float64, 0, len(a.Breakdown))
	names := make([]string, 0, len(a.Breakdown))
	for _, b := range a.Breakdown {
		pct = append(pct, b.ContributionPercent)
		names = append(names, b.Source)
	}
	fig := AttributionFigure{
		Data: []BarTrace{{
			Type:        "bar",
			Orientation: "h",
			X:           pct,
			Y:           []string{a.Pollutant},
			Name:        names,
		}},
		Layout: AttributionLayout{Title: "Attribution — " + a.Pollutant},
	}
	observe(ChartAttribution, "json", start, nil)
	return fig
}

// attributionPNGTitle differs from the JSON figure's "Attribution — " title.
func attributionPNGTitle(pollutant string) string {
	return "Source Attribution — " + pollutant
}

// AttributionPNG draws the breakdown as one horizontal bar stacked by source and writes it to w.
func AttributionPNG(w io.Writer, a models.AttributionResponse) (err error) {
	start := time.Now()
	defer func() { observe(ChartAttribution, "png", start, err) }()

	if len(a.Breakdown) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = attributionPNGTitle(a.Pollutant)
	p.X.Label.Text = "contribution (%)"
	p.X.Min, p.X.Max = 0, 100
	p.NominalY(a.Pollutant)
	p.Legend.Top = true
	p.Legend.Left = false

	var prev *plotter.BarChart
	for i, b := range a.Breakdown {
		bar, err := plotter.NewBarChart(plotter.Values{b.ContributionPercent}, vg.Points(60))
		if err != nil {
			return fmt.Errorf("attribution bar %s: %w", b.Source, err)
		}
		bar.Horizontal = true
		bar.LineStyle.Width = 0
		bar.Color = plotutil.Color(i)
		if prev != nil {
			bar.StackOn(prev)
		}
		p.Add(bar)
		p.Legend.Add(fmt.Sprintf("%s %.1f%%", b.Source, b.ContributionPercent), bar)
		prev = bar
	}

	return writePNG(w, p, attributionWidth, attributionHeight)
}
