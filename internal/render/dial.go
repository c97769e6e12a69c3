package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/kjstillabower/air-quality-service/internal/mockdata"
	"github.com/kjstillabower/air-quality-service/internal/models"
)

const (
	dialWidth  = 480
	dialHeight = 300
	dialMax    = 100.0
	arcSteps   = 48
)

// DialThresholds are the upper bounds of the Low, Moderate and High zones.
type DialThresholds struct {
	Low  float64 `json:"low"`
	Med  float64 `json:"med"`
	High float64 `json:"high"`
}

// RiskDialConfig is the JSON form of the risk gauge.
type RiskDialConfig struct {
	Value      float64        `json:"value"`
	Label      string         `json:"label"`
	Thresholds DialThresholds `json:"thresholds"`
	Units      string         `json:"units"`
}

// TopRisk returns the highest-scoring entry of a summary.
func TopRisk(summary models.RiskSummaryResponse) (models.RiskScore, error) {
	if len(summary.RiskScores) == 0 {
		return models.RiskScore{}, ErrNoData
	}
	top := summary.RiskScores[0]
	for _, s := range summary.RiskScores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}
	return top, nil
}

// NewRiskDialConfig describes a gauge pointing at the summary's top pollutant score.
func NewRiskDialConfig(summary models.RiskSummaryResponse) (RiskDialConfig, error) {
	start := time.Now()
	top, err := TopRisk(summary)
	observe(ChartRiskDial, "json", start, err)
	if err != nil {
		return RiskDialConfig{}, err
	}
	return RiskDialConfig{
		Value: top.Score,
		Label: fmt.Sprintf("%s risk (%s)", top.Pollutant, top.Category),
		Thresholds: DialThresholds{
			Low:  mockdata.RiskLowMax,
			Med:  mockdata.RiskModerateMax,
			High: dialMax,
		},
		Units: "score",
	}, nil
}

func riskDialTitle(region string) string {
	return "Risk (top) — " + region
}

// RiskDialPNG draws a semicircular gauge for the summary's top score and writes it to w.
func RiskDialPNG(w io.Writer, summary models.RiskSummaryResponse) (err error) {
	start := time.Now()
	defer func() { observe(ChartRiskDial, "png", start, err) }()

	top, err := TopRisk(summary)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = riskDialTitle(summary.Region)
	p.HideAxes()
	p.X.Min, p.X.Max = -1.2, 1.2
	p.Y.Min, p.Y.Max = -0.25, 1.15
	p.Add(&gauge{value: top.Score})

	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: 0, Y: -0.2}},
		Labels: []string{fmt.Sprintf("%.1f  %s", top.Score, top.Category)},
	})
	if err != nil {
		return fmt.Errorf("risk dial label: %w", err)
	}
	labels.TextStyle[0].XAlign = text.XCenter
	p.Add(labels)

	return writePNG(w, p, dialWidth, dialHeight)
}

type zone struct {
	from, to float64
	color    color.Color
}

var dialZones = []zone{
	{0, mockdata.RiskLowMax, color.RGBA{R: 76, G: 175, B: 80, A: 255}},
	{mockdata.RiskLowMax, mockdata.RiskModerateMax, color.RGBA{R: 255, G: 193, B: 7, A: 255}},
	{mockdata.RiskModerateMax, dialMax, color.RGBA{R: 244, G: 67, B: 54, A: 255}},
}

// gauge is a plot.Plotter drawing the dial zones and needle in data space,
// where the dial is the upper half of the unit annulus.
type gauge struct {
	value float64
}

func (g *gauge) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	pt := func(score, radius float64) vg.Point {
		theta := math.Pi * (1 - score/dialMax)
		return vg.Point{X: trX(radius * math.Cos(theta)), Y: trY(radius * math.Sin(theta))}
	}

	for _, z := range dialZones {
		poly := make([]vg.Point, 0, 2*(arcSteps+1))
		for i := 0; i <= arcSteps; i++ {
			poly = append(poly, pt(z.from+(z.to-z.from)*float64(i)/arcSteps, 1))
		}
		for i := arcSteps; i >= 0; i-- {
			poly = append(poly, pt(z.from+(z.to-z.from)*float64(i)/arcSteps, 0.6))
		}
		c.FillPolygon(z.color, poly)
	}

	v := math.Max(0, math.Min(dialMax, g.value))
	needle := draw.LineStyle{Color: color.Black, Width: vg.Points(3)}
	c.StrokeLine2(needle, trX(0), trY(0), pt(v, 0.9).X, pt(v, 0.9).Y)
	c.FillPolygon(color.Black, circle(vg.Point{X: trX(0), Y: trY(0)}, vg.Points(6)))
}

func circle(center vg.Point, r vg.Length) []vg.Point {
	out := make([]vg.Point, 0, arcSteps)
	for i := 0; i < arcSteps; i++ {
		a := 2 * math.Pi * float64(i) / arcSteps
		out = append(out, vg.Point{X: center.X + r*vg.Length(math.Cos(a)), Y: center.Y + r*vg.Length(math.Sin(a))})
	}
	return out
}
