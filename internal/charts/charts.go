// Package charts renders trajectory visualisations: an interactive
// ECharts scatter page, a static PNG path plot, and summary statistics
// for the API.
package charts

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/motion.trace/internal/imu"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridis is the colour ramp for the velocity-magnitude visual map.
var viridis = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// RenderScatterHTML writes an interactive scatter chart of the
// trajectory, coloured by velocity magnitude.
func RenderScatterHTML(w io.Writer, points []imu.TrajectoryPoint, title string) error {
	data := make([]opts.ScatterData, 0, len(points))
	maxAbs := 0.0
	maxVel := 0.0
	for _, p := range points {
		if v := math.Abs(p.Position.X); v > maxAbs {
			maxAbs = v
		}
		if v := math.Abs(p.Position.Y); v > maxAbs {
			maxAbs = v
		}
		if p.VelocityMagnitude > maxVel {
			maxVel = p.VelocityMagnitude
		}
		data = append(data, opts.ScatterData{Value: []interface{}{p.Position.X, p.Position.Y, p.VelocityMagnitude}})
	}

	// Padding keeps edge points visible; square ranges keep the path
	// undistorted.
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	if maxVel == 0 {
		maxVel = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Motion Trajectory", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d", len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxVel),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)

	scatter.AddSeries("trajectory", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter.Render(w)
}

// RenderPathPNG writes a static line plot of the trajectory as PNG.
func RenderPathPNG(w io.Writer, points []imu.TrajectoryPoint, title string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	xys := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		xys = append(xys, plotter.XY{X: pt.Position.X, Y: pt.Position.Y})
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("build trajectory line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	img := vgimg.PngCanvas{Canvas: vgimg.New(8*vg.Inch, 8*vg.Inch)}
	p.Draw(draw.New(img))
	if _, err := img.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// Summary aggregates trajectory statistics for the API.
type Summary struct {
	Points             int     `json:"points"`
	DurationSeconds    float64 `json:"duration_seconds"`
	CumulativeDistance float64 `json:"cumulative_distance"`
	MeanVelocity       float64 `json:"mean_velocity"`
	StdDevVelocity     float64 `json:"stddev_velocity"`
	MaxVelocity        float64 `json:"max_velocity"`
	MaxDisplacement    float64 `json:"max_displacement"`
}

// Summarise computes summary statistics over a trajectory snapshot.
func Summarise(points []imu.TrajectoryPoint) Summary {
	if len(points) == 0 {
		return Summary{}
	}

	vels := make([]float64, len(points))
	maxVel, maxDisp := 0.0, 0.0
	for i, p := range points {
		vels[i] = p.VelocityMagnitude
		if p.VelocityMagnitude > maxVel {
			maxVel = p.VelocityMagnitude
		}
		if d := p.Position.Norm(); d > maxDisp {
			maxDisp = d
		}
	}

	mean, std := stat.MeanStdDev(vels, nil)
	if math.IsNaN(std) { // single point
		std = 0
	}

	return Summary{
		Points:             len(points),
		DurationSeconds:    points[len(points)-1].Timestamp - points[0].Timestamp,
		CumulativeDistance: points[len(points)-1].CumulativeDistance,
		MeanVelocity:       mean,
		StdDevVelocity:     std,
		MaxVelocity:        maxVel,
		MaxDisplacement:    maxDisp,
	}
}
