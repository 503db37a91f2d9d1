package report

import (
	"html/template"
	"io"
	"math"
	"strconv"

	"hitsflat/internal/driver"
)

// box is a vertical box plot laid out in SVG user units.
type box struct {
	Width, Height float64
	Left, Right   float64 // box edges
	Center        float64
	Q1, Q3, Med   float64 // y positions
	Low, High     float64 // whisker ends
	CapLeft       float64
	CapRight      float64
	Fliers        []float64
	Ticks         []tick
	AxisX         float64
	Top, Bottom   float64
}

type tick struct {
	Y     float64
	Label string
}

func layoutBox(s HitStats) box {
	const (
		width, height = 480.0, 360.0
		top, bottom   = 20.0, 330.0
		axisX         = 60.0
		boxW          = 160.0
	)
	b := box{
		Width: width, Height: height,
		Top: top, Bottom: bottom, AxisX: axisX,
		Center: axisX + (width-axisX)/2,
	}
	b.Left, b.Right = b.Center-boxW/2, b.Center+boxW/2
	b.CapLeft, b.CapRight = b.Center-boxW/4, b.Center+boxW/4

	lo, hi := float64(s.Min), float64(s.Max)
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	y := func(v float64) float64 { return bottom - (v-lo)/(hi-lo)*(bottom-top) }

	b.Q1, b.Q3, b.Med = y(s.Q1), y(s.Q3), y(s.Median)
	b.Low, b.High = y(float64(s.WhiskerLow)), y(float64(s.WhiskerHigh))
	for _, f := range s.Fliers {
		b.Fliers = append(b.Fliers, y(float64(f)))
	}
	const ticks = 5
	for i := 0; i <= ticks; i++ {
		v := lo + (hi-lo)*float64(i)/ticks
		prec := 1
		if v == math.Trunc(v) {
			prec = 0
		}
		b.Ticks = append(b.Ticks, tick{Y: y(v), Label: strconv.FormatFloat(v, 'f', prec, 64)})
	}
	return b
}

type hitsPage struct {
	Sum      *driver.Summary
	Stats    HitStats
	Box      box
	Outliers []driver.Outlier
	Elapsed  string
}

var hitsTmpl = template.Must(template.New("hits").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Hits distribution</title>
<style>
  body { font-family: Arial, sans-serif; margin: 20px; }
  h1, h2 { color: #2c3e50; }
  .container { max-width: 900px; margin: 0 auto; }
  .stats { display: flex; flex-wrap: wrap; margin: 20px 0; }
  .stat-box { background: #f8f9fa; border-radius: 5px; padding: 15px; margin: 10px; flex: 1; min-width: 150px; }
  .stat-value { font-size: 24px; font-weight: bold; color: #2980b9; }
  .stat-label { font-size: 14px; color: #7f8c8d; }
  table { width: 100%; border-collapse: collapse; margin: 20px 0; }
  th, td { padding: 12px 15px; text-align: left; border-bottom: 1px solid #ddd; }
  th { background-color: #f8f9fa; }
  tr:hover { background-color: #f5f5f5; }
</style>
</head>
<body>
<div class="container">
  <h1>Hits per row</h1>
  <p>Run {{.Sum.RunID}} on {{.Sum.Input}}, {{.Stats.Rows}} rows with hits, finished in {{.Elapsed}}.</p>

  <svg width="{{.Box.Width}}" height="{{.Box.Height}}" viewBox="0 0 {{.Box.Width}} {{.Box.Height}}" xmlns="http://www.w3.org/2000/svg">
    <line x1="{{.Box.AxisX}}" y1="{{.Box.Top}}" x2="{{.Box.AxisX}}" y2="{{.Box.Bottom}}" stroke="#333"/>
    {{- range .Box.Ticks}}
    <line x1="{{$.Box.AxisX}}" y1="{{printf "%.2f" .Y}}" x2="{{$.Box.Width}}" y2="{{printf "%.2f" .Y}}" stroke="#ddd" stroke-dasharray="4 4"/>
    <text x="{{$.Box.AxisX}}" y="{{printf "%.2f" .Y}}" dx="-6" dy="4" text-anchor="end" font-size="11">{{.Label}}</text>
    {{- end}}
    <line x1="{{.Box.Center}}" y1="{{printf "%.2f" .Box.High}}" x2="{{.Box.Center}}" y2="{{printf "%.2f" .Box.Q3}}" stroke="#333"/>
    <line x1="{{.Box.Center}}" y1="{{printf "%.2f" .Box.Q1}}" x2="{{.Box.Center}}" y2="{{printf "%.2f" .Box.Low}}" stroke="#333"/>
    <line x1="{{.Box.CapLeft}}" y1="{{printf "%.2f" .Box.High}}" x2="{{.Box.CapRight}}" y2="{{printf "%.2f" .Box.High}}" stroke="#333"/>
    <line x1="{{.Box.CapLeft}}" y1="{{printf "%.2f" .Box.Low}}" x2="{{.Box.CapRight}}" y2="{{printf "%.2f" .Box.Low}}" stroke="#333"/>
    <polygon points="{{.Box.Left}},{{printf "%.2f" .Box.Q3}} {{.Box.Right}},{{printf "%.2f" .Box.Q3}} {{.Box.Right}},{{printf "%.2f" .Box.Q1}} {{.Box.Left}},{{printf "%.2f" .Box.Q1}}" fill="#5dade2" stroke="#333"/>
    <line x1="{{.Box.Left}}" y1="{{printf "%.2f" .Box.Med}}" x2="{{.Box.Right}}" y2="{{printf "%.2f" .Box.Med}}" stroke="#333" stroke-width="2"/>
    {{- range .Box.Fliers}}
    <circle cx="{{$.Box.Center}}" cy="{{printf "%.2f" .}}" r="3" fill="none" stroke="#333"/>
    {{- end}}
  </svg>

  <div class="stats">
    <div class="stat-box"><div class="stat-value">{{.Stats.Min}}</div><div class="stat-label">Minimum</div></div>
    <div class="stat-box"><div class="stat-value">{{printf "%.2f" .Stats.Q1}}</div><div class="stat-label">Q1 (25%)</div></div>
    <div class="stat-box"><div class="stat-value">{{printf "%.2f" .Stats.Median}}</div><div class="stat-label">Median</div></div>
    <div class="stat-box"><div class="stat-value">{{printf "%.2f" .Stats.Mean}}</div><div class="stat-label">Mean</div></div>
  </div>
  <div class="stats">
    <div class="stat-box"><div class="stat-value">{{printf "%.2f" .Stats.Q3}}</div><div class="stat-label">Q3 (75%)</div></div>
    <div class="stat-box"><div class="stat-value">{{.Stats.Max}}</div><div class="stat-label">Maximum</div></div>
    <div class="stat-box"><div class="stat-value">{{printf "%.2f" .Stats.Std}}</div><div class="stat-label">Standard deviation</div></div>
    <div class="stat-box"><div class="stat-value">{{len .Outliers}}</div><div class="stat-label">Rows above {{.Sum.Threshold}} hits</div></div>
  </div>

  <h2>Rows with an extreme number of hits</h2>
  <table>
    <thead><tr><th>Row</th><th>Line</th><th>Hits</th></tr></thead>
    <tbody>
    {{- range .Outliers}}
      <tr><td>{{.Row}}</td><td>{{.Line}}</td><td>{{.Hits}}</td></tr>
    {{- end}}
    </tbody>
  </table>
</div>
</body>
</html>
`))

// WriteHitsHTML renders the hits distribution page. It writes nothing and
// returns nil when no row had hits.
func WriteHitsHTML(w io.Writer, sum *driver.Summary) error {
	hs, ok := ComputeHitStats(sum.Stats.HitHistogram)
	if !ok {
		return nil
	}
	return hitsTmpl.Execute(w, hitsPage{
		Sum:      sum,
		Stats:    hs,
		Box:      layoutBox(hs),
		Outliers: SortedOutliers(sum.Stats.Outliers),
		Elapsed:  elapsed(sum.Duration()),
	})
}
