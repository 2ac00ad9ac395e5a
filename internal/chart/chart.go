// Package chart renders a two-panel PNG per pair: price with the suggested
// trade levels on top, RSI with its 70/30 band below.
package chart

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/trace"
	"fx-analyst-bot/internal/types"
)

const (
	Overbought = 70.0
	Oversold   = 30.0

	contentType = "image/png"
)

var (
	colorPrice     = color.RGBA{R: 33, G: 33, B: 33, A: 255}
	colorEntry     = color.RGBA{R: 30, G: 100, B: 220, A: 255}
	colorStop      = color.RGBA{R: 210, G: 40, B: 40, A: 255}
	colorTarget    = color.RGBA{R: 30, G: 150, B: 60, A: 255}
	colorRSI       = color.RGBA{R: 120, G: 60, B: 170, A: 255}
	colorWatermark = color.Gray{Y: 160}

	dashed = []vg.Length{vg.Points(6), vg.Points(4)}
	dotted = []vg.Length{vg.Points(1.5), vg.Points(3)}
)

var errNotFinite = errors.New("chart: price and rsi must be finite")

type Options struct {
	Dir        string
	Width      float64 // points
	Height     float64 // points
	PaddingPct float64
	Watermark  string
}

type Renderer struct {
	opts Options
	now  func() time.Time
}

var _ interfaces.ChartRenderer = (*Renderer)(nil)

func New(opts Options) *Renderer {
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	if opts.Width <= 0 {
		opts.Width = 800
	}
	if opts.Height <= 0 {
		opts.Height = 600
	}
	if opts.PaddingPct <= 0 {
		opts.PaddingPct = 1.0
	}
	return &Renderer{opts: opts, now: time.Now}
}

// WithClock replaces the time source used for the title and file name.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

// Render writes the chart to the configured directory. Callers must only pass
// resolved values and must Release the artifact once it has been sent.
func (r *Renderer) Render(ctx context.Context, pair types.Pair, price, rsi float64, setup *types.TradeSetup) (*types.ChartArtifact, error) {
	ctx, span := trace.StartSpan(ctx, "chart.Render")
	defer span.End()

	if !finite(price) || !finite(rsi) {
		return nil, errNotFinite
	}

	at := r.now()
	upper, err := r.pricePlot(pair, price, setup, at)
	if err != nil {
		return nil, fmt.Errorf("price panel: %w", err)
	}
	lower, err := r.rsiPlot(rsi)
	if err != nil {
		return nil, fmt.Errorf("rsi panel: %w", err)
	}

	w, h := vg.Points(r.opts.Width), vg.Points(r.opts.Height)
	img := vgimg.New(w, h)
	dc := draw.New(img)

	// price panel takes two thirds of the height
	lowerH := h / 3
	upper.Draw(draw.Crop(dc, 0, 0, lowerH, 0))
	lower.Draw(draw.Crop(dc, 0, 0, 0, lowerH-h))

	if err := os.MkdirAll(r.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}
	path := filepath.Join(r.opts.Dir, fmt.Sprintf("%s_%d.png", fileSafe(pair.Symbol), at.Unix()))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create chart file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close chart file: %w", err)
	}

	logger.Debug(ctx, "Chart rendered", "pair", pair.Name, "path", path)
	return &types.ChartArtifact{
		Pair:        pair,
		GeneratedAt: at,
		Path:        path,
		ContentType: contentType,
	}, nil
}

func (r *Renderer) pricePlot(pair types.Pair, price float64, setup *types.TradeSetup, at time.Time) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s | %s", pair.Name, at.UTC().Format("2006-01-02 15:04 MST"))
	p.Y.Label.Text = "Price"
	p.HideX()
	p.Legend.Top = true
	p.Legend.Left = true

	markers := make([]float64, 0, 3)
	if err := addLevel(p, fmt.Sprintf("Price %s", fmtLevel(price)), price, colorPrice, nil, 2); err != nil {
		return nil, err
	}
	if setup != nil {
		levels := []struct {
			name   string
			v      *float64
			c      color.Color
			dashes []vg.Length
		}{
			{"Entry", setup.Entry, colorEntry, dashed},
			{"SL", setup.StopLoss, colorStop, dotted},
			{"TP", setup.TakeProfit, colorTarget, dotted},
		}
		for _, l := range levels {
			if l.v == nil || !finite(*l.v) {
				continue
			}
			if err := addLevel(p, fmt.Sprintf("%s %s", l.name, fmtLevel(*l.v)), *l.v, l.c, l.dashes, 1.5); err != nil {
				return nil, err
			}
			markers = append(markers, *l.v)
		}
	}

	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = PriceRange(price, r.opts.PaddingPct, markers...)
	return p, nil
}

func (r *Renderer) rsiPlot(rsi float64) (*plot.Plot, error) {
	p := plot.New()
	p.Y.Label.Text = "RSI"
	p.HideX()
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 100
	p.Y.Tick.Marker = plot.ConstantTicks([]plot.Tick{
		{Value: 0, Label: "0"},
		{Value: Oversold, Label: "30"},
		{Value: 50, Label: "50"},
		{Value: Overbought, Label: "70"},
		{Value: 100, Label: "100"},
	})

	if err := addLevel(p, "", Overbought, colorStop, dashed, 1); err != nil {
		return nil, err
	}
	if err := addLevel(p, "", Oversold, colorTarget, dashed, 1); err != nil {
		return nil, err
	}
	if err := addLevel(p, fmt.Sprintf("RSI %.2f", rsi), rsi, colorRSI, nil, 2.5); err != nil {
		return nil, err
	}

	dot, err := plotter.NewScatter(plotter.XYs{{X: 0.5, Y: rsi}})
	if err != nil {
		return nil, err
	}
	dot.GlyphStyle.Shape = draw.CircleGlyph{}
	dot.GlyphStyle.Radius = vg.Points(5)
	dot.GlyphStyle.Color = colorRSI
	p.Add(dot)

	if r.opts.Watermark != "" {
		wm, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: 1, Y: 0}},
			Labels: []string{r.opts.Watermark},
		})
		if err != nil {
			return nil, err
		}
		wm.TextStyle[0].Color = colorWatermark
		wm.TextStyle[0].XAlign = text.XRight
		wm.TextStyle[0].YAlign = text.YBottom
		wm.Offset = vg.Point{X: -vg.Points(4), Y: vg.Points(4)}
		p.Add(wm)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// addLevel draws a horizontal line across the panel; a non-empty name adds a legend entry.
func addLevel(p *plot.Plot, name string, y float64, c color.Color, dashes []vg.Length, width float64) error {
	l, err := plotter.NewLine(plotter.XYs{{X: 0, Y: y}, {X: 1, Y: y}})
	if err != nil {
		return err
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(width)
	l.LineStyle.Dashes = dashes
	p.Add(l)
	if name != "" {
		p.Legend.Add(name, l)
	}
	return nil
}

// PriceRange pads price by pct percent on both sides and widens the range to
// keep every marker visible with a small margin.
func PriceRange(price, pct float64, markers ...float64) (lo, hi float64) {
	pad := math.Abs(price) * pct / 100
	if pad == 0 {
		pad = pct / 100
	}
	lo, hi = price-pad, price+pad

	widened := false
	for _, m := range markers {
		if m < lo {
			lo, widened = m, true
		}
		if m > hi {
			hi, widened = m, true
		}
	}
	if widened {
		margin := (hi - lo) * 0.05
		lo, hi = lo-margin, hi+margin
	}
	return lo, hi
}

func fmtLevel(v float64) string {
	switch {
	case math.Abs(v) >= 100:
		return fmt.Sprintf("%.2f", v)
	case math.Abs(v) >= 10:
		return fmt.Sprintf("%.3f", v)
	default:
		return fmt.Sprintf("%.5f", v)
	}
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, s)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
