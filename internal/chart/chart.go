// Package chart renders simple line charts to raster images.
package chart

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"gonum.org/v1/gonum/floats"
)

const (
	dpi            = 96.0
	fontSize       = 10.0
	tickMarkLength = 5
	pixelsPerLabel = 120.0

	defaultWidth  = 1200
	defaultHeight = 600

	defaultTopBorder    = 40
	defaultLeftBorder   = 90
	defaultBottomBorder = 50
	defaultRightBorder  = 40
)

// ErrNoData is returned when none of the series has a finite point.
var ErrNoData = errors.New("no data to plot")

var (
	gridColor  = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	traceColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
)

// Borders defines the white space around the plot area in pixels.
type Borders struct {
	Top    int // Title
	Left   int // Y scale
	Bottom int // X scale and label
	Right  int
}

// Axis describes an axis caption and how its tick values are printed.
type Axis struct {
	Label  string
	Format func(float64) string
}

// Config holds the chart layout. Zero values are replaced by defaults.
type Config struct {
	Width    int // Full image width including borders
	Height   int // Full image height including borders
	Title    string
	X        Axis
	Y        Axis
	FontSize float64
	Borders  Borders
}

// Series is a single trace. When X is nil the sample index is used.
type Series struct {
	X     []float64
	Y     []float64
	Color color.Color
}

func (s *Series) point(k int) (float64, float64) {
	if s.X == nil {
		return float64(k), s.Y[k]
	}
	return s.X[k], s.Y[k]
}

func (s *Series) len() int {
	if s.X == nil {
		return len(s.Y)
	}
	return min(len(s.X), len(s.Y))
}

// Renderer draws line charts.
type Renderer struct {
	config Config
	font   *truetype.Font
}

// NewRenderer creates a renderer with the given configuration.
func NewRenderer(config Config) (*Renderer, error) {
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}
	if config.X.Format == nil {
		config.X.Format = FormatPlain
	}
	if config.Y.Format == nil {
		config.Y.Format = FormatPlain
	}

	if config.Width <= config.Borders.Left+config.Borders.Right ||
		config.Height <= config.Borders.Top+config.Borders.Bottom {
		return nil, fmt.Errorf("image %dx%d is too small for the borders", config.Width, config.Height)
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &Renderer{config: config, font: parsedFont}, nil
}

// Render draws the series into a new image.
func (r *Renderer) Render(series ...Series) (*image.RGBA, error) {
	xr, yr, err := dataRange(series)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(
		r.config.Borders.Left,
		r.config.Borders.Top,
		r.config.Width-r.config.Borders.Right,
		r.config.Height-r.config.Borders.Bottom,
	)
	p := plot{area: area, x: xr, y: yr}

	ann := newAnnotator(r.font, r.config)
	defer ann.Close()

	if err = ann.annotate(img, p); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	for i := range series {
		c := series[i].Color
		if c == nil {
			c = traceColor
		}
		p.drawSeries(img, &series[i], c)
	}
	drawFrame(img, area, color.Black)

	return img, nil
}

type valueRange struct {
	min, max float64
}

func (v valueRange) span() float64 {
	return v.max - v.min
}

// dataRange returns the extent of all finite points, padded when flat.
func dataRange(series []Series) (x, y valueRange, err error) {
	var xs, ys []float64
	for i := range series {
		s := &series[i]
		for k := 0; k < s.len(); k++ {
			px, py := s.point(k)
			if isFinite(px) && isFinite(py) {
				xs = append(xs, px)
				ys = append(ys, py)
			}
		}
	}
	if len(xs) == 0 {
		return x, y, ErrNoData
	}

	x = pad(valueRange{floats.Min(xs), floats.Max(xs)})
	y = pad(valueRange{floats.Min(ys), floats.Max(ys)})
	return x, y, nil
}

func pad(v valueRange) valueRange {
	if v.span() > 0 {
		return v
	}
	d := math.Abs(v.min) * 0.1
	if d == 0 {
		d = 1
	}
	return valueRange{v.min - d, v.max + d}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// plot maps data coordinates to pixels inside area.
type plot struct {
	area image.Rectangle
	x, y valueRange
}

func (p plot) px(x float64) int {
	ratio := (x - p.x.min) / p.x.span()
	return p.area.Min.X + int(math.Round(ratio*float64(p.area.Dx()-1)))
}

func (p plot) py(y float64) int {
	ratio := (y - p.y.min) / p.y.span()
	return p.area.Max.Y - 1 - int(math.Round(ratio*float64(p.area.Dy()-1)))
}

func (p plot) drawSeries(img *image.RGBA, s *Series, c color.Color) {
	var prev image.Point
	connected := false

	for k := 0; k < s.len(); k++ {
		x, y := s.point(k)
		if !isFinite(x) || !isFinite(y) {
			connected = false
			continue
		}

		pt := image.Pt(p.px(x), p.py(y))
		if connected {
			drawLine(img, p.area, prev, pt, c)
		} else {
			setIn(img, p.area, pt.X, pt.Y, c)
		}
		prev, connected = pt, true
	}
}

// drawLine draws a Bresenham line clipped to area.
func drawLine(img *image.RGBA, area image.Rectangle, from, to image.Point, c color.Color) {
	dx := abs(to.X - from.X)
	dy := -abs(to.Y - from.Y)
	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}

	x, y := from.X, from.Y
	e := dx + dy
	for {
		setIn(img, area, x, y, c)
		if x == to.X && y == to.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func drawFrame(img *image.RGBA, area image.Rectangle, c color.Color) {
	for x := area.Min.X - 1; x <= area.Max.X; x++ {
		img.Set(x, area.Min.Y-1, c)
		img.Set(x, area.Max.Y, c)
	}
	for y := area.Min.Y - 1; y <= area.Max.Y; y++ {
		img.Set(area.Min.X-1, y, c)
		img.Set(area.Max.X, y, c)
	}
}

func setIn(img *image.RGBA, area image.Rectangle, x, y int, c color.Color) {
	if image.Pt(x, y).In(area) {
		img.Set(x, y, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// annotator draws the title, grid, tick labels and axis captions.
type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	config   Config
}

func newAnnotator(f *truetype.Font, config Config) *annotator {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(f)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(f, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, p plot) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawXScale(img, p); err != nil {
		return fmt.Errorf("drawing X scale: %w", err)
	}
	if err := a.drawYScale(img, p); err != nil {
		return fmt.Errorf("drawing Y scale: %w", err)
	}
	if err := a.drawCaptions(img, p); err != nil {
		return fmt.Errorf("drawing captions: %w", err)
	}
	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawXScale(img *image.RGBA, p plot) error {
	step := niceStep(p.x.span(), p.area.Dx())
	textY := p.area.Max.Y + tickMarkLength + a.fontHeight()

	for _, v := range ticks(p.x, step) {
		x := p.px(v)

		for y := p.area.Min.Y; y < p.area.Max.Y; y++ {
			img.Set(x, y, gridColor)
		}
		for y := p.area.Max.Y; y < p.area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := a.config.X.Format(v)
		width := font.MeasureString(a.fontFace, label).Round()
		if _, err := a.context.DrawString(label, freetype.Pt(x-width/2, textY)); err != nil {
			return fmt.Errorf("drawing label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawYScale(img *image.RGBA, p plot) error {
	step := niceStep(p.y.span(), p.area.Dy())
	metrics := a.fontFace.Metrics()

	for _, v := range ticks(p.y, step) {
		y := p.py(v)

		for x := p.area.Min.X; x < p.area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
		for x := p.area.Min.X - tickMarkLength; x < p.area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := a.config.Y.Format(v)
		width := font.MeasureString(a.fontFace, label).Round()
		textY := y + a.fontHeight()/2 - metrics.Descent.Round()
		pt := freetype.Pt(p.area.Min.X-tickMarkLength-3-width, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawCaptions(img *image.RGBA, p plot) error {
	fh := a.fontHeight()

	if a.config.Title != "" {
		width := font.MeasureString(a.fontFace, a.config.Title).Round()
		pt := freetype.Pt(p.area.Min.X+(p.area.Dx()-width)/2, (a.config.Borders.Top+fh)/2)
		if _, err := a.context.DrawString(a.config.Title, pt); err != nil {
			return err
		}
	}

	// Y caption sits above the scale, text is not rotated
	if a.config.Y.Label != "" {
		pt := freetype.Pt(3, p.area.Min.Y-fh/2)
		if _, err := a.context.DrawString(a.config.Y.Label, pt); err != nil {
			return err
		}
	}

	if a.config.X.Label != "" {
		width := font.MeasureString(a.fontFace, a.config.X.Label).Round()
		pt := freetype.Pt(p.area.Min.X+(p.area.Dx()-width)/2, img.Bounds().Max.Y-fh/3)
		if _, err := a.context.DrawString(a.config.X.Label, pt); err != nil {
			return err
		}
	}
	return nil
}

// niceStep picks a 1-2-5 tick interval giving roughly one label per pixelsPerLabel.
func niceStep(span float64, pixels int) float64 {
	desired := math.Max(1, float64(pixels)/pixelsPerLabel)
	rough := span / desired

	magnitude := math.Pow(10, math.Floor(math.Log10(rough)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*magnitude >= rough {
			return m * magnitude
		}
	}
	return 10 * magnitude
}

func ticks(v valueRange, step float64) []float64 {
	var out []float64
	for t := math.Ceil(v.min/step) * step; t <= v.max+step*1e-9; t += step {
		out = append(out, t)
	}
	return out
}
