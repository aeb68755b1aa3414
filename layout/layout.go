// Package layout draws the arrival board for a 176x264 monochrome panel.
//
// The frame is laid out top to bottom: a title, a reserved band between two
// rules, up to MaxRows arrival rows, a second band, and a subtitle carrying
// the snapshot time. Row heights depend on the measured text so rows are not
// on a fixed grid.
package layout

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/timschmolka/busboard/prediction"
)

const (
	Width   = 176
	Height  = 264
	MaxRows = 5

	circleRadius = 10
	rowPadding   = 4
	textGap      = 4
	edgeMargin   = 4
	titleMargin  = 2
	bandGap      = 6
	bandMargin   = 4

	feetPerMile = 5280

	DefaultTitle = "Paterson"

	subtitleLayout = "Mon Jan 2 3:04 PM"
)

type Options struct {
	Title    string
	Location *time.Location
}

// Row is the geometry and text of one drawn arrival.
type Row struct {
	Y        int
	Height   int
	Route    string
	Minutes  string
	Distance string
}

// Canvas is a finished frame. Image is white (image1bit.On) wherever nothing
// was drawn.
type Canvas struct {
	Image    *image1bit.VerticalLSB
	Rows     []Row
	Subtitle string
}

type Engine struct {
	fonts Fonts
	title string
	loc   *time.Location
}

func NewEngine(fonts Fonts, opts Options) *Engine {
	e := &Engine{
		fonts: fonts,
		title: opts.Title,
		loc:   opts.Location,
	}
	if e.title == "" {
		e.title = DefaultTitle
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	return e
}

// Render draws the first MaxRows predictions. Later entries are ignored.
func (e *Engine) Render(preds []prediction.Prediction, generatedAt time.Time) *Canvas {
	dc := gg.NewContext(Width, Height)
	dc.SetColor(color.White)
	dc.Clear()

	c := &Canvas{
		Subtitle: e.Subtitle(generatedAt),
	}

	y := e.drawTitle(dc)
	y = drawBand(dc, y+titleMargin)

	if len(preds) > MaxRows {
		preds = preds[:MaxRows]
	}
	for _, p := range preds {
		row := e.drawRow(dc, p, y)
		c.Rows = append(c.Rows, row)
		y = row.Y + row.Height + rowPadding
	}

	y = drawBand(dc, y)
	drawText(dc, e.fonts.Subtitle, c.Subtitle, 0, y)

	c.Image = image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))
	draw.Draw(c.Image, c.Image.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return c
}

// Subtitle formats the snapshot time in the board's time zone.
func (e *Engine) Subtitle(generatedAt time.Time) string {
	return generatedAt.In(e.loc).Format(subtitleLayout)
}

// DistanceLabel renders an upstream distance. Upstream reports buses more
// than about ten miles out as 0, so 0 never means "arriving".
func DistanceLabel(feet int) string {
	switch {
	case feet == 0:
		return ">10 mi"
	case feet < feetPerMile:
		return "<1 mi"
	default:
		return fmt.Sprintf("%.1f mi", float64(feet)/feetPerMile)
	}
}

// drawTitle returns the title's extent from the face's ascent and descent.
func (e *Engine) drawTitle(dc *gg.Context) int {
	m := e.fonts.Title.Metrics()
	drawText(dc, e.fonts.Title, e.title, 0, 0)
	return (m.Ascent + m.Descent).Ceil()
}

func (e *Engine) drawRow(dc *gg.Context, p prediction.Prediction, y int) Row {
	face := e.fonts.Body
	row := Row{
		Y:        y,
		Route:    p.Route,
		Minutes:  fmt.Sprintf("%2s min", p.Minutes),
		Distance: DistanceLabel(p.DistanceFeet),
	}

	cx, cy := float64(circleRadius), float64(y+circleRadius)
	dc.SetColor(color.Black)
	dc.DrawCircle(cx, cy, circleRadius)
	dc.Fill()

	dc.SetFontFace(face)
	dc.SetColor(color.White)
	b, _ := font.BoundString(face, row.Route)
	dc.DrawString(row.Route,
		cx-float64(b.Min.X+b.Max.X)/128,
		cy-float64(b.Min.Y+b.Max.Y)/128)

	baseline := float64(y + face.Metrics().Ascent.Ceil())
	dc.SetColor(color.Black)
	dc.DrawString(row.Minutes, 2*circleRadius+textGap, baseline)
	dc.DrawStringAnchored(row.Distance, Width-edgeMargin, baseline, 1, 0)

	row.Height = max(2*circleRadius, inkHeight(face, p.Minutes+" min"+row.Distance))
	return row
}

// drawBand draws two rules bandGap apart starting at y and returns the first
// free line below them.
func drawBand(dc *gg.Context, y int) int {
	dc.SetColor(color.Black)
	rule(dc, y)
	rule(dc, y+bandGap+1)
	return y + bandGap + 2 + bandMargin
}

// rule fills a one pixel high rectangle so it lands on exactly one row.
func rule(dc *gg.Context, y int) {
	dc.DrawRectangle(0, float64(y), Width, 1)
	dc.Fill()
}

// drawText draws s in black with the top of the face's ascent at top.
func drawText(dc *gg.Context, face font.Face, s string, x, top int) {
	dc.SetFontFace(face)
	dc.SetColor(color.Black)
	dc.DrawString(s, float64(x), float64(top+face.Metrics().Ascent.Ceil()))
}

func inkHeight(face font.Face, s string) int {
	b, _ := font.BoundString(face, s)
	return (b.Max.Y - b.Min.Y).Ceil()
}
