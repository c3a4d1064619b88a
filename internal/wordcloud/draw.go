package wordcloud

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type weighted struct {
	word  string
	count int
}

type maskFunc func(x, y, w, h int) bool

func maskFor(shape Shape) maskFunc {
	switch shape {
	case ShapeCircle:
		return func(x, y, w, h int) bool {
			dx := float64(x-w/2) / (float64(w) / 2)
			dy := float64(y-h/2) / (float64(h) / 2)
			return dx*dx+dy*dy <= 1
		}
	case ShapeDiamond:
		return func(x, y, w, h int) bool {
			dx := math.Abs(float64(x-w/2)) / (float64(w) / 2)
			dy := math.Abs(float64(y-h/2)) / (float64(h) / 2)
			return dx+dy <= 1
		}
	case ShapeTriangle:
		// Upward triangle: apex at top center, base at the bottom edge.
		return func(x, y, w, h int) bool {
			fy := float64(y) / float64(h)
			half := fy * float64(w) / 2
			dx := math.Abs(float64(x - w/2))
			return dx <= half
		}
	default:
		return func(x, y, w, h int) bool { return true }
	}
}

// renderPass holds the drawing state of a single Render call. opentype
// faces are stateful and not safe for concurrent use, so each render builds
// its own; nothing here is shared between renders and distinct identities
// draw fully in parallel.
type renderPass struct {
	e     *Engine
	faces map[int]font.Face
}

// face returns the pass-local font face for the given pixel size.
func (p *renderPass) face(size int) font.Face {
	if f, ok := p.faces[size]; ok {
		return f
	}
	var f font.Face
	if p.e.sfnt != nil {
		ff, err := opentype.NewFace(p.e.sfnt, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			f = ff
		}
	}
	if f == nil {
		f = basicfont.Face7x13
	}
	p.faces[size] = f
	return f
}

// draw lays words out on a fresh canvas.
func (e *Engine) draw(freqs map[string]int, ts time.Time, title string) *image.RGBA {
	p := &renderPass{e: e, faces: map[int]font.Face{}}
	return p.draw(freqs, ts, title)
}

func (p *renderPass) draw(freqs map[string]int, ts time.Time, title string) *image.RGBA {
	e := p.e
	o := e.opts
	w, h := o.Width, o.Height

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := parseColor(o.Background, color.RGBA{255, 255, 255, 255})
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	topMargin := 0
	if title != "" {
		topMargin = p.drawTitle(img, title, bg)
	}

	words := rankWords(freqs, o.MaxWords)
	maxCount := words[0].count

	var placed []image.Rectangle
	for i, wd := range words {
		size := e.fontSize(wd.count, maxCount)
		f := p.face(size)
		d := font.Drawer{Face: f}
		adv := d.MeasureString(wd.word).Ceil()
		m := f.Metrics()
		asc := m.Ascent.Ceil()
		wordH := asc + m.Descent.Ceil()

		rect, ok := e.place(adv, wordH, w, h, topMargin, placed)
		if !ok {
			continue // no room left for this word
		}
		placed = append(placed, rect)

		c := parseColor(o.Colors[i%len(o.Colors)], color.RGBA{0, 0, 0, 255})
		d.Dst = img
		d.Src = image.NewUniform(c)
		d.Dot = fixed.P(rect.Min.X, rect.Min.Y+asc)
		d.DrawString(wd.word)
	}

	p.drawWatermark(img, ts, bg)
	return img
}

// place walks an Archimedean spiral from the canvas center until the word's
// rectangle fits inside the mask without touching an earlier word.
func (e *Engine) place(wordW, wordH, w, h, topMargin int, placed []image.Rectangle) (image.Rectangle, bool) {
	cx := float64(w) / 2
	cy := float64(topMargin) + float64(h-topMargin)/2

	const steps = 3000
	for i := 0; i < steps; i++ {
		t := float64(i) * 0.12
		r := 1.8 * t
		x := int(cx + r*math.Cos(t) - float64(wordW)/2)
		y := int(cy + r*0.55*math.Sin(t) - float64(wordH)/2)

		rect := image.Rect(x, y, x+wordW, y+wordH)
		if rect.Min.X < 2 || rect.Min.Y < topMargin+2 || rect.Max.X > w-2 || rect.Max.Y > h-2 {
			continue
		}
		if !e.maskAllows(rect, w, h) {
			continue
		}
		if overlapsAny(rect, placed) {
			continue
		}
		return rect, true
	}
	return image.Rectangle{}, false
}

func (e *Engine) maskAllows(r image.Rectangle, w, h int) bool {
	pts := [5][2]int{
		{r.Min.X, r.Min.Y},
		{r.Max.X, r.Min.Y},
		{r.Min.X, r.Max.Y},
		{r.Max.X, r.Max.Y},
		{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2},
	}
	for _, p := range pts {
		if !e.mask(p[0], p[1], w, h) {
			return false
		}
	}
	return true
}

func overlapsAny(r image.Rectangle, placed []image.Rectangle) bool {
	padded := r.Inset(-2)
	for _, p := range placed {
		if padded.Overlaps(p) {
			return true
		}
	}
	return false
}

// fontSize scales with the square root of relative frequency so a runaway
// top word doesn't flatten everything else into the minimum size.
func (e *Engine) fontSize(count, maxCount int) int {
	o := e.opts
	if maxCount <= 0 {
		return o.MinFontSize
	}
	frac := math.Sqrt(float64(count) / float64(maxCount))
	size := o.MinFontSize + int(frac*float64(o.MaxFontSize-o.MinFontSize))
	if size < o.MinFontSize {
		size = o.MinFontSize
	}
	if size > o.MaxFontSize {
		size = o.MaxFontSize
	}
	return size
}

func (p *renderPass) drawTitle(img *image.RGBA, title string, bg color.RGBA) int {
	f := p.face(18)
	d := font.Drawer{Face: f, Dst: img}
	c := color.RGBA{0, 0, 0, 255}
	if isDark(bg) {
		c = color.RGBA{255, 255, 255, 255}
	}
	d.Src = image.NewUniform(c)

	adv := d.MeasureString(title).Ceil()
	x := (img.Bounds().Dx() - adv) / 2
	if x < 0 {
		x = 0
	}
	asc := f.Metrics().Ascent.Ceil()
	d.Dot = fixed.P(x, 8+asc)
	d.DrawString(title)
	return 8 + asc + f.Metrics().Descent.Ceil() + 8
}

func (p *renderPass) drawWatermark(img *image.RGBA, ts time.Time, bg color.RGBA) {
	f := p.face(10)
	d := font.Drawer{Face: f, Dst: img}
	c := color.RGBA{120, 120, 120, 255}
	if isDark(bg) {
		c = color.RGBA{180, 180, 180, 255}
	}
	d.Src = image.NewUniform(c)

	stamp := ts.Format("2006-01-02 15:04")
	adv := d.MeasureString(stamp).Ceil()
	b := img.Bounds()
	d.Dot = fixed.P(b.Dx()-adv-6, b.Dy()-6)
	d.DrawString(stamp)
}

func rankWords(freqs map[string]int, maxWords int) []weighted {
	words := make([]weighted, 0, len(freqs))
	for wd, n := range freqs {
		if n > 0 {
			words = append(words, weighted{word: wd, count: n})
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].count != words[j].count {
			return words[i].count > words[j].count
		}
		return words[i].word < words[j].word
	})
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return words
}

var namedColors = map[string]color.RGBA{
	"white":  {255, 255, 255, 255},
	"black":  {0, 0, 0, 255},
	"gray":   {128, 128, 128, 255},
	"red":    {220, 50, 47, 255},
	"green":  {35, 160, 60, 255},
	"blue":   {38, 90, 200, 255},
	"yellow": {245, 200, 20, 255},
	"navy":   {0, 0, 96, 255},
}

func parseColor(s string, def color.RGBA) color.RGBA {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c
	}
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 {
			if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
				return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
			}
		}
	}
	return def
}

func isDark(c color.RGBA) bool {
	// Perceived luminance; same cutoff the usual 0..255 formulas use.
	lum := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	return lum < 128
}
