package wordcloud

// Shape selects the mask constraining word placement.
type Shape string

const (
	ShapeRectangle Shape = "rectangle"
	ShapeCircle    Shape = "circle"
	ShapeDiamond   Shape = "diamond"
	ShapeTriangle  Shape = "triangle"
)

// Options configures the render engine.
type Options struct {
	Width       int
	Height      int
	MaxWords    int
	Background  string   // color name or #rrggbb
	Colors      []string // word palette, cycled
	Shape       Shape
	MinFontSize int
	MaxFontSize int
	FontPath    string // optional TTF on disk; built-in font when empty
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 400
	}
	if o.MaxWords <= 0 {
		o.MaxWords = 200
	}
	if o.Background == "" {
		o.Background = "white"
	}
	if len(o.Colors) == 0 {
		// Viridis-like ramp, dark to bright.
		o.Colors = []string{"#440154", "#46327e", "#365c8d", "#277f8e", "#1fa187", "#4ac16d", "#a0da39", "#fde725"}
	}
	if o.Shape == "" {
		o.Shape = ShapeRectangle
	}
	if o.MinFontSize <= 0 {
		o.MinFontSize = 8
	}
	if o.MaxFontSize <= o.MinFontSize {
		o.MaxFontSize = 72
	}
	return o
}
