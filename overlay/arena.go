package overlay

import "github.com/gdamore/tcell/v2"

// Marker is one object projected on the ground plane.
type Marker struct {
	X, Z      float64
	Glyph     rune
	Highlight bool
}

// ArenaView draws a top-down map centred on the origin, Scale cells per metre.
// Markers that fall outside the context are skipped.
type ArenaView struct {
	Source func() []Marker
	Scale  float64
}

func (v *ArenaView) Draw(ctx *Context) {
	if v.Source == nil {
		return
	}
	scale := v.Scale
	if scale <= 0 {
		scale = 1
	}

	cx, cy := ctx.Width/2, ctx.Height/2
	highlight := ctx.Style.Reverse(true)
	for _, m := range v.Source() {
		// terminal cells are about twice as tall as they are wide
		col := cx + int(m.X*scale*2)
		row := cy + int(m.Z*scale)
		if col < 0 || col >= ctx.Width || row < 0 || row >= ctx.Height {
			continue
		}

		style := ctx.Style
		if m.Highlight {
			style = highlight
		}
		ctx.Surface.SetContent(ctx.X+col, ctx.Y+row, m.Glyph, nil, style)
	}
}

var (
	_ Drawable = (*ArenaView)(nil)
	_ Surface  = tcell.Screen(nil)
)
