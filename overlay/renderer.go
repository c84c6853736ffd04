// Package overlay draws developer overlays on a terminal screen.
package overlay

import (
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
)

var (
	ErrDuplicateDrawable = errors.New("overlay: drawable already registered")
	ErrUnknownDrawable   = errors.New("overlay: drawable not registered")
)

// Surface is the part of tcell.Screen the overlay draws on.
type Surface interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (width, height int)
}

// Drawable is anything the renderer draws each frame.
type Drawable interface {
	Draw(ctx *Context)
}

// Context is the drawing state handed to a drawable: where it may draw and with which style.
type Context struct {
	Surface       Surface
	X, Y          int
	Width, Height int
	Style         tcell.Style
}

// Text writes s at (col, row) relative to the context, clipped to its bounds.
func (c *Context) Text(col, row int, s string) {
	if row < 0 || row >= c.Height {
		return
	}
	for _, r := range s {
		if col >= c.Width {
			return
		}
		if col >= 0 {
			c.Surface.SetContent(c.X+col, c.Y+row, r, nil, c.Style)
		}
		col++
	}
}

// Fill paints the whole context area with r.
func (c *Context) Fill(r rune) {
	for row := 0; row < c.Height; row++ {
		for col := 0; col < c.Width; col++ {
			c.Surface.SetContent(c.X+col, c.Y+row, r, nil, c.Style)
		}
	}
}

// Renderer keeps named drawables and draws them in registration order.
type Renderer struct {
	surface   Surface
	style     tcell.Style
	drawables map[string]Drawable
	order     []string
}

func NewRenderer(surface Surface) *Renderer {
	return &Renderer{
		surface:   surface,
		style:     tcell.StyleDefault,
		drawables: make(map[string]Drawable),
	}
}

func (r *Renderer) SetStyle(style tcell.Style) {
	r.style = style
}

func (r *Renderer) Register(name string, d Drawable) error {
	if _, ok := r.drawables[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDrawable, name)
	}
	r.drawables[name] = d
	r.order = append(r.order, name)
	return nil
}

func (r *Renderer) Get(name string) (Drawable, bool) {
	d, ok := r.drawables[name]
	return d, ok
}

func (r *Renderer) Unregister(name string) error {
	if _, ok := r.drawables[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDrawable, name)
	}
	delete(r.drawables, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Draw hands each drawable a fresh full-screen context.
func (r *Renderer) Draw() {
	width, height := r.surface.Size()
	for _, name := range r.order {
		ctx := &Context{Surface: r.surface, Width: width, Height: height, Style: r.style}
		r.drawables[name].Draw(ctx)
	}
}
