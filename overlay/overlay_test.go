package overlay

import (
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/snower/physync/telemetry"
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	screen.SetSize(80, 24)
	t.Cleanup(screen.Fini)
	return screen
}

// row reads back the first n cells of a screen row.
func row(screen tcell.Screen, y, n int) string {
	var sb strings.Builder
	for x := range n {
		r, _, _, _ := screen.GetContent(x, y)
		sb.WriteRune(r)
	}
	return sb.String()
}

type label struct {
	text  string
	calls int
}

func (l *label) Draw(ctx *Context) {
	l.calls++
	ctx.Text(0, 0, l.text)
}

// ---------------------------------------------------------------------------
// Renderer
// ---------------------------------------------------------------------------

func TestRenderer_Registry(t *testing.T) {
	r := NewRenderer(newScreen(t))
	a := &label{text: "a"}

	if err := r.Register("stats", a); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("stats", &label{}); !errors.Is(err, ErrDuplicateDrawable) {
		t.Errorf("Register() duplicate error = %v, want ErrDuplicateDrawable", err)
	}
	if got, ok := r.Get("stats"); !ok || got != a {
		t.Errorf("Get() = %v, %v", got, ok)
	}

	if err := r.Unregister("stats"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if err := r.Unregister("stats"); !errors.Is(err, ErrUnknownDrawable) {
		t.Errorf("Unregister() unknown error = %v, want ErrUnknownDrawable", err)
	}
	if _, ok := r.Get("stats"); ok {
		t.Error("Get() found an unregistered drawable")
	}
}

func TestRenderer_DrawOrder(t *testing.T) {
	screen := newScreen(t)
	r := NewRenderer(screen)
	first := &label{text: "first"}
	second := &label{text: "2nd"}
	r.Register("first", first)
	r.Register("second", second)

	r.Draw()
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("calls = %d, %d, want 1 each", first.calls, second.calls)
	}
	// later drawables paint over earlier ones
	if got := row(screen, 0, 5); got != "2ndst" {
		t.Errorf("row 0 = %q, want %q", got, "2ndst")
	}
}

func TestContext_TextClipped(t *testing.T) {
	screen := newScreen(t)
	ctx := &Context{Surface: screen, X: 2, Y: 1, Width: 4, Height: 1, Style: tcell.StyleDefault}

	ctx.Text(-1, 0, "abcdefgh")
	ctx.Text(0, 1, "hidden")

	if got := row(screen, 1, 8); got != "  bcde  " {
		t.Errorf("row 1 = %q, want %q", got, "  bcde  ")
	}
	if got := row(screen, 2, 8); strings.TrimSpace(got) != "" {
		t.Errorf("row 2 = %q, want empty", got)
	}
}

// ---------------------------------------------------------------------------
// Stats panel
// ---------------------------------------------------------------------------

func TestStatsPanel_Lines(t *testing.T) {
	registry := telemetry.NewRegistry()
	registry.Gauge(telemetry.RenderFPS).Set(60)
	registry.Gauge(telemetry.PhysicsStepMillis).Set(1.3)
	registry.Gauge(telemetry.RenderDrawMs).Set(3)
	registry.Gauge(telemetry.NetLatencyMs).Set(42)

	clock := time.Unix(100, 0)
	p := NewStatsPanel(registry)
	p.now = func() time.Time { return clock }
	mem := &runtime.MemStats{HeapAlloc: 2 * mib, HeapSys: 4 * mib, Sys: 8 * mib}

	lines := p.lines(mem)
	want := [3]string{
		"fps 60  physics 1.3ms  draw 3.0ms",
		"lat 42ms  in 0.0KB/s  out 0.0KB/s  pps 0",
		"mem 2.0M  alloc 4.0M  sys 8.0M",
	}
	if lines != want {
		t.Errorf("lines = %q, want %q", lines, want)
	}

	registry.Counter(telemetry.NetBytesIn).Add(4096)
	registry.Counter(telemetry.NetBytesOut).Add(1024)
	registry.Counter(telemetry.NetPackets).Add(20)
	clock = clock.Add(2 * time.Second)

	lines = p.lines(mem)
	if want := "lat 42ms  in 2.0KB/s  out 0.5KB/s  pps 10"; lines[1] != want {
		t.Errorf("network line = %q, want %q", lines[1], want)
	}
}

func TestStatsPanel_Hidden(t *testing.T) {
	screen := newScreen(t)
	r := NewRenderer(screen)
	p := NewStatsPanel(telemetry.NewRegistry())
	r.Register("stats", p)

	p.Visible = false
	r.Draw()
	if got := row(screen, 1, 3); strings.TrimSpace(got) != "" {
		t.Fatalf("hidden panel drew %q", got)
	}

	p.Visible = true
	r.Draw()
	if got := row(screen, 1, 4); got != " fps" {
		t.Errorf("row 1 = %q, want %q", got, " fps")
	}
}

func TestFrameMeter(t *testing.T) {
	registry := telemetry.NewRegistry()
	m := NewFrameMeter(registry)
	start := time.Unix(0, 0)

	for i := range 30 {
		at := start.Add(time.Duration(i) * 50 * time.Millisecond)
		m.Frame(at, at.Add(4*time.Millisecond))
	}

	if got := registry.Gauge(telemetry.RenderDrawMs).Get(); got != 4 {
		t.Errorf("draw ms = %v, want 4", got)
	}
	// the first 21 frames fill the first 1.004s window
	if got := registry.Gauge(telemetry.RenderFPS).Get(); got < 20 || got > 21 {
		t.Errorf("fps = %v, want about 20.9", got)
	}
}

func TestArenaView(t *testing.T) {
	screen := newScreen(t)
	view := &ArenaView{
		Scale: 1,
		Source: func() []Marker {
			return []Marker{
				{X: 0, Z: 0, Glyph: 'o'},
				{X: 2, Z: -3, Glyph: '@', Highlight: true},
				{X: 100, Z: 0, Glyph: 'x'},
			}
		},
	}
	ctx := &Context{Surface: screen, Width: 80, Height: 24, Style: tcell.StyleDefault}
	view.Draw(ctx)

	if r, _, _, _ := screen.GetContent(40, 12); r != 'o' {
		t.Errorf("origin = %q, want 'o'", r)
	}
	r, _, style, _ := screen.GetContent(44, 9)
	if r != '@' {
		t.Errorf("marker = %q, want '@'", r)
	}
	if style != tcell.StyleDefault.Reverse(true) {
		t.Error("highlighted marker not reversed")
	}
}
