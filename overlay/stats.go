package overlay

import (
	"fmt"
	"runtime"
	"time"

	"github.com/snower/physync/telemetry"
)

const mib = 1024 * 1024

// StatsPanel shows frame, physics, network and memory figures in the top-left corner.
type StatsPanel struct {
	Visible bool
	// X and Y offset the panel inside the context.
	X, Y int

	registry *telemetry.Registry
	now      func() time.Time

	lastAt      time.Time
	lastIn      int64
	lastOut     int64
	lastPackets int64
}

func NewStatsPanel(registry *telemetry.Registry) *StatsPanel {
	return &StatsPanel{Visible: true, X: 1, Y: 1, registry: registry, now: time.Now}
}

func (p *StatsPanel) Draw(ctx *Context) {
	if !p.Visible {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	for i, line := range p.lines(&mem) {
		ctx.Text(p.X, p.Y+i, line)
	}
}

// lines formats the three panel rows. Network rates are averaged since the previous call.
func (p *StatsPanel) lines(mem *runtime.MemStats) [3]string {
	r := p.registry
	bytesIn := r.Counter(telemetry.NetBytesIn).Get()
	bytesOut := r.Counter(telemetry.NetBytesOut).Get()
	packets := r.Counter(telemetry.NetPackets).Get()

	now := p.now()
	var inRate, outRate, pps float64
	if !p.lastAt.IsZero() {
		if elapsed := now.Sub(p.lastAt).Seconds(); elapsed > 0 {
			inRate = float64(bytesIn-p.lastIn) / elapsed
			outRate = float64(bytesOut-p.lastOut) / elapsed
			pps = float64(packets-p.lastPackets) / elapsed
		}
	}
	p.lastAt, p.lastIn, p.lastOut, p.lastPackets = now, bytesIn, bytesOut, packets

	return [3]string{
		fmt.Sprintf("fps %d  physics %.1fms  draw %.1fms",
			int(r.Gauge(telemetry.RenderFPS).Get()),
			r.Gauge(telemetry.PhysicsStepMillis).Get(),
			r.Gauge(telemetry.RenderDrawMs).Get()),
		fmt.Sprintf("lat %dms  in %.1fKB/s  out %.1fKB/s  pps %d",
			int(r.Gauge(telemetry.NetLatencyMs).Get()),
			inRate/1024, outRate/1024, int(pps)),
		fmt.Sprintf("mem %.1fM  alloc %.1fM  sys %.1fM",
			float64(mem.HeapAlloc)/mib, float64(mem.HeapSys)/mib, float64(mem.Sys)/mib),
	}
}

// FrameMeter feeds the render gauges from frame timings.
type FrameMeter struct {
	fps  *telemetry.Gauge
	draw *telemetry.Gauge

	frames      int
	windowStart time.Time
}

func NewFrameMeter(registry *telemetry.Registry) *FrameMeter {
	return &FrameMeter{
		fps:  registry.Gauge(telemetry.RenderFPS),
		draw: registry.Gauge(telemetry.RenderDrawMs),
	}
}

// Frame records one frame drawn between start and end. The fps gauge is refreshed once a second.
func (m *FrameMeter) Frame(start, end time.Time) {
	m.draw.Set(float64(end.Sub(start)) / float64(time.Millisecond))

	if m.windowStart.IsZero() {
		m.windowStart = start
	}
	m.frames++
	if elapsed := end.Sub(m.windowStart); elapsed >= time.Second {
		m.fps.Set(float64(m.frames) / elapsed.Seconds())
		m.frames = 0
		m.windowStart = end
	}
}
