// Command dropscene drops a sphere and a box on a floor and logs where they come to rest.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync"
)

const (
	tickMillis = 16
	ticks      = 250
)

func main() {
	logger := log.NewWithOptions(os.Stdout, log.Options{Level: log.InfoLevel})

	world := physync.New(physync.Authority, physync.WithLogger(logger), physync.WithCollisionDedup(true))
	world.Init()

	floor := physync.NewBox(1, mgl64.Vec3{0, -0.5, 0}, mgl64.Vec3{50, 0.5, 50}, 0)
	ball := physync.NewSphere(2, mgl64.Vec3{0, 2, 0}, 0.5, 1)
	crate := physync.NewBox(3, mgl64.Vec3{3, 4, 0}, mgl64.Vec3{0.5, 0.5, 0.5}, 2)
	for _, obj := range []*physync.Object{floor, ball, crate} {
		if err := world.Register(obj); err != nil {
			logger.Fatal("register", "id", obj.ID, "err", err)
		}
	}

	world.OnContact(func(phase physync.ContactPhase, a, b *physync.Object) {
		if phase != physync.ContactStay {
			logger.Info("contact", "phase", phase, "a", a.ID, "b", b.ID)
		}
	})

	for tick := 1; tick <= ticks; tick++ {
		world.Simulate(tickMillis, true, 0)
		if tick%50 == 0 {
			logger.Info("tick",
				"n", tick,
				"ball_y", ball.Position.Y(),
				"crate_y", crate.Position.Y(),
				"step_ms", world.LastSimulationMillis(),
			)
		}
	}

	logger.Info("at rest", "ball", ball.Position, "ball_grounded", ball.InGround, "crate", crate.Position)
	m := world.GetTransform(ball)
	logger.Info("ball transform", "translation", m.Col(3))
}
