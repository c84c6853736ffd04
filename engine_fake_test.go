package physync

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/engine"
)

// fakeEngine moves bodies along their velocity and replays scripted contacts.
type fakeEngine struct {
	gravity mgl64.Vec3
	nextID  engine.BodyID
	defs    map[engine.BodyID]engine.BodyDef
	states  map[engine.BodyID]engine.BodyState
	removed []engine.BodyID
	steps   []float64

	// returned by the next Step only
	manifolds []engine.Manifold
	events    []engine.Event
	pending   struct {
		manifolds []engine.Manifold
		events    []engine.Event
	}
}

var _ engine.Engine = (*fakeEngine)(nil)

func newFakeEngine(gravity mgl64.Vec3) *fakeEngine {
	return &fakeEngine{
		gravity: gravity,
		defs:    make(map[engine.BodyID]engine.BodyDef),
		states:  make(map[engine.BodyID]engine.BodyState),
	}
}

// fakeFactory returns a factory that stores the engine it builds in *out.
func fakeFactory(out **fakeEngine) engine.Factory {
	return func(gravity mgl64.Vec3) engine.Engine {
		*out = newFakeEngine(gravity)
		return *out
	}
}

func (f *fakeEngine) script(manifolds []engine.Manifold, events []engine.Event) {
	f.pending.manifolds = manifolds
	f.pending.events = events
}

func (f *fakeEngine) AddBody(def engine.BodyDef) engine.BodyID {
	f.nextID++
	f.defs[f.nextID] = def
	f.states[f.nextID] = engine.BodyState{
		Position: def.Transform.Position,
		Rotation: def.Transform.Rotation,
	}
	return f.nextID
}

func (f *fakeEngine) RemoveBody(id engine.BodyID) bool {
	if _, ok := f.states[id]; !ok {
		return false
	}
	delete(f.states, id)
	delete(f.defs, id)
	f.removed = append(f.removed, id)
	return true
}

func (f *fakeEngine) Step(dt float64) {
	f.steps = append(f.steps, dt)
	for id, s := range f.states {
		s.Position = s.Position.Add(s.LinearVelocity.Mul(dt))
		f.states[id] = s
	}
	f.manifolds, f.events = f.pending.manifolds, f.pending.events
	f.pending.manifolds, f.pending.events = nil, nil
}

func (f *fakeEngine) State(id engine.BodyID) (engine.BodyState, bool) {
	s, ok := f.states[id]
	return s, ok
}

func (f *fakeEngine) SetState(id engine.BodyID, state engine.BodyState) bool {
	if _, ok := f.states[id]; !ok {
		return false
	}
	f.states[id] = state
	return true
}

func (f *fakeEngine) WorldTransform(id engine.BodyID) (mgl64.Mat4, bool) {
	s, ok := f.states[id]
	if !ok {
		return mgl64.Mat4{}, false
	}
	return mgl64.Translate3D(s.Position.X(), s.Position.Y(), s.Position.Z()).Mul4(s.Rotation.Mat4()), true
}

func (f *fakeEngine) Manifolds() []engine.Manifold { return f.manifolds }
func (f *fakeEngine) Events() []engine.Event       { return f.events }
func (f *fakeEngine) Len() int                     { return len(f.states) }
