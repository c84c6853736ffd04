// Package physync keeps game objects in step with a rigid-body dynamics engine.
//
// A World owns one engine.Engine. Objects are registered into it, Simulate advances it by
// one tick and copies the results back into the objects (all of them, or a single one),
// then reports the interpenetrating pairs of the step to the collision callback.
//
// A World is not safe for concurrent use: Simulate, Register, Unregister and ApplyState must
// be called from one goroutine. Other goroutines read objects through Object.Pose or check
// Object.Syncing, and may read LastSimulationMillis at any time.
package physync

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
	"github.com/snower/physync/dynamics"
	"github.com/snower/physync/engine"
	"github.com/snower/physync/telemetry"
)

const (
	DefaultFriction   = 0.5
	CharacterFriction = 0.01
	KinematicFriction = 0.95

	// CCDMotionThreshold applies to spheres and characters, which also never deactivate.
	CCDMotionThreshold = 0.2
)

// DefaultGravity is used by Init unless WithGravity says otherwise.
var DefaultGravity = mgl64.Vec3{0, -20, 0}

// ContactPhase is the lifecycle stage of a touching pair, reported once per pair per step.
type ContactPhase uint8

const (
	ContactEnter ContactPhase = iota
	ContactStay
	ContactExit
)

func (p ContactPhase) String() string {
	switch p {
	case ContactEnter:
		return "enter"
	case ContactStay:
		return "stay"
	case ContactExit:
		return "exit"
	}
	return "unknown"
}

type pairKey struct {
	a, b engine.BodyID
}

type World struct {
	mode     Mode
	gravity  mgl64.Vec3
	factory  engine.Factory
	logger   *log.Logger
	dedup    bool
	registry *telemetry.Registry

	stepMillis *telemetry.Gauge
	objCount   *telemetry.Gauge
	collisions *telemetry.Counter

	engine engine.Engine

	// registration order, so read-back and Objects are deterministic
	objects []*Object
	byID    map[int]*Object
	// body -> object back-reference
	byBody map[engine.BodyID]*Object

	onCollision func(a, b *Object)
	onContact   func(phase ContactPhase, a, b *Object)
	reported    map[pairKey]bool
}

// New configures a world. Init must be called before anything else.
func New(mode Mode, opts ...Option) *World {
	w := &World{
		mode:     mode,
		gravity:  DefaultGravity,
		factory:  dynamics.NewEngine,
		logger:   log.Default(),
		byID:     make(map[int]*Object),
		byBody:   make(map[engine.BodyID]*Object),
		reported: make(map[pairKey]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.WithPrefix("physics")
	if w.registry == nil {
		w.registry = telemetry.NewRegistry()
	}
	w.stepMillis = w.registry.Gauge(telemetry.PhysicsStepMillis)
	w.objCount = w.registry.Gauge(telemetry.PhysicsObjects)
	w.collisions = w.registry.Counter(telemetry.PhysicsCollisions)

	return w
}

// Init creates the dynamics engine. Calling it twice is a programming error and panics.
func (w *World) Init() {
	if w.engine != nil {
		panic("physync: Init called twice")
	}
	w.engine = w.factory(w.gravity)
	w.logger.Debug("world initialized", "mode", w.mode, "gravity", w.gravity)
}

func (w *World) mustInit(op string) {
	if w.engine == nil {
		panic("physync: " + op + " called before Init")
	}
}

func (w *World) Mode() Mode {
	return w.mode
}

func (w *World) Gravity() mgl64.Vec3 {
	return w.gravity
}

// Registry is where the world publishes its metrics.
func (w *World) Registry() *telemetry.Registry {
	return w.registry
}

// LastSimulationMillis is the wall-clock duration of the last Simulate call.
func (w *World) LastSimulationMillis() float64 {
	return w.stepMillis.Get()
}

// Register creates the body of obj. Registering an object twice is a no-op.
// The body starts at the object's pose, at rest, and so does the record.
func (w *World) Register(obj *Object) error {
	w.mustInit("Register")

	if obj.handle != 0 {
		if w.byBody[obj.handle] == obj {
			return nil
		}
		return fmt.Errorf("%w: %d", ErrForeignObject, obj.ID)
	}
	if other, ok := w.byID[obj.ID]; ok && other != obj {
		return fmt.Errorf("%w: %d", ErrDuplicateID, obj.ID)
	}

	shape, err := obj.shape()
	if err != nil {
		return fmt.Errorf("register object %d: %w", obj.ID, err)
	}

	def := engine.BodyDef{
		Shape:     shape,
		Transform: actor.NewTransform(obj.Position, obj.Rotation),
		Friction:  DefaultFriction,
	}
	if obj.AffectedByPhysics {
		def.Mass = obj.Mass
		def.LocalInertia = shape.ComputeInertia(obj.Mass)
	} else {
		// kinematic bodies get no inertia and a fixed friction
		def.Kinematic = true
		def.Friction = KinematicFriction
		if obj.IsCharacter {
			def.Friction = CharacterFriction
		}
	}
	if obj.IsSphere || obj.IsCharacter {
		def.CCDMotionThreshold = CCDMotionThreshold
		def.DisableDeactivation = true
	}

	obj.handle = w.engine.AddBody(def)
	w.byBody[obj.handle] = obj
	w.byID[obj.ID] = obj
	w.objects = append(w.objects, obj)
	// nothing of a previous registration survives
	obj.write(engine.BodyState{Position: obj.Position, Rotation: obj.Rotation})
	w.objCount.Set(float64(len(w.objects)))

	w.logger.Debug("object registered", "id", obj.ID, "handle", obj.handle, "kinematic", def.Kinematic)
	return nil
}

// Unregister destroys the body of obj. The object keeps its last state and can be
// registered again.
func (w *World) Unregister(obj *Object) {
	if obj.handle == 0 || w.byBody[obj.handle] != obj {
		return
	}

	w.engine.RemoveBody(obj.handle)
	delete(w.byBody, obj.handle)
	delete(w.byID, obj.ID)
	w.objects = slices.DeleteFunc(w.objects, func(o *Object) bool { return o == obj })
	w.objCount.Set(float64(len(w.objects)))

	w.logger.Debug("object unregistered", "id", obj.ID, "handle", obj.handle)
	obj.handle = 0
}

// GetTransform returns the column-major world matrix of a registered object.
// It panics if obj is not registered.
func (w *World) GetTransform(obj *Object) mgl32.Mat4 {
	w.mustInit("GetTransform")

	m, ok := w.engine.WorldTransform(obj.handle)
	if obj.handle == 0 || !ok {
		panic(fmt.Sprintf("physync: GetTransform on unregistered object %d", obj.ID))
	}

	var out mgl32.Mat4
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}

// Objects returns the registered objects in registration order.
func (w *World) Objects() []*Object {
	return slices.Clone(w.objects)
}

func (w *World) Lookup(id int) (*Object, bool) {
	obj, ok := w.byID[id]
	return obj, ok
}

// OnCollision replaces the collision callback. It is called for every penetrating contact
// point of a step (or once per pair with WithCollisionDedup), so a resting pair is reported
// on every step and possibly several times per step.
func (w *World) OnCollision(fn func(a, b *Object)) {
	w.onCollision = fn
}

// OnContact replaces the contact lifecycle callback.
func (w *World) OnContact(fn func(phase ContactPhase, a, b *Object)) {
	w.onContact = fn
}

// Simulate advances the world by deltaMillis in one step. Objects are read back when updateAll
// is set or their id is updateID; the others keep their fields untouched.
func (w *World) Simulate(deltaMillis int, updateAll bool, updateID int) {
	w.mustInit("Simulate")
	start := time.Now()

	w.engine.Step(float64(deltaMillis) / 1000.0)

	for _, obj := range w.objects {
		if !updateAll && obj.ID != updateID {
			continue
		}
		if state, ok := w.engine.State(obj.handle); ok {
			obj.write(state)
		}
	}

	w.reportCollisions()
	w.reportEvents()

	w.stepMillis.Set(float64(time.Since(start).Nanoseconds()) / 1e6)
}

func (w *World) reportCollisions() {
	clear(w.reported)

	for _, m := range w.engine.Manifolds() {
		for _, p := range m.Points {
			if p.Distance >= 0 {
				continue
			}

			// looked up per point: the callback may unregister either object
			a, b := w.byBody[m.BodyA], w.byBody[m.BodyB]
			if a == nil || b == nil {
				break
			}

			if w.dedup {
				key := pairKey{m.BodyA, m.BodyB}
				if w.reported[key] {
					break
				}
				w.reported[key] = true
			}

			w.collisions.Inc()
			if w.onCollision != nil {
				w.onCollision(a, b)
			}
		}
	}
}

func (w *World) reportEvents() {
	for _, e := range w.engine.Events() {
		switch e.Kind {
		case engine.BodySleep, engine.BodyWake:
			if obj := w.byBody[e.BodyA]; obj != nil {
				w.logger.Debug("body "+e.Kind.String(), "id", obj.ID)
			}
		default:
			if w.onContact == nil {
				continue
			}
			a, b := w.byBody[e.BodyA], w.byBody[e.BodyB]
			if a == nil || b == nil {
				continue
			}
			w.onContact(contactPhase(e.Kind), a, b)
		}
	}
}

func contactPhase(kind engine.EventKind) ContactPhase {
	switch kind {
	case engine.ContactBegin:
		return ContactEnter
	case engine.ContactStay:
		return ContactStay
	}
	return ContactExit
}

// ApplyState overwrites obj with an authoritative snapshot and, when obj is registered,
// teleports its body so local simulation continues from it.
func (w *World) ApplyState(obj *Object, state ObjectState) {
	obj.syncing.Store(true)
	obj.Position = vec3To64(state.Position)
	obj.Rotation = mgl64.Quat{W: float64(state.Rotation.W), V: vec3To64(state.Rotation.V)}
	obj.LinearVelocity = vec3To64(state.LinearVelocity)
	obj.AngularVelocity = vec3To64(state.AngularVelocity)
	obj.InGround = state.InGround
	obj.publish()
	obj.syncing.Store(false)

	if obj.handle != 0 && w.engine != nil {
		w.engine.SetState(obj.handle, obj.bodyState())
	}
}

// SetVelocity drives a registered object, typically a kinematic character.
func (w *World) SetVelocity(obj *Object, linear mgl64.Vec3) {
	if obj.handle == 0 {
		return
	}
	state, ok := w.engine.State(obj.handle)
	if !ok {
		return
	}
	state.LinearVelocity = linear
	w.engine.SetState(obj.handle, state)
}
