// Package dynamics is an XPBD rigid-body world: spatial-grid broad phase, analytic and
// GJK/EPA narrow phase, one position and one velocity solve per substep, sleeping, and
// contact events. *World satisfies engine.Engine.
package dynamics

import (
	"math"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
	"github.com/snower/physync/constraint"
	"github.com/snower/physync/engine"
)

const (
	DEFAULT_WORKERS = 1

	// MaxCCDSubsteps caps how finely a step is split for fast bodies.
	MaxCCDSubsteps = 8

	DefaultSleepTime      = 0.1  // seconds at rest before sleeping
	DefaultSleepVelocity  = 0.05 // m/s and rad/s
	DefaultGridCellSize   = 2.0
	DefaultGridCellsCount = 1024
)

type World struct {
	// bodies in insertion order, which is also id order
	Bodies []*actor.RigidBody
	// Gravity acceleration (m/s²)
	Gravity     mgl64.Vec3
	Substeps    int
	SpatialGrid *SpatialGrid
	Workers     int

	SleepTime     float64
	SleepVelocity float64

	EventLog Events

	// mu lets State and WorldTransform run on other goroutines while Step holds the write lock
	mu        sync.RWMutex
	byID      map[engine.BodyID]*actor.RigidBody
	nextID    engine.BodyID
	manifolds []engine.Manifold
	pairIndex map[pairKey]int
	events    []engine.Event
}

var _ engine.Engine = (*World)(nil)

func NewWorld(gravity mgl64.Vec3) *World {
	return &World{
		Gravity:       gravity,
		Substeps:      1,
		SpatialGrid:   NewSpatialGrid(DefaultGridCellSize, DefaultGridCellsCount),
		Workers:       DEFAULT_WORKERS,
		SleepTime:     DefaultSleepTime,
		SleepVelocity: DefaultSleepVelocity,
		EventLog:      NewEvents(),
		byID:          make(map[engine.BodyID]*actor.RigidBody),
		pairIndex:     make(map[pairKey]int),
	}
}

// NewEngine is an engine.Factory.
func NewEngine(gravity mgl64.Vec3) engine.Engine {
	return NewWorld(gravity)
}

// AddBody creates a body from def. A non-kinematic definition with mass <= 0 becomes static.
func (w *World) AddBody(def engine.BodyDef) engine.BodyID {
	w.mu.Lock()
	defer w.mu.Unlock()

	bodyType := actor.BodyTypeDynamic
	if def.Kinematic {
		bodyType = actor.BodyTypeKinematic
	}

	transform := actor.NewTransform(def.Transform.Position, def.Transform.Rotation)
	body := actor.NewRigidBody(transform, def.Shape, bodyType, def.Mass)
	if body.IsDynamic() {
		body.SetLocalInertia(def.LocalInertia)
	}
	body.Material.StaticFriction = def.Friction
	body.Material.DynamicFriction = def.Friction
	body.Material.Restitution = def.Restitution
	body.CanSleep = !def.DisableDeactivation
	body.CCDMotionThreshold = def.CCDMotionThreshold

	w.nextID++
	id := w.nextID
	body.ID = uint32(id)

	w.Bodies = append(w.Bodies, body)
	w.byID[id] = body

	return id
}

func (w *World) RemoveBody(id engine.BodyID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	body, ok := w.byID[id]
	if !ok {
		return false
	}
	delete(w.byID, id)

	for i, b := range w.Bodies {
		if b == body {
			w.Bodies = append(w.Bodies[:i], w.Bodies[i+1:]...)
			break
		}
	}
	w.EventLog.forget(id)

	return true
}

// Body returns the rigid body behind id, for callers that need more than BodyState.
func (w *World) Body(id engine.BodyID) (*actor.RigidBody, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	body, ok := w.byID[id]
	return body, ok
}

func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.Bodies)
}

func (w *World) State(id engine.BodyID) (engine.BodyState, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	body, ok := w.byID[id]
	if !ok {
		return engine.BodyState{}, false
	}
	return engine.BodyState{
		Position:        body.Transform.Position,
		Rotation:        body.Transform.Rotation,
		LinearVelocity:  body.Velocity,
		AngularVelocity: body.AngularVelocity,
	}, true
}

// SetState teleports the body. Velocities of static bodies are ignored.
func (w *World) SetState(id engine.BodyID, state engine.BodyState) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	body, ok := w.byID[id]
	if !ok {
		return false
	}

	body.Transform = actor.NewTransform(state.Position, state.Rotation)
	body.PreviousTransform = body.Transform
	if body.BodyType != actor.BodyTypeStatic {
		body.Awake()
		body.Velocity = state.LinearVelocity
		body.AngularVelocity = state.AngularVelocity
		body.PresolveVelocity = state.LinearVelocity
		body.PresolveAngularVelocity = state.AngularVelocity
	}
	body.Shape.ComputeAABB(body.Transform)

	return true
}

func (w *World) WorldTransform(id engine.BodyID) (mgl64.Mat4, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	body, ok := w.byID[id]
	if !ok {
		return mgl64.Mat4{}, false
	}
	return body.Transform.Mat4(), true
}

func (w *World) Manifolds() []engine.Manifold {
	return w.manifolds
}

func (w *World) Events() []engine.Event {
	return w.events
}

// Step advances the world by dt seconds.
func (w *World) Step(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.Workers = max(DEFAULT_WORKERS, w.Workers)
	w.manifolds = w.manifolds[:0]
	w.events = w.events[:0]
	clear(w.pairIndex)
	if dt <= 0 {
		return
	}

	substeps := w.substepCount(dt)
	h := dt / float64(substeps)

	for range substeps {
		w.integrate(h)

		// Broad phase + narrow phase
		constraints := w.detectCollision()

		w.wakeTouched(constraints)
		w.recordContacts(constraints)

		// one iteration is enough with substeps
		w.solvePosition(h, constraints)

		w.update(h)

		w.solveVelocity(h, constraints)

		w.trySleep(h)
	}

	sort.Slice(w.manifolds, func(i, j int) bool {
		if w.manifolds[i].BodyA != w.manifolds[j].BodyA {
			return w.manifolds[i].BodyA < w.manifolds[j].BodyA
		}
		return w.manifolds[i].BodyB < w.manifolds[j].BodyB
	})
	w.events = w.EventLog.flush(w.events, w.Bodies)
}

// substepCount splits the step so that no CCD-enabled body moves further than its
// motion threshold within one substep.
func (w *World) substepCount(dt float64) int {
	n := max(1, w.Substeps)
	for _, body := range w.Bodies {
		if body.CCDMotionThreshold <= 0 || body.IsSleeping || body.BodyType == actor.BodyTypeStatic {
			continue
		}

		velocity := body.Velocity
		if body.IsDynamic() {
			velocity = velocity.Add(w.Gravity.Mul(dt))
		}
		motion := velocity.Len() * dt
		if motion > body.CCDMotionThreshold {
			n = max(n, int(math.Ceil(motion/body.CCDMotionThreshold)))
		}
	}
	return min(n, max(MaxCCDSubsteps, w.Substeps))
}

func (w *World) integrate(h float64) {
	task(w.Workers, w.Bodies, func(_ int, body *actor.RigidBody) {
		body.Integrate(h, w.Gravity)
	})
}

// isActive reports whether the body can move this substep.
func isActive(body *actor.RigidBody) bool {
	switch body.BodyType {
	case actor.BodyTypeDynamic:
		return !body.IsSleeping
	case actor.BodyTypeKinematic:
		return body.Velocity.LenSqr() > 0 || body.AngularVelocity.LenSqr() > 0
	}
	return false
}

// acceptPair skips pairs without a dynamic body (static and kinematic bodies do not collide
// with each other) and pairs where nothing moves.
func acceptPair(a, b *actor.RigidBody) bool {
	if !a.IsDynamic() && !b.IsDynamic() {
		return false
	}
	return isActive(a) || isActive(b)
}

func (w *World) detectCollision() []*constraint.ContactConstraint {
	w.SpatialGrid.Clear()
	for i, body := range w.Bodies {
		w.SpatialGrid.Insert(i, body.Shape.GetAABB())
	}
	w.SpatialGrid.SortCells()

	pairs := w.SpatialGrid.FindPairs(w.Bodies, acceptPair)

	// results are indexed by pair so the order does not depend on the worker count
	results := make([]*constraint.ContactConstraint, len(pairs))
	task(w.Workers, pairs, func(i int, pair Pair) {
		if contact, ok := Collide(w.Bodies[pair.A], w.Bodies[pair.B]); ok {
			results[i] = contact
		}
	})

	constraints := results[:0]
	for _, c := range results {
		if c != nil {
			constraints = append(constraints, c)
		}
	}
	return constraints
}

// wakeTouched wakes sleeping bodies hit by something that moves.
func (w *World) wakeTouched(constraints []*constraint.ContactConstraint) {
	for _, c := range constraints {
		if c.BodyA.IsSleeping && isActive(c.BodyB) {
			c.BodyA.Awake()
		}
		if c.BodyB.IsSleeping && isActive(c.BodyA) {
			c.BodyB.Awake()
		}
	}
}

// recordContacts keeps the latest manifold of each pair over the substeps of a step.
func (w *World) recordContacts(constraints []*constraint.ContactConstraint) {
	for _, c := range constraints {
		idA, idB := engine.BodyID(c.BodyA.ID), engine.BodyID(c.BodyB.ID)
		w.EventLog.recordContact(idA, idB)

		manifold := engine.Manifold{
			BodyA:  idA,
			BodyB:  idB,
			Normal: c.Normal,
			Points: make([]engine.ContactPoint, len(c.Points)),
		}
		for i, p := range c.Points {
			manifold.Points[i] = engine.ContactPoint{Position: p.Position, Distance: -p.Penetration}
		}

		key := makePairKey(idA, idB)
		if i, ok := w.pairIndex[key]; ok {
			w.manifolds[i] = manifold
			continue
		}
		w.pairIndex[key] = len(w.manifolds)
		w.manifolds = append(w.manifolds, manifold)
	}
}

// solvePosition runs sequentially: constraints sharing a body must not race.
func (w *World) solvePosition(h float64, constraints []*constraint.ContactConstraint) {
	for _, c := range constraints {
		c.SolvePosition(h)
	}
}

func (w *World) update(h float64) {
	task(w.Workers, w.Bodies, func(_ int, body *actor.RigidBody) {
		body.Update(h)
	})
}

func (w *World) solveVelocity(h float64, constraints []*constraint.ContactConstraint) {
	restingSpeed := 2 * w.Gravity.Len() * h
	for _, c := range constraints {
		c.RestingSpeed = restingSpeed
		c.SolveVelocity(h)
	}
}

// trySleep is too cheap per body to be worth a task.
func (w *World) trySleep(h float64) {
	for _, body := range w.Bodies {
		body.TrySleep(h, w.SleepTime, w.SleepVelocity)
	}
}
