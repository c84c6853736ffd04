// Package engine defines the rigid-body dynamics capability the physics adapter drives.
//
// Any physics library can sit behind Engine: the adapter only creates and destroys bodies,
// steps the world, reads and overwrites body state, and consumes the contacts and events
// of the last step. Bodies are referred to by BodyID, never by pointer.
package engine

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
)

// BodyID identifies a body inside one Engine. Zero is never a valid id and IDs are not reused.
type BodyID uint32

// BodyDef describes a body to create.
type BodyDef struct {
	Shape     actor.ShapeInterface
	Transform actor.Transform

	// Mass <= 0 on a non-kinematic body makes it static.
	Mass float64
	// LocalInertia is used as given; a zero tensor locks rotation.
	LocalInertia mgl64.Mat3
	Kinematic    bool

	Friction    float64
	Restitution float64

	// CCDMotionThreshold > 0 enables continuous collision: the step is split so the body
	// never moves further than this per substep.
	CCDMotionThreshold  float64
	DisableDeactivation bool
}

// BodyState is the motion state of a body.
type BodyState struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// ContactPoint is one point of a manifold. Distance is the signed separation, negative when penetrating.
type ContactPoint struct {
	Position mgl64.Vec3
	Distance float64
}

// Manifold groups the contact points between two bodies. Normal points from BodyA to BodyB.
type Manifold struct {
	BodyA, BodyB BodyID
	Normal       mgl64.Vec3
	Points       []ContactPoint
}

type EventKind uint8

const (
	ContactBegin EventKind = iota
	ContactStay
	ContactEnd
	BodySleep
	BodyWake
)

func (k EventKind) String() string {
	switch k {
	case ContactBegin:
		return "contact_begin"
	case ContactStay:
		return "contact_stay"
	case ContactEnd:
		return "contact_end"
	case BodySleep:
		return "sleep"
	case BodyWake:
		return "wake"
	}
	return "unknown"
}

// Event is a state transition detected during a step. Sleep and wake events only set BodyA.
type Event struct {
	Kind         EventKind
	BodyA, BodyB BodyID
}

// Engine is a dynamics world. Step must not run concurrently with AddBody or RemoveBody;
// implementations document which readers may run alongside Step.
type Engine interface {
	AddBody(def BodyDef) BodyID
	// RemoveBody returns false when id is unknown.
	RemoveBody(id BodyID) bool
	// Step advances the world by dt seconds.
	Step(dt float64)

	State(id BodyID) (BodyState, bool)
	// SetState overwrites the motion state and wakes the body.
	SetState(id BodyID, state BodyState) bool
	// WorldTransform returns the column-major transform of the body, translation in the last column.
	WorldTransform(id BodyID) (mgl64.Mat4, bool)

	// Manifolds returns the contacts found by the last Step. The slice is owned by the engine
	// and is valid until the next Step.
	Manifolds() []Manifold
	// Events returns the transitions of the last Step, same ownership as Manifolds.
	Events() []Event

	Len() int
}

// Factory creates an engine with the given gravity.
type Factory func(gravity mgl64.Vec3) Engine
