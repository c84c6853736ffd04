package physync

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
	"github.com/snower/physync/engine"
)

// InGroundEpsilon is the vertical speed under which an object counts as grounded.
const InGroundEpsilon = 0.01

// Object is a physical entity of the game. The exported motion fields are written by
// World.Simulate and World.ApplyState; readers on other goroutines should either check
// Syncing or use Pose.
type Object struct {
	ID int

	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3

	// Size holds the half-extents of a box. Spheres use Size.X() as radius.
	Size mgl64.Vec3
	Mass float64

	IsSphere          bool
	IsCharacter       bool
	AffectedByPhysics bool

	// InGround is recomputed after every step that updates the object.
	InGround bool

	syncing atomic.Bool
	handle  engine.BodyID
	pose    atomic.Pointer[Pose]
}

// Pose is an immutable copy of an object's motion state.
type Pose struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	InGround        bool
}

// NewSphere creates a sphere. A positive mass makes it dynamic, otherwise it is kinematic.
func NewSphere(id int, position mgl64.Vec3, radius, mass float64) *Object {
	return &Object{
		ID:                id,
		Position:          position,
		Rotation:          mgl64.QuatIdent(),
		Size:              mgl64.Vec3{radius, radius, radius},
		Mass:              mass,
		IsSphere:          true,
		AffectedByPhysics: mass > 0,
	}
}

// NewBox creates a box. A positive mass makes it dynamic, otherwise it is kinematic.
func NewBox(id int, position, halfExtents mgl64.Vec3, mass float64) *Object {
	return &Object{
		ID:                id,
		Position:          position,
		Rotation:          mgl64.QuatIdent(),
		Size:              halfExtents,
		Mass:              mass,
		AffectedByPhysics: mass > 0,
	}
}

// NewCharacter creates a kinematic, player-driven box.
func NewCharacter(id int, position, halfExtents mgl64.Vec3) *Object {
	obj := NewBox(id, position, halfExtents, 0)
	obj.IsCharacter = true
	return obj
}

// Syncing reports whether the motion fields are being written right now.
func (o *Object) Syncing() bool {
	return o.syncing.Load()
}

// Registered reports whether the object has a live body.
func (o *Object) Registered() bool {
	return o.handle != 0
}

// Handle is the engine body of a registered object, 0 otherwise.
func (o *Object) Handle() engine.BodyID {
	return o.handle
}

// Pose returns the last pose published by the world. It never observes a half-written state.
// Before the first publication it returns the identity pose.
func (o *Object) Pose() Pose {
	if p := o.pose.Load(); p != nil {
		return *p
	}
	return Pose{Rotation: mgl64.QuatIdent()}
}

func (o *Object) publish() {
	o.pose.Store(&Pose{
		Position:        o.Position,
		Rotation:        o.Rotation,
		LinearVelocity:  o.LinearVelocity,
		AngularVelocity: o.AngularVelocity,
		InGround:        o.InGround,
	})
}

// write copies a body state into the object between the syncing markers.
func (o *Object) write(state engine.BodyState) {
	o.syncing.Store(true)
	defer o.syncing.Store(false)

	o.Position = state.Position
	o.Rotation = state.Rotation
	o.LinearVelocity = state.LinearVelocity
	o.AngularVelocity = state.AngularVelocity
	o.InGround = math.Abs(state.LinearVelocity.Y()) < InGroundEpsilon
	o.publish()
}

func (o *Object) bodyState() engine.BodyState {
	return engine.BodyState{
		Position:        o.Position,
		Rotation:        o.Rotation,
		LinearVelocity:  o.LinearVelocity,
		AngularVelocity: o.AngularVelocity,
	}
}

// shape builds the collision shape, rejecting sizes that would make a degenerate one.
func (o *Object) shape() (actor.ShapeInterface, error) {
	if o.IsSphere {
		if !(o.Size.X() > 0) {
			return nil, fmt.Errorf("%w: sphere radius %v", ErrInvalidSize, o.Size.X())
		}
		return &actor.Sphere{Radius: o.Size.X()}, nil
	}

	for i := range 3 {
		if !(o.Size[i] > 0) {
			return nil, fmt.Errorf("%w: box half-extents %v", ErrInvalidSize, o.Size)
		}
	}
	return &actor.Box{HalfExtents: o.Size}, nil
}
