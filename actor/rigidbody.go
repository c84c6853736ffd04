package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by gravity and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	BodyTypeStatic

	// BodyTypeKinematic bodies move only by their own velocity: no gravity, no contact response.
	// They still take part in collision detection and push dynamic bodies away.
	BodyTypeKinematic
)

func (t BodyType) String() string {
	switch t {
	case BodyTypeDynamic:
		return "dynamic"
	case BodyTypeStatic:
		return "static"
	case BodyTypeKinematic:
		return "kinematic"
	}
	return "unknown"
}

type Material struct {
	mass        float64
	Restitution float64 // 0 = no rebound, 1 = perfect restitution

	StaticFriction  float64
	DynamicFriction float64
	LinearDamping   float64 // per second, typical 0.01
	AngularDamping  float64 // per second, typical 0.05
}

func (material Material) GetMass() float64 {
	return material.mass
}

// InverseMass is zero for static and kinematic bodies.
func (material Material) InverseMass() float64 {
	if material.mass <= 0 || math.IsInf(material.mass, 1) {
		return 0
	}
	return 1.0 / material.mass
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// ID is assigned by the world that owns the body; 0 means unassigned
	ID uint32

	// Spatial properties
	PreviousTransform Transform
	Transform         Transform

	// Linear motion
	PresolveVelocity mgl64.Vec3
	Velocity         mgl64.Vec3 // m/s

	// Angular motion
	PresolveAngularVelocity mgl64.Vec3
	AngularVelocity         mgl64.Vec3 // rad/s

	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3

	IsSleeping bool
	SleepTimer float64
	// CanSleep is false for bodies that must never deactivate
	CanSleep bool
	// CCDMotionThreshold, when > 0, is the largest distance the body may travel in one substep
	CCDMotionThreshold float64

	// Physical properties
	Material Material
	BodyType BodyType

	Shape ShapeInterface
}

// NewRigidBody creates a new rigid body.
// Dynamic bodies with mass <= 0 become static. The inertia tensor is computed from the shape;
// use SetLocalInertia to override it.
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, mass float64) *RigidBody {
	if bodyType == BodyTypeDynamic && mass <= 0 {
		bodyType = BodyTypeStatic
	}

	rb := &RigidBody{
		PreviousTransform: transform,
		Transform:         transform,
		Shape:             shape,
		BodyType:          bodyType,
		CanSleep:          true,
	}

	if bodyType == BodyTypeDynamic {
		rb.Material.mass = mass
		rb.SetLocalInertia(shape.ComputeInertia(mass))
	} else {
		rb.Material.mass = math.Inf(1)
	}

	rb.Shape.ComputeAABB(rb.Transform)

	return rb
}

// SetLocalInertia replaces the local inertia tensor. A singular tensor (e.g. zero)
// locks the body's rotation.
func (rb *RigidBody) SetLocalInertia(inertia mgl64.Mat3) {
	rb.InertiaLocal = inertia
	if inertia.Det() == 0 {
		rb.InverseInertiaLocal = mgl64.Mat3{}
		return
	}
	rb.InverseInertiaLocal = inertia.Inv()
}

// IsDynamic reports whether the solver may move the body.
func (rb *RigidBody) IsDynamic() bool {
	return rb.BodyType == BodyTypeDynamic
}

func (rb *RigidBody) TrySleep(dt float64, timeThreshold float64, velocityThreshold float64) {
	if !rb.IsDynamic() || !rb.CanSleep || rb.IsSleeping {
		return
	}

	if rb.Velocity.Len() < velocityThreshold && rb.AngularVelocity.Len() < velocityThreshold {
		rb.SleepTimer += dt
		if rb.SleepTimer >= timeThreshold {
			rb.Sleep()
		}
	} else {
		rb.SleepTimer = 0.0
	}
}

func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.Shape.ComputeAABB(rb.Transform)
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

// Awake resumes simulation. A body woken mid-step restarts from rest at its current transform.
func (rb *RigidBody) Awake() {
	if rb.IsSleeping {
		rb.PreviousTransform = rb.Transform
		rb.PresolveVelocity = mgl64.Vec3{}
		rb.PresolveAngularVelocity = mgl64.Vec3{}
	}
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// Integrate predicts the body's transform after dt.
func (rb *RigidBody) Integrate(dt float64, gravity mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic || rb.IsSleeping {
		return
	}

	rb.PreviousTransform = rb.Transform

	if rb.IsDynamic() {
		rb.Velocity = rb.Velocity.Add(gravity.Mul(dt))
		rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.Material.LinearDamping * dt))
		rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.Material.AngularDamping * dt))
	}

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	// q' = q + ½ ω q dt
	omega := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omega.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()

	rb.PresolveVelocity = rb.Velocity
	rb.PresolveAngularVelocity = rb.AngularVelocity

	rb.Shape.ComputeAABB(rb.Transform)
}

// Update derives the velocities of a dynamic body from the solved transform.
func (rb *RigidBody) Update(dt float64) {
	if !rb.IsDynamic() || rb.IsSleeping {
		return
	}

	rb.Velocity = rb.Transform.Position.Sub(rb.PreviousTransform.Position).Mul(1.0 / dt)
	qDelta := rb.Transform.Rotation.Mul(rb.PreviousTransform.Rotation.Conjugate()).Normalize()
	if qDelta.W >= 0.0 {
		rb.AngularVelocity = qDelta.V.Mul(2.0 / dt)
	} else {
		rb.AngularVelocity = qDelta.V.Mul(-2.0 / dt)
	}

	rb.Shape.ComputeAABB(rb.Transform)
}

// SupportWorld returns the furthest world-space point of the body along direction.
func (rb *RigidBody) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	localSupport := rb.Shape.Support(rb.Transform.ToLocal(direction))
	return rb.Transform.ToWorld(localSupport)
}

// GetInverseInertiaWorld returns R * I⁻¹ * Rᵀ, zero for bodies the solver cannot rotate.
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if !rb.IsDynamic() {
		return mgl64.Mat3{}
	}

	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}
