package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
)

type Constraint interface {
	SolvePosition(dt float64)
	SolveVelocity(dt float64)
}

// ComputeRestitution averages the restitution of both materials.
func ComputeRestitution(matA, matB actor.Material) float64 {
	return (matA.Restitution + matB.Restitution) / 2.0
}

// ComputeStaticFriction is the geometric mean, so a frictionless surface stays frictionless.
func ComputeStaticFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.StaticFriction * matB.StaticFriction)
}

func ComputeDynamicFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.DynamicFriction * matB.DynamicFriction)
}

// inverseMass is zero for anything the solver must not move: static, kinematic and sleeping bodies.
func inverseMass(rb *actor.RigidBody) float64 {
	if !rb.IsDynamic() || rb.IsSleeping {
		return 0
	}
	return rb.Material.InverseMass()
}

func inverseInertia(rb *actor.RigidBody) mgl64.Mat3 {
	if rb.IsSleeping {
		return mgl64.Mat3{}
	}
	return rb.GetInverseInertiaWorld()
}

// rotate applies the small rotation deltaRotation (axis * angle) to the body.
func rotate(rb *actor.RigidBody, deltaRotation mgl64.Vec3) {
	if deltaRotation.LenSqr() < 1e-20 {
		return
	}
	q := rb.Transform.Rotation
	dq := mgl64.Quat{V: deltaRotation, W: 0}.Mul(q).Scale(0.5)
	rb.Transform.Rotation = q.Add(dq).Normalize()
}

func clampSmallVelocities(rb *actor.RigidBody) {
	const velocityThreshold = 1e-5

	if rb.Velocity.Len() < velocityThreshold {
		rb.Velocity = mgl64.Vec3{}
	}
	if rb.AngularVelocity.Len() < velocityThreshold {
		rb.AngularVelocity = mgl64.Vec3{}
	}
}
