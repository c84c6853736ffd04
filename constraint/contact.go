package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
)

const (
	// DefaultCompliance is the XPBD compliance of a contact; 0 would be perfectly rigid.
	DefaultCompliance = 1e-7

	// minPenetration below which a point is considered touching, not overlapping
	minPenetration = 1e-8
)

type ContactPoint struct {
	Position    mgl64.Vec3
	Penetration float64 // >= 0
}

// ContactConstraint keeps BodyA and BodyB apart along Normal, which points from A to B.
type ContactConstraint struct {
	BodyA  *actor.RigidBody
	BodyB  *actor.RigidBody
	Points []ContactPoint
	Normal mgl64.Vec3

	// RestingSpeed is the approach speed at or below which a contact counts as resting,
	// usually 2·|g|·h. Resting contacts do not bounce and do not separate.
	RestingSpeed float64
}

// Penetrating reports whether at least one point overlaps.
func (c *ContactConstraint) Penetrating() bool {
	for _, p := range c.Points {
		if p.Penetration > minPenetration {
			return true
		}
	}
	return false
}

// generalizedWeight is w = 1/m + (r × n)ᵀ I⁻¹ (r × n).
func generalizedWeight(invMass float64, invInertia mgl64.Mat3, r, n mgl64.Vec3) float64 {
	rn := r.Cross(n)
	return invMass + invInertia.Mul3x1(rn).Dot(rn)
}

// SolvePosition pushes the bodies out of each other. The depth is shared between the
// penetrating points so a face contact is not corrected four times.
func (c *ContactConstraint) SolvePosition(dt float64) {
	bodyA, bodyB := c.BodyA, c.BodyB

	invMassA, invMassB := inverseMass(bodyA), inverseMass(bodyB)
	invInertiaA, invInertiaB := inverseInertia(bodyA), inverseInertia(bodyB)
	if invMassA == 0 && invMassB == 0 {
		return
	}

	count := 0
	for _, p := range c.Points {
		if p.Penetration > minPenetration {
			count++
		}
	}
	if count == 0 {
		return
	}

	alphaTilde := DefaultCompliance / (dt * dt)

	for _, p := range c.Points {
		if p.Penetration <= minPenetration {
			continue
		}

		rA := p.Position.Sub(bodyA.Transform.Position)
		rB := p.Position.Sub(bodyB.Transform.Position)
		w := generalizedWeight(invMassA, invInertiaA, rA, c.Normal) + generalizedWeight(invMassB, invInertiaB, rB, c.Normal)
		if w < 1e-12 {
			continue
		}

		lambda := (p.Penetration / float64(count)) / (w + alphaTilde)
		impulse := c.Normal.Mul(lambda)

		if invMassA > 0 {
			bodyA.Transform.Position = bodyA.Transform.Position.Sub(impulse.Mul(invMassA))
			rotate(bodyA, invInertiaA.Mul3x1(rA.Cross(impulse.Mul(-1))))
		}
		if invMassB > 0 {
			bodyB.Transform.Position = bodyB.Transform.Position.Add(impulse.Mul(invMassB))
			rotate(bodyB, invInertiaB.Mul3x1(rB.Cross(impulse)))
		}
	}
}

// SolveVelocity applies restitution and Coulomb friction on the velocities derived from the position solve.
func (c *ContactConstraint) SolveVelocity(dt float64) {
	bodyA, bodyB := c.BodyA, c.BodyB

	invMassA, invMassB := inverseMass(bodyA), inverseMass(bodyB)
	invInertiaA, invInertiaB := inverseInertia(bodyA), inverseInertia(bodyB)
	if invMassA == 0 && invMassB == 0 {
		return
	}

	restitution := ComputeRestitution(bodyA.Material, bodyB.Material)
	staticFriction := ComputeStaticFriction(bodyA.Material, bodyB.Material)
	dynamicFriction := ComputeDynamicFriction(bodyA.Material, bodyB.Material)

	apply := func(impulse, rA, rB mgl64.Vec3) {
		if invMassA > 0 {
			bodyA.Velocity = bodyA.Velocity.Sub(impulse.Mul(invMassA))
			bodyA.AngularVelocity = bodyA.AngularVelocity.Add(invInertiaA.Mul3x1(rA.Cross(impulse.Mul(-1))))
		}
		if invMassB > 0 {
			bodyB.Velocity = bodyB.Velocity.Add(impulse.Mul(invMassB))
			bodyB.AngularVelocity = bodyB.AngularVelocity.Add(invInertiaB.Mul3x1(rB.Cross(impulse)))
		}
	}

	for _, p := range c.Points {
		rA := p.Position.Sub(bodyA.Transform.Position)
		rB := p.Position.Sub(bodyB.Transform.Position)

		relative := bodyB.Velocity.Add(bodyB.AngularVelocity.Cross(rB)).
			Sub(bodyA.Velocity.Add(bodyA.AngularVelocity.Cross(rA)))
		normalVelocity := relative.Dot(c.Normal)

		relativeBefore := bodyB.PresolveVelocity.Add(bodyB.PresolveAngularVelocity.Cross(rB)).
			Sub(bodyA.PresolveVelocity.Add(bodyA.PresolveAngularVelocity.Cross(rA)))
		normalVelocityBefore := relativeBefore.Dot(c.Normal)

		wn := generalizedWeight(invMassA, invInertiaA, rA, c.Normal) + generalizedWeight(invMassB, invInertiaB, rB, c.Normal)
		if wn < 1e-12 {
			continue
		}

		// only bounce what was approaching fast enough before the solve
		resting := c.RestingSpeed > 0 && math.Abs(normalVelocityBefore) <= c.RestingSpeed
		target := 0.0
		if normalVelocityBefore < 0 && !resting {
			target = -restitution * normalVelocityBefore
		}
		lambdaN := (target - normalVelocity) / wn
		if !resting {
			lambdaN = math.Max(lambdaN, 0)
		}
		// a resting contact also loses the separation the position solve pushed into it
		apply(c.Normal.Mul(lambdaN), rA, rB)

		if lambdaN == 0 {
			continue
		}

		tangent := relative.Sub(c.Normal.Mul(normalVelocity))
		speed := tangent.Len()
		if speed < 1e-6 {
			continue
		}
		tangent = tangent.Mul(1 / speed)

		wt := generalizedWeight(invMassA, invInertiaA, rA, tangent) + generalizedWeight(invMassB, invInertiaB, rB, tangent)
		if wt < 1e-12 {
			continue
		}

		// stick when the impulse that cancels sliding stays inside the static cone
		normalImpulse := math.Abs(lambdaN)
		lambdaT := speed / wt
		if lambdaT > staticFriction*normalImpulse {
			lambdaT = math.Min(lambdaT, dynamicFriction*normalImpulse)
		}
		apply(tangent.Mul(-lambdaT), rA, rB)
	}

	if invMassA > 0 {
		clampSmallVelocities(bodyA)
	}
	if invMassB > 0 {
		clampSmallVelocities(bodyB)
	}
}
