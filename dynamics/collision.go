package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
	"github.com/snower/physync/constraint"
	"github.com/snower/physync/epa"
	"github.com/snower/physync/gjk"
)

// Collide runs the narrow phase for one pair. The returned normal points from a to b.
// Sphere pairs are solved analytically, everything else goes through GJK and EPA.
func Collide(a, b *actor.RigidBody) (*constraint.ContactConstraint, bool) {
	switch shapeA := a.Shape.(type) {
	case *actor.Sphere:
		switch shapeB := b.Shape.(type) {
		case *actor.Sphere:
			return collideSpheres(a, shapeA, b, shapeB)
		case *actor.Box:
			contact, ok := collideBoxSphere(b, shapeB, a, shapeA)
			if ok {
				contact = flip(contact)
			}
			return contact, ok
		}
	case *actor.Box:
		if shapeB, ok := b.Shape.(*actor.Sphere); ok {
			return collideBoxSphere(a, shapeA, b, shapeB)
		}
	}

	return collideConvex(a, b)
}

func collideSpheres(a *actor.RigidBody, sa *actor.Sphere, b *actor.RigidBody, sb *actor.Sphere) (*constraint.ContactConstraint, bool) {
	delta := b.Transform.Position.Sub(a.Transform.Position)
	distance := delta.Len()
	penetration := sa.Radius + sb.Radius - distance
	if penetration <= 0 {
		return nil, false
	}

	normal := mgl64.Vec3{0, 1, 0}
	if distance > 1e-9 {
		normal = delta.Mul(1 / distance)
	}

	// halfway between both surfaces
	point := a.Transform.Position.Add(normal.Mul(sa.Radius - penetration/2))

	return &constraint.ContactConstraint{
		BodyA:  a,
		BodyB:  b,
		Normal: normal,
		Points: []constraint.ContactPoint{{Position: point, Penetration: penetration}},
	}, true
}

// collideBoxSphere returns the contact with the normal pointing from the box to the sphere.
func collideBoxSphere(box *actor.RigidBody, shape *actor.Box, sphere *actor.RigidBody, ball *actor.Sphere) (*constraint.ContactConstraint, bool) {
	center := box.Transform.ToLocal(sphere.Transform.Position.Sub(box.Transform.Position))

	var closest mgl64.Vec3
	inside := true
	for i := 0; i < 3; i++ {
		closest[i] = math.Max(-shape.HalfExtents[i], math.Min(shape.HalfExtents[i], center[i]))
		if closest[i] != center[i] {
			inside = false
		}
	}

	var localNormal, localPoint mgl64.Vec3
	var penetration float64

	if inside {
		// push out through the nearest face
		axis, best := 0, math.Inf(1)
		for i := 0; i < 3; i++ {
			if d := shape.HalfExtents[i] - math.Abs(center[i]); d < best {
				axis, best = i, d
			}
		}
		sign := 1.0
		if center[axis] < 0 {
			sign = -1.0
		}
		localNormal[axis] = sign
		localPoint = center
		localPoint[axis] = sign * shape.HalfExtents[axis]
		penetration = ball.Radius + best
	} else {
		delta := center.Sub(closest)
		distance := delta.Len()
		if distance >= ball.Radius {
			return nil, false
		}
		localNormal = delta.Mul(1 / distance)
		localPoint = closest
		penetration = ball.Radius - distance
	}

	return &constraint.ContactConstraint{
		BodyA:  box,
		BodyB:  sphere,
		Normal: box.Transform.Rotation.Rotate(localNormal),
		Points: []constraint.ContactPoint{{Position: box.Transform.ToWorld(localPoint), Penetration: penetration}},
	}, true
}

func collideConvex(a, b *actor.RigidBody) (*constraint.ContactConstraint, bool) {
	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)
	simplex.Reset()

	if !gjk.GJK(a, b, simplex) {
		return nil, false
	}
	contact, err := epa.EPA(a, b, simplex)
	if err != nil || !contact.Penetrating() {
		return nil, false
	}
	return &contact, true
}

func flip(c *constraint.ContactConstraint) *constraint.ContactConstraint {
	c.BodyA, c.BodyB = c.BodyB, c.BodyA
	c.Normal = c.Normal.Mul(-1)
	return c
}
