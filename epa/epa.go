// Package epa computes the penetration depth, normal and contact points of two overlapping
// convex bodies with the Expanding Polytope Algorithm.
//
// EPA starts from the tetrahedron GJK leaves around the origin and grows it inside the
// Minkowski difference A - B until the face closest to the origin lies on the boundary.
// That face gives the minimum translation: its normal points from A toward B and its
// distance is the penetration depth.
package epa

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
	"github.com/snower/physync/constraint"
	"github.com/snower/physync/gjk"
)

const (
	MaxIterations = 32

	// ConvergenceTolerance is the distance gain under which the closest face is final.
	ConvergenceTolerance = 0.001

	// NormalSnapThreshold zeroes tiny normal components so that resting boxes do not drift sideways.
	NormalSnapThreshold = 1e-8
)

// ErrNoConvergence is returned when the polytope did not settle within MaxIterations.
var ErrNoConvergence = fmt.Errorf("epa: no convergence after %d iterations", MaxIterations)

// EPA returns the contact between a and b. simplex must come from a successful gjk.GJK call.
func EPA(a, b *actor.RigidBody, simplex *gjk.Simplex) (constraint.ContactConstraint, error) {
	if simplex.Count < 4 {
		return touchingContact(a, b), nil
	}

	poly := polytopePool.Get().(*polytope)
	defer polytopePool.Put(poly)
	poly.init(simplex.Points)

	for i := 0; i < MaxIterations; i++ {
		closest, ok := poly.closest()
		if !ok {
			break
		}
		f := poly.faces[closest]

		support := gjk.MinkowskiSupport(a, b, f.normal)
		if support.Dot(f.normal)-f.distance < ConvergenceTolerance {
			return newContact(a, b, snapNormal(f.normal), f.distance), nil
		}

		if !poly.expand(support) {
			// the support point is already on the hull: this face is as good as it gets
			return newContact(a, b, snapNormal(f.normal), f.distance), nil
		}
	}

	return constraint.ContactConstraint{}, ErrNoConvergence
}

// touchingContact handles shapes that only touch: GJK stopped on a point or an edge
// through the origin, so the depth is zero and the normal joins the centers.
func touchingContact(a, b *actor.RigidBody) constraint.ContactConstraint {
	normal := b.Transform.Position.Sub(a.Transform.Position)
	if normal.Len() < NormalSnapThreshold {
		normal = mgl64.Vec3{0, 1, 0}
	}
	return newContact(a, b, normal.Normalize(), 0)
}

func newContact(a, b *actor.RigidBody, normal mgl64.Vec3, depth float64) constraint.ContactConstraint {
	return constraint.ContactConstraint{
		BodyA:  a,
		BodyB:  b,
		Normal: normal,
		Points: GenerateManifold(a, b, normal, depth),
	}
}

func snapNormal(normal mgl64.Vec3) mgl64.Vec3 {
	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < NormalSnapThreshold {
			normal[i] = 0
		}
	}
	if normal.Len() < NormalSnapThreshold {
		return mgl64.Vec3{0, 1, 0}
	}
	return normal.Normalize()
}
