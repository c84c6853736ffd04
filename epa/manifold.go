package epa

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
	"github.com/snower/physync/constraint"
)

const (
	// MaxManifoldPoints bounds the contact points kept per pair
	MaxManifoldPoints = 4

	clipTolerance = 1e-6
)

// GenerateManifold returns up to four contact points for bodies touching along normal (A toward B).
//
// The face of A facing B and the face of B facing A are fetched; the one with more vertices is the
// reference, the other the incident. The incident polygon is clipped against the side planes of the
// reference face (Sutherland-Hodgman) and every clipped vertex under the reference plane becomes a
// contact with its own depth. A single incident vertex (sphere) is reported with the given depth.
func GenerateManifold(bodyA, bodyB *actor.RigidBody, normal mgl64.Vec3, depth float64) []constraint.ContactPoint {
	featureA := worldFeature(bodyA, normal)
	featureB := worldFeature(bodyB, normal.Mul(-1))

	reference, incident := featureA, featureB
	refNormal := normal
	if len(featureB) > len(featureA) {
		reference, incident = featureB, featureA
		refNormal = normal.Mul(-1)
	}

	if len(incident) == 1 || len(reference) < 3 {
		return []constraint.ContactPoint{{Position: incident[0], Penetration: depth}}
	}

	clipped := clipAgainstSides(incident, reference, refNormal)
	offset := reference[0].Dot(refNormal)

	points := make([]constraint.ContactPoint, 0, len(clipped))
	for _, p := range clipped {
		penetration := offset - p.Dot(refNormal)
		if penetration >= -clipTolerance {
			points = append(points, constraint.ContactPoint{Position: p, Penetration: math.Max(penetration, 0)})
		}
	}

	if len(points) == 0 {
		return []constraint.ContactPoint{{Position: bodyB.SupportWorld(normal.Mul(-1)), Penetration: depth}}
	}
	if len(points) > MaxManifoldPoints {
		points = reducePoints(points, normal)
	}
	return points
}

// worldFeature returns the world-space feature of body facing direction.
func worldFeature(body *actor.RigidBody, direction mgl64.Vec3) []mgl64.Vec3 {
	feature := body.Shape.GetContactFeature(body.Transform.ToLocal(direction))
	world := make([]mgl64.Vec3, len(feature))
	for i, p := range feature {
		world[i] = body.Transform.ToWorld(p)
	}
	return world
}

// clipAgainstSides keeps the part of polygon that lies inside every side plane of reference.
func clipAgainstSides(polygon, reference []mgl64.Vec3, normal mgl64.Vec3) []mgl64.Vec3 {
	center := centerOf(reference)
	for i := range reference {
		if len(polygon) == 0 {
			break
		}
		v1 := reference[i]
		v2 := reference[(i+1)%len(reference)]

		inward := v2.Sub(v1).Cross(normal)
		if inward.Len() < 1e-12 {
			continue
		}
		inward = inward.Normalize()
		if center.Sub(v1).Dot(inward) < 0 {
			inward = inward.Mul(-1)
		}
		polygon = clipPolygon(polygon, v1, inward)
	}
	return polygon
}

// clipPolygon is one Sutherland-Hodgman pass: keeps the vertices with (p - origin)·normal >= 0.
func clipPolygon(polygon []mgl64.Vec3, origin, normal mgl64.Vec3) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, 0, len(polygon)+2)
	for i, current := range polygon {
		next := polygon[(i+1)%len(polygon)]
		dc := current.Sub(origin).Dot(normal)
		dn := next.Sub(origin).Dot(normal)

		if dc >= -clipTolerance {
			out = append(out, current)
		}
		if (dc >= -clipTolerance) != (dn >= -clipTolerance) {
			out = append(out, current.Add(next.Sub(current).Mul(dc/(dc-dn))))
		}
	}
	return out
}

func centerOf(points []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}

func tangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	t1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal.X()) > 0.9 {
		t1 = mgl64.Vec3{0, 1, 0}
	}
	t1 = t1.Sub(normal.Mul(t1.Dot(normal))).Normalize()
	return t1, normal.Cross(t1).Normalize()
}

// reducePoints keeps the extreme points along both tangent axes, in their original order.
func reducePoints(points []constraint.ContactPoint, normal mgl64.Vec3) []constraint.ContactPoint {
	t1, t2 := tangentBasis(normal)

	var extremes [4]int
	values := [4]float64{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for i, p := range points {
		x := p.Position.Dot(t1)
		y := p.Position.Dot(t2)
		if x < values[0] {
			values[0], extremes[0] = x, i
		}
		if x > values[1] {
			values[1], extremes[1] = x, i
		}
		if y < values[2] {
			values[2], extremes[2] = y, i
		}
		if y > values[3] {
			values[3], extremes[3] = y, i
		}
	}

	keep := make([]bool, len(points))
	for _, i := range extremes {
		keep[i] = true
	}
	result := make([]constraint.ContactPoint, 0, MaxManifoldPoints)
	for i, p := range points {
		if keep[i] {
			result = append(result, p)
		}
	}
	return result
}
