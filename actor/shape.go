package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeInterface is the interface that all collision shapes must implement
type ShapeInterface interface {
	// ComputeAABB caches the world-space bounding box of the shape at transform
	ComputeAABB(transform Transform)
	GetAABB() AABB
	// ComputeInertia returns the diagonal local inertia tensor for a body of the given mass
	ComputeInertia(mass float64) mgl64.Mat3
	// Support returns the furthest local point along a local direction
	Support(direction mgl64.Vec3) mgl64.Vec3
	// GetContactFeature returns the local vertices of the feature facing direction:
	// one point for a sphere, a CCW quad for a box face
	GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
	aabb        AABB
}

func (b *Box) ComputeAABB(transform Transform) {
	// world extent of a rotated box: |R| * halfExtents
	r := transform.Rotation.Mat4().Mat3()
	var extent mgl64.Vec3
	for row := 0; row < 3; row++ {
		extent[row] = math.Abs(r.At(row, 0))*b.HalfExtents[0] +
			math.Abs(r.At(row, 1))*b.HalfExtents[1] +
			math.Abs(r.At(row, 2))*b.HalfExtents[2]
	}

	b.aabb = AABB{
		Min: transform.Position.Sub(extent),
		Max: transform.Position.Add(extent),
	}
}

func (b *Box) GetAABB() AABB {
	return b.aabb
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	// I = m/12 * (a² + b²) for each axis
	factor := mass / 12.0

	return mgl64.Diag3(mgl64.Vec3{
		factor * (y*y + z*z),
		factor * (x*x + z*z),
		factor * (x*x + y*y),
	})
}

func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	support := b.HalfExtents
	for i := 0; i < 3; i++ {
		if direction[i] < 0 {
			support[i] = -support[i]
		}
	}

	return support
}

// GetContactFeature returns the face whose normal is most aligned with direction,
// wound counter-clockwise when seen from outside.
func (b *Box) GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	axis := 0
	for i := 1; i < 3; i++ {
		if math.Abs(direction[i]) > math.Abs(direction[axis]) {
			axis = i
		}
	}
	sign := 1.0
	if direction[axis] < 0 {
		sign = -1.0
	}

	// u, v span the face; (u × v) points along +axis
	u := (axis + 1) % 3
	v := (axis + 2) % 3
	corner := func(su, sv float64) mgl64.Vec3 {
		var p mgl64.Vec3
		p[axis] = sign * b.HalfExtents[axis]
		p[u] = su * b.HalfExtents[u]
		p[v] = sv * b.HalfExtents[v]
		return p
	}

	if sign > 0 {
		return []mgl64.Vec3{corner(-1, -1), corner(1, -1), corner(1, 1), corner(-1, 1)}
	}
	return []mgl64.Vec3{corner(-1, -1), corner(-1, 1), corner(1, 1), corner(1, -1)}
}

// Sphere represents a spherical collision shape
type Sphere struct {
	Radius float64
	aabb   AABB
}

// ComputeAABB calculates the axis-aligned bounding box for the sphere
func (s *Sphere) ComputeAABB(transform Transform) {
	// not affected by rotation
	radiusVec := mgl64.Vec3{s.Radius, s.Radius, s.Radius}

	s.aabb = AABB{
		Min: transform.Position.Sub(radiusVec),
		Max: transform.Position.Add(radiusVec),
	}
}

func (s *Sphere) GetAABB() AABB {
	return s.aabb
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Mat3 {
	// I = 2/5 * m * r², identical on all axes
	i := (2.0 / 5.0) * mass * s.Radius * s.Radius

	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	length := direction.Len()
	if length < 1e-12 {
		return mgl64.Vec3{s.Radius, 0, 0}
	}
	return direction.Mul(s.Radius / length)
}

func (s *Sphere) GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	return []mgl64.Vec3{s.Support(direction)}
}
