// Package gjk answers the boolean overlap query between two convex bodies with the
// Gilbert-Johnson-Keerthi algorithm.
//
// The search runs in the Minkowski difference A - B: the bodies overlap exactly when that
// set contains the origin. On overlap the final simplex is a tetrahedron enclosing the
// origin, which the epa package expands into a penetration depth and normal.
package gjk

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
)

const maxIterations = 32

// Simplex holds up to four Minkowski points. Points[Count-1] is always the newest.
type Simplex struct {
	Points [4]mgl64.Vec3
	Count  int
}

func (s *Simplex) Reset() {
	s.Count = 0
}

func (s *Simplex) push(p mgl64.Vec3) {
	s.Points[s.Count] = p
	s.Count++
}

// set replaces the simplex content, oldest point first.
func (s *Simplex) set(points ...mgl64.Vec3) {
	s.Count = copy(s.Points[:], points)
}

var SimplexPool = sync.Pool{
	New: func() interface{} {
		return &Simplex{}
	},
}

// MinkowskiSupport returns support(A, d) - support(B, -d).
func MinkowskiSupport(a, b *actor.RigidBody, direction mgl64.Vec3) mgl64.Vec3 {
	return a.SupportWorld(direction).Sub(b.SupportWorld(direction.Mul(-1)))
}

// GJK reports whether a and b overlap. simplex is overwritten; when the result is true and
// simplex.Count == 4 it encloses the origin.
func GJK(a, b *actor.RigidBody, simplex *Simplex) bool {
	direction := b.Transform.Position.Sub(a.Transform.Position)
	if direction.LenSqr() < 1e-8 {
		direction = mgl64.Vec3{1, 0, 0}
	}

	simplex.Reset()
	simplex.push(MinkowskiSupport(a, b, direction))

	direction = simplex.Points[0].Mul(-1)
	if direction.LenSqr() < 1e-16 {
		return true
	}

	for i := 0; i < maxIterations; i++ {
		p := MinkowskiSupport(a, b, direction)
		if p.Dot(direction) <= 0 {
			// the support point did not pass the origin: a separating axis exists
			return false
		}

		simplex.push(p)
		if evolve(simplex, &direction) {
			return true
		}
	}

	return false
}

// evolve reduces the simplex to the feature closest to the origin and picks the next
// search direction. It returns true once the origin is enclosed (or touched).
func evolve(s *Simplex, direction *mgl64.Vec3) bool {
	switch s.Count {
	case 2:
		return line(s, direction)
	case 3:
		return triangle(s, direction)
	case 4:
		return tetrahedron(s, direction)
	}
	return false
}

func line(s *Simplex, direction *mgl64.Vec3) bool {
	b, a := s.Points[0], s.Points[1]
	ab := b.Sub(a)
	ao := a.Mul(-1)

	if ab.LenSqr() < 1e-8 || ab.Dot(ao) <= 0 {
		if ao.LenSqr() < 1e-8 {
			return true
		}
		s.set(a)
		*direction = ao
		return false
	}

	perp := tripleCross(ab, ao, ab)
	if perp.LenSqr() < 1e-8 {
		// origin lies on the segment
		return true
	}
	*direction = perp
	return false
}

func triangle(s *Simplex, direction *mgl64.Vec3) bool {
	c, b, a := s.Points[0], s.Points[1], s.Points[2]
	ab := b.Sub(a)
	ac := c.Sub(a)
	ao := a.Mul(-1)
	normal := ab.Cross(ac)

	if normal.LenSqr() < 1e-10 {
		s.set(b, a)
		return line(s, direction)
	}

	if ab.Cross(normal).Dot(ao) > 0 {
		s.set(b, a)
		*direction = tripleCross(ab, ao, ab)
		return false
	}
	if normal.Cross(ac).Dot(ao) > 0 {
		s.set(c, a)
		*direction = tripleCross(ac, ao, ac)
		return false
	}

	if normal.Dot(ao) > 0 {
		*direction = normal
	} else {
		// keep the winding so that the normal faces the origin
		s.set(b, c, a)
		*direction = normal.Mul(-1)
	}
	return false
}

func tetrahedron(s *Simplex, direction *mgl64.Vec3) bool {
	d, c, b, a := s.Points[0], s.Points[1], s.Points[2], s.Points[3]
	ao := a.Mul(-1)

	faces := [3]struct {
		p, q     mgl64.Vec3 // with a, the face vertices
		opposite mgl64.Vec3
	}{
		{b, c, d},
		{c, d, b},
		{d, b, c},
	}

	for _, f := range faces {
		ap := f.p.Sub(a)
		aq := f.q.Sub(a)
		normal := ap.Cross(aq)
		if normal.Dot(f.opposite.Sub(a)) > 0 {
			normal = normal.Mul(-1)
		}

		if normal.LenSqr() < 1e-10 {
			s.set(c, b, a)
			return triangle(s, direction)
		}
		if normal.Dot(ao) > 0 {
			s.set(f.q, f.p, a)
			return triangle(s, direction)
		}
	}

	return true
}

// tripleCross returns (x × y) × z.
func tripleCross(x, y, z mgl64.Vec3) mgl64.Vec3 {
	return x.Cross(y).Cross(z)
}
