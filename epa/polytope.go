package epa

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// face is a triangle of the polytope wound counter-clockwise seen from outside.
type face struct {
	a, b, c  int
	normal   mgl64.Vec3
	distance float64
}

type edge struct {
	from, to int
}

// polytope is a convex hull around the origin, vertices referenced by index.
type polytope struct {
	vertices []mgl64.Vec3
	faces    []face
	horizon  []edge
}

var polytopePool = sync.Pool{
	New: func() interface{} {
		return &polytope{
			vertices: make([]mgl64.Vec3, 0, 16),
			faces:    make([]face, 0, 32),
			horizon:  make([]edge, 0, 16),
		}
	},
}

func (p *polytope) init(points [4]mgl64.Vec3) {
	p.vertices = append(p.vertices[:0], points[:]...)
	p.faces = p.faces[:0]
	p.horizon = p.horizon[:0]

	// each face paired with the vertex it must face away from
	for _, tri := range [4][4]int{{0, 1, 2, 3}, {0, 3, 1, 2}, {0, 2, 3, 1}, {1, 3, 2, 0}} {
		f := p.makeFace(tri[0], tri[1], tri[2])
		if f.normal.Dot(p.vertices[tri[3]].Sub(p.vertices[tri[0]])) > 0 {
			f = p.makeFace(tri[0], tri[2], tri[1])
		}
		if f.distance < 0 {
			f.distance = 0
		}
		p.faces = append(p.faces, f)
	}
}

// makeFace builds the triangle (a, b, c) with the normal given by its winding.
func (p *polytope) makeFace(a, b, c int) face {
	va := p.vertices[a]
	normal := p.vertices[b].Sub(va).Cross(p.vertices[c].Sub(va))
	length := normal.Len()
	if length < 1e-12 {
		return face{a: a, b: b, c: c, distance: math.Inf(1)}
	}
	normal = normal.Mul(1 / length)
	return face{a: a, b: b, c: c, normal: normal, distance: normal.Dot(va)}
}

func (p *polytope) centroid() mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, v := range p.vertices {
		sum = sum.Add(v)
	}
	return sum.Mul(1 / float64(len(p.vertices)))
}

// closest returns the index of the non-degenerate face nearest to the origin.
func (p *polytope) closest() (int, bool) {
	best := -1
	for i := range p.faces {
		if math.IsInf(p.faces[i].distance, 1) {
			continue
		}
		if best < 0 || p.faces[i].distance < p.faces[best].distance {
			best = i
		}
	}
	return best, best >= 0
}

// expand adds support to the hull. It returns false when no face can see the point.
func (p *polytope) expand(support mgl64.Vec3) bool {
	p.horizon = p.horizon[:0]

	kept := p.faces[:0]
	removed := 0
	for _, f := range p.faces {
		if !math.IsInf(f.distance, 1) && f.normal.Dot(support.Sub(p.vertices[f.a])) > 0 {
			p.addHorizon(f.a, f.b)
			p.addHorizon(f.b, f.c)
			p.addHorizon(f.c, f.a)
			removed++
			continue
		}
		kept = append(kept, f)
	}
	p.faces = kept
	if removed == 0 {
		return false
	}

	p.vertices = append(p.vertices, support)
	index := len(p.vertices) - 1
	center := p.centroid()

	for _, e := range p.horizon {
		f := p.makeFace(e.from, e.to, index)
		// the origin may sit on the new face; orient it away from the hull's interior instead
		if !math.IsInf(f.distance, 1) && f.normal.Dot(p.vertices[e.from].Sub(center)) < 0 {
			f = p.makeFace(e.to, e.from, index)
		}
		if f.distance < 0 {
			f.distance = 0
		}
		p.faces = append(p.faces, f)
	}

	return true
}

// addHorizon records an edge of a removed face. An edge shared by two removed faces
// shows up once in each direction and cancels out.
func (p *polytope) addHorizon(from, to int) {
	for i, e := range p.horizon {
		if e.from == to && e.to == from {
			p.horizon[i] = p.horizon[len(p.horizon)-1]
			p.horizon = p.horizon[:len(p.horizon)-1]
			return
		}
	}
	p.horizon = append(p.horizon, edge{from: from, to: to})
}
