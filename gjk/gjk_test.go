package gjk

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
)

func boxAt(position mgl64.Vec3, halfExtents mgl64.Vec3, rotation mgl64.Quat) *actor.RigidBody {
	return actor.NewRigidBody(actor.NewTransform(position, rotation), &actor.Box{HalfExtents: halfExtents}, actor.BodyTypeDynamic, 1.0)
}

func sphereAt(position mgl64.Vec3, radius float64) *actor.RigidBody {
	return actor.NewRigidBody(actor.NewTransform(position, mgl64.QuatIdent()), &actor.Sphere{Radius: radius}, actor.BodyTypeDynamic, 1.0)
}

func TestMinkowskiSupport(t *testing.T) {
	a := sphereAt(mgl64.Vec3{0, 0, 0}, 1.0)
	b := sphereAt(mgl64.Vec3{3, 0, 0}, 1.0)

	// max(A.x) - min(B.x) = 1 - 2
	if got := MinkowskiSupport(a, b, mgl64.Vec3{1, 0, 0}); got.X() != -1 {
		t.Errorf("support.X = %v, want -1", got.X())
	}
}

func TestGJK(t *testing.T) {
	tilt := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1})

	tests := []struct {
		name string
		a, b *actor.RigidBody
		want bool
	}{
		{"spheres overlapping", sphereAt(mgl64.Vec3{}, 1), sphereAt(mgl64.Vec3{1.5, 0, 0}, 1), true},
		{"spheres separated", sphereAt(mgl64.Vec3{}, 1), sphereAt(mgl64.Vec3{2.5, 0, 0}, 1), false},
		{"spheres diagonal separated", sphereAt(mgl64.Vec3{}, 1), sphereAt(mgl64.Vec3{1.5, 1.5, 1.5}, 1), false},
		{"spheres concentric", sphereAt(mgl64.Vec3{}, 1), sphereAt(mgl64.Vec3{}, 1), true},
		{"boxes overlapping", boxAt(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()), boxAt(mgl64.Vec3{1.5, 0.5, 0}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()), true},
		{"boxes separated", boxAt(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()), boxAt(mgl64.Vec3{0, 2.5, 0}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()), false},
		{"box inside box", boxAt(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()), boxAt(mgl64.Vec3{}, mgl64.Vec3{5, 5, 5}, mgl64.QuatIdent()), true},
		{"rotated box corner reaches", boxAt(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()), boxAt(mgl64.Vec3{2.3, 0, 0}, mgl64.Vec3{1, 1, 1}, tilt), true},
		{"rotated box corner short", boxAt(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()), boxAt(mgl64.Vec3{2.5, 0, 0}, mgl64.Vec3{1, 1, 1}, tilt), false},
		{"sphere on box overlapping", boxAt(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()), sphereAt(mgl64.Vec3{0, 1.8, 0}, 1), true},
		{"sphere near box corner", boxAt(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()), sphereAt(mgl64.Vec3{1.8, 1.8, 0}, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			simplex := &Simplex{}
			if got := GJK(tt.a, tt.b, simplex); got != tt.want {
				t.Errorf("GJK() = %v, want %v", got, tt.want)
			}
			if got := GJK(tt.b, tt.a, simplex); got != tt.want {
				t.Errorf("GJK() swapped = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGJK_EnclosingSimplex(t *testing.T) {
	a := boxAt(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())
	b := boxAt(mgl64.Vec3{1.2, 0.3, 0.1}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())

	simplex := &Simplex{}
	if !GJK(a, b, simplex) {
		t.Fatal("expected overlap")
	}
	if simplex.Count != 4 {
		t.Fatalf("simplex.Count = %d, want 4", simplex.Count)
	}
}

func TestSimplexPool(t *testing.T) {
	s := SimplexPool.Get().(*Simplex)
	s.push(mgl64.Vec3{1, 2, 3})
	s.Reset()
	if s.Count != 0 {
		t.Errorf("Count = %d after Reset", s.Count)
	}
	SimplexPool.Put(s)
}

func TestLine(t *testing.T) {
	t.Run("origin beside segment", func(t *testing.T) {
		s := Simplex{}
		s.set(mgl64.Vec3{-1, 1, 0}, mgl64.Vec3{1, 1, 0})
		var direction mgl64.Vec3
		if line(&s, &direction) {
			t.Fatal("origin is not on the segment")
		}
		if s.Count != 2 {
			t.Errorf("Count = %d, want 2", s.Count)
		}
		if direction.Normalize().Sub(mgl64.Vec3{0, -1, 0}).Len() > 1e-9 {
			t.Errorf("direction = %v, want towards -Y", direction)
		}
	})

	t.Run("origin behind newest point", func(t *testing.T) {
		s := Simplex{}
		s.set(mgl64.Vec3{3, 0, 0}, mgl64.Vec3{2, 0, 0})
		var direction mgl64.Vec3
		line(&s, &direction)
		if s.Count != 1 || s.Points[0] != (mgl64.Vec3{2, 0, 0}) {
			t.Errorf("simplex = %v, want reduced to newest point", s)
		}
	})

	t.Run("origin on segment", func(t *testing.T) {
		s := Simplex{}
		s.set(mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0})
		var direction mgl64.Vec3
		if !line(&s, &direction) {
			t.Error("origin on segment should count as touching")
		}
	})
}

func TestTetrahedron(t *testing.T) {
	t.Run("contains origin", func(t *testing.T) {
		s := Simplex{}
		s.set(mgl64.Vec3{1, -1, -1}, mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{0, -1, 1}, mgl64.Vec3{0, 1, 0})
		var direction mgl64.Vec3
		if !tetrahedron(&s, &direction) {
			t.Error("expected origin inside")
		}
	})

	t.Run("origin outside", func(t *testing.T) {
		s := Simplex{}
		s.set(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{2, 1, 1}, mgl64.Vec3{1, 2, 1}, mgl64.Vec3{1, 1, 2})
		var direction mgl64.Vec3
		if tetrahedron(&s, &direction) {
			t.Error("expected origin outside")
		}
		if s.Count >= 4 {
			t.Errorf("Count = %d, want reduced simplex", s.Count)
		}
	})
}

func BenchmarkGJK_Boxes(b *testing.B) {
	a := boxAt(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())
	c := boxAt(mgl64.Vec3{1.5, 0.2, 0}, mgl64.Vec3{1, 1, 1}, mgl64.QuatRotate(0.3, mgl64.Vec3{0, 1, 0}))
	simplex := &Simplex{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GJK(a, c, simplex)
	}
}
