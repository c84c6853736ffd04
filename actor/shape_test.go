package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func vec3Equal(a, b mgl64.Vec3, tolerance float64) bool {
	return math.Abs(a.X()-b.X()) < tolerance &&
		math.Abs(a.Y()-b.Y()) < tolerance &&
		math.Abs(a.Z()-b.Z()) < tolerance
}

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func mat3Equal(a, b mgl64.Mat3, tolerance float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a.At(i, j)-b.At(i, j)) >= tolerance {
				return false
			}
		}
	}
	return true
}

// ========== INERTIA ==========

func TestBoxComputeInertia(t *testing.T) {
	tests := []struct {
		name         string
		box          *Box
		mass         float64
		expectedDiag mgl64.Vec3
	}{
		{
			name:         "unit cube",
			box:          &Box{HalfExtents: mgl64.Vec3{1, 1, 1}},
			mass:         12.0,
			expectedDiag: mgl64.Vec3{8, 8, 8},
		},
		{
			name:         "rectangular box 2x3x4",
			box:          &Box{HalfExtents: mgl64.Vec3{2, 3, 4}},
			mass:         12.0,
			expectedDiag: mgl64.Vec3{100, 80, 52},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.box.ComputeInertia(tt.mass)
			if !mat3Equal(got, mgl64.Diag3(tt.expectedDiag), 1e-9) {
				t.Errorf("ComputeInertia() = %v, want diag %v", got, tt.expectedDiag)
			}
		})
	}
}

func TestSphereComputeInertia(t *testing.T) {
	s := &Sphere{Radius: 2}
	got := s.ComputeInertia(5)
	// 2/5 * 5 * 4 = 8
	if !mat3Equal(got, mgl64.Diag3(mgl64.Vec3{8, 8, 8}), 1e-9) {
		t.Errorf("ComputeInertia() = %v, want diag 8", got)
	}
}

// ========== AABB ==========

func TestBoxComputeAABB(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}

	t.Run("identity", func(t *testing.T) {
		box.ComputeAABB(NewTransform(mgl64.Vec3{10, 0, 0}, mgl64.QuatIdent()))
		aabb := box.GetAABB()
		if !vec3Equal(aabb.Min, mgl64.Vec3{9, -2, -3}, 1e-9) || !vec3Equal(aabb.Max, mgl64.Vec3{11, 2, 3}, 1e-9) {
			t.Errorf("AABB = %v, want [9,-2,-3]..[11,2,3]", aabb)
		}
	})

	t.Run("rotated 90deg around Z swaps X and Y", func(t *testing.T) {
		box.ComputeAABB(NewTransform(mgl64.Vec3{}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})))
		aabb := box.GetAABB()
		if !vec3Equal(aabb.Max, mgl64.Vec3{2, 1, 3}, 1e-9) {
			t.Errorf("AABB.Max = %v, want [2,1,3]", aabb.Max)
		}
	})

	t.Run("rotated 45deg around Y grows", func(t *testing.T) {
		cube := &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}
		cube.ComputeAABB(NewTransform(mgl64.Vec3{}, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})))
		aabb := cube.GetAABB()
		if !floatEqual(aabb.Max.X(), math.Sqrt2, 1e-9) || !floatEqual(aabb.Max.Y(), 1, 1e-9) {
			t.Errorf("AABB.Max = %v, want [√2,1,√2]", aabb.Max)
		}
	})
}

func TestSphereComputeAABB(t *testing.T) {
	s := &Sphere{Radius: 0.5}
	s.ComputeAABB(NewTransform(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(1, mgl64.Vec3{1, 0, 0})))
	aabb := s.GetAABB()
	if !vec3Equal(aabb.Min, mgl64.Vec3{0.5, 1.5, 2.5}, 1e-9) || !vec3Equal(aabb.Max, mgl64.Vec3{1.5, 2.5, 3.5}, 1e-9) {
		t.Errorf("AABB = %v", aabb)
	}
}

// ========== SUPPORT ==========

func TestBoxSupport(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}
	tests := []struct {
		dir  mgl64.Vec3
		want mgl64.Vec3
	}{
		{mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 2, 3}},
		{mgl64.Vec3{-1, 1, -1}, mgl64.Vec3{-1, 2, -3}},
		{mgl64.Vec3{0, -1, 0}, mgl64.Vec3{1, -2, 3}},
	}
	for _, tt := range tests {
		if got := box.Support(tt.dir); !vec3Equal(got, tt.want, 1e-12) {
			t.Errorf("Support(%v) = %v, want %v", tt.dir, got, tt.want)
		}
	}
}

func TestSphereSupport(t *testing.T) {
	s := &Sphere{Radius: 2}
	if got := s.Support(mgl64.Vec3{0, 3, 0}); !vec3Equal(got, mgl64.Vec3{0, 2, 0}, 1e-12) {
		t.Errorf("Support() = %v, want [0,2,0]", got)
	}
	if got := s.Support(mgl64.Vec3{}); !floatEqual(got.Len(), 2, 1e-12) {
		t.Errorf("Support(zero) should still return a surface point, got %v", got)
	}
}

// ========== CONTACT FEATURE ==========

func TestBoxGetContactFeature(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}

	for _, dir := range []mgl64.Vec3{{0, 1, 0}, {0, -1, 0}, {1, 0.2, 0}, {0, 0, -5}} {
		face := box.GetContactFeature(dir)
		if len(face) != 4 {
			t.Fatalf("GetContactFeature(%v) returned %d points, want 4", dir, len(face))
		}

		normal := face[1].Sub(face[0]).Cross(face[2].Sub(face[0])).Normalize()
		if normal.Dot(dir.Normalize()) < 0.9 {
			t.Errorf("face for %v has normal %v, want outward and aligned", dir, normal)
		}
	}
}

func TestSphereGetContactFeature(t *testing.T) {
	s := &Sphere{Radius: 1}
	face := s.GetContactFeature(mgl64.Vec3{0, -1, 0})
	if len(face) != 1 || !vec3Equal(face[0], mgl64.Vec3{0, -1, 0}, 1e-12) {
		t.Errorf("GetContactFeature() = %v, want single point [0,-1,0]", face)
	}
}
