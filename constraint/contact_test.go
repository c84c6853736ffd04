package constraint

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
)

func createDynamicBody(position, velocity mgl64.Vec3, mass float64) *actor.RigidBody {
	rb := actor.NewRigidBody(actor.NewTransform(position, mgl64.QuatIdent()), &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic, mass)
	rb.Velocity = velocity
	rb.PresolveVelocity = velocity
	return rb
}

func createStaticBody(position mgl64.Vec3) *actor.RigidBody {
	return actor.NewRigidBody(actor.NewTransform(position, mgl64.QuatIdent()), &actor.Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, actor.BodyTypeStatic, 0)
}

// =============================================================================
// SolvePosition
// =============================================================================

func TestContactConstraint_SolvePosition_NoPenetration(t *testing.T) {
	a := createDynamicBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}, 1)
	b := createDynamicBody(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{}, 1)
	c := &ContactConstraint{BodyA: a, BodyB: b, Normal: mgl64.Vec3{1, 0, 0}, Points: []ContactPoint{{Position: mgl64.Vec3{1, 0, 0}}}}

	if c.Penetrating() {
		t.Error("Penetrating() = true for a touching contact")
	}
	c.SolvePosition(0.016)
	if a.Transform.Position != (mgl64.Vec3{}) || b.Transform.Position != (mgl64.Vec3{2, 0, 0}) {
		t.Errorf("bodies moved: %v %v", a.Transform.Position, b.Transform.Position)
	}
}

func TestContactConstraint_SolvePosition_EqualMasses(t *testing.T) {
	a := createDynamicBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}, 1)
	b := createDynamicBody(mgl64.Vec3{1.8, 0, 0}, mgl64.Vec3{}, 1)
	c := &ContactConstraint{
		BodyA:  a,
		BodyB:  b,
		Normal: mgl64.Vec3{1, 0, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0.9, 0, 0}, Penetration: 0.2}},
	}

	c.SolvePosition(0.016)

	// the lever arm is parallel to the normal: pure translation, split evenly
	if math.Abs(a.Transform.Position.X()+0.1) > 1e-4 {
		t.Errorf("A.X = %v, want -0.1", a.Transform.Position.X())
	}
	if math.Abs(b.Transform.Position.X()-1.9) > 1e-4 {
		t.Errorf("B.X = %v, want 1.9", b.Transform.Position.X())
	}
}

func TestContactConstraint_SolvePosition_AgainstStatic(t *testing.T) {
	floor := createStaticBody(mgl64.Vec3{0, -1, 0})
	ball := createDynamicBody(mgl64.Vec3{0, 0.9, 0}, mgl64.Vec3{}, 1)
	c := &ContactConstraint{
		BodyA:  floor,
		BodyB:  ball,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0, -0.1, 0}, Penetration: 0.1}},
	}

	c.SolvePosition(0.016)

	if floor.Transform.Position != (mgl64.Vec3{0, -1, 0}) {
		t.Errorf("static body moved to %v", floor.Transform.Position)
	}
	if math.Abs(ball.Transform.Position.Y()-1.0) > 1e-4 {
		t.Errorf("ball.Y = %v, want 1.0", ball.Transform.Position.Y())
	}
}

func TestContactConstraint_SolvePosition_SharedBetweenPoints(t *testing.T) {
	floor := createStaticBody(mgl64.Vec3{0, -1, 0})
	box := actor.NewRigidBody(actor.NewTransform(mgl64.Vec3{0, 0.4, 0}, mgl64.QuatIdent()), &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, actor.BodyTypeDynamic, 1)

	var points []ContactPoint
	for _, corner := range []mgl64.Vec3{{-0.5, -0.1, -0.5}, {0.5, -0.1, -0.5}, {0.5, -0.1, 0.5}, {-0.5, -0.1, 0.5}} {
		points = append(points, ContactPoint{Position: corner, Penetration: 0.1})
	}
	c := &ContactConstraint{BodyA: floor, BodyB: box, Normal: mgl64.Vec3{0, 1, 0}, Points: points}

	c.SolvePosition(0.016)

	y := box.Transform.Position.Y()
	if y <= 0.4 || y > 0.5+1e-6 {
		t.Errorf("box.Y = %v, want pushed up but not past 0.5", y)
	}
	if math.Abs(box.Transform.Rotation.Len()-1) > 1e-9 {
		t.Error("rotation not normalized after correction")
	}
}

func TestContactConstraint_SolvePosition_KinematicPushes(t *testing.T) {
	kinematic := actor.NewRigidBody(actor.NewTransform(mgl64.Vec3{}, mgl64.QuatIdent()), &actor.Sphere{Radius: 1}, actor.BodyTypeKinematic, 1)
	ball := createDynamicBody(mgl64.Vec3{1.9, 0, 0}, mgl64.Vec3{}, 1)
	c := &ContactConstraint{
		BodyA:  kinematic,
		BodyB:  ball,
		Normal: mgl64.Vec3{1, 0, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0.95, 0, 0}, Penetration: 0.1}},
	}

	c.SolvePosition(0.016)

	if kinematic.Transform.Position != (mgl64.Vec3{}) {
		t.Errorf("kinematic body moved to %v", kinematic.Transform.Position)
	}
	if math.Abs(ball.Transform.Position.X()-2.0) > 1e-4 {
		t.Errorf("ball.X = %v, want 2.0", ball.Transform.Position.X())
	}
}

// =============================================================================
// SolveVelocity
// =============================================================================

func TestContactConstraint_SolveVelocity_StopsApproach(t *testing.T) {
	floor := createStaticBody(mgl64.Vec3{0, -1, 0})
	ball := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -3, 0}, 1)
	c := &ContactConstraint{
		BodyA:  floor,
		BodyB:  ball,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0, 0, 0}, Penetration: 0.01}},
	}

	c.SolveVelocity(0.016)

	if math.Abs(ball.Velocity.Y()) > 1e-9 {
		t.Errorf("Velocity.Y = %v, want 0 without restitution", ball.Velocity.Y())
	}
}

func TestContactConstraint_SolveVelocity_Restitution(t *testing.T) {
	floor := createStaticBody(mgl64.Vec3{0, -1, 0})
	floor.Material.Restitution = 1
	ball := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -4, 0}, 1)
	ball.Material.Restitution = 1
	c := &ContactConstraint{
		BodyA:  floor,
		BodyB:  ball,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0, 0, 0}, Penetration: 0.01}},
	}

	c.SolveVelocity(0.016)

	if math.Abs(ball.Velocity.Y()-4) > 1e-9 {
		t.Errorf("Velocity.Y = %v, want 4 (perfect bounce)", ball.Velocity.Y())
	}
}

func TestContactConstraint_SolveVelocity_SeparatingIsUntouched(t *testing.T) {
	floor := createStaticBody(mgl64.Vec3{0, -1, 0})
	ball := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 2, 0}, 1)
	c := &ContactConstraint{
		BodyA:  floor,
		BodyB:  ball,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0, 0, 0}, Penetration: 0.01}},
	}

	c.SolveVelocity(0.016)

	if ball.Velocity != (mgl64.Vec3{0, 2, 0}) {
		t.Errorf("Velocity = %v, want unchanged", ball.Velocity)
	}
}

func TestContactConstraint_SolveVelocity_Friction(t *testing.T) {
	tests := []struct {
		name      string
		friction  float64
		wantSlide bool
	}{
		{"high friction sticks", 1.0, false},
		{"no friction slides", 0.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floor := createStaticBody(mgl64.Vec3{0, -1, 0})
			floor.Material.StaticFriction, floor.Material.DynamicFriction = tt.friction, tt.friction

			box := actor.NewRigidBody(actor.NewTransform(mgl64.Vec3{0, 0.5, 0}, mgl64.QuatIdent()), &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, actor.BodyTypeDynamic, 1)
			box.Material.StaticFriction, box.Material.DynamicFriction = tt.friction, tt.friction
			box.SetLocalInertia(mgl64.Mat3{})
			box.Velocity = mgl64.Vec3{0.1, -2, 0}
			box.PresolveVelocity = box.Velocity

			c := &ContactConstraint{
				BodyA:  floor,
				BodyB:  box,
				Normal: mgl64.Vec3{0, 1, 0},
				Points: []ContactPoint{{Position: mgl64.Vec3{0, 0, 0}, Penetration: 0.01}},
			}
			c.SolveVelocity(0.016)

			sliding := math.Abs(box.Velocity.X()) > 1e-6
			if sliding != tt.wantSlide {
				t.Errorf("Velocity.X = %v, sliding = %v, want %v", box.Velocity.X(), sliding, tt.wantSlide)
			}
		})
	}
}

func TestContactConstraint_SolveVelocity_Resting(t *testing.T) {
	const restingSpeed = 2 * 20 * 0.016

	tests := []struct {
		name    string
		before  float64 // presolve normal velocity
		after   float64 // velocity left by the position solve
		bounce  float64
		wantVel float64
	}{
		{"push-out is cancelled", -0.32, 0.015, 0, 0},
		{"resting never bounces", -0.32, 0, 1, 0},
		{"fast approach still bounces", -4, 0, 1, 4},
		{"jump keeps its speed", 2, 2, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floor := createStaticBody(mgl64.Vec3{0, -1, 0})
			floor.Material.Restitution = tt.bounce
			ball := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, tt.after, 0}, 1)
			ball.PresolveVelocity = mgl64.Vec3{0, tt.before, 0}
			ball.Material.Restitution = tt.bounce

			c := &ContactConstraint{
				BodyA:        floor,
				BodyB:        ball,
				Normal:       mgl64.Vec3{0, 1, 0},
				Points:       []ContactPoint{{Position: mgl64.Vec3{0, 0, 0}, Penetration: 0.001}},
				RestingSpeed: restingSpeed,
			}
			c.SolveVelocity(0.016)

			if math.Abs(ball.Velocity.Y()-tt.wantVel) > 1e-9 {
				t.Errorf("Velocity.Y = %v, want %v", ball.Velocity.Y(), tt.wantVel)
			}
		})
	}
}
