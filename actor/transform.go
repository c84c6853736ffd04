package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform is a rigid placement: translation plus unit-quaternion orientation.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// NewTransform creates a transform at position with the given orientation.
// A zero quaternion is replaced by the identity.
func NewTransform(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	if rotation.Len() == 0 {
		rotation = mgl64.QuatIdent()
	}
	return Transform{Position: position, Rotation: rotation.Normalize()}
}

// ToLocal maps a world-space direction into the transform's local frame.
func (t Transform) ToLocal(direction mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(direction)
}

// ToWorld maps a local-space point into world space.
func (t Transform) ToWorld(point mgl64.Vec3) mgl64.Vec3 {
	return t.Position.Add(t.Rotation.Rotate(point))
}

// Mat4 returns the column-major matrix of the transform, translation in the last column.
func (t Transform) Mat4() mgl64.Mat4 {
	return mgl64.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).Mul4(t.Rotation.Mat4())
}
