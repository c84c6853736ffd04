package physync

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// StateRecordSize is the wire size of one ObjectState:
// [ID:4][Position:12][Rotation:16][LinearVelocity:12][AngularVelocity:12][Flags:1], big-endian.
const StateRecordSize = 57

const flagInGround uint8 = 0x01

// ObjectState is the per-object snapshot exchanged between authority and followers.
type ObjectState struct {
	ID              uint32
	Position        mgl32.Vec3
	Rotation        mgl32.Quat
	LinearVelocity  mgl32.Vec3
	AngularVelocity mgl32.Vec3
	InGround        bool
}

// State snapshots the object for the wire.
func (o *Object) State() ObjectState {
	return ObjectState{
		ID:              uint32(o.ID),
		Position:        vec3To32(o.Position),
		Rotation:        mgl32.Quat{W: float32(o.Rotation.W), V: vec3To32(o.Rotation.V)},
		LinearVelocity:  vec3To32(o.LinearVelocity),
		AngularVelocity: vec3To32(o.AngularVelocity),
		InGround:        o.InGround,
	}
}

func (s ObjectState) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, StateRecordSize))
}

// AppendBinary appends the encoded record to b.
func (s ObjectState) AppendBinary(b []byte) ([]byte, error) {
	b = binary.BigEndian.AppendUint32(b, s.ID)
	b = appendVec3(b, s.Position)
	b = binary.BigEndian.AppendUint32(b, math.Float32bits(s.Rotation.W))
	b = appendVec3(b, s.Rotation.V)
	b = appendVec3(b, s.LinearVelocity)
	b = appendVec3(b, s.AngularVelocity)

	var flags uint8
	if s.InGround {
		flags |= flagInGround
	}
	return append(b, flags), nil
}

func (s *ObjectState) UnmarshalBinary(data []byte) error {
	if len(data) < StateRecordSize {
		return fmt.Errorf("%w: %d bytes", ErrShortRecord, len(data))
	}

	s.ID = binary.BigEndian.Uint32(data[0:4])
	s.Position = readVec3(data[4:16])
	s.Rotation.W = math.Float32frombits(binary.BigEndian.Uint32(data[16:20]))
	s.Rotation.V = readVec3(data[20:32])
	s.LinearVelocity = readVec3(data[32:44])
	s.AngularVelocity = readVec3(data[44:56])
	s.InGround = data[56]&flagInGround != 0
	return nil
}

// AppendStates encodes a batch of records back to back.
func AppendStates(b []byte, states ...ObjectState) []byte {
	for _, s := range states {
		b, _ = s.AppendBinary(b)
	}
	return b
}

// DecodeStates splits a batch produced by AppendStates.
func DecodeStates(data []byte) ([]ObjectState, error) {
	if len(data)%StateRecordSize != 0 {
		return nil, fmt.Errorf("%w: batch of %d bytes", ErrShortRecord, len(data))
	}

	states := make([]ObjectState, len(data)/StateRecordSize)
	for i := range states {
		if err := states[i].UnmarshalBinary(data[i*StateRecordSize:]); err != nil {
			return nil, err
		}
	}
	return states, nil
}

func appendVec3(b []byte, v mgl32.Vec3) []byte {
	for _, f := range v {
		b = binary.BigEndian.AppendUint32(b, math.Float32bits(f))
	}
	return b
}

func readVec3(data []byte) mgl32.Vec3 {
	return mgl32.Vec3{
		math.Float32frombits(binary.BigEndian.Uint32(data[0:4])),
		math.Float32frombits(binary.BigEndian.Uint32(data[4:8])),
		math.Float32frombits(binary.BigEndian.Uint32(data[8:12])),
	}
}

func vec3To32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func vec3To64(v mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}
