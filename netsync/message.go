// Package netsync moves physics state between an authority world and follower worlds
// over websockets.
package netsync

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync"
	"github.com/vmihailenco/msgpack/v5"
)

// MessageType identifies the payload of an Envelope
type MessageType uint8

const (
	MsgWelcome   MessageType = 0x01 // server -> client, after join
	MsgSpawn     MessageType = 0x10
	MsgDespawn   MessageType = 0x11
	MsgStates    MessageType = 0x12 // batch of physync.ObjectState records
	MsgCollision MessageType = 0x13
	MsgInput     MessageType = 0x20 // client -> server
)

func (t MessageType) String() string {
	switch t {
	case MsgWelcome:
		return "welcome"
	case MsgSpawn:
		return "spawn"
	case MsgDespawn:
		return "despawn"
	case MsgStates:
		return "states"
	case MsgCollision:
		return "collision"
	case MsgInput:
		return "input"
	}
	return fmt.Sprintf("MessageType(%#x)", uint8(t))
}

// Envelope frames every websocket message. Payload is the msgpack encoding of the
// type-specific struct.
type Envelope struct {
	Type    MessageType        `msgpack:"t"`
	Tick    uint64             `msgpack:"k"`
	Payload msgpack.RawMessage `msgpack:"p"`
}

type Welcome struct {
	ClientID   string `msgpack:"client_id"`
	ObjectID   int    `msgpack:"object_id"`
	TickMillis int    `msgpack:"tick_ms"`
}

// ObjectSpec is everything a follower needs to build the same object.
type ObjectSpec struct {
	ID                int        `msgpack:"id"`
	Position          mgl64.Vec3 `msgpack:"pos"`
	Rotation          mgl64.Quat `msgpack:"rot"`
	Size              mgl64.Vec3 `msgpack:"size"`
	Mass              float64    `msgpack:"mass"`
	IsSphere          bool       `msgpack:"sphere"`
	IsCharacter       bool       `msgpack:"character"`
	AffectedByPhysics bool       `msgpack:"dynamic"`
}

type Spawn struct {
	Object ObjectSpec `msgpack:"object"`
}

type Despawn struct {
	ID int `msgpack:"id"`
}

type States struct {
	DeltaMillis int    `msgpack:"dt"`
	Records     []byte `msgpack:"records"`
}

type Collision struct {
	A int `msgpack:"a"`
	B int `msgpack:"b"`
}

type Input struct {
	ObjectID int        `msgpack:"object_id"`
	Velocity mgl64.Vec3 `msgpack:"vel"`
}

// Encode frames payload.
func Encode(t MessageType, tick uint64, payload any) ([]byte, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %v payload: %w", t, err)
	}
	return msgpack.Marshal(&Envelope{Type: t, Tick: tick, Payload: body})
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Into decodes the payload into v.
func (e Envelope) Into(v any) error {
	if err := msgpack.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %v payload: %w", e.Type, err)
	}
	return nil
}

func SpecOf(obj *physync.Object) ObjectSpec {
	return ObjectSpec{
		ID:                obj.ID,
		Position:          obj.Position,
		Rotation:          obj.Rotation,
		Size:              obj.Size,
		Mass:              obj.Mass,
		IsSphere:          obj.IsSphere,
		IsCharacter:       obj.IsCharacter,
		AffectedByPhysics: obj.AffectedByPhysics,
	}
}

// Object builds a fresh, unregistered object from s.
func (s ObjectSpec) Object() *physync.Object {
	return &physync.Object{
		ID:                s.ID,
		Position:          s.Position,
		Rotation:          s.Rotation,
		Size:              s.Size,
		Mass:              s.Mass,
		IsSphere:          s.IsSphere,
		IsCharacter:       s.IsCharacter,
		AffectedByPhysics: s.AffectedByPhysics,
	}
}
