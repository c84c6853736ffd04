package netsync

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync"
)

func TestEnvelope_Input(t *testing.T) {
	data, err := Encode(MsgInput, 42, Input{ObjectID: 3, Velocity: mgl64.Vec3{1, 0, -2}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if env.Type != MsgInput || env.Tick != 42 {
		t.Fatalf("envelope = %v/%d, want input/42", env.Type, env.Tick)
	}

	var input Input
	if err := env.Into(&input); err != nil {
		t.Fatalf("Into() error = %v", err)
	}
	if input.ObjectID != 3 || input.Velocity != (mgl64.Vec3{1, 0, -2}) {
		t.Errorf("input = %+v", input)
	}
}

func TestEnvelope_SpawnBuildsSameObject(t *testing.T) {
	original := physync.NewSphere(9, mgl64.Vec3{1, 2, 3}, 0.5, 2)

	data, err := Encode(MsgSpawn, 1, Spawn{Object: SpecOf(original)})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	var spawn Spawn
	if err := env.Into(&spawn); err != nil {
		t.Fatalf("Into() error = %v", err)
	}

	obj := spawn.Object.Object()
	if obj.ID != 9 || obj.Position != original.Position || obj.Rotation != original.Rotation {
		t.Errorf("object = %d %v %v", obj.ID, obj.Position, obj.Rotation)
	}
	if !obj.IsSphere || !obj.AffectedByPhysics || obj.Mass != 2 || obj.Size != original.Size {
		t.Errorf("object shape = sphere %v dynamic %v mass %v size %v", obj.IsSphere, obj.AffectedByPhysics, obj.Mass, obj.Size)
	}
	if obj.Registered() {
		t.Error("decoded object is registered")
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte{0xc1}); err == nil {
		t.Error("Decode(garbage) error = nil")
	}

	env := Envelope{Type: MsgDespawn, Payload: []byte{0xc1}}
	var despawn Despawn
	if err := env.Into(&despawn); err == nil {
		t.Error("Into(garbage) error = nil")
	}
}

func TestMessageType_String(t *testing.T) {
	tests := map[MessageType]string{
		MsgWelcome:        "welcome",
		MsgStates:         "states",
		MsgInput:          "input",
		MessageType(0xff): "MessageType(0xff)",
	}
	for mt, want := range tests {
		if got := mt.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
