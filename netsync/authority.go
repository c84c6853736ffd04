package netsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync"
)

var ErrWrongMode = errors.New("netsync: world has the wrong mode for this driver")

const (
	DefaultTickMillis = 16
	DefaultSyncMillis = 100
)

var (
	DefaultSpawnPoint    = mgl64.Vec3{0, 1, 0}
	DefaultCharacterSize = mgl64.Vec3{0.4, 0.9, 0.4}
)

type AuthorityConfig struct {
	TickMillis int
	SyncMillis int
	// Publisher receives every collision as well; nil disables it.
	Publisher CollisionPublisher
	Logger    *log.Logger

	SpawnPoint    mgl64.Vec3
	CharacterSize mgl64.Vec3
}

// Authority drives an authority world: it steps every object, broadcasts the results and
// gives each connecting client a character.
type Authority struct {
	world     *physync.World
	hub       *Hub
	publisher CollisionPublisher
	logger    *log.Logger

	tickMillis int
	syncMillis int
	spawnPoint mgl64.Vec3
	charSize   mgl64.Vec3

	tick       uint64
	nextID     int
	characters map[*Client]*physync.Object
	pending    []Collision
}

func NewAuthority(world *physync.World, hub *Hub, cfg AuthorityConfig) (*Authority, error) {
	if world.Mode() != physync.Authority {
		return nil, fmt.Errorf("%w: %v", ErrWrongMode, world.Mode())
	}

	a := &Authority{
		world:      world,
		hub:        hub,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		tickMillis: cfg.TickMillis,
		syncMillis: cfg.SyncMillis,
		spawnPoint: cfg.SpawnPoint,
		charSize:   cfg.CharacterSize,
		characters: make(map[*Client]*physync.Object),
	}
	if a.logger == nil {
		a.logger = log.Default()
	}
	a.logger = a.logger.WithPrefix("authority")
	if a.tickMillis <= 0 {
		a.tickMillis = DefaultTickMillis
	}
	if a.syncMillis <= 0 {
		a.syncMillis = DefaultSyncMillis
	}
	if a.spawnPoint == (mgl64.Vec3{}) {
		a.spawnPoint = DefaultSpawnPoint
	}
	if a.charSize == (mgl64.Vec3{}) {
		a.charSize = DefaultCharacterSize
	}
	for _, obj := range world.Objects() {
		a.nextID = max(a.nextID, obj.ID)
	}

	world.OnCollision(func(x, y *physync.Object) {
		a.pending = append(a.pending, Collision{A: x.ID, B: y.ID})
	})
	return a, nil
}

func (a *Authority) Tick() uint64 {
	return a.tick
}

// Spawn registers obj and announces it to every client.
func (a *Authority) Spawn(obj *physync.Object) error {
	if err := a.world.Register(obj); err != nil {
		return err
	}
	a.nextID = max(a.nextID, obj.ID)
	a.broadcast(MsgSpawn, Spawn{Object: SpecOf(obj)})
	return nil
}

func (a *Authority) Despawn(obj *physync.Object) {
	if !obj.Registered() {
		return
	}
	a.world.Unregister(obj)
	a.broadcast(MsgDespawn, Despawn{ID: obj.ID})
}

// Run steps, syncs and serves the hub until ctx is done.
func (a *Authority) Run(ctx context.Context) error {
	stepTicker := time.NewTicker(time.Duration(a.tickMillis) * time.Millisecond)
	syncTicker := time.NewTicker(time.Duration(a.syncMillis) * time.Millisecond)
	defer stepTicker.Stop()
	defer syncTicker.Stop()

	a.logger.Info("running", "tick_ms", a.tickMillis, "sync_ms", a.syncMillis)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-a.hub.Inbound():
			a.Handle(in)
		case <-stepTicker.C:
			a.Step(ctx)
		case <-syncTicker.C:
			a.Sync()
		}
	}
}

// Step simulates one tick and forwards its collisions.
func (a *Authority) Step(ctx context.Context) {
	a.tick++
	a.world.Simulate(a.tickMillis, true, 0)

	for _, c := range a.pending {
		a.broadcast(MsgCollision, c)
		if a.publisher != nil {
			if err := a.publisher.PublishCollision(ctx, a.tick, c); err != nil {
				a.logger.Error("publish collision", "tick", a.tick, "err", err)
			}
		}
	}
	a.pending = a.pending[:0]
}

// Sync broadcasts the state of every object.
func (a *Authority) Sync() {
	objects := a.world.Objects()
	if len(objects) == 0 {
		return
	}

	records := make([]byte, 0, len(objects)*physync.StateRecordSize)
	for _, obj := range objects {
		records, _ = obj.State().AppendBinary(records)
	}
	a.broadcast(MsgStates, States{DeltaMillis: a.tickMillis, Records: records})
}

func (a *Authority) Handle(in Inbound) {
	switch in.Kind {
	case Joined:
		a.join(in.Client)
	case Left:
		if obj, ok := a.characters[in.Client]; ok {
			delete(a.characters, in.Client)
			a.Despawn(obj)
		}
	case Received:
		a.receive(in.Client, in.Envelope)
	}
}

func (a *Authority) join(client *Client) {
	id := client.ObjectID
	if _, taken := a.world.Lookup(id); id <= 0 || taken {
		id = a.nextID + 1
	}

	character := physync.NewCharacter(id, a.spawnPoint, a.charSize)
	if err := a.world.Register(character); err != nil {
		a.logger.Error("spawn character", "client", client.ID, "err", err)
		return
	}
	a.nextID = max(a.nextID, id)
	a.characters[client] = character

	// the newcomer gets the whole world before any broadcast
	a.send(client, MsgWelcome, Welcome{ClientID: client.ID, ObjectID: id, TickMillis: a.tickMillis})
	for _, obj := range a.world.Objects() {
		a.send(client, MsgSpawn, Spawn{Object: SpecOf(obj)})
	}
	a.broadcast(MsgSpawn, Spawn{Object: SpecOf(character)})

	a.logger.Info("character spawned", "client", client.ID, "object", id)
}

func (a *Authority) receive(client *Client, env Envelope) {
	switch env.Type {
	case MsgInput:
		var input Input
		if err := env.Into(&input); err != nil {
			a.logger.Warn("bad input", "client", client.ID, "err", err)
			return
		}
		character, ok := a.characters[client]
		if !ok || character.ID != input.ObjectID {
			a.logger.Warn("input for a foreign object", "client", client.ID, "object", input.ObjectID)
			return
		}
		a.world.SetVelocity(character, input.Velocity)
	default:
		a.logger.Warn("unexpected message", "client", client.ID, "type", env.Type)
	}
}

func (a *Authority) send(client *Client, t MessageType, payload any) {
	data, err := Encode(t, a.tick, payload)
	if err != nil {
		a.logger.Error("encode", "type", t, "err", err)
		return
	}
	client.Send(data)
}

func (a *Authority) broadcast(t MessageType, payload any) {
	data, err := Encode(t, a.tick, payload)
	if err != nil {
		a.logger.Error("encode", "type", t, "err", err)
		return
	}
	a.hub.Broadcast(data)
}

// ClientID names anonymous connections.
func ClientID(n uint64) string {
	return "client-" + strconv.FormatUint(n, 10)
}
