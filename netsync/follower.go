package netsync

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/snower/physync"
	"github.com/snower/physync/telemetry"
)

// DefaultCorrectionThreshold is how far (m) the predicted local object may drift from the
// authority before it is snapped back.
const DefaultCorrectionThreshold = 0.5

const pingInterval = time.Second

type FollowerConfig struct {
	TickMillis          int
	CorrectionThreshold float64
	Logger              *log.Logger
	Registry            *telemetry.Registry
}

// Follower drives a follower world: it predicts the local object and takes every other
// object from the authority.
type Follower struct {
	world  *physync.World
	conn   *websocket.Conn
	logger *log.Logger

	tickMillis int
	threshold  float64

	clientID string
	localID  int
	tick     uint64

	inputs chan mgl64.Vec3
	views  atomic.Pointer[[]View]

	bytesIn  *telemetry.Counter
	bytesOut *telemetry.Counter
	packets  *telemetry.Counter
	latency  *telemetry.Gauge
}

// View is one object as other goroutines see it, refreshed after every step and message.
type View struct {
	ID          int
	Local       bool
	IsSphere    bool
	IsCharacter bool
	Size        mgl64.Vec3
	Pose        physync.Pose
}

// Dial connects to the authority at url. token is sent as a bearer token when not empty.
func Dial(ctx context.Context, url, token string, world *physync.World, cfg FollowerConfig) (*Follower, error) {
	if world.Mode() != physync.Follower {
		return nil, fmt.Errorf("%w: %v", ErrWrongMode, world.Mode())
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	f := newFollower(conn, world, cfg)
	f.measureLatency()
	return f, nil
}

func newFollower(conn *websocket.Conn, world *physync.World, cfg FollowerConfig) *Follower {
	f := &Follower{
		world:      world,
		conn:       conn,
		logger:     cfg.Logger,
		tickMillis: cfg.TickMillis,
		threshold:  cfg.CorrectionThreshold,
		inputs:     make(chan mgl64.Vec3, 8),
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	f.logger = f.logger.WithPrefix("follower")
	if f.tickMillis <= 0 {
		f.tickMillis = DefaultTickMillis
	}
	if f.threshold <= 0 {
		f.threshold = DefaultCorrectionThreshold
	}

	registry := cfg.Registry
	if registry == nil {
		registry = world.Registry()
	}
	f.bytesIn = registry.Counter(telemetry.NetBytesIn)
	f.bytesOut = registry.Counter(telemetry.NetBytesOut)
	f.packets = registry.Counter(telemetry.NetPackets)
	f.latency = registry.Gauge(telemetry.NetLatencyMs)
	return f
}

// measureLatency turns the pong of each ping into a round-trip time.
func (f *Follower) measureLatency() {
	// pongs echo the ping timestamp
	f.conn.SetPongHandler(func(appData string) error {
		if sent, err := strconv.ParseInt(appData, 10, 64); err == nil {
			f.latency.Set(float64(time.Now().UnixNano()-sent) / 1e6)
		}
		return nil
	})
}

// LocalID is the object this client controls, 0 until the welcome arrives.
func (f *Follower) LocalID() int {
	return f.localID
}

// SendInput queues a velocity for the local object. Safe to call from any goroutine.
func (f *Follower) SendInput(velocity mgl64.Vec3) {
	select {
	case f.inputs <- velocity:
	default:
		f.logger.Warn("input queue full, input dropped")
	}
}

func (f *Follower) Close() error {
	return f.conn.Close()
}

// Run reads the authority, predicts the local object and applies inputs until ctx is done
// or the connection fails.
func (f *Follower) Run(ctx context.Context) error {
	envelopes := make(chan Envelope, 64)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go f.readLoop(envelopes, readErr, done)

	stepTicker := time.NewTicker(time.Duration(f.tickMillis) * time.Millisecond)
	pingTicker := time.NewTicker(pingInterval)
	defer stepTicker.Stop()
	defer pingTicker.Stop()
	defer f.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case env := <-envelopes:
			f.Handle(env)
		case velocity := <-f.inputs:
			f.applyInput(velocity)
		case <-stepTicker.C:
			f.Step()
		case <-pingTicker.C:
			payload := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
			if err := f.conn.WriteControl(websocket.PingMessage, payload, time.Now().Add(writeWait)); err != nil {
				f.logger.Warn("ping failed", "err", err)
			}
		}
	}
}

// Step predicts one tick, reading back the local object only.
func (f *Follower) Step() {
	f.tick++
	f.world.Simulate(f.tickMillis, false, f.localID)
	f.publishViews()
}

// Views returns the objects as of the last step or message. Safe to call from any goroutine.
func (f *Follower) Views() []View {
	if v := f.views.Load(); v != nil {
		return *v
	}
	return nil
}

func (f *Follower) publishViews() {
	objects := f.world.Objects()
	views := make([]View, len(objects))
	for i, obj := range objects {
		views[i] = View{
			ID:          obj.ID,
			Local:       obj.ID == f.localID,
			IsSphere:    obj.IsSphere,
			IsCharacter: obj.IsCharacter,
			Size:        obj.Size,
			Pose:        obj.Pose(),
		}
	}
	f.views.Store(&views)
}

func (f *Follower) readLoop(out chan<- Envelope, errs chan<- error, done <-chan struct{}) {
	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			errs <- fmt.Errorf("read: %w", err)
			return
		}
		f.bytesIn.Add(int64(len(data)))
		f.packets.Inc()

		env, err := Decode(data)
		if err != nil {
			f.logger.Warn("bad message", "err", err)
			continue
		}
		select {
		case out <- env:
		case <-done:
			return
		}
	}
}

// Handle applies one authority message to the world.
func (f *Follower) Handle(env Envelope) {
	switch env.Type {
	case MsgWelcome:
		var welcome Welcome
		if f.decode(env, &welcome) {
			f.clientID, f.localID = welcome.ClientID, welcome.ObjectID
			if welcome.TickMillis > 0 {
				f.tickMillis = welcome.TickMillis
			}
			f.logger.Info("joined", "client", f.clientID, "object", f.localID)
		}

	case MsgSpawn:
		var spawn Spawn
		if !f.decode(env, &spawn) {
			return
		}
		if _, exists := f.world.Lookup(spawn.Object.ID); exists {
			return
		}
		if err := f.world.Register(spawn.Object.Object()); err != nil {
			f.logger.Warn("spawn", "object", spawn.Object.ID, "err", err)
		}

	case MsgDespawn:
		var despawn Despawn
		if f.decode(env, &despawn) {
			if obj, ok := f.world.Lookup(despawn.ID); ok {
				f.world.Unregister(obj)
			}
		}

	case MsgStates:
		var states States
		if f.decode(env, &states) {
			f.applyStates(states)
		}

	case MsgCollision:
		var c Collision
		if f.decode(env, &c) {
			f.logger.Debug("collision", "tick", env.Tick, "a", c.A, "b", c.B)
		}

	default:
		f.logger.Warn("unexpected message", "type", env.Type)
		return
	}
	f.publishViews()
}

func (f *Follower) decode(env Envelope, v any) bool {
	if err := env.Into(v); err != nil {
		f.logger.Warn("bad payload", "err", err)
		return false
	}
	return true
}

// applyStates overwrites remote objects and corrects the local one only when it drifted.
func (f *Follower) applyStates(states States) {
	records, err := physync.DecodeStates(states.Records)
	if err != nil {
		f.logger.Warn("bad states", "err", err)
		return
	}

	for _, s := range records {
		obj, ok := f.world.Lookup(int(s.ID))
		if !ok {
			continue
		}
		if obj.ID == f.localID {
			truth := mgl64.Vec3{float64(s.Position[0]), float64(s.Position[1]), float64(s.Position[2])}
			if obj.Position.Sub(truth).Len() <= f.threshold {
				continue
			}
			f.logger.Debug("correcting local object", "object", obj.ID, "drift", obj.Position.Sub(truth).Len())
		}
		f.world.ApplyState(obj, s)
	}
}

func (f *Follower) applyInput(velocity mgl64.Vec3) {
	if obj, ok := f.world.Lookup(f.localID); ok {
		f.world.SetVelocity(obj, velocity)
	}

	data, err := Encode(MsgInput, f.tick, Input{ObjectID: f.localID, Velocity: velocity})
	if err != nil {
		f.logger.Error("encode input", "err", err)
		return
	}

	// all data frames are written from the Run goroutine
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := f.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		f.logger.Warn("send input", "err", err)
		return
	}
	f.bytesOut.Add(int64(len(data)))
	f.packets.Inc()
}
