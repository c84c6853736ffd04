// Command physyncd runs the authority: it owns the physics world, serves clients over
// websocket and publishes collisions to redis when configured.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync"
	"github.com/snower/physync/api"
	"github.com/snower/physync/config"
	"github.com/snower/physync/dynamics"
	"github.com/snower/physync/engine"
	"github.com/snower/physync/netsync"
	"github.com/snower/physync/telemetry"
)

func main() {
	cfg := config.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           cfg.LogLevel,
	})
	if cfg.Mode != physync.Authority {
		logger.Fatal("physyncd only runs in authority mode", "mode", cfg.Mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := telemetry.NewRegistry()
	world := physync.New(physync.Authority,
		physync.WithGravity(cfg.Gravity),
		physync.WithLogger(logger),
		physync.WithRegistry(registry),
		physync.WithCollisionDedup(cfg.DedupCollisions),
		physync.WithEngineFactory(func(gravity mgl64.Vec3) engine.Engine {
			w := dynamics.NewWorld(gravity)
			w.Workers = max(1, cfg.Workers)
			return w
		}),
	)
	world.Init()

	var publisher netsync.CollisionPublisher
	if cfg.RedisURL != "" {
		rdb, err := netsync.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis", "err", err)
		}
		defer rdb.Close()
		publisher = netsync.NewRedisPublisher(rdb, cfg.CollisionChannel)
		logger.Info("publishing collisions", "channel", cfg.CollisionChannel)
	}

	hub := netsync.NewHub(logger, registry)
	authority, err := netsync.NewAuthority(world, hub, netsync.AuthorityConfig{
		TickMillis: cfg.TickMillis,
		SyncMillis: cfg.SyncMillis,
		Publisher:  publisher,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("authority", "err", err)
	}
	if err := spawnArena(authority); err != nil {
		logger.Fatal("spawn arena", "err", err)
	}

	var issuer *netsync.TokenIssuer
	if cfg.JWTSecret != "" {
		issuer = netsync.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL())
	} else {
		logger.Warn("PHYSYNC_JWT_SECRET is empty, /ws accepts anyone")
	}

	if cfg.LogLevel > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr: cfg.Addr,
		Handler: api.NewRouter(api.Config{
			Mode:     world.Mode(),
			Hub:      hub,
			Registry: registry,
			Issuer:   issuer,
			Logger:   logger,
		}),
	}

	go hub.Run(ctx)
	go func() {
		if err := authority.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("authority stopped", "err", err)
		}
	}()
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
}

// spawnArena creates the floor and a few props every client sees.
func spawnArena(a *netsync.Authority) error {
	objects := []*physync.Object{
		physync.NewBox(1, mgl64.Vec3{0, -0.5, 0}, mgl64.Vec3{50, 0.5, 50}, 0),
		physync.NewSphere(2, mgl64.Vec3{0, 4, 0}, 0.5, 1),
		physync.NewBox(3, mgl64.Vec3{2, 3, 0}, mgl64.Vec3{0.5, 0.5, 0.5}, 2),
		physync.NewBox(4, mgl64.Vec3{-2, 5, 1}, mgl64.Vec3{0.5, 0.5, 0.5}, 2),
	}
	for _, obj := range objects {
		if err := a.Spawn(obj); err != nil {
			return err
		}
	}
	return nil
}
