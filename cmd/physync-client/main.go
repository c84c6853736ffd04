// Command physync-client joins a physyncd authority as a follower and shows the arena and
// the developer stats in the terminal. Arrow keys or w/a/x/d move the character, space stops
// it, s toggles the stats panel, Esc quits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync"
	"github.com/snower/physync/config"
	"github.com/snower/physync/netsync"
	"github.com/snower/physync/overlay"
	"github.com/snower/physync/telemetry"
)

const (
	frameInterval = 33 * time.Millisecond
	moveSpeed     = 3.0
)

func main() {
	cfg := config.Load()

	// the terminal belongs to tcell, so logs go to a file
	logFile, err := os.OpenFile("physync-client.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log file:", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := log.NewWithOptions(logFile, log.Options{ReportTimestamp: true, Level: cfg.LogLevel})

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("client stopped", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := telemetry.NewRegistry()
	world := physync.New(physync.Follower,
		physync.WithGravity(cfg.Gravity),
		physync.WithLogger(logger),
		physync.WithRegistry(registry),
	)
	world.Init()

	token, err := requestToken(ctx, cfg.ServerURL)
	if err != nil {
		return err
	}
	follower, err := netsync.Dial(ctx, cfg.ServerURL, token, world, netsync.FollowerConfig{
		TickMillis: cfg.TickMillis,
		Logger:     logger,
		Registry:   registry,
	})
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	stats := overlay.NewStatsPanel(registry)
	renderer := overlay.NewRenderer(screen)
	renderer.Register("arena", &overlay.ArenaView{Scale: 1, Source: markers(follower)})
	renderer.Register("stats", stats)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- follower.Run(ctx) }()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	meter := overlay.NewFrameMeter(registry)
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-runErr:
			return err
		case ev := <-events:
			if !handleEvent(ev, follower, stats, screen) {
				return nil
			}
		case <-ticker.C:
			start := time.Now()
			screen.Clear()
			renderer.Draw()
			screen.Show()
			meter.Frame(start, time.Now())
		}
	}
}

// requestToken asks the server's /join endpoint for a token. A server without token
// checks has no such endpoint, and the client connects anonymously.
func requestToken(ctx context.Context, wsURL string) (string, error) {
	joinURL := strings.Replace(wsURL, "ws", "http", 1)
	joinURL = strings.TrimSuffix(joinURL, "/ws") + "/join"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("join: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return "", nil
	case http.StatusOK:
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("join: %s: %s", resp.Status, body)
	}

	var join struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		return "", fmt.Errorf("join: %w", err)
	}
	return join.Token, nil
}

func markers(f *netsync.Follower) func() []overlay.Marker {
	return func() []overlay.Marker {
		views := f.Views()
		out := make([]overlay.Marker, 0, len(views))
		for _, v := range views {
			glyph := '#'
			switch {
			case v.IsCharacter:
				glyph = '@'
			case v.IsSphere:
				glyph = 'o'
			}
			// the floor would cover everything
			if !v.IsCharacter && v.Size.X() > 10 {
				continue
			}
			out = append(out, overlay.Marker{
				X:         v.Pose.Position.X(),
				Z:         v.Pose.Position.Z(),
				Glyph:     glyph,
				Highlight: v.Local,
			})
		}
		return out
	}
}

// handleEvent returns false when the user asked to quit.
func handleEvent(ev tcell.Event, f *netsync.Follower, stats *overlay.StatsPanel, screen tcell.Screen) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		var velocity mgl64.Vec3
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			velocity = mgl64.Vec3{0, 0, -moveSpeed}
		case tcell.KeyDown:
			velocity = mgl64.Vec3{0, 0, moveSpeed}
		case tcell.KeyLeft:
			velocity = mgl64.Vec3{-moveSpeed, 0, 0}
		case tcell.KeyRight:
			velocity = mgl64.Vec3{moveSpeed, 0, 0}
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'w':
				velocity = mgl64.Vec3{0, 0, -moveSpeed}
			case 'x':
				velocity = mgl64.Vec3{0, 0, moveSpeed}
			case 'a':
				velocity = mgl64.Vec3{-moveSpeed, 0, 0}
			case 'd':
				velocity = mgl64.Vec3{moveSpeed, 0, 0}
			case ' ':
			case 's':
				stats.Visible = !stats.Visible
				return true
			default:
				return true
			}
		default:
			return true
		}
		f.SendInput(velocity)

	case *tcell.EventResize:
		screen.Sync()
	}
	return true
}
