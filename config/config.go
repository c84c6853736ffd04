// Package config reads the runtime settings of the physync binaries from the environment,
// after loading an optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/joho/godotenv"
	"github.com/snower/physync"
)

type Config struct {
	Mode      physync.Mode
	Addr      string
	ServerURL string

	Gravity    mgl64.Vec3
	TickMillis int
	SyncMillis int
	Workers    int
	// DedupCollisions reports a colliding pair once per tick instead of once per contact point.
	DedupCollisions bool

	// Redis is disabled when RedisURL is empty
	RedisURL         string
	CollisionChannel string

	// Security
	JWTSecret       string
	TokenTTLMinutes int

	LogLevel log.Level
}

func Load() *Config {
	// a missing .env is fine
	godotenv.Load()

	mode, err := physync.ParseMode(getEnv("PHYSYNC_MODE", "authority"))
	if err != nil {
		mode = physync.Authority
	}

	return &Config{
		Mode:      mode,
		Addr:      getEnv("PHYSYNC_ADDR", ":8080"),
		ServerURL: getEnv("PHYSYNC_SERVER_URL", "ws://localhost:8080/ws"),

		Gravity:         getEnvVec3("PHYSYNC_GRAVITY", physync.DefaultGravity),
		TickMillis:      getEnvInt("PHYSYNC_TICK_MILLIS", 16),
		SyncMillis:      getEnvInt("PHYSYNC_SYNC_MILLIS", 100),
		Workers:         getEnvInt("PHYSYNC_WORKERS", 1),
		DedupCollisions: getEnvBool("PHYSYNC_DEDUP_COLLISIONS", false),

		RedisURL:         getEnv("PHYSYNC_REDIS_URL", ""),
		CollisionChannel: getEnv("PHYSYNC_COLLISION_CHANNEL", "physync:collisions"),

		JWTSecret:       getEnv("PHYSYNC_JWT_SECRET", ""),
		TokenTTLMinutes: getEnvInt("PHYSYNC_TOKEN_TTL_MINUTES", 60),

		LogLevel: getEnvLevel("PHYSYNC_LOG_LEVEL", log.InfoLevel),
	}
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncMillis) * time.Millisecond
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvVec3 parses "x,y,z".
func getEnvVec3(key string, defaultValue mgl64.Vec3) mgl64.Vec3 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return defaultValue
	}

	var v mgl64.Vec3
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		v[i] = f
	}
	return v
}

func getEnvLevel(key string, defaultValue log.Level) log.Level {
	if value := os.Getenv(key); value != "" {
		if level, err := log.ParseLevel(value); err == nil {
			return level
		}
	}
	return defaultValue
}
