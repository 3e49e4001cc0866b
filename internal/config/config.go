// Package config provides centralized configuration management.
// Defaults live here; environment variables override them.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	MaxWSPerIP   int     // concurrent WebSocket connections per client IP
	RequestsPerS float64 // HTTP rate limit per IP
	Burst        int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:         3000,
		MaxWSPerIP:   4,
		RequestsPerS: 20,
		Burst:        40,
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if n := getEnvInt("MAX_WS_PER_IP", 0); n > 0 {
		cfg.MaxWSPerIP = n
	}
	if r := getEnvFloat("RATE_LIMIT_RPS", 0); r > 0 {
		cfg.RequestsPerS = r
	}
	if b := getEnvInt("RATE_LIMIT_BURST", 0); b > 0 {
		cfg.Burst = b
	}
	return cfg
}

// SpatialConfig holds the spatial index cell sizes. Cell size is fixed for
// the lifetime of an index, so these are read once at startup; changing
// them requires a restart.
type SpatialConfig struct {
	GroundCellSize float64 // 2D horizontal-plane index (targeting, pickups)
	WorldCellSize  float64 // 3D index (blast resolution)
}

// DefaultSpatial returns the default spatial configuration. Cell size
// should sit near the typical query radius: smaller cells mean more cells
// per query, larger cells mean more false-positive candidates per cell.
func DefaultSpatial() SpatialConfig {
	return SpatialConfig{
		GroundCellSize: 40,
		WorldCellSize:  25,
	}
}

// SpatialFromEnv returns spatial configuration with environment overrides.
// Non-positive overrides are rejected here so the indexes never see them.
func SpatialFromEnv() (SpatialConfig, error) {
	cfg := DefaultSpatial()

	if v := os.Getenv("GROUND_CELL_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return cfg, fmt.Errorf("GROUND_CELL_SIZE must be a positive number, got %q", v)
		}
		cfg.GroundCellSize = f
	}
	if v := os.Getenv("WORLD_CELL_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return cfg, fmt.Errorf("WORLD_CELL_SIZE must be a positive number, got %q", v)
		}
		cfg.WorldCellSize = f
	}
	return cfg, nil
}

// GameConfig holds simulation settings.
type GameConfig struct {
	TickRate    int
	PickupRange float64
}

// DefaultGame returns the default game configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		TickRate:    30,
		PickupRange: 15,
	}
}

// GameFromEnv returns game configuration with environment overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if t := getEnvInt("TICK_RATE", 0); t > 0 {
		cfg.TickRate = t
	}
	if r := getEnvFloat("PICKUP_RANGE", 0); r > 0 {
		cfg.PickupRange = r
	}
	return cfg
}

// ObservabilityConfig holds debug server settings.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string // keep on localhost unless explicitly opened
}

// DefaultObservability returns safe defaults.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns observability configuration with
// environment overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	return cfg
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server        ServerConfig
	Spatial       SpatialConfig
	Game          GameConfig
	Observability ObservabilityConfig
}

// Load returns the complete configuration with environment overrides.
func Load() (AppConfig, error) {
	spatial, err := SpatialFromEnv()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:        ServerFromEnv(),
		Spatial:       spatial,
		Game:          GameFromEnv(),
		Observability: ObservabilityFromEnv(),
	}, nil
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
