package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"deadzone/internal/api"
	"deadzone/internal/config"
	"deadzone/internal/game"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("no .env file found, using environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	log.Println("🗺️  DEADZONE spatial server")
	log.Printf("   tick rate: %d TPS", cfg.Game.TickRate)
	log.Printf("   ground index: %.0f-unit cells (2D)", cfg.Spatial.GroundCellSize)
	log.Printf("   world index:  %.0f-unit cells (3D)", cfg.Spatial.WorldCellSize)

	engine, err := game.NewEngine(game.Config{
		TickRate:       cfg.Game.TickRate,
		GroundCellSize: cfg.Spatial.GroundCellSize,
		WorldCellSize:  cfg.Spatial.WorldCellSize,
		PickupRange:    cfg.Game.PickupRange,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	engine.Start()

	api.StartDebugServer(cfg.Observability)

	server := api.NewServer(engine, cfg.Server)
	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("API server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
	engine.Stop()
}
