package main

import (
	"log"

	"github.com/Egham-7/cascade-engine/internal/config"
	pkgconfig "github.com/Egham-7/cascade-engine/pkg/config"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

func main() {
	// Load environment files explicitly
	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	// Load configuration from YAML
	cfg, err := config.LoadFromFile("config.yaml")
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	// Create the engine with explicit config
	engine := pkgconfig.NewEngine(cfg)

	// Start the server
	log.Println("Starting CascadeEngine server...")
	if err := engine.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
