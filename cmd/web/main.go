package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pv-groupings/internal/config"
	"github.com/pv-groupings/internal/debug"
	"github.com/pv-groupings/internal/web"
)

func main() {
	// Load environment configuration
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("Failed to read .env: %v", err)
	}
	configFile := config.GetEnv("WEB_CONFIG", "")
	logger := debug.NewLogger(config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "text"))

	fmt.Println("=== PV Group Review Interface ===")

	webConfig := web.DefaultConfig()
	if configFile != "" {
		loaded, err := web.LoadConfig(configFile)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", configFile, err)
		}
		webConfig = loaded
	}
	webConfig.ApplyEnv()

	if _, err := os.Stat(webConfig.Data.GroupsFile); err != nil {
		log.Fatalf("Groups file not found: %s (set GROUPS_FILE)", webConfig.Data.GroupsFile)
	}

	data, err := web.LoadData(webConfig.Data, logger)
	if err != nil {
		log.Fatalf("Failed to load review data: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := web.OpenSink(ctx, webConfig)
	if err != nil {
		log.Fatalf("Failed to open results sink: %v", err)
	}

	server := web.NewServer(webConfig, data, sink, logger)

	fmt.Printf("Server: http://%s:%d\n", webConfig.Server.Host, webConfig.Server.Port)
	fmt.Printf("Groups: %s (%d groups)\n", webConfig.Data.GroupsFile, len(data.GroupIDs()))
	fmt.Printf("Results: %s\n", webConfig.Results.Sink)
	fmt.Println("\nFeatures enabled:")
	fmt.Printf("  • Export: %v\n", webConfig.Features.ExportEnabled)
	fmt.Printf("  • Review: %v\n", webConfig.Features.ReviewEnabled)
	fmt.Printf("  • API key: %v\n", webConfig.Auth.Enabled)
	fmt.Println()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
