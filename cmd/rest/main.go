package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/bootstrap"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/config"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Background sweep for temp files whose session never cleaned up
	go func() {
		ticker := time.NewTicker(cfg.Files.CleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			container.FileManager.CleanupOldTempFiles()
		}
	}()

	// 4. Shutdown hook: empty the temp directory on the way out
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down, cleaning temp files...")
		container.FileManager.CleanupAllTempFiles()
		os.Exit(0)
	}()

	printBanner(cfg)

	// 5. Run Server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}

func printBanner(cfg *config.Config) {
	color.Cyan("Jira to Bullet Points")
	color.White("  Port:         %s", cfg.App.Port)
	color.White("  Environment:  %s", cfg.App.Environment)
	if cfg.Ai.Provider == "" || cfg.Ai.Provider == "none" {
		color.Yellow("  AI:           disabled (degraded mode)")
	} else {
		color.Green("  AI:           %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)
	}
}
