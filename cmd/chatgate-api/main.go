package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrepeneur4lyf/chatgate/internal/api"
	"github.com/entrepeneur4lyf/chatgate/internal/app"
	"github.com/entrepeneur4lyf/chatgate/internal/config"
)

func main() {
	var (
		port       = flag.Int("port", 0, "Port to run the API server on (overrides config)")
		configPath = flag.String("config", "", "Path to configuration file")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *debug {
		cfg.Debug = true
	}
	if *port != 0 {
		cfg.Port = *port
	}

	chatgateApp, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	server := api.NewServer(cfg, chatgateApp)

	fmt.Printf("🚀 Starting ChatGate API Server\n")
	fmt.Printf("📡 Server: http://localhost:%d\n", cfg.Port)
	fmt.Printf("🔗 Health: http://localhost:%d/api/v1/health\n", cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Port)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			log.Fatalf("Shutdown failed: %v", err)
		}
	}
}
