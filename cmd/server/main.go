package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"calsched/internal/app"
	"calsched/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	log.SetPrefix("calsched: ")
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "./configs/config.json", "path to the JSON config file")
	flag.Parse()

	// A .env file is optional; environment variables win over the file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	done := make(chan struct{})
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Println("Shutdown signal received, initiating graceful shutdown...")
		if err := application.Stop(ctx); err != nil {
			log.Printf("Error during graceful shutdown: %v", err)
		}
		cancel()
		close(done)
	}()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Application failed to start: %v", err)
	}

	<-done
	log.Println("Application has stopped.")
}
