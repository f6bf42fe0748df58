package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/medrex/slot-admission/internal/admission"
	"github.com/medrex/slot-admission/pkg/config"
	"github.com/medrex/slot-admission/pkg/logger"
	"github.com/medrex/slot-admission/pkg/sealed"
)

func main() {
	generateKey := flag.Bool("generate-sealing-key", false, "print a fresh sealing key for SEALING_KEY and exit")
	flag.Parse()

	if *generateKey {
		key, err := sealed.GenerateKey()
		if err != nil {
			log.Fatalf("Failed to generate sealing key: %v", err)
		}
		fmt.Println(key)
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize Admission Service
	service, err := admission.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize Admission Service: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	// Start service in a goroutine
	go func() {
		logger.Infof("Starting Admission Service on port %s", port)
		if err := service.Start(":" + port); err != nil {
			logger.Fatalf("Failed to start Admission Service: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Admission Service...")
	if err := service.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Admission Service stopped")
}
