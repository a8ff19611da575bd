// Command stub-api runs the in-memory development backend. Every response
// is served from seeded fixtures; nothing survives a restart.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/agency-portal/internal/config"
	"github.com/ignite/agency-portal/internal/stubapi"
)

func main() {
	log.Println("Starting portal STUB API (in-memory fixtures, local use only)...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Printf("Config load failed (%v), using defaults", err)
		cfg = config.Default()
	}

	store := stubapi.NewStore()
	handlers := stubapi.NewHandlers(store)
	router := stubapi.Router(handlers)

	server := &http.Server{
		Addr:              cfg.Server.GetAddr(),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Stub API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Stub API stopped")
}
