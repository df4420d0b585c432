package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/partsdesk/parts-broker/internal/aiworker"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "ai-worker").Logger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal().Err(err).Msg("Failed to load .env")
	}

	targetYear, _ := strconv.Atoi(os.Getenv("TARGET_YEAR"))

	server, err := aiworker.NewServer(aiworker.Config{
		Keys: []string{
			os.Getenv("GROQ_KEY_1"),
			os.Getenv("GROQ_KEY_2"),
			os.Getenv("GROQ_KEY_3"),
		},
		KeyPrefix:   "gsk_",
		ProxyURL:    os.Getenv("PROXY_URL"),
		UpstreamURL: os.Getenv("UPSTREAM_URL"),
		Model:       os.Getenv("GROQ_MODEL"),
		TargetYear:  targetYear,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build worker")
	}

	port := os.Getenv("WORKER_PORT")
	if port == "" {
		port = "3000"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: server.Router(),
		// Upstream calls can chew through several keys with backoff in a
		// single request, so the write timeout is generous.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("AI worker listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
